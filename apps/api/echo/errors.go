package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// kindStatus maps domain error kinds to HTTP status codes.
func kindStatus(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalidCredentials,
		core.KindTokenNotFound, core.KindTokenRevoked, core.KindTokenExpired, core.KindTokenInvalid:
		return http.StatusUnauthorized
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindUserNotFound, core.KindGroupNotFound, core.KindLessonNotFound:
		return http.StatusNotFound
	case core.KindGroupAlreadyExists, core.KindLessonAlreadyExists:
		return http.StatusConflict
	default: // RoleMismatch, StudentNotInGroup, InvalidGradeValue
		return http.StatusBadRequest
	}
}

// causeOf returns the root cause of err, looking into echo.HTTPError.Internal.
func causeOf(err error) error {
	cause := errors.Cause(err)
	if herr, ok := cause.(*echo.HTTPError); ok && herr.Internal != nil {
		switch internal := errors.Cause(herr.Internal).(type) {
		case *core.Error, *echo.HTTPError:
			return internal
		case authFault:
			return internal.error
		}
	}
	return cause
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := causeOf(err).(type) {
		case *core.Error:
			code = kindStatus(origErr.Kind)
			message = echo.Map{"error": origErr.Message, "kind": origErr.Kind}
		case *echo.HTTPError:
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			if usr, ok := ctx.Get(ctxUserKey).(user.User); ok {
				logger.Error(msg, errors.Wrap(err, msg), usr)
			} else {
				logger.Error(msg, errors.Wrap(err, msg))
			}
			if ctx.Echo().Debug {
				message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
