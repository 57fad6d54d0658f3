package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
)

const (
	ctxUserKey  = "user"
	ctxTokenKey = "userToken"
	tokenType   = "Bearer"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

// authFault is a non-domain failure raised while authorizing a request.
type authFault struct {
	error
}

// authorize extracts the bearer token and lets the Guard resolve it for op.
// The caller and their token are stored in the echo.Context.
func (s *Server) authorize(op auth.Operation) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		AuthScheme: tokenType,
		Validator: func(key string, ctx echo.Context) (bool, error) {
			usr, err := s.deps.Guard.AuthorizeOperation(ctx.Request().Context(), key, op)
			if err != nil {
				if _, ok := core.KindOf(err); ok {
					return false, err
				}
				return false, authFault{errors.Wrap(err, "authorizing "+string(op))}
			}
			ctx.Set(ctxUserKey, usr)
			ctx.Set(ctxTokenKey, key)
			return true, nil
		},
	})
}

func ctxUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(ctxUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUsrNotFoundInCtx
}

func ctxToken(ctx echo.Context) string {
	tkn, _ := ctx.Get(ctxTokenKey).(string)
	return tkn
}

type authApi struct {
	userSvc  *user.Service
	authSvc  *auth.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, s *Server) {
	api := authApi{
		userSvc:  s.deps.UserSvc,
		authSvc:  s.deps.AuthSvc,
		validate: s.deps.Validate,
	}

	g.POST("/login", api.login)
	g.POST("/register", api.register)
	g.GET("/logout", api.logout, s.authorize(auth.OpLogout))
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.authSvc.Login(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	ctx.Set(ctxUserKey, sess.User)

	return ctx.JSON(http.StatusOK, LoginResponse{
		AccessToken: sess.AccessToken,
		TokenType:   tokenType,
		ID:          sess.User.ID,
		Username:    sess.User.Username,
		Email:       sess.User.Email,
		Roles:       sess.User.RoleNames(),
	})
}

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.userSvc); err != nil {
		return err
	}

	usr, err := api.userSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *authApi) logout(ctx echo.Context) error {
	if err := api.authSvc.Revoke(ctx.Request().Context(), ctxToken(ctx)); err != nil {
		return errors.Wrap(err, "revoking token")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		AccessToken string   `json:"accessToken"`
		TokenType   string   `json:"tokenType"`
		ID          int      `json:"id"`
		Username    string   `json:"username"`
		Email       string   `json:"email"`
		Roles       []string `json:"roles"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
