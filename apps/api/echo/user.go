package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/academic"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
)

type userApi struct {
	svc      *user.Service
	authSvc  *auth.Service
	graph    *academic.Graph
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, s *Server) {
	api := userApi{
		svc:      s.deps.UserSvc,
		authSvc:  s.deps.AuthSvc,
		graph:    s.deps.Graph,
		validate: s.deps.Validate,
	}

	ug := g.Group("/users")
	ug.GET("", api.query, s.authorize(auth.OpListUsers))
	ug.GET("/getUserInfo", api.retrieveSelf, s.authorize(auth.OpGetUserInfo))
	ug.DELETE("/tokens", api.sweepTokens, s.authorize(auth.OpSweepTokens))
	ug.PUT("/:id", api.update, s.authorize(auth.OpUpdateUser))
	ug.DELETE("/:id", api.destroy, s.authorize(auth.OpDeleteUser))
}

// Handlers

func (api *userApi) query(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.graph.ListUsers(ctx.Request().Context(), caller, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieveSelf(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, caller)
}

func (api *userApi) update(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	// only admins may edit someone else
	if id != caller.ID && !caller.IsAdmin() {
		return auth.ErrForbidden
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	// Say No to Suicide! caller cannot delete themselves
	if id == caller.ID {
		return auth.ErrForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) sweepTokens(ctx echo.Context) error {
	n, err := api.authSvc.SweepExpired(ctx.Request().Context(), auth.NowFunc())
	if err != nil {
		return errors.Wrap(err, "sweeping expired tokens")
	}
	return ctx.JSON(http.StatusOK, SweepResponse{Deleted: n})
}

type SweepResponse struct {
	Deleted int `json:"deleted"`
}
