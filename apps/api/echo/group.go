package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/academic"
	"github.com/trezcool/academia/core/auth"
)

type groupApi struct {
	graph    *academic.Graph
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, s *Server) {
	api := groupApi{
		graph:    s.deps.Graph,
		validate: s.deps.Validate,
	}

	gg := g.Group("/groups")
	gg.GET("", api.query, s.authorize(auth.OpListGroups))

	// students
	gg.POST("/students/:groupNum/:studentId", api.enroll, s.authorize(auth.OpEnrollStudent))
	gg.DELETE("/students/:groupNum/:studentId", api.unenroll, s.authorize(auth.OpUnenrollStudent))

	// lessons
	gg.GET("/lessons/:lessonId", api.retrieveLesson, s.authorize(auth.OpGetLesson))
	gg.POST("/lessons/:lessonId", api.createTask, s.authorize(auth.OpCreateTask))
	gg.POST("/rate/:lessonId", api.rate, s.authorize(auth.OpRecordGrade))

	// detail endpoints
	gg.GET("/:groupNum", api.retrieve, s.authorize(auth.OpGetGroup))
	gg.POST("/:groupNum", api.create, s.authorize(auth.OpCreateGroup))
	gg.DELETE("/:groupNum", api.destroy, s.authorize(auth.OpDeleteGroup))
	gg.POST("/:groupNum/lesson", api.createLesson, s.authorize(auth.OpCreateLesson))
	gg.POST("/:groupNum/:teacher", api.assignTeacher, s.authorize(auth.OpAssignTeacher))
}

// Handlers

func (api *groupApi) query(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	groups, err := api.graph.ListGroups(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []academic.GroupSummary{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	num, err := intParam(ctx, "groupNum")
	if err != nil {
		return err
	}
	grp, err := api.graph.GetGroup(ctx.Request().Context(), caller, num)
	if err != nil {
		return errors.Wrap(err, "getting group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) create(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	num, err := intParam(ctx, "groupNum")
	if err != nil {
		return err
	}
	grp, err := api.graph.CreateGroup(ctx.Request().Context(), caller, num)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	num, err := intParam(ctx, "groupNum")
	if err != nil {
		return err
	}
	if err = api.graph.DeleteGroup(ctx.Request().Context(), caller, num); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) assignTeacher(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	num, err := intParam(ctx, "groupNum")
	if err != nil {
		return err
	}
	teacherID, err := intParam(ctx, "teacher")
	if err != nil {
		return err
	}
	grp, err := api.graph.AssignTeacher(ctx.Request().Context(), caller, num, teacherID)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) enroll(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	num, err := intParam(ctx, "groupNum")
	if err != nil {
		return err
	}
	studentID, err := intParam(ctx, "studentId")
	if err != nil {
		return err
	}
	grp, err := api.graph.EnrollStudent(ctx.Request().Context(), caller, num, studentID)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) unenroll(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	num, err := intParam(ctx, "groupNum")
	if err != nil {
		return err
	}
	studentID, err := intParam(ctx, "studentId")
	if err != nil {
		return err
	}
	if err = api.graph.UnenrollStudent(ctx.Request().Context(), caller, num, studentID); err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) createLesson(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	num, err := intParam(ctx, "groupNum")
	if err != nil {
		return err
	}

	var data NameRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NameRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	lsn, err := api.graph.CreateLesson(ctx.Request().Context(), caller, num, data.Name)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (api *groupApi) retrieveLesson(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	lessonID, err := intParam(ctx, "lessonId")
	if err != nil {
		return err
	}
	lsn, err := api.graph.GetLesson(ctx.Request().Context(), caller, lessonID)
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *groupApi) createTask(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	lessonID, err := intParam(ctx, "lessonId")
	if err != nil {
		return err
	}

	var data NameRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NameRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tsk, err := api.graph.CreateTask(ctx.Request().Context(), caller, lessonID, data.Name)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, tsk)
}

func (api *groupApi) rate(ctx echo.Context) error {
	caller, err := ctxUser(ctx)
	if err != nil {
		return err
	}
	lessonID, err := intParam(ctx, "lessonId")
	if err != nil {
		return err
	}

	var data RateRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RateRequest")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	// the grade value itself is checked by the graph
	grd, err := api.graph.RecordGrade(ctx.Request().Context(), caller, lessonID, data.Student, data.Grade)
	if err != nil {
		return errors.Wrap(err, "recording grade")
	}
	return ctx.JSON(http.StatusCreated, grd)
}

type (
	NameRequest struct {
		Name string `json:"name" validate:"required,max=100"`
	}

	RateRequest struct {
		Student int    `json:"student" validate:"required"`
		Grade   string `json:"grade"`
	}
)

func (nr *NameRequest) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	return validate.Struct(nr)
}
