package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/module"
	"github.com/trezcool/darasa/core/user"
)

type courseApi struct {
	svc       course.ServiceInterface
	moduleSvc module.ServiceInterface
	userSvc   user.ServiceInterface
	validate  *validator.Validate
}

func registerCourseAPI(g *echo.Group, deps ServerDeps) {
	api := courseApi{
		svc:       deps.CourseSvc,
		moduleSvc: deps.ModuleSvc,
		userSvc:   deps.UserSvc,
		validate:  deps.Validate,
	}

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
}

func (api *courseApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	courses, err := api.svc.QueryByTeacher(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), actor.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

// CourseDetailResponse is the course view: the course plus its modules.
type CourseDetailResponse struct {
	Course  course.Course   `json:"course"`
	Modules []module.Module `json:"modules"`
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.GetOwned(ctx.Request().Context(), ctx.Param("id"), actor.ID)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}

	mods, err := api.moduleSvc.QueryByCourse(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying course modules")
	}
	if mods == nil {
		mods = []module.Module{}
	}
	return ctx.JSON(http.StatusOK, CourseDetailResponse{Course: crs, Modules: mods})
}

func (api *courseApi) update(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.GetOwned(ctx.Request().Context(), ctx.Param("id"), actor.ID)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}

	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(crs, api.validate); err != nil {
		return err
	}

	crs, err = api.svc.Update(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.GetOwned(ctx.Request().Context(), ctx.Param("id"), actor.ID)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}

	if err = api.svc.Delete(ctx.Request().Context(), crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}
