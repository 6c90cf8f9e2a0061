package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsakani/shule/core/school"
)

type schoolAPI struct {
	service school.Service
}

func (api *schoolAPI) query(ctx echo.Context) error {
	filter, ok := ctx.Get(classFilterContextKey).(school.QueryFilter)
	if !ok {
		return errors.New("class filter missing from context")
	}

	var classes []school.Class
	var err error
	if filter == (school.QueryFilter{}) {
		classes, err = api.service.QueryAll(ctx.Request().Context())
	} else {
		classes, err = api.service.Filter(ctx.Request().Context(), filter)
	}
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolAPI) create(ctx echo.Context) error {
	body, err := getContextBody(ctx)
	if err != nil {
		return err
	}
	nc := school.NewClass{
		Name:        bodyString(body, "name"),
		ProfessorID: bodyString(body, "professor_id"),
		Students:    bodyStringList(body, "students"),
	}

	cls, err := api.service.Create(ctx.Request().Context(), nc)
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("classes/%s", cls.ID))
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *schoolAPI) retrieve(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolAPI) update(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	body, err := getContextBody(ctx)
	if err != nil {
		return err
	}
	uc := school.UpdateClass{
		Name:        bodyStringPtr(body, "name"),
		ProfessorID: bodyStringPtr(body, "professor_id"),
		Students:    bodyStringListPtr(body, "students"),
	}

	cls, err = api.service.Update(ctx.Request().Context(), cls.ID, uc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolAPI) destroy(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	if err = api.service.Delete(ctx.Request().Context(), cls.ID); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Grades

func (api *schoolAPI) gradeQuery(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	filter, ok := ctx.Get(gradeFilterContextKey).(school.GradeFilter)
	if !ok {
		return errors.New("grade filter missing from context")
	}

	grades, err := api.service.QueryGrades(ctx.Request().Context(), cls.ID, filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *schoolAPI) gradeCreate(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	body, err := getContextBody(ctx)
	if err != nil {
		return err
	}
	ng := school.NewGrade{
		StudentID: bodyString(body, "student_id"),
		Subject:   bodyString(body, "subject"),
		Value:     bodyInt(body, "value"),
		Date:      bodyString(body, "date"),
	}

	grd, err := api.service.AddGrade(ctx.Request().Context(), cls.ID, ng)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, grd)
}

func (api *schoolAPI) gradeRetrieve(ctx echo.Context) error {
	grd, err := getContextGrade(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *schoolAPI) gradeUpdate(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	grd, err := getContextGrade(ctx)
	if err != nil {
		return err
	}
	body, err := getContextBody(ctx)
	if err != nil {
		return err
	}
	ug := school.UpdateGrade{
		Subject: bodyStringPtr(body, "subject"),
		Value:   bodyIntPtr(body, "value"),
		Date:    bodyStringPtr(body, "date"),
	}

	grd, err = api.service.UpdateGrade(ctx.Request().Context(), cls.ID, grd.ID, ug)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *schoolAPI) gradeDestroy(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	grd, err := getContextGrade(ctx)
	if err != nil {
		return err
	}
	if err = api.service.DeleteGrade(ctx.Request().Context(), cls.ID, grd.ID); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}
