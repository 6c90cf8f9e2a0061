package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsakani/shule/core/user"
)

type communicationAPI struct {
	service user.Service
}

// queryAll lists communications across all inboxes; the filter middleware
// scopes it to secretary-sent messages.
func (api *communicationAPI) queryAll(ctx echo.Context) error {
	filter, ok := ctx.Get(commFilterContextKey).(user.CommunicationFilter)
	if !ok {
		return errors.New("communication filter missing from context")
	}
	coms, err := api.service.QueryCommunications(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying communications")
	}
	return ctx.JSON(http.StatusOK, coms)
}

// list returns one user's inbox.
func (api *communicationAPI) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	coms := usr.Communications
	if coms == nil {
		coms = []user.Communication{}
	}
	return ctx.JSON(http.StatusOK, coms)
}

func (api *communicationAPI) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	body, err := getContextBody(ctx)
	if err != nil {
		return err
	}
	nc := user.NewCommunication{
		Title:   bodyString(body, "title"),
		Content: bodyString(body, "content"),
	}

	com, err := api.service.SendCommunication(ctx.Request().Context(), usr.ID, nc, claims.Subject, claims.Role)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, com)
}

func (api *communicationAPI) retrieve(ctx echo.Context) error {
	com, err := getContextCommunication(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, com)
}

func (api *communicationAPI) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	com, err := getContextCommunication(ctx)
	if err != nil {
		return err
	}
	if err = api.service.DeleteCommunication(ctx.Request().Context(), usr.ID, com.ID); err != nil {
		return errors.Wrap(err, "deleting communication")
	}
	return ctx.NoContent(http.StatusNoContent)
}
