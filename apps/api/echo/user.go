package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsakani/shule/core"
	"github.com/tsakani/shule/core/user"
)

type userAPI struct {
	service user.Service
	codec   *TokenCodec
}

// LoginRequest carries the credentials posted to /login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (lr *LoginRequest) Clean() {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
}

// TokenResponse is the login payload; the refresh flow reuses the shape
// with the refresh token omitted.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (api *userAPI) login(ctx echo.Context) error {
	req := new(LoginRequest)
	if err := ctx.Bind(req); err != nil {
		return errInvalidBody
	}
	req.Clean()
	if err := core.Validate.Struct(req); err != nil {
		return err
	}

	usr, err := authenticate(ctx.Request().Context(), req.Email, req.Password, api.service)
	if err != nil {
		return err
	}

	claims := GetUserClaims(usr)
	access, err := api.codec.Issue(claims, AccessToken)
	if err != nil {
		return err
	}
	refresh, err := api.codec.Issue(claims, RefreshToken)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{AccessToken: access, RefreshToken: refresh})
}

// refresh re-issues an access token from a valid refresh token. The new
// token carries the same identity claims the refresh token was minted with.
func (api *userAPI) refresh(ctx echo.Context) error {
	req := new(refreshRequest)
	if err := ctx.Bind(req); err != nil {
		return errInvalidBody
	}
	if err := core.Validate.Struct(req); err != nil {
		return err
	}

	claims, err := api.codec.Verify(req.RefreshToken, RefreshToken)
	if err != nil {
		return errInvalidRefreshToken
	}

	access, err := api.codec.Issue(*claims, AccessToken)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{AccessToken: access})
}

// yourself returns the authenticated user's own record.
func (api *userAPI) yourself(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := api.service.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting own user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) query(ctx echo.Context) error {
	filter, ok := ctx.Get(userFilterContextKey).(user.QueryFilter)
	if !ok {
		return errors.New("user filter missing from context")
	}

	var users []user.User
	var err error
	if filter == (user.QueryFilter{}) {
		users, err = api.service.QueryAll(ctx.Request().Context())
	} else {
		users, err = api.service.Filter(ctx.Request().Context(), filter)
	}
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userAPI) create(ctx echo.Context) error {
	body, err := getContextBody(ctx)
	if err != nil {
		return err
	}
	nu := user.NewUser{
		Name:     bodyString(body, "name"),
		Email:    bodyString(body, "email"),
		Password: bodyString(body, "password"),
		Role:     bodyRole(body, "role"),
	}

	usr, err := api.service.Create(ctx.Request().Context(), nu)
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("users/%s", usr.ID))
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userAPI) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	body, err := getContextBody(ctx)
	if err != nil {
		return err
	}
	uu := user.UpdateUser{
		Name:     bodyStringPtr(body, "name"),
		Email:    bodyStringPtr(body, "email"),
		Password: bodyStringPtr(body, "password"),
		Role:     bodyRolePtr(body, "role"),
	}

	usr, err = api.service.Update(ctx.Request().Context(), usr.ID, uu)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.service.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// bulkNotAllowed answers collection-level PATCH and DELETE.
func bulkNotAllowed(ctx echo.Context) error {
	return errBulkNotAllowed
}
