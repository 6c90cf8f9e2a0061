package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsakani/shule/core"
	"github.com/tsakani/shule/core/school"
	"github.com/tsakani/shule/core/user"
)

var (
	// auth failures on protected routes deliberately map to 403, not 401;
	// only the login and refresh flows answer 401.
	errAuthRequired         = echo.NewHTTPError(http.StatusForbidden, "authentication required")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
	errInvalidRefreshToken  = echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	errBulkNotAllowed       = echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed")
	errInvalidBody          = echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that maps
// every failure onto the API's error taxonomy and a {"error": …} (or
// {"errors": …}) JSON body; nothing internal ever reaches the client.
// signalShutdown is called whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusUnprocessableEntity
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
			code = http.StatusUnprocessableEntity
		default:
			switch origErr {
			case user.ErrNotFound, school.ErrNotFound, school.ErrGradeNotFound:
				code = http.StatusNotFound
				message = errHttpNotFound.Message
			case user.ErrEmailExists:
				code = http.StatusConflict
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		} else if m, ok := message.(map[string]string); ok {
			message = echo.Map{"errors": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
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
