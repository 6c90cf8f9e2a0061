package echoapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsakani/shule/core"
	"github.com/tsakani/shule/core/school"
	"github.com/tsakani/shule/core/user"
)

// Request-scoped context keys. Each stage of the chain either populates one
// of these for downstream stages or terminates the request; once a stage
// denies, nothing after it runs.
const (
	claimsContextKey      = "claims"
	bodyContextKey        = "body"
	userContextKey        = "user"
	classContextKey       = "class"
	gradeContextKey       = "grade"
	commContextKey        = "communication"
	userFilterContextKey  = "userFilter"
	classFilterContextKey = "classFilter"
	gradeFilterContextKey = "gradeFilter"
	commFilterContextKey  = "commFilter"
)

// Authentication stage

// authenticated extracts and verifies the bearer access token and attaches
// the derived Claims to the request context.
func authenticated(codec *TokenCodec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return errAuthRequired
			}
			claims, err := codec.Verify(strings.TrimSpace(header[len(prefix):]), AccessToken)
			if err != nil {
				return errAuthRequired
			}
			ctx.Set(claimsContextKey, *claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(claimsContextKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errAuthRequired
}

// Authorization stages

// roleRequired allows the request iff the claims role is one of the given
// roles.
func roleRequired(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// selfOrSecretary allows the request iff the path id is the caller's own id
// or the caller is a secretary.
func selfOrSecretary(idParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Subject == ctx.Param(idParam) || claims.Role == user.RoleSecretary {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// scopedUserQuery guards user listings. A secretary sees everything, with
// an optional role filter. A professor may list students. Any non-secretary
// asking for their own role's listing gets a self filter injected instead
// of a denial. Everything else, a bare listing included, is denied.
func scopedUserQuery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}

			var filter user.QueryFilter
			roleParam := ctx.QueryParam("role")
			if claims.Role == user.RoleSecretary {
				if role, ok := parseRole(roleParam); ok {
					filter.Role = &role
				}
				ctx.Set(userFilterContextKey, filter)
				return next(ctx)
			}

			role, ok := parseRole(roleParam)
			if !ok {
				return errHttpForbidden
			}
			switch {
			case claims.Role == user.RoleProfessor && role == user.RoleStudent:
				filter.Role = &role
			case role == claims.Role:
				// self-scoped listing
				filter.Email = claims.Email
			default:
				return errHttpForbidden
			}

			ctx.Set(userFilterContextKey, filter)
			return next(ctx)
		}
	}
}

// scopedClassQuery forces class listings onto the caller's own classes:
// taught ones for a professor, attended ones for a student.
func scopedClassQuery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}

			var filter school.QueryFilter
			switch claims.Role {
			case user.RoleProfessor:
				filter.ProfessorID = claims.Subject
			case user.RoleStudent:
				filter.StudentID = claims.Subject
			}
			ctx.Set(classFilterContextKey, filter)
			return next(ctx)
		}
	}
}

// secretarySentOnly scopes the global communications listing to messages
// sent by secretaries.
func secretarySentOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return err
			}
			senderRole := user.RoleSecretary
			ctx.Set(commFilterContextKey, user.CommunicationFilter{SenderRole: &senderRole})
			return next(ctx)
		}
	}
}

// classAccess allows reading a resolved class to its professor, its
// students and any secretary.
func classAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			cls, err := getContextClass(ctx)
			if err != nil {
				return err
			}
			switch claims.Role {
			case user.RoleSecretary:
				return next(ctx)
			case user.RoleProfessor:
				if cls.IsTaughtBy(claims.Subject) {
					return next(ctx)
				}
			case user.RoleStudent:
				if cls.HasStudent(claims.Subject) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// classTeachRequired allows grade mutations on a resolved class only to the
// professor teaching it or a secretary.
func classTeachRequired() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Role == user.RoleSecretary {
				return next(ctx)
			}
			cls, err := getContextClass(ctx)
			if err != nil {
				return err
			}
			if claims.Role == user.RoleProfessor && cls.IsTaughtBy(claims.Subject) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// scopedGradeQuery narrows grade listings on a resolved class: a student
// enrolled in it sees only their own grades; its professor and any
// secretary see all.
func scopedGradeQuery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			cls, err := getContextClass(ctx)
			if err != nil {
				return err
			}

			var filter school.GradeFilter
			switch {
			case claims.Role == user.RoleSecretary:
			case claims.Role == user.RoleProfessor && cls.IsTaughtBy(claims.Subject):
			case claims.Role == user.RoleStudent && cls.HasStudent(claims.Subject):
				filter.StudentID = claims.Subject
			default:
				return errHttpForbidden
			}
			ctx.Set(gradeFilterContextKey, filter)
			return next(ctx)
		}
	}
}

// gradeAccess allows reading a resolved grade to the class's professor, any
// secretary, or the graded student themselves.
func gradeAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			cls, err := getContextClass(ctx)
			if err != nil {
				return err
			}
			grd, err := getContextGrade(ctx)
			if err != nil {
				return err
			}
			switch claims.Role {
			case user.RoleSecretary:
				return next(ctx)
			case user.RoleProfessor:
				if cls.IsTaughtBy(claims.Subject) {
					return next(ctx)
				}
			case user.RoleStudent:
				if grd.StudentID == claims.Subject {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// Field-validation stages

// validateBody enforces the full creation rule table; any failing required
// field terminates with 422 before anything is looked up or written.
func validateBody(schema core.Schema) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			body, err := decodeBody(ctx)
			if err != nil {
				return err
			}
			if err := schema.ValidateCreate(body); err != nil {
				return err
			}
			ctx.Set(bodyContextKey, body)
			return next(ctx)
		}
	}
}

// sanitizeBody applies partial-update semantics: invalid fields are dropped
// silently, and an empty sanitized body short-circuits with 204 since there
// is nothing to do.
func sanitizeBody(schema core.Schema) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			body, err := decodeBody(ctx)
			if err != nil {
				return err
			}
			if body = schema.SanitizePatch(body); len(body) == 0 {
				return ctx.NoContent(http.StatusNoContent)
			}
			ctx.Set(bodyContextKey, body)
			return next(ctx)
		}
	}
}

func decodeBody(ctx echo.Context) (map[string]interface{}, error) {
	body := make(map[string]interface{})
	if err := json.NewDecoder(ctx.Request().Body).Decode(&body); err != nil && err != io.EOF {
		return nil, errInvalidBody
	}
	return body, nil
}

// Existence-resolution stages
//
// A malformed id never reaches the store and is indistinguishable from an
// absent one: both answer 404 with the same body.

func resolveUser(svc user.Service, idParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ctx.Param(idParam)
			if !svc.IsValidID(id) {
				return errHttpNotFound
			}
			usr, err := svc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "resolving user")
			}
			ctx.Set(userContextKey, usr)
			return next(ctx)
		}
	}
}

func resolveClass(svc school.Service, idParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ctx.Param(idParam)
			if !svc.IsValidID(id) {
				return errHttpNotFound
			}
			cls, err := svc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				if errors.Cause(err) == school.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "resolving class")
			}
			ctx.Set(classContextKey, cls)
			return next(ctx)
		}
	}
}

// resolveGrade requires a previously resolved class in the context.
func resolveGrade(gradeParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cls, err := getContextClass(ctx)
			if err != nil {
				return err
			}
			gradeID := ctx.Param(gradeParam)
			for _, grd := range cls.Grades {
				if grd.ID == gradeID {
					ctx.Set(gradeContextKey, grd)
					return next(ctx)
				}
			}
			return errHttpNotFound
		}
	}
}

// resolveCommunication requires a previously resolved user in the context.
func resolveCommunication(comParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			comID := ctx.Param(comParam)
			for _, com := range usr.Communications {
				if com.ID == comID {
					ctx.Set(commContextKey, com)
					return next(ctx)
				}
			}
			return errHttpNotFound
		}
	}
}

func parseRole(s string) (user.Role, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	role := user.Role(n)
	return role, role.Valid()
}
