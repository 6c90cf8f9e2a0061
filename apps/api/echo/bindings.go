package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsakani/shule/core/school"
	"github.com/tsakani/shule/core/user"
)

// Context getters. Each one assumes the matching middleware ran; a miss
// means the route table wired the chain wrong, so they fail loudly with a
// server error rather than a client one.

func getContextBody(ctx echo.Context) (map[string]interface{}, error) {
	if body, ok := ctx.Get(bodyContextKey).(map[string]interface{}); ok {
		return body, nil
	}
	return nil, errors.New("request body missing from context")
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errors.New("user missing from context")
}

func getContextClass(ctx echo.Context) (school.Class, error) {
	if cls, ok := ctx.Get(classContextKey).(school.Class); ok {
		return cls, nil
	}
	return school.Class{}, errors.New("class missing from context")
}

func getContextGrade(ctx echo.Context) (school.Grade, error) {
	if grd, ok := ctx.Get(gradeContextKey).(school.Grade); ok {
		return grd, nil
	}
	return school.Grade{}, errors.New("grade missing from context")
}

func getContextCommunication(ctx echo.Context) (user.Communication, error) {
	if com, ok := ctx.Get(commContextKey).(user.Communication); ok {
		return com, nil
	}
	return user.Communication{}, errors.New("communication missing from context")
}

// Body field converters. Bodies are validated (or sanitized) maps, so the
// values here already passed their field rules; the converters only undo
// the loose typing JSON decoding leaves behind (every number is a float64,
// ints may arrive as digit strings).

func bodyString(body map[string]interface{}, field string) string {
	s, _ := body[field].(string)
	return s
}

func bodyStringPtr(body map[string]interface{}, field string) *string {
	if s, ok := body[field].(string); ok {
		return &s
	}
	return nil
}

func bodyInt(body map[string]interface{}, field string) int {
	switch v := body[field].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func bodyIntPtr(body map[string]interface{}, field string) *int {
	if _, ok := body[field]; !ok {
		return nil
	}
	n := bodyInt(body, field)
	return &n
}

func bodyRole(body map[string]interface{}, field string) user.Role {
	return user.Role(bodyInt(body, field))
}

func bodyRolePtr(body map[string]interface{}, field string) *user.Role {
	if _, ok := body[field]; !ok {
		return nil
	}
	role := bodyRole(body, field)
	return &role
}

func bodyStringList(body map[string]interface{}, field string) []string {
	list, ok := body[field].([]interface{})
	if !ok {
		return nil
	}
	strs := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			strs = append(strs, s)
		}
	}
	return strs
}

func bodyStringListPtr(body map[string]interface{}, field string) *[]string {
	if _, ok := body[field]; !ok {
		return nil
	}
	strs := bodyStringList(body, field)
	if strs == nil {
		strs = []string{}
	}
	return &strs
}
