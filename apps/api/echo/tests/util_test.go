package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	echoapi "github.com/tsakani/shule/apps/api/echo"
	"github.com/tsakani/shule/core/school"
	"github.com/tsakani/shule/core/user"
)

const testPassword = "V3ry$ecur3P4ss!"

type httpTest struct {
	name         string
	req          *http.Request
	expectedCode int
	expectedData []byte
	extraTests   []extraTest
}

type extraTest func(t *testing.T, resp *http.Response)

func newRequest(method, path string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func newAuthRequest(method, path, token string, body []byte) *http.Request {
	req := newRequest(method, path, body)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.NewTokenCodec(conf).Issue(echoapi.GetUserClaims(usr), echoapi.AccessToken)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalling: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	return marchallObj(t, objs)
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.expectedCode {
		t.Fatalf("%s: code = %d; expected %d (body: %s)", tt.name, rec.Code, tt.expectedCode, rec.Body.String())
	}
	if tt.expectedData != nil {
		eq, err := jsonBytesEqual(rec.Body.Bytes(), tt.expectedData)
		if err != nil {
			t.Fatalf("%s: comparing bodies: %v", tt.name, err)
		}
		if !eq {
			t.Errorf("%s: body = %s; expected %s", tt.name, rec.Body.Bytes(), tt.expectedData)
		}
	}
	for _, extra := range tt.extraTests {
		extra(t, rec.Result())
	}
}

func runHTTPTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, tt.req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func errJSON(msg string) []byte {
	return []byte(fmt.Sprintf(`{"error": %q}`, msg))
}

func createUser(t *testing.T, name string, role user.Role) user.User {
	t.Helper()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@shule.org"
	usr, err := userSvc.Create(context.Background(), user.NewUser{
		Name:     name,
		Email:    email,
		Password: testPassword,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", name, err)
	}
	return usr
}

func createClass(t *testing.T, name, professorID string, studentIDs ...string) school.Class {
	t.Helper()
	cls, err := schoolSvc.Create(context.Background(), school.NewClass{
		Name:        name,
		ProfessorID: professorID,
		Students:    studentIDs,
	})
	if err != nil {
		t.Fatalf("creating class %s: %v", name, err)
	}
	return cls
}

func addGrade(t *testing.T, classID, studentID string, value int) school.Grade {
	t.Helper()
	grd, err := schoolSvc.AddGrade(context.Background(), classID, school.NewGrade{
		StudentID: studentID,
		Subject:   "Mathematics",
		Value:     value,
		Date:      "2026-02-14",
	})
	if err != nil {
		t.Fatalf("adding grade: %v", err)
	}
	return grd
}
