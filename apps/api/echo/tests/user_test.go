package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echoapi "github.com/tsakani/shule/apps/api/echo"
	"github.com/tsakani/shule/core/user"
)

func TestUserLogin(t *testing.T) {
	resetState()
	usr := createUser(t, "Amina Joseph", user.RoleSecretary)

	t.Run("valid credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := []byte(`{"email": "` + usr.Email + `", "password": "` + testPassword + `"}`)
		server.ServeHTTP(rec, newRequest(http.MethodPost, "/login", body))

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp echoapi.TokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.AccessToken == "" || resp.RefreshToken == "" {
			t.Errorf("expected both tokens, got %+v", resp)
		}

		// the access token carries the user's identity
		claims, err := echoapi.NewTokenCodec(conf).Verify(resp.AccessToken, echoapi.AccessToken)
		if err != nil {
			t.Fatalf("verifying access token: %v", err)
		}
		if claims.Subject != usr.ID || claims.Email != usr.Email || claims.Role != usr.Role {
			t.Errorf("claims = %+v; expected identity of %+v", claims, usr)
		}

		// last login is stamped
		fresh, err := userSvc.GetByID(context.Background(), usr.ID)
		if err != nil {
			t.Fatalf("getting user: %v", err)
		}
		if fresh.LastLogin.IsZero() {
			t.Error("expected LastLogin to be stamped")
		}
	})

	tests := []httpTest{
		{
			name:         "wrong password",
			req:          newRequest(http.MethodPost, "/login", []byte(`{"email": "`+usr.Email+`", "password": "wr0ng-Pas$word"}`)),
			expectedCode: http.StatusUnauthorized,
			expectedData: errJSON("authentication failed"),
		},
		{
			name:         "unknown email",
			req:          newRequest(http.MethodPost, "/login", []byte(`{"email": "ghost@shule.org", "password": "`+testPassword+`"}`)),
			expectedCode: http.StatusUnauthorized,
			expectedData: errJSON("authentication failed"),
		},
		{
			name:         "missing fields",
			req:          newRequest(http.MethodPost, "/login", []byte(`{}`)),
			expectedCode: http.StatusUnprocessableEntity,
		},
	}
	runHTTPTests(t, tests)
}

func TestTokenRefresh(t *testing.T) {
	resetState()
	usr := createUser(t, "Neo Dlamini", user.RoleProfessor)
	codec := echoapi.NewTokenCodec(conf)

	refresh, err := codec.Issue(echoapi.GetUserClaims(usr), echoapi.RefreshToken)
	if err != nil {
		t.Fatalf("issuing refresh token: %v", err)
	}

	t.Run("valid refresh token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := []byte(`{"refreshToken": "` + refresh + `"}`)
		server.ServeHTTP(rec, newRequest(http.MethodPost, "/login/refresh", body))

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp echoapi.TokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.RefreshToken != "" {
			t.Error("refresh flow must not mint a new refresh token")
		}

		// the re-issued access token carries identical identity claims
		claims, err := codec.Verify(resp.AccessToken, echoapi.AccessToken)
		if err != nil {
			t.Fatalf("verifying access token: %v", err)
		}
		if claims.Subject != usr.ID || claims.Email != usr.Email || claims.Role != usr.Role {
			t.Errorf("claims = %+v; expected identity of %+v", claims, usr)
		}
	})

	access, err := codec.Issue(echoapi.GetUserClaims(usr), echoapi.AccessToken)
	if err != nil {
		t.Fatalf("issuing access token: %v", err)
	}
	tests := []httpTest{
		{
			name:         "garbage token",
			req:          newRequest(http.MethodPost, "/login/refresh", []byte(`{"refreshToken": "aaa.bbb.ccc"}`)),
			expectedCode: http.StatusUnauthorized,
			expectedData: errJSON("invalid refresh token"),
		},
		{
			name:         "access token is not a refresh token",
			req:          newRequest(http.MethodPost, "/login/refresh", []byte(`{"refreshToken": "`+access+`"}`)),
			expectedCode: http.StatusUnauthorized,
			expectedData: errJSON("invalid refresh token"),
		},
		{
			name:         "missing token",
			req:          newRequest(http.MethodPost, "/login/refresh", []byte(`{}`)),
			expectedCode: http.StatusUnprocessableEntity,
		},
	}
	runHTTPTests(t, tests)
}

func TestYourself(t *testing.T) {
	resetState()
	usr := createUser(t, "Lindiwe Moyo", user.RoleStudent)

	tests := []httpTest{
		{
			name:         "no token",
			req:          newRequest(http.MethodGet, "/yourself", nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("authentication required"),
		},
		{
			name:         "own profile",
			req:          newAuthRequest(http.MethodGet, "/yourself", getToken(t, usr), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, usr),
		},
	}
	runHTTPTests(t, tests)
}

func TestUserQuery(t *testing.T) {
	resetState()
	student := createUser(t, "Thabo Nkosi", user.RoleStudent)
	professor := createUser(t, "Neo Dlamini", user.RoleProfessor)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)

	all, err := userSvc.QueryAll(context.Background())
	if err != nil {
		t.Fatalf("querying users: %v", err)
	}
	studentRole := user.RoleStudent
	students, err := userSvc.Filter(context.Background(), user.QueryFilter{Role: &studentRole})
	if err != nil {
		t.Fatalf("filtering users: %v", err)
	}

	tests := []httpTest{
		{
			name:         "no token",
			req:          newRequest(http.MethodGet, "/users", nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("authentication required"),
		},
		{
			name:         "secretary sees all",
			req:          newAuthRequest(http.MethodGet, "/users", getToken(t, secretary), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, all),
		},
		{
			name:         "secretary filters by role",
			req:          newAuthRequest(http.MethodGet, "/users?role=0", getToken(t, secretary), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, students),
		},
		{
			name:         "student bare listing denied",
			req:          newAuthRequest(http.MethodGet, "/users", getToken(t, student), nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "professor bare listing denied",
			req:          newAuthRequest(http.MethodGet, "/users", getToken(t, professor), nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "professor lists students",
			req:          newAuthRequest(http.MethodGet, "/users?role=0", getToken(t, professor), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, students),
		},
		{
			name:         "professor cannot list secretaries",
			req:          newAuthRequest(http.MethodGet, "/users?role=2", getToken(t, professor), nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "student self-scoped listing",
			req:          newAuthRequest(http.MethodGet, "/users?role=0", getToken(t, student), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, []user.User{student}),
		},
	}
	runHTTPTests(t, tests)
}

func TestUserCreate(t *testing.T) {
	resetState()
	professor := createUser(t, "Neo Dlamini", user.RoleProfessor)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)

	newUserBody := func(email string) []byte {
		return []byte(`{"name": "Sipho Zulu", "email": "` + email + `", "password": "` + testPassword + `", "role": 0}`)
	}

	t.Run("secretary creates user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, newAuthRequest(http.MethodPost, "/users", getToken(t, secretary), newUserBody("sipho.zulu@shule.org")))

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var created user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if loc := rec.Header().Get("Location"); loc != "users/"+created.ID {
			t.Errorf("Location = %q; expected %q", loc, "users/"+created.ID)
		}
	})

	t.Run("validation failures are field errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := []byte(`{"name": "123", "email": "nope", "role": 99}`)
		server.ServeHTTP(rec, newAuthRequest(http.MethodPost, "/users", getToken(t, secretary), body))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
		}
		var resp struct {
			Errors map[string]string `json:"errors"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		for _, field := range []string{"name", "email", "password", "role"} {
			if _, ok := resp.Errors[field]; !ok {
				t.Errorf("expected a field error for %q, got %v", field, resp.Errors)
			}
		}
	})

	tests := []httpTest{
		{
			name:         "professor denied",
			req:          newAuthRequest(http.MethodPost, "/users", getToken(t, professor), newUserBody("other@shule.org")),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "duplicate email",
			req:          newAuthRequest(http.MethodPost, "/users", getToken(t, secretary), newUserBody(professor.Email)),
			expectedCode: http.StatusConflict,
			expectedData: errJSON("a user with this email already exists"),
		},
		{
			name:         "bulk patch not allowed",
			req:          newAuthRequest(http.MethodPatch, "/users", getToken(t, secretary), []byte(`{}`)),
			expectedCode: http.StatusMethodNotAllowed,
			expectedData: errJSON("method not allowed"),
		},
		{
			name:         "bulk delete not allowed",
			req:          newAuthRequest(http.MethodDelete, "/users", getToken(t, secretary), nil),
			expectedCode: http.StatusMethodNotAllowed,
			expectedData: errJSON("method not allowed"),
		},
	}
	runHTTPTests(t, tests)
}

func TestUserRetrieve(t *testing.T) {
	resetState()
	student := createUser(t, "Thabo Nkosi", user.RoleStudent)
	other := createUser(t, "Lindiwe Moyo", user.RoleStudent)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)

	tests := []httpTest{
		{
			name:         "self",
			req:          newAuthRequest(http.MethodGet, "/users/"+student.ID, getToken(t, student), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, student),
		},
		{
			name:         "secretary",
			req:          newAuthRequest(http.MethodGet, "/users/"+student.ID, getToken(t, secretary), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, student),
		},
		{
			name:         "other student denied",
			req:          newAuthRequest(http.MethodGet, "/users/"+student.ID, getToken(t, other), nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "malformed id",
			req:          newAuthRequest(http.MethodGet, "/users/hello-world", getToken(t, secretary), nil),
			expectedCode: http.StatusNotFound,
			expectedData: errJSON("not found"),
		},
		{
			name:         "absent id",
			req:          newAuthRequest(http.MethodGet, "/users/5ff0c11f2f37d8b2c4e9a301", getToken(t, secretary), nil),
			expectedCode: http.StatusNotFound,
			expectedData: errJSON("not found"),
		},
	}
	runHTTPTests(t, tests)
}

func TestUserUpdate(t *testing.T) {
	resetState()
	student := createUser(t, "Thabo Nkosi", user.RoleStudent)
	other := createUser(t, "Lindiwe Moyo", user.RoleStudent)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)

	t.Run("empty patch short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, newAuthRequest(http.MethodPatch, "/users/"+student.ID, getToken(t, secretary), []byte(`{}`)))

		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusNoContent, rec.Body.String())
		}
		fresh, err := userSvc.GetByID(context.Background(), student.ID)
		if err != nil {
			t.Fatalf("getting user: %v", err)
		}
		if fresh.Name != student.Name || !fresh.UpdatedAt.Equal(student.UpdatedAt) {
			t.Errorf("expected resource unchanged, got %+v", fresh)
		}
	})

	t.Run("invalid fields are dropped, valid ones applied", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := []byte(`{"name": "Thabo N. Nkosi", "role": 99}`)
		server.ServeHTTP(rec, newAuthRequest(http.MethodPatch, "/users/"+student.ID, getToken(t, secretary), body))

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		fresh, err := userSvc.GetByID(context.Background(), student.ID)
		if err != nil {
			t.Fatalf("getting user: %v", err)
		}
		if fresh.Name != "Thabo N. Nkosi" {
			t.Errorf("Name = %q; expected the patched value", fresh.Name)
		}
		if fresh.Role != user.RoleStudent {
			t.Errorf("Role = %v; out-of-range role must be dropped", fresh.Role)
		}
	})

	t.Run("all fields invalid short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := []byte(`{"role": 99, "email": "not-an-email", "unknown": true}`)
		server.ServeHTTP(rec, newAuthRequest(http.MethodPatch, "/users/"+student.ID, getToken(t, secretary), body))

		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusNoContent, rec.Body.String())
		}
	})

	tests := []httpTest{
		{
			name:         "other student denied",
			req:          newAuthRequest(http.MethodPatch, "/users/"+student.ID, getToken(t, other), []byte(`{"name": "Hacked"}`)),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "email uniqueness re-checked",
			req:          newAuthRequest(http.MethodPatch, "/users/"+student.ID, getToken(t, secretary), []byte(`{"email": "`+other.Email+`"}`)),
			expectedCode: http.StatusConflict,
			expectedData: errJSON("a user with this email already exists"),
		},
	}
	runHTTPTests(t, tests)
}

func TestUserDestroy(t *testing.T) {
	resetState()
	student := createUser(t, "Thabo Nkosi", user.RoleStudent)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)

	tests := []httpTest{
		{
			name:         "self delete denied",
			req:          newAuthRequest(http.MethodDelete, "/users/"+student.ID, getToken(t, student), nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "secretary deletes",
			req:          newAuthRequest(http.MethodDelete, "/users/"+student.ID, getToken(t, secretary), nil),
			expectedCode: http.StatusNoContent,
		},
	}
	runHTTPTests(t, tests)

	if _, err := userSvc.GetByID(context.Background(), student.ID); !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected user gone, got err = %v", err)
	}
}
