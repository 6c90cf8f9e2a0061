package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tsakani/shule/core/school"
	"github.com/tsakani/shule/core/user"
)

func TestClassQuery(t *testing.T) {
	resetState()
	student := createUser(t, "Thabo Nkosi", user.RoleStudent)
	outsider := createUser(t, "Lindiwe Moyo", user.RoleStudent)
	professor := createUser(t, "Neo Dlamini", user.RoleProfessor)
	colleague := createUser(t, "Zanele Khumalo", user.RoleProfessor)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)

	taught := createClass(t, "5A", professor.ID, student.ID)
	other := createClass(t, "6B", colleague.ID, outsider.ID)

	all, err := schoolSvc.QueryAll(context.Background())
	if err != nil {
		t.Fatalf("querying classes: %v", err)
	}

	tests := []httpTest{
		{
			name:         "no token",
			req:          newRequest(http.MethodGet, "/classes", nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("authentication required"),
		},
		{
			name:         "secretary sees all",
			req:          newAuthRequest(http.MethodGet, "/classes", getToken(t, secretary), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, all),
		},
		{
			name:         "professor sees taught classes",
			req:          newAuthRequest(http.MethodGet, "/classes", getToken(t, professor), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, []school.Class{taught}),
		},
		{
			name:         "student sees attended classes",
			req:          newAuthRequest(http.MethodGet, "/classes", getToken(t, outsider), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, []school.Class{other}),
		},
	}
	runHTTPTests(t, tests)
}

func TestClassCreate(t *testing.T) {
	resetState()
	professor := createUser(t, "Neo Dlamini", user.RoleProfessor)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)

	t.Run("secretary creates class", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, newAuthRequest(http.MethodPost, "/classes", getToken(t, secretary), []byte(`{"name": "5A"}`)))

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var created school.Class
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if loc := rec.Header().Get("Location"); loc != "classes/"+created.ID {
			t.Errorf("Location = %q; expected %q", loc, "classes/"+created.ID)
		}
	})

	tests := []httpTest{
		{
			name:         "professor denied",
			req:          newAuthRequest(http.MethodPost, "/classes", getToken(t, professor), []byte(`{"name": "5A"}`)),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "numeric-only name rejected",
			req:          newAuthRequest(http.MethodPost, "/classes", getToken(t, secretary), []byte(`{"name": "12345"}`)),
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "malformed student ids rejected",
			req:          newAuthRequest(http.MethodPost, "/classes", getToken(t, secretary), []byte(`{"name": "5A", "students": ["nope"]}`)),
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name:         "bulk patch not allowed",
			req:          newAuthRequest(http.MethodPatch, "/classes", getToken(t, secretary), []byte(`{}`)),
			expectedCode: http.StatusMethodNotAllowed,
			expectedData: errJSON("method not allowed"),
		},
		{
			name:         "bulk delete not allowed",
			req:          newAuthRequest(http.MethodDelete, "/classes", getToken(t, secretary), nil),
			expectedCode: http.StatusMethodNotAllowed,
			expectedData: errJSON("method not allowed"),
		},
	}
	runHTTPTests(t, tests)
}

func TestClassRetrieve(t *testing.T) {
	resetState()
	student := createUser(t, "Thabo Nkosi", user.RoleStudent)
	outsider := createUser(t, "Lindiwe Moyo", user.RoleStudent)
	professor := createUser(t, "Neo Dlamini", user.RoleProfessor)
	colleague := createUser(t, "Zanele Khumalo", user.RoleProfessor)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)

	cls := createClass(t, "5A", professor.ID, student.ID)

	tests := []httpTest{
		{
			name:         "secretary",
			req:          newAuthRequest(http.MethodGet, "/classes/"+cls.ID, getToken(t, secretary), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, cls),
		},
		{
			name:         "teaching professor",
			req:          newAuthRequest(http.MethodGet, "/classes/"+cls.ID, getToken(t, professor), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, cls),
		},
		{
			name:         "enrolled student",
			req:          newAuthRequest(http.MethodGet, "/classes/"+cls.ID, getToken(t, student), nil),
			expectedCode: http.StatusOK,
			expectedData: marchallObj(t, cls),
		},
		{
			name:         "non-teaching professor denied",
			req:          newAuthRequest(http.MethodGet, "/classes/"+cls.ID, getToken(t, colleague), nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "non-enrolled student denied",
			req:          newAuthRequest(http.MethodGet, "/classes/"+cls.ID, getToken(t, outsider), nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		// malformed and absent ids are indistinguishable
		{
			name:         "malformed id",
			req:          newAuthRequest(http.MethodGet, "/classes/hello-world", getToken(t, secretary), nil),
			expectedCode: http.StatusNotFound,
			expectedData: errJSON("not found"),
		},
		{
			name:         "absent id",
			req:          newAuthRequest(http.MethodGet, "/classes/5ff0c11f2f37d8b2c4e9a301", getToken(t, secretary), nil),
			expectedCode: http.StatusNotFound,
			expectedData: errJSON("not found"),
		},
	}
	runHTTPTests(t, tests)
}

func TestClassUpdate(t *testing.T) {
	resetState()
	professor := createUser(t, "Neo Dlamini", user.RoleProfessor)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)
	cls := createClass(t, "5A", professor.ID)

	t.Run("empty patch short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, newAuthRequest(http.MethodPatch, "/classes/"+cls.ID, getToken(t, secretary), []byte(`{}`)))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusNoContent, rec.Body.String())
		}
	})

	t.Run("invalid fields are dropped, valid ones applied", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := []byte(`{"name": "5B", "professor_id": "not-an-id"}`)
		server.ServeHTTP(rec, newAuthRequest(http.MethodPatch, "/classes/"+cls.ID, getToken(t, secretary), body))

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; expected %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
		}
		fresh, err := schoolSvc.GetByID(context.Background(), cls.ID)
		if err != nil {
			t.Fatalf("getting class: %v", err)
		}
		if fresh.Name != "5B" {
			t.Errorf("Name = %q; expected the patched value", fresh.Name)
		}
		if fresh.ProfessorID != professor.ID {
			t.Errorf("ProfessorID = %q; malformed id must be dropped", fresh.ProfessorID)
		}
	})

	tests := []httpTest{
		{
			name:         "professor denied",
			req:          newAuthRequest(http.MethodPatch, "/classes/"+cls.ID, getToken(t, professor), []byte(`{"name": "6C"}`)),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
	}
	runHTTPTests(t, tests)
}

func TestClassDestroy(t *testing.T) {
	resetState()
	professor := createUser(t, "Neo Dlamini", user.RoleProfessor)
	secretary := createUser(t, "Amina Joseph", user.RoleSecretary)
	cls := createClass(t, "5A", professor.ID)

	tests := []httpTest{
		{
			name:         "professor denied",
			req:          newAuthRequest(http.MethodDelete, "/classes/"+cls.ID, getToken(t, professor), nil),
			expectedCode: http.StatusForbidden,
			expectedData: errJSON("permission denied"),
		},
		{
			name:         "secretary deletes",
			req:          newAuthRequest(http.MethodDelete, "/classes/"+cls.ID, getToken(t, secretary), nil),
			expectedCode: http.StatusNoContent,
		},
	}
	runHTTPTests(t, tests)

	if _, err := schoolSvc.GetByID(context.Background(), cls.ID); err == nil {
		t.Error("expected class gone")
	}
}
