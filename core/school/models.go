package school

import (
	"time"

	"github.com/tsakani/shule/core"
)

type (
	// Grade is a single mark embedded in a class document. Date keeps the
	// YYYY-MM-DD (or YYYY/MM/DD) string form it was submitted with.
	Grade struct {
		ID        string `json:"id"`
		StudentID string `json:"student_id"`
		Subject   string `json:"subject"`
		Value     int    `json:"value"`
		Date      string `json:"date"`
	}

	Class struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		ProfessorID string    `json:"professor_id,omitempty"`
		Students    []string  `json:"students"`
		Grades      []Grade   `json:"grades"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}
)

// HasStudent reports whether the given user id is enrolled in the class.
func (c Class) HasStudent(id string) bool {
	for _, sid := range c.Students {
		if sid == id {
			return true
		}
	}
	return false
}

// IsTaughtBy reports whether the given user id is the class's professor.
func (c Class) IsTaughtBy(id string) bool {
	return c.ProfessorID != "" && c.ProfessorID == id
}

type (
	NewClass struct {
		Name        string   `json:"name"`
		ProfessorID string   `json:"professor_id"`
		Students    []string `json:"students"`
	}

	// UpdateClass defines what may change on an existing class. Nil fields
	// are left untouched.
	UpdateClass struct {
		Name        *string
		ProfessorID *string
		Students    *[]string
	}

	NewGrade struct {
		StudentID string `json:"student_id"`
		Subject   string `json:"subject"`
		Value     int    `json:"value"`
		Date      string `json:"date"`
	}

	UpdateGrade struct {
		Subject *string
		Value   *int
		Date    *string
	}

	QueryFilter struct {
		ProfessorID string
		StudentID   string
	}

	// GradeFilter scopes grade listings within one class.
	GradeFilter struct {
		StudentID string
	}
)

// Field-constraint tables consulted by the validation middleware.
var (
	CreateSchema = core.Schema{
		"name":         {Tag: "nonnumstr", Required: true},
		"professor_id": {Tag: "objectid"},
		"students":     {Tag: "objectids"},
	}

	UpdateSchema = core.Schema{
		"name":         {Tag: "nonnumstr"},
		"professor_id": {Tag: "objectid"},
		"students":     {Tag: "objectids"},
	}

	GradeCreateSchema = core.Schema{
		"student_id": {Tag: "objectid", Required: true},
		"subject":    {Tag: "nonnumstr", Required: true},
		"value":      {Tag: "intstr", Required: true},
		"date":       {Tag: "datestr", Required: true},
	}

	GradeUpdateSchema = core.Schema{
		"subject": {Tag: "nonnumstr"},
		"value":   {Tag: "intstr"},
		"date":    {Tag: "datestr"},
	}
)
