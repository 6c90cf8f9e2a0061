package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tsakani/shule/core"
)

var (
	ErrNotFound      = errors.New("class not found")
	ErrGradeNotFound = errors.New("grade not found")

	errNotEnrolled = errors.New("student is not enrolled in this class")
)

type (
	// Repository is the storage contract for classes and their embedded
	// grades. Absence is reported with the ErrNotFound sentinels.
	Repository interface {
		IsValidID(id string) bool
		CreateClass(ctx context.Context, cls Class) (Class, error)
		QueryAllClasses(ctx context.Context) ([]Class, error)
		// FilterClasses applies AND semantics on the set QueryFilter fields;
		// StudentID matches classes whose student list contains the id.
		FilterClasses(ctx context.Context, filter QueryFilter) ([]Class, error)
		GetClassByID(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, id string, upd UpdateClass) (Class, error)
		DeleteClassesByID(ctx context.Context, ids ...string) error

		AddGrade(ctx context.Context, classID string, grd Grade) (Grade, error)
		GetGrade(ctx context.Context, classID, gradeID string) (Grade, error)
		UpdateGrade(ctx context.Context, classID, gradeID string, upd UpdateGrade) (Grade, error)
		DeleteGrade(ctx context.Context, classID, gradeID string) error
	}

	Service interface {
		IsValidID(id string) bool
		Create(ctx context.Context, nc NewClass) (Class, error)
		QueryAll(ctx context.Context) ([]Class, error)
		Filter(ctx context.Context, filter QueryFilter) ([]Class, error)
		GetByID(ctx context.Context, id string) (Class, error)
		Update(ctx context.Context, id string, uc UpdateClass) (Class, error)
		Delete(ctx context.Context, ids ...string) error

		AddGrade(ctx context.Context, classID string, ng NewGrade) (Grade, error)
		QueryGrades(ctx context.Context, classID string, filter GradeFilter) ([]Grade, error)
		GetGrade(ctx context.Context, classID, gradeID string) (Grade, error)
		UpdateGrade(ctx context.Context, classID, gradeID string, ug UpdateGrade) (Grade, error)
		DeleteGrade(ctx context.Context, classID, gradeID string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) IsValidID(id string) bool {
	return svc.repo.IsValidID(id)
}

func (svc *service) Create(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	cls := Class{
		Name:        core.CleanString(nc.Name),
		ProfessorID: nc.ProfessorID,
		Students:    nc.Students,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cls.Students == nil {
		cls.Students = []string{}
	}
	if cls.Grades == nil {
		cls.Grades = []Grade{}
	}
	return svc.repo.CreateClass(ctx, cls)
}

func (svc *service) QueryAll(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryAllClasses(ctx)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]Class, error) {
	return svc.repo.FilterClasses(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClassByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClass) (Class, error) {
	if uc.Name != nil {
		name := core.CleanString(*uc.Name)
		uc.Name = &name
	}
	return svc.repo.UpdateClass(ctx, id, uc)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteClassesByID(ctx, ids...)
}

// AddGrade records a grade after confirming the target student is actually
// enrolled in the class; grading an outsider is a validation failure, not a
// lookup failure.
func (svc *service) AddGrade(ctx context.Context, classID string, ng NewGrade) (Grade, error) {
	cls, err := svc.repo.GetClassByID(ctx, classID)
	if err != nil {
		return Grade{}, err
	}
	if !cls.HasStudent(ng.StudentID) {
		return Grade{}, core.NewValidationError(errNotEnrolled, core.FieldError{Field: "student_id", Error: errNotEnrolled.Error()})
	}

	grd := Grade{
		StudentID: ng.StudentID,
		Subject:   core.CleanString(ng.Subject),
		Value:     ng.Value,
		Date:      ng.Date,
	}
	return svc.repo.AddGrade(ctx, classID, grd)
}

func (svc *service) QueryGrades(ctx context.Context, classID string, filter GradeFilter) ([]Grade, error) {
	cls, err := svc.repo.GetClassByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if filter.StudentID == "" {
		return cls.Grades, nil
	}
	grades := make([]Grade, 0, len(cls.Grades))
	for _, grd := range cls.Grades {
		if grd.StudentID == filter.StudentID {
			grades = append(grades, grd)
		}
	}
	return grades, nil
}

func (svc *service) GetGrade(ctx context.Context, classID, gradeID string) (Grade, error) {
	return svc.repo.GetGrade(ctx, classID, gradeID)
}

func (svc *service) UpdateGrade(ctx context.Context, classID, gradeID string, ug UpdateGrade) (Grade, error) {
	return svc.repo.UpdateGrade(ctx, classID, gradeID, ug)
}

func (svc *service) DeleteGrade(ctx context.Context, classID, gradeID string) error {
	return svc.repo.DeleteGrade(ctx, classID, gradeID)
}
