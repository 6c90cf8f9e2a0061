package inmemdb

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tsakani/shule/core/school"
)

type classRepository struct {
	db *classTable
}

var _ school.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) school.Repository {
	return &classRepository{db: db.school}
}

// query returns all classes sorted by id; object ids are time-prefixed so
// this approximates insertion order.
func (repo *classRepository) query() []school.Class {
	classes := make([]school.Class, 0, len(repo.db.table))
	for _, cls := range repo.db.table {
		classes = append(classes, *cls)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	return classes
}

func (repo *classRepository) IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (repo *classRepository) CreateClass(_ context.Context, cls school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls.ID = primitive.NewObjectID().Hex()
	repo.db.table[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) QueryAllClasses(_ context.Context) ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *classRepository) FilterClasses(_ context.Context, filter school.QueryFilter) ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]school.Class, 0)
	for _, cls := range repo.query() {
		if filter.ProfessorID != "" && cls.ProfessorID != filter.ProfessorID {
			continue
		}
		if filter.StudentID != "" && !cls.HasStudent(filter.StudentID) {
			continue
		}
		classes = append(classes, cls)
	}
	return classes, nil
}

func (repo *classRepository) GetClassByID(_ context.Context, id string) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.table[id]; ok {
		return *cls, nil
	}
	return school.Class{}, school.ErrNotFound
}

func (repo *classRepository) UpdateClass(_ context.Context, id string, upd school.UpdateClass) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls, ok := repo.db.table[id]
	if !ok {
		return school.Class{}, school.ErrNotFound
	}
	if upd.Name != nil {
		cls.Name = *upd.Name
	}
	if upd.ProfessorID != nil {
		cls.ProfessorID = *upd.ProfessorID
	}
	if upd.Students != nil {
		cls.Students = *upd.Students
	}
	cls.UpdatedAt = time.Now().UTC()
	return *cls, nil
}

func (repo *classRepository) DeleteClassesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *classRepository) AddGrade(_ context.Context, classID string, grd school.Grade) (school.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls, ok := repo.db.table[classID]
	if !ok {
		return school.Grade{}, school.ErrNotFound
	}
	grd.ID = primitive.NewObjectID().Hex()
	cls.Grades = append(cls.Grades, grd)
	return grd, nil
}

func (repo *classRepository) GetGrade(_ context.Context, classID, gradeID string) (school.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cls, ok := repo.db.table[classID]
	if !ok {
		return school.Grade{}, school.ErrNotFound
	}
	for _, grd := range cls.Grades {
		if grd.ID == gradeID {
			return grd, nil
		}
	}
	return school.Grade{}, school.ErrGradeNotFound
}

func (repo *classRepository) UpdateGrade(_ context.Context, classID, gradeID string, upd school.UpdateGrade) (school.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls, ok := repo.db.table[classID]
	if !ok {
		return school.Grade{}, school.ErrNotFound
	}
	for i := range cls.Grades {
		if cls.Grades[i].ID != gradeID {
			continue
		}
		if upd.Subject != nil {
			cls.Grades[i].Subject = *upd.Subject
		}
		if upd.Value != nil {
			cls.Grades[i].Value = *upd.Value
		}
		if upd.Date != nil {
			cls.Grades[i].Date = *upd.Date
		}
		cls.UpdatedAt = time.Now().UTC()
		return cls.Grades[i], nil
	}
	return school.Grade{}, school.ErrGradeNotFound
}

func (repo *classRepository) DeleteGrade(_ context.Context, classID, gradeID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls, ok := repo.db.table[classID]
	if !ok {
		return school.ErrNotFound
	}
	grades := cls.Grades[:0]
	for _, grd := range cls.Grades {
		if grd.ID != gradeID {
			grades = append(grades, grd)
		}
	}
	cls.Grades = grades
	return nil
}
