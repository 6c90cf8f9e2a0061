package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tsakani/shule/core/school"
)

const classesCollection = "classes"

type (
	gradeDoc struct {
		ID        primitive.ObjectID `bson:"_id"`
		StudentID primitive.ObjectID `bson:"student_id"`
		Subject   string             `bson:"subject"`
		Value     int                `bson:"value"`
		Date      string             `bson:"date"`
	}

	classDoc struct {
		ID          primitive.ObjectID   `bson:"_id,omitempty"`
		Name        string               `bson:"name"`
		ProfessorID primitive.ObjectID   `bson:"professor_id,omitempty"`
		Students    []primitive.ObjectID `bson:"students"`
		Grades      []gradeDoc           `bson:"grades"`
		CreatedAt   time.Time            `bson:"created_at"`
		UpdatedAt   time.Time            `bson:"updated_at"`
	}
)

func newClassDoc(cls school.Class) classDoc {
	doc := classDoc{
		Name:      cls.Name,
		Students:  make([]primitive.ObjectID, 0, len(cls.Students)),
		Grades:    make([]gradeDoc, 0, len(cls.Grades)),
		CreatedAt: cls.CreatedAt,
		UpdatedAt: cls.UpdatedAt,
	}
	doc.ProfessorID, _ = primitive.ObjectIDFromHex(cls.ProfessorID)
	for _, sid := range cls.Students {
		if oid, err := primitive.ObjectIDFromHex(sid); err == nil {
			doc.Students = append(doc.Students, oid)
		}
	}
	for _, grd := range cls.Grades {
		doc.Grades = append(doc.Grades, newGradeDoc(grd))
	}
	return doc
}

func (doc classDoc) toClass() school.Class {
	cls := school.Class{
		ID:        doc.ID.Hex(),
		Name:      doc.Name,
		Students:  make([]string, 0, len(doc.Students)),
		Grades:    make([]school.Grade, 0, len(doc.Grades)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if !doc.ProfessorID.IsZero() {
		cls.ProfessorID = doc.ProfessorID.Hex()
	}
	for _, oid := range doc.Students {
		cls.Students = append(cls.Students, oid.Hex())
	}
	for _, grd := range doc.Grades {
		cls.Grades = append(cls.Grades, grd.toGrade())
	}
	return cls
}

func newGradeDoc(grd school.Grade) gradeDoc {
	doc := gradeDoc{
		Subject: grd.Subject,
		Value:   grd.Value,
		Date:    grd.Date,
	}
	doc.ID, _ = primitive.ObjectIDFromHex(grd.ID)
	doc.StudentID, _ = primitive.ObjectIDFromHex(grd.StudentID)
	return doc
}

func (doc gradeDoc) toGrade() school.Grade {
	return school.Grade{
		ID:        doc.ID.Hex(),
		StudentID: doc.StudentID.Hex(),
		Subject:   doc.Subject,
		Value:     doc.Value,
		Date:      doc.Date,
	}
}

type classRepository struct {
	coll *mongo.Collection
}

var _ school.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *mongo.Database) school.Repository {
	return &classRepository{coll: db.Collection(classesCollection)}
}

func (repo *classRepository) IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (repo *classRepository) CreateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	doc := newClassDoc(cls)
	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toClass(), nil
}

func (repo *classRepository) QueryAllClasses(ctx context.Context) ([]school.Class, error) {
	return repo.find(ctx, bson.M{})
}

func (repo *classRepository) FilterClasses(ctx context.Context, filter school.QueryFilter) ([]school.Class, error) {
	query := bson.M{}
	if filter.ProfessorID != "" {
		oid, err := primitive.ObjectIDFromHex(filter.ProfessorID)
		if err != nil {
			return []school.Class{}, nil
		}
		query["professor_id"] = oid
	}
	if filter.StudentID != "" {
		oid, err := primitive.ObjectIDFromHex(filter.StudentID)
		if err != nil {
			return []school.Class{}, nil
		}
		query["students"] = oid
	}
	return repo.find(ctx, query)
}

func (repo *classRepository) find(ctx context.Context, query bson.M) ([]school.Class, error) {
	cur, err := repo.coll.Find(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	var docs []classDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding classes")
	}
	classes := make([]school.Class, 0, len(docs))
	for _, doc := range docs {
		classes = append(classes, doc.toClass())
	}
	return classes, nil
}

func (repo *classRepository) GetClassByID(ctx context.Context, id string) (school.Class, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return school.Class{}, school.ErrNotFound
	}

	var doc classDoc
	err = repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return school.Class{}, school.ErrNotFound
		}
		return school.Class{}, errors.Wrap(err, "getting class by id")
	}
	return doc.toClass(), nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, id string, upd school.UpdateClass) (school.Class, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return school.Class{}, school.ErrNotFound
	}

	patch := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		patch["name"] = *upd.Name
	}
	if upd.ProfessorID != nil {
		profOID, err := primitive.ObjectIDFromHex(*upd.ProfessorID)
		if err != nil {
			return school.Class{}, school.ErrNotFound
		}
		patch["professor_id"] = profOID
	}
	if upd.Students != nil {
		students := make([]primitive.ObjectID, 0, len(*upd.Students))
		for _, sid := range *upd.Students {
			if sOID, err := primitive.ObjectIDFromHex(sid); err == nil {
				students = append(students, sOID)
			}
		}
		patch["students"] = students
	}

	var doc classDoc
	err = repo.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": patch},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return school.Class{}, school.ErrNotFound
		}
		return school.Class{}, errors.Wrap(err, "updating class")
	}
	return doc.toClass(), nil
}

func (repo *classRepository) DeleteClassesByID(ctx context.Context, ids ...string) error {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil
	}
	_, err := repo.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	return errors.Wrap(err, "deleting classes")
}

func (repo *classRepository) AddGrade(ctx context.Context, classID string, grd school.Grade) (school.Grade, error) {
	oid, err := primitive.ObjectIDFromHex(classID)
	if err != nil {
		return school.Grade{}, school.ErrNotFound
	}

	grd.ID = primitive.NewObjectID().Hex()
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$push": bson.M{"grades": newGradeDoc(grd)}})
	if err != nil {
		return school.Grade{}, errors.Wrap(err, "pushing grade")
	}
	if res.MatchedCount == 0 {
		return school.Grade{}, school.ErrNotFound
	}
	return grd, nil
}

func (repo *classRepository) GetGrade(ctx context.Context, classID, gradeID string) (school.Grade, error) {
	classOID, err := primitive.ObjectIDFromHex(classID)
	if err != nil {
		return school.Grade{}, school.ErrNotFound
	}
	gradeOID, err := primitive.ObjectIDFromHex(gradeID)
	if err != nil {
		return school.Grade{}, school.ErrGradeNotFound
	}

	var doc classDoc
	err = repo.coll.FindOne(
		ctx,
		bson.M{"_id": classOID, "grades._id": gradeOID},
		options.FindOne().SetProjection(bson.M{"grades.$": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return school.Grade{}, school.ErrGradeNotFound
		}
		return school.Grade{}, errors.Wrap(err, "getting grade")
	}
	if len(doc.Grades) == 0 {
		return school.Grade{}, school.ErrGradeNotFound
	}
	return doc.Grades[0].toGrade(), nil
}

func (repo *classRepository) UpdateGrade(ctx context.Context, classID, gradeID string, upd school.UpdateGrade) (school.Grade, error) {
	classOID, err := primitive.ObjectIDFromHex(classID)
	if err != nil {
		return school.Grade{}, school.ErrNotFound
	}
	gradeOID, err := primitive.ObjectIDFromHex(gradeID)
	if err != nil {
		return school.Grade{}, school.ErrGradeNotFound
	}

	patch := bson.M{"updated_at": time.Now().UTC()}
	if upd.Subject != nil {
		patch["grades.$.subject"] = *upd.Subject
	}
	if upd.Value != nil {
		patch["grades.$.value"] = *upd.Value
	}
	if upd.Date != nil {
		patch["grades.$.date"] = *upd.Date
	}

	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": classOID, "grades._id": gradeOID}, bson.M{"$set": patch})
	if err != nil {
		return school.Grade{}, errors.Wrap(err, "updating grade")
	}
	if res.MatchedCount == 0 {
		return school.Grade{}, school.ErrGradeNotFound
	}
	return repo.GetGrade(ctx, classID, gradeID)
}

func (repo *classRepository) DeleteGrade(ctx context.Context, classID, gradeID string) error {
	classOID, err := primitive.ObjectIDFromHex(classID)
	if err != nil {
		return school.ErrNotFound
	}
	gradeOID, err := primitive.ObjectIDFromHex(gradeID)
	if err != nil {
		return school.ErrGradeNotFound
	}

	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": classOID}, bson.M{"$pull": bson.M{"grades": bson.M{"_id": gradeOID}}})
	if err != nil {
		return errors.Wrap(err, "pulling grade")
	}
	if res.MatchedCount == 0 {
		return school.ErrNotFound
	}
	return nil
}
