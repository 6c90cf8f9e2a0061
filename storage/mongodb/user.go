package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tsakani/shule/core/user"
)

const usersCollection = "users"

type (
	communicationDoc struct {
		ID         primitive.ObjectID `bson:"_id"`
		SenderID   primitive.ObjectID `bson:"sender_id"`
		SenderRole int                `bson:"sender_role"`
		Title      string             `bson:"title"`
		Content    string             `bson:"content"`
		Date       time.Time          `bson:"date"`
	}

	userDoc struct {
		ID             primitive.ObjectID `bson:"_id,omitempty"`
		Name           string             `bson:"name"`
		Email          string             `bson:"email"`
		Role           int                `bson:"role"`
		PasswordHash   []byte             `bson:"password_hash,omitempty"`
		Communications []communicationDoc `bson:"communications"`
		CreatedAt      time.Time          `bson:"created_at"`
		UpdatedAt      time.Time          `bson:"updated_at"`
		LastLogin      time.Time          `bson:"last_login,omitempty"`
	}
)

func newUserDoc(usr user.User) userDoc {
	doc := userDoc{
		Name:           usr.Name,
		Email:          usr.Email,
		Role:           int(usr.Role),
		PasswordHash:   usr.PasswordHash,
		Communications: make([]communicationDoc, 0, len(usr.Communications)),
		CreatedAt:      usr.CreatedAt,
		UpdatedAt:      usr.UpdatedAt,
		LastLogin:      usr.LastLogin,
	}
	for _, com := range usr.Communications {
		doc.Communications = append(doc.Communications, newCommunicationDoc(com))
	}
	return doc
}

func (doc userDoc) toUser() user.User {
	usr := user.User{
		ID:             doc.ID.Hex(),
		Name:           doc.Name,
		Email:          doc.Email,
		Role:           user.Role(doc.Role),
		PasswordHash:   doc.PasswordHash,
		Communications: make([]user.Communication, 0, len(doc.Communications)),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		LastLogin:      doc.LastLogin,
	}
	for _, com := range doc.Communications {
		usr.Communications = append(usr.Communications, com.toCommunication())
	}
	return usr
}

func newCommunicationDoc(com user.Communication) communicationDoc {
	doc := communicationDoc{
		SenderRole: int(com.SenderRole),
		Title:      com.Title,
		Content:    com.Content,
		Date:       com.Date,
	}
	doc.ID, _ = primitive.ObjectIDFromHex(com.ID)
	doc.SenderID, _ = primitive.ObjectIDFromHex(com.SenderID)
	return doc
}

func (doc communicationDoc) toCommunication() user.Communication {
	return user.Communication{
		ID:         doc.ID.Hex(),
		SenderID:   doc.SenderID.Hex(),
		SenderRole: user.Role(doc.SenderRole),
		Title:      doc.Title,
		Content:    doc.Content,
		Date:       doc.Date,
	}
}

// noSecretsProjection hides credential material on every read that does not
// explicitly need it.
var noSecretsProjection = bson.M{"password_hash": 0}

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *mongo.Database) user.Repository {
	return &userRepository{coll: db.Collection(usersCollection)}
}

func (repo *userRepository) IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	filter := bson.M{"email": email}
	if len(excludedIDs) > 0 {
		excluded := make([]primitive.ObjectID, 0, len(excludedIDs))
		for _, id := range excludedIDs {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				excluded = append(excluded, oid)
			}
		}
		filter["_id"] = bson.M{"$nin": excluded}
	}

	err := repo.coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	switch {
	case err == nil:
		return user.ErrEmailExists
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil
	default:
		return errors.Wrap(err, "checking email uniqueness")
	}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc := newUserDoc(usr)
	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toUser(), nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	return repo.find(ctx, bson.M{})
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := bson.M{}
	if filter.Email != "" {
		query["email"] = filter.Email
	}
	if filter.Role != nil {
		query["role"] = int(*filter.Role)
	}
	return repo.find(ctx, query)
}

func (repo *userRepository) find(ctx context.Context, query bson.M) ([]user.User, error) {
	cur, err := repo.coll.Find(ctx, query, options.Find().SetProjection(noSecretsProjection))
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}
	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}

	var doc userDoc
	err = repo.coll.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(noSecretsProjection)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by id")
	}
	return doc.toUser(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var doc userDoc
	err := repo.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by email")
	}
	return doc.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, id string, upd user.UpdateUser, passwordHash []byte) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}

	patch := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		patch["name"] = *upd.Name
	}
	if upd.Email != nil {
		patch["email"] = *upd.Email
	}
	if upd.Role != nil {
		patch["role"] = int(*upd.Role)
	}
	if passwordHash != nil {
		patch["password_hash"] = passwordHash
	}

	var doc userDoc
	err = repo.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": patch},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(noSecretsProjection),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return doc.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
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
	return errors.Wrap(err, "deleting users")
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}

	var doc userDoc
	err = repo.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"last_login": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(noSecretsProjection),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return doc.toUser(), nil
}

func (repo *userRepository) AddCommunication(ctx context.Context, userID string, com user.Communication) (user.Communication, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return user.Communication{}, user.ErrNotFound
	}

	com.ID = primitive.NewObjectID().Hex()
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$push": bson.M{"communications": newCommunicationDoc(com)}})
	if err != nil {
		return user.Communication{}, errors.Wrap(err, "pushing communication")
	}
	if res.MatchedCount == 0 {
		return user.Communication{}, user.ErrNotFound
	}
	return com, nil
}

func (repo *userRepository) GetCommunication(ctx context.Context, userID, comID string) (user.Communication, error) {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return user.Communication{}, user.ErrNotFound
	}
	comOID, err := primitive.ObjectIDFromHex(comID)
	if err != nil {
		return user.Communication{}, user.ErrNotFound
	}

	var doc userDoc
	err = repo.coll.FindOne(
		ctx,
		bson.M{"_id": userOID, "communications._id": comOID},
		options.FindOne().SetProjection(bson.M{"communications.$": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.Communication{}, user.ErrNotFound
		}
		return user.Communication{}, errors.Wrap(err, "getting communication")
	}
	if len(doc.Communications) == 0 {
		return user.Communication{}, user.ErrNotFound
	}
	return doc.Communications[0].toCommunication(), nil
}

func (repo *userRepository) DeleteCommunication(ctx context.Context, userID, comID string) error {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return user.ErrNotFound
	}
	comOID, err := primitive.ObjectIDFromHex(comID)
	if err != nil {
		return user.ErrNotFound
	}

	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": userOID}, bson.M{"$pull": bson.M{"communications": bson.M{"_id": comOID}}})
	if err != nil {
		return errors.Wrap(err, "pulling communication")
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) QueryCommunications(ctx context.Context, filter user.CommunicationFilter) ([]user.Communication, error) {
	query := bson.M{}
	if filter.RecipientID != "" {
		oid, err := primitive.ObjectIDFromHex(filter.RecipientID)
		if err != nil {
			return nil, user.ErrNotFound
		}
		query["_id"] = oid
	}
	if filter.SenderRole != nil {
		query["communications.sender_role"] = int(*filter.SenderRole)
	}

	cur, err := repo.coll.Find(ctx, query, options.Find().SetProjection(bson.M{"communications": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "querying communications")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding communications")
	}

	coms := make([]user.Communication, 0)
	for _, doc := range docs {
		for _, com := range doc.Communications {
			if filter.SenderRole != nil && com.SenderRole != int(*filter.SenderRole) {
				continue
			}
			coms = append(coms, com.toCommunication())
		}
	}
	return coms, nil
}
