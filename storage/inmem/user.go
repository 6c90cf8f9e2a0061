package inmemdb

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tsakani/shule/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

// query returns all users sorted by id; object ids are time-prefixed so
// this approximates insertion order.
func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (repo *userRepository) IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email == email && !contains(excludedIDs, usr.ID) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = primitive.NewObjectID().Hex()
	if usr.Communications == nil {
		usr.Communications = []user.Communication{}
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(_ context.Context) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return stripSecrets(repo.query()), nil
}

func (repo *userRepository) FilterUsers(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.query() {
		if filter.Email != "" && usr.Email != filter.Email {
			continue
		}
		if filter.Role != nil && usr.Role != *filter.Role {
			continue
		}
		users = append(users, usr)
	}
	return stripSecrets(users), nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		cpy := *usr
		cpy.PasswordHash = nil
		return cpy, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, id string, upd user.UpdateUser, passwordHash []byte) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if upd.Name != nil {
		usr.Name = *upd.Name
	}
	if upd.Email != nil {
		usr.Email = *upd.Email
	}
	if upd.Role != nil {
		usr.Role = *upd.Role
	}
	if passwordHash != nil {
		usr.PasswordHash = passwordHash
	}
	usr.UpdatedAt = time.Now().UTC()

	cpy := *usr
	cpy.PasswordHash = nil
	return cpy, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id string, at time.Time) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.LastLogin = at
	return *usr, nil
}

func (repo *userRepository) AddCommunication(_ context.Context, userID string, com user.Communication) (user.Communication, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[userID]
	if !ok {
		return user.Communication{}, user.ErrNotFound
	}
	com.ID = primitive.NewObjectID().Hex()
	usr.Communications = append(usr.Communications, com)
	return com, nil
}

func (repo *userRepository) GetCommunication(_ context.Context, userID, comID string) (user.Communication, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	usr, ok := repo.db.table[userID]
	if !ok {
		return user.Communication{}, user.ErrNotFound
	}
	for _, com := range usr.Communications {
		if com.ID == comID {
			return com, nil
		}
	}
	return user.Communication{}, user.ErrNotFound
}

func (repo *userRepository) DeleteCommunication(_ context.Context, userID, comID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[userID]
	if !ok {
		return user.ErrNotFound
	}
	coms := usr.Communications[:0]
	for _, com := range usr.Communications {
		if com.ID != comID {
			coms = append(coms, com)
		}
	}
	usr.Communications = coms
	return nil
}

func (repo *userRepository) QueryCommunications(_ context.Context, filter user.CommunicationFilter) ([]user.Communication, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	coms := make([]user.Communication, 0)
	for _, usr := range repo.query() {
		if filter.RecipientID != "" && usr.ID != filter.RecipientID {
			continue
		}
		for _, com := range usr.Communications {
			if filter.SenderRole != nil && com.SenderRole != *filter.SenderRole {
				continue
			}
			coms = append(coms, com)
		}
	}
	return coms, nil
}

func stripSecrets(users []user.User) []user.User {
	for i := range users {
		users[i].PasswordHash = nil
	}
	return users
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
