// Package inmemdb provides mutex-guarded in-memory repositories used by
// tests and local development without a running document store.
package inmemdb

import (
	"sync"

	"github.com/tsakani/shule/core/school"
	"github.com/tsakani/shule/core/user"
)

type (
	DB struct {
		user   *userTable
		school *classTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	classTable struct {
		sync.RWMutex
		table map[string]*school.Class
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		school: &classTable{table: make(map[string]*school.Class)},
	}
	return db, nil
}

// Reset drops all stored documents; test helper.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.school.Lock()
	db.school.table = make(map[string]*school.Class)
	db.school.Unlock()
}
