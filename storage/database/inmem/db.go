package inmemdb

import (
	"sort"
	"sync"

	"github.com/trezcool/insights/core/user"
)

type (
	DB struct {
		user *userTable
	}

	userTable struct {
		sync.RWMutex
		table    map[string]*user.User
		onChange func(users []user.User) error
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
	}
}

// OnUserChange registers a hook called with every user after each write, under the table lock.
// A hook error fails the write.
func (db *DB) OnUserChange(fn func(users []user.User) error) {
	db.user.Lock()
	defer db.user.Unlock()
	db.user.onChange = fn
}

// LoadUsers replaces the user table content.
func (db *DB) LoadUsers(users []user.User) {
	db.user.Lock()
	defer db.user.Unlock()
	db.user.table = make(map[string]*user.User, len(users))
	for i := range users {
		usr := users[i]
		db.user.table[usr.ID] = &usr
	}
}

// Users returns every user, oldest first.
func (db *DB) Users() []user.User {
	db.user.RLock()
	defer db.user.RUnlock()
	return db.user.all()
}

func (t *userTable) all() []user.User {
	users := make([]user.User, 0, len(t.table))
	for _, u := range t.table {
		users = append(users, *u)
	}
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

func (t *userTable) changed() error {
	if t.onChange == nil {
		return nil
	}
	return t.onChange(t.all())
}

// checkUnique must be called with the table lock held.
func (t *userTable) checkUnique(username, email string, excludedIDs ...string) error {
outer:
	for id, usr := range t.table {
		for _, exclID := range excludedIDs {
			if id == exclID {
				continue outer
			}
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}
