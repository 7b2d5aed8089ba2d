// Package jsonfiledb stores users in a flat users.json file.
// Files written by the first version of the dashboard (plaintext "pw", single "role") are upgraded on load.
package jsonfiledb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
	"github.com/trezcool/insights/storage/database/inmem"
)

type DB struct {
	path string
	mem  *inmemdb.DB
}

type fileUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	IsActive     *bool     `json:"is_active,omitempty"`
	Approved     *bool     `json:"approved,omitempty"`
	Role         string    `json:"role,omitempty"` // legacy single role
	Roles        []string  `json:"roles,omitempty"`
	Password     string    `json:"pw,omitempty"` // legacy plaintext password
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLogin    time.Time `json:"last_login"`
}

// Open loads the users file at path, creating its directory if missing. A missing file is an empty store.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating users dir")
	}

	db := &DB{path: path, mem: inmemdb.Open()}

	users, upgraded, err := load(path)
	if err != nil {
		return nil, err
	}
	db.mem.LoadUsers(users)
	db.mem.OnUserChange(db.save)

	if upgraded {
		if err = db.save(db.mem.Users()); err != nil {
			return nil, errors.Wrap(err, "saving upgraded users")
		}
	}
	return db, nil
}

// Mem returns the in-memory table backing the file.
func (db *DB) Mem() *inmemdb.DB {
	return db.mem
}

func NewUserRepository(db *DB) user.Repository {
	return inmemdb.NewUserRepository(db.mem)
}

func load(path string) ([]user.User, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "reading users file")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, false, nil
	}

	var entries []fileUser
	if err = json.Unmarshal(data, &entries); err != nil {
		return nil, false, errors.Wrap(err, "decoding users file")
	}

	var upgraded bool
	users := make([]user.User, 0, len(entries))
	for _, e := range entries {
		usr, up, err := e.toUser()
		if err != nil {
			return nil, false, err
		}
		upgraded = upgraded || up
		users = append(users, usr)
	}
	return users, upgraded, nil
}

func (e fileUser) toUser() (user.User, bool, error) {
	var upgraded bool
	usr := user.User{
		ID:           e.ID,
		Name:         core.NormalizeName(e.Name),
		Username:     e.Username,
		Email:        e.Email,
		IsActive:     e.IsActive,
		IsApproved:   e.Approved == nil || *e.Approved,
		Roles:        e.Roles,
		PasswordHash: []byte(e.PasswordHash),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		LastLogin:    e.LastLogin,
	}

	// legacy entries: id is the login name
	if usr.Username == "" {
		usr.Username = core.CleanString(e.ID, true /* lower */)
		usr.ID = uuid.New().String()
		upgraded = true
	}
	if len(usr.Roles) == 0 && e.Role != "" {
		usr.Roles = []string{strings.TrimSuffix(e.Role, ":") + ":"}
		upgraded = true
	}
	if len(usr.PasswordHash) == 0 && e.Password != "" {
		if err := usr.SetPassword(e.Password); err != nil {
			return user.User{}, false, errors.Wrap(err, "hashing legacy password")
		}
		upgraded = true
	}
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = time.Now().UTC()
		usr.UpdatedAt = usr.CreatedAt
	}
	return usr, upgraded, nil
}

func fromUser(usr user.User) fileUser {
	approved := usr.IsApproved
	return fileUser{
		ID:           usr.ID,
		Username:     usr.Username,
		Name:         usr.Name,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Approved:     &approved,
		Roles:        usr.Roles,
		PasswordHash: string(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    usr.LastLogin,
	}
}

// save writes users to a temp file then renames it over the users file.
func (db *DB) save(users []user.User) error {
	entries := make([]fileUser, 0, len(users))
	for _, usr := range users {
		entries = append(entries, fromUser(usr))
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding users")
	}

	tmp, err := os.CreateTemp(filepath.Dir(db.path), ".users-*.json")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), db.path), "renaming temp file")
}
