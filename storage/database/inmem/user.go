package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded = append(excluded, u.ID)
	}
	return repo.db.checkUnique(username, email, excluded...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.checkUnique(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}

	usr.ID = uuid.New().String()
	repo.db.table[usr.ID] = &usr
	if err := repo.db.changed(); err != nil {
		delete(repo.db.table, usr.ID)
		return user.User{}, errors.Wrap(err, "saving users")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	users := repo.db.all()
	repo.db.RUnlock()

	res := make([]user.User, 0, len(users))
	for _, usr := range users {
		if filter == nil || matches(usr, filter) {
			res = append(res, usr)
		}
	}

	ordering = user.CleanOrdering(ordering)
	sort.SliceStable(res, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(res[i], res[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return res, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	var uname, email string
	switch {
	case filter.Username != "":
		uname = filter.Username
	case filter.Email != "":
		email = filter.Email
	case len(filter.UsernameOrEmail) > 0:
		uname = filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
	default:
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.db.all() {
		if (uname != "" && usr.Username == uname) || (email != "" && usr.Email == email) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.db.checkUnique(usr.Username, usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}

	prev := *orig
	repo.db.table[usr.ID] = &usr
	if err := repo.db.changed(); err != nil {
		repo.db.table[usr.ID] = &prev
		return user.User{}, errors.Wrap(err, "saving users")
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	deleted := make(map[string]*user.User, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.table[id]; ok {
			deleted[id] = usr
			delete(repo.db.table, id)
		}
	}
	if len(deleted) == 0 {
		return 0, nil
	}
	if err := repo.db.changed(); err != nil {
		for id, usr := range deleted {
			repo.db.table[id] = usr
		}
		return 0, errors.Wrap(err, "saving users")
	}
	return len(deleted), nil
}

func matches(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(usr.Name), s) ||
			strings.Contains(strings.ToLower(usr.Username), s) ||
			strings.Contains(strings.ToLower(usr.Email), s)) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var found bool
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.Active() != *filter.IsActive {
		return false
	}
	if filter.IsApproved != nil && usr.IsApproved != *filter.IsApproved {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom.UTC()) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo.UTC()) {
		return false
	}
	return true
}

// compare returns -1, 0 or 1 comparing the `field` of a and b.
func compare(a, b user.User, field string) int {
	boolInt := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "is_active":
		return boolInt(a.Active()) - boolInt(b.Active())
	case "is_approved":
		return boolInt(a.IsApproved) - boolInt(b.IsApproved)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "last_login":
		return a.LastLogin.Compare(b.LastLogin)
	}
	return 0
}
