package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
)

const usersTable = "users"

var userColumns = []string{
	"id", "name", "username", "email", "is_active", "is_approved", "roles", "password_hash",
	"created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	IsActive     null.Bool   `db:"is_active"`
	IsApproved   bool        `db:"is_approved"`
	Roles        string      `db:"roles"`
	PasswordHash null.String `db:"password_hash"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type userRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if db.DriverName() == "postgres" {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &userRepository{db: db, sb: sb}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		IsApproved:   usr.IsApproved,
		Roles:        strings.Join(usr.Roles, ","),
		PasswordHash: null.NewString(string(usr.PasswordHash), len(usr.PasswordHash) > 0),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	var roles []string
	for _, role := range strings.Split(row.Roles, ",") {
		if role != "" {
			roles = append(roles, role)
		}
	}
	var hash []byte
	if row.PasswordHash.Valid {
		hash = []byte(row.PasswordHash.String)
	}
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive.Ptr(),
		IsApproved:   row.IsApproved,
		Roles:        roles,
		PasswordHash: hash,
		CreatedAt:    row.CreatedAt.Time.UTC(),
		UpdatedAt:    row.UpdatedAt.Time.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

// trapNoRowsErr maps sql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	cond := sq.Or{}
	if username != "" {
		cond = append(cond, sq.Eq{"username": username})
	}
	if email != "" {
		cond = append(cond, sq.Eq{"email": email})
	}
	if len(cond) == 0 {
		return nil
	}

	q := repo.sb.Select("username", "email").From(usersTable).Where(cond)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where(sq.NotEq{"id": ids})
	}

	query, args, err := q.Limit(1).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var found struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	if err = repo.db.GetContext(ctx, &found, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if username != "" && found.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}

	usr.ID = uuid.New().String()
	row := repo.toRow(usr)
	query, args, err := repo.sb.Insert(usersTable).Columns(userColumns...).Values(
		row.ID, row.Name, row.Username, row.Email, row.IsActive, row.IsApproved, row.Roles, row.PasswordHash,
		row.CreatedAt, row.UpdatedAt, row.LastLogin,
	).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := repo.sb.Select(userColumns...).From(usersTable)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			q = q.Where(sq.Or{
				sq.Like{"LOWER(name)": val},
				sq.Like{"LOWER(username)": val},
				sq.Like{"LOWER(email)": val},
			})
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleCond := make(sq.Or, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleCond = append(roleCond, sq.Expr("(',' || roles) LIKE ?", "%,"+role+"%"))
			}
			q = q.Where(roleCond)
		}
		if filter.IsActive != nil {
			if *filter.IsActive {
				q = q.Where(sq.Or{sq.Eq{"is_active": true}, sq.Eq{"is_active": nil}})
			} else {
				q = q.Where(sq.Eq{"is_active": false})
			}
		}
		if filter.IsApproved != nil {
			q = q.Where(sq.Eq{"is_approved": *filter.IsApproved})
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}

	for _, ord := range user.CleanOrdering(ordering) {
		q = q.OrderBy(ord.String())
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.fromRow(row))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := repo.sb.Select(userColumns...).From(usersTable)

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		q = q.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		q = q.Where(sq.Eq{"email": filter.Email})
	case len(filter.UsernameOrEmail) > 0:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where(sq.Or{sq.Eq{"username": uname}, sq.Eq{"email": email}})
	default:
		return user.User{}, user.ErrNotFound
	}

	query, args, err := q.Limit(1).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var row userRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email, usr); err != nil {
		return user.User{}, err
	}

	row := repo.toRow(usr)
	query, args, err := repo.sb.Update(usersTable).SetMap(map[string]interface{}{
		"name":          row.Name,
		"username":      row.Username,
		"email":         row.Email,
		"is_active":     row.IsActive,
		"is_approved":   row.IsApproved,
		"roles":         row.Roles,
		"password_hash": row.PasswordHash,
		"created_at":    row.CreatedAt,
		"updated_at":    row.UpdatedAt,
		"last_login":    row.LastLogin,
	}).Where(sq.Eq{"id": row.ID}).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := repo.sb.Delete(usersTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(cnt), nil
}
