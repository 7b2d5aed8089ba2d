package database_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
	"github.com/trezcool/insights/storage/database"
	"github.com/trezcool/insights/storage/database/inmem"
	"github.com/trezcool/insights/storage/database/jsonfile"
	"github.com/trezcool/insights/tests"
)

func repositories(t *testing.T) map[string]user.Repository {
	conf := testutil.NewConfig(t)
	db := testutil.PrepareDB(t, conf)

	sqlRepo, err := database.NewUserRepository(conf, db)
	require.NoError(t, err)

	jconf := testutil.NewConfig(t)
	jconf.Database.Engine = database.EngineJSONFile
	jconf.Database.Path = filepath.Join(t.TempDir(), "users.json")
	jsonRepo, err := database.NewUserRepository(jconf, nil)
	require.NoError(t, err)

	return map[string]user.Repository{
		"sqlite":   sqlRepo,
		"jsonfile": jsonRepo,
		"inmem":    inmemdb.NewUserRepository(inmemdb.Open()),
	}
}

func names(users []user.User) []string {
	res := make([]string, 0, len(users))
	for _, u := range users {
		res = append(res, u.Username)
	}
	return res
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	bPtr := func(b bool) *bool { return &b }

	for engine, repo := range repositories(t) {
		repo := repo
		t.Run(engine, func(t *testing.T) {
			now := time.Now().UTC().Truncate(time.Second)
			admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@test.kr", "pwd", []string{user.RoleAdmin}, true, now.Add(-3*time.Hour))
			teacher := testutil.CreateUser(t, repo, "Teacher Kim", "teacher", "kim@test.kr", "pwd", []string{user.RoleTeacher}, true, now.Add(-2*time.Hour))
			student := testutil.CreateUser(t, repo, "김민수", "김민수", "", "1234", []string{user.RoleStudent}, true, now.Add(-1*time.Hour))
			gone := testutil.CreateUser(t, repo, "Gone", "gone", "", "", []string{user.RoleStudent}, false, now)

			t.Run("uniqueness", func(t *testing.T) {
				assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "admin", ""))
				assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "other", "kim@test.kr"))
				assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "admin", "admin@test.kr", admin))
				assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "nobody", ""))

				_, err := repo.CreateUser(ctx, user.User{Name: "dup", Username: "teacher"})
				assert.Equal(t, user.ErrUsernameExists, err)
			})

			t.Run("get", func(t *testing.T) {
				tests := []struct {
					name    string
					filter  user.GetFilter
					want    string
					wantErr error
				}{
					{name: "by ID", filter: user.GetFilter{ID: teacher.ID}, want: "teacher"},
					{name: "unknown ID", filter: user.GetFilter{ID: "lol"}, wantErr: user.ErrNotFound},
					{name: "by username (hangul)", filter: user.GetFilter{Username: "김민수"}, want: "김민수"},
					{name: "by email", filter: user.GetFilter{Email: "admin@test.kr"}, want: "admin"},
					{name: "by username or email", filter: user.GetFilter{UsernameOrEmail: []string{"kim@test.kr", "kim@test.kr"}}, want: "teacher"},
					{name: "empty", filter: user.GetFilter{}, wantErr: user.ErrNotFound},
				}
				for _, tt := range tests {
					t.Run(tt.name, func(t *testing.T) {
						usr, err := repo.GetUser(ctx, tt.filter)
						if tt.wantErr != nil {
							assert.Equal(t, tt.wantErr, err)
							return
						}
						require.NoError(t, err)
						assert.Equal(t, tt.want, usr.Username)
					})
				}

				usr, err := repo.GetUser(ctx, user.GetFilter{ID: student.ID})
				require.NoError(t, err)
				assert.NoError(t, usr.CheckPassword("1234"))
				assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
				assert.True(t, usr.CreatedAt.Equal(student.CreatedAt))
			})

			t.Run("query", func(t *testing.T) {
				tests := []struct {
					name     string
					filter   *user.QueryFilter
					ordering []core.DBOrdering
					want     []string
				}{
					{name: "all (newest first)", want: []string{"gone", "김민수", "teacher", "admin"}},
					{name: "search", filter: &user.QueryFilter{Search: "KIM"}, want: []string{"teacher"}},
					{name: "role prefix", filter: &user.QueryFilter{Roles: []string{"admin:", "teacher:"}}, want: []string{"teacher", "admin"}},
					{name: "inactive", filter: &user.QueryFilter{IsActive: bPtr(false)}, want: []string{"gone"}},
					{
						name: "created range", filter: &user.QueryFilter{CreatedFrom: now.Add(-150 * time.Minute), CreatedTo: now.Add(-30 * time.Minute)},
						want: []string{"김민수", "teacher"},
					},
					{
						name: "order by username", ordering: []core.DBOrdering{{Field: "username", Ascending: true}},
						want: []string{"admin", "gone", "teacher", "김민수"},
					},
					{
						name: "unknown order field ignored", ordering: []core.DBOrdering{{Field: "password_hash; DROP TABLE users", Ascending: true}},
						want: []string{"gone", "김민수", "teacher", "admin"},
					},
				}
				for _, tt := range tests {
					t.Run(tt.name, func(t *testing.T) {
						users, err := repo.QueryUsers(ctx, tt.filter, tt.ordering)
						require.NoError(t, err)
						assert.Equal(t, tt.want, names(users))
					})
				}
			})

			t.Run("update", func(t *testing.T) {
				teacher.IsApproved = false
				teacher.Name = "Teacher Park"
				usr, err := repo.UpdateUser(ctx, teacher)
				require.NoError(t, err)
				assert.Equal(t, "Teacher Park", usr.Name)

				usr, err = repo.GetUser(ctx, user.GetFilter{ID: teacher.ID})
				require.NoError(t, err)
				assert.False(t, usr.IsApproved)

				dup := student
				dup.Username = "admin"
				_, err = repo.UpdateUser(ctx, dup)
				assert.Equal(t, user.ErrUsernameExists, err)

				_, err = repo.UpdateUser(ctx, user.User{ID: "00000000-0000-0000-0000-000000000000", Username: "ghost"})
				assert.Equal(t, user.ErrNotFound, err)
			})

			t.Run("delete", func(t *testing.T) {
				n, err := repo.DeleteUsersByID(ctx, gone.ID, "unknown")
				require.NoError(t, err)
				assert.Equal(t, 1, n)

				_, err = repo.GetUser(ctx, user.GetFilter{ID: gone.ID})
				assert.Equal(t, user.ErrNotFound, err)
			})
		})
	}
}

func TestJSONFileLegacyUpgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	legacy := `[
  {"id": "teacher1", "pw": "secret", "name": "Teacher", "role": "teacher", "approved": false},
  {"id": "김민수", "pw": "1234", "name": "김민수", "role": "student"}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	db, err := jsonfiledb.Open(path)
	require.NoError(t, err)
	repo := jsonfiledb.NewUserRepository(db)
	ctx := context.Background()

	teacher, err := repo.GetUser(ctx, user.GetFilter{Username: "teacher1"})
	require.NoError(t, err)
	assert.True(t, teacher.IsPending())
	assert.NoError(t, teacher.CheckPassword("secret"))
	assert.Equal(t, []string{user.RoleTeacher}, teacher.Roles)

	student, err := repo.GetUser(ctx, user.GetFilter{Username: "김민수"})
	require.NoError(t, err)
	assert.True(t, student.IsApproved)
	assert.True(t, student.IsStudent())

	// plaintext passwords are gone from the rewritten file
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"pw"`)
	assert.Contains(t, string(data), `"password_hash"`)

	// reopening keeps the upgraded accounts
	db, err = jsonfiledb.Open(path)
	require.NoError(t, err)
	reopened, err := jsonfiledb.NewUserRepository(db).GetUser(ctx, user.GetFilter{Username: "teacher1"})
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, reopened.ID)
	assert.NoError(t, reopened.CheckPassword("secret"))
}
