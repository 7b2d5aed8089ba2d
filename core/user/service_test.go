package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
	"github.com/trezcool/insights/services/email"
	"github.com/trezcool/insights/storage/database/inmem"
	"github.com/trezcool/insights/tests"
)

func newService(t *testing.T) (user.Service, user.Repository, *emailsvc.ConsoleService) {
	t.Helper()
	conf := testutil.NewConfig(t)
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger("API : "))
	return user.NewService(repo, mailSvc, conf), repo, mailSvc
}

func TestService_Register(t *testing.T) {
	svc, _, mailSvc := newService(t)
	ctx := context.Background()

	usr, err := svc.Register(ctx, user.RegisterTeacher{Name: "Kim", Username: "kim", Email: "kim@test.kr", Password: "Secr3tPass"})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsTeacher())
	assert.True(t, usr.IsPending())
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword("Secr3tPass"))

	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "teacher_registered", sent[0].TemplateName)

	// approving twice notifies once
	usr, err = svc.Approve(ctx, usr)
	require.NoError(t, err)
	assert.False(t, usr.IsPending())
	_, err = svc.Approve(ctx, usr)
	require.NoError(t, err)

	sent = mailSvc.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "teacher_approved", sent[1].TemplateName)
	assert.Equal(t, "kim@test.kr", sent[1].To[0].Address)
}

func TestService_CheckUniqueness(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	kim := testutil.CreateUser(t, repo, "Kim", "kim", "kim@test.kr", "", nil, true)

	tests := []struct {
		name      string
		uname     string
		email     string
		excl      []user.User
		wantField string
	}{
		{name: "free", uname: "lee", email: "lee@test.kr"},
		{name: "username taken", uname: "kim", wantField: "username"},
		{name: "email taken", uname: "lee", email: "kim@test.kr", wantField: "email"},
		{name: "own username", uname: "kim", email: "kim@test.kr", excl: []user.User{kim}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CheckUniqueness(ctx, tt.uname, tt.email, tt.excl...)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "%v", err)
			assert.Contains(t, vErr.FieldErrors(), tt.wantField)
		})
	}
}

func TestService_ChangePassword(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Hero", "hero", "", "1234", []string{user.RoleStudent}, true)

	_, err := svc.ChangePassword(ctx, usr, user.ChangePassword{OldPassword: "nope", NewPassword: "N3wSecret"})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, map[string]string{"old_password": user.ErrWrongPassword.Error()}, vErr.FieldErrors())

	usr, err = svc.ChangePassword(ctx, usr, user.ChangePassword{OldPassword: "1234", NewPassword: "N3wSecret"})
	require.NoError(t, err)

	stored, err := svc.GetByUsername(ctx, "HERO")
	require.NoError(t, err)
	assert.NoError(t, stored.CheckPassword("N3wSecret"))
	assert.Error(t, stored.CheckPassword("1234"))
}

func TestService_SyncStudents(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	testutil.CreateUser(t, repo, "이영희", "이영희", "", "", []string{user.RoleStudent}, true)

	names := []string{"\u1100\u1175\u11b7\u1106\u1175\u11ab\u1109\u116e", " 이영희", "", "김민수", "박지성"}
	res, err := svc.SyncStudents(ctx, names, "1234")
	require.NoError(t, err)
	assert.Equal(t, user.SyncResult{Created: 2, Existing: 1, Names: []string{"김민수", "박지성"}}, res)

	kim, err := svc.GetByUsername(ctx, "김민수")
	require.NoError(t, err)
	assert.True(t, kim.IsStudent())
	assert.False(t, kim.IsPending())
	assert.NoError(t, kim.CheckPassword("1234"))

	res, err = svc.SyncStudents(ctx, names, "1234")
	require.NoError(t, err)
	assert.Equal(t, user.SyncResult{Created: 0, Existing: 3, Names: []string{}}, res)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.SyncStudents(canceled, []string{"홍길동"}, "1234")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidators(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	testutil.CreateUser(t, repo, "Taken", "taken", "", "", nil, true)

	fields := func(err error) map[string]string {
		res := make(map[string]string)
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, fe := range vErrs {
				res[fe.Field()] = fe.Translate(translator)
			}
		}
		var vErr *core.ValidationError
		if errors.As(err, &vErr) {
			for k, v := range vErr.FieldErrors() {
				res[k] = v
			}
		}
		return res
	}

	tests := []struct {
		name string
		data user.NewUser
		want map[string]string
	}{
		{
			name: "valid korean username",
			data: user.NewUser{Name: "김민수", Username: "김민수", Password: "Secr3tPass", PasswordConfirm: "Secr3tPass", Roles: []string{user.RoleStudent}},
			want: map[string]string{},
		},
		{
			name: "short password",
			data: user.NewUser{Name: "A", Password: "abc", PasswordConfirm: "abc"},
			want: map[string]string{"password": "password must contain at least 8 characters"},
		},
		{
			name: "whitespace",
			data: user.NewUser{Name: "A", Password: "abc defgh", PasswordConfirm: "abc defgh"},
			want: map[string]string{"password": "password must not contain whitespace"},
		},
		{
			name: "similar to username",
			data: user.NewUser{Name: "A", Username: "johnsmith", Password: "johnsmith1", PasswordConfirm: "johnsmith1"},
			want: map[string]string{"password": "password cannot be similar to user attributes"},
		},
		{
			name: "unknown role",
			data: user.NewUser{Name: "A", Password: "Secr3tPass", PasswordConfirm: "Secr3tPass", Roles: []string{"root"}},
			want: map[string]string{"roles": "invalid roles"},
		},
		{
			name: "bad username",
			data: user.NewUser{Name: "A", Username: "a-b", Password: "Secr3tPass", PasswordConfirm: "Secr3tPass"},
			want: map[string]string{"username": "only letters, digits and underscores are allowed"},
		},
		{
			name: "username taken",
			data: user.NewUser{Name: "A", Username: " Taken ", Password: "Secr3tPass", PasswordConfirm: "Secr3tPass"},
			want: map[string]string{"username": user.ErrUsernameExists.Error()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			err := data.Validate(ctx, validate, svc)
			assert.Equal(t, tt.want, fields(err))
		})
	}
}

func TestCleanOrdering(t *testing.T) {
	newest := []core.DBOrdering{{Field: "created_at"}}

	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     []core.DBOrdering
	}{
		{name: "empty", want: newest},
		{name: "only unknown", ordering: []core.DBOrdering{{Field: "password_hash", Ascending: true}}, want: newest},
		{
			name:     "unknown dropped",
			ordering: []core.DBOrdering{{Field: "roles"}, {Field: "username", Ascending: true}},
			want:     []core.DBOrdering{{Field: "username", Ascending: true}},
		},
		{
			name:     "repeated dropped",
			ordering: []core.DBOrdering{{Field: "name"}, {Field: "name", Ascending: true}, {Field: "last_login"}},
			want:     []core.DBOrdering{{Field: "name"}, {Field: "last_login"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, user.CleanOrdering(tt.ordering))
		})
	}
}
