package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
	"github.com/trezcool/insights/services/logger"
	"github.com/trezcool/insights/storage/database"
)

// NewConfig returns a test Config: sqlite DB and data root inside a temp dir.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	dir := t.TempDir()
	return &core.Config{
		AppName:       "Insights",
		Env:           "TEST",
		TestMode:      true,
		SecretKey:     "test-secret",
		AdminPassword: "legacy-admin-pwd",
		WorkDir:       dir,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			DisableReqLogs:            true,
			ShutdownTimeout:           time.Second,
		},
		Database: core.DatabaseConfig{
			Engine: database.EngineSQLite,
			Path:   filepath.Join(dir, "test.db"),
		},
		Data: core.DataConfig{
			Root:     filepath.Join(dir, "data"),
			Debounce: 20 * time.Millisecond,
			Policy:   "coalesce",
		},
		Users: core.UsersConfig{DefaultStudentPassword: "1234"},
		Email: core.EmailConfig{AdminEmails: []string{"boss@test.kr"}},
	}
}

// PrepareDB opens a fresh migrated sqlite DB, closed at the end of the test.
func PrepareDB(t *testing.T, conf ...*core.Config) *sqlx.DB {
	t.Helper()
	var c *core.Config
	if len(conf) > 0 {
		c = conf[0]
	} else {
		c = NewConfig(t)
	}

	db, err := database.Open(c)
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:       name,
		Username:   uname,
		Email:      email,
		IsApproved: true,
		Roles:      roles,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// NewLogger returns an app logger with Rollbar disabled, printing only in verbose mode.
func NewLogger(prefix string) core.Logger {
	var out io.Writer = io.Discard
	if testing.Verbose() {
		out = os.Stderr
	}
	conf := &core.Config{Env: "TEST", TestMode: true}
	return logsvc.NewRollbarLogger(log.New(out, prefix, log.Lmsgprefix), conf)
}
