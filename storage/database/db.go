package database

import (
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
	appfs "github.com/trezcool/insights/fs"
	"github.com/trezcool/insights/storage/database/jsonfile"
	"github.com/trezcool/insights/storage/database/sqlxdb"
)

const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineJSONFile = "jsonfile"

	MigrationsDir = "migrations"
)

var ErrNoSQLEngine = errors.New("the configured database engine is not an SQL engine")

// IsSQL reports whether the configured engine is backed by an SQL database.
func IsSQL(conf *core.Config) bool {
	return conf.Database.Engine == EngineSQLite || conf.Database.Engine == EnginePostgres
}

func dsn(conf *core.Config) string {
	if conf.Database.Engine == EngineSQLite {
		q := make(url.Values)
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", "busy_timeout(5000)")
		q.Add("_pragma", "journal_mode(WAL)")
		return "file:" + conf.Database.Path + "?" + q.Encode()
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   EnginePostgres,
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     conf.Database.Address(),
		Path:     conf.Database.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open opens and pings the configured SQL database.
func Open(conf *core.Config) (*sqlx.DB, error) {
	if !IsSQL(conf) {
		return nil, ErrNoSQLEngine
	}
	if conf.Database.Engine == EngineSQLite {
		if err := os.MkdirAll(filepath.Dir(conf.Database.Path), 0o755); err != nil {
			return nil, errors.Wrap(err, "creating database dir")
		}
	}

	db, err := sqlx.Open(conf.Database.Engine, dsn(conf))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if conf.Database.Engine == EngineSQLite {
		db.SetMaxOpenConns(1)
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// PrepareGoose points goose at the embedded migrations and the dialect of db.
func PrepareGoose(db *sqlx.DB) error {
	goose.SetBaseFS(appfs.FS)
	dialect := "postgres"
	if db.DriverName() == EngineSQLite {
		dialect = "sqlite3"
	}
	return errors.Wrap(goose.SetDialect(dialect), "setting goose dialect")
}

func Migrate(db *sqlx.DB) error {
	if err := PrepareGoose(db); err != nil {
		return err
	}
	if err := goose.Up(db.DB, MigrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// NewUserRepository returns the user.Repository of the configured engine.
// db is required by the SQL engines and ignored by the others.
func NewUserRepository(conf *core.Config, db *sqlx.DB) (user.Repository, error) {
	switch conf.Database.Engine {
	case EngineJSONFile:
		jdb, err := jsonfiledb.Open(conf.Database.Path)
		if err != nil {
			return nil, errors.Wrap(err, "opening users file")
		}
		return jsonfiledb.NewUserRepository(jdb), nil
	case EngineSQLite, EnginePostgres:
		if db == nil {
			return nil, errors.New("nil database")
		}
		return sqlxrepos.NewUserRepository(db), nil
	}
	return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}
