package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/insights/apps/api/echo"
	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/corpus"
	"github.com/trezcool/insights/core/ingest"
	"github.com/trezcool/insights/core/user"
	emailsvc "github.com/trezcool/insights/services/email"
	logsvc "github.com/trezcool/insights/services/logger"
	"github.com/trezcool/insights/storage/database"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	ScanLoggerParam struct {
		dig.In
		Logger core.Logger `name:"scanLogger"`
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmsgprefix)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newScanLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "SCAN : ", log.LstdFlags|log.Lmsgprefix)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

// newDB opens and migrates the SQL database. It returns a nil DB for the engines not backed by SQL.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if !database.IsSQL(conf) {
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newUserRepository(conf *core.Config, db *sqlx.DB, loggerParam DBLoggerParam) user.Repository {
	repo, err := database.NewUserRepository(conf, db)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up user repository: %v", err), err)
	}
	return repo
}

func newValidator() *validator.Validate {
	return validator.New()
}

func newRules(conf *core.Config, loggerParam ScanLoggerParam) *ingest.Rules {
	if conf.Data.RulesFile == "" {
		return ingest.DefaultRules()
	}
	rules, err := ingest.LoadRules(conf.Data.RulesFile)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("loading rules %s: %v", conf.Data.RulesFile, err), err)
	}
	return rules
}

func newScanner(conf *core.Config, norm *ingest.Normalizer, loggerParam ScanLoggerParam) *corpus.Scanner {
	return corpus.NewScanner(conf.Data.Root, norm, loggerParam.Logger)
}

func newRebuilder(conf *core.Config, scanner *corpus.Scanner, store *corpus.Store, loggerParam ScanLoggerParam) *corpus.Rebuilder {
	return corpus.NewRebuilder(scanner, store, loggerParam.Logger, corpus.RebuildOptions{
		Debounce: conf.Data.Debounce,
		Policy:   corpus.Policy(conf.Data.Policy),
	})
}

func newWatcher(conf *core.Config, rebuilder *corpus.Rebuilder, loggerParam ScanLoggerParam) (*corpus.Watcher, error) {
	return corpus.NewWatcher(conf.Data.Root, rebuilder, loggerParam.Logger)
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    user.Service
	Store      *corpus.Store
	Rebuilder  *corpus.Rebuilder
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		Store:      p.Store,
		Rebuilder:  p.Rebuilder,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// config & loggers
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newScanLogger, dig.Name("scanLogger")))

	// storage
	must(c.Provide(newDB))
	must(c.Provide(newUserRepository))

	// services
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newValidator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService))

	// corpus
	must(c.Provide(newRules))
	must(c.Provide(ingest.NewNormalizer))
	must(c.Provide(newScanner))
	must(c.Provide(corpus.NewStore))
	must(c.Provide(newRebuilder))
	must(c.Provide(newWatcher))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
