package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/user"
	emailsvc "github.com/trezcool/insights/services/email"
	logsvc "github.com/trezcool/insights/services/logger"
	"github.com/trezcool/insights/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmsgprefix), conf)
	defer logger.Close()

	// set up DB
	var db *sqlx.DB
	if database.IsSQL(conf) {
		var err error
		db, err = database.Open(conf)
		if err != nil {
			logger.Error("opening database", err)
			os.Exit(1)
		}
		defer db.Close()
	}
	usrRepo, err := database.NewUserRepository(conf, db)
	if err != nil {
		logger.Error("setting up user repository", err)
		os.Exit(1)
	}

	// start CLI
	cli := &commandLine{
		conf:   conf,
		logger: logger,
		db:     db,
		usrSvc: user.NewService(usrRepo, emailsvc.NewService(conf, logger), conf),
	}
	if err := cli.run(os.Args); err != nil {
		logger.Error(err.Error())
		if db != nil {
			_ = db.Close()
		}
		os.Exit(1)
	}
}
