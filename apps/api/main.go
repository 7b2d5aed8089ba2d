package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/insights/apps/api/di/dig"
	echoapi "github.com/trezcool/insights/apps/api/echo"
	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/corpus"
	"github.com/trezcool/insights/core/user"
)

type app struct {
	dig.In

	Conf          *core.Config
	APILogger     core.Logger
	DBLoggerParam dig_container.DBLoggerParam
	ScanLogger    dig_container.ScanLoggerParam
	DB            *sqlx.DB
	Validate      *validator.Validate
	Translator    ut.Translator
	Store         *corpus.Store
	Rebuilder     *corpus.Rebuilder
	Server        *echoapi.Server
}

func main() {
	c := dig_container.New()
	must(c.Invoke(func(a app) { run(c, a) }))
}

func run(c *dig.Container, a app) {
	conf := a.Conf
	apiLogger := a.APILogger
	scanLogger := a.ScanLogger.Logger

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	core.InitValidators(a.Validate, a.Translator)
	user.InitValidators(a.Validate, a.Translator)

	core.ParseEmailTemplates(apiLogger)

	if a.DB != nil {
		dbLogger := a.DBLoggerParam.Logger
		defer func() {
			if err := a.DB.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
	}
	defer apiLogger.Info("Application stopped")

	// =========================================================================
	// Build the corpus

	defer a.Store.Close()
	defer a.Rebuilder.Close()

	if err := a.Rebuilder.RebuildNow(context.Background()); err != nil {
		scanLogger.Error(fmt.Sprintf("initial corpus build failed: %v", err), err)
	}

	if conf.Data.Watch {
		must(c.Invoke(func(watcher *corpus.Watcher) {
			ctx, cancel := context.WithCancel(context.Background())
			go watcher.Run(ctx)
			defer func() {
				cancel()
				if err := watcher.Close(); err != nil {
					scanLogger.Error("closing watcher", err)
				}
			}()
			serve(a)
		}))
		return
	}
	serve(a)
}

func serve(a app) {
	conf := a.Conf
	apiLogger := a.APILogger
	server := a.Server

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("corpus", expvar.Func(func() interface{} { return a.Store.Snapshot() }))
	expvar.Publish("rebuilds", expvar.Func(func() interface{} { return a.Rebuilder.Scans() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddr, http.DefaultServeMux); err != nil {
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	go func() {
		apiLogger.Info("API listening on " + conf.Server.Addr)
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
