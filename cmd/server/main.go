/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration (.env honored in development)
  2. Initialize SQLite store
  3. Build the payroll service (rulesets validate here; a bad ruleset
     fails fast at startup, never at payslip time)
  4. Configure HTTP router
  5. Start server with graceful shutdown

ENVIRONMENT:
  PAYROLL_ADDR                 Listen address (default :8080)
  PAYROLL_DB                   SQLite path, ":memory:" for in-memory
  PRIMARY_CURRENCY             Default USD
  SECONDARY_CURRENCY           Default VEB
  SSO_RATE / FAOV_RATE / PARO_RATE
  PRESTACIONES_INTEREST_RATE
  SSO_CEILING_SECONDARY
  FISCAL_YEAR_START_MONTH      Default 9 (September)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - payroll/service.go: Orchestration layer
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nominave/payroll-engine/api"
	"github.com/nominave/payroll-engine/config"
	"github.com/nominave/payroll-engine/payroll"
	"github.com/nominave/payroll-engine/store/sqlite"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	svc := payroll.NewService(payroll.Params{
		PrimaryCurrency:     cfg.PrimaryCurrency,
		SecondaryCurrency:   cfg.SecondaryCurrency,
		SSORate:             cfg.SSORate,
		FAOVRate:            cfg.FAOVRate,
		PARORate:            cfg.PARORate,
		PrestacionesRate:    cfg.PrestacionesRate,
		SSOCeilingSecondary: cfg.SSOCeilingSecondary,
		FiscalYearStart:     cfg.FiscalYearStartMonth,
	}, store, store, store, log)

	handler := api.NewHandler(store, svc, cfg.SecondaryCurrency)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("payroll engine listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}

	log.Info("server stopped")
}
