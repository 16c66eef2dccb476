package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ledgerhandlers "github.com/de-tools/linkmind/pkg/handlers/ledger"
	remediationhandlers "github.com/de-tools/linkmind/pkg/handlers/remediation"
	linkmindmiddleware "github.com/de-tools/linkmind/pkg/server/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type WebAPI struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Intake      ledgerhandlers.Ingestor
	Detector    ledgerhandlers.Detector
	Ledger      ledgerhandlers.Reader
	Remediation remediationhandlers.Dependencies
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	ledgerHandler := ledgerhandlers.NewHandler(config.Dependencies.Intake, config.Dependencies.Detector, config.Dependencies.Ledger)
	remediationHandler := remediationhandlers.NewHandler(config.Dependencies.Remediation)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(linkmindmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if config.Dependencies.Metrics != nil {
		router.Handle("/metrics", config.Dependencies.Metrics)
	}

	router.Route("/api/v1", func(r chi.Router) {
		ledgerHandler.Routes(r)
		remediationHandler.Routes(r)
	})

	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

func (w *WebAPI) Handler() http.Handler {
	return w.router
}

// Start serves until the listener fails, ctx is cancelled or the process is interrupted.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-shutdown:
	case <-ctx.Done():
	}
	w.logger.Info().Msg("shutdown initiated")

	// Give outstanding requests a deadline for completion.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()

	err := w.server.Shutdown(shutdownCtx)
	if err != nil {
		w.logger.Error().Err(err).Msg("graceful shutdown failed")
		err = w.server.Close()
	}
	return err
}
