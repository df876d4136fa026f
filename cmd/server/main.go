// Package main provides the scoring service:
// - Pipeline (scheduled): fetch → decode → process → score
// - HTTP API: health, metrics, runs, wallet scores, stored transactions and run reports
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallet-score-lab/internal/app"
	"wallet-score-lab/internal/config"
	cronrunner "wallet-score-lab/internal/cron"
	"wallet-score-lab/internal/handler"
	"wallet-score-lab/internal/reporting"
)

// Server holds the scheduled pipeline and its run state.
type Server struct {
	pipeline *app.Pipeline
	logger   *zap.Logger

	mu         sync.Mutex
	running    bool
	startedAt  time.Time
	lastRun    time.Time
	lastRunID  string
	lastError  string
	runs       int
	failedRuns int
}

// StatusResponse is the pipeline section of /health.
type StatusResponse struct {
	Uptime     string    `json:"uptime"`
	Running    bool      `json:"running"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	Runs       int       `json:"runs"`
	FailedRuns int       `json:"failed_runs"`
}

func main() {
	configPath := flag.String("config", os.Getenv("WALLETSCORE_CONFIG"), "Path to YAML config file (optional)")
	httpAddr := flag.String("http-addr", "", "HTTP listen address (overrides server.http_addr)")
	schedule := flag.String("schedule", "", "Cron spec for pipeline runs (overrides server.schedule)")
	flag.Parse()

	if err := run(*configPath, *httpAddr, *schedule); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, httpAddr, schedule string) error {
	cfg, logger, err := app.Load(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if schedule != "" {
		cfg.Server.Schedule = schedule
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	s := &Server{pipeline: p, logger: logger.Named("server"), startedAt: time.Now()}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s.register(engine, cfg)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	cronRunner := cronrunner.New(s.logger, ctx)
	if _, err := cronRunner.Add(cfg.Server.Schedule, s.runPipeline); err != nil {
		return fmt.Errorf("register pipeline schedule %q: %w", cfg.Server.Schedule, err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	var startup sync.WaitGroup
	defer startup.Wait()
	if cfg.Server.RunOnStart {
		startup.Add(1)
		go func() {
			defer startup.Done()
			s.runPipeline(ctx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown failed", zap.Error(err))
	}
	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) register(engine *gin.Engine, cfg config.Config) {
	stores := s.pipeline.Stores
	(&handler.HealthHandler{Status: func() any { return s.status() }}).Register(engine)
	(&handler.ScoreHandler{Scores: stores.Scores, Features: stores.Features, Logger: s.logger}).Register(engine)
	(&handler.TransactionHandler{Transactions: stores.Transactions, Logger: s.logger}).Register(engine)
	(&handler.ReportHandler{
		Generator: reporting.NewGenerator(stores.Scores, stores.Features),
		Logger:    s.logger,
	}).Register(engine)
	s.logger.Info("routes registered",
		zap.String("store", stores.Backend),
		zap.String("schedule", cfg.Server.Schedule),
	)
}

// runPipeline runs one pipeline pass unless one is already in progress.
func (s *Server) runPipeline(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("pipeline already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	start := time.Now()
	result, err := s.pipeline.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = time.Now()
	s.runs++

	if err != nil {
		s.failedRuns++
		s.lastError = err.Error()
		s.logger.Error("pipeline run failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	s.lastError = ""
	s.lastRunID = result.Score.Run.RunID
	s.logger.Info("pipeline run completed",
		zap.String("run_id", s.lastRunID),
		zap.Int("wallets_scored", len(result.Score.Scores)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", time.Since(start)),
	)
}

func (s *Server) status() StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusResponse{
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		Running:    s.running,
		LastRun:    s.lastRun,
		LastRunID:  s.lastRunID,
		LastError:  s.lastError,
		Runs:       s.runs,
		FailedRuns: s.failedRuns,
	}
}
