package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tinoosan/fuelsplit/internal/auth"
	"github.com/tinoosan/fuelsplit/internal/config"
	httpapi "github.com/tinoosan/fuelsplit/internal/httpapi/v1"
	"github.com/tinoosan/fuelsplit/internal/ledger"
	"github.com/tinoosan/fuelsplit/internal/locale"
	"github.com/tinoosan/fuelsplit/internal/lock"
	"github.com/tinoosan/fuelsplit/internal/migrate"
	"github.com/tinoosan/fuelsplit/internal/service/fuel"
	"github.com/tinoosan/fuelsplit/internal/storage/memory"
	pgstore "github.com/tinoosan/fuelsplit/internal/storage/postgres"
	"github.com/tinoosan/fuelsplit/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fuelsplit stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	f, err := locale.New(locale.Options{
		Tag:      cfg.Locale.Tag,
		Currency: cfg.Locale.Currency,
		TimeZone: cfg.Locale.TimeZone,
		Layout:   cfg.Locale.TimeLayout,
	})
	if err != nil {
		return err
	}
	pair, err := ledger.NewPair(
		ledger.Participant{ID: ledger.ParticipantID(cfg.A.ID), Name: cfg.A.Name},
		ledger.Participant{ID: ledger.ParticipantID(cfg.B.ID), Name: cfg.B.Name},
	)
	if err != nil {
		return fmt.Errorf("participants: %w", err)
	}
	price, err := cfg.Ledger.Price()
	if err != nil {
		return err
	}

	store, ready, closeFn, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	locker, closeLock, err := openLocker(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeLock()
	if rc, ok := locker.(httpapi.ReadyChecker); ok {
		ready = append(ready, rc)
	}

	codes, err := auth.NewCodeBook(0,
		auth.CodeEntry{Participant: pair.A.ID, Code: cfg.A.Code},
		auth.CodeEntry{Participant: pair.B.ID, Code: cfg.B.Code},
	)
	if err != nil {
		return err
	}
	tokens, err := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		return err
	}

	svc := fuel.New(store, locker, ledger.NewEngine(pair, f), f, fuel.Defaults{
		PricePerKm:       price,
		StartingOdometer: cfg.Ledger.StartingOdometer,
	}, logger)
	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = svc.Bootstrap(bootCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("bootstrap ledger: %w", err)
	}

	h := httpapi.New(svc, codes, tokens, f, httpapi.Options{
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		SecureCookie: cfg.HTTP.SecureCookie,
		Ready:        ready,
	}, logger).Handler()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fuelsplit listening",
			"addr", srv.Addr,
			"participants", []ledger.ParticipantID{pair.A.ID, pair.B.ID},
			"currency", f.Currency().Code(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// openStore connects the configured backend and applies migrations when enabled.
func openStore(ctx context.Context, sc config.StoreConfig, logger *slog.Logger) (fuel.TxStore, []httpapi.ReadyChecker, func(), error) {
	switch sc.Kind() {
	case config.BackendPostgres:
		pg, err := pgstore.Open(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if sc.Migrate {
			if err := migrate.Up(ctx, pg.SQLDB(), migrate.Postgres); err != nil {
				pg.Close()
				return nil, nil, nil, err
			}
		}
		logger.Info("storage backend: postgres")
		return pg, []httpapi.ReadyChecker{pg}, pg.Close, nil
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, sc.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if sc.Migrate {
			if err := migrate.Up(ctx, db.DB(), migrate.SQLite); err != nil {
				_ = db.Close()
				return nil, nil, nil, err
			}
		}
		logger.Info("storage backend: sqlite", "path", sc.SQLitePath)
		return db, []httpapi.ReadyChecker{db}, func() { _ = db.Close() }, nil
	default:
		logger.Warn("storage backend: memory; the ledger is lost on restart")
		m := memory.New()
		return m, []httpapi.ReadyChecker{m}, func() {}, nil
	}
}

// openLocker shares the ledger lock through redis when configured.
func openLocker(ctx context.Context, rc config.RedisConfig, logger *slog.Logger) (lock.Locker, func(), error) {
	if strings.TrimSpace(rc.URL) == "" {
		return lock.NewMutexWait(rc.LockWait), func() {}, nil
	}
	client, err := lock.Dial(ctx, rc.URL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("ledger lock: redis", "key", rc.LockKey)
	l := lock.NewRedis(client, lock.RedisOptions{Key: rc.LockKey, TTL: rc.LockTTL, Wait: rc.LockWait}, logger)
	return l, func() { _ = client.Close() }, nil
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(lc config.LogConfig) *slog.Logger {
	level := parseLogLevel(lc.Level)
	if strings.EqualFold(strings.TrimSpace(lc.Format), "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
