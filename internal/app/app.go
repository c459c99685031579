package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vidfriends/friends/internal/auth"
	"github.com/vidfriends/friends/internal/config"
	"github.com/vidfriends/friends/internal/db"
	"github.com/vidfriends/friends/internal/handlers"
	"github.com/vidfriends/friends/internal/httpserver"
	"github.com/vidfriends/friends/internal/logging"
	"github.com/vidfriends/friends/internal/middleware"
)

const usage = "expected command: serve, migrate, seed, or token"

// Run bootstraps the friends service.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	case "token":
		return issueToken(os.Stdout, args[1:])
	default:
		return fmt.Errorf("unknown command %q: %s", args[0], usage)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, int32(cfg.DatabaseMaxConn))
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(closeCtx); err != nil {
			logger.Warn("release dependencies", "error", err)
		}
	}()

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	srv := httpserver.New(cfg.AppPort, middleware.RequestLogger(logger)(mux), logger)

	logger.Info("starting http server", "port", cfg.AppPort)
	if err := httpserver.Run(ctx, srv, srv.Start); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}

// issueToken prints a bearer token for local development against a server
// sharing FRIENDS_TOKEN_SECRET.
func issueToken(out io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("expected account id")
	}

	accountID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", args[0], err)
	}

	ttl := 24 * time.Hour
	if len(args) > 1 {
		ttl, err = time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid token ttl %q: %w", args[1], err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(cfg.TokenSecret)
	if err != nil {
		return err
	}

	token, err := verifier.Sign(accountID.String(), ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token)
	return err
}
