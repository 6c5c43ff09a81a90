package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/review/internal/controller"
	"github.com/sharetube/review/internal/repository/asset/sqlite"
	"github.com/sharetube/review/internal/repository/connection/inmemory"
	presenceRedis "github.com/sharetube/review/internal/repository/presence/redis"
	"github.com/sharetube/review/internal/service/review"
	"github.com/sharetube/review/pkg/ctxlogger"
	"github.com/sharetube/review/pkg/redisclient"
)

type AppConfig struct {
	Secret           string        `json:"-"`
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	LogLevel         string        `json:"log_level"`
	RedisPort        int           `json:"redis_port"`
	RedisHost        string        `json:"redis_host"`
	RedisPassword    string        `json:"-"`
	DBPath           string        `json:"db_path"`
	PresenceTTL      time.Duration `json:"presence_ttl"`
	TokenTTL         time.Duration `json:"token_ttl"`
	HandshakeTimeout time.Duration `json:"handshake_timeout"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return errors.New("secret must be set")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range", cfg.Port)
	}
	if cfg.DBPath == "" {
		return errors.New("db path must be set")
	}
	if cfg.PresenceTTL <= 0 {
		return errors.New("presence ttl must be greater than 0")
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("token ttl must be greater than 0")
	}
	if cfg.HandshakeTimeout <= 0 {
		return errors.New("handshake timeout must be greater than 0")
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	return nil
}

func parseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return l, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(&ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}),
	})
}

// newHandler wires repositories, the review service and the HTTP controller.
func newHandler(cfg *AppConfig, rc *redis.Client, store *sqlite.Store, logger *slog.Logger) http.Handler {
	connectionRepo := inmemory.NewRepo()
	presenceRepo := presenceRedis.NewRepo(rc, cfg.PresenceTTL)
	reviewService := review.NewService(store, presenceRepo, connectionRepo, review.Config{
		Secret:      cfg.Secret,
		TokenTTL:    cfg.TokenTTL,
		PresenceTTL: cfg.PresenceTTL,
	})
	c := controller.NewController(reviewService, connectionRepo, controller.Config{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Logger:           logger,
	})

	return c.GetMux()
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, logLevel)
	slog.SetDefault(logger)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	store, err := sqlite.Open(cfg.DBPath, sqlite.Options{BusyTimeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: newHandler(cfg, rc, store, logger),
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
