package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/norelinorth/statements/internal/platform/config"
	"github.com/norelinorth/statements/internal/platform/logging"
	"github.com/norelinorth/statements/internal/services/statements/accounting"
	"github.com/norelinorth/statements/internal/services/statements/extract"
	"github.com/norelinorth/statements/internal/services/statements/storage/sqlite"
	"github.com/norelinorth/statements/internal/services/statements/textgen"
)

const defaultGeminiModel = "gemini-2.5-pro"

// serverEnv holds env-parsed configuration for the statements server.
type serverEnv struct {
	DBPath   string `env:"STATEMENTS_DB_PATH"`
	LogLevel string `env:"STATEMENTS_LOG_LEVEL" envDefault:"info"`

	MaxFileSizeMB          int64 `env:"STATEMENTS_MAX_FILE_SIZE_MB" envDefault:"25"`
	CompleteTimeoutSeconds int   `env:"STATEMENTS_COMPLETE_TIMEOUT_SECONDS" envDefault:"120"`

	GeminiAPIKey string `env:"STATEMENTS_GEMINI_API_KEY"`
	GeminiModel  string `env:"STATEMENTS_GEMINI_MODEL"`

	ERPNextBaseURL   string `env:"STATEMENTS_ERPNEXT_BASE_URL"`
	ERPNextAPIKey    string `env:"STATEMENTS_ERPNEXT_API_KEY"`
	ERPNextAPISecret string `env:"STATEMENTS_ERPNEXT_API_SECRET"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "statements.db")
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = defaultGeminiModel
	}
	return cfg
}

// Bootstrap wires the service from environment configuration. Collaborators
// with missing credentials are left unconfigured; the operations that need
// them report that instead of failing startup.
func Bootstrap(ctx context.Context) (*Service, *zap.Logger, func() error, error) {
	env := loadServerEnv()

	logger, err := logging.New(env.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("configure logging: %w", err)
	}

	store, err := sqlite.Open(env.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open statements storage: %w", err)
	}

	opts := Options{
		Extractor:       extract.PDFExtractor{MaxBytes: env.MaxFileSizeMB * 1024 * 1024},
		Logger:          logger,
		CompleteTimeout: time.Duration(env.CompleteTimeoutSeconds) * time.Second,
	}

	if env.GeminiAPIKey != "" {
		completer, err := textgen.NewGeminiCompleter(ctx, env.GeminiAPIKey, env.GeminiModel)
		if err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("configure text generation: %w", err)
		}
		opts.Completer = completer
	} else {
		logger.Warn("STATEMENTS_GEMINI_API_KEY is not set; parse operations are disabled")
	}

	if env.ERPNextBaseURL != "" {
		client, err := accounting.NewFrappeClient(env.ERPNextBaseURL, env.ERPNextAPIKey, env.ERPNextAPISecret)
		if err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("configure accounting client: %w", err)
		}
		opts.Accounting = client
	} else {
		logger.Warn("STATEMENTS_ERPNEXT_BASE_URL is not set; synthesis operations are disabled")
	}

	service, err := NewService(store, opts)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	return service, logger, store.Close, nil
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("statements server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return group.Wait()
}
