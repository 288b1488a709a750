// Package statements parses command flags and launches the statements service.
package statements

import (
	"context"
	"flag"
	"fmt"

	"github.com/norelinorth/statements/internal/platform/config"
	"github.com/norelinorth/statements/internal/services/statements/api/rest"
	"github.com/norelinorth/statements/internal/services/statements/app"
)

// Config holds statements command configuration.
type Config struct {
	Port int `env:"STATEMENTS_PORT" envDefault:"8093"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The statements HTTP server port")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the statements ingestion service.
func Run(ctx context.Context, cfg Config) error {
	service, logger, closer, err := app.Bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = closer()
		_ = logger.Sync()
	}()

	router := rest.NewRouter(service, logger)
	return app.Serve(ctx, fmt.Sprintf(":%d", cfg.Port), router, logger)
}
