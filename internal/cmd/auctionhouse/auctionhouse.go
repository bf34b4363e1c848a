// Package auctionhouse parses auction house flags and launches the service.
package auctionhouse

import (
	"context"
	"flag"

	entrypoint "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/platform/cmd"
	server "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/app"
)

// Config holds auction house command configuration.
type Config struct {
	Port int `env:"EPICENTER_AUCTIONHOUSE_PORT" envDefault:"8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The auction house HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the auction house HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAuctionHouse, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
