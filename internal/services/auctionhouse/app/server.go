// Package server wires the auction house runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/platform/config"
	auctionhttp "github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/api/http"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/engine"
	"github.com/KREaTOR-Finance/EpicenterMarketplace/internal/services/auctionhouse/storage/sqlite"
)

const serviceName = "auctionhouse"

type serverEnv struct {
	DBPath string `env:"EPICENTER_AUCTIONHOUSE_DB_PATH"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "auctionhouse.db")
	}
	return cfg
}

// Server hosts the auction house HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
}

// New creates a configured auction house server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured auction house server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	authCfg, err := auctionhttp.LoadAuthConfigFromEnv(nil)
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("load auth config: %w", err)
	}

	env := loadServerEnv()
	store, err := openAuctionStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	router := auctionhttp.NewRouter(engine.New(store), authCfg, serviceName)
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		listener:   listener,
		httpServer: httpServer,
		store:      store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an auction house server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("auction house server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// Close releases auction house server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close auction house store: %v", err)
		}
	}
}

func openAuctionStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auction house sqlite store: %w", err)
	}
	return store, nil
}
