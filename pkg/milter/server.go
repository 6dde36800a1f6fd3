package milter

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/d--j/go-milter"

	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/scanner"
)

// Server represents the spamscan milter server
type Server struct {
	config    *config.MilterConfig
	milterSrv *milter.Server
}

// NewServer creates a new milter server scanning with s
func NewServer(cfg *config.MilterConfig, s *scanner.Scanner) (*Server, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("milter is not enabled in configuration")
	}

	var milterOpts []milter.Option

	// Only headers and body are needed for classification
	milterOpts = append(milterOpts, milter.WithProtocol(
		milter.OptNoConnect|milter.OptNoHelo|milter.OptNoRcptTo|milter.OptNoData))

	actions := milter.OptAddHeader
	if cfg.QuarantineConfidence > 0 {
		actions |= milter.OptQuarantine
	}
	milterOpts = append(milterOpts, milter.WithAction(actions))

	if cfg.ReadTimeoutMs > 0 {
		milterOpts = append(milterOpts, milter.WithReadTimeout(
			time.Duration(cfg.ReadTimeoutMs)*time.Millisecond))
	}
	if cfg.WriteTimeoutMs > 0 {
		milterOpts = append(milterOpts, milter.WithWriteTimeout(
			time.Duration(cfg.WriteTimeoutMs)*time.Millisecond))
	}

	milterOpts = append(milterOpts, milter.WithMilter(func() milter.Milter {
		return NewHandler(cfg, s)
	}))

	return &Server{
		config:    cfg,
		milterSrv: milter.NewServer(milterOpts...),
	}, nil
}

// Serve accepts milter connections until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.milterSrv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(s.config.GracefulShutdownTimeout)*time.Millisecond,
		)
		defer cancel()

		if err := s.milterSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown milter server: %v", err)
		}
		return nil

	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("milter server error: %v", err)
		}
		return nil
	}
}

// ListenAndServe opens the configured socket and serves on it
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen(s.config.Network, s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	defer listener.Close()

	return s.Serve(ctx, listener)
}

// Close closes the milter server
func (s *Server) Close() error {
	return s.milterSrv.Close()
}

// Stats returns server statistics
func (s *Server) Stats() ServerStats {
	return ServerStats{
		MilterCount: s.milterSrv.MilterCount(),
	}
}

// ServerStats contains server statistics
type ServerStats struct {
	MilterCount uint64 // Total number of milter instances created
}
