package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/tariff-catalog/internal/common"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type Config struct {
	Addr          string        // e.g. ":8080"
	CheckInterval time.Duration // default 15s
	CheckTimeout  time.Duration // default 3s
}

// Server is the daemon's gRPC endpoint. It serves the standard health
// service; each named check is exposed as its own service name and the
// overall ("") status is SERVING only when every check passes.
type Server struct {
	cfg    Config
	grpc   *grpc.Server
	health *health.Server
	checks map[string]Check
	logger *slog.Logger

	mu    sync.Mutex
	state map[string]healthpb.HealthCheckResponse_ServingStatus
}

func New(cfg Config, checks map[string]Check, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 15 * time.Second
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 3 * time.Second
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// reflection for grpcurl
	reflection.Register(gs)

	return &Server{
		cfg:    cfg,
		grpc:   gs,
		health: hs,
		checks: checks,
		logger: logger,
		state:  map[string]healthpb.HealthCheckResponse_ServingStatus{},
	}
}

// GRPC exposes the underlying server so callers can register services.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// Refresh runs every check once and publishes the results.
func (s *Server) Refresh(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
		err := check(cctx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
		}
		s.mu.Lock()
		prev, seen := s.state[name]
		s.state[name] = st
		s.mu.Unlock()
		if !seen || prev != st {
			s.logger.Info("health.changed", "check", name, "status", st.String(), "error", err)
		}
		s.health.SetServingStatus(name, st)
	}
	s.health.SetServingStatus("", overall)
}

// Serve accepts connections on lis until ctx is done, then stops
// gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(lis) }()
	s.logger.Info("gRPC serving", "addr", lis.Addr().String())

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Refresh(ctx)
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return err
		case <-ctx.Done():
			s.logger.Info("gRPC shutting down")
			s.health.Shutdown()
			s.grpc.GracefulStop()
			return nil
		}
	}
}

// ListenAndServe listens on cfg.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		err = common.ToGRPCStatus(err)
		logger.Debug("grpc.request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
