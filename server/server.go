package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/chazu/bfqbe/cache"
	"github.com/chazu/bfqbe/compiler"
)

// Server serves the compile service over Connect (HTTP) and gRPC.
type Server struct {
	worker  *Worker
	compile *CompileService
	mux     *http.ServeMux
	grpc    *grpc.Server
	http    *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	cache   *cache.Cache
	opts    compiler.Options
	workers int
}

// WithCache sets the artifact cache consulted before compiling.
// Without this, every request compiles from scratch.
func WithCache(c *cache.Cache) ServerOption {
	return func(cfg *serverConfig) { cfg.cache = c }
}

// WithOptions sets the code generation options used for every request.
func WithOptions(opts compiler.Options) ServerOption {
	return func(cfg *serverConfig) { cfg.opts = opts }
}

// WithWorkers sets the number of compilations allowed to run at once.
func WithWorkers(n int) ServerOption {
	return func(cfg *serverConfig) { cfg.workers = n }
}

// New creates a Server.
func New(opts ...ServerOption) *Server {
	cfg := &serverConfig{
		opts: compiler.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewWorker(cfg.workers)
	mux := http.NewServeMux()
	s := &Server{
		worker:  worker,
		compile: NewCompileService(worker, cfg.cache, cfg.opts),
		mux:     mux,
		grpc:    grpc.NewServer(),
		http: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	path, handler := s.compile.ConnectHandler()
	s.mux.Handle(path, handler)

	s.compile.RegisterGRPC(s.grpc)
	reflection.Register(s.grpc)

	return s
}

// Handler returns the HTTP handler serving the Connect endpoints.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GRPC returns the underlying gRPC server.
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// ListenAndServe serves Connect on httpAddr and gRPC on grpcAddr. Either
// address may be empty to skip that transport. It blocks until one of the
// listeners fails or Stop is called. After Stop it returns nil at once.
func (s *Server) ListenAndServe(httpAddr, grpcAddr string) error {
	if httpAddr == "" && grpcAddr == "" {
		return errors.New("no listen address")
	}

	errc := make(chan error, 2)

	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", grpcAddr, err)
		}
		log.Noticef("gRPC listening on %s", lis.Addr())
		go func() { errc <- s.grpc.Serve(lis) }()
	}

	if httpAddr != "" {
		lis, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", httpAddr, err)
		}
		log.Noticef("Connect listening on http://%s%s", lis.Addr(), CompileProcedure)
		go func() { errc <- s.http.Serve(lis) }()
	}

	err := <-errc
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop shuts down both transports and the compile workers.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.Warningf("http shutdown: %s", err)
	}
	s.grpc.GracefulStop()
	s.worker.Stop()
}
