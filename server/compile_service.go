package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/bfqbe/cache"
	"github.com/chazu/bfqbe/compiler"
)

var log = commonlog.GetLogger("bfqbe.server")

const (
	// CompileServiceName is the fully-qualified service name.
	CompileServiceName = "bfqbe.v1.CompileService"

	// CompileProcedure is the path of the Compile method for both Connect
	// and gRPC.
	CompileProcedure = "/" + CompileServiceName + "/Compile"

	// CacheHeader reports whether a Connect response came from the cache.
	CacheHeader = "Bfqbe-Cache"
)

// CompileService compiles source text to IR on behalf of remote callers.
type CompileService struct {
	worker *Worker
	cache  *cache.Cache
	opts   compiler.Options
}

// NewCompileService creates a CompileService. c may be nil to disable
// caching.
func NewCompileService(worker *Worker, c *cache.Cache, opts compiler.Options) *CompileService {
	return &CompileService{
		worker: worker,
		cache:  c,
		opts:   opts.WithDefaults(),
	}
}

// Compile compiles src with the service's options on the worker pool and
// reports whether the result came from the cache.
func (s *CompileService) Compile(ctx context.Context, src string) (*cache.Artifact, bool, error) {
	return s.CompileWith(ctx, src, s.opts)
}

// CompileWith is Compile with explicit options.
func (s *CompileService) CompileWith(ctx context.Context, src string, opts compiler.Options) (*cache.Artifact, bool, error) {
	id := uuid.NewString()
	log.Debugf("[%s] compile request: %d bytes, tape %d", id, len(src), opts.TapeSize)

	type outcome struct {
		artifact *cache.Artifact
		hit      bool
	}
	result, err := s.worker.Do(ctx, func() (any, error) {
		a, hit, err := cache.Compile(s.cache, src, opts)
		if err != nil {
			return nil, err
		}
		return outcome{a, hit}, nil
	})
	if err != nil {
		log.Infof("[%s] compile failed: %s", id, err)
		return nil, false, err
	}

	out := result.(outcome)
	log.Debugf("[%s] compiled %d runs (cache hit: %t)", id, out.artifact.Stats.TotalRuns(), out.hit)
	return out.artifact, out.hit, nil
}

// isCallerError reports whether err was caused by the request itself: a
// bracket error in the source or unusable options.
func isCallerError(err error) bool {
	return errors.Is(err, compiler.ErrUnbalancedBracket) ||
		errors.Is(err, compiler.ErrUnclosedBracket) ||
		errors.Is(err, ErrInvalidOptions)
}

// ---------------------------------------------------------------------------
// Connect
// ---------------------------------------------------------------------------

// ConnectHandler returns the path and handler that serve Compile over the
// Connect, gRPC-Web and gRPC-over-HTTP protocols.
func (s *CompileService) ConnectHandler(opts ...connect.HandlerOption) (string, *connect.Handler) {
	return CompileProcedure, connect.NewUnaryHandler(CompileProcedure, s.compileConnect, opts...)
}

func (s *CompileService) compileConnect(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	opts, err := decodeOptions(s.opts, req.Header().Get)
	if err != nil {
		return nil, connectError(err)
	}
	a, hit, err := s.CompileWith(ctx, req.Msg.GetValue(), opts)
	if err != nil {
		return nil, connectError(err)
	}

	res := connect.NewResponse(wrapperspb.String(a.IR))
	if hit {
		res.Header().Set(CacheHeader, "hit")
	} else {
		res.Header().Set(CacheHeader, "miss")
	}
	return res, nil
}

func connectError(err error) *connect.Error {
	switch {
	case isCallerError(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, ErrWorkerStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// ---------------------------------------------------------------------------
// gRPC
// ---------------------------------------------------------------------------

// CompileServer is the server API for the gRPC CompileService.
type CompileServer interface {
	Compile(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// grpcCompileServer adapts CompileService to CompileServer.
type grpcCompileServer struct {
	svc *CompileService
}

func (g grpcCompileServer) Compile(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	opts, err := decodeOptions(g.svc.opts, func(key string) string {
		if vs := md.Get(key); len(vs) > 0 {
			return vs[0]
		}
		return ""
	})
	if err != nil {
		return nil, grpcError(err)
	}
	a, _, err := g.svc.CompileWith(ctx, in.GetValue(), opts)
	if err != nil {
		return nil, grpcError(err)
	}
	return wrapperspb.String(a.IR), nil
}

func grpcError(err error) error {
	switch {
	case isCallerError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, ErrWorkerStopped):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func compileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompileServer).Compile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CompileProcedure,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompileServer).Compile(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// CompileServiceDesc describes CompileService for grpc.Server.RegisterService.
var CompileServiceDesc = grpc.ServiceDesc{
	ServiceName: CompileServiceName,
	HandlerType: (*CompileServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Compile",
			Handler:    compileHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bfqbe/v1/compile.proto",
}

// RegisterGRPC registers the service on gs.
func (s *CompileService) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&CompileServiceDesc, grpcCompileServer{svc: s})
}
