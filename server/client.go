package server

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/bfqbe/compiler"
)

// Compiler is implemented by both remote clients. Zero fields of opts are
// left to the server's configuration.
type Compiler interface {
	Compile(ctx context.Context, src string, opts compiler.Options) (string, error)
	Close() error
}

// GRPCClient calls CompileService over gRPC.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// DialCompile creates a gRPC client for the compile service at addr.
// Without options the connection is unencrypted.
func DialCompile(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn}, nil
}

// Compile sends src and opts and returns the IR.
func (c *GRPCClient) Compile(ctx context.Context, src string, opts compiler.Options) (string, error) {
	var kv []string
	encodeOptions(opts, func(key, value string) {
		kv = append(kv, strings.ToLower(key), value)
	})
	if len(kv) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, kv...)
	}

	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, CompileProcedure, wrapperspb.String(src), out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// ConnectClient calls CompileService over Connect.
type ConnectClient struct {
	client *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
}

// NewConnectClient creates a Connect client for the server at baseURL,
// e.g. "http://localhost:8080". httpClient may be nil.
func NewConnectClient(baseURL string, httpClient connect.HTTPClient, opts ...connect.ClientOption) *ConnectClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	url := strings.TrimSuffix(baseURL, "/") + CompileProcedure
	return &ConnectClient{
		client: connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, url, opts...),
	}
}

// Compile sends src and opts and returns the IR.
func (c *ConnectClient) Compile(ctx context.Context, src string, opts compiler.Options) (string, error) {
	req := connect.NewRequest(wrapperspb.String(src))
	encodeOptions(opts, req.Header().Set)
	res, err := c.client.CallUnary(ctx, req)
	if err != nil {
		return "", err
	}
	return res.Msg.GetValue(), nil
}

func (c *ConnectClient) Close() error {
	return nil
}

// Dial picks a client for target: http:// and https:// URLs use Connect,
// anything else is treated as a gRPC address.
func Dial(target string) (Compiler, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return NewConnectClient(target, nil), nil
	}
	return DialCompile(target)
}
