package trace

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
)

// UnaryServerInterceptor attaches incoming trace metadata to the handler context
// and converts AppErrors into rich gRPC statuses.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = extractMetadata(ctx)
		start := time.Now()
		resp, err := handler(ctx, req)
		Logger(ctx).Debug("grpc call", "method", info.FullMethod, "duration", time.Since(start), "error", err)
		return resp, toStatus(err)
	}
}

// StreamServerInterceptor does the same for streaming calls such as health Watch.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := extractMetadata(ss.Context())
		err := handler(srv, &tracedStream{ServerStream: ss, ctx: ctx})
		Logger(ctx).Debug("grpc stream closed", "method", info.FullMethod, "error", err)
		return toStatus(err)
	}
}

// UnaryClientInterceptor injects trace context into outgoing gRPC calls.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(injectMetadata(ctx), method, req, reply, cc, opts...)
	}
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }

func toStatus(err error) error {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.GRPCStatus().Err()
	}
	return err
}

// extractMetadata builds a trace context from incoming gRPC metadata.
func extractMetadata(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		ctx, _ = EnsureContext(ctx)
		return ctx
	}
	m := make(map[string]string, 4)
	for _, k := range []string{TraceparentKey, TraceIDKey, SpanIDKey} {
		if v := md.Get(k); len(v) > 0 {
			m[k] = v[0]
		}
	}
	return WithContext(ctx, FromMap(m))
}

// injectMetadata adds trace context to outgoing gRPC metadata.
func injectMetadata(ctx context.Context) context.Context {
	tc, ok := FromContext(ctx)
	if !ok {
		tc = New()
		ctx = WithContext(ctx, tc)
	}

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		md = metadata.New(nil)
	} else {
		md = md.Copy()
	}
	for k, v := range tc.ToMap() {
		md.Set(k, v)
	}
	return metadata.NewOutgoingContext(ctx, md)
}
