package forwarder

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/firestone-hs/decktracker/internal/decktracker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Stream service names. The messages are well-known protobuf types so no
// generated code is needed on either side.
const (
	StreamServiceName = "decktracker.v1.StateStream"
	SubscribeMethod   = "/" + StreamServiceName + "/Subscribe"
)

// StateStreamServer is implemented by the gRPC forwarder.
type StateStreamServer interface {
	Subscribe(*structpb.Struct, grpc.ServerStream) error
}

// StreamServiceDesc describes the server-streaming StateStream service.
var StreamServiceDesc = grpc.ServiceDesc{
	ServiceName: StreamServiceName,
	HandlerType: (*StateStreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "decktracker/v1/stream.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(StateStreamServer).Subscribe(req, stream)
}

// StreamForwarder pushes every notification to the subscribed gRPC streams.
type StreamForwarder struct {
	mu          sync.RWMutex
	subscribers map[int]chan *structpb.Struct
	nextID      int

	auth   TokenChecker
	logger *zap.Logger
}

// NewStreamForwarder creates a forwarder with no subscribers.
func NewStreamForwarder(auth TokenChecker, logger *zap.Logger) *StreamForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamForwarder{
		subscribers: make(map[int]chan *structpb.Struct),
		auth:        auth,
		logger:      logger,
	}
}

// Subscribers reports how many streams are attached.
func (f *StreamForwarder) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Emit converts the notification and hands it to every subscriber. A
// subscriber whose buffer is full misses the update.
func (f *StreamForwarder) Emit(ctx context.Context, n decktracker.Notification) {
	msg, err := NotificationStruct(n, time.Now())
	if err != nil {
		f.logger.Error("failed to convert notification", zap.String("event", n.Event.Name), zap.Error(err))
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for id, ch := range f.subscribers {
		select {
		case ch <- msg:
		default:
			f.logger.Warn("grpc subscriber lagging, update dropped", zap.Int("subscriber", id), zap.String("event", n.Event.Name))
		}
	}
}

// Subscribe streams notifications until the client goes away.
func (f *StreamForwarder) Subscribe(_ *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	if err := f.auth.Check(tokenFromMetadata(ctx)); err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}

	ch := make(chan *structpb.Struct, sendBuffer)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subscribers[id] = ch
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}()

	f.logger.Info("grpc subscriber attached", zap.Int("subscriber", id), zap.String("host", hostFromContext(ctx)))
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("grpc subscriber detached", zap.Int("subscriber", id))
			return nil
		case msg := <-ch:
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// NotificationStruct renders a notification as a protobuf Struct with the
// event name, the state snapshot and the emission time.
func NotificationStruct(n decktracker.Notification, at time.Time) (*structpb.Struct, error) {
	var state map[string]any
	if n.State != nil {
		raw, err := json.Marshal(n.State)
		if err != nil {
			return nil, fmt.Errorf("encode state: %w", err)
		}
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
	}
	payload := map[string]any{
		"event":     n.Event.Name,
		"emittedAt": timestamppb.New(at).AsTime().Format(time.RFC3339Nano),
	}
	if state != nil {
		payload["state"] = state
	}
	return structpb.NewStruct(payload)
}

// NewGRPCServer builds a server with the forwarder registered.
func NewGRPCServer(f *StreamForwarder, logger *zap.Logger) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainStreamInterceptor(
			RecoveryStreamInterceptor(logger),
			LoggingStreamInterceptor(logger),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)
	srv.RegisterService(&StreamServiceDesc, f)
	return srv
}

// ServeGRPC listens on addr until ctx is done.
func ServeGRPC(ctx context.Context, addr string, f *StreamForwarder, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := NewGRPCServer(f, logger)
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	logger.Info("starting gRPC forwarder", zap.String("address", addr))
	return srv.Serve(lis)
}

// RecoveryStreamInterceptor turns handler panics into Internal errors.
func RecoveryStreamInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in stream handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(srv, ss)
	}
}

// LoggingStreamInterceptor logs each stream with its duration.
func LoggingStreamInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.String("host", hostFromContext(ss.Context())),
		}
		if err != nil {
			logger.Warn("stream finished with error", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("stream finished", fields...)
		}
		return err
	}
}

func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get("authorization") {
		if token, ok := bearer(value); ok {
			return token
		}
	}
	return ""
}

func hostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
