package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashureev/autofinance/internal/domain"
)

// ClassifyMethod is the full gRPC method name served by remote classifiers.
// Requests and responses are google.protobuf.Struct documents.
const ClassifyMethod = "/autofinance.v1.Classifier/Classify"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GrpcClientConfig holds configuration for the gRPC classifier client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	DialOptions      []grpc.DialOption
}

// DefaultGrpcClientConfig returns default configuration for addr.
func DefaultGrpcClientConfig(addr string) GrpcClientConfig {
	return GrpcClientConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcClassifier calls a remote classifier service.
type GrpcClassifier struct {
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// NewGrpcClassifier connects to a remote classifier and waits until the
// connection is ready so bad endpoints fail at startup.
func NewGrpcClassifier(cfg GrpcClientConfig, logger *slog.Logger) (*GrpcClassifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("create classifier client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("classifier at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to classifier service", "address", cfg.Address)
	return &GrpcClassifier{conn: conn, addr: cfg.Address, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Classify implements Classifier.
func (g *GrpcClassifier) Classify(ctx context.Context, sc SessionContext, raw string) (Classification, error) {
	req, err := structpb.NewStruct(map[string]any{
		"session_id":    sc.SessionID,
		"phase":         string(sc.Phase),
		"pending":       string(sc.Pending),
		"listing_count": float64(sc.ListingCount),
		"message":       raw,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("encode classify request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, ClassifyMethod, req, resp); err != nil {
		return Classification{}, fmt.Errorf("grpc classify: %w", err)
	}
	return fromWire(resp.AsMap()), nil
}

// Close closes the gRPC connection.
func (g *GrpcClassifier) Close() {
	if g.conn != nil {
		if err := g.conn.Close(); err != nil {
			g.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// ClassifierServer is implemented by services that expose a Classifier over gRPC.
type ClassifierServer interface {
	Classify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterClassifierServer registers srv on s under ClassifyMethod.
func RegisterClassifierServer(s grpc.ServiceRegistrar, srv ClassifierServer) {
	s.RegisterService(&classifierServiceDesc, srv)
}

var classifierServiceDesc = grpc.ServiceDesc{
	ServiceName: "autofinance.v1.Classifier",
	HandlerType: (*ClassifierServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Classify",
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return srv.(ClassifierServer).Classify(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ClassifyMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return srv.(ClassifierServer).Classify(ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}},
	Metadata: "autofinance/v1/classifier.proto",
}

// ServeClassifier adapts a Classifier to ClassifierServer.
type ServeClassifier struct {
	Classifier Classifier
}

// Classify implements ClassifierServer.
func (s ServeClassifier) Classify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	m := req.AsMap()
	raw, _ := m["message"].(string)
	phase, _ := m["phase"].(string)
	pending, _ := m["pending"].(string)
	count, _ := m["listing_count"].(float64)
	sid, _ := m["session_id"].(string)

	sc := SessionContext{
		SessionID:    sid,
		Phase:        domain.Phase(phase),
		Pending:      domain.PendingDecision(pending),
		ListingCount: int(count),
	}
	c, err := s.Classifier.Classify(ctx, sc, raw)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(toWire(c))
}
