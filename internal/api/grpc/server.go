package grpcapi

import (
	"context"
	"errors"
	"sync"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"sensor-proxy/internal/application/inspector"
	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/logging"
)

var histogramOnce sync.Once

// NewServer constructs a gRPC server exposing the SensorInspector transport.
func NewServer(service domain.SensorInspector, logger *logging.Logger) *grpc.Server {
	histogramOnce.Do(func() { grpc_prometheus.EnableHandlingTimeHistogram() })

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		loggingInterceptor(logger),
		infra.GRPCUnaryInterceptor(),
		grpc_prometheus.UnaryServerInterceptor,
	))
	RegisterSensorInspectorServer(server, &inspectorServer{service: service})
	grpc_prometheus.Register(server)
	return server
}

type inspectorServer struct {
	service domain.SensorInspector
}

func (s *inspectorServer) ListSensors(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return snapshotList(s.service.ListSensors(ctx))
}

func (s *inspectorServer) GetSensor(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "sensor name is required")
	}
	snapshot, err := s.service.GetSensor(ctx, req.GetValue())
	if err != nil {
		return nil, translateServiceError(err)
	}
	return snapshotStruct(snapshot)
}

func (s *inspectorServer) ListOrigSensors(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return snapshotList(s.service.ListOrigSensors(ctx))
}

func (s *inspectorServer) GetOrigSensor(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "sensor name is required")
	}
	snapshot, err := s.service.GetOrigSensor(ctx, req.GetValue())
	if err != nil {
		return nil, translateServiceError(err)
	}
	return snapshotStruct(snapshot)
}

// History expects a struct with "name", "from" and "to"; times are RFC 3339.
func (s *inspectorServer) History(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	fields := req.GetFields()
	name := fields["name"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "sensor name is required")
	}

	from, err := time.Parse(time.RFC3339Nano, fields["from"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid from timestamp")
	}
	to, err := time.Parse(time.RFC3339Nano, fields["to"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid to timestamp")
	}

	records, err := s.service.History(ctx, name, from, to)
	if err != nil {
		return nil, translateServiceError(err)
	}

	values := make([]any, 0, len(records))
	for _, record := range records {
		entry := map[string]any{
			"sensor":    record.Sensor,
			"value":     record.Value,
			"status":    record.Status.String(),
			"timestamp": record.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		if record.Numeric != nil {
			entry["numeric"] = *record.Numeric
		}
		values = append(values, entry)
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode history")
	}
	return list, nil
}

func snapshotList(snapshots []domain.SensorSnapshot) (*structpb.ListValue, error) {
	values := make([]any, 0, len(snapshots))
	for _, snapshot := range snapshots {
		values = append(values, snapshotFields(snapshot))
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode sensors")
	}
	return list, nil
}

func snapshotStruct(snapshot domain.SensorSnapshot) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(snapshotFields(snapshot))
	if err != nil {
		return nil, status.Error(codes.Internal, "encode sensor")
	}
	return out, nil
}

func snapshotFields(snapshot domain.SensorSnapshot) map[string]any {
	return map[string]any{
		"name":        snapshot.Name,
		"description": snapshot.Description,
		"units":       snapshot.Units,
		"type":        snapshot.Type,
		"value":       snapshot.Value,
		"status":      snapshot.Status.String(),
		"timestamp":   snapshot.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func translateServiceError(err error) error {
	switch {
	case errors.Is(err, domain.ErrSensorNotFound):
		return status.Error(codes.NotFound, "sensor not found")
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "no readings found")
	case errors.Is(err, inspector.ErrInvalidRange):
		return status.Error(codes.InvalidArgument, "from must be before to")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func loggingInterceptor(logger *logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)
		if err != nil {
			logger.Warn("grpc: request failed", logging.AttachError(err, "method", info.FullMethod, "duration", duration)...)
		} else {
			logger.Debug("grpc: request completed", "method", info.FullMethod, "duration", duration)
		}
		return resp, err
	}
}
