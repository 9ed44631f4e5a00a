package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "sensorproxy.SensorInspector"

// SensorInspectorServer is the gRPC surface of the inspector. Sensors travel as
// structpb.Struct values so no generated code is needed.
type SensorInspectorServer interface {
	ListSensors(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetSensor(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListOrigSensors(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetOrigSensor(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.ListValue, error)
}

// RegisterSensorInspectorServer registers the service implementation with the provided registrar.
func RegisterSensorInspectorServer(s grpc.ServiceRegistrar, srv SensorInspectorServer) {
	s.RegisterService(&SensorInspector_ServiceDesc, srv)
}

// SensorInspector_ServiceDesc describes the inspector service for the gRPC server.
var SensorInspector_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SensorInspectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSensors", Handler: unaryHandler("ListSensors", SensorInspectorServer.ListSensors)},
		{MethodName: "GetSensor", Handler: unaryHandler("GetSensor", SensorInspectorServer.GetSensor)},
		{MethodName: "ListOrigSensors", Handler: unaryHandler("ListOrigSensors", SensorInspectorServer.ListOrigSensors)},
		{MethodName: "GetOrigSensor", Handler: unaryHandler("GetOrigSensor", SensorInspectorServer.GetOrigSensor)},
		{MethodName: "History", Handler: unaryHandler("History", SensorInspectorServer.History)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sensorproxy/inspector.proto",
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// unaryHandler adapts a typed server method to grpc.MethodDesc.
func unaryHandler[Req any, Resp any](method string, call func(SensorInspectorServer, context.Context, *Req) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SensorInspectorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SensorInspectorServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
