package grpcapi

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"sensor-proxy/internal/domain"
)

// Client calls the inspector service and converts replies back to domain types.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListSensors(ctx context.Context, opts ...grpc.CallOption) ([]domain.SensorSnapshot, error) {
	return c.list(ctx, "ListSensors", opts...)
}

func (c *Client) ListOrigSensors(ctx context.Context, opts ...grpc.CallOption) ([]domain.SensorSnapshot, error) {
	return c.list(ctx, "ListOrigSensors", opts...)
}

func (c *Client) GetSensor(ctx context.Context, name string, opts ...grpc.CallOption) (domain.SensorSnapshot, error) {
	return c.get(ctx, "GetSensor", name, opts...)
}

func (c *Client) GetOrigSensor(ctx context.Context, name string, opts ...grpc.CallOption) (domain.SensorSnapshot, error) {
	return c.get(ctx, "GetOrigSensor", name, opts...)
}

// History returns the archived readings of a sensor within [from, to].
func (c *Client) History(ctx context.Context, name string, from, to time.Time, opts ...grpc.CallOption) ([]domain.SensorRecord, error) {
	in, err := structpb.NewStruct(map[string]any{
		"name": name,
		"from": from.UTC().Format(time.RFC3339Nano),
		"to":   to.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}

	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod("History"), in, out, opts...); err != nil {
		return nil, err
	}

	records := make([]domain.SensorRecord, 0, len(out.GetValues()))
	for _, value := range out.GetValues() {
		fields := value.GetStructValue().GetFields()
		record := domain.SensorRecord{
			Sensor: fields["sensor"].GetStringValue(),
			Value:  fields["value"].GetStringValue(),
		}
		if record.Status, err = domain.ParseStatus(fields["status"].GetStringValue()); err != nil {
			return nil, err
		}
		if record.Timestamp, err = time.Parse(time.RFC3339Nano, fields["timestamp"].GetStringValue()); err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		if numeric, ok := fields["numeric"]; ok {
			v := numeric.GetNumberValue()
			record.Numeric = &v
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *Client) list(ctx context.Context, method string, opts ...grpc.CallOption) ([]domain.SensorSnapshot, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod(method), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}

	snapshots := make([]domain.SensorSnapshot, 0, len(out.GetValues()))
	for _, value := range out.GetValues() {
		snapshot, err := fromStruct(value.GetStructValue())
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (c *Client) get(ctx context.Context, method, name string, opts ...grpc.CallOption) (domain.SensorSnapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), wrapperspb.String(name), out, opts...); err != nil {
		return domain.SensorSnapshot{}, err
	}
	return fromStruct(out)
}

func fromStruct(in *structpb.Struct) (domain.SensorSnapshot, error) {
	fields := in.GetFields()
	snapshot := domain.SensorSnapshot{
		Name:        fields["name"].GetStringValue(),
		Description: fields["description"].GetStringValue(),
		Units:       fields["units"].GetStringValue(),
		Type:        fields["type"].GetStringValue(),
		Value:       fields["value"].GetStringValue(),
	}

	var err error
	if snapshot.Status, err = domain.ParseStatus(fields["status"].GetStringValue()); err != nil {
		return domain.SensorSnapshot{}, err
	}
	if snapshot.Timestamp, err = time.Parse(time.RFC3339Nano, fields["timestamp"].GetStringValue()); err != nil {
		return domain.SensorSnapshot{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return snapshot, nil
}
