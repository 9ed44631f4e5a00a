package domain

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// SensorType describes how values of a sensor are represented on the katcp wire.
type SensorType interface {
	// Name returns the katcp type name, e.g. "integer" or "discrete".
	Name() string
	// Default returns the zero value used when a sensor is reset.
	Default() any
	// Decode parses a raw katcp value.
	Decode(raw []byte) (any, error)
	// Encode renders a value in katcp text form.
	Encode(value any) []byte
}

type IntegerType struct {
	Min, Max int64
}

func (IntegerType) Name() string { return "integer" }
func (IntegerType) Default() any { return int64(0) }

func (IntegerType) Decode(raw []byte) (any, error) {
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: integer %q", ErrInvalidValue, raw)
	}
	return v, nil
}

func (IntegerType) Encode(value any) []byte {
	v, _ := value.(int64)
	return strconv.AppendInt(nil, v, 10)
}

type FloatType struct {
	Min, Max float64
}

func (FloatType) Name() string { return "float" }
func (FloatType) Default() any { return float64(0) }

func (FloatType) Decode(raw []byte) (any, error) {
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: float %q", ErrInvalidValue, raw)
	}
	return v, nil
}

func (FloatType) Encode(value any) []byte {
	v, _ := value.(float64)
	return strconv.AppendFloat(nil, v, 'g', -1, 64)
}

type BooleanType struct{}

func (BooleanType) Name() string { return "boolean" }
func (BooleanType) Default() any { return false }

func (BooleanType) Decode(raw []byte) (any, error) {
	switch string(raw) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return nil, fmt.Errorf("%w: boolean %q", ErrInvalidValue, raw)
	}
}

func (BooleanType) Encode(value any) []byte {
	if v, _ := value.(bool); v {
		return []byte("1")
	}
	return []byte("0")
}

// DiscreteType is an enumeration. Values are ordered; the order defines the ordinal
// exported to Prometheus.
type DiscreteType struct {
	Values []string
}

func (DiscreteType) Name() string { return "discrete" }

func (d DiscreteType) Default() any {
	if len(d.Values) == 0 {
		return ""
	}
	return d.Values[0]
}

func (d DiscreteType) Decode(raw []byte) (any, error) {
	value := string(raw)
	if d.Index(value) < 0 {
		return nil, fmt.Errorf("%w: %q is not one of %v", ErrInvalidValue, value, d.Values)
	}
	return value, nil
}

func (DiscreteType) Encode(value any) []byte {
	v, _ := value.(string)
	return []byte(v)
}

// Index returns the position of value within the domain, or -1.
func (d DiscreteType) Index(value string) int {
	for i, candidate := range d.Values {
		if candidate == value {
			return i
		}
	}
	return -1
}

// StringType holds arbitrary bytes.
type StringType struct{}

func (StringType) Name() string { return "string" }
func (StringType) Default() any { return []byte{} }

func (StringType) Decode(raw []byte) (any, error) {
	return append([]byte(nil), raw...), nil
}

func (StringType) Encode(value any) []byte {
	v, _ := value.([]byte)
	return append([]byte(nil), v...)
}

// TimestampType values are seconds since the Unix epoch.
type TimestampType struct{}

func (TimestampType) Name() string { return "timestamp" }
func (TimestampType) Default() any { return time.Unix(0, 0).UTC() }

func (TimestampType) Decode(raw []byte) (any, error) {
	secs, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return nil, fmt.Errorf("%w: timestamp %q", ErrInvalidValue, raw)
	}
	return FromSeconds(secs), nil
}

func (TimestampType) Encode(value any) []byte {
	v, _ := value.(time.Time)
	return strconv.AppendFloat(nil, Seconds(v), 'f', -1, 64)
}

// ParseSensorType builds a SensorType from the katcp type name and its parameters
// as listed in a #sensor-list inform.
func ParseSensorType(typeName string, args [][]byte) (SensorType, error) {
	switch typeName {
	case "integer":
		t := IntegerType{}
		if len(args) >= 2 {
			lo, errLo := strconv.ParseInt(string(args[0]), 10, 64)
			hi, errHi := strconv.ParseInt(string(args[1]), 10, 64)
			if errLo != nil || errHi != nil {
				return nil, fmt.Errorf("%w: integer range %q..%q", ErrInvalidValue, args[0], args[1])
			}
			t.Min, t.Max = lo, hi
		}
		return t, nil
	case "float":
		t := FloatType{}
		if len(args) >= 2 {
			lo, errLo := strconv.ParseFloat(string(args[0]), 64)
			hi, errHi := strconv.ParseFloat(string(args[1]), 64)
			if errLo != nil || errHi != nil {
				return nil, fmt.Errorf("%w: float range %q..%q", ErrInvalidValue, args[0], args[1])
			}
			t.Min, t.Max = lo, hi
		}
		return t, nil
	case "boolean":
		return BooleanType{}, nil
	case "discrete":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: discrete sensor without values", ErrInvalidValue)
		}
		values := make([]string, len(args))
		for i, arg := range args {
			values[i] = string(arg)
		}
		return DiscreteType{Values: values}, nil
	case "string":
		return StringType{}, nil
	case "timestamp":
		return TimestampType{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
}

// Seconds converts a time to fractional seconds since the epoch.
func Seconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// FromSeconds converts fractional seconds since the epoch to a UTC time.
func FromSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// Numeric returns the numeric form of a value: numbers as-is, booleans as 0 or 1,
// timestamps as epoch seconds and discrete values as their position in the domain
// (-1 when outside it). Strings have no numeric form.
func Numeric(stype SensorType, value any) (float64, error) {
	switch v := value.(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case time.Time:
		return Seconds(v), nil
	case string:
		discrete, ok := stype.(DiscreteType)
		if !ok {
			return 0, fmt.Errorf("%w: string value of %s sensor", ErrInvalidValue, stype.Name())
		}
		return float64(discrete.Index(v)), nil
	default:
		return 0, fmt.Errorf("%w: %T has no numeric form", ErrInvalidValue, value)
	}
}
