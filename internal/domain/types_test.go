package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSensorType(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		args     [][]byte
		want     SensorType
	}{
		{"integer without range", "integer", nil, IntegerType{}},
		{"integer with range", "integer", [][]byte{[]byte("-5"), []byte("10")}, IntegerType{Min: -5, Max: 10}},
		{"float with range", "float", [][]byte{[]byte("0.5"), []byte("1.5")}, FloatType{Min: 0.5, Max: 1.5}},
		{"boolean", "boolean", nil, BooleanType{}},
		{"discrete", "discrete", [][]byte{[]byte("ok"), []byte("fail")}, DiscreteType{Values: []string{"ok", "fail"}}},
		{"string", "string", nil, StringType{}},
		{"timestamp", "timestamp", nil, TimestampType{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSensorType(tc.typeName, tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.typeName, got.Name())
		})
	}
}

func TestParseSensorTypeErrors(t *testing.T) {
	_, err := ParseSensorType("lru", nil)
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = ParseSensorType("discrete", nil)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseSensorType("integer", [][]byte{[]byte("x"), []byte("1")})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestSensorTypeDecode(t *testing.T) {
	v, err := IntegerType{}.Decode([]byte("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = FloatType{}.Decode([]byte("2.5"))
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = BooleanType{}.Decode([]byte("1"))
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = DiscreteType{Values: []string{"ok", "fail"}}.Decode([]byte("fail"))
	require.NoError(t, err)
	assert.Equal(t, "fail", v)

	v, err = StringType{}.Decode([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)

	v, err = TimestampType{}.Decode([]byte("1700000000.5"))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 500000000).UTC(), v)
}

func TestSensorTypeDecodeRejectsBadValues(t *testing.T) {
	cases := map[string]SensorType{
		"abc":     IntegerType{},
		"1.2.3":   FloatType{},
		"yes":     BooleanType{},
		"unknown": DiscreteType{Values: []string{"ok"}},
		"nan":     TimestampType{},
	}
	for raw, stype := range cases {
		_, err := stype.Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidValue, "type %s value %q", stype.Name(), raw)
	}
}

func TestSensorTypeEncodeRoundTrip(t *testing.T) {
	assert.Equal(t, "42", string(IntegerType{}.Encode(int64(42))))
	assert.Equal(t, "2.5", string(FloatType{}.Encode(2.5)))
	assert.Equal(t, "1", string(BooleanType{}.Encode(true)))
	assert.Equal(t, "ok", string(DiscreteType{Values: []string{"ok"}}.Encode("ok")))
	assert.Equal(t, "1700000000.5", string(TimestampType{}.Encode(time.Unix(1700000000, 500000000))))
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, int64(0), IntegerType{Min: 3, Max: 5}.Default())
	assert.Equal(t, "ok", DiscreteType{Values: []string{"ok", "fail"}}.Default())
	assert.Equal(t, []byte{}, StringType{}.Default())
	assert.Equal(t, false, BooleanType{}.Default())
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusNominal.ValidValue())
	assert.True(t, StatusWarn.ValidValue())
	assert.True(t, StatusError.ValidValue())
	assert.False(t, StatusFailure.ValidValue())
	assert.False(t, StatusUnreachable.ValidValue())
	assert.False(t, StatusUnknown.ValidValue())
	assert.False(t, StatusInactive.ValidValue())

	status, err := ParseStatus("Unreachable")
	require.NoError(t, err)
	assert.Equal(t, StatusUnreachable, status)
	assert.Equal(t, "unreachable", status.String())

	_, err = ParseStatus("bogus")
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, "status(42)", Status(42).String())
}

func TestNumeric(t *testing.T) {
	discrete := DiscreteType{Values: []string{"ok", "fail"}}
	cases := []struct {
		stype SensorType
		value any
		want  float64
	}{
		{IntegerType{}, int64(-3), -3},
		{FloatType{}, 2.5, 2.5},
		{BooleanType{}, true, 1},
		{BooleanType{}, false, 0},
		{TimestampType{}, time.Unix(10, 250000000), 10.25},
		{discrete, "fail", 1},
		{discrete, "missing", -1},
	}
	for _, tc := range cases {
		got, err := Numeric(tc.stype, tc.value)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := Numeric(StringType{}, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = Numeric(StringType{}, "x")
	assert.ErrorIs(t, err, ErrInvalidValue)
}
