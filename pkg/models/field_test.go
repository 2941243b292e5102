package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedValueAccessors(t *testing.T) {
	assert.Equal(t, true, BooleanValue(true).Bool())
	assert.Equal(t, 3.14, DoubleValue(3.14).Double())
	assert.Equal(t, float32(2.5), FloatValue(2.5).Float())
	assert.Equal(t, int32(-7), IntegerValue(-7).Integer())
	assert.Equal(t, int64(1<<40), LongValue(1<<40).Long())
	assert.Equal(t, "on", StringValue("on").Str())
}

func TestTypedValueFloat64(t *testing.T) {
	f, ok := DoubleValue(1.5).Float64()
	require.True(t, ok)
	assert.Equal(t, 1.5, f)

	f, ok = IntegerValue(3).Float64()
	require.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = StringValue("3").Float64()
	assert.False(t, ok)

	_, ok = BooleanValue(true).Float64()
	assert.False(t, ok)
}

func TestTypedValueEqual(t *testing.T) {
	assert.True(t, DoubleValue(1).Equal(DoubleValue(1)))
	assert.False(t, DoubleValue(1).Equal(IntegerValue(1)))
	assert.False(t, StringValue("a").Equal(StringValue("b")))
}

func TestTypedValueMarshalJSON(t *testing.T) {
	tests := []struct {
		value    TypedValue
		expected string
	}{
		{BooleanValue(true), "true"},
		{DoubleValue(37), "37"},
		{IntegerValue(-1), "-1"},
		{StringValue("ok"), `"ok"`},
	}

	for _, tt := range tests {
		out, err := json.Marshal(tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, string(out))
	}
}

func TestValueTypeNumeric(t *testing.T) {
	assert.True(t, TypeDouble.Numeric())
	assert.True(t, TypeFloat.Numeric())
	assert.True(t, TypeInteger.Numeric())
	assert.True(t, TypeLong.Numeric())
	assert.False(t, TypeBoolean.Numeric())
	assert.False(t, TypeString.Numeric())
	assert.False(t, ValueType("decimal").Valid())
}

func TestFieldDescriptorCanonicalName(t *testing.T) {
	plain := FieldDescriptor{Name: "roomTemp", ValueType: TypeDouble}
	assert.Equal(t, "roomTemp", plain.CanonicalName())

	aliased := FieldDescriptor{Name: "temperature", ValueType: TypeInteger, AliasOf: "temperature"}
	assert.Equal(t, "temperature", aliased.CanonicalName())
}

func TestNewFieldTypeMismatch(t *testing.T) {
	d := FieldDescriptor{Name: "temperature", ValueType: TypeDouble}

	f, err := NewField(d, DoubleValue(21.5))
	require.NoError(t, err)
	assert.Equal(t, 21.5, f.Value.Double())

	_, err = NewField(d, StringValue("21.5"))
	require.ErrorIs(t, err, ErrValueTypeMismatch)
}

func TestExecutionResultCompleted(t *testing.T) {
	ok := ExecutionResult{State: StateCompleted}
	assert.True(t, ok.Completed())

	failed := ExecutionResult{
		State:   StateFailed,
		Failure: &Failure{Kind: FailureParse, Message: "bad payload"},
	}
	assert.False(t, failed.Completed())
	assert.Equal(t, "parse_error: bad payload", failed.Failure.Error())
}
