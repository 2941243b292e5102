package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fieldpipe/pkg/manifest"
	"github.com/carverauto/fieldpipe/pkg/models"
)

const thermostatSource = `
TEMP = standard("temperature")
STATUS = descriptor("doorStatus", "String")

def get_field_descriptors():
    return [TEMP, STATUS]

def normalize(raw):
    data = json.decode(raw)
    return [
        field(TEMP, data["temp_f"], unit="fahrenheit"),
        field(STATUS, data["status"]),
    ]
`

func loadManifest(t *testing.T, source string, limits models.ExecutionLimits) *manifest.Manifest {
	t.Helper()

	l := manifest.NewLoader(nil, limits, nil)

	info := models.ManifestInfo{
		ID:          "m-1",
		DeviceType:  "thermostat",
		Version:     "1",
		Status:      models.ManifestCertified,
		SubmittedAt: time.Now(),
	}

	m, err := l.Load(context.Background(), info, source)
	require.NoError(t, err)

	return m
}

func TestNormalizeCompleted(t *testing.T) {
	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, thermostatSource, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{"temp_f": 98.6, "status": "on"}`)

	require.True(t, result.Completed(), "unexpected failure: %v", result.Failure)
	require.Len(t, result.Fields, 2)

	temp := result.Fields[0]
	assert.Equal(t, "temperature", temp.Descriptor.Name)
	assert.Equal(t, models.Unit("celsius"), temp.Descriptor.Unit)
	assert.InDelta(t, 37.0, temp.Value.Double(), 1e-9)

	status := result.Fields[1]
	assert.Equal(t, "doorStatus", status.Descriptor.Name)
	assert.Equal(t, "on", status.Value.Str())

	assert.Positive(t, result.Steps)
	assert.Positive(t, result.Elapsed)
}

func TestNormalizeVerbatimStringField(t *testing.T) {
	src := `
STATUS = descriptor("STATUS", "String")

def get_field_descriptors():
    return [STATUS]

def normalize(raw):
    data = json.decode(raw)
    return [field(STATUS, data["status"])]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{"status":"on"}`)

	require.True(t, result.Completed(), "unexpected failure: %v", result.Failure)
	require.Len(t, result.Fields, 1)
	assert.Equal(t, "STATUS", result.Fields[0].Descriptor.Name)
	assert.Equal(t, "on", result.Fields[0].Value.Str())
}

func TestNormalizeStringPayloadWithUnitConversion(t *testing.T) {
	// The raw value arrives as a string in Fahrenheit; the manifest
	// parses it, the engine converts it into the descriptor's unit.
	src := `
MIN_TEMPERATURE = descriptor("MIN_TEMPERATURE", "Double", unit="celsius")

def get_field_descriptors():
    return [MIN_TEMPERATURE]

def normalize(raw):
    data = json.decode(raw)
    return [field(MIN_TEMPERATURE, float(data["minTemp"]), unit="fahrenheit")]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{"minTemp":"98.6"}`)

	require.True(t, result.Completed(), "unexpected failure: %v", result.Failure)
	require.Len(t, result.Fields, 1)
	assert.Equal(t, "MIN_TEMPERATURE", result.Fields[0].Descriptor.Name)
	assert.InDelta(t, 37.0, result.Fields[0].Value.Double(), 1e-9)
}

func TestNormalizeIntegerAliasRounds(t *testing.T) {
	src := `
MIN_TEMP = alias(standard("minTemperature"), "Integer")

def get_field_descriptors():
    return [MIN_TEMP]

def normalize(raw):
    data = json.decode(raw)
    return [field(MIN_TEMP, data["low"], unit="fahrenheit")]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{"low": 33}`)

	require.True(t, result.Completed(), "unexpected failure: %v", result.Failure)
	require.Len(t, result.Fields, 1)

	// 33F is 0.555..C; Integer fields round to nearest.
	assert.Equal(t, models.TypeInteger, result.Fields[0].Value.Type())
	assert.Equal(t, int32(1), result.Fields[0].Value.Integer())
}

func TestNormalizeParseFailure(t *testing.T) {
	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, thermostatSource, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `not json at all`)

	require.False(t, result.Completed())
	assert.Equal(t, models.StateFailed, result.State)
	assert.Equal(t, models.FailureParse, result.Failure.Kind)
	assert.Empty(t, result.Fields)
}

func TestNormalizePayloadEchoingCancelMessages(t *testing.T) {
	// Coercion errors echo the offending value. A payload that carries
	// text resembling a runtime cancellation must still classify as an
	// ordinary deterministic failure, not a termination or timeout.
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    data = json.decode(raw)
    return [field(TEMP, int(data["v"]))]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	payloads := []string{
		`{"v": "too many steps"}`,
		`{"v": "wall-clock budget exceeded"}`,
		`{"v": "capability violation"}`,
		`{"v": "Starlark computation cancelled: too many steps"}`,
	}

	for _, payload := range payloads {
		result := r.Normalize(context.Background(), m, payload)

		require.False(t, result.Completed(), "payload %s", payload)
		assert.Equal(t, models.StateFailed, result.State, "payload %s", payload)
		assert.Equal(t, models.FailureParse, result.Failure.Kind, "payload %s", payload)
	}
}

func TestNormalizeFailEchoingCancelMessage(t *testing.T) {
	// fail() puts payload text directly into the error message.
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    fail(raw)
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, "Starlark computation cancelled: too many steps")

	require.False(t, result.Completed())
	assert.Equal(t, models.StateFailed, result.State)
	assert.Equal(t, models.FailureParse, result.Failure.Kind)
}

func TestNormalizeUndeclaredDescriptor(t *testing.T) {
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    rogue = descriptor("spindleSpeed", "Double")
    return [field(rogue, 1.0)]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.StateFailed, result.State)
	assert.Equal(t, models.FailureDescriptorMismatch, result.Failure.Kind)
}

func TestNormalizeEmptyResult(t *testing.T) {
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    return []
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.FailureEmptyResult, result.Failure.Kind)
}

func TestNormalizeNonSequenceReturn(t *testing.T) {
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    return 42
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.FailureInternal, result.Failure.Kind)
}

func TestNormalizePrintTerminates(t *testing.T) {
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    print("leaking")
    return [field(TEMP, 21.0)]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.StateTerminated, result.State)
	assert.Equal(t, models.FailureCapabilityViolation, result.Failure.Kind)
	assert.Empty(t, result.Fields)
}

func TestNormalizePrintAfterValidFieldsStillTerminates(t *testing.T) {
	// The violation wins even when the field list was already built:
	// a terminated invocation delivers nothing.
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    out = [field(TEMP, 21.0)]
    print("done")
    return out
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.StateTerminated, result.State)
	assert.Equal(t, models.FailureCapabilityViolation, result.Failure.Kind)
	assert.Empty(t, result.Fields)
}

func TestNormalizeTimeout(t *testing.T) {
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    n = 0
    while True:
        n += 1
    return [field(TEMP, 21.0)]
`

	limits := models.DefaultExecutionLimits()
	limits.Timeout = 50 * time.Millisecond
	limits.MaxSteps = 1 << 40 // only the clock should fire
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.StateTimedOut, result.State)
	assert.Equal(t, models.FailureTimeout, result.Failure.Kind)
	assert.Empty(t, result.Fields)
}

func TestNormalizeStepBudget(t *testing.T) {
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    n = 0
    for i in range(1000000):
        n += i
    return [field(TEMP, 21.0)]
`

	limits := models.DefaultExecutionLimits()
	limits.MaxSteps = 10_000
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.StateTerminated, result.State)
	assert.Equal(t, models.FailureCapabilityViolation, result.Failure.Kind)
}

func TestNormalizeFrozenGlobals(t *testing.T) {
	// Module globals are frozen after load, so manifests cannot carry
	// state from one invocation to the next.
	src := `
TEMP = standard("temperature")
SEEN = []

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    SEEN.append(raw)
    return [field(TEMP, 21.0)]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.StateFailed, result.State)
	assert.Equal(t, models.FailureParse, result.Failure.Kind)
	assert.Contains(t, result.Failure.Message, "frozen")
}

func TestNormalizeMaxFields(t *testing.T) {
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    return [field(TEMP, float(i)) for i in range(100)]
`

	limits := models.DefaultExecutionLimits()
	limits.MaxFields = 10
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.StateTerminated, result.State)
	assert.Equal(t, models.FailureCapabilityViolation, result.Failure.Kind)
}

func TestNormalizePayloadTooLarge(t *testing.T) {
	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, thermostatSource, limits)

	limits.MaxPayloadBytes = 8
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{"temp_f": 98.6, "status": "on"}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.FailureInternal, result.Failure.Kind)
}

func TestNormalizeIncompatibleUnit(t *testing.T) {
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    return [field(TEMP, 1.0, unit="meters")]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.StateFailed, result.State)
	assert.Equal(t, models.FailureIncompatibleUnit, result.Failure.Kind)
}

func TestNormalizeUnitOnUnitlessDescriptor(t *testing.T) {
	src := `
STATUS = descriptor("doorStatus", "String")

def get_field_descriptors():
    return [STATUS]

def normalize(raw):
    return [field(STATUS, "open", unit="meters")]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.FailureIncompatibleUnit, result.Failure.Kind)
}

func TestNormalizeCoercionFailure(t *testing.T) {
	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    return [field(TEMP, "not a number")]
`

	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, src, limits)
	r := NewRuntime(limits, nil)

	result := r.Normalize(context.Background(), m, `{}`)

	require.False(t, result.Completed())
	assert.Equal(t, models.FailureParse, result.Failure.Kind)
}

func TestNormalizeConcurrentInvocations(t *testing.T) {
	limits := models.DefaultExecutionLimits()
	m := loadManifest(t, thermostatSource, limits)
	r := NewRuntime(limits, nil)

	done := make(chan models.ExecutionResult, 8)

	for i := 0; i < 8; i++ {
		go func() {
			done <- r.Normalize(context.Background(), m, `{"temp_f": 212, "status": "on"}`)
		}()
	}

	for i := 0; i < 8; i++ {
		result := <-done
		require.True(t, result.Completed(), "unexpected failure: %v", result.Failure)
		assert.InDelta(t, 100.0, result.Fields[0].Value.Double(), 1e-9)
	}
}
