package certify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fieldpipe/pkg/models"
)

const goodSource = `
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

func submission(deviceType string) models.ManifestInfo {
	return models.ManifestInfo{
		ID:          "m-1",
		DeviceType:  deviceType,
		Version:     "1",
		Status:      models.ManifestSubmitted,
		SubmittedAt: time.Now(),
	}
}

func ruleSet(report models.CertificationReport) map[string]int {
	rules := make(map[string]int)
	for _, v := range report.Violations {
		rules[v.Rule]++
	}

	return rules
}

func TestCertifyPasses(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	samples := []Sample{
		{Name: "nominal", Payload: `{"temp_f": 98.6, "status": "on"}`},
		{Name: "cold", Payload: `{"temp_f": 33, "status": "off"}`},
	}

	report := p.Certify(context.Background(), submission("thermostat"), goodSource, samples)

	assert.True(t, report.Passed, "violations: %+v", report.Violations)
	assert.Empty(t, report.Violations)
	require.Len(t, report.Samples, 2)
	assert.Equal(t, "nominal", report.Samples[0].Sample)
	assert.True(t, report.Samples[0].Result.Completed())
	assert.NotEmpty(t, report.ReportID)
	assert.Equal(t, "thermostat", report.DeviceType)
}

func TestCertifyRequiresSamples(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	report := p.Certify(context.Background(), submission("thermostat"), goodSource, nil)

	assert.False(t, report.Passed)
	assert.Contains(t, ruleSet(report), RuleSamples)
}

func TestCertifyContractViolation(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	src := `
def get_field_descriptors():
    return [descriptor("doorStatus", "String")]
`

	report := p.Certify(context.Background(), submission("thermostat"), src,
		[]Sample{{Name: "s", Payload: `{}`}})

	assert.False(t, report.Passed)
	assert.Contains(t, ruleSet(report), RuleContract)
	// Loading failed, so no sample ever ran.
	assert.Empty(t, report.Samples)
}

func TestCertifyEmptyDescriptorSet(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	src := `
def get_field_descriptors():
    return []

def normalize(raw):
    return []
`

	report := p.Certify(context.Background(), submission("thermostat"), src,
		[]Sample{{Name: "s", Payload: `{}`}})

	assert.False(t, report.Passed)
	assert.Contains(t, ruleSet(report), RuleDescriptorSet)
}

func TestCertifyRedeclaredDescriptor(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	src := `
def get_field_descriptors():
    return [
        descriptor("doorStatus", "String"),
        descriptor("doorStatus", "Boolean"),
    ]

def normalize(raw):
    return []
`

	report := p.Certify(context.Background(), submission("thermostat"), src,
		[]Sample{{Name: "s", Payload: `{}`}})

	assert.False(t, report.Passed)
	assert.Contains(t, ruleSet(report), RuleDescriptorSet)
}

func TestCertifyGenericName(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	src := `
D = descriptor("misc", "String")

def get_field_descriptors():
    return [D]

def normalize(raw):
    return [field(D, raw)]
`

	report := p.Certify(context.Background(), submission("thermostat"), src,
		[]Sample{{Name: "s", Payload: `anything`}})

	assert.False(t, report.Passed)
	assert.Contains(t, ruleSet(report), RuleNameGeneric)
}

func TestCertifyBannedPrint(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    print(raw)
    return [field(TEMP, 21.0)]
`

	report := p.Certify(context.Background(), submission("thermostat"), src,
		[]Sample{{Name: "s", Payload: `{}`}})

	assert.False(t, report.Passed)

	rules := ruleSet(report)
	// Caught statically and again at runtime when the sample executes.
	assert.Contains(t, rules, RuleBannedAPI)
	assert.Contains(t, rules, RuleRunCapability)
}

func TestCertifyBannedToken(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	src := `
TEMP = standard("temperature")

# fetch via urlopen once networking lands
def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    return [field(TEMP, 21.0)]
`

	report := p.Certify(context.Background(), submission("thermostat"), src,
		[]Sample{{Name: "s", Payload: `{}`}})

	assert.False(t, report.Passed)
	assert.Contains(t, ruleSet(report), RuleBannedAPI)
}

func TestCertifySampleFailure(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	samples := []Sample{
		{Name: "good", Payload: `{"temp_f": 98.6, "status": "on"}`},
		{Name: "broken", Payload: `not json`},
	}

	report := p.Certify(context.Background(), submission("thermostat"), goodSource, samples)

	assert.False(t, report.Passed)
	require.Len(t, report.Samples, 2)
	assert.True(t, report.Samples[0].Result.Completed())
	assert.False(t, report.Samples[1].Result.Completed())

	rules := ruleSet(report)
	require.Contains(t, rules, RuleRunFailed)

	for _, v := range report.Violations {
		if v.Rule == RuleRunFailed {
			assert.Equal(t, "broken", v.Sample)
		}
	}
}

func TestCertifyEmptyResultRule(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    return []
`

	report := p.Certify(context.Background(), submission("thermostat"), src,
		[]Sample{{Name: "s", Payload: `{}`}})

	assert.False(t, report.Passed)
	assert.Contains(t, ruleSet(report), RuleRunEmpty)
}

func TestCertifyUndeclaredDescriptorRule(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	src := `
TEMP = standard("temperature")

def get_field_descriptors():
    return [TEMP]

def normalize(raw):
    rogue = descriptor("spindleSpeed", "Double")
    return [field(rogue, 1.0)]
`

	report := p.Certify(context.Background(), submission("thermostat"), src,
		[]Sample{{Name: "s", Payload: `{}`}})

	assert.False(t, report.Passed)
	assert.Contains(t, ruleSet(report), RuleRunUndeclared)
}

func TestCertifyCollectsAllViolations(t *testing.T) {
	// One pass reports everything: the author should not have to
	// resubmit to discover the next problem.
	p := New(nil, models.ExecutionLimits{}, nil)

	src := `
D = descriptor("data", "String")

def get_field_descriptors():
    return [D]

def normalize(raw):
    return []
`

	report := p.Certify(context.Background(), submission("thermostat"), src, nil)

	rules := ruleSet(report)
	assert.Contains(t, rules, RuleSamples)
	assert.Contains(t, rules, RuleNameGeneric)
	assert.False(t, report.Passed)
}

func TestRenderReport(t *testing.T) {
	p := New(nil, models.ExecutionLimits{}, nil)

	report := p.Certify(context.Background(), submission("thermostat"), goodSource,
		[]Sample{{Name: "nominal", Payload: `{"temp_f": 98.6, "status": "on"}`}})

	out := Render(&report)
	assert.Contains(t, out, "thermostat")
	assert.Contains(t, out, "nominal")
	assert.Contains(t, out, "temperature")
}
