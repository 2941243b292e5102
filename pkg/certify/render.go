package certify

import (
	"fmt"
	"strings"

	"github.com/carverauto/fieldpipe/pkg/models"
)

// Render formats a report as plain text for the pre-submission CLI and
// the review queue.
func Render(report *models.CertificationReport) string {
	var b strings.Builder

	verdict := "FAIL"
	if report.Passed {
		verdict = "PASS"
	}

	fmt.Fprintf(&b, "Certification %s for device type %q (report %s)\n",
		verdict, report.DeviceType, report.ReportID)

	if len(report.Violations) > 0 {
		fmt.Fprintf(&b, "\nViolations (%d):\n", len(report.Violations))

		for _, v := range report.Violations {
			if v.Sample != "" {
				fmt.Fprintf(&b, "  [%s] sample %q: %s\n", v.Rule, v.Sample, v.Message)
			} else {
				fmt.Fprintf(&b, "  [%s] %s\n", v.Rule, v.Message)
			}
		}
	}

	for _, run := range report.Samples {
		fmt.Fprintf(&b, "\nSample %q: %s (%d steps, %s)\n",
			run.Sample, run.Result.State, run.Result.Steps, run.Result.Elapsed)

		for _, f := range run.Result.Fields {
			if f.Descriptor.Unit != "" {
				fmt.Fprintf(&b, "  %s = %s %s\n", f.Descriptor.Name, f.Value, f.Descriptor.Unit)
			} else {
				fmt.Fprintf(&b, "  %s = %s\n", f.Descriptor.Name, f.Value)
			}
		}
	}

	return b.String()
}
