package roster

import (
	"fmt"
	"strings"
)

// ReportHeader is the first line of every failure report.
const ReportHeader = "StudentNumber|StudentName|DateEnrolled|Error"

// BuildReport serializes the ordered failure list back into the delimited
// upload style with the reason appended, so a corrected file can be
// re-submitted.
func BuildReport(failures []RowFailure) string {
	var b strings.Builder
	b.WriteString(ReportHeader)
	b.WriteByte('\n')
	for _, f := range failures {
		fmt.Fprintf(&b, "%s|%s\n", f.Line, f.Reason.Message())
	}
	return b.String()
}
