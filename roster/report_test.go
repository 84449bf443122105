package roster

import (
	"strings"
	"testing"
)

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil)
	if report != ReportHeader+"\n" {
		t.Errorf("empty report = %q", report)
	}
}

func TestBuildReportPreservesOrderAndLines(t *testing.T) {
	failures := []RowFailure{
		{Line: "1001|DELACRUZ, juan|13/40/2023", Reason: ReasonInvalidDate},
		{Line: "garbage", Reason: ReasonInvalidFormat},
		{Line: "1002|SANTOS, maria|01/15/2023", Reason: ReasonAlreadyEnrolledInSubject},
	}

	report := BuildReport(failures)
	lines := strings.Split(strings.TrimRight(report, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	if lines[0] != ReportHeader {
		t.Errorf("header = %q", lines[0])
	}
	for i, f := range failures {
		want := f.Line + "|" + f.Reason.Message()
		if lines[i+1] != want {
			t.Errorf("line %d = %q, want %q", i+1, lines[i+1], want)
		}
	}
}
