package roster

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gradekeeper/api/model"
)

func mustParser(t *testing.T, source model.ImportSource, format DateFormat) *Parser {
	t.Helper()
	p, err := NewParser(source, format)
	if err != nil {
		t.Fatalf("NewParser(%s, %s): %v", source, format, err)
	}
	return p
}

func TestNewParserRejectsBadInputs(t *testing.T) {
	if _, err := NewParser(model.ImportSourcePipe, ""); err == nil {
		t.Error("expected error for missing date format")
	}
	if _, err := NewParser(model.ImportSourcePipe, "YYYY-MM-DD"); err == nil {
		t.Error("expected error for unsupported date format")
	}
	if _, err := NewParser("xml", DateFormatMDY); err == nil {
		t.Error("expected error for unsupported source")
	}
}

func TestParsePipeRow(t *testing.T) {
	p := mustParser(t, model.ImportSourcePipe, DateFormatMDY)

	items, err := p.Parse(strings.NewReader("1001|DELACRUZ, juan|01/15/2023"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Failure != nil {
		t.Fatalf("unexpected failure: %+v", items[0].Failure)
	}

	row := items[0].Row
	if row.StudentNumber != "1001" {
		t.Errorf("StudentNumber = %q, want %q", row.StudentNumber, "1001")
	}
	if row.LastName != "DELACRUZ" {
		t.Errorf("LastName = %q, want %q", row.LastName, "DELACRUZ")
	}
	if row.FirstName != "juan" {
		t.Errorf("FirstName = %q, want %q", row.FirstName, "juan")
	}
	want := time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)
	if !row.DateEnrolled.Equal(want) {
		t.Errorf("DateEnrolled = %v, want %v", row.DateEnrolled, want)
	}
}

func TestParseRowFailures(t *testing.T) {
	cases := []struct {
		name   string
		source model.ImportSource
		format DateFormat
		line   string
		reason Reason
	}{
		{"too few pipe fields", model.ImportSourcePipe, DateFormatMDY, "1001|DELACRUZ, juan", ReasonInvalidFormat},
		{"empty student number", model.ImportSourcePipe, DateFormatMDY, "|DELACRUZ, juan|01/15/2023", ReasonInvalidFormat},
		{"name missing comma", model.ImportSourcePipe, DateFormatMDY, "1001|DELACRUZ juan|01/15/2023", ReasonInvalidName},
		{"name missing first part", model.ImportSourcePipe, DateFormatMDY, "1001|DELACRUZ,|01/15/2023", ReasonInvalidName},
		{"impossible date", model.ImportSourcePipe, DateFormatMDY, "1001|DELACRUZ, juan|13/40/2023", ReasonInvalidDate},
		{"day month swapped past 12", model.ImportSourcePipe, DateFormatDMY, "1001|DELACRUZ, juan|01/15/2023", ReasonInvalidDate},
		{"too few comma fields", model.ImportSourceComma, DateFormatDMY, "1001,DELACRUZ,juan", ReasonInvalidFormat},
		{"comma date invalid", model.ImportSourceComma, DateFormatDMY, "1001,DELACRUZ,juan,40/13/2023", ReasonInvalidDate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := mustParser(t, tc.source, tc.format)
			items, err := p.Parse(strings.NewReader(tc.line))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(items) != 1 {
				t.Fatalf("got %d items, want 1", len(items))
			}
			f := items[0].Failure
			if f == nil {
				t.Fatalf("expected failure, got row %+v", items[0].Row)
			}
			if f.Reason != tc.reason {
				t.Errorf("reason = %s, want %s", f.Reason, tc.reason)
			}
			if f.Line != tc.line {
				t.Errorf("line = %q, want original %q", f.Line, tc.line)
			}
		})
	}
}

func TestParseCommaRow(t *testing.T) {
	p := mustParser(t, model.ImportSourceComma, DateFormatDMY)

	items, err := p.Parse(strings.NewReader("2034,SANTOS,maria,15/01/2023"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 1 || items[0].Failure != nil {
		t.Fatalf("unexpected outcome: %+v", items)
	}

	row := items[0].Row
	if row.StudentNumber != "2034" || row.LastName != "SANTOS" || row.FirstName != "maria" {
		t.Errorf("unexpected row: %+v", row)
	}
	want := time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)
	if !row.DateEnrolled.Equal(want) {
		t.Errorf("DateEnrolled = %v, want %v", row.DateEnrolled, want)
	}
}

func TestHeaderHandling(t *testing.T) {
	p := mustParser(t, model.ImportSourcePipe, DateFormatMDY)

	payload := "Student Number|Student Name|Date Enrolled\n1001|DELACRUZ, juan|01/15/2023\n"
	items, err := p.Parse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("header should be skipped: got %d items, want 1", len(items))
	}

	// A first line that does not match the header signature is data.
	items, err = p.Parse(strings.NewReader("1001|DELACRUZ, juan|01/15/2023\n1002|SANTOS, maria|02/20/2023\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("first data line must not be skipped: got %d items, want 2", len(items))
	}
}

func TestParseSkipsBlankLinesAndCRLF(t *testing.T) {
	p := mustParser(t, model.ImportSourcePipe, DateFormatMDY)

	payload := "\r\n1001|DELACRUZ, juan|01/15/2023\r\n\r\n1002|SANTOS, maria|02/20/2023\r\n"
	items, err := p.Parse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	for _, it := range items {
		if it.Failure != nil {
			t.Errorf("unexpected failure: %+v", it.Failure)
		}
	}
}

func TestParsePreservesInputOrder(t *testing.T) {
	p := mustParser(t, model.ImportSourcePipe, DateFormatMDY)

	payload := strings.Join([]string{
		"1001|DELACRUZ, juan|01/15/2023",
		"bad line",
		"1002|SANTOS, maria|02/20/2023",
		"1003|REYES, pedro|99/99/2023",
	}, "\n")
	items, err := p.Parse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("got %d items, want 4", len(items))
	}
	if items[0].Failure != nil || items[2].Failure != nil {
		t.Error("valid rows reported as failures")
	}
	if items[1].Failure == nil || items[1].Failure.Reason != ReasonInvalidFormat {
		t.Errorf("item 1 = %+v, want InvalidFormat", items[1])
	}
	if items[3].Failure == nil || items[3].Failure.Reason != ReasonInvalidDate {
		t.Errorf("item 3 = %+v, want InvalidDate", items[3])
	}
}

func TestParseIsRestartable(t *testing.T) {
	p := mustParser(t, model.ImportSourcePipe, DateFormatMDY)
	payload := "1001|DELACRUZ, juan|01/15/2023\n1002|SANTOS, maria|02/20/2023\n"

	first, err := p.Parse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("first Parse: %v", err)
	}
	second, err := p.Parse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("second Parse: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("reparse returned %d items, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i].Row != second[i].Row {
			t.Errorf("item %d differs across parses", i)
		}
	}
}

func TestParseJSON(t *testing.T) {
	p := mustParser(t, model.ImportSourceJSON, DateFormatDMY)

	payload := `[
		{"StudentNumber": "1001", "StudentName": "DELACRUZ, juan", "DateEnrolled": "15/01/2023"},
		{"StudentNumber": "", "StudentName": "SANTOS, maria", "DateEnrolled": "20/02/2023"},
		{"StudentNumber": "1003", "StudentName": "REYES", "DateEnrolled": "20/02/2023"},
		{"StudentNumber": "1004", "StudentName": "CRUZ, ana", "DateEnrolled": "2023-02-20"}
	]`
	items, err := p.Parse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("got %d items, want 4", len(items))
	}

	if items[0].Failure != nil {
		t.Errorf("record 0 failed: %+v", items[0].Failure)
	} else {
		row := items[0].Row
		if row.StudentNumber != "1001" || row.LastName != "DELACRUZ" || row.FirstName != "juan" {
			t.Errorf("unexpected row: %+v", row)
		}
	}
	if items[1].Failure == nil || items[1].Failure.Reason != ReasonInvalidFormat {
		t.Errorf("record 1 = %+v, want InvalidFormat", items[1])
	}
	if items[2].Failure == nil || items[2].Failure.Reason != ReasonInvalidName {
		t.Errorf("record 2 = %+v, want InvalidName", items[2])
	}
	if items[3].Failure == nil || items[3].Failure.Reason != ReasonInvalidDate {
		t.Errorf("record 3 = %+v, want InvalidDate", items[3])
	}
}

func TestParseJSONRejectsMalformedPayload(t *testing.T) {
	p := mustParser(t, model.ImportSourceJSON, DateFormatDMY)

	if _, err := p.Parse(strings.NewReader(`{"not": "an array"}`)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("non-array JSON: err = %v, want ErrInvalidPayload", err)
	}
	if _, err := p.Parse(strings.NewReader(`[{"StudentNumber": "1001"`)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("truncated JSON: err = %v, want ErrInvalidPayload", err)
	}
}

func TestSplitNameStripsQuotes(t *testing.T) {
	p := mustParser(t, model.ImportSourcePipe, DateFormatMDY)

	items, err := p.Parse(strings.NewReader(`1001|"DELACRUZ, juan"|01/15/2023`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if items[0].Failure != nil {
		t.Fatalf("unexpected failure: %+v", items[0].Failure)
	}
	if items[0].Row.LastName != "DELACRUZ" || items[0].Row.FirstName != "juan" {
		t.Errorf("unexpected row: %+v", items[0].Row)
	}
}
