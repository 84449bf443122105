package roster

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gradekeeper/api/model"
)

// ErrInvalidPayload marks a JSON body that is not a valid roster array.
// Row-level problems never produce it; only the payload as a whole can.
var ErrInvalidPayload = errors.New("invalid JSON payload")

// Parser converts a raw roster upload into parsed-or-failed items. A Parser
// is stateless across calls: invoking Parse again reparses from scratch.
type Parser struct {
	source model.ImportSource
	layout string
}

// NewParser builds a parser for the given source format. The date format is a
// required, explicit input (see DateFormat).
func NewParser(source model.ImportSource, format DateFormat) (*Parser, error) {
	layout, err := format.GoLayout()
	if err != nil {
		return nil, err
	}
	switch source {
	case model.ImportSourcePipe, model.ImportSourceComma, model.ImportSourceJSON:
	default:
		return nil, fmt.Errorf("unsupported import source %q", string(source))
	}
	return &Parser{source: source, layout: layout}, nil
}

// Parse walks the payload once and returns items in input order. The only
// returned errors are payload-level: a reader failure or a JSON body that is
// not a valid array. Bad rows become Item failures, never errors.
func (p *Parser) Parse(r io.Reader) ([]Item, error) {
	if p.source == model.ImportSourceJSON {
		return p.parseJSON(r)
	}
	return p.parseDelimited(r)
}

// jsonRecord mirrors the upstream JSON roster schema.
type jsonRecord struct {
	StudentNumber string `json:"StudentNumber"`
	StudentName   string `json:"StudentName"`
	DateEnrolled  string `json:"DateEnrolled"`
}

func (p *Parser) parseJSON(r io.Reader) ([]Item, error) {
	var records []jsonRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		raw, _ := json.Marshal(rec)
		line := string(raw)

		if strings.TrimSpace(rec.StudentNumber) == "" {
			items = append(items, fail(line, ReasonInvalidFormat))
			continue
		}
		last, first, ok := splitName(rec.StudentName)
		if !ok {
			items = append(items, fail(line, ReasonInvalidName))
			continue
		}
		enrolled, err := p.parseDate(rec.DateEnrolled)
		if err != nil {
			items = append(items, fail(line, ReasonInvalidDate))
			continue
		}
		items = append(items, Item{Row: Row{
			Line:          line,
			StudentNumber: strings.TrimSpace(rec.StudentNumber),
			FirstName:     first,
			LastName:      last,
			DateEnrolled:  enrolled,
		}})
	}
	return items, nil
}

func (p *Parser) parseDelimited(r io.Reader) ([]Item, error) {
	var items []Item

	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Only a line that looks like a header is skipped; row 1 is
		// otherwise treated as data.
		if first {
			first = false
			if isHeader(line) {
				continue
			}
		}
		items = append(items, p.parseLine(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return items, nil
}

// parseLine applies the row rules in order; the first failure wins.
func (p *Parser) parseLine(line string) Item {
	var number, nameField, dateField string

	switch p.source {
	case model.ImportSourcePipe:
		// StudentNumber|LAST, FIRST|date
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			return fail(line, ReasonInvalidFormat)
		}
		number = strings.TrimSpace(parts[0])
		nameField = parts[1]
		dateField = parts[2]
	default:
		// StudentNumber,LAST,FIRST,date — the name spans two columns.
		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			return fail(line, ReasonInvalidFormat)
		}
		number = strings.TrimSpace(parts[0])
		nameField = parts[1] + "," + parts[2]
		dateField = parts[3]
	}

	if number == "" {
		return fail(line, ReasonInvalidFormat)
	}
	last, first, ok := splitName(nameField)
	if !ok {
		return fail(line, ReasonInvalidName)
	}
	enrolled, err := p.parseDate(dateField)
	if err != nil {
		return fail(line, ReasonInvalidDate)
	}

	return Item{Row: Row{
		Line:          line,
		StudentNumber: number,
		FirstName:     first,
		LastName:      last,
		DateEnrolled:  enrolled,
	}}
}

func (p *Parser) parseDate(s string) (time.Time, error) {
	return time.Parse(p.layout, strings.TrimSpace(s))
}

// splitName splits a "LAST, FIRST" name field. Quotes are stripped first;
// both parts must be non-empty.
func splitName(field string) (last, first string, ok bool) {
	field = strings.ReplaceAll(field, `"`, "")
	parts := strings.SplitN(field, ",", 2)
	if len(parts) < 2 {
		return "", "", false
	}
	last = strings.TrimSpace(parts[0])
	first = strings.TrimSpace(parts[1])
	if last == "" || first == "" {
		return "", "", false
	}
	return last, first, true
}

// isHeader recognizes the known header signature. Matching is
// case-insensitive and tolerant of the delimiter in use.
func isHeader(line string) bool {
	l := strings.ToLower(line)
	return strings.Contains(l, "student number") || strings.Contains(l, "studentnumber")
}

func fail(line string, reason Reason) Item {
	return Item{Failure: &RowFailure{Line: line, Reason: reason}}
}
