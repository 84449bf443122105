// Package roster parses bulk student-roster uploads into candidate
// enrollment rows. Malformed input is reported per row and never aborts a
// batch.
package roster

import (
	"fmt"
	"time"
)

// Reason is a row-local failure code. Every reason is non-fatal to the batch.
type Reason string

const (
	ReasonInvalidFormat            Reason = "InvalidFormat"
	ReasonInvalidName              Reason = "InvalidName"
	ReasonInvalidDate              Reason = "InvalidDate"
	ReasonDuplicateStudent         Reason = "DuplicateStudent"
	ReasonAlreadyEnrolledInSubject Reason = "AlreadyEnrolledInSubject"
	ReasonAlreadyEnrolledInSection Reason = "AlreadyEnrolledInSection"
)

// Message returns the human-readable form used in failure reports.
func (r Reason) Message() string {
	switch r {
	case ReasonInvalidFormat:
		return "Invalid format (wrong number of columns)"
	case ReasonInvalidName:
		return "Invalid student name format"
	case ReasonInvalidDate:
		return "Invalid date enrolled format"
	case ReasonDuplicateStudent:
		return "Duplicate student record found"
	case ReasonAlreadyEnrolledInSubject:
		return "Student is already enrolled in another section of this subject"
	case ReasonAlreadyEnrolledInSection:
		return "Student is already enrolled in this section"
	default:
		return string(r)
	}
}

// DateFormat is the declared layout of the "Date Enrolled" column. The two
// upstream feeds disagree on day/month order, so the caller must always name
// the layout explicitly; there is no default.
type DateFormat string

const (
	DateFormatMDY DateFormat = "MM/DD/YYYY"
	DateFormatDMY DateFormat = "DD/MM/YYYY"
)

// GoLayout converts the declared format into a time.Parse layout.
func (f DateFormat) GoLayout() (string, error) {
	switch f {
	case DateFormatMDY:
		return "01/02/2006", nil
	case DateFormatDMY:
		return "02/01/2006", nil
	case "":
		return "", fmt.Errorf("date format is required")
	default:
		return "", fmt.Errorf("unsupported date format %q", string(f))
	}
}

// Row is a successfully parsed roster line.
type Row struct {
	Line          string    `json:"line"`
	StudentNumber string    `json:"student_number"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	DateEnrolled  time.Time `json:"date_enrolled"`
}

// RowFailure pairs the original input line with the reason it was rejected.
type RowFailure struct {
	Line   string `json:"line"`
	Reason Reason `json:"reason"`
}

// Item is the outcome of parsing one line or record: either Row is populated
// or Failure is non-nil, never both.
type Item struct {
	Row     Row
	Failure *RowFailure
}
