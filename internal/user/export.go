package user

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

const (
	CSVContentType = "text/csv"
	CSVFilename    = "users.csv"
)

var csvHeader = []string{"ID", "Full Name", "Email", "Mobile", "Gender", "Status", "Location", "Created At"}

// ExportOptions controls how creation dates are rendered.
type ExportOptions struct {
	Location   *time.Location
	DateLayout string
}

// WriteCSV writes a header and one row per user. The ID column is the
// 1-based row number, not the record identifier.
func WriteCSV(w io.Writer, users []User, opts ExportOptions) error {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	layout := opts.DateLayout
	if layout == "" {
		layout = "1/2/2006"
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, u := range users {
		row := []string{
			strconv.Itoa(i + 1),
			u.FullName(),
			u.Email,
			u.Mobile,
			string(u.Gender),
			string(u.Status),
			u.Location,
			u.CreatedAt.In(loc).Format(layout),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
