package contacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Expected header of the contact source, in order.
var header = []string{"Name", "Phone", "Message"}

// RowError reports a row that failed validation. The Reader keeps going
// after a RowError; a bad row never aborts the batch.
type RowError struct {
	Row    int // 1-based data row number (header excluded)
	Phone  string
	Reason error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("contacts: row %d skipped: %v", e.Row, e.Reason)
}

func (e *RowError) Unwrap() error { return e.Reason }

// Reader streams validated contacts from a CSV source in input order.
// It is lazy and non-restartable: each Next call consumes one data row.
type Reader struct {
	cr  *csv.Reader
	now func() time.Time

	row     int
	skipped int
	done    bool
}

// NewReader wraps src and consumes its header row. A missing or wrong
// header is an error: the whole file is unusable, not just one row.
// now is used for {date}/{time} rendering; nil means time.Now.
func NewReader(src io.Reader, now func() time.Time) (*Reader, error) {
	if now == nil {
		now = time.Now
	}
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1 // row width is validated per row

	rec, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("contacts: reading header: %w", err)
	}
	if len(rec) != len(header) {
		return nil, fmt.Errorf("contacts: header has %d columns, want %d (%s)",
			len(rec), len(header), strings.Join(header, ","))
	}
	for i, want := range header {
		if !strings.EqualFold(strings.TrimSpace(rec[i]), want) {
			return nil, fmt.Errorf("contacts: header column %d is %q, want %q", i+1, rec[i], want)
		}
	}
	return &Reader{cr: cr, now: now}, nil
}

// Next returns the next valid Contact. It returns io.EOF when the source
// is exhausted and a *RowError for a row that failed validation; callers
// are expected to report the RowError and keep calling Next.
func (r *Reader) Next() (Contact, error) {
	if r.done {
		return Contact{}, io.EOF
	}
	rec, err := r.cr.Read()
	if errors.Is(err, io.EOF) {
		r.done = true
		return Contact{}, io.EOF
	}
	r.row++
	if err != nil {
		// Malformed CSV (bare quotes etc.) is a row-level failure too.
		r.skipped++
		return Contact{}, &RowError{Row: r.row, Reason: err}
	}
	if len(rec) != len(header) {
		r.skipped++
		return Contact{}, &RowError{Row: r.row, Reason: fmt.Errorf("want %d columns, got %d", len(header), len(rec))}
	}

	name := strings.TrimSpace(rec[0])
	rawPhone := strings.TrimSpace(rec[1])
	template := strings.TrimSpace(rec[2])

	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		r.skipped++
		return Contact{}, &RowError{Row: r.row, Phone: rawPhone, Reason: err}
	}

	return Contact{
		Name:    name,
		Phone:   phone,
		Message: Render(template, name, phone, r.now()),
	}, nil
}

// Skipped reports how many rows have been rejected so far.
func (r *Reader) Skipped() int { return r.skipped }
