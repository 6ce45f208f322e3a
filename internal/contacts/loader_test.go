package contacts

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain", raw: "+6281234567", want: "+6281234567"},
		{name: "inner spaces", raw: "+62 812 345 67", want: "+6281234567"},
		{name: "surrounding spaces", raw: "  +49123456789  ", want: "+49123456789"},
		{name: "max digits", raw: "+123456789012345", want: "+123456789012345"},
		{name: "missing plus", raw: "6281234567", wantErr: true},
		{name: "too short", raw: "+1234567", wantErr: true},
		{name: "too long", raw: "+1234567890123456", wantErr: true},
		{name: "letters", raw: "+62812abc45", wantErr: true},
		{name: "empty", raw: "   ", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizePhone(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestReaderHeaderValidation(t *testing.T) {
	t.Parallel()
	for _, src := range []string{
		"Phone,Name,Message\n",
		"Name,Phone\n",
		"Name,Phone,Message,Extra\n",
		"",
	} {
		if _, err := NewReader(strings.NewReader(src), fixedNow); err == nil {
			t.Fatalf("NewReader accepted bad header %q", src)
		}
	}

	// Header matching is case-insensitive.
	if _, err := NewReader(strings.NewReader("name,phone,message\n"), fixedNow); err != nil {
		t.Fatalf("NewReader rejected lowercase header: %v", err)
	}
}

func TestReaderSkipsInvalidRowsInOrder(t *testing.T) {
	t.Parallel()
	src := strings.Join([]string{
		"Name,Phone,Message",
		"Alice,+6281234567,Hi {name}",
		"Bob,invalid,Hi {name}",
		"Carol,+49123456789,Hi {name}",
	}, "\n")

	r, err := NewReader(strings.NewReader(src), fixedNow)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	var got []Contact
	var rowErrs []*RowError
	for {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var re *RowError
		if errors.As(err, &re) {
			rowErrs = append(rowErrs, re)
			continue
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, c)
	}

	if len(got) != 2 {
		t.Fatalf("contacts = %d, want 2", len(got))
	}
	if got[0].Name != "Alice" || got[1].Name != "Carol" {
		t.Fatalf("unexpected order: %q then %q", got[0].Name, got[1].Name)
	}
	if len(rowErrs) != 1 || rowErrs[0].Row != 2 {
		t.Fatalf("row errors = %+v, want one at row 2", rowErrs)
	}
	if r.Skipped() != 1 {
		t.Fatalf("Skipped() = %d, want 1", r.Skipped())
	}
}

func TestReaderColumnCount(t *testing.T) {
	t.Parallel()
	src := "Name,Phone,Message\nAlice,+6281234567,Hi,extra\n"
	r, err := NewReader(strings.NewReader(src), fixedNow)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	_, err = r.Next()
	var re *RowError
	if !errors.As(err, &re) {
		t.Fatalf("Next error = %v, want *RowError", err)
	}
}

func TestReaderRendersMessages(t *testing.T) {
	t.Parallel()
	src := "Name,Phone,Message\nAlice,+6281234567,\"Hi {name} ({phone}) on {date} at {time}, keep {unknown}\"\n"
	r, err := NewReader(strings.NewReader(src), fixedNow)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	c, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := "Hi Alice (+6281234567) on 2026-08-26 at 14:30, keep {unknown}"
	if c.Message != want {
		t.Fatalf("Message = %q, want %q", c.Message, want)
	}
}
