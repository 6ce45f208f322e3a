package contacts

import (
	"testing"
	"time"
)

func TestRender(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 2, 9, 5, 0, 0, time.UTC)
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "all placeholders", template: "{name} {phone} {date} {time}", want: "Ana +12345678 2026-01-02 09:05"},
		{name: "repeated", template: "{name}{name}", want: "AnaAna"},
		{name: "unknown kept", template: "hello {nope} {Name}", want: "hello {nope} {Name}"},
		{name: "no placeholders", template: "plain text", want: "plain text"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.template, "Ana", "+12345678", now)
			if got != tt.want {
				t.Fatalf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 2, 9, 5, 0, 0, time.UTC)
	a := Render("{name} {date} {time}", "Bo", "+12345678", now)
	b := Render("{name} {date} {time}", "Bo", "+12345678", now)
	if a != b {
		t.Fatalf("rendering not deterministic: %q vs %q", a, b)
	}
}
