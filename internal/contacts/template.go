package contacts

import (
	"strings"
	"time"
)

// Render substitutes the recognized placeholders {name}, {phone}, {date}
// (YYYY-MM-DD) and {time} (HH:MM) in a message template. Unrecognized
// placeholders are left verbatim. Rendering is deterministic for a fixed
// now.
func Render(template, name, phone string, now time.Time) string {
	r := strings.NewReplacer(
		"{name}", name,
		"{phone}", phone,
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("15:04"),
	)
	return r.Replace(template)
}
