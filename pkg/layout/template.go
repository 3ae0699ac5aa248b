package layout

import "strings"

// Placeholders recognised in text templates.
const (
	PlaceholderEventName = "{EVENT_NAME}"
	PlaceholderEventDate = "{EVENT_DATE}"
	PlaceholderVenue     = "{VENUE}"
)

// Vars holds the values substituted into text templates.
type Vars struct {
	EventName string
	EventDate string
	Venue     string
}

// Expand substitutes every placeholder in tmpl. Unknown braces are left
// untouched.
func (v Vars) Expand(tmpl string) string {
	return strings.NewReplacer(
		PlaceholderEventName, v.EventName,
		PlaceholderEventDate, v.EventDate,
		PlaceholderVenue, v.Venue,
	).Replace(tmpl)
}

// Lines expands tmpl and splits the result on explicit line breaks.
// Carriage returns are dropped so "\r\n" behaves like "\n".
func (v Vars) Lines(tmpl string) []string {
	s := strings.ReplaceAll(v.Expand(tmpl), "\r", "")
	return strings.Split(s, "\n")
}
