package layout

import (
	"reflect"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
		ok   bool
	}{
		{"#ffffff", Color{255, 255, 255}, true},
		{"#1f3a5f", Color{0x1f, 0x3a, 0x5f}, true},
		{"1F3A5F", Color{0x1f, 0x3a, 0x5f}, true},
		{"#abc", Color{0xaa, 0xbb, 0xcc}, true},
		{" #000 ", Color{}, true},
		{"", Color{}, false},
		{"#12345", Color{}, false},
		{"#gggggg", Color{}, false},
		{"red", Color{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseColor(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseColor(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestColorHex(t *testing.T) {
	c := Color{0x1f, 0x3a, 0x5f}
	if got := c.Hex(); got != "#1f3a5f" {
		t.Errorf("Hex() = %q", got)
	}
	if back, _ := ParseColor(c.Hex()); back != c {
		t.Errorf("ParseColor(Hex()) = %v", back)
	}
}

func TestVarsLines(t *testing.T) {
	v := Vars{EventName: "GopherCon", EventDate: "June 3, 2025", Venue: "Hall A"}

	tests := []struct {
		tmpl string
		want []string
	}{
		{DefaultParticipationText, []string{"For actively participating in GopherCon", "held on June 3, 2025 at Hall A."}},
		{"single {VENUE}", []string{"single Hall A"}},
		{"a\r\nb", []string{"a", "b"}},
		{"{UNKNOWN}", []string{"{UNKNOWN}"}},
	}

	for _, tt := range tests {
		if got := v.Lines(tt.tmpl); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Lines(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}
