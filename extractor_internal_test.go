package squashfs

import (
	"errors"
	"testing"
)

// Exercises spec.md §4.9's path-safety rule directly against the unexported
// helper, including the "../evil" escape attempt.
func TestSanitizeEntryName(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"hello.txt", "hello.txt", false},
		{"../evil", "evil", false},
		{"a/b", "b", false},
		{`a\b`, "b", false},
		{".", "", true},
		{"..", "", true},
		{"", "", true},
	}

	for _, c := range cases {
		got, err := sanitizeEntryName(c.in)
		if c.wantErr {
			if !errors.Is(err, ErrBadImage) {
				t.Errorf("sanitizeEntryName(%q) err = %v, want ErrBadImage", c.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("sanitizeEntryName(%q) unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("sanitizeEntryName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
