package packager

import "testing"

func TestSanitizeSegment(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Background", "Background"},
		{`a/b\c`, "a_b_c"},
		{`grid: 50%?`, "grid_ 50%_"},
		{`"quoted" <layer>`, "_quoted_ _layer_"},
		{"", "layer"},
		{"   ", "layer"},
		{".", "layer"},
		{"..", "layer"},
		{"tab\there", "tab_here"},
	}
	for _, tc := range cases {
		if got := sanitizeSegment(tc.in); got != tc.want {
			t.Fatalf("sanitizeSegment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUniqueNameSuffixes(t *testing.T) {
	used := map[string]struct{}{}
	if got := uniqueName(used, "a", ".png"); got != "a.png" {
		t.Fatalf("first: %q", got)
	}
	if got := uniqueName(used, "a", ".png"); got != "a-1.png" {
		t.Fatalf("second: %q", got)
	}
	if got := uniqueName(used, "a-1", ".png"); got != "a-1-1.png" {
		t.Fatalf("clash with generated: %q", got)
	}
	if got := uniqueName(used, "b", ""); got != "b" {
		t.Fatalf("group name: %q", got)
	}
}
