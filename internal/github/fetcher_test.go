package github

import "testing"

func TestMatchesExtension(t *testing.T) {
	exts := []string{".txt", ".md"}
	cases := map[string]bool{
		"chapter1.txt": true,
		"README.MD":    true,
		"data.jsonl":   false,
		"noext":        false,
	}
	for name, want := range cases {
		if got := matchesExtension(name, exts); got != want {
			t.Errorf("matchesExtension(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestContentOptions(t *testing.T) {
	if opts := NewFetcher(nil, "o", "r", "").contentOptions(); opts != nil {
		t.Errorf("expected nil options for default branch, got %+v", opts)
	}
	opts := NewFetcher(nil, "o", "r", "v1.2").contentOptions()
	if opts == nil || opts.Ref != "v1.2" {
		t.Errorf("expected ref v1.2, got %+v", opts)
	}
}
