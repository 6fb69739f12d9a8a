package version

import (
	"reflect"
	"testing"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		dir     string
		want    []int
		wantOK  bool
		pattern string
	}{
		{name: "bare number", dir: "1", want: []int{1}, wantOK: true},
		{name: "v prefix", dir: "v2", want: []int{2}, wantOK: true},
		{name: "leading zeros", dir: "v001", want: []int{1}, wantOK: true},
		{name: "dotted", dir: "v1.12", want: []int{1, 12}, wantOK: true},
		{name: "underscore segments", dir: "1_0", want: []int{1, 0}, wantOK: true},
		{name: "descriptive suffix", dir: "3_add_audit", want: []int{3}, wantOK: true},
		{name: "dash suffix", dir: "v2-hotfix", want: []int{2}, wantOK: true},
		{name: "deep key", dir: "v1.2.3", want: []int{1, 2, 3}, wantOK: true},
		{name: "no digits", dir: "drafts", wantOK: false},
		{name: "digits mid-name", dir: "release9", wantOK: false},
		{name: "empty", dir: "", wantOK: false},
		{
			name:    "custom pattern",
			dir:     "rel-7",
			want:    []int{7},
			wantOK:  true,
			pattern: `(?:^rel-|\.)(\d+)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pat := DefaultPattern
			if tt.pattern != "" {
				var err error
				pat, err = CompilePattern(tt.pattern)
				if err != nil {
					t.Fatalf("CompilePattern(%q): %v", tt.pattern, err)
				}
			}
			got, ok := ParseKey(tt.dir, pat)
			if ok != tt.wantOK {
				t.Fatalf("ParseKey(%q) ok = %v, want %v", tt.dir, ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseKey(%q) = %v, want %v", tt.dir, got, tt.want)
			}
		})
	}
}

func TestCompilePattern(t *testing.T) {
	if _, err := CompilePattern(`(\d+`); err == nil {
		t.Error("expected error for malformed pattern")
	}
	if _, err := CompilePattern(`(\d+)\.(\d+)`); err == nil {
		t.Error("expected error for pattern with two capture groups")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b []int
		want int // sign only
	}{
		{name: "numeric not lexical", a: []int{9}, b: []int{12}, want: -1},
		{name: "equal", a: []int{1, 2}, b: []int{1, 2}, want: 0},
		{name: "shorter prefix first", a: []int{1}, b: []int{1, 0}, want: -1},
		{name: "segment wins over length", a: []int{2}, b: []int{1, 9}, want: 1},
		{name: "deep difference", a: []int{1, 2, 3}, b: []int{1, 2, 4}, want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sign(Compare(tt.a, tt.b))
			if got != tt.want {
				t.Errorf("Compare(%v, %v) sign = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if tt.want != 0 {
				rev := sign(Compare(tt.b, tt.a))
				if rev != -tt.want {
					t.Errorf("Compare(%v, %v) sign = %d, want %d", tt.b, tt.a, rev, -tt.want)
				}
			}
		})
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func TestFormat(t *testing.T) {
	if got := Format([]int{1, 12}); got != "1.12" {
		t.Errorf("Format([1 12]) = %q, want %q", got, "1.12")
	}
	if got := Format(nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
}
