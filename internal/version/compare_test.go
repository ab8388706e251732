package version

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.0.0", 0},
		{"1.0.0", "1.0", 0},
		{"1.2", "1.10", -1},
		{"2.0", "1.99.99", 1},
		{"4.5", "4.0", 1},
		{"1.0-beta", "1.0", 0},
		{"1.x.3", "1.0.3", 0},
		{"", "0", 0},
		{"Unknown", "0.0", 0},
		{"3.2.1", "3.2.10", -1},
		{"18446744073709551616", "0", 0}, // overflows uint64, counts as zero
	}

	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareLongerWins(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0.0", "1.0", 1},
		{"1.0", "1.0.0", -1},
		{"1.1", "1.0.5", 1},
		{"0.9.9.9", "1.0", -1},
	}

	for _, tt := range tests {
		if got := CompareLongerWins(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareLongerWins(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareSemver(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.0-beta", "1.2.0", -1},
		{"v1.2.0", "1.2.0", 0},
		{"1.2", "1.2.0", 0},
		{"1.10.0", "1.9.0", 1},
		// not semver, falls back to padded comparison
		{"1.2.3.4", "1.2.3", 1},
		{"Unknown", "0", 0},
	}

	for _, tt := range tests {
		if got := CompareSemver(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareSemver(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareProperties(t *testing.T) {
	versions := []string{
		"", "0", "1", "1.0", "1.0.0", "1.0.1", "1.2", "1.10", "2.0-rc1",
		"2.0", "10.0.0.1", "Unknown", "4.5", "4.5.0.0", "v3", "7.1.2",
	}
	funcs := map[string]CompareFunc{
		SchemePadded:     Compare,
		SchemeLongerWins: CompareLongerWins,
		SchemeSemver:     CompareSemver,
	}

	for name, cmp := range funcs {
		for _, a := range versions {
			if got := cmp(a, a); got != 0 {
				t.Errorf("%s: cmp(%q, %q) = %d, want 0", name, a, a, got)
			}
			for _, b := range versions {
				ab, ba := cmp(a, b), cmp(b, a)
				if ab != -ba {
					t.Errorf("%s: cmp(%q, %q) = %d but cmp(%q, %q) = %d", name, a, b, ab, b, a, ba)
				}
				if ab < -1 || ab > 1 {
					t.Errorf("%s: cmp(%q, %q) = %d, want -1, 0 or 1", name, a, b, ab)
				}
			}
		}
	}
}

func TestParseScheme(t *testing.T) {
	for _, name := range []string{"", "padded", "LONGER-WINS", " semver "} {
		if _, err := ParseScheme(name); err != nil {
			t.Errorf("ParseScheme(%q) unexpected error: %v", name, err)
		}
	}
	if _, err := ParseScheme("lexical"); err == nil {
		t.Error("ParseScheme(lexical) should fail")
	}

	cmp, _ := ParseScheme(SchemeLongerWins)
	if cmp("1.0.0", "1.0") != 1 {
		t.Error("longer-wins scheme should rank 1.0.0 above 1.0")
	}
}
