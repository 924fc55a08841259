package shunt

import "testing"

func TestParseLine(t *testing.T) {
	cases := []struct {
		raw     string
		wantKey string
		wantVal float64
		wantOK  bool
	}{
		{"V\t13.2\n", "V", 13.2, true},
		{"SOC\t87\n", "SOC", 87, true},
		{"\n", "", 0, false},
		{"garbage\n", "", 0, false},
		{"P\tnotanumber\n", "", 0, false},
	}
	for _, c := range cases {
		line, ok := parseLine(c.raw)
		if ok != c.wantOK {
			t.Fatalf("parseLine(%q) ok = %v, want %v", c.raw, ok, c.wantOK)
		}
		if ok && (line.Key != c.wantKey || line.Value != c.wantVal) {
			t.Fatalf("parseLine(%q) = %+v, want {%s %v}", c.raw, line, c.wantKey, c.wantVal)
		}
	}
}
