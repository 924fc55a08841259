package monitor

import "testing"

func TestParseRange(t *testing.T) {
	payload := []byte{byte(TriggerRange), 0x0A, 0x00, 0x05, 0x00}
	r, ok := ParseRange(payload)
	if !ok {
		t.Fatal("ParseRange returned ok=false")
	}
	if r.PreviousMM != 10 || r.CurrentMM != 5 {
		t.Fatalf("got %+v, want {10 5}", r)
	}
}

func TestRenderMap(t *testing.T) {
	pixels := make([]byte, 64)
	pixels[0] = 40 // '#'
	pixels[1] = 20 // '+'
	pixels[2] = 5  // '.'
	pixels[3] = 0  // ' '

	payload := append([]byte{byte(TriggerMap)}, pixels...)
	rendered, ok := RenderMap(payload)
	if !ok {
		t.Fatal("RenderMap returned ok=false")
	}
	if rendered[0] != '#' || rendered[1] != '+' || rendered[2] != '.' || rendered[3] != ' ' {
		t.Fatalf("unexpected render: %q", rendered[:4])
	}
}

func TestRenderMapShortPayload(t *testing.T) {
	_, ok := RenderMap([]byte{byte(TriggerMap), 1, 2, 3})
	if ok {
		t.Fatal("expected ok=false for short payload")
	}
}
