package renogy

import "testing"

func TestDecode(t *testing.T) {
	data := make([]byte, minFrameLen)
	put := func(off int, v uint16) {
		data[off] = byte(v >> 8)
		data[off+1] = byte(v)
	}
	put(regBatterySOC, 87)
	put(regBatteryVoltage, 132) // 13.2V
	put(regControllerTemp, 345) // 34.5C
	put(regPVVoltage, 580)      // 58.0V
	put(regPVPower, 210)
	put(regLoadPower, 40)
	data[regLoadState] = 1
	put(regDischargeAhToday, 12)
	put(regPowerGenerationToday, 650)

	r, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.BatteryPercentage != 87 {
		t.Fatalf("BatteryPercentage = %v, want 87", r.BatteryPercentage)
	}
	if r.BatteryVoltage != 13.2 {
		t.Fatalf("BatteryVoltage = %v, want 13.2", r.BatteryVoltage)
	}
	if !r.LoadState {
		t.Fatalf("LoadState = false, want true")
	}
	if r.PowerGenerationToday != 650 {
		t.Fatalf("PowerGenerationToday = %v, want 650", r.PowerGenerationToday)
	}
}

func TestDecodeShortFrame(t *testing.T) {
	_, err := decode(make([]byte, 4))
	if err == nil {
		t.Fatal("expected error for short frame")
	}
}
