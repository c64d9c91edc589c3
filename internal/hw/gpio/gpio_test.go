package gpio

import "testing"

func TestValidatePin(t *testing.T) {
	cases := []struct {
		pin     int
		wantErr bool
	}{
		{-1, true},
		{0, true},
		{1, true},
		{2, false},
		{24, false},
		{27, false},
		{28, true},
	}
	for _, tc := range cases {
		if err := ValidatePin(tc.pin); (err != nil) != tc.wantErr {
			t.Errorf("ValidatePin(%d) = %v, wantErr %v", tc.pin, err, tc.wantErr)
		}
	}
}

func TestMockDriver_WriteRead(t *testing.T) {
	drv, err := NewDriver(true)
	if err != nil {
		t.Fatal(err)
	}
	if err := drv.WritePin(24, High); err == nil {
		t.Error("expected error writing a pin that is not set up")
	}
	if err := drv.SetupPin(24, Output); err != nil {
		t.Fatal(err)
	}
	if err := drv.WritePin(24, High); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := drv.ReadPin(24); lvl != High {
		t.Errorf("pin 24 = %v, want HIGH", lvl)
	}
	if err := drv.WritePin(24, Low); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := drv.ReadPin(24); lvl != Low {
		t.Errorf("pin 24 = %v, want LOW", lvl)
	}
	if err := drv.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMockDriver_InputPinRejectsWrite(t *testing.T) {
	drv := &MockDriver{}
	if err := drv.SetupPin(17, Input); err != nil {
		t.Fatal(err)
	}
	if err := drv.WritePin(17, High); err == nil {
		t.Error("expected error writing an input pin")
	}
	if err := drv.SetupPin(99, Output); err == nil {
		t.Error("expected error for out of range pin")
	}
}

func TestLevel_String(t *testing.T) {
	if High.String() != "HIGH" || Low.String() != "LOW" {
		t.Errorf("String() = %q/%q", High, Low)
	}
}
