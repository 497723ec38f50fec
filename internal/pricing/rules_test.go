package pricing

import (
	"errors"
	"testing"
	"time"
)

var now2024 = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func TestChargerPriceTiers(t *testing.T) {
	cases := []struct {
		releaseYear int
		connector   ConnectorType
		want        Money
	}{
		{2024, ConnectorTypeC, 450_00},
		{2019, ConnectorTypeC, 450_00},
		{2024, ConnectorV8, 350_00},
		{2021, ConnectorV8, 350_00},
		{2019, ConnectorV8, 300_00},
	}
	for _, tc := range cases {
		got, err := ChargerPrice(tc.releaseYear, tc.connector, now2024)
		if err != nil {
			t.Fatalf("ChargerPrice(%d, %s): %v", tc.releaseYear, tc.connector, err)
		}
		if got != tc.want {
			t.Fatalf("ChargerPrice(%d, %s) = %d, want %d", tc.releaseYear, tc.connector, got, tc.want)
		}
	}
}

func TestCCBoardPriceTiers(t *testing.T) {
	cases := []struct {
		releaseYear int
		connector   ConnectorType
		want        Money
	}{
		{2024, ConnectorTypeC, 400_00},
		{2019, ConnectorTypeC, 200_00},
		{2024, ConnectorV8, 200_00},
		{2019, ConnectorV8, 250_00},
	}
	for _, tc := range cases {
		got, err := CCBoardPrice(tc.releaseYear, tc.connector, now2024)
		if err != nil {
			t.Fatalf("CCBoardPrice(%d, %s): %v", tc.releaseYear, tc.connector, err)
		}
		if got != tc.want {
			t.Fatalf("CCBoardPrice(%d, %s) = %d, want %d", tc.releaseYear, tc.connector, got, tc.want)
		}
	}
}

func TestUnsupportedConnector(t *testing.T) {
	if _, err := ChargerPrice(2024, ConnectorOther, now2024); !errors.Is(err, ErrUnsupportedConnector) {
		t.Fatalf("expected ErrUnsupportedConnector, got %v", err)
	}
	if _, err := CCBoardPrice(2024, ConnectorType("lightning"), now2024); !errors.Is(err, ErrUnsupportedConnector) {
		t.Fatalf("expected ErrUnsupportedConnector, got %v", err)
	}
}

func TestBatteryEffectivePrice(t *testing.T) {
	if got := BatteryEffectivePrice(4000); got != 1000_00 {
		t.Fatalf("BatteryEffectivePrice(4000) = %d, want 100000", got)
	}
	if got := BatteryEffectivePrice(3333); got != 83325 {
		t.Fatalf("BatteryEffectivePrice(3333) = %d, want 83325", got)
	}
}

func TestBatteryServiceCharge(t *testing.T) {
	if got := BatteryServiceCharge(); got != 200_00 {
		t.Fatalf("BatteryServiceCharge() = %d, want 20000", got)
	}
}

func TestParseConnector(t *testing.T) {
	if c, err := ParseConnector("Type-C"); err != nil || c != ConnectorTypeC {
		t.Fatalf("ParseConnector(Type-C) = %s, %v", c, err)
	}
	if c, err := ParseConnector("v8"); err != nil || c != ConnectorV8 {
		t.Fatalf("ParseConnector(v8) = %s, %v", c, err)
	}
	if _, err := ParseConnector("lightning"); !errors.Is(err, ErrUnsupportedConnector) {
		t.Fatalf("expected ErrUnsupportedConnector, got %v", err)
	}
}

func TestFormatMajor(t *testing.T) {
	if got := FormatMajor(83325); got != "833.25" {
		t.Fatalf("FormatMajor(83325) = %q", got)
	}
	if got := FormatMajor(-5); got != "-0.05" {
		t.Fatalf("FormatMajor(-5) = %q", got)
	}
}
