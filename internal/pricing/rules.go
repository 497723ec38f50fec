package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// ConnectorType identifies the charging connector family of a device.
// It only matters for charger and CC-board price tier lookup.
type ConnectorType string

const (
	ConnectorTypeC ConnectorType = "type_c"
	ConnectorV8    ConnectorType = "v8"
	ConnectorOther ConnectorType = "other"
)

// ErrUnsupportedConnector is returned when no pricing rule exists for the
// given connector. The failure is scoped to the single component being
// priced; the rest of the quote stays valid.
var ErrUnsupportedConnector = errors.New("pricing: unsupported connector type")

// recentYears is the device age boundary between the two price tiers.
const recentYears = 3

// batteryCapacityRatio converts a raw battery capacity value into minor
// units: capacity * 0.25 in major units is exactly capacity * 25 in minor
// units, so the calculation never loses precision.
const batteryCapacityRatio = 25

// ParseConnector normalises a connector string from catalog or request data.
func ParseConnector(value string) (ConnectorType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "type_c", "typec", "type-c", "usb-c":
		return ConnectorTypeC, nil
	case "v8", "micro", "micro-usb":
		return ConnectorV8, nil
	case "", "other":
		return ConnectorOther, nil
	}
	return ConnectorOther, fmt.Errorf("%w: %q", ErrUnsupportedConnector, value)
}

func deviceAge(releaseYear int, now time.Time) int {
	return now.Year() - releaseYear
}

// ChargerPrice returns the flat charger price for the device.
//
// Tier table (age = current year - release year):
//
//	TypeC: 450.00 at any age
//	V8:    350.00 when age <= 3, 300.00 when older
func ChargerPrice(releaseYear int, connector ConnectorType, now time.Time) (Money, error) {
	switch connector {
	case ConnectorTypeC:
		return 450_00, nil
	case ConnectorV8:
		if deviceAge(releaseYear, now) <= recentYears {
			return 350_00, nil
		}
		return 300_00, nil
	}
	return 0, ErrUnsupportedConnector
}

// CCBoardPrice returns the add-on price for a CC-board replacement.
//
//	TypeC: 400.00 when age <= 3, 200.00 when older
//	V8:    200.00 when age <= 3, 250.00 when older
func CCBoardPrice(releaseYear int, connector ConnectorType, now time.Time) (Money, error) {
	recent := deviceAge(releaseYear, now) <= recentYears
	switch connector {
	case ConnectorTypeC:
		if recent {
			return 400_00, nil
		}
		return 200_00, nil
	case ConnectorV8:
		if recent {
			return 200_00, nil
		}
		return 250_00, nil
	}
	return 0, ErrUnsupportedConnector
}

// BatteryEffectivePrice derives the battery price from the raw catalog
// capacity value. The effective price is capacity * 0.25, not the catalog's
// raw price.
func BatteryEffectivePrice(capacity int64) Money {
	return Money(capacity) * batteryCapacityRatio
}

// BatteryServiceCharge is the flat labour charge for non-removable
// batteries, applied only when staff set the service flag.
func BatteryServiceCharge() Money {
	return 200_00
}

// ToMinor converts a decimal amount from external wire formats into minor
// units using half-up rounding.
func ToMinor(value float64) Money {
	return Money(math.Round(value * 100))
}

// FormatMajor renders a minor-unit amount as a decimal string for display.
func FormatMajor(amount Money) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
