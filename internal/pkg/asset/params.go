package asset

import (
	"fmt"
	"math"
)

// Editable parameter names accepted by SetParameter.
const (
	ParamCapacityKW      = "capacityKw"
	ParamLoadKW          = "loadKw"
	ParamTransferDelayMs = "transferDelayMs"
	ParamBatteryPct      = "batteryPct"
)

// SetParameter applies a user edit. On error the component is unchanged.
func (c *Component) SetParameter(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidParameter, field, value)
	}
	if value < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidParameter, field, value)
	}
	if !c.accepts(field) {
		return fmt.Errorf("%w: %s does not apply to %s", ErrInvalidParameter, field, c.Kind)
	}

	switch field {
	case ParamCapacityKW:
		c.CapacityKW = value
	case ParamLoadKW:
		c.LoadKW = value
	case ParamTransferDelayMs:
		if value != math.Trunc(value) {
			return fmt.Errorf("%w: %s must be whole milliseconds, got %v", ErrInvalidParameter, field, value)
		}
		c.TransferDelayMs = int64(value)
	case ParamBatteryPct:
		if value > 100 {
			return fmt.Errorf("%w: %s must be within [0,100], got %v", ErrInvalidParameter, field, value)
		}
		c.BatteryPct = value
	}
	return nil
}

func (c Component) accepts(field string) bool {
	switch field {
	case ParamCapacityKW:
		return c.Kind == GridFeed || c.Kind == Generator || c.Kind == UPS
	case ParamLoadKW:
		return c.Kind == Rack
	case ParamTransferDelayMs:
		return c.Kind == Generator || c.Kind == VoltageSwitch
	case ParamBatteryPct:
		return c.Kind == UPS
	}
	return false
}
