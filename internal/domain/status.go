package domain

import "fmt"

// Status is the operational state of a facility or cable.
type Status string

const (
	StatusOperational Status = "operational"
	StatusWarning     Status = "warning"
	StatusHighLoad    Status = "high_load"
	StatusDown        Status = "down"
)

// Severity ranks a status: 0 operational, 1 warning or high load, 2 down.
// Unknown values rank as operational.
func (s Status) Severity() int {
	switch s {
	case StatusDown:
		return 2
	case StatusWarning, StatusHighLoad:
		return 1
	default:
		return 0
	}
}

// Normalize folds a status into the three aggregation levels.
func (s Status) Normalize() Status {
	switch s.Severity() {
	case 2:
		return StatusDown
	case 1:
		return StatusWarning
	default:
		return StatusOperational
	}
}

// WorstStatus returns the more severe of a and b, normalized. Ties resolve by
// severity, never by argument order.
func WorstStatus(a, b Status) Status {
	if b.Severity() > a.Severity() {
		return b.Normalize()
	}
	return a.Normalize()
}

// CableType classifies a cable by its voltage tier.
type CableType string

const (
	CableTransmission CableType = "transmission"
	CableDistribution CableType = "distribution"
	CableService      CableType = "service"
)

// RGB is a color with channels in [0, 1].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Hex renders the color as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

var (
	colorRed    = RGB{R: 1, G: 0.2, B: 0.2}
	colorYellow = RGB{R: 1, G: 0.8, B: 0}
	colorGreen  = RGB{R: 0.2, G: 1, B: 0.4}
)

// StatusColor maps a status onto the dashboard palette: down is red, warning
// and high load are yellow, everything else is green.
func StatusColor(s Status) RGB {
	switch s.Severity() {
	case 2:
		return colorRed
	case 1:
		return colorYellow
	default:
		return colorGreen
	}
}
