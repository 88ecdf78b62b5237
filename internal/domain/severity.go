package domain

import "fmt"

// FireSeverity is a burn severity class derived from RBR.
type FireSeverity int

const (
	Unburned FireSeverity = iota
	LowSeverity
	ModerateSeverity
	HighSeverity
	VeryHighSeverity
)

// SeverityClasses lists every class in ascending order.
var SeverityClasses = []FireSeverity{Unburned, LowSeverity, ModerateSeverity, HighSeverity, VeryHighSeverity}

// SeverityThresholds are the lower RBR bounds of classes 1..4.
var SeverityThresholds = []float64{0.10, 0.27, 0.44, 0.66}

// SeverityPalette colors classes 0..4 in the severity visual (hex RGB).
var SeverityPalette = []string{"00FF00", "FFFF00", "FFA500", "FF0000", "8B4513"}

var severityLabels = [...]string{"unburned", "low", "moderate", "high", "very_high"}

func (s FireSeverity) String() string {
	if s < Unburned || s > VeryHighSeverity {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityLabels[s]
}

// ClassifyRBR maps an RBR value onto a severity class. Bounds are half-open:
// a value equal to a threshold belongs to the higher class.
func ClassifyRBR(rbr float64) FireSeverity {
	class := Unburned
	for _, t := range SeverityThresholds {
		if rbr >= t {
			class++
		}
	}
	return class
}

// AreaBySeverity holds hectares per severity class.
type AreaBySeverity map[FireSeverity]float64

// NewAreaBySeverity returns a map with every class present and zeroed.
func NewAreaBySeverity() AreaBySeverity {
	a := make(AreaBySeverity, len(SeverityClasses))
	for _, c := range SeverityClasses {
		a[c] = 0
	}
	return a
}

// Total is the classified area across all classes.
func (a AreaBySeverity) Total() float64 {
	var sum float64
	for _, c := range SeverityClasses {
		sum += a[c]
	}
	return sum
}

// Burned is the area of classes low through very high.
func (a AreaBySeverity) Burned() float64 {
	return a.Total() - a[Unburned]
}
