// Package units converts between the sensor's wire units and the SI units
// used everywhere inside the engine. Positions travel the wire in
// millimetres and radial speeds in cm/s; the engine works in metres and
// m/s throughout.
package units

import "math"

// MillimetresToMetres converts a sensor coordinate to metres.
func MillimetresToMetres(mm int) float64 {
	return float64(mm) / 1000.0
}

// MetresToMillimetres converts back to the sensor's coordinate unit.
func MetresToMillimetres(m float64) int {
	return int(math.Round(m * 1000.0))
}

// CentimetresPerSecondToMPS converts a sensor radial speed to m/s.
func CentimetresPerSecondToMPS(cms int) float64 {
	return float64(cms) / 100.0
}
