// Package heatindex implements the NWS Rothfusz regression for apparent
// temperature. It is the default comfort-index collaborator for the decode
// pipeline; callers that need a different model inject their own func.
package heatindex

import "math"

// Celsius computes the heat index in degrees Celsius from an ambient
// temperature in Celsius and a relative humidity in percent.
func Celsius(tempC, rhPercent float64) float64 {
	return fahrenheitToCelsius(Fahrenheit(celsiusToFahrenheit(tempC), rhPercent))
}

// Fahrenheit follows the NWS procedure: the Steadman simple formula is used
// first, and only when its average with the ambient temperature reaches 80°F
// does the full Rothfusz regression (with its low-RH and high-RH boundary
// adjustments) apply.
func Fahrenheit(tempF, rhPercent float64) float64 {
	simple := 0.5 * (tempF + 61.0 + (tempF-68.0)*1.2 + rhPercent*0.094)
	if (simple+tempF)/2 < 80.0 {
		return simple
	}

	t := tempF
	rh := rhPercent
	hi := -42.379 +
		2.04901523*t +
		10.14333127*rh -
		0.22475541*t*rh -
		0.00683783*t*t -
		0.05481717*rh*rh +
		0.00122874*t*t*rh +
		0.00085282*t*rh*rh -
		0.00000199*t*t*rh*rh

	switch {
	case rh < 13 && t >= 80 && t <= 112:
		hi -= ((13 - rh) / 4) * math.Sqrt((17-math.Abs(t-95.0))/17)
	case rh > 85 && t >= 80 && t <= 87:
		hi += ((rh - 85) / 10) * ((87 - t) / 5)
	}

	return hi
}

func celsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

func fahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }
