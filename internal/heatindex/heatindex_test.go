package heatindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFahrenheitMatchesNWSChart(t *testing.T) {
	// reference points from the NWS heat index chart
	tests := []struct {
		tempF, rh, want float64
	}{
		{80, 40, 80},
		{90, 70, 105},
		{95, 55, 110},
		{100, 50, 118},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Fahrenheit(tt.tempF, tt.rh), 1.5,
			"T=%v RH=%v", tt.tempF, tt.rh)
	}
}

func TestSimpleFormulaBelowThreshold(t *testing.T) {
	// cool conditions stay on the Steadman simple formula, which tracks
	// the ambient temperature closely
	hi := Fahrenheit(70, 50)
	assert.InDelta(t, 70, hi, 3)
}

func TestBoundaryAdjustments(t *testing.T) {
	// below 13% RH the published adjustment pulls the index down
	assert.Less(t, Fahrenheit(96, 10), Fahrenheit(96, 13))
	// above 85% RH on a mild day it pushes the index up
	assert.Greater(t, Fahrenheit(82, 90), Fahrenheit(82, 85))
}

func TestCelsiusWrapperConverts(t *testing.T) {
	// 35°C at 70% RH is about 124°F on the chart, i.e. roughly 51°C
	assert.InDelta(t, 51.1, Celsius(35, 70), 1.0)
}
