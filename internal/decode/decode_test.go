package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeHeatIndex(t, rh float64) float64 { return t*100 + rh }

func TestDecodeDualChannelLine(t *testing.T) {
	d, err := NewDecoder(FlukeDual(), fakeHeatIndex)
	require.NoError(t, err)

	// the instrument pads readings with U+00A0
	line := "01/01/2024 10:00:00, 22.5, C, 55.0, %, -3.25, C, 78.1"
	s, err := d.Decode(line)
	require.NoError(t, err)

	assert.Equal(t, "01/01/2024 10:00:00", s.DeviceTimestamp)
	assert.Equal(t, 22.5, s.Channel1.Temperature)
	assert.Equal(t, 55.0, s.Channel1.RelativeHumidity)
	assert.Equal(t, -3.25, s.Channel2.Temperature)
	assert.Equal(t, 78.1, s.Channel2.RelativeHumidity)
	assert.Equal(t, fakeHeatIndex(22.5, 55.0), s.HeatIndex1)
	assert.Equal(t, fakeHeatIndex(-3.25, 78.1), s.HeatIndex2)
}

func TestDecodeSingleChannelLine(t *testing.T) {
	d, err := NewDecoder(FlukeSingle(), fakeHeatIndex)
	require.NoError(t, err)

	s, err := d.Decode("01/01/2024 10:00:00, 22.5, x, 55.0, x")
	require.NoError(t, err)

	assert.Equal(t, 22.5, s.Channel1.Temperature)
	assert.Equal(t, 55.0, s.Channel1.RelativeHumidity)
	assert.Equal(t, fakeHeatIndex(22.5, 55.0), s.HeatIndex1)
	assert.Zero(t, s.Channel2)
	assert.Zero(t, s.HeatIndex2)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		line string
		want error
	}{
		{"empty line", FlukeSingle(), "", ErrEmptyLine},
		{"only padding", FlukeSingle(), "   ", ErrEmptyLine},
		{"too few fields", FlukeDual(), "01/01/2024 10:00:00, 22.5, C, 55.0", ErrTooFewFields},
		{"malformed number", FlukeSingle(), "01/01/2024 10:00:00, 22..5, x, 55.0", ErrNumericParse},
		{"unit marker where number expected", FlukeSingle(), "01/01/2024 10:00:00, C, x, 55.0", ErrNumericParse},
		{
			"reading offset beyond fields",
			Config{MinFields: 4, Temp1Field: 1, RH1Field: 6},
			"01/01/2024 10:00:00, 22.5, x, 55.0",
			ErrFieldIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDecoder(tt.cfg, fakeHeatIndex)
			require.NoError(t, err)

			_, err = d.Decode(tt.line)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeRoundTripsExactValues(t *testing.T) {
	d, err := NewDecoder(FlukeSingle(), fakeHeatIndex)
	require.NoError(t, err)

	s, err := d.Decode("02/03/2024 11:22:33, 22.123456789, x, 55.987654321")
	require.NoError(t, err)
	assert.Equal(t, 22.123456789, s.Channel1.Temperature)
	assert.Equal(t, 55.987654321, s.Channel1.RelativeHumidity)
}

func TestNewDecoderRejectsBadConfig(t *testing.T) {
	_, err := NewDecoder(Config{MinFields: 1, Temp1Field: 1, RH1Field: 2}, fakeHeatIndex)
	assert.Error(t, err)

	_, err = NewDecoder(Config{MinFields: 4, Temp1Field: 0, RH1Field: 2}, fakeHeatIndex)
	assert.Error(t, err)

	_, err = NewDecoder(FlukeSingle(), nil)
	assert.Error(t, err)
}
