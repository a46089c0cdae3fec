package decode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Func computes a heat index from a temperature in Celsius and a relative
// humidity in percent. The pipeline treats it as an opaque collaborator.
type Func func(tempC, rhPercent float64) float64

var (
	ErrEmptyLine    = errors.New("decode: empty line")
	ErrTooFewFields = errors.New("decode: too few fields")
	ErrFieldIndex   = errors.New("decode: field index out of range")
	ErrNumericParse = errors.New("decode: numeric parse")
)

// ChannelReading is one temperature/humidity pair from the instrument.
type ChannelReading struct {
	Temperature      float64
	RelativeHumidity float64
}

// Sample is one fully decoded instrument line. The device timestamp is kept
// verbatim; interpretation against wall clock happens elsewhere, if at all.
type Sample struct {
	DeviceTimestamp string
	Channel1        ChannelReading
	Channel2        ChannelReading
	HeatIndex1      float64
	HeatIndex2      float64
}

// Config describes one instrument protocol variant. The deployed Fluke units
// emit either 4 fields (timestamp, temp, rh, battery) or 8 fields with the
// readings interleaved with unit markers, so the offsets are configuration
// rather than constants.
type Config struct {
	MinFields int

	Temp1Field int
	RH1Field   int

	// Second channel offsets; set HasChannel2 false for single-channel units.
	HasChannel2 bool
	Temp2Field  int
	RH2Field    int
}

// FlukeDual is the 8-field dual-channel variant: readings at offsets 1,3,5,7
// with unit markers in between.
func FlukeDual() Config {
	return Config{
		MinFields:   8,
		Temp1Field:  1,
		RH1Field:    3,
		HasChannel2: true,
		Temp2Field:  5,
		RH2Field:    7,
	}
}

// FlukeSingle is the 4-field single-channel variant: timestamp, temp, rh,
// trailing status field.
func FlukeSingle() Config {
	return Config{
		MinFields:  4,
		Temp1Field: 1,
		RH1Field:   3,
	}
}

func (c Config) validate() error {
	if c.MinFields <= 1 {
		return fmt.Errorf("decode config: min fields must exceed 1, got %d", c.MinFields)
	}
	for _, f := range []int{c.Temp1Field, c.RH1Field} {
		if f < 1 {
			return fmt.Errorf("decode config: reading offset %d overlaps the timestamp field", f)
		}
	}
	if c.HasChannel2 && (c.Temp2Field < 1 || c.RH2Field < 1) {
		return fmt.Errorf("decode config: channel 2 offsets must be positive")
	}
	return nil
}

// Decoder turns raw instrument lines into Samples. It is pure given its
// configuration and injected heat index function.
type Decoder struct {
	cfg       Config
	heatIndex Func
}

func NewDecoder(cfg Config, heatIndex Func) (*Decoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if heatIndex == nil {
		return nil, errors.New("decode: nil heat index func")
	}
	return &Decoder{cfg: cfg, heatIndex: heatIndex}, nil
}

// Decode parses one newline-stripped instrument line. The instrument is known
// to pad readings with non-breaking spaces, so those are normalized before
// splitting on commas.
func (d *Decoder) Decode(raw string) (Sample, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, " ", " "))
	if cleaned == "" {
		return Sample{}, ErrEmptyLine
	}

	fields := strings.Split(cleaned, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < d.cfg.MinFields {
		return Sample{}, fmt.Errorf("%w: got %d, want at least %d", ErrTooFewFields, len(fields), d.cfg.MinFields)
	}

	s := Sample{DeviceTimestamp: fields[0]}

	var err error
	if s.Channel1.Temperature, err = numericField(fields, d.cfg.Temp1Field); err != nil {
		return Sample{}, err
	}
	if s.Channel1.RelativeHumidity, err = numericField(fields, d.cfg.RH1Field); err != nil {
		return Sample{}, err
	}
	s.HeatIndex1 = d.heatIndex(s.Channel1.Temperature, s.Channel1.RelativeHumidity)

	if d.cfg.HasChannel2 {
		if s.Channel2.Temperature, err = numericField(fields, d.cfg.Temp2Field); err != nil {
			return Sample{}, err
		}
		if s.Channel2.RelativeHumidity, err = numericField(fields, d.cfg.RH2Field); err != nil {
			return Sample{}, err
		}
		s.HeatIndex2 = d.heatIndex(s.Channel2.Temperature, s.Channel2.RelativeHumidity)
	}

	return s, nil
}

func numericField(fields []string, idx int) (float64, error) {
	if idx >= len(fields) {
		return 0, fmt.Errorf("%w: field %d of %d", ErrFieldIndex, idx, len(fields))
	}
	v, err := strconv.ParseFloat(fields[idx], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %d %q", ErrNumericParse, idx, fields[idx])
	}
	return v, nil
}
