// Package session orchestrates one logging session: it wires the
// acquisition loop to the consumer tick through the bounded sample channel,
// feeds the rolling windows and the persistence buffer, and guarantees a
// final flush on a clean stop. A Session may be started again after Stop;
// every piece of per-session state is rebuilt from scratch on Start.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"thermolab/flukelog/internal/acquire"
	"thermolab/flukelog/internal/decode"
	"thermolab/flukelog/internal/metrics"
	"thermolab/flukelog/internal/store"
	"thermolab/flukelog/internal/window"
)

// Channel names the view layer can snapshot.
const (
	ChanTemp1      = "temp1"
	ChanRH1        = "rh1"
	ChanTemp2      = "temp2"
	ChanRH2        = "rh2"
	ChanHeatIndex1 = "heatindex1"
	ChanHeatIndex2 = "heatindex2"
)

var plotChannels = []string{ChanTemp1, ChanRH1, ChanTemp2, ChanRH2, ChanHeatIndex1, ChanHeatIndex2}

type Config struct {
	Serial  acquire.Config
	Decoder decode.Config
	Store   store.Config

	WindowCapacity  int
	ChannelCapacity int
	TickInterval    time.Duration
	StopTimeout     time.Duration
}

func (c Config) Validate() error {
	if c.Serial.PortName == "" {
		return errors.New("session config: serial port is required")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("session config: baud rate must be positive, got %d", c.Serial.BaudRate)
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"read timeout", c.Serial.ReadTimeout},
		{"backoff", c.Serial.Backoff},
		{"push timeout", c.Serial.PushTimeout},
		{"tick interval", c.TickInterval},
		{"stop timeout", c.StopTimeout},
	} {
		if d.v <= 0 {
			return fmt.Errorf("session config: %s must be positive, got %s", d.name, d.v)
		}
	}
	if c.WindowCapacity <= 0 {
		return fmt.Errorf("session config: window capacity must be positive, got %d", c.WindowCapacity)
	}
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("session config: channel capacity must be positive, got %d", c.ChannelCapacity)
	}
	return c.Store.Validate()
}

// Session is the lifecycle controller. All methods are called from the
// owning (view/main) goroutine; the acquisition and consumer goroutines it
// spawns communicate only through the sample channel and guarded accessors.
type Session struct {
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	open      acquire.Opener
	heatIndex decode.Func
	now       func() time.Time

	running      bool
	cancel       context.CancelFunc
	loop         *acquire.Loop
	agg          *window.Aggregator
	store        *store.Store
	samples      chan decode.Sample
	acqDone      chan error
	consumerDone chan struct{}
}

func New(cfg Config, logger *zap.Logger, m *metrics.Metrics, open acquire.Opener, heatIndex decode.Func) *Session {
	return &Session{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		open:      open,
		heatIndex: heatIndex,
		now:       time.Now,
	}
}

// Start validates the configuration, resets all per-session state, and
// spins up the acquisition and consumer goroutines. Nothing is acquired
// before validation passes.
func (s *Session) Start() error {
	if s.running {
		return errors.New("session: already started")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	decoder, err := decode.NewDecoder(s.cfg.Decoder, s.heatIndex)
	if err != nil {
		return err
	}
	agg, err := window.NewAggregator(s.cfg.WindowCapacity, plotChannels)
	if err != nil {
		return err
	}
	st, err := store.New(s.cfg.Store, s.logger, s.now())
	if err != nil {
		return err
	}

	sessionID := uuid.New().String()
	logger := s.logger.With(zap.String("sessionID", sessionID))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.agg = agg
	s.store = st
	s.samples = make(chan decode.Sample, s.cfg.ChannelCapacity)
	s.loop = acquire.NewLoop(s.cfg.Serial, s.open, decoder, s.samples, logger, s.metrics)
	s.acqDone = make(chan error, 1)
	s.consumerDone = make(chan struct{})

	go func() {
		s.acqDone <- s.loop.Run(ctx)
	}()
	go s.consume(ctx, logger)

	s.running = true
	logger.Info("[session] started",
		zap.String("portName", s.cfg.Serial.PortName),
		zap.Int("baudRate", s.cfg.Serial.BaudRate),
	)
	return nil
}

// Stop signals the acquisition loop, waits (bounded) for it to exit, drains
// the sample channel one last time, and flushes whatever is buffered. The
// final flush runs regardless of the count/time thresholds.
func (s *Session) Stop() error {
	if !s.running {
		return errors.New("session: not started")
	}
	s.running = false
	s.cancel()

	var errs error
	select {
	case err := <-s.acqDone:
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	case <-time.After(s.cfg.StopTimeout):
		errs = multierr.Append(errs, errors.New("session: acquisition loop did not stop in time"))
	}
	<-s.consumerDone

	s.drain()
	if err := s.flush(); err != nil {
		errs = multierr.Append(errs, err)
	}

	s.logger.Info("[session] stopped", zap.Error(errs))
	return errs
}

// ConnectionState reports the acquisition loop's state for status display.
func (s *Session) ConnectionState() (acquire.State, error) {
	if s.loop == nil {
		return acquire.Disconnected, nil
	}
	return s.loop.State()
}

// Snapshot returns a read-only copy of one plot channel's rolling window.
func (s *Session) Snapshot(channel string) ([]window.Point, error) {
	if s.agg == nil {
		return nil, errors.New("session: not started")
	}
	return s.agg.Snapshot(channel)
}

// consume is the periodic tick: drain everything queued, then flush when the
// policy says so.
func (s *Session) consume(ctx context.Context, logger *zap.Logger) {
	defer close(s.consumerDone)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[session] consumer loop exiting")
			return
		case <-ticker.C:
			s.drain()
			if s.store.ShouldFlush(s.now()) {
				if err := s.flush(); err != nil {
					logger.Warn("[session] flush failed, keeping buffer for retry", zap.Error(err))
				}
			}
		}
	}
}

// drain moves every queued sample into the aggregator and the persistence
// buffer, in arrival order.
func (s *Session) drain() {
	for {
		select {
		case sample, ok := <-s.samples:
			if !ok {
				return
			}
			s.apply(sample)
		default:
			return
		}
	}
}

func (s *Session) apply(sample decode.Sample) {
	ts := sample.DeviceTimestamp
	s.agg.Append(ChanTemp1, ts, sample.Channel1.Temperature)
	s.agg.Append(ChanRH1, ts, sample.Channel1.RelativeHumidity)
	s.agg.Append(ChanHeatIndex1, ts, sample.HeatIndex1)
	if s.cfg.Decoder.HasChannel2 {
		s.agg.Append(ChanTemp2, ts, sample.Channel2.Temperature)
		s.agg.Append(ChanRH2, ts, sample.Channel2.RelativeHumidity)
		s.agg.Append(ChanHeatIndex2, ts, sample.HeatIndex2)
	}
	s.store.Record(sample)
	s.metrics.BufferedSamples.Set(float64(s.store.Len()))
}

func (s *Session) flush() error {
	if s.store.Len() == 0 {
		return nil
	}
	if err := s.store.Flush(s.now()); err != nil {
		s.metrics.FlushFailures.Inc()
		return err
	}
	s.metrics.Flushes.Inc()
	s.metrics.BufferedSamples.Set(float64(s.store.Len()))
	return nil
}
