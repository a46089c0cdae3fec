// Package acquire owns the serial connection for one logging session: it
// reads raw bytes, assembles lines, decodes them, and pushes samples into
// the session's sample channel. Mid-session I/O failures are healed by
// closing and reopening the port on a fixed backoff; the initial open is
// deliberately not retried, so a misconfigured port fails the session
// immediately rather than spinning unattended.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"thermolab/flukelog/internal/decode"
	"thermolab/flukelog/internal/metrics"
)

var (
	ErrOpenFailed          = errors.New("acquire: opening serial port")
	ErrReconnectsExhausted = errors.New("acquire: reconnect attempts exhausted")
)

// State is the connection state machine position, observable from outside
// the loop through the guarded accessor.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Config struct {
	PortName    string
	BaudRate    int
	ReadTimeout time.Duration
	Backoff     time.Duration
	PushTimeout time.Duration

	// MaxReconnectAttempts bounds mid-session reconnects; 0 keeps the
	// reference behavior of retrying until the session stops.
	MaxReconnectAttempts int

	// SyncClockOnConnect writes SYST:DATE/SYST:TIME to the instrument
	// right after each successful open.
	SyncClockOnConnect bool
}

// Loop converts the serial byte stream into decoded samples. Exactly one
// goroutine runs Run; State is the only cross-goroutine surface.
type Loop struct {
	cfg     Config
	open    Opener
	decoder *decode.Decoder
	out     chan<- decode.Sample
	logger  *zap.Logger
	metrics *metrics.Metrics

	state guardedState
	now   func() time.Time
}

func NewLoop(cfg Config, open Opener, decoder *decode.Decoder, out chan<- decode.Sample, logger *zap.Logger, m *metrics.Metrics) *Loop {
	return &Loop{
		cfg:     cfg,
		open:    open,
		decoder: decoder,
		out:     out,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// State returns the current connection state and, when the state is Failed,
// the error that put it there.
func (l *Loop) State() (State, error) {
	return l.state.get()
}

// Run drives the loop until ctx is cancelled or a non-recoverable error
// occurs. The sample channel is closed on exit so the consumer can drain it.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.out)

	l.state.set(Connecting, nil)
	port, err := l.connect()
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrOpenFailed, l.cfg.PortName, err)
		l.state.set(Failed, err)
		l.logger.Error("[acquire] initial open failed, session aborted",
			zap.Error(err), zap.String("portName", l.cfg.PortName))
		return err
	}
	l.state.set(Connected, nil)
	l.logger.Info("[acquire] connected",
		zap.String("portName", l.cfg.PortName), zap.Int("baudRate", l.cfg.BaudRate))

	defer func() {
		if port != nil {
			port.Close()
		}
	}()

	var pending []byte
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			l.state.set(Disconnected, nil)
			l.logger.Info("[acquire] stop signal observed, exiting read loop",
				zap.String("portName", l.cfg.PortName))
			return nil
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			port.Close()
			port = nil
			pending = pending[:0]

			port, err = l.reconnect(ctx, err)
			if err != nil {
				return err
			}
			if port == nil { // cancelled during backoff
				l.state.set(Disconnected, nil)
				return nil
			}
			continue
		}
		if n == 0 {
			// read timeout with no data; loop to observe the stop signal
			continue
		}

		pending = append(pending, buf[:n]...)
		var line []byte
		for {
			line, pending = nextLine(pending)
			if line == nil {
				break
			}
			l.handleLine(ctx, string(line))
		}
	}
}

func (l *Loop) connect() (Port, error) {
	port, err := l.open(l.cfg.PortName, l.cfg.BaudRate)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(l.cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	if l.cfg.SyncClockOnConnect {
		if err := SyncClock(port, l.now()); err != nil {
			// calibration is best-effort; readings still flow without it
			l.logger.Warn("[acquire] instrument clock sync failed", zap.Error(err))
		}
	}
	return port, nil
}

// reconnect heals a mid-session read failure: state goes to Failed, then one
// reopen attempt per backoff interval until success, cancellation, or the
// configured attempt bound. Returns (nil, nil) when cancelled.
func (l *Loop) reconnect(ctx context.Context, cause error) (Port, error) {
	l.state.set(Failed, cause)
	l.logger.Warn("[acquire] read failed, reconnecting",
		zap.Error(cause), zap.String("portName", l.cfg.PortName),
		zap.Duration("backoff", l.cfg.Backoff))

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(l.cfg.Backoff):
		}

		attempts++
		l.metrics.Reconnects.Inc()
		port, err := l.connect()
		if err == nil {
			l.state.set(Connected, nil)
			l.logger.Info("[acquire] reconnected",
				zap.String("portName", l.cfg.PortName), zap.Int("attempts", attempts))
			return port, nil
		}

		l.logger.Warn("[acquire] reconnect attempt failed",
			zap.Error(err), zap.String("portName", l.cfg.PortName), zap.Int("attempts", attempts))
		if l.cfg.MaxReconnectAttempts > 0 && attempts >= l.cfg.MaxReconnectAttempts {
			err = fmt.Errorf("%w after %d attempts: %v", ErrReconnectsExhausted, attempts, err)
			l.state.set(Failed, err)
			return nil, err
		}
	}
}

func (l *Loop) handleLine(ctx context.Context, raw string) {
	sample, err := l.decoder.Decode(raw)
	if err != nil {
		if errors.Is(err, decode.ErrEmptyLine) {
			return
		}
		l.metrics.DecodeErrors.Inc()
		l.logger.Warn("[acquire] dropping undecodable line",
			zap.Error(err), zap.String("line", raw))
		return
	}
	l.metrics.LinesDecoded.Inc()

	// fast path: when the channel has room the sample must land, even if the
	// stop signal is already raised — Stop drains the channel before the
	// final flush, so handing the sample over here is what keeps it from
	// being discarded
	select {
	case l.out <- sample:
		return
	default:
	}

	// channel full: blocking push with timeout for backpressure, but never
	// wedge the read loop past the configured bound
	select {
	case l.out <- sample:
	case <-ctx.Done():
		l.metrics.SamplesDropped.Inc()
		l.logger.Warn("[acquire] sample channel full at stop, dropping sample",
			zap.String("deviceTimestamp", sample.DeviceTimestamp))
	case <-time.After(l.cfg.PushTimeout):
		l.metrics.SamplesDropped.Inc()
		l.logger.Warn("[acquire] sample channel full, dropping sample",
			zap.String("deviceTimestamp", sample.DeviceTimestamp))
	}
}

// nextLine splits one newline-terminated line off pending, tolerating CRLF.
// Returns (nil, pending) when no complete line is buffered yet.
func nextLine(pending []byte) (line, rest []byte) {
	i := bytes.IndexByte(pending, '\n')
	if i < 0 {
		return nil, pending
	}
	line = bytes.TrimRight(pending[:i], "\r")
	return line, pending[i+1:]
}
