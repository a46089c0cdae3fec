// Package store accumulates decoded samples between flushes and persists
// them to one CSV file per calendar day. Flushes merge the buffered rows
// with whatever is already on disk and land via a temp-file write followed
// by an atomic rename, so an external reader of the day file never sees a
// half-written state.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"thermolab/flukelog/internal/decode"
)

var (
	ErrWriteTemp = errors.New("store: writing temp file")
	ErrReplace   = errors.New("store: replacing day file")
)

var header = []string{"DeviceTimestamp", "Temp1", "RH1", "Temp2", "RH2", "HeatIndex1", "HeatIndex2"}

type Config struct {
	Dir             string
	RecordThreshold int
	TimeThreshold   time.Duration
}

func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("store config: data dir is required")
	}
	if c.RecordThreshold <= 0 {
		return fmt.Errorf("store config: record threshold must be positive, got %d", c.RecordThreshold)
	}
	if c.TimeThreshold <= 0 {
		return fmt.Errorf("store config: time threshold must be positive, got %s", c.TimeThreshold)
	}
	return nil
}

// Store owns the in-memory persistence buffer and the flush policy. It is
// driven entirely from the consumer loop and is not safe for concurrent use.
type Store struct {
	cfg       Config
	logger    *zap.Logger
	buf       []decode.Sample
	lastFlush time.Time

	// swapped out by tests to fail between temp write and replace
	rename func(oldpath, newpath string) error
}

func New(cfg Config, logger *zap.Logger, now time.Time) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("store: creating data dir: %w", err)
	}
	return &Store{
		cfg:       cfg,
		logger:    logger,
		lastFlush: now,
		rename:    os.Rename,
	}, nil
}

func (s *Store) Record(sample decode.Sample) {
	s.buf = append(s.buf, sample)
}

func (s *Store) Len() int { return len(s.buf) }

// ShouldFlush reports whether the buffer has reached the record threshold,
// or is non-empty and the time threshold has elapsed since the last
// successful flush.
func (s *Store) ShouldFlush(now time.Time) bool {
	if len(s.buf) >= s.cfg.RecordThreshold {
		return true
	}
	return len(s.buf) > 0 && now.Sub(s.lastFlush) >= s.cfg.TimeThreshold
}

// DayFile returns the target path for the given moment's calendar day.
func (s *Store) DayFile(now time.Time) string {
	return filepath.Join(s.cfg.Dir, "fluke_"+now.Format("2006-01-02")+".csv")
}

// Flush merges the buffered samples into the current day file. On success
// the buffer is cleared and the flush clock reset together; on failure both
// are left untouched so the next attempt retries the same samples. The
// rename ordering guarantees the retry cannot double-apply rows.
func (s *Store) Flush(now time.Time) error {
	if len(s.buf) == 0 {
		return nil
	}

	target := s.DayFile(now)
	existing := s.readExisting(target)

	rows := make([][]string, 0, len(existing)+len(s.buf))
	rows = append(rows, existing...)
	for _, sample := range s.buf {
		rows = append(rows, sampleRow(sample))
	}

	tmp := tempPath(target)
	defer os.Remove(tmp)

	if err := writeRows(tmp, rows); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteTemp, err)
	}
	if err := s.rename(tmp, target); err != nil {
		return fmt.Errorf("%w: %v", ErrReplace, err)
	}

	s.logger.Info("[store] flushed samples",
		zap.Int("newRows", len(s.buf)),
		zap.Int("totalRows", len(rows)),
		zap.String("dayFile", target),
	)

	s.buf = s.buf[:0]
	s.lastFlush = now
	return nil
}

// readExisting loads the rows already persisted for the day. Any failure
// degrades to an empty prior state: losing the ability to read yesterday's
// partial file must not block persisting today's buffer.
func (s *Store) readExisting(target string) [][]string {
	f, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		s.logger.Warn("[store] cannot read existing day file, treating as empty",
			zap.Error(err), zap.String("dayFile", target))
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		s.logger.Warn("[store] cannot parse existing day file, treating as empty",
			zap.Error(err), zap.String("dayFile", target))
		return nil
	}
	if len(records) > 0 && records[0][0] == header[0] {
		records = records[1:]
	}
	return records
}

func writeRows(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func sampleRow(s decode.Sample) []string {
	return []string{
		s.DeviceTimestamp,
		formatReading(s.Channel1.Temperature),
		formatReading(s.Channel1.RelativeHumidity),
		formatReading(s.Channel2.Temperature),
		formatReading(s.Channel2.RelativeHumidity),
		formatReading(s.HeatIndex1),
		formatReading(s.HeatIndex2),
	}
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// tempPath carries the pid so two processes sharing a data dir cannot
// clobber each other's in-flight temp file.
func tempPath(target string) string {
	return fmt.Sprintf("%s.tmp-%d", target, os.Getpid())
}
