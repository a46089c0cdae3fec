package acquire

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the slice of a serial connection the acquisition loop needs.
// go.bug.st/serial's Port satisfies it; tests substitute a scripted fake.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Opener opens a port by name and baud rate.
type Opener func(portName string, baudRate int) (Port, error)

// OpenSerial is the production Opener.
func OpenSerial(portName string, baudRate int) (Port, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, err
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// SyncClock sets the instrument clock to the given moment using the Fluke
// SYST command pair. The instrument sends no acknowledgment; this is
// fire-and-forget.
func SyncClock(w io.Writer, now time.Time) error {
	y, m, d := now.Date()
	if _, err := fmt.Fprintf(w, "SYST:DATE %d,%d,%d\r\n", y, int(m), d); err != nil {
		return fmt.Errorf("acquire: setting instrument date: %w", err)
	}
	if _, err := fmt.Fprintf(w, "SYST:TIME %d,%d,%d\r\n", now.Hour(), now.Minute(), now.Second()); err != nil {
		return fmt.Errorf("acquire: setting instrument time: %w", err)
	}
	return nil
}
