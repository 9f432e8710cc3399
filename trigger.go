package gazecapture

import (
	"fmt"
	"log/slog"
	"time"

	"go.bug.st/serial"
)

// DefaultTriggerBaud is the DLP-IO8-G's native rate.
const DefaultTriggerBaud = 115200

// Trigger lines. Line 1 mirrors the visible go cue, line 2 pulses at the
// capture instant, so external recording gear (eye tracker, EEG) can be
// aligned with the dataset offline.
const (
	cueLine     = '1'
	captureLine = '2'

	// capturePulse is how long the capture line stays high
	capturePulse = 5 * time.Millisecond
)

// TriggerBox drives a DLP-IO8-G USB digital-output box.
//
// Protocol: the box sets line N high on the ASCII digit 'N' and low on
// the matching letter of the QWERTY top row ('1'→'Q', '2'→'W', ...).
// 0x27 is a ping answered with 'Q'; 0x5C switches replies to binary.
//
// The box is optional equipment: construction fails fast when it is
// requested but absent, and a nil *TriggerBox in the trial wiring simply
// disables hardware marks.
type TriggerBox struct {
	port   serial.Port
	device string
}

// NewTriggerBox opens the box and verifies it answers the ping.
func NewTriggerBox(device string, baud int) (*TriggerBox, error) {
	if device == "" {
		return nil, fmt.Errorf("gaze-capture: trigger device is required")
	}
	if baud <= 0 {
		baud = DefaultTriggerBaud
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("gaze-capture: failed to open trigger box %s: %w", device, err)
	}

	if _, err := port.Write([]byte{0x27}); err != nil {
		port.Close()
		return nil, fmt.Errorf("gaze-capture: trigger box ping failed: %w", err)
	}
	buf := make([]byte, 1)
	n, err := port.Read(buf)
	if err != nil || n != 1 || buf[0] != 'Q' {
		port.Close()
		return nil, fmt.Errorf("gaze-capture: device at %s did not answer the DLP-IO8-G ping", device)
	}

	if _, err := port.Write([]byte{0x5C}); err != nil {
		port.Close()
		return nil, fmt.Errorf("gaze-capture: failed to switch trigger box to binary mode: %w", err)
	}

	slog.Info("gaze-capture: trigger box connected", "device", device, "baud", baud)

	return &TriggerBox{port: port, device: device}, nil
}

// CueOn raises the cue line; call when the orange go cue appears.
func (t *TriggerBox) CueOn() error {
	return t.set(cueLine)
}

// CueOff lowers the cue line; call when the capture window closes.
func (t *TriggerBox) CueOff() error {
	return t.unset(cueLine)
}

// MarkCapture pulses the capture line at the moment a frame is stored.
func (t *TriggerBox) MarkCapture() error {
	if err := t.set(captureLine); err != nil {
		return err
	}
	time.Sleep(capturePulse)
	return t.unset(captureLine)
}

// Close releases the serial port. Lines are left as they are; the box
// resets them on its next power cycle.
func (t *TriggerBox) Close() error {
	return t.port.Close()
}

func (t *TriggerBox) set(line byte) error {
	if _, err := t.port.Write([]byte{line}); err != nil {
		return fmt.Errorf("gaze-capture: trigger set line %c: %w", line, err)
	}
	return nil
}

func (t *TriggerBox) unset(line byte) error {
	b, ok := unsetByte(line)
	if !ok {
		return fmt.Errorf("gaze-capture: unknown trigger line %c", line)
	}
	if _, err := t.port.Write([]byte{b}); err != nil {
		return fmt.Errorf("gaze-capture: trigger unset line %c: %w", line, err)
	}
	return nil
}

// unsetByte maps a line digit to the byte that drives it low.
func unsetByte(line byte) (byte, bool) {
	switch line {
	case '1':
		return 'Q', true
	case '2':
		return 'W', true
	case '3':
		return 'E', true
	case '4':
		return 'R', true
	case '5':
		return 'T', true
	case '6':
		return 'Y', true
	case '7':
		return 'U', true
	case '8':
		return 'I', true
	}
	return 0, false
}
