package link

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"time"

	serial "go.bug.st/serial"

	"github.com/Starsurfer78/sunray-mower-sub001/internal/log"
)

// SerialLink talks to the microcontroller over a serial port. A single
// reader goroutine owns the port's read side and feeds decoded lines into a
// channel; writes are serialized with a mutex.
type SerialLink struct {
	port    serial.Port
	timeout time.Duration

	writeMu sync.Mutex

	lines chan string
	done  chan struct{}

	snapMu sync.Mutex
	last   Snapshot
}

// OpenSerial opens the device and starts the reader goroutine. timeout is
// the per-request budget for RequestSnapshot.
func OpenSerial(device string, baud int, timeout time.Duration) (*SerialLink, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	l := &SerialLink{
		port:    port,
		timeout: timeout,
		lines:   make(chan string, 16),
		done:    make(chan struct{}),
	}
	go l.readLoop()

	log.Info("serial link opened", "device", device, "baud", baud)
	return l, nil
}

func (l *SerialLink) readLoop() {
	r := bufio.NewReader(l.port)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			log.Warn("serial read failed", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		select {
		case l.lines <- line:
		default:
			// Consumer is behind; drop the oldest buffered line so the
			// freshest data wins.
			select {
			case <-l.lines:
			default:
			}
			l.lines <- line
		}
	}
}

// RequestSnapshot sends a summary poll and waits for the next inbound record
// within the configured timeout. On failure the last-known snapshot is
// returned along with the error so the caller can substitute stale values.
func (l *SerialLink) RequestSnapshot(ctx context.Context) (Snapshot, error) {
	if err := l.write(EncodeSummaryRequest()); err != nil {
		return l.lastSnapshot(), fmt.Errorf("summary request: %w", err)
	}

	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()

	for {
		select {
		case line := <-l.lines:
			l.snapMu.Lock()
			kind, err := ParseLine(line, &l.last)
			snap := l.last
			l.snapMu.Unlock()
			if err != nil {
				return snap, fmt.Errorf("decode %q: %w", line, err)
			}
			if kind == LineUnknown {
				continue // wire chatter, keep waiting
			}
			return snap, nil
		case <-deadline.C:
			return l.lastSnapshot(), fmt.Errorf("summary response timed out after %v", l.timeout)
		case <-ctx.Done():
			return l.lastSnapshot(), ctx.Err()
		}
	}
}

// SendMotor transmits left/right/mow PWM values.
func (l *SerialLink) SendMotor(left, right, mow int) error {
	return l.write(EncodeMotor(left, right, mow))
}

// SendBuzzer plays a tone on the controller's buzzer.
func (l *SerialLink) SendBuzzer(freqHz, durationMs int) error {
	return l.write(EncodeBuzzer(freqHz, durationMs))
}

// SendStop transmits the emergency stop command.
func (l *SerialLink) SendStop() error {
	return l.write(EncodeStop())
}

func (l *SerialLink) write(cmd string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if _, err := l.port.Write([]byte(cmd + "\r\n")); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	return nil
}

// Close stops the reader and closes the port.
func (l *SerialLink) Close() error {
	close(l.done)
	return l.port.Close()
}

func (l *SerialLink) lastSnapshot() Snapshot {
	l.snapMu.Lock()
	defer l.snapMu.Unlock()
	return l.last
}

var _ Link = (*SerialLink)(nil)
