package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"brickscan/internal/logger"

	"gocv.io/x/gocv"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

const maxDatagramSize = 2048

// frameAssembler rebuilds JPEG frames that a camera split across datagrams.
// A datagram starting with the JPEG SOI marker begins a new frame and one
// ending with the EOI marker completes it.
type frameAssembler struct {
	buf     bytes.Buffer
	started bool
}

// Write adds a datagram and returns a completed frame, if any.
func (a *frameAssembler) Write(data []byte) ([]byte, bool) {
	if bytes.HasPrefix(data, jpegHeader) {
		a.buf.Reset()
		a.started = true
	}
	if !a.started {
		return nil, false
	}
	a.buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}

	frame := make([]byte, a.buf.Len())
	copy(frame, a.buf.Bytes())
	a.buf.Reset()
	a.started = false
	return frame, true
}

// UDPSource receives JPEG frames pushed by a network camera.
// Only the most recent complete frame is kept.
type UDPSource struct {
	conn   *net.UDPConn
	logger *logger.Logger

	mu       sync.Mutex
	latest   []byte
	seq      uint64
	consumed uint64
	done     chan struct{}
}

// ListenUDP starts receiving frames on port until ctx is cancelled or Close is called.
func ListenUDP(ctx context.Context, port int, logger *logger.Logger) (*UDPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP port %d: %w", port, err)
	}

	s := &UDPSource{
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.receive()
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-s.done:
		}
	}()

	logger.Info("UDP camera source listening on %s", conn.LocalAddr())
	return s, nil
}

// Addr returns the local address the source listens on.
func (s *UDPSource) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSource) receive() {
	defer close(s.done)

	var assembler frameAssembler
	buffer := make([]byte, maxDatagramSize)
	for {
		n, _, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		if frame, ok := assembler.Write(buffer[:n]); ok {
			s.mu.Lock()
			s.latest = frame
			s.seq++
			s.mu.Unlock()
		}
	}
}

// Read decodes the newest frame into dst. It returns ErrNoFrame when no
// frame arrived since the previous Read.
func (s *UDPSource) Read(dst *gocv.Mat) error {
	s.mu.Lock()
	if s.seq == s.consumed {
		s.mu.Unlock()
		return ErrNoFrame
	}
	data := s.latest
	s.consumed = s.seq
	s.mu.Unlock()

	decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}
	defer decoded.Close()

	if decoded.Empty() {
		return errors.New("failed to decode frame: corrupt JPEG")
	}
	if err := decoded.CopyTo(dst); err != nil {
		return fmt.Errorf("failed to copy frame: %w", err)
	}
	return nil
}

// Close stops receiving and waits for the receive loop to exit.
func (s *UDPSource) Close() error {
	err := s.conn.Close()
	<-s.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
