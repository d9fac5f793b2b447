package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/logging"
	"go.bug.st/serial"
)

// Serial defaults.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
	readChunkSize      = 4096
)

// Port is the subset of serial.Port the source needs.
type Port interface {
	io.Reader
	Close() error
}

// PortOpener opens a named port.
type PortOpener func(name string, baud int, readTimeout time.Duration) (Port, error)

// SerialConfig configures a Serial source.
type SerialConfig struct {
	Port        string
	BaudRate    int           // default 115200
	ReadTimeout time.Duration // poll interval for cancellation, default 100ms
	Lister      *Lister       // validates the port name; optional
	Opener      PortOpener    // defaults to go.bug.st/serial
	Logger      *slog.Logger
}

// Serial reads from a serial port.
type Serial struct {
	name   string
	baud   int
	logger *slog.Logger

	mu     sync.Mutex
	port   Port
	closed atomic.Bool

	bytesRead atomic.Uint64
}

func openSerialPort(name string, baud int, readTimeout time.Duration) (Port, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// OpenSerial validates the configuration and opens the port. On any error no
// port is left open.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Port == "" {
		return nil, configError("no serial port configured", cfg.Port)
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Opener == nil {
		cfg.Opener = openSerialPort
	}
	if cfg.Lister != nil {
		ports, err := cfg.Lister.Ports()
		if err != nil {
			return nil, err
		}
		if !slices.Contains(ports, cfg.Port) {
			return nil, configError("serial port not found", cfg.Port)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForService("acquisition")
		if logger == nil {
			logger = slog.Default()
		}
	}

	p, err := cfg.Opener(cfg.Port, cfg.BaudRate, cfg.ReadTimeout)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open serial port: %w", err)).
			Component(ComponentSource).
			Category(errors.CategoryAudioSource).
			Context("port", cfg.Port).
			Context("baud_rate", cfg.BaudRate).
			Build()
	}

	s := &Serial{
		name:   cfg.Port,
		baud:   cfg.BaudRate,
		logger: logger.With("component", "serial_source", "port", cfg.Port),
		port:   p,
	}
	s.logger.Info("serial port opened", "baud_rate", cfg.BaudRate)
	return s, nil
}

func configError(msg, port string) error {
	return errors.Newf("%s: %q", msg, port).
		Component(ComponentSource).
		Category(errors.CategoryConfiguration).
		Context("port", port).
		Build()
}

// Name returns the port name.
func (s *Serial) Name() string { return s.name }

// BytesRead returns the bytes delivered so far.
func (s *Serial) BytesRead() uint64 { return s.bytesRead.Load() }

// Run polls the port and delivers chunks. Read timeouts return zero bytes,
// which gives the loop a chance to observe ctx.
func (s *Serial) Run(ctx context.Context, handler ChunkHandler) error {
	s.mu.Lock()
	p := s.port
	s.mu.Unlock()
	if p == nil {
		return ErrClosed
	}

	buf := make([]byte, readChunkSize)
	for {
		if ctx.Err() != nil || s.closed.Load() {
			return nil
		}
		n, err := p.Read(buf)
		if n > 0 {
			s.bytesRead.Add(uint64(n))
			handler(buf[:n])
		}
		if err != nil {
			if s.closed.Load() || err == io.EOF {
				return nil
			}
			return errors.New(fmt.Errorf("serial read failed: %w", err)).
				Component(ComponentSource).
				Category(errors.CategoryAudioSource).
				Context("port", s.name).
				Build()
		}
	}
}

// Close closes the port; Run returns once its pending read completes.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	s.closed.Store(true)
	err := s.port.Close()
	s.port = nil
	s.logger.Info("serial port closed", "bytes_read", s.bytesRead.Load())
	if err != nil {
		return errors.New(err).
			Component(ComponentSource).
			Category(errors.CategoryAudioSource).
			Context("port", s.name).
			Build()
	}
	return nil
}
