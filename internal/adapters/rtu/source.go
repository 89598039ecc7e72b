package rtu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

const (
	firstRegister = 0x0000
	registerCount = 7
)

// Config captures the serial line settings of the soil sensor.
type Config struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baudrate"`
	DataBits int           `yaml:"data_bits"`
	Parity   string        `yaml:"parity"`
	StopBits int           `yaml:"stop_bits"`
	SlaveID  byte          `yaml:"slave_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Port == "" {
		c.Port = "/dev/ttyUSB0"
	}
	if c.BaudRate == 0 {
		c.BaudRate = 4800
	}
	if c.DataBits == 0 {
		c.DataBits = 8
	}
	if c.Parity == "" {
		c.Parity = "N"
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	if c.SlaveID == 0 {
		c.SlaveID = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 500 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baudrate must be > 0, got %d", c.BaudRate)
	}
	switch c.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("parity must be N, E or O, got %q", c.Parity)
	}
	return nil
}

type registerReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// Source reads the seven soil registers from a Modbus RTU sensor.
type Source struct {
	cfg    Config
	mu     sync.Mutex
	client registerReader
	closer func() error
}

// NewSource opens the serial port. A failure here is a construction failure;
// the caller decides whether to fall back to simulation.
func NewSource(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	handler := modbus.NewRTUClientHandler(cfg.Port)
	handler.BaudRate = cfg.BaudRate
	handler.DataBits = cfg.DataBits
	handler.Parity = cfg.Parity
	handler.StopBits = cfg.StopBits
	handler.SlaveId = cfg.SlaveID
	handler.Timeout = cfg.Timeout

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ports.ErrSourceConstruction, cfg.Port, err)
	}

	return newSource(cfg, modbus.NewClient(handler), handler.Close), nil
}

func newSource(cfg Config, client registerReader, closer func() error) *Source {
	return &Source{cfg: cfg, client: client, closer: closer}
}

func (s *Source) Name() string { return "modbus:" + s.cfg.Port }

func (s *Source) ReadOne(ctx context.Context) (*domain.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, fmt.Errorf("%w: source closed", ports.ErrSourceUnavailable)
	}

	raw, err := s.client.ReadHoldingRegisters(firstRegister, registerCount)
	if err != nil {
		return nil, fmt.Errorf("%w: read registers: %v", ports.ErrSourceUnavailable, err)
	}
	sample, err := decodeRegisters(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrSourceUnavailable, err)
	}
	sample.SensorID = domain.Int(int(s.cfg.SlaveID))
	sample.Timestamp = time.Now().UTC()
	return sample, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	if s.closer == nil {
		return nil
	}
	closer := s.closer
	s.closer = nil
	return closer()
}

// decodeRegisters maps the big-endian register block onto a Sample:
// humidity/10, temperature/10 (signed), conductivity, pH/10, N, P, K.
func decodeRegisters(raw []byte) (*domain.Sample, error) {
	if len(raw) != registerCount*2 {
		return nil, fmt.Errorf("unexpected register payload length %d", len(raw))
	}
	reg := func(i int) uint16 { return binary.BigEndian.Uint16(raw[2*i:]) }

	return &domain.Sample{
		Humidity:     domain.Float(float64(reg(0)) / 10),
		Temperature:  domain.Float(float64(int16(reg(1))) / 10),
		Conductivity: domain.Float(float64(reg(2))),
		PH:           domain.Float(float64(reg(3)) / 10),
		Nitrogen:     domain.Float(float64(reg(4))),
		Phosphorus:   domain.Float(float64(reg(5))),
		Potassium:    domain.Float(float64(reg(6))),
	}, nil
}

var _ ports.SampleSource = (*Source)(nil)
