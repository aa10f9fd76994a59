package modbuscomm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"
)

var ErrRegisterNotFound = errors.New("register name not found in register array")

// Poller is a Modbus TCP Client. Each call opens and closes its own
// connection.
type Poller struct {
	handler *modbus.TCPClientHandler
}

type PollerConfig struct {
	Addr    string
	SlaveID byte
	Timeout time.Duration
	// Trace logs every frame at debug level.
	Trace bool
}

func NewPoller(cfg PollerConfig, logger zerolog.Logger) *Poller {
	handler := modbus.NewTCPClientHandler(cfg.Addr)
	handler.Timeout = cfg.Timeout
	handler.SlaveId = cfg.SlaveID
	if cfg.Trace {
		handler.Logger = log.New(logger.With().Str("component", "modbus").Logger().Level(zerolog.DebugLevel), "", 0)
	}
	return &Poller{handler: handler}
}

// Read returns every register it could read. The last read error, if any,
// is returned alongside the partial result.
func (m *Poller) Read(registers []Register) (map[string]float64, error) {
	if err := m.handler.Connect(); err != nil {
		return nil, err
	}
	defer m.handler.Close()

	client := modbus.NewClient(m.handler)
	values := make(map[string]float64, len(registers))
	var err error
	for _, reg := range registers {
		resp, readErr := client.ReadHoldingRegisters(reg.Address, sizeOf(reg.DataType))
		if readErr != nil {
			err = fmt.Errorf("read %s: %w", reg.Name, readErr)
			continue
		}
		values[reg.Name] = decode(resp, reg)
	}
	return values, err
}

func (m *Poller) Write(registers []Register, values map[string]float64) error {
	if err := m.handler.Connect(); err != nil {
		return err
	}
	defer m.handler.Close()

	client := modbus.NewClient(m.handler)
	var err error
	for name, val := range values {
		i, findErr := findIndexByName(registers, name)
		if findErr != nil {
			err = findErr
			continue
		}
		reg := registers[i]
		if _, writeErr := client.WriteMultipleRegisters(reg.Address, sizeOf(reg.DataType), encode(val, reg)); writeErr != nil {
			err = fmt.Errorf("write %s: %w", name, writeErr)
		}
	}
	return err
}

func findIndexByName(registers []Register, name string) (int, error) {
	for i, reg := range registers {
		if reg.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrRegisterNotFound, name)
}

func encode(val float64, reg Register) []byte {
	b := make([]byte, 2*sizeOf(reg.DataType))
	order := byteOrder(reg.Endianness)
	switch reg.DataType {
	case U16:
		order.PutUint16(b, uint16(val))
	case I16:
		order.PutUint16(b, uint16(int16(val)))
	case U32:
		order.PutUint32(b, uint32(val))
	case I32:
		order.PutUint32(b, uint32(int32(val)))
	case F32:
		order.PutUint32(b, math.Float32bits(float32(val)))
	case U64:
		order.PutUint64(b, uint64(val))
	case I64:
		order.PutUint64(b, uint64(int64(val)))
	case F64:
		order.PutUint64(b, math.Float64bits(val))
	}
	return b
}

func decode(b []byte, reg Register) float64 {
	order := byteOrder(reg.Endianness)
	switch reg.DataType {
	case U16:
		return float64(order.Uint16(b))
	case I16:
		return float64(int16(order.Uint16(b)))
	case U32:
		return float64(order.Uint32(b))
	case I32:
		return float64(int32(order.Uint32(b)))
	case F32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case U64:
		return float64(order.Uint64(b))
	case I64:
		return float64(int64(order.Uint64(b)))
	case F64:
		return math.Float64frombits(order.Uint64(b))
	}
	return 0
}

func byteOrder(e Endian) binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// sizeOf returns the number of 16-bit registers the type occupies.
func sizeOf(t DataType) uint16 {
	switch t {
	case U16, I16:
		return 1
	case U32, I32, F32:
		return 2
	case U64, I64, F64:
		return 4
	}
	return 0
}
