// Package modbuscomm reads and writes typed values in Modbus holding
// registers.
package modbuscomm

import "fmt"

// Client reads and writes named registers.
type Client interface {
	Read([]Register) (map[string]float64, error)
	Write([]Register, map[string]float64) error
}

// DataType defines how a value is laid out across 16-bit registers.
type DataType string

const (
	U16 DataType = "u16"
	U32 DataType = "u32"
	U64 DataType = "u64"
	I16 DataType = "i16"
	I32 DataType = "i32"
	I64 DataType = "i64"
	F32 DataType = "f32"
	F64 DataType = "f64"
)

type Access string

const (
	ReadOnly  Access = "read-only"
	WriteOnly Access = "write-only"
	ReadWrite Access = "read-write"
)

// Endian is the byte order of a multi-register value.
type Endian string

const (
	LittleEndian Endian = "little"
	BigEndian    Endian = "big"
)

// Register names a typed value at a holding register address.
type Register struct {
	Name       string   `mapstructure:"name" json:"name"`
	Address    uint16   `mapstructure:"address" json:"address"`
	DataType   DataType `mapstructure:"dataType" json:"dataType"`
	Access     Access   `mapstructure:"access" json:"access"`
	Endianness Endian   `mapstructure:"endianness" json:"endianness"`
}

func (r Register) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("register at %d has no name", r.Address)
	}
	if sizeOf(r.DataType) == 0 {
		return fmt.Errorf("register %s: unknown data type %q", r.Name, r.DataType)
	}
	return nil
}

// FilterRegisters returns the registers that permit access a.
func FilterRegisters(r []Register, a Access) []Register {
	filtered := make([]Register, 0, len(r))
	for _, reg := range r {
		if reg.Access == a || reg.Access == ReadWrite {
			filtered = append(filtered, reg)
		}
	}
	return filtered
}
