package modbuscomm

import (
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		name string
		reg  Register
		val  float64
		want []byte
	}{
		{"u16 big", Register{DataType: U16, Endianness: BigEndian}, 1234, []byte{4, 210}},
		{"u16 little", Register{DataType: U16, Endianness: LittleEndian}, 1234, []byte{210, 4}},
		{"i16 big", Register{DataType: I16, Endianness: BigEndian}, -1234, []byte{251, 46}},
		{"u32 big", Register{DataType: U32, Endianness: BigEndian}, 1234, []byte{0, 0, 4, 210}},
		{"i32 little", Register{DataType: I32, Endianness: LittleEndian}, -1234, []byte{46, 251, 255, 255}},
		{"f32 big", Register{DataType: F32, Endianness: BigEndian}, -1234, []byte{196, 154, 64, 0}},
		{"u64 big", Register{DataType: U64, Endianness: BigEndian}, 1234, []byte{0, 0, 0, 0, 0, 0, 4, 210}},
		{"f64 big", Register{DataType: F64, Endianness: BigEndian}, -1234, []byte{192, 147, 72, 0, 0, 0, 0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.DeepEqual(t, encode(tc.val, tc.reg), tc.want)
		})
	}
}

func TestDecodeInvertsEncode(t *testing.T) {
	cases := []struct {
		dt  DataType
		val float64
	}{
		{U16, 65535},
		{I16, -32767},
		{U32, 4294967295},
		{I32, -2147483647},
		{F32, -1.5},
		{I64, -9007199254740991},
		{F64, math.Pi},
	}
	for _, tc := range cases {
		for _, e := range []Endian{BigEndian, LittleEndian} {
			reg := Register{DataType: tc.dt, Endianness: e}
			assert.Equal(t, decode(encode(tc.val, reg), reg), tc.val, "%s %s", tc.dt, e)
		}
	}
}

func TestFindIndexByName(t *testing.T) {
	regs := []Register{
		{Name: "voltage", Address: 0, DataType: U16},
		{Name: "frequency", Address: 1, DataType: U32},
	}
	i, err := findIndexByName(regs, "frequency")
	assert.NilError(t, err)
	assert.Equal(t, regs[i].Address, uint16(1))

	i, err = findIndexByName(regs, "current")
	assert.Assert(t, errors.Is(err, ErrRegisterNotFound))
	assert.Equal(t, i, -1)
}

func TestFilterRegisters(t *testing.T) {
	regs := []Register{
		{Name: "a", Access: ReadOnly},
		{Name: "b", Access: WriteOnly},
		{Name: "c", Access: ReadWrite},
	}
	got := FilterRegisters(regs, ReadOnly)
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].Name, "a")
	assert.Equal(t, got[1].Name, "c")
}

func TestRegisterValidate(t *testing.T) {
	assert.NilError(t, Register{Name: "v", DataType: F32}.Validate())
	assert.ErrorContains(t, Register{Name: "v", DataType: "f16"}.Validate(), "unknown data type")
	assert.ErrorContains(t, Register{DataType: U16}.Validate(), "no name")
}

func TestPoller(t *testing.T) {
	addr := os.Getenv("POWERSIM_TEST_MODBUS_ADDR")
	if addr == "" {
		t.Skip("POWERSIM_TEST_MODBUS_ADDR not set")
	}
	p := NewPoller(PollerConfig{Addr: addr, SlaveID: 1, Timeout: time.Second}, zerolog.Nop())
	_, err := p.Read([]Register{{Name: "grid", Address: 0, DataType: U16}})
	assert.NilError(t, err)
}
