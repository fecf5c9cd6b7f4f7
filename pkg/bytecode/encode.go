package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/slowlysurly/p/datum"
)

// Magic identifies a serialized P bytecode file.
var Magic = [4]byte{'P', 'B', 'C', '0'}

// datumTag distinguishes the two Datum kinds in the wire format.
const (
	tagInteger byte = 0
	tagReal    byte = 1
)

// instrSize is the on-disk size of one instruction record:
// opcode(1) + level(1) + tag(1) + value(8), little-endian throughout,
// exactly as specified: "{opcode:u8, level:i8, addr: tagged Datum}
// little-endian, instructions packed back-to-back".
const instrSize = 1 + 1 + 1 + 8

// Serialize encodes a Program to the canonical binary wire format:
//
//	[magic:4]
//	[entry:u32]
//	[code_len:u32] [instr]...
//	[const_count:u32] ([len:u32][bytes])...
func (p *Program) Serialize() []byte {
	buf := make([]byte, 0, 4+4+4+len(p.Code)*instrSize+4)
	buf = append(buf, Magic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Entry))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Code)))
	for _, in := range p.Code {
		buf = append(buf, byte(in.Op), byte(in.Level))
		buf = appendDatum(buf, in.Addr)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Consts)))
	for _, s := range p.Consts {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

func appendDatum(buf []byte, d datum.Datum) []byte {
	if d.IsReal() {
		buf = append(buf, tagReal)
		bits := math.Float64bits(d.Float64())
		buf = binary.LittleEndian.AppendUint64(buf, bits)
		return buf
	}
	buf = append(buf, tagInteger)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.Int64()))
	return buf
}

// Deserialize decodes a Program from the canonical binary wire format
// produced by Serialize. It is the inverse required by testable property
// 6: disasm(assemble(code)) == canonical(code).
func Deserialize(data []byte) (*Program, error) {
	if len(data) < 4+4+4 {
		return nil, fmt.Errorf("bytecode: truncated header, got %d bytes", len(data))
	}
	if string(data[0:4]) != string(Magic[:]) {
		return nil, fmt.Errorf("bytecode: bad magic %q", data[0:4])
	}
	pos := 4
	entry := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	codeLen := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4

	p := &Program{Entry: entry}
	for i := 0; i < codeLen; i++ {
		if pos+instrSize > len(data) {
			return nil, fmt.Errorf("bytecode: truncated instruction %d", i)
		}
		op := OpCode(data[pos])
		level := int8(data[pos+1])
		tag := data[pos+2]
		bits := binary.LittleEndian.Uint64(data[pos+3 : pos+3+8])
		var d datum.Datum
		if tag == tagReal {
			d = datum.Real(math.Float64frombits(bits))
		} else {
			d = datum.Int(int64(bits))
		}
		p.Code = append(p.Code, Instr{Op: op, Level: level, Addr: d})
		pos += instrSize
	}

	if pos+4 > len(data) {
		return nil, fmt.Errorf("bytecode: truncated constant count")
	}
	constCount := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	for i := 0; i < constCount; i++ {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("bytecode: truncated constant %d length", i)
		}
		slen := int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
		if pos+slen > len(data) {
			return nil, fmt.Errorf("bytecode: truncated constant %d", i)
		}
		p.Consts = append(p.Consts, string(data[pos:pos+slen]))
		pos += slen
	}
	return p, nil
}
