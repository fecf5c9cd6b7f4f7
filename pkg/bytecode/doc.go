// Package bytecode defines the P-machine's instruction set: the OpCode
// enumeration, the fixed-shape Instr record (opcode, static level, tagged
// addr Datum), the ordered InstrVector / Program container the compiler
// builds, a disassembler, and the binary wire format used when a Program
// is persisted to or loaded from disk.
//
// # Instruction shape
//
// Unlike a variable-length byte-oriented ISA, every P-machine instruction
// is the same fixed triple (OpCode, level, addr); there is no separate
// operand-decoding step at execution time; the machine just reads
// code[pc].Addr directly. This mirrors the original PL/0-derived
// instruction shape.
//
// # Wire format
//
// Serialize/Deserialize implement a fixed byte layout: {opcode:u8,
// level:i8, addr: tagged Datum} little-endian, packed back-to-back,
// wrapped in a small header (magic, entry address, instruction count)
// and trailed by the string constant pool.
package bytecode
