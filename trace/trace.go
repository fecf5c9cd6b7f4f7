// Package trace records a P-machine run's memory mutations to a CBOR
// file for later inspection, by subscribing to machine.Machine's OnMutate
// hook.
//
// Uses a package-level canonical cbor.EncMode built once in init, and a
// Marshal/Unmarshal pair per record type.
package trace

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/slowlysurly/p/machine"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Event is one recorded mutation. The session ID is kept once, on Session.
type Event struct {
	PC    int `cbor:"pc"`
	Op    int `cbor:"op"`
	Addr  int `cbor:"addr"`
	Cycle int `cbor:"cycle"`
}

// Session accumulates Events for a single machine run and knows how to
// persist them.
type Session struct {
	ID     string  `cbor:"id"`
	Events []Event `cbor:"events"`
}

// NewSession creates an empty trace session with a fresh session ID.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Attach wires this session's recording into m, via m.OnMutate. Call
// before m.Run() or m.Step().
func (s *Session) Attach(m *machine.Machine) {
	m.OnMutate = func(mut machine.Mutation) {
		s.Events = append(s.Events, Event{
			PC:    mut.PC,
			Op:    int(mut.Op),
			Addr:  mut.Addr,
			Cycle: mut.Cycle,
		})
	}
}

// Marshal serializes the session to canonical CBOR bytes.
func (s *Session) Marshal() ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a session from CBOR bytes.
func Unmarshal(data []byte) (*Session, error) {
	var s Session
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("trace: unmarshal session: %w", err)
	}
	return &s, nil
}

// WriteFile marshals the session and writes it to path.
func (s *Session) WriteFile(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("trace: marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("trace: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads and deserializes a session from path.
func ReadFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trace: read %s: %w", path, err)
	}
	return Unmarshal(data)
}
