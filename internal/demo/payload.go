package demo

import (
	"fmt"

	"github.com/replica-dev/replica/pkg/wire"
)

// EntityInit is the immutable half of an entity, transmitted once in its
// Create event.
type EntityInit struct {
	Kind string
	Name string
}

// Encode serializes the init payload.
func (in EntityInit) Encode() []byte {
	w := wire.NewWriter()
	w.WriteString(in.Kind)
	w.WriteString(in.Name)
	return w.Bytes()
}

// DecodeEntityInit parses an init payload produced by Encode.
func DecodeEntityInit(data []byte) (EntityInit, error) {
	r := wire.NewReader(data)
	var in EntityInit
	var err error
	if in.Kind, err = r.ReadString(); err != nil {
		return EntityInit{}, fmt.Errorf("demo: decode entity init: %w", err)
	}
	if in.Name, err = r.ReadString(); err != nil {
		return EntityInit{}, fmt.Errorf("demo: decode entity init: %w", err)
	}
	return in, nil
}

// EntityState is an entity's replicated pose, replaced wholesale each step.
type EntityState struct {
	X float64
	Y float64
}

// Encode serializes the state payload.
func (st EntityState) Encode() []byte {
	w := wire.NewWriterWithCap(16)
	w.WriteFloat64(st.X)
	w.WriteFloat64(st.Y)
	return w.Bytes()
}

// DecodeEntityState parses a state payload produced by Encode.
func DecodeEntityState(data []byte) (EntityState, error) {
	r := wire.NewReader(data)
	var st EntityState
	var err error
	if st.X, err = r.ReadFloat64(); err != nil {
		return EntityState{}, fmt.Errorf("demo: decode entity state: %w", err)
	}
	if st.Y, err = r.ReadFloat64(); err != nil {
		return EntityState{}, fmt.Errorf("demo: decode entity state: %w", err)
	}
	return st, nil
}
