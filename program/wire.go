package program

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Wire format: versioned binary encoding of a Program
// ---------------------------------------------------------------------------

// WireVersion is the current program format version. Increment on
// incompatible changes; programs from a different major version are
// refused at load.
const WireVersion uint16 = 1

// WireMagic prefixes every serialized program: "LMPG" (Loom Program).
var WireMagic = []byte{'L', 'M', 'P', 'G'}

// LoadError describes a program that could not be loaded: malformed
// bytes, a version mismatch, or a decoded Program failing validation.
type LoadError struct {
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load program: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("load program: %s", e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// cborEncMode uses canonical encoding so the same Program always
// serializes to the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("program: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a Program: a 4-byte magic, a 2-byte big-endian
// version, then the canonical CBOR body.
func Marshal(p *Program) ([]byte, error) {
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("marshal program: %w", err)
	}
	body, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal program: %w", err)
	}
	out := make([]byte, 0, len(WireMagic)+2+len(body))
	out = append(out, WireMagic...)
	out = append(out, byte(WireVersion>>8), byte(WireVersion))
	out = append(out, body...)
	return out, nil
}

// Unmarshal deserializes a Program and re-validates every invariant.
// The returned Program is safe to hand to any number of dialogue runs.
func Unmarshal(data []byte) (*Program, error) {
	if len(data) < len(WireMagic)+2 {
		return nil, &LoadError{Message: "truncated header"}
	}
	if !bytes.Equal(data[:len(WireMagic)], WireMagic) {
		return nil, &LoadError{Message: "bad magic bytes"}
	}
	version := uint16(data[4])<<8 | uint16(data[5])
	if version != WireVersion {
		return nil, &LoadError{Message: fmt.Sprintf("unsupported version %d (supported: %d)", version, WireVersion)}
	}
	var p Program
	if err := cbor.Unmarshal(data[6:], &p); err != nil {
		return nil, &LoadError{Message: "malformed body", Err: err}
	}
	if p.Nodes == nil {
		p.Nodes = make(map[string]*Node)
	}
	if p.Strings == nil {
		p.Strings = make(StringTable)
	}
	if err := Validate(&p); err != nil {
		return nil, &LoadError{Message: "invariant check failed", Err: err}
	}
	return &p, nil
}
