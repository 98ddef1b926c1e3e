package program

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func wireTestProgram() *Program {
	p := New()
	p.Strings["line:t-Start-0"] = StringInfo{
		Text: "You have {0} gold.", File: "t.loom", Node: "Start", Line: 3,
		SubstitutionCount: 1, Tags: []string{"mood:neutral"},
	}
	p.Nodes["Start"] = &Node{
		Name: "Start",
		Tags: []string{"chapter_one"},
		Instructions: []Instruction{
			{Op: OpPushVariable, Str: "gold"},
			{Op: OpRunLine, Str: "line:t-Start-0", Count: 1},
			{Op: OpStop},
		},
		Labels:     map[string]int{"end": 2},
		Headers:    map[string]string{"title": "Start", "tags": "chapter_one"},
		SourceFile: "t.loom",
		SourceLine: 1,
	}
	p.Declarations["gold"] = Declaration{Type: TypeNumber, Default: Number(50)}
	p.SmartVariables["rich"] = &Node{
		Name: "$rich",
		Instructions: []Instruction{
			{Op: OpPushVariable, Str: "gold"},
			{Op: OpPushNumber, Num: 100},
			{Op: OpGt},
		},
	}
	return p
}

func TestWireRoundTrip(t *testing.T) {
	original := wireTestProgram()

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !bytes.HasPrefix(data, WireMagic) {
		t.Errorf("serialized program does not start with magic %q", WireMagic)
	}

	loaded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(original, loaded) {
		t.Errorf("round trip changed the program:\n got %#v\nwant %#v", loaded, original)
	}
}

func TestWireDeterministic(t *testing.T) {
	p := wireTestProgram()
	first, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	second, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("canonical encoding produced different bytes for the same program")
	}
}

func TestMarshalRejectsInvalid(t *testing.T) {
	p := wireTestProgram()
	p.Nodes["Start"].Instructions[1].Str = "line:missing"
	if _, err := Marshal(p); err == nil {
		t.Fatal("Marshal() of invalid program succeeded, want error")
	}
}

func TestUnmarshalRejects(t *testing.T) {
	valid, err := Marshal(wireTestProgram())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", valid[:3]},
		{"bad magic", append([]byte("XXXX"), valid[4:]...)},
		{"future version", append(append([]byte{}, valid[:4]...), append([]byte{0x7F, 0xFF}, valid[6:]...)...)},
		{"garbage body", append(append([]byte{}, valid[:6]...), 0xDE, 0xAD, 0xBE, 0xEF)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			if err == nil {
				t.Fatal("Unmarshal() = nil, want error")
			}
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Errorf("Unmarshal() error = %T, want *LoadError", err)
			}
		})
	}
}

func TestUnmarshalRevalidates(t *testing.T) {
	// A structurally decodable body that violates program invariants
	// must be refused at load, not at run time.
	p := wireTestProgram()
	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	p.Nodes["Start"].Labels["end"] = 99
	body, err := cborEncMode.Marshal(p)
	if err != nil {
		t.Fatalf("cbor marshal error = %v", err)
	}
	corrupt := append(append([]byte{}, data[:6]...), body...)

	if _, err := Unmarshal(corrupt); err == nil {
		t.Fatal("Unmarshal() accepted a program with an out-of-range label")
	}
}
