package program

import (
	"strings"
	"testing"
)

// validProgram builds a small program that exercises most instruction
// kinds and passes validation.
func validProgram() *Program {
	p := New()
	p.Strings["line:t-Start-0"] = StringInfo{Text: "hello"}
	p.Nodes["Start"] = &Node{
		Name: "Start",
		Instructions: []Instruction{
			{Op: OpPushBool, Bool: true},
			{Op: OpJumpIfFalse, Label: "end"},
			{Op: OpRunLine, Str: "line:t-Start-0"},
			{Op: OpStop},
		},
		Labels: map[string]int{"end": 3},
	}
	return p
}

func TestValidateOK(t *testing.T) {
	if err := Validate(validProgram()); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Program)
		wantMsg string
	}{
		{
			name:    "nil program is refused",
			mutate:  nil,
			wantMsg: "nil program",
		},
		{
			name: "node name mismatch",
			mutate: func(p *Program) {
				p.Nodes["Start"].Name = "Other"
			},
			wantMsg: "registered under",
		},
		{
			name: "label out of range",
			mutate: func(p *Program) {
				p.Nodes["Start"].Labels["end"] = 99
			},
			wantMsg: "points at",
		},
		{
			name: "jump to undefined label",
			mutate: func(p *Program) {
				p.Nodes["Start"].Instructions[1].Label = "nowhere"
			},
			wantMsg: "undefined label",
		},
		{
			name: "unknown string id",
			mutate: func(p *Program) {
				p.Nodes["Start"].Instructions[2].Str = "line:missing"
			},
			wantMsg: "unknown string id",
		},
		{
			name: "run_node to missing node",
			mutate: func(p *Program) {
				p.Nodes["Start"].Instructions[3] = Instruction{Op: OpRunNode, Str: "Missing"}
			},
			wantMsg: "undefined node",
		},
		{
			name: "unknown opcode",
			mutate: func(p *Program) {
				p.Nodes["Start"].Instructions[0].Op = Opcode(0xFF)
			},
			wantMsg: "unknown opcode",
		},
		{
			name: "stack underflow",
			mutate: func(p *Program) {
				p.Nodes["Start"].Instructions[0] = Instruction{Op: OpPop}
			},
			wantMsg: "underflows",
		},
		{
			name: "declaration type mismatch",
			mutate: func(p *Program) {
				p.Declarations["gold"] = Declaration{Type: TypeNumber, Default: Bool(true)}
			},
			wantMsg: "declared number",
		},
		{
			name: "declaration without concrete type",
			mutate: func(p *Program) {
				p.Declarations["x"] = Declaration{Type: TypeAny, Default: Number(0)}
			},
			wantMsg: "no concrete type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p *Program
			if tt.mutate != nil {
				p = validProgram()
				tt.mutate(p)
			}
			err := Validate(p)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Validate() = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidateLabelAtNodeEnd(t *testing.T) {
	// A label equal to the instruction count marks "after the last
	// instruction" and is legal; generated end labels land there.
	p := validProgram()
	p.Nodes["Start"].Labels["after"] = len(p.Nodes["Start"].Instructions)
	if err := Validate(p); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateConflictingMergeDepths(t *testing.T) {
	// Two paths reach instruction 3 with different stack depths.
	p := New()
	p.Nodes["Start"] = &Node{
		Name: "Start",
		Instructions: []Instruction{
			{Op: OpPushBool, Bool: true},
			{Op: OpJumpIfFalse, Label: "merge"},
			{Op: OpPushNumber, Num: 1},
			{Op: OpStop},
		},
		Labels: map[string]int{"merge": 3},
	}
	err := Validate(p)
	if err == nil {
		t.Fatal("Validate() = nil, want conflicting-depth error")
	}
	if !strings.Contains(err.Error(), "stack depths") {
		t.Errorf("Validate() = %q, want a stack-depth conflict", err)
	}
}

func TestValidateOptionFlow(t *testing.T) {
	p := New()
	p.Strings["line:t-Start-0"] = StringInfo{Text: "choice"}
	p.Nodes["Start"] = &Node{
		Name: "Start",
		Instructions: []Instruction{
			{Op: OpAddOption, Str: "line:t-Start-0", Label: "opt0"},
			{Op: OpShowOptions},
			{Op: OpJump, Label: "end"},
			{Op: OpStop},
		},
		Labels: map[string]int{"opt0": 2, "end": 3},
	}
	if err := Validate(p); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateSmartBody(t *testing.T) {
	tests := []struct {
		name    string
		insts   []Instruction
		wantErr bool
	}{
		{
			name: "pure expression",
			insts: []Instruction{
				{Op: OpPushNumber, Num: 2},
				{Op: OpPushNumber, Num: 3},
				{Op: OpAdd},
			},
		},
		{
			name: "leaves two values",
			insts: []Instruction{
				{Op: OpPushNumber, Num: 1},
				{Op: OpPushNumber, Num: 2},
			},
			wantErr: true,
		},
		{
			name: "impure opcode",
			insts: []Instruction{
				{Op: OpPushNumber, Num: 1},
				{Op: OpStoreVariable, Str: "x"},
				{Op: OpPushNumber, Num: 1},
			},
			wantErr: true,
		},
		{
			name: "underflow",
			insts: []Instruction{
				{Op: OpAdd},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			p.SmartVariables["v"] = &Node{Name: "$v", Instructions: tt.insts}
			err := Validate(p)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
