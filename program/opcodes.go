package program

import "fmt"

// Opcode identifies an instruction variant.
// Opcodes are grouped into ranges by category.
type Opcode uint8

const (
	// ========================================================================
	// Stack and literals (0x00-0x0F)
	// ========================================================================

	OpPushString   Opcode = 0x00 // Push string literal: Str
	OpPushNumber   Opcode = 0x01 // Push number literal: Num
	OpPushBool     Opcode = 0x02 // Push bool literal: Bool
	OpPushVariable Opcode = 0x03 // Push variable value: Str = name
	OpStoreVariable Opcode = 0x04 // Pop and store to variable: Str = name
	OpPop          Opcode = 0x05 // Discard top of stack

	// ========================================================================
	// Arithmetic (0x10-0x1F)
	// ========================================================================

	OpAdd Opcode = 0x10 // Pop two, push sum (numbers) or concatenation (strings)
	OpSub Opcode = 0x11 // Pop two, push difference
	OpMul Opcode = 0x12 // Pop two, push product
	OpDiv Opcode = 0x13 // Pop two, push quotient
	OpMod Opcode = 0x14 // Pop two, push remainder
	OpNeg Opcode = 0x15 // Negate top of stack

	// ========================================================================
	// Comparison and logic (0x20-0x2F)
	// ========================================================================

	OpEq  Opcode = 0x20 // Pop two, push equality
	OpNe  Opcode = 0x21
	OpLt  Opcode = 0x22
	OpLe  Opcode = 0x23
	OpGt  Opcode = 0x24
	OpGe  Opcode = 0x25
	OpNot Opcode = 0x28 // Logical NOT of top
	OpAnd Opcode = 0x29 // Pop two bools, push conjunction
	OpOr  Opcode = 0x2A // Pop two bools, push disjunction

	// ========================================================================
	// Control flow (0x30-0x3F)
	// ========================================================================

	OpJump        Opcode = 0x30 // Jump to Label within the current node
	OpJumpIfFalse Opcode = 0x31 // Pop bool; jump to Label when false
	OpRunNode     Opcode = 0x32 // Tear down and start node Str
	OpStop        Opcode = 0x33 // End the current dialogue run

	// ========================================================================
	// Functions (0x40-0x4F)
	// ========================================================================

	OpCallFunc Opcode = 0x40 // Pop Count args, call library function Str, push result

	// ========================================================================
	// Content delivery (0x50-0x5F)
	// ========================================================================

	OpRunLine         Opcode = 0x50 // Deliver line Str (string id); pops Count substitutions
	OpRunCommand      Opcode = 0x51 // Deliver command Str (templated text); pops Count substitutions
	OpAddOption       Opcode = 0x52 // Buffer option: Str=string id, Label=destination, Count=substitutions; pops enabled bool when Bool is set
	OpShowOptions     Opcode = 0x53 // Flush buffered options to the host and wait for a selection
	OpAddCandidate    Opcode = 0x54 // Buffer saliency candidate: Str=string id, Label=destination, Count=priority; pops condition bool when Bool is set
	OpSelectCandidate Opcode = 0x55 // Resolve buffered candidates; jump to winner or to Label when none eligible
)

var opcodeNames = map[Opcode]string{
	OpPushString:      "push_string",
	OpPushNumber:      "push_number",
	OpPushBool:        "push_bool",
	OpPushVariable:    "push_variable",
	OpStoreVariable:   "store_variable",
	OpPop:             "pop",
	OpAdd:             "add",
	OpSub:             "sub",
	OpMul:             "mul",
	OpDiv:             "div",
	OpMod:             "mod",
	OpNeg:             "neg",
	OpEq:              "eq",
	OpNe:              "ne",
	OpLt:              "lt",
	OpLe:              "le",
	OpGt:              "gt",
	OpGe:              "ge",
	OpNot:             "not",
	OpAnd:             "and",
	OpOr:              "or",
	OpJump:            "jump",
	OpJumpIfFalse:     "jump_if_false",
	OpRunNode:         "run_node",
	OpStop:            "stop",
	OpCallFunc:        "call_func",
	OpRunLine:         "run_line",
	OpRunCommand:      "run_command",
	OpAddOption:       "add_option",
	OpShowOptions:     "show_options",
	OpAddCandidate:    "add_candidate",
	OpSelectCandidate: "select_candidate",
}

// String returns the mnemonic for the opcode.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02x)", uint8(op))
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// binaryOps covers the opcodes that pop two operands and push one.
var binaryOps = map[Opcode]bool{
	OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpMod: true,
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
	OpAnd: true, OpOr: true,
}

// IsBinaryOp reports whether op pops two operands and pushes one result.
func (op Opcode) IsBinaryOp() bool { return binaryOps[op] }
