package vm

import (
	"fmt"
	"math"

	"github.com/loomlang/loom/program"
)

// ---------------------------------------------------------------------------
// Value operations: coercion and comparison rules for the stack machine
// ---------------------------------------------------------------------------

// opAdd is numeric addition or string concatenation; mixed operand
// kinds are an error, there is no implicit coercion.
func opAdd(a, b program.Value) (program.Value, error) {
	switch {
	case a.Type == program.TypeNumber && b.Type == program.TypeNumber:
		return program.Number(a.Num + b.Num), nil
	case a.Type == program.TypeString && b.Type == program.TypeString:
		return program.String(a.Str + b.Str), nil
	default:
		return program.Value{}, fmt.Errorf("cannot add %s and %s", a.Type, b.Type)
	}
}

func opArith(op program.Opcode, a, b program.Value) (program.Value, error) {
	if a.Type != program.TypeNumber || b.Type != program.TypeNumber {
		return program.Value{}, fmt.Errorf("%s requires numbers, got %s and %s", op, a.Type, b.Type)
	}
	switch op {
	case program.OpSub:
		return program.Number(a.Num - b.Num), nil
	case program.OpMul:
		return program.Number(a.Num * b.Num), nil
	case program.OpDiv:
		if b.Num == 0 {
			return program.Value{}, fmt.Errorf("division by zero")
		}
		return program.Number(a.Num / b.Num), nil
	case program.OpMod:
		if b.Num == 0 {
			return program.Value{}, fmt.Errorf("modulo by zero")
		}
		return program.Number(math.Mod(a.Num, b.Num)), nil
	default:
		return program.Value{}, fmt.Errorf("not an arithmetic op: %s", op)
	}
}

// opCompare handles the four ordering operators; ordering is defined
// between two numbers or two strings only.
func opCompare(op program.Opcode, a, b program.Value) (program.Value, error) {
	var less, equal bool
	switch {
	case a.Type == program.TypeNumber && b.Type == program.TypeNumber:
		less, equal = a.Num < b.Num, a.Num == b.Num
	case a.Type == program.TypeString && b.Type == program.TypeString:
		less, equal = a.Str < b.Str, a.Str == b.Str
	default:
		return program.Value{}, fmt.Errorf("cannot order %s and %s", a.Type, b.Type)
	}
	switch op {
	case program.OpLt:
		return program.Bool(less), nil
	case program.OpLe:
		return program.Bool(less || equal), nil
	case program.OpGt:
		return program.Bool(!less && !equal), nil
	case program.OpGe:
		return program.Bool(!less), nil
	default:
		return program.Value{}, fmt.Errorf("not a comparison op: %s", op)
	}
}

func opLogic(op program.Opcode, a, b program.Value) (program.Value, error) {
	if a.Type != program.TypeBool || b.Type != program.TypeBool {
		return program.Value{}, fmt.Errorf("%s requires bools, got %s and %s", op, a.Type, b.Type)
	}
	if op == program.OpAnd {
		return program.Bool(a.Bool && b.Bool), nil
	}
	return program.Bool(a.Bool || b.Bool), nil
}

// applyBinary dispatches any two-operand opcode.
func applyBinary(op program.Opcode, a, b program.Value) (program.Value, error) {
	switch op {
	case program.OpAdd:
		return opAdd(a, b)
	case program.OpSub, program.OpMul, program.OpDiv, program.OpMod:
		return opArith(op, a, b)
	case program.OpLt, program.OpLe, program.OpGt, program.OpGe:
		return opCompare(op, a, b)
	case program.OpEq:
		return program.Bool(a.Equals(b)), nil
	case program.OpNe:
		return program.Bool(!a.Equals(b)), nil
	case program.OpAnd, program.OpOr:
		return opLogic(op, a, b)
	default:
		return program.Value{}, fmt.Errorf("not a binary op: %s", op)
	}
}
