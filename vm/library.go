package vm

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/loomlang/loom/program"
)

// ---------------------------------------------------------------------------
// Function library
// ---------------------------------------------------------------------------

// visitedKeyPrefix namespaces the per-node completion counters that the
// visited/visited_count functions read. The counters live in ordinary
// variable storage so they persist, save, and load like any variable.
const visitedKeyPrefix = "Loom.Visited."

// Function is one callable library entry. Impl receives exactly Arity
// arguments, first argument first.
type Function struct {
	Arity int
	Impl  func(args []program.Value) (program.Value, error)
}

// Library maps function names to implementations. Expressions call into
// it through the call_func instruction.
type Library map[string]Function

// CommandHandler is a host callback for a named command. Args are the
// whitespace-split words after the command name, substitutions already
// applied. A non-nil error becomes a runtime error in the dialogue.
type CommandHandler func(args []string) error

// StandardLibrary builds the built-in functions. The storage and rng
// accessors are indirected so the library keeps working when the host
// swaps the variable store or the dialogue reseeds.
func StandardLibrary(getVar func(name string) (program.Value, bool), rng func() *rand.Rand) Library {
	visitCount := func(node string) float64 {
		if v, ok := getVar(visitedKeyPrefix + node); ok && v.Type == program.TypeNumber {
			return v.Num
		}
		return 0
	}

	return Library{
		"visited": {Arity: 1, Impl: func(args []program.Value) (program.Value, error) {
			node, err := args[0].AsString()
			if err != nil {
				return program.Value{}, err
			}
			return program.Bool(visitCount(node) > 0), nil
		}},
		"visited_count": {Arity: 1, Impl: func(args []program.Value) (program.Value, error) {
			node, err := args[0].AsString()
			if err != nil {
				return program.Value{}, err
			}
			return program.Number(visitCount(node)), nil
		}},
		"random": {Arity: 0, Impl: func(args []program.Value) (program.Value, error) {
			return program.Number(rng().Float64()), nil
		}},
		"random_range": {Arity: 2, Impl: func(args []program.Value) (program.Value, error) {
			lo, err := args[0].AsNumber()
			if err != nil {
				return program.Value{}, err
			}
			hi, err := args[1].AsNumber()
			if err != nil {
				return program.Value{}, err
			}
			a, b := int(lo), int(hi)
			if b < a {
				return program.Value{}, fmt.Errorf("random_range: %d > %d", a, b)
			}
			return program.Number(float64(a + rng().Intn(b-a+1))), nil
		}},
		"dice": {Arity: 1, Impl: func(args []program.Value) (program.Value, error) {
			sides, err := args[0].AsNumber()
			if err != nil {
				return program.Value{}, err
			}
			n := int(sides)
			if n < 1 {
				return program.Value{}, fmt.Errorf("dice: need at least 1 side, got %d", n)
			}
			return program.Number(float64(1 + rng().Intn(n))), nil
		}},
		"round": numericUnary(math.Round),
		"floor": numericUnary(math.Floor),
		"ceil":  numericUnary(math.Ceil),
		"min":   numericBinary(math.Min),
		"max":   numericBinary(math.Max),
		"string": {Arity: 1, Impl: func(args []program.Value) (program.Value, error) {
			return program.String(args[0].ConvertString()), nil
		}},
		"number": {Arity: 1, Impl: func(args []program.Value) (program.Value, error) {
			switch args[0].Type {
			case program.TypeNumber:
				return args[0], nil
			case program.TypeBool:
				if args[0].Bool {
					return program.Number(1), nil
				}
				return program.Number(0), nil
			case program.TypeString:
				n, err := strconv.ParseFloat(args[0].Str, 64)
				if err != nil {
					return program.Value{}, fmt.Errorf("number: cannot parse %q", args[0].Str)
				}
				return program.Number(n), nil
			default:
				return program.Value{}, fmt.Errorf("number: unsupported value")
			}
		}},
		"bool": {Arity: 1, Impl: func(args []program.Value) (program.Value, error) {
			switch args[0].Type {
			case program.TypeBool:
				return args[0], nil
			case program.TypeNumber:
				return program.Bool(args[0].Num != 0), nil
			case program.TypeString:
				b, err := strconv.ParseBool(args[0].Str)
				if err != nil {
					return program.Value{}, fmt.Errorf("bool: cannot parse %q", args[0].Str)
				}
				return program.Bool(b), nil
			default:
				return program.Value{}, fmt.Errorf("bool: unsupported value")
			}
		}},
	}
}

func numericUnary(f func(float64) float64) Function {
	return Function{Arity: 1, Impl: func(args []program.Value) (program.Value, error) {
		n, err := args[0].AsNumber()
		if err != nil {
			return program.Value{}, err
		}
		return program.Number(f(n)), nil
	}}
}

func numericBinary(f func(float64, float64) float64) Function {
	return Function{Arity: 2, Impl: func(args []program.Value) (program.Value, error) {
		a, err := args[0].AsNumber()
		if err != nil {
			return program.Value{}, err
		}
		b, err := args[1].AsNumber()
		if err != nil {
			return program.Value{}, err
		}
		return program.Number(f(a, b)), nil
	}}
}
