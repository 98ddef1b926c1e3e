package vm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/loomlang/loom/program"
)

func testLibrary(storage VariableStorage) Library {
	rng := rand.New(rand.NewSource(42))
	return StandardLibrary(storage.GetValue, func() *rand.Rand { return rng })
}

func call(t *testing.T, lib Library, name string, args ...program.Value) program.Value {
	t.Helper()
	fn, ok := lib[name]
	if !ok {
		t.Fatalf("function %q not in library", name)
	}
	if fn.Arity != len(args) {
		t.Fatalf("%s arity = %d, test passed %d args", name, fn.Arity, len(args))
	}
	result, err := fn.Impl(args)
	if err != nil {
		t.Fatalf("%s() error = %v", name, err)
	}
	return result
}

func TestVisitedFunctions(t *testing.T) {
	storage := NewMemoryVariableStorage()
	lib := testLibrary(storage)

	if got := call(t, lib, "visited", program.String("Intro")); got.Bool {
		t.Error("visited() = true for a never-run node")
	}
	if got := call(t, lib, "visited_count", program.String("Intro")); got.Num != 0 {
		t.Errorf("visited_count() = %v, want 0", got.Num)
	}

	storage.SetValue(visitedKeyPrefix+"Intro", program.Number(3))
	if got := call(t, lib, "visited", program.String("Intro")); !got.Bool {
		t.Error("visited() = false after completions")
	}
	if got := call(t, lib, "visited_count", program.String("Intro")); got.Num != 3 {
		t.Errorf("visited_count() = %v, want 3", got.Num)
	}
}

func TestRandomFunctions(t *testing.T) {
	lib := testLibrary(NewMemoryVariableStorage())

	for i := 0; i < 50; i++ {
		if got := call(t, lib, "random"); got.Num < 0 || got.Num >= 1 {
			t.Fatalf("random() = %v, want [0,1)", got.Num)
		}
		if got := call(t, lib, "random_range", program.Number(3), program.Number(5)); got.Num < 3 || got.Num > 5 {
			t.Fatalf("random_range(3,5) = %v, out of range", got.Num)
		}
		got := call(t, lib, "dice", program.Number(6))
		if got.Num < 1 || got.Num > 6 || got.Num != math.Trunc(got.Num) {
			t.Fatalf("dice(6) = %v, want integer in [1,6]", got.Num)
		}
	}

	if _, err := lib["dice"].Impl([]program.Value{program.Number(0)}); err == nil {
		t.Error("dice(0) succeeded, want error")
	}
	if _, err := lib["random_range"].Impl([]program.Value{program.Number(5), program.Number(3)}); err == nil {
		t.Error("random_range(5,3) succeeded, want error")
	}
}

func TestMathFunctions(t *testing.T) {
	lib := testLibrary(NewMemoryVariableStorage())
	tests := []struct {
		name string
		args []program.Value
		want float64
	}{
		{"round", []program.Value{program.Number(2.5)}, 3},
		{"round", []program.Value{program.Number(2.4)}, 2},
		{"floor", []program.Value{program.Number(2.9)}, 2},
		{"ceil", []program.Value{program.Number(2.1)}, 3},
		{"min", []program.Value{program.Number(2), program.Number(5)}, 2},
		{"max", []program.Value{program.Number(2), program.Number(5)}, 5},
	}
	for _, tt := range tests {
		if got := call(t, lib, tt.name, tt.args...); got.Num != tt.want {
			t.Errorf("%s(%v) = %v, want %v", tt.name, tt.args, got.Num, tt.want)
		}
	}
}

func TestConversionFunctions(t *testing.T) {
	lib := testLibrary(NewMemoryVariableStorage())

	if got := call(t, lib, "string", program.Number(3.5)); got.Str != "3.5" {
		t.Errorf("string(3.5) = %q, want 3.5", got.Str)
	}
	if got := call(t, lib, "string", program.Bool(true)); got.Str != "true" {
		t.Errorf("string(true) = %q, want true", got.Str)
	}
	if got := call(t, lib, "number", program.String("42")); got.Num != 42 {
		t.Errorf("number(\"42\") = %v, want 42", got.Num)
	}
	if got := call(t, lib, "number", program.Bool(true)); got.Num != 1 {
		t.Errorf("number(true) = %v, want 1", got.Num)
	}
	if got := call(t, lib, "bool", program.Number(0)); got.Bool {
		t.Error("bool(0) = true, want false")
	}
	if got := call(t, lib, "bool", program.String("true")); !got.Bool {
		t.Error("bool(\"true\") = false, want true")
	}

	if _, err := lib["number"].Impl([]program.Value{program.String("many")}); err == nil {
		t.Error("number(\"many\") succeeded, want error")
	}
	if _, err := lib["bool"].Impl([]program.Value{program.String("maybe")}); err == nil {
		t.Error("bool(\"maybe\") succeeded, want error")
	}
}

func TestWrongArgumentKind(t *testing.T) {
	lib := testLibrary(NewMemoryVariableStorage())
	if _, err := lib["floor"].Impl([]program.Value{program.String("2")}); err == nil {
		t.Error("floor(string) succeeded, want error")
	}
	if _, err := lib["visited"].Impl([]program.Value{program.Number(1)}); err == nil {
		t.Error("visited(number) succeeded, want error")
	}
}
