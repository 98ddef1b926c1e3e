package vm

import "fmt"

// ---------------------------------------------------------------------------
// Error types
// ---------------------------------------------------------------------------

// MisuseError reports a host calling the wrong entry point for the
// dialogue's current state, e.g. SetSelectedOption while no options
// are pending, or with an index no delivered option carries. Misuse is
// always detected locally and never silently ignored; the dialogue
// state is left unchanged.
type MisuseError struct {
	Op     string
	State  ExecutionState
	Reason string // set when the call was wrong beyond the state alone
}

func (e *MisuseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s is not valid while the dialogue is %s", e.Op, e.State)
}

// RuntimeError reports a failure while executing instructions: an
// unregistered function, an arity mismatch, a wrong-typed operand, or
// stack underflow from a malformed program. It terminates only the
// current dialogue run; the Program and any other Dialogue instances
// are unaffected.
type RuntimeError struct {
	Node    string
	Message string
	Err     error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("runtime error in node %q: %s: %v", e.Node, e.Message, e.Err)
	}
	return fmt.Sprintf("runtime error in node %q: %s", e.Node, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
