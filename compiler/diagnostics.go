package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Diagnostics: collected compile errors and warnings
// ---------------------------------------------------------------------------

// Severity ranks a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Category classifies a compile diagnostic.
type Category int

const (
	CategoryLexical Category = iota
	CategorySyntax
	CategoryType
	CategoryDuplicateNode
	CategoryUnresolvedJump
)

func (c Category) String() string {
	switch c {
	case CategoryLexical:
		return "lexical"
	case CategorySyntax:
		return "syntax"
	case CategoryType:
		return "type"
	case CategoryDuplicateNode:
		return "duplicate-node"
	case CategoryUnresolvedJump:
		return "unresolved-jump"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Diagnostic is one compile finding with its source position.
// Diagnostics are collected across the whole batch; a single bad
// statement or node never aborts compilation of the rest.
type Diagnostic struct {
	Severity Severity
	Category Category
	File     string
	Pos      Position
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Pos.Line, d.Pos.Column, d.Severity, d.Message)
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
