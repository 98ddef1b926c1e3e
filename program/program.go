// Package program defines the compiled, immutable representation of a
// dialogue script: nodes of instructions, the shared string table, and
// variable declarations. A Program is produced once by the compiler (or
// deserialized from the wire format) and then shared read-only across
// any number of dialogue runs.
package program

import "fmt"

// Instruction is one tagged-variant instruction. The meaning of the
// operand fields depends on Op; unused fields stay at their zero value
// and are omitted from the wire encoding.
type Instruction struct {
	Op    Opcode  `cbor:"1,keyasint"`
	Str   string  `cbor:"2,keyasint,omitempty"` // literal, name, string id, or command text
	Num   float64 `cbor:"3,keyasint,omitempty"` // number literal
	Bool  bool    `cbor:"4,keyasint,omitempty"` // bool literal, or "pops a condition" flag
	Count int     `cbor:"5,keyasint,omitempty"` // argument/substitution count, or priority
	Label string  `cbor:"6,keyasint,omitempty"` // jump destination label
}

// Node is one named dialogue unit: an ordered instruction list plus the
// label table produced by the code generator.
type Node struct {
	Name         string            `cbor:"1,keyasint"`
	Tags         []string          `cbor:"2,keyasint,omitempty"`
	Instructions []Instruction     `cbor:"3,keyasint"`
	Labels       map[string]int    `cbor:"4,keyasint,omitempty"` // label -> instruction index
	Headers      map[string]string `cbor:"5,keyasint,omitempty"`
	SourceFile   string            `cbor:"6,keyasint,omitempty"`
	SourceLine   int               `cbor:"7,keyasint,omitempty"`
}

// StringInfo is one string-table entry: the display text plus the
// source metadata needed by localization tooling.
type StringInfo struct {
	Text              string   `cbor:"1,keyasint"`
	File              string   `cbor:"2,keyasint,omitempty"`
	Node              string   `cbor:"3,keyasint,omitempty"`
	Line              int      `cbor:"4,keyasint,omitempty"`
	SubstitutionCount int      `cbor:"5,keyasint,omitempty"`
	Tags              []string `cbor:"6,keyasint,omitempty"`
}

// StringTable maps string ids (e.g. "line:intro-Start-0") to entries.
type StringTable map[string]StringInfo

// Declaration records an explicitly declared variable: its type and the
// initial value a fresh variable store should report for it.
type Declaration struct {
	Type    ValueType `cbor:"1,keyasint"`
	Default Value     `cbor:"2,keyasint"`
}

// Program is the compiled form of one or more source files.
// It is immutable after assembly.
type Program struct {
	Nodes        map[string]*Node       `cbor:"1,keyasint"`
	Strings      StringTable            `cbor:"2,keyasint"`
	Declarations map[string]Declaration `cbor:"3,keyasint,omitempty"`

	// SmartVariables maps a variable name to the compiled body of its
	// defining expression. The body is a label-free instruction list
	// that leaves exactly one value on the stack; it is re-evaluated on
	// every read and never cached.
	SmartVariables map[string]*Node `cbor:"4,keyasint,omitempty"`
}

// New returns an empty Program with all maps allocated.
func New() *Program {
	return &Program{
		Nodes:          make(map[string]*Node),
		Strings:        make(StringTable),
		Declarations:   make(map[string]Declaration),
		SmartVariables: make(map[string]*Node),
	}
}

// Node returns the named node, or nil.
func (p *Program) Node(name string) *Node {
	return p.Nodes[name]
}

// NodeNames returns the names of all nodes in the program.
func (p *Program) NodeNames() []string {
	names := make([]string, 0, len(p.Nodes))
	for name := range p.Nodes {
		names = append(names, name)
	}
	return names
}

// Combine merges several compiled programs into one. Duplicate node
// names, string ids, or variable declarations are errors: combining is
// meant for disjoint compilation outputs.
func Combine(programs ...*Program) (*Program, error) {
	combined := New()
	for _, p := range programs {
		if p == nil {
			continue
		}
		for name, node := range p.Nodes {
			if _, exists := combined.Nodes[name]; exists {
				return nil, fmt.Errorf("combine: duplicate node %q", name)
			}
			combined.Nodes[name] = node
		}
		for id, info := range p.Strings {
			if _, exists := combined.Strings[id]; exists {
				return nil, fmt.Errorf("combine: duplicate string id %q", id)
			}
			combined.Strings[id] = info
		}
		for name, decl := range p.Declarations {
			if _, exists := combined.Declarations[name]; exists {
				return nil, fmt.Errorf("combine: duplicate declaration %q", name)
			}
			combined.Declarations[name] = decl
		}
		for name, body := range p.SmartVariables {
			if _, exists := combined.SmartVariables[name]; exists {
				return nil, fmt.Errorf("combine: duplicate smart variable %q", name)
			}
			combined.SmartVariables[name] = body
		}
	}
	return combined, nil
}

// String returns a short summary, useful in logs.
func (p *Program) String() string {
	return fmt.Sprintf("Program(%d nodes, %d strings, %d declarations)",
		len(p.Nodes), len(p.Strings), len(p.Declarations))
}
