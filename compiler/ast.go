package compiler

import "github.com/loomlang/loom/program"

// ---------------------------------------------------------------------------
// AST: syntax tree for dialogue scripts
// ---------------------------------------------------------------------------

// NodeDecl is one parsed node: headers, title, tags, and body.
type NodeDecl struct {
	Title   string
	Tags    []string
	Headers map[string]string
	Body    []Stmt
	File    string
	Pos     Position
}

// Stmt is the interface for body statements.
type Stmt interface {
	StmtPos() Position
	stmt() // marker method
}

// LinePart is either literal text or an inline expression in a
// dialogue line or custom command.
type LinePart struct {
	Text string // literal text, when Expr is nil
	Expr Expr   // inline {expression}
}

// LineStmt is a dialogue line: interleaved text and expressions, plus
// hashtag annotations. An explicit #line: hashtag becomes LineID.
type LineStmt struct {
	Parts    []LinePart
	Hashtags []string
	LineID   string
	Pos      Position
}

func (s *LineStmt) StmtPos() Position { return s.Pos }
func (s *LineStmt) stmt()             {}

// ShortcutOption is one -> option: its line, optional guard, and the
// indented body beneath it.
type ShortcutOption struct {
	Line      *LineStmt
	Condition Expr // nil when unguarded
	Body      []Stmt
	Pos       Position
}

// OptionsStmt is a run of consecutive shortcut options presented as one
// choice to the player.
type OptionsStmt struct {
	Options []*ShortcutOption
	Pos     Position
}

func (s *OptionsStmt) StmtPos() Position { return s.Pos }
func (s *OptionsStmt) stmt()             {}

// LineGroupMember is one => member of a line group.
type LineGroupMember struct {
	Line        *LineStmt
	Condition   Expr // nil when unguarded
	Priority    int
	HasPriority bool // true when a #priority: hashtag was given
	Body        []Stmt
	Pos         Position
}

// LineGroupStmt is a run of consecutive => members; exactly one member
// is selected by the saliency policy at run time.
type LineGroupStmt struct {
	Members []*LineGroupMember
	Pos     Position
}

func (s *LineGroupStmt) StmtPos() Position { return s.Pos }
func (s *LineGroupStmt) stmt()             {}

// IfClause is one branch of an if statement. Condition is nil for the
// else clause.
type IfClause struct {
	Condition Expr
	Body      []Stmt
	Pos       Position
}

// IfStmt is an <<if>>/<<elseif>>/<<else>>/<<endif>> chain.
type IfStmt struct {
	Clauses []IfClause
	Pos     Position
}

func (s *IfStmt) StmtPos() Position { return s.Pos }
func (s *IfStmt) stmt()             {}

// AssignOp is the operator of a set statement.
type AssignOp int

const (
	AssignSet AssignOp = iota // =
	AssignAdd                 // +=
	AssignSub                 // -=
	AssignMul                 // *=
	AssignDiv                 // /=
)

// SetStmt is <<set $var = expr>> or a compound assignment.
type SetStmt struct {
	Variable string
	Op       AssignOp
	Value    Expr
	Pos      Position
}

func (s *SetStmt) StmtPos() Position { return s.Pos }
func (s *SetStmt) stmt()             {}

// DeclareStmt is <<declare $var = expr>> with an optional "as type".
type DeclareStmt struct {
	Variable     string
	Value        Expr
	ExplicitType string // "", or "string"/"number"/"bool"
	Pos          Position
}

func (s *DeclareStmt) StmtPos() Position { return s.Pos }
func (s *DeclareStmt) stmt()             {}

// JumpStmt is <<jump Node>>.
type JumpStmt struct {
	Target string
	Pos    Position
}

func (s *JumpStmt) StmtPos() Position { return s.Pos }
func (s *JumpStmt) stmt()             {}

// StopStmt is <<stop>>.
type StopStmt struct {
	Pos Position
}

func (s *StopStmt) StmtPos() Position { return s.Pos }
func (s *StopStmt) stmt()             {}

// CommandStmt is a custom command: name plus text/expression parts.
// Command names are resolved by the host at run time, not validated at
// compile time.
type CommandStmt struct {
	Name  string
	Parts []LinePart
	Pos   Position
}

func (s *CommandStmt) StmtPos() Position { return s.Pos }
func (s *CommandStmt) stmt()             {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	ExprPos() Position
	expr() // marker method
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
	Pos   Position
}

func (e *NumberLit) ExprPos() Position { return e.Pos }
func (e *NumberLit) expr()             {}

// StringLit is a quoted string literal.
type StringLit struct {
	Value string
	Pos   Position
}

func (e *StringLit) ExprPos() Position { return e.Pos }
func (e *StringLit) expr()             {}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
	Pos   Position
}

func (e *BoolLit) ExprPos() Position { return e.Pos }
func (e *BoolLit) expr()             {}

// VariableExpr is a $name reference.
type VariableExpr struct {
	Name string
	Pos  Position
}

func (e *VariableExpr) ExprPos() Position { return e.Pos }
func (e *VariableExpr) expr()             {}

// UnaryExpr is -x or !x.
type UnaryExpr struct {
	Op      TokenType // TokenMinus or TokenBang
	Operand Expr
	Pos     Position
}

func (e *UnaryExpr) ExprPos() Position { return e.Pos }
func (e *UnaryExpr) expr()             {}

// BinaryExpr is a binary operation.
type BinaryExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
	Pos   Position
}

func (e *BinaryExpr) ExprPos() Position { return e.Pos }
func (e *BinaryExpr) expr()             {}

// CallExpr is a function call.
type CallExpr struct {
	Name string
	Args []Expr
	Pos  Position
}

func (e *CallExpr) ExprPos() Position { return e.Pos }
func (e *CallExpr) expr()             {}

// ConstantValue returns the literal Value of an expression, or false
// when the expression is not a plain literal. Used to distinguish
// ordinary declarations from smart variables.
func ConstantValue(e Expr) (program.Value, bool) {
	switch lit := e.(type) {
	case *NumberLit:
		return program.Number(lit.Value), true
	case *StringLit:
		return program.String(lit.Value), true
	case *BoolLit:
		return program.Bool(lit.Value), true
	case *UnaryExpr:
		if lit.Op == TokenMinus {
			if inner, ok := ConstantValue(lit.Operand); ok && inner.Type == program.TypeNumber {
				return program.Number(-inner.Num), true
			}
		}
		return program.Value{}, false
	default:
		return program.Value{}, false
	}
}
