package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/loomlang/loom/program"
)

// ---------------------------------------------------------------------------
// Codegen: syntax tree to instruction lists
// ---------------------------------------------------------------------------

// Label resolution is two-pass: emission references labels
// symbolically, and once a node's instruction count is final the label
// table is checked so every referenced label has a concrete index.
// Nothing is patched in place.

// CodeGenerator turns analyzed nodes into a Program.
type CodeGenerator struct {
	analysis *AnalysisResult
	strings  *stringTableBuilder
	diags    []Diagnostic

	// Per-node state
	file         string
	nodeName     string
	instructions []program.Instruction
	labels       map[string]int
	referenced   []labelRef
	labelCounter int
	lineCounter  int
}

type labelRef struct {
	label string
	pos   Position
}

// Generate compiles every parsed node against the analysis result and
// assembles a Program. The caller is expected to validate the result.
func Generate(nodes []*NodeDecl, analysis *AnalysisResult) (*program.Program, []Diagnostic) {
	g := &CodeGenerator{
		analysis: analysis,
		strings:  newStringTableBuilder(),
	}

	p := program.New()
	for _, decl := range nodes {
		if node := g.genNode(decl); node != nil {
			if _, dup := p.Nodes[node.Name]; dup {
				// Already reported by the analyzer; keep the first.
				continue
			}
			p.Nodes[node.Name] = node
		}
	}
	for name, value := range analysis.Declarations {
		p.Declarations[name] = value
	}
	for name, expr := range analysis.SmartVariables {
		p.SmartVariables[name] = g.genSmartBody(name, expr)
	}
	p.Strings = g.strings.table
	return p, g.diags
}

func (g *CodeGenerator) errorf(category Category, pos Position, format string, args ...interface{}) {
	g.diags = append(g.diags, Diagnostic{
		Severity: SeverityError,
		Category: category,
		File:     g.file,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	})
}

// ---------------------------------------------------------------------------
// Node generation
// ---------------------------------------------------------------------------

func (g *CodeGenerator) genNode(decl *NodeDecl) *program.Node {
	g.file = decl.File
	g.nodeName = decl.Title
	g.instructions = nil
	g.labels = make(map[string]int)
	g.referenced = nil
	g.labelCounter = 0
	g.lineCounter = 0

	g.genStatements(decl.Body)
	g.emit(program.Instruction{Op: program.OpStop})

	// Second pass: every symbolic label must now resolve to an index.
	for _, ref := range g.referenced {
		if _, ok := g.labels[ref.label]; !ok {
			g.errorf(CategoryUnresolvedJump, ref.pos, "internal: unresolved label %q", ref.label)
			return nil
		}
	}

	return &program.Node{
		Name:         decl.Title,
		Tags:         decl.Tags,
		Instructions: g.instructions,
		Labels:       g.labels,
		Headers:      decl.Headers,
		SourceFile:   decl.File,
		SourceLine:   decl.Pos.Line,
	}
}

// genSmartBody compiles a smart-variable expression into a standalone
// label-free instruction list.
func (g *CodeGenerator) genSmartBody(name string, expr Expr) *program.Node {
	g.instructions = nil
	g.labels = nil
	g.genExpr(expr)
	return &program.Node{
		Name:         "$" + name,
		Instructions: g.instructions,
	}
}

func (g *CodeGenerator) emit(inst program.Instruction) {
	g.instructions = append(g.instructions, inst)
}

// newLabel allocates a fresh symbolic label.
func (g *CodeGenerator) newLabel(hint string) string {
	label := fmt.Sprintf("L%d_%s", g.labelCounter, hint)
	g.labelCounter++
	return label
}

// markLabel binds a label to the next instruction index.
func (g *CodeGenerator) markLabel(label string) {
	g.labels[label] = len(g.instructions)
}

func (g *CodeGenerator) reference(label string, pos Position) string {
	g.referenced = append(g.referenced, labelRef{label: label, pos: pos})
	return label
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *CodeGenerator) genStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *LineStmt:
			g.genLine(s)
		case *CommandStmt:
			g.genCommand(s)
		case *SetStmt:
			g.genSet(s)
		case *DeclareStmt:
			// Declarations produce no instructions.
		case *JumpStmt:
			g.emit(program.Instruction{Op: program.OpRunNode, Str: s.Target})
		case *StopStmt:
			g.emit(program.Instruction{Op: program.OpStop})
		case *IfStmt:
			g.genIf(s)
		case *OptionsStmt:
			g.genOptions(s)
		case *LineGroupStmt:
			g.genLineGroup(s)
		}
	}
}

// buildTemplate renders line parts into display text with {0}-style
// substitution markers and returns the substitution expressions.
func buildTemplate(parts []LinePart) (string, []Expr) {
	var sb strings.Builder
	var exprs []Expr
	for _, part := range parts {
		if part.Expr != nil {
			fmt.Fprintf(&sb, "{%d}", len(exprs))
			exprs = append(exprs, part.Expr)
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String(), exprs
}

// internLine adds a line's text to the string table and returns its id.
// Substitution values are pushed immediately before the consuming
// instruction, in declaration order.
func (g *CodeGenerator) internLine(line *LineStmt, substitutions int, text string) string {
	id := line.LineID
	if id == "" {
		id = fmt.Sprintf("line:%s-%s-%d", fileStem(g.file), g.nodeName, g.lineCounter)
		g.lineCounter++
	}
	err := g.strings.add(id, program.StringInfo{
		Text:              text,
		File:              g.file,
		Node:              g.nodeName,
		Line:              line.Pos.Line,
		SubstitutionCount: substitutions,
		Tags:              line.Hashtags,
	})
	if err != nil {
		g.errorf(CategorySyntax, line.Pos, "%v", err)
	}
	return id
}

func (g *CodeGenerator) genLine(line *LineStmt) {
	text, exprs := buildTemplate(line.Parts)
	for _, expr := range exprs {
		g.genExpr(expr)
	}
	id := g.internLine(line, len(exprs), text)
	g.emit(program.Instruction{Op: program.OpRunLine, Str: id, Count: len(exprs)})
}

func (g *CodeGenerator) genCommand(cmd *CommandStmt) {
	text, exprs := buildTemplate(cmd.Parts)
	for _, expr := range exprs {
		g.genExpr(expr)
	}
	template := cmd.Name
	if text != "" {
		template += " " + text
	}
	g.emit(program.Instruction{Op: program.OpRunCommand, Str: template, Count: len(exprs)})
}

func (g *CodeGenerator) genSet(s *SetStmt) {
	if s.Op == AssignSet {
		g.genExpr(s.Value)
		g.emit(program.Instruction{Op: program.OpStoreVariable, Str: s.Variable})
		return
	}
	// Compound assignment expands to read-modify-write.
	ops := map[AssignOp]program.Opcode{
		AssignAdd: program.OpAdd,
		AssignSub: program.OpSub,
		AssignMul: program.OpMul,
		AssignDiv: program.OpDiv,
	}
	g.emit(program.Instruction{Op: program.OpPushVariable, Str: s.Variable})
	g.genExpr(s.Value)
	g.emit(program.Instruction{Op: ops[s.Op]})
	g.emit(program.Instruction{Op: program.OpStoreVariable, Str: s.Variable})
}

// genIf lowers an if/elseif/else chain to jump-if-false links with one
// label per branch and one label after the chain.
func (g *CodeGenerator) genIf(s *IfStmt) {
	endLabel := g.newLabel("endif")
	for i, clause := range s.Clauses {
		var skipLabel string
		if clause.Condition != nil {
			g.genExpr(clause.Condition)
			skipLabel = g.newLabel("else")
			g.emit(program.Instruction{
				Op:    program.OpJumpIfFalse,
				Label: g.reference(skipLabel, clause.Pos),
			})
		}
		g.genStatements(clause.Body)
		if i < len(s.Clauses)-1 {
			g.emit(program.Instruction{
				Op:    program.OpJump,
				Label: g.reference(endLabel, clause.Pos),
			})
		}
		if skipLabel != "" {
			g.markLabel(skipLabel)
		}
	}
	g.markLabel(endLabel)
}

// genOptions lowers shortcut options: per option evaluate its guard and
// buffer it, then one ShowOptions flush; each option body sits under
// its destination label and jumps to the common end.
func (g *CodeGenerator) genOptions(s *OptionsStmt) {
	endLabel := g.newLabel("options_end")
	destinations := make([]string, len(s.Options))

	for i, opt := range s.Options {
		destinations[i] = g.newLabel(fmt.Sprintf("option_%d", i))
		text, exprs := buildTemplate(opt.Line.Parts)
		for _, expr := range exprs {
			g.genExpr(expr)
		}
		hasCondition := opt.Condition != nil
		if hasCondition {
			g.genExpr(opt.Condition)
		}
		id := g.internLine(opt.Line, len(exprs), text)
		g.emit(program.Instruction{
			Op:    program.OpAddOption,
			Str:   id,
			Label: g.reference(destinations[i], opt.Pos),
			Count: len(exprs),
			Bool:  hasCondition,
		})
	}
	g.emit(program.Instruction{Op: program.OpShowOptions})

	for i, opt := range s.Options {
		g.markLabel(destinations[i])
		g.genStatements(opt.Body)
		g.emit(program.Instruction{
			Op:    program.OpJump,
			Label: g.reference(endLabel, opt.Pos),
		})
	}
	g.markLabel(endLabel)
}

// genLineGroup lowers => members to saliency candidates: buffer each
// with its priority, resolve once, and run the winner's body.
func (g *CodeGenerator) genLineGroup(s *LineGroupStmt) {
	endLabel := g.newLabel("group_end")
	destinations := make([]string, len(s.Members))
	ids := make([]string, len(s.Members))

	for i, member := range s.Members {
		destinations[i] = g.newLabel(fmt.Sprintf("member_%d", i))
		hasCondition := member.Condition != nil
		if hasCondition {
			g.genExpr(member.Condition)
		}
		priority := member.Priority
		if !member.HasPriority {
			priority = conditionComplexity(member.Condition)
		}
		text, exprs := buildTemplate(member.Line.Parts)
		ids[i] = g.internLine(member.Line, len(exprs), text)
		g.emit(program.Instruction{
			Op:    program.OpAddCandidate,
			Str:   ids[i],
			Label: g.reference(destinations[i], member.Pos),
			Count: priority,
			Bool:  hasCondition,
		})
	}
	g.emit(program.Instruction{
		Op:    program.OpSelectCandidate,
		Label: g.reference(endLabel, s.Pos),
	})

	// Member bodies: the winning candidate's line runs here, with its
	// substitutions evaluated at delivery time, not at buffering time.
	for i, member := range s.Members {
		g.markLabel(destinations[i])
		_, exprs := buildTemplate(member.Line.Parts)
		for _, expr := range exprs {
			g.genExpr(expr)
		}
		g.emit(program.Instruction{Op: program.OpRunLine, Str: ids[i], Count: len(exprs)})
		g.genStatements(member.Body)
		g.emit(program.Instruction{
			Op:    program.OpJump,
			Label: g.reference(endLabel, member.Pos),
		})
	}
	g.markLabel(endLabel)
}

// conditionComplexity is the default saliency priority: unguarded
// members score 0, guarded members score 1 plus one per conjunction.
func conditionComplexity(e Expr) int {
	if e == nil {
		return 0
	}
	score := 1
	var count func(Expr)
	count = func(e Expr) {
		if b, ok := e.(*BinaryExpr); ok {
			if b.Op == TokenAndAnd {
				score++
			}
			count(b.Left)
			count(b.Right)
		}
	}
	count(e)
	return score
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOpcodes = map[TokenType]program.Opcode{
	TokenPlus:    program.OpAdd,
	TokenMinus:   program.OpSub,
	TokenStar:    program.OpMul,
	TokenSlash:   program.OpDiv,
	TokenPercent: program.OpMod,
	TokenEqEq:    program.OpEq,
	TokenNotEq:   program.OpNe,
	TokenLt:      program.OpLt,
	TokenLe:      program.OpLe,
	TokenGt:      program.OpGt,
	TokenGe:      program.OpGe,
	TokenAndAnd:  program.OpAnd,
	TokenOrOr:    program.OpOr,
}

func (g *CodeGenerator) genExpr(e Expr) {
	switch expr := e.(type) {
	case *NumberLit:
		g.emit(program.Instruction{Op: program.OpPushNumber, Num: expr.Value})
	case *StringLit:
		g.emit(program.Instruction{Op: program.OpPushString, Str: expr.Value})
	case *BoolLit:
		g.emit(program.Instruction{Op: program.OpPushBool, Bool: expr.Value})
	case *VariableExpr:
		g.emit(program.Instruction{Op: program.OpPushVariable, Str: expr.Name})
	case *UnaryExpr:
		g.genExpr(expr.Operand)
		if expr.Op == TokenMinus {
			g.emit(program.Instruction{Op: program.OpNeg})
		} else {
			g.emit(program.Instruction{Op: program.OpNot})
		}
	case *BinaryExpr:
		g.genExpr(expr.Left)
		g.genExpr(expr.Right)
		g.emit(program.Instruction{Op: binaryOpcodes[expr.Op]})
	case *CallExpr:
		for _, arg := range expr.Args {
			g.genExpr(arg)
		}
		g.emit(program.Instruction{Op: program.OpCallFunc, Str: expr.Name, Count: len(expr.Args)})
	}
}

// ---------------------------------------------------------------------------
// String table
// ---------------------------------------------------------------------------

type stringTableBuilder struct {
	table program.StringTable
}

func newStringTableBuilder() *stringTableBuilder {
	return &stringTableBuilder{table: make(program.StringTable)}
}

func (b *stringTableBuilder) add(id string, info program.StringInfo) error {
	if _, exists := b.table[id]; exists {
		return fmt.Errorf("duplicate line id %q", id)
	}
	b.table[id] = info
	return nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
