package compiler

import (
	"fmt"

	"github.com/loomlang/loom/program"
)

// ---------------------------------------------------------------------------
// Static analyzer: symbol resolution and type checking
// ---------------------------------------------------------------------------

// FunctionSignature declares a callable function for the type checker.
// Command names are deliberately not declared or checked; the host
// resolves those at run time.
type FunctionSignature struct {
	Params  []program.ValueType
	Returns program.ValueType
}

// builtinSignatures covers the standard library the VM always provides.
func builtinSignatures() map[string]FunctionSignature {
	num := program.TypeNumber
	str := program.TypeString
	boolean := program.TypeBool
	any := program.TypeAny
	return map[string]FunctionSignature{
		"visited":       {Params: []program.ValueType{str}, Returns: boolean},
		"visited_count": {Params: []program.ValueType{str}, Returns: num},
		"random":        {Params: nil, Returns: num},
		"random_range":  {Params: []program.ValueType{num, num}, Returns: num},
		"dice":          {Params: []program.ValueType{num}, Returns: num},
		"round":         {Params: []program.ValueType{num}, Returns: num},
		"floor":         {Params: []program.ValueType{num}, Returns: num},
		"ceil":          {Params: []program.ValueType{num}, Returns: num},
		"min":           {Params: []program.ValueType{num, num}, Returns: num},
		"max":           {Params: []program.ValueType{num, num}, Returns: num},
		"string":        {Params: []program.ValueType{any}, Returns: str},
		"number":        {Params: []program.ValueType{any}, Returns: num},
		"bool":          {Params: []program.ValueType{any}, Returns: boolean},
	}
}

// symbol tracks one variable across the batch.
type symbol struct {
	typ      program.ValueType
	declared bool // explicit <<declare>>, as opposed to inferred from <<set>>
	smart    bool
	file     string
	pos      Position
}

// AnalysisResult is the annotated symbol information the code
// generator consumes.
type AnalysisResult struct {
	Variables      map[string]program.ValueType
	Declarations   map[string]program.Declaration
	SmartVariables map[string]Expr
	Functions      map[string]FunctionSignature
}

// Analyze resolves symbols and type-checks every node compiled
// together. extraFunctions declares host-provided functions beyond the
// standard library.
func Analyze(nodes []*NodeDecl, extraFunctions map[string]FunctionSignature) (*AnalysisResult, []Diagnostic) {
	a := &analysis{
		functions: builtinSignatures(),
		symbols:   make(map[string]*symbol),
		nodes:     make(map[string]*NodeDecl),
	}
	for name, sig := range extraFunctions {
		a.functions[name] = sig
	}

	a.collectNodes(nodes)
	a.collectDeclarations(nodes)
	a.inferFromAssignments(nodes)
	for _, node := range nodes {
		a.file = node.File
		a.checkStatements(node.Body)
	}

	result := &AnalysisResult{
		Variables:      make(map[string]program.ValueType),
		Declarations:   make(map[string]program.Declaration),
		SmartVariables: make(map[string]Expr),
		Functions:      a.functions,
	}
	for name, sym := range a.symbols {
		result.Variables[name] = sym.typ
	}
	for name, decl := range a.declarations {
		result.Declarations[name] = decl
	}
	for name, expr := range a.smartVariables {
		result.SmartVariables[name] = expr
	}
	return result, a.diags
}

type analysis struct {
	diags          []Diagnostic
	file           string
	functions      map[string]FunctionSignature
	symbols        map[string]*symbol
	nodes          map[string]*NodeDecl
	declarations   map[string]program.Declaration
	smartVariables map[string]Expr
}

func (a *analysis) errorf(category Category, pos Position, format string, args ...interface{}) {
	a.diags = append(a.diags, Diagnostic{
		Severity: SeverityError,
		Category: category,
		File:     a.file,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	})
}

// collectNodes registers node names and reports duplicates.
func (a *analysis) collectNodes(nodes []*NodeDecl) {
	for _, node := range nodes {
		a.file = node.File
		if existing, dup := a.nodes[node.Title]; dup {
			a.errorf(CategoryDuplicateNode, node.Pos,
				"duplicate node %q (first defined in %s)", node.Title, existing.File)
			continue
		}
		a.nodes[node.Title] = node
	}
}

// collectDeclarations walks every <<declare>> in the batch. A constant
// initializer yields a plain declaration; anything else marks a smart
// variable whose expression is re-evaluated on each read.
func (a *analysis) collectDeclarations(nodes []*NodeDecl) {
	a.declarations = make(map[string]program.Declaration)
	a.smartVariables = make(map[string]Expr)
	for _, node := range nodes {
		a.file = node.File
		a.walkDeclares(node.Body, node.File)
	}
}

func (a *analysis) walkDeclares(stmts []Stmt, file string) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *DeclareStmt:
			a.declareVariable(s, file)
		case *IfStmt:
			for _, clause := range s.Clauses {
				a.walkDeclares(clause.Body, file)
			}
		case *OptionsStmt:
			for _, opt := range s.Options {
				a.walkDeclares(opt.Body, file)
			}
		case *LineGroupStmt:
			for _, member := range s.Members {
				a.walkDeclares(member.Body, file)
			}
		}
	}
}

func (a *analysis) declareVariable(s *DeclareStmt, file string) {
	if existing, dup := a.symbols[s.Variable]; dup && existing.declared {
		a.errorf(CategoryType, s.Pos, "variable $%s already declared in %s", s.Variable, existing.file)
		return
	}

	explicit := program.TypeAny
	if s.ExplicitType != "" {
		t, ok := program.ParseValueType(s.ExplicitType)
		if !ok {
			a.errorf(CategoryType, s.Pos, "unknown type %q in declaration of $%s", s.ExplicitType, s.Variable)
			return
		}
		explicit = t
	}

	if value, constant := ConstantValue(s.Value); constant {
		if explicit != program.TypeAny && value.Type != explicit {
			a.errorf(CategoryType, s.Pos, "$%s declared as %s but initialized with %s",
				s.Variable, explicit, value.Type)
			return
		}
		a.symbols[s.Variable] = &symbol{typ: value.Type, declared: true, file: file, pos: s.Pos}
		a.declarations[s.Variable] = program.Declaration{Type: value.Type, Default: value}
		return
	}

	// Smart variable: type comes from its expression, checked in the
	// main pass once all symbols are known. Never constant-folded.
	a.symbols[s.Variable] = &symbol{typ: explicit, declared: true, smart: true, file: file, pos: s.Pos}
	a.smartVariables[s.Variable] = s.Value
}

// inferFromAssignments gives undeclared variables a type from their
// first plain assignment, so scripts without <<declare>> still check.
func (a *analysis) inferFromAssignments(nodes []*NodeDecl) {
	for _, node := range nodes {
		a.file = node.File
		a.walkSets(node.Body, func(s *SetStmt) {
			if _, known := a.symbols[s.Variable]; known || s.Op != AssignSet {
				return
			}
			if t := a.silentTypeOf(s.Value); t != program.TypeAny {
				a.symbols[s.Variable] = &symbol{typ: t, file: node.File, pos: s.Pos}
			}
		})
	}

	// Resolve smart-variable types now that plain symbols exist.
	for name, expr := range a.smartVariables {
		sym := a.symbols[name]
		t := a.silentTypeOf(expr)
		if sym.typ == program.TypeAny {
			sym.typ = t
		} else if t != program.TypeAny && t != sym.typ {
			a.errorf(CategoryType, expr.ExprPos(),
				"smart variable $%s declared as %s but its expression is %s", name, sym.typ, t)
		}
	}
}

func (a *analysis) walkSets(stmts []Stmt, fn func(*SetStmt)) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *SetStmt:
			fn(s)
		case *IfStmt:
			for _, clause := range s.Clauses {
				a.walkSets(clause.Body, fn)
			}
		case *OptionsStmt:
			for _, opt := range s.Options {
				a.walkSets(opt.Body, fn)
			}
		case *LineGroupStmt:
			for _, member := range s.Members {
				a.walkSets(member.Body, fn)
			}
		}
	}
}

// silentTypeOf types an expression without emitting diagnostics.
func (a *analysis) silentTypeOf(e Expr) program.ValueType {
	saved := a.diags
	t := a.typeOf(e)
	a.diags = saved
	return t
}

// ---------------------------------------------------------------------------
// Statement checking
// ---------------------------------------------------------------------------

func (a *analysis) checkStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *LineStmt:
			a.checkLine(s)
		case *CommandStmt:
			for _, part := range s.Parts {
				if part.Expr != nil {
					a.typeOf(part.Expr)
				}
			}
		case *SetStmt:
			a.checkSet(s)
		case *DeclareStmt:
			// Collected up front; nothing further to check here.
		case *JumpStmt:
			if _, ok := a.nodes[s.Target]; !ok {
				a.errorf(CategoryUnresolvedJump, s.Pos, "jump to undefined node %q", s.Target)
			}
		case *StopStmt:
		case *IfStmt:
			for _, clause := range s.Clauses {
				if clause.Condition != nil {
					a.requireBool(clause.Condition, "if condition")
				}
				a.checkStatements(clause.Body)
			}
		case *OptionsStmt:
			for _, opt := range s.Options {
				a.checkLine(opt.Line)
				if opt.Condition != nil {
					a.requireBool(opt.Condition, "option condition")
				}
				a.checkStatements(opt.Body)
			}
		case *LineGroupStmt:
			for _, member := range s.Members {
				a.checkLine(member.Line)
				if member.Condition != nil {
					a.requireBool(member.Condition, "line-group condition")
				}
				a.checkStatements(member.Body)
			}
		}
	}
}

func (a *analysis) checkLine(line *LineStmt) {
	for _, part := range line.Parts {
		if part.Expr != nil {
			a.typeOf(part.Expr) // any type is fine; substitution converts to text
		}
	}
}

func (a *analysis) checkSet(s *SetStmt) {
	sym, known := a.symbols[s.Variable]
	if !known {
		a.errorf(CategoryType, s.Pos, "cannot infer a type for $%s", s.Variable)
		return
	}
	if sym.smart {
		a.errorf(CategoryType, s.Pos, "cannot assign to smart variable $%s", s.Variable)
		return
	}
	valueType := a.typeOf(s.Value)
	switch s.Op {
	case AssignSet:
		if valueType != program.TypeAny && sym.typ != program.TypeAny && valueType != sym.typ {
			a.errorf(CategoryType, s.Pos, "cannot assign %s to $%s (%s)", valueType, s.Variable, sym.typ)
		}
	case AssignAdd:
		if sym.typ == program.TypeBool {
			a.errorf(CategoryType, s.Pos, "+= is not defined for bool $%s", s.Variable)
		} else if valueType != program.TypeAny && sym.typ != program.TypeAny && valueType != sym.typ {
			a.errorf(CategoryType, s.Pos, "cannot add %s to $%s (%s)", valueType, s.Variable, sym.typ)
		}
	default:
		if sym.typ != program.TypeNumber && sym.typ != program.TypeAny {
			a.errorf(CategoryType, s.Pos, "compound assignment requires a number, $%s is %s", s.Variable, sym.typ)
		}
		if valueType != program.TypeNumber && valueType != program.TypeAny {
			a.errorf(CategoryType, s.Pos, "compound assignment requires a number operand, got %s", valueType)
		}
	}
}

func (a *analysis) requireBool(e Expr, context string) {
	if t := a.typeOf(e); t != program.TypeBool && t != program.TypeAny {
		a.errorf(CategoryType, e.ExprPos(), "%s must be bool, got %s", context, t)
	}
}

// ---------------------------------------------------------------------------
// Expression typing
// ---------------------------------------------------------------------------

func (a *analysis) typeOf(e Expr) program.ValueType {
	switch expr := e.(type) {
	case *NumberLit:
		return program.TypeNumber
	case *StringLit:
		return program.TypeString
	case *BoolLit:
		return program.TypeBool
	case *VariableExpr:
		sym, ok := a.symbols[expr.Name]
		if !ok {
			a.errorf(CategoryType, expr.Pos, "undeclared variable $%s", expr.Name)
			return program.TypeAny
		}
		return sym.typ
	case *UnaryExpr:
		operand := a.typeOf(expr.Operand)
		if expr.Op == TokenMinus {
			if operand != program.TypeNumber && operand != program.TypeAny {
				a.errorf(CategoryType, expr.Pos, "unary - requires a number, got %s", operand)
			}
			return program.TypeNumber
		}
		if operand != program.TypeBool && operand != program.TypeAny {
			a.errorf(CategoryType, expr.Pos, "! requires bool, got %s", operand)
		}
		return program.TypeBool
	case *BinaryExpr:
		return a.typeOfBinary(expr)
	case *CallExpr:
		return a.typeOfCall(expr)
	default:
		return program.TypeAny
	}
}

func (a *analysis) typeOfBinary(expr *BinaryExpr) program.ValueType {
	left := a.typeOf(expr.Left)
	right := a.typeOf(expr.Right)

	merge := func() program.ValueType {
		if left != program.TypeAny {
			return left
		}
		return right
	}

	switch expr.Op {
	case TokenPlus:
		t := merge()
		if bothKnown(left, right) && left != right {
			a.errorf(CategoryType, expr.Pos, "+ requires matching operands, got %s and %s", left, right)
			return program.TypeAny
		}
		if t == program.TypeBool {
			a.errorf(CategoryType, expr.Pos, "+ is not defined for bool")
			return program.TypeAny
		}
		return t
	case TokenMinus, TokenStar, TokenSlash, TokenPercent:
		for _, t := range []program.ValueType{left, right} {
			if t != program.TypeNumber && t != program.TypeAny {
				a.errorf(CategoryType, expr.Pos, "%s requires numbers, got %s", expr.Op, t)
			}
		}
		return program.TypeNumber
	case TokenLt, TokenLe, TokenGt, TokenGe:
		if bothKnown(left, right) && left != right {
			a.errorf(CategoryType, expr.Pos, "cannot compare %s with %s", left, right)
		} else if t := merge(); t == program.TypeBool {
			a.errorf(CategoryType, expr.Pos, "ordering is not defined for bool")
		}
		return program.TypeBool
	case TokenEqEq, TokenNotEq:
		if bothKnown(left, right) && left != right {
			a.errorf(CategoryType, expr.Pos, "cannot compare %s with %s for equality", left, right)
		}
		return program.TypeBool
	case TokenAndAnd, TokenOrOr:
		for _, t := range []program.ValueType{left, right} {
			if t != program.TypeBool && t != program.TypeAny {
				a.errorf(CategoryType, expr.Pos, "%s requires bools, got %s", expr.Op, t)
			}
		}
		return program.TypeBool
	default:
		return program.TypeAny
	}
}

func (a *analysis) typeOfCall(expr *CallExpr) program.ValueType {
	sig, ok := a.functions[expr.Name]
	if !ok {
		a.errorf(CategoryType, expr.Pos, "unknown function %s()", expr.Name)
		for _, arg := range expr.Args {
			a.typeOf(arg)
		}
		return program.TypeAny
	}
	if len(expr.Args) != len(sig.Params) {
		a.errorf(CategoryType, expr.Pos, "%s() takes %d arguments, got %d",
			expr.Name, len(sig.Params), len(expr.Args))
	}
	for i, arg := range expr.Args {
		t := a.typeOf(arg)
		if i < len(sig.Params) && sig.Params[i] != program.TypeAny &&
			t != program.TypeAny && t != sig.Params[i] {
			a.errorf(CategoryType, arg.ExprPos(), "%s() argument %d must be %s, got %s",
				expr.Name, i+1, sig.Params[i], t)
		}
	}
	return sig.Returns
}

func bothKnown(left, right program.ValueType) bool {
	return left != program.TypeAny && right != program.TypeAny
}
