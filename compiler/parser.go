package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over the modal token stream
// ---------------------------------------------------------------------------

// The parser never aborts a batch on one error: a bad statement records
// a diagnostic and recovery skips to the next line, a bad node skips to
// the next === terminator.

// Parser parses one source file into node syntax trees.
type Parser struct {
	file   string
	tokens []Token
	pos    int
	diags  []Diagnostic
}

// NewParser creates a parser for the given named source text.
func NewParser(name, source string) *Parser {
	return &Parser{
		file:   name,
		tokens: Tokenize(source),
	}
}

// ParseFile parses a whole source file and returns its nodes plus any
// diagnostics.
func ParseFile(name, source string) ([]*NodeDecl, []Diagnostic) {
	p := NewParser(name, source)
	nodes := p.Parse()
	return nodes, p.Diagnostics()
}

// Diagnostics returns accumulated parse diagnostics.
func (p *Parser) Diagnostics() []Diagnostic { return p.diags }

func (p *Parser) cur() Token { return p.tokens[p.pos] }

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) curIs(t TokenType) bool  { return p.cur().Type == t }
func (p *Parser) peekIs(t TokenType) bool { return p.peek().Type == t }

func (p *Parser) advance() Token {
	tok := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

// expect consumes a token of the given type or records a diagnostic.
func (p *Parser) expect(t TokenType) (Token, bool) {
	if p.curIs(t) {
		return p.advance(), true
	}
	p.errorf(CategorySyntax, p.cur().Pos, "expected %s, got %s", t, p.cur().Type)
	return p.cur(), false
}

func (p *Parser) errorf(category Category, pos Position, format string, args ...interface{}) {
	p.diags = append(p.diags, Diagnostic{
		Severity: SeverityError,
		Category: category,
		File:     p.file,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	})
}

// syncToLineEnd skips to just past the next newline boundary.
func (p *Parser) syncToLineEnd() {
	for !p.curIs(TokenEOF) && !p.curIs(TokenNewline) && !p.curIs(TokenNodeEnd) {
		p.advance()
	}
	if p.curIs(TokenNewline) {
		p.advance()
	}
}

// syncToNodeEnd skips to just past the next === terminator.
func (p *Parser) syncToNodeEnd() {
	for !p.curIs(TokenEOF) && !p.curIs(TokenNodeEnd) {
		p.advance()
	}
	if p.curIs(TokenNodeEnd) {
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Nodes and headers
// ---------------------------------------------------------------------------

// Parse parses every node in the file.
func (p *Parser) Parse() []*NodeDecl {
	var nodes []*NodeDecl
	for !p.curIs(TokenEOF) {
		if p.curIs(TokenError) {
			p.errorf(CategoryLexical, p.cur().Pos, "%s", p.cur().Literal)
			p.advance()
			continue
		}
		if node := p.parseNode(); node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func (p *Parser) parseNode() *NodeDecl {
	node := &NodeDecl{
		Headers: make(map[string]string),
		File:    p.file,
		Pos:     p.cur().Pos,
	}

	// Header block.
	for {
		switch p.cur().Type {
		case TokenHeaderKey:
			key := p.advance()
			value, ok := p.expect(TokenHeaderValue)
			if !ok {
				p.syncToLineEnd()
				continue
			}
			switch key.Literal {
			case "title":
				node.Title = value.Literal
			case "tags":
				node.Tags = strings.Fields(value.Literal)
			}
			if _, dup := node.Headers[key.Literal]; dup {
				p.errorf(CategorySyntax, key.Pos, "duplicate header %q", key.Literal)
			}
			node.Headers[key.Literal] = value.Literal
		case TokenBodyStart:
			p.advance()
			if node.Title == "" {
				p.errorf(CategorySyntax, node.Pos, "node has no title header")
				p.syncToNodeEnd()
				return nil
			}
			node.Body = p.parseStatements(nil)
			if _, ok := p.expect(TokenNodeEnd); !ok {
				p.syncToNodeEnd()
			}
			return node
		case TokenError:
			p.errorf(CategoryLexical, p.cur().Pos, "%s", p.cur().Literal)
			p.advance()
		case TokenEOF:
			if node.Title != "" || len(node.Headers) > 0 {
				p.errorf(CategorySyntax, p.cur().Pos, "unexpected end of file in node header")
			}
			return nil
		default:
			p.errorf(CategorySyntax, p.cur().Pos, "unexpected %s in node header", p.cur().Type)
			p.syncToNodeEnd()
			return nil
		}
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseStatements parses body statements until a block boundary
// (DEDENT, ===, EOF) or until stop reports a keyword boundary such as
// <<elseif>>.
func (p *Parser) parseStatements(stop func() bool) []Stmt {
	var stmts []Stmt
	for {
		if p.curIs(TokenEOF) || p.curIs(TokenNodeEnd) || p.curIs(TokenDedent) {
			return stmts
		}
		if stop != nil && stop() {
			return stmts
		}
		switch p.cur().Type {
		case TokenNewline:
			p.advance()
		case TokenError:
			p.errorf(CategoryLexical, p.cur().Pos, "%s", p.cur().Literal)
			p.advance()
		case TokenIndent:
			// Indentation is only structural after options and group
			// members; elsewhere it is cosmetic and the block is
			// flattened into the current one.
			p.advance()
			stmts = append(stmts, p.parseStatements(stop)...)
			if p.curIs(TokenDedent) {
				p.advance()
			}
		case TokenArrow:
			stmts = append(stmts, p.parseOptions())
		case TokenFatArrow:
			stmts = append(stmts, p.parseLineGroup())
		case TokenCmdStart:
			if stmt := p.parseCommandStatement(); stmt != nil {
				stmts = append(stmts, stmt)
			}
		case TokenText, TokenExprStart:
			if line := p.parseLine(); line != nil {
				stmts = append(stmts, line)
			}
		default:
			p.errorf(CategorySyntax, p.cur().Pos, "unexpected %s", p.cur().Type)
			p.syncToLineEnd()
		}
	}
}

// parseLine parses a dialogue line up to its newline.
func (p *Parser) parseLine() *LineStmt {
	line := &LineStmt{Pos: p.cur().Pos}
	for {
		switch p.cur().Type {
		case TokenText:
			line.Parts = append(line.Parts, LinePart{Text: p.advance().Literal})
		case TokenExprStart:
			p.advance()
			expr := p.parseExpression()
			p.expect(TokenExprEnd)
			if expr != nil {
				line.Parts = append(line.Parts, LinePart{Expr: expr})
			}
		case TokenHashtag:
			tag := p.advance().Literal
			if strings.HasPrefix(tag, "line:") {
				line.LineID = tag
			} else {
				line.Hashtags = append(line.Hashtags, tag)
			}
		case TokenNewline, TokenEOF, TokenNodeEnd:
			if p.curIs(TokenNewline) {
				p.advance()
			}
			trimLineParts(line)
			return line
		default:
			p.errorf(CategorySyntax, p.cur().Pos, "unexpected %s in dialogue line", p.cur().Type)
			p.syncToLineEnd()
			trimLineParts(line)
			return line
		}
	}
}

// trimLineParts strips leading whitespace from the first text part and
// trailing whitespace from the last, preserving interior spacing.
func trimLineParts(line *LineStmt) {
	line.Parts = trimParts(line.Parts)
}

// trimParts trims the outer edges of a part list and drops edge parts
// that become empty; interior spacing is untouched.
func trimParts(parts []LinePart) []LinePart {
	if len(parts) == 0 {
		return parts
	}
	if first := &parts[0]; first.Expr == nil {
		first.Text = strings.TrimLeft(first.Text, " \t")
		if first.Text == "" {
			parts = parts[1:]
		}
	}
	if len(parts) == 0 {
		return parts
	}
	if last := &parts[len(parts)-1]; last.Expr == nil {
		last.Text = strings.TrimRight(last.Text, " \t")
		if last.Text == "" {
			parts = parts[:len(parts)-1]
		}
	}
	return parts
}

// parseGuardedLine parses an option or group-member line, which may
// carry a trailing <<if expr>> guard before its hashtags.
func (p *Parser) parseGuardedLine() (*LineStmt, Expr) {
	line := &LineStmt{Pos: p.cur().Pos}
	var condition Expr
	for {
		switch p.cur().Type {
		case TokenText:
			line.Parts = append(line.Parts, LinePart{Text: p.advance().Literal})
		case TokenExprStart:
			p.advance()
			expr := p.parseExpression()
			p.expect(TokenExprEnd)
			if expr != nil {
				line.Parts = append(line.Parts, LinePart{Expr: expr})
			}
		case TokenCmdStart:
			p.advance()
			if _, ok := p.expect(TokenIf); !ok {
				p.syncToLineEnd()
				trimLineParts(line)
				return line, condition
			}
			condition = p.parseExpression()
			p.expect(TokenCmdEnd)
		case TokenHashtag:
			tag := p.advance().Literal
			if strings.HasPrefix(tag, "line:") {
				line.LineID = tag
			} else {
				line.Hashtags = append(line.Hashtags, tag)
			}
		case TokenNewline, TokenEOF, TokenNodeEnd:
			if p.curIs(TokenNewline) {
				p.advance()
			}
			trimLineParts(line)
			return line, condition
		default:
			p.errorf(CategorySyntax, p.cur().Pos, "unexpected %s in option line", p.cur().Type)
			p.syncToLineEnd()
			trimLineParts(line)
			return line, condition
		}
	}
}

// parseOptions parses a run of consecutive -> options into one choice.
func (p *Parser) parseOptions() *OptionsStmt {
	stmt := &OptionsStmt{Pos: p.cur().Pos}
	for p.curIs(TokenArrow) {
		pos := p.advance().Pos
		line, condition := p.parseGuardedLine()
		opt := &ShortcutOption{Line: line, Condition: condition, Pos: pos}
		if p.curIs(TokenIndent) {
			p.advance()
			opt.Body = p.parseStatements(nil)
			if p.curIs(TokenDedent) {
				p.advance()
			}
		}
		stmt.Options = append(stmt.Options, opt)
	}
	return stmt
}

// parseLineGroup parses a run of consecutive => members.
func (p *Parser) parseLineGroup() *LineGroupStmt {
	stmt := &LineGroupStmt{Pos: p.cur().Pos}
	for p.curIs(TokenFatArrow) {
		pos := p.advance().Pos
		line, condition := p.parseGuardedLine()
		member := &LineGroupMember{Line: line, Condition: condition, Pos: pos}

		// A #priority:N hashtag declares an explicit saliency priority.
		kept := member.Line.Hashtags[:0]
		for _, tag := range member.Line.Hashtags {
			if value, ok := strings.CutPrefix(tag, "priority:"); ok {
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					p.errorf(CategorySyntax, pos, "invalid priority hashtag #%s", tag)
					continue
				}
				member.Priority = n
				member.HasPriority = true
				continue
			}
			kept = append(kept, tag)
		}
		member.Line.Hashtags = kept

		if p.curIs(TokenIndent) {
			p.advance()
			member.Body = p.parseStatements(nil)
			if p.curIs(TokenDedent) {
				p.advance()
			}
		}
		stmt.Members = append(stmt.Members, member)
	}
	return stmt
}

// parseCommandStatement dispatches a <<...>> statement on its keyword.
func (p *Parser) parseCommandStatement() Stmt {
	pos := p.cur().Pos
	p.advance() // consume <<
	switch p.cur().Type {
	case TokenIf:
		return p.parseIf(pos)
	case TokenSet:
		return p.parseSet(pos)
	case TokenDeclare:
		return p.parseDeclare(pos)
	case TokenJump:
		return p.parseJump(pos)
	case TokenStop:
		p.advance()
		p.expect(TokenCmdEnd)
		p.endOfLine()
		return &StopStmt{Pos: pos}
	case TokenElseif, TokenElse, TokenEndif:
		p.errorf(CategorySyntax, pos, "<<%s>> without a matching <<if>>", p.cur().Literal)
		p.syncToLineEnd()
		return nil
	case TokenText:
		return p.parseCustomCommand(pos)
	default:
		p.errorf(CategorySyntax, pos, "unexpected %s after <<", p.cur().Type)
		p.syncToLineEnd()
		return nil
	}
}

func (p *Parser) endOfLine() {
	if p.curIs(TokenNewline) {
		p.advance()
	}
}

// parseIf parses an if/elseif/else/endif chain. The current token is
// the "if" keyword.
func (p *Parser) parseIf(pos Position) Stmt {
	p.advance() // consume if
	stmt := &IfStmt{Pos: pos}

	condition := p.parseExpression()
	p.expect(TokenCmdEnd)
	p.endOfLine()

	atBranchKeyword := func() bool {
		if !p.curIs(TokenCmdStart) {
			return false
		}
		t := p.peek().Type
		return t == TokenElseif || t == TokenElse || t == TokenEndif
	}

	seenElse := false
	for {
		body := p.parseStatements(atBranchKeyword)
		stmt.Clauses = append(stmt.Clauses, IfClause{Condition: condition, Body: body, Pos: pos})

		if !atBranchKeyword() {
			p.errorf(CategorySyntax, p.cur().Pos, "missing <<endif>>")
			return stmt
		}
		p.advance() // consume <<
		keyword := p.advance()
		switch keyword.Type {
		case TokenElseif:
			if seenElse {
				p.errorf(CategorySyntax, keyword.Pos, "<<elseif>> after <<else>>")
			}
			pos = keyword.Pos
			condition = p.parseExpression()
			p.expect(TokenCmdEnd)
			p.endOfLine()
		case TokenElse:
			if seenElse {
				p.errorf(CategorySyntax, keyword.Pos, "duplicate <<else>>")
			}
			seenElse = true
			pos = keyword.Pos
			condition = nil
			p.expect(TokenCmdEnd)
			p.endOfLine()
		case TokenEndif:
			p.expect(TokenCmdEnd)
			p.endOfLine()
			return stmt
		}
	}
}

var assignOps = map[TokenType]AssignOp{
	TokenAssign:      AssignSet,
	TokenPlusAssign:  AssignAdd,
	TokenMinusAssign: AssignSub,
	TokenStarAssign:  AssignMul,
	TokenSlashAssign: AssignDiv,
}

func (p *Parser) parseSet(pos Position) Stmt {
	p.advance() // consume set
	variable, ok := p.expect(TokenVariable)
	if !ok {
		p.syncToLineEnd()
		return nil
	}
	op, ok := assignOps[p.cur().Type]
	if !ok {
		p.errorf(CategorySyntax, p.cur().Pos, "expected assignment operator, got %s", p.cur().Type)
		p.syncToLineEnd()
		return nil
	}
	p.advance()
	value := p.parseExpression()
	p.expect(TokenCmdEnd)
	p.endOfLine()
	if value == nil {
		return nil
	}
	return &SetStmt{Variable: variable.Literal, Op: op, Value: value, Pos: pos}
}

func (p *Parser) parseDeclare(pos Position) Stmt {
	p.advance() // consume declare
	variable, ok := p.expect(TokenVariable)
	if !ok {
		p.syncToLineEnd()
		return nil
	}
	if _, ok := p.expect(TokenAssign); !ok {
		p.syncToLineEnd()
		return nil
	}
	value := p.parseExpression()

	explicitType := ""
	if p.curIs(TokenAs) {
		p.advance()
		typeName, ok := p.expect(TokenIdentifier)
		if !ok {
			p.syncToLineEnd()
			return nil
		}
		explicitType = typeName.Literal
	}
	p.expect(TokenCmdEnd)
	p.endOfLine()
	if value == nil {
		return nil
	}
	return &DeclareStmt{Variable: variable.Literal, Value: value, ExplicitType: explicitType, Pos: pos}
}

func (p *Parser) parseJump(pos Position) Stmt {
	p.advance() // consume jump
	target, ok := p.expect(TokenIdentifier)
	if !ok {
		p.syncToLineEnd()
		return nil
	}
	p.expect(TokenCmdEnd)
	p.endOfLine()
	return &JumpStmt{Target: target.Literal, Pos: pos}
}

// parseCustomCommand parses <<name text {expr} ...>>.
func (p *Parser) parseCustomCommand(pos Position) Stmt {
	name := p.advance().Literal
	stmt := &CommandStmt{Name: name, Pos: pos}
	for {
		switch p.cur().Type {
		case TokenText:
			stmt.Parts = append(stmt.Parts, LinePart{Text: p.advance().Literal})
		case TokenExprStart:
			p.advance()
			expr := p.parseExpression()
			p.expect(TokenExprEnd)
			if expr != nil {
				stmt.Parts = append(stmt.Parts, LinePart{Expr: expr})
			}
		case TokenCmdEnd:
			p.advance()
			p.endOfLine()
			stmt.Parts = trimParts(stmt.Parts)
			return stmt
		default:
			p.errorf(CategorySyntax, p.cur().Pos, "unexpected %s in command", p.cur().Type)
			p.syncToLineEnd()
			return stmt
		}
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// parseExpression parses the expression sub-grammar with fixed
// precedence: || < && < equality < comparison < additive <
// multiplicative < unary.
func (p *Parser) parseExpression() Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for left != nil && p.curIs(TokenOrOr) {
		op := p.advance()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Op: TokenOrOr, Left: left, Right: right, Pos: op.Pos}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseEquality()
	for left != nil && p.curIs(TokenAndAnd) {
		op := p.advance()
		right := p.parseEquality()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Op: TokenAndAnd, Left: left, Right: right, Pos: op.Pos}
	}
	return left
}

func (p *Parser) parseEquality() Expr {
	left := p.parseComparison()
	for left != nil && (p.curIs(TokenEqEq) || p.curIs(TokenNotEq)) {
		op := p.advance()
		right := p.parseComparison()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right, Pos: op.Pos}
	}
	return left
}

func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()
	for left != nil && (p.curIs(TokenLt) || p.curIs(TokenLe) || p.curIs(TokenGt) || p.curIs(TokenGe)) {
		op := p.advance()
		right := p.parseAdditive()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right, Pos: op.Pos}
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for left != nil && (p.curIs(TokenPlus) || p.curIs(TokenMinus)) {
		op := p.advance()
		right := p.parseMultiplicative()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right, Pos: op.Pos}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for left != nil && (p.curIs(TokenStar) || p.curIs(TokenSlash) || p.curIs(TokenPercent)) {
		op := p.advance()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{Op: op.Type, Left: left, Right: right, Pos: op.Pos}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.curIs(TokenMinus) || p.curIs(TokenBang) {
		op := p.advance()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{Op: op.Type, Operand: operand, Pos: op.Pos}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		value, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorf(CategorySyntax, tok.Pos, "invalid number %q", tok.Literal)
			return nil
		}
		return &NumberLit{Value: value, Pos: tok.Pos}
	case TokenString:
		p.advance()
		return &StringLit{Value: tok.Literal, Pos: tok.Pos}
	case TokenTrue:
		p.advance()
		return &BoolLit{Value: true, Pos: tok.Pos}
	case TokenFalse:
		p.advance()
		return &BoolLit{Value: false, Pos: tok.Pos}
	case TokenVariable:
		p.advance()
		return &VariableExpr{Name: tok.Literal, Pos: tok.Pos}
	case TokenIdentifier:
		p.advance()
		if !p.curIs(TokenLParen) {
			p.errorf(CategorySyntax, tok.Pos, "bare identifier %q (variables are written $%s)", tok.Literal, tok.Literal)
			return nil
		}
		p.advance()
		call := &CallExpr{Name: tok.Literal, Pos: tok.Pos}
		if !p.curIs(TokenRParen) {
			for {
				arg := p.parseExpression()
				if arg == nil {
					return nil
				}
				call.Args = append(call.Args, arg)
				if !p.curIs(TokenComma) {
					break
				}
				p.advance()
			}
		}
		p.expect(TokenRParen)
		return call
	case TokenLParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(TokenRParen)
		return expr
	default:
		p.errorf(CategorySyntax, tok.Pos, "unexpected %s in expression", tok.Type)
		p.advance()
		return nil
	}
}
