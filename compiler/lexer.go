package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: indentation-aware, line-oriented tokenizer
// ---------------------------------------------------------------------------

// The lexer is modal, like the grammar: node headers are key/value
// lines, bodies are dialogue text with embedded expression islands
// (inside {...} and <<...>>), and indentation around shortcut options
// and line-group members is made explicit as INDENT/DEDENT tokens
// driven by an indent stack.

// tabWidth is the column width of a tab for indentation purposes.
const tabWidth = 4

// Lexer tokenizes dialogue-script source text.
type Lexer struct {
	lines   []string
	tokens  []Token
	indents []int
	inBody  bool
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	return &Lexer{
		lines:   strings.Split(input, "\n"),
		indents: []int{0},
	}
}

// Tokenize returns all tokens for the input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	return l.Run()
}

// Run lexes the whole input and returns the token stream.
func (l *Lexer) Run() []Token {
	for i, raw := range l.lines {
		lineNo := i + 1
		if l.inBody {
			l.lexBodyLine(raw, lineNo)
		} else {
			l.lexHeaderLine(raw, lineNo)
		}
	}
	l.popIndentsTo(0, len(l.lines))
	l.emit(Token{Type: TokenEOF, Pos: Position{Line: len(l.lines), Column: 1}})
	return l.tokens
}

func (l *Lexer) emit(tok Token) {
	l.tokens = append(l.tokens, tok)
}

func (l *Lexer) errorAt(line, col int, msg string) {
	l.emit(Token{Type: TokenError, Literal: msg, Pos: Position{Line: line, Column: col}})
}

// lexHeaderLine handles one line before the --- body separator.
func (l *Lexer) lexHeaderLine(raw string, lineNo int) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "//") {
		return
	}
	if trimmed == "---" {
		l.emit(Token{Type: TokenBodyStart, Literal: "---", Pos: Position{Line: lineNo, Column: 1}})
		l.inBody = true
		return
	}
	colon := strings.Index(trimmed, ":")
	if colon <= 0 {
		l.errorAt(lineNo, 1, "malformed header line (expected key: value)")
		return
	}
	key := strings.TrimSpace(trimmed[:colon])
	value := strings.TrimSpace(trimmed[colon+1:])
	l.emit(Token{Type: TokenHeaderKey, Literal: key, Pos: Position{Line: lineNo, Column: 1}})
	l.emit(Token{Type: TokenHeaderValue, Literal: value, Pos: Position{Line: lineNo, Column: colon + 2}})
}

// lexBodyLine handles one line of a node body.
func (l *Lexer) lexBodyLine(raw string, lineNo int) {
	content := stripComment(raw)
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return
	}
	if trimmed == "===" {
		l.popIndentsTo(0, lineNo)
		l.emit(Token{Type: TokenNodeEnd, Literal: "===", Pos: Position{Line: lineNo, Column: 1}})
		l.inBody = false
		return
	}

	indent, start := measureIndent(content)
	l.applyIndent(indent, lineNo)

	s := &lineScanner{lexer: l, src: content, pos: start, line: lineNo}
	s.lexContent()
	l.emit(Token{Type: TokenNewline, Pos: Position{Line: lineNo, Column: s.column()}})
}

// applyIndent compares a content line's indentation to the indent stack
// and emits INDENT/DEDENT tokens as needed.
func (l *Lexer) applyIndent(indent, lineNo int) {
	top := l.indents[len(l.indents)-1]
	if indent > top {
		l.indents = append(l.indents, indent)
		l.emit(Token{Type: TokenIndent, Pos: Position{Line: lineNo, Column: 1}})
		return
	}
	l.popIndentsTo(indent, lineNo)
}

func (l *Lexer) popIndentsTo(indent, lineNo int) {
	for len(l.indents) > 1 && l.indents[len(l.indents)-1] > indent {
		l.indents = l.indents[:len(l.indents)-1]
		l.emit(Token{Type: TokenDedent, Pos: Position{Line: lineNo, Column: 1}})
	}
}

// measureIndent returns the indentation in columns and the byte offset
// of the first content character.
func measureIndent(line string) (int, int) {
	indent := 0
	for i, r := range line {
		switch r {
		case ' ':
			indent++
		case '\t':
			indent += tabWidth - indent%tabWidth
		default:
			return indent, i
		}
	}
	return indent, len(line)
}

// stripComment removes a // comment unless it is escaped or inside a
// quoted expression string.
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line)-1; i++ {
		switch line[i] {
		case '\\':
			i++ // skip escaped char
		case '"':
			inString = !inString
		case '/':
			if line[i+1] == '/' && !inString {
				return line[:i]
			}
		}
	}
	return line
}

// ---------------------------------------------------------------------------
// Line scanner: tokenizes the content of a single body line
// ---------------------------------------------------------------------------

type lineScanner struct {
	lexer *Lexer
	src   string
	pos   int
	line  int
}

func (s *lineScanner) column() int { return s.pos + 1 }

func (s *lineScanner) position() Position {
	return Position{Line: s.line, Column: s.column()}
}

func (s *lineScanner) emit(typ TokenType, literal string, pos Position) {
	s.lexer.emit(Token{Type: typ, Literal: literal, Pos: pos})
}

func (s *lineScanner) errorf(msg string) {
	s.lexer.errorAt(s.line, s.column(), msg)
	s.pos = len(s.src) // abandon the rest of the line
}

func (s *lineScanner) rest() string { return s.src[s.pos:] }

func (s *lineScanner) skipSpace() {
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

// lexContent dispatches on the shape of the line.
func (s *lineScanner) lexContent() {
	switch {
	case strings.HasPrefix(s.rest(), "->"):
		s.emit(TokenArrow, "->", s.position())
		s.pos += 2
		s.skipSpace()
		s.lexLineBody()
	case strings.HasPrefix(s.rest(), "=>"):
		s.emit(TokenFatArrow, "=>", s.position())
		s.pos += 2
		s.skipSpace()
		s.lexLineBody()
	case strings.HasPrefix(s.rest(), "<<"):
		s.lexCommand()
		s.skipSpace()
		if s.pos < len(s.src) && s.src[s.pos] == '#' {
			s.lexHashtags()
		}
	default:
		s.lexLineBody()
	}
}

// lexLineBody tokenizes dialogue text: text runs, {expr} islands, an
// optional trailing <<if>> condition, and trailing hashtags.
func (s *lineScanner) lexLineBody() {
	var text strings.Builder
	textPos := s.position()

	flush := func() {
		if text.Len() > 0 {
			s.emit(TokenText, text.String(), textPos)
			text.Reset()
		}
	}

	for s.pos < len(s.src) {
		switch {
		case s.src[s.pos] == '\\':
			// Escape: take the next character literally.
			if s.pos+1 < len(s.src) {
				r, size := utf8.DecodeRuneInString(s.src[s.pos+1:])
				text.WriteRune(r)
				s.pos += 1 + size
			} else {
				s.pos++
			}
		case s.src[s.pos] == '{':
			flush()
			s.emit(TokenExprStart, "{", s.position())
			s.pos++
			if !s.lexExprUntil("}") {
				return
			}
			s.emit(TokenExprEnd, "}", s.position())
			s.pos++
			textPos = s.position()
		case strings.HasPrefix(s.rest(), "<<"):
			flush()
			s.lexCommand()
			s.skipSpace()
			textPos = s.position()
		case s.src[s.pos] == '#':
			flush()
			s.lexHashtags()
			return
		default:
			r, size := utf8.DecodeRuneInString(s.rest())
			text.WriteRune(r)
			s.pos += size
		}
	}
	flush()
}

// lexCommand tokenizes <<...>>. The first word decides whether the
// contents are expression tokens (flow-control keywords) or custom
// command text.
func (s *lineScanner) lexCommand() {
	s.emit(TokenCmdStart, "<<", s.position())
	s.pos += 2
	s.skipSpace()

	wordPos := s.position()
	word := s.readWord()
	if word == "" {
		s.errorf("empty command")
		return
	}

	if keyword, ok := commandKeywords[word]; ok {
		s.emit(keyword, word, wordPos)
		if !s.lexExprUntil(">>") {
			return
		}
	} else {
		// Custom command: name, then text with optional {expr} islands.
		s.emit(TokenText, word, wordPos)
		if !s.lexCommandText() {
			return
		}
	}
	s.emit(TokenCmdEnd, ">>", s.position())
	s.pos += 2
}

// lexCommandText lexes custom-command content up to >>.
func (s *lineScanner) lexCommandText() bool {
	var text strings.Builder
	textPos := s.position()

	// Whitespace is kept verbatim; the parser trims the outer edges so
	// spacing around {expr} islands survives into the template.
	flush := func() {
		if text.Len() > 0 {
			s.emit(TokenText, text.String(), textPos)
			text.Reset()
		}
	}

	for s.pos < len(s.src) {
		switch {
		case strings.HasPrefix(s.rest(), ">>"):
			flush()
			return true
		case s.src[s.pos] == '\\' && s.pos+1 < len(s.src):
			text.WriteByte(s.src[s.pos+1])
			s.pos += 2
		case s.src[s.pos] == '{':
			flush()
			s.emit(TokenExprStart, "{", s.position())
			s.pos++
			if !s.lexExprUntil("}") {
				return false
			}
			s.emit(TokenExprEnd, "}", s.position())
			s.pos++
			textPos = s.position()
		default:
			text.WriteByte(s.src[s.pos])
			s.pos++
		}
	}
	s.errorf("unterminated command (missing >>)")
	return false
}

// lexHashtags consumes trailing #tag annotations.
func (s *lineScanner) lexHashtags() {
	for s.pos < len(s.src) {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return
		}
		if s.src[s.pos] != '#' {
			s.errorf("expected hashtag")
			return
		}
		pos := s.position()
		s.pos++
		start := s.pos
		for s.pos < len(s.src) && s.src[s.pos] != ' ' && s.src[s.pos] != '\t' && s.src[s.pos] != '#' {
			s.pos++
		}
		if s.pos == start {
			s.errorf("empty hashtag")
			return
		}
		s.emit(TokenHashtag, s.src[start:s.pos], pos)
	}
}

// readWord reads an identifier-shaped word.
func (s *lineScanner) readWord() string {
	start := s.pos
	for s.pos < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.rest())
		if !isIdentRune(r) {
			break
		}
		s.pos += size
	}
	return s.src[start:s.pos]
}

// lexExprUntil tokenizes expression content until the terminator ("}"
// or ">>") is reached, leaving the terminator unconsumed. Returns false
// after emitting an error token.
func (s *lineScanner) lexExprUntil(terminator string) bool {
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			s.errorf("unterminated expression (missing " + terminator + ")")
			return false
		}
		if strings.HasPrefix(s.rest(), terminator) {
			return true
		}

		pos := s.position()
		ch := s.src[s.pos]
		switch {
		case ch >= '0' && ch <= '9':
			s.lexNumber(pos)
		case ch == '.' && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1]):
			s.lexNumber(pos)
		case ch == '"':
			if !s.lexString(pos) {
				return false
			}
		case ch == '$':
			s.pos++
			name := s.readWord()
			if name == "" {
				s.errorf("expected variable name after $")
				return false
			}
			s.emit(TokenVariable, name, pos)
		case isIdentStart(rune(ch)):
			word := s.readWord()
			if op, ok := wordOperators[word]; ok {
				s.emit(op, word, pos)
			} else {
				s.emit(TokenIdentifier, word, pos)
			}
		default:
			if !s.lexOperator(pos) {
				return false
			}
		}
	}
}

func (s *lineScanner) lexNumber(pos Position) {
	start := s.pos
	for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
		s.pos++
	}
	if s.pos < len(s.src) && s.src[s.pos] == '.' && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1]) {
		s.pos++
		for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
			s.pos++
		}
	}
	s.emit(TokenNumber, s.src[start:s.pos], pos)
}

func (s *lineScanner) lexString(pos Position) bool {
	s.pos++ // consume opening quote
	var sb strings.Builder
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '"':
			s.pos++
			s.emit(TokenString, sb.String(), pos)
			return true
		case '\\':
			if s.pos+1 < len(s.src) {
				sb.WriteByte(s.src[s.pos+1])
				s.pos += 2
			} else {
				s.pos++
			}
		default:
			sb.WriteByte(s.src[s.pos])
			s.pos++
		}
	}
	s.errorf("unterminated string literal")
	return false
}

// twoCharOps is checked before single-char operators.
var twoCharOps = []struct {
	text string
	typ  TokenType
}{
	{"==", TokenEqEq},
	{"!=", TokenNotEq},
	{"<=", TokenLe},
	{">=", TokenGe},
	{"&&", TokenAndAnd},
	{"||", TokenOrOr},
	{"+=", TokenPlusAssign},
	{"-=", TokenMinusAssign},
	{"*=", TokenStarAssign},
	{"/=", TokenSlashAssign},
}

var oneCharOps = map[byte]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'%': TokenPercent,
	'!': TokenBang,
	'<': TokenLt,
	'>': TokenGt,
	'=': TokenAssign,
	'(': TokenLParen,
	')': TokenRParen,
	',': TokenComma,
}

func (s *lineScanner) lexOperator(pos Position) bool {
	for _, op := range twoCharOps {
		if strings.HasPrefix(s.rest(), op.text) {
			s.emit(op.typ, op.text, pos)
			s.pos += 2
			return true
		}
	}
	if typ, ok := oneCharOps[s.src[s.pos]]; ok {
		s.emit(typ, string(s.src[s.pos]), pos)
		s.pos++
		return true
	}
	s.errorf("unexpected character in expression: " + string(s.src[s.pos]))
	return false
}

// Helper functions

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
