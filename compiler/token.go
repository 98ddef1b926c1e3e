package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the dialogue-script lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Structure
	TokenHeaderKey   // "title", "tags", any header key
	TokenHeaderValue // header text after the colon
	TokenBodyStart   // ---
	TokenNodeEnd     // ===
	TokenNewline
	TokenIndent
	TokenDedent

	// Body content
	TokenText      // a run of dialogue text
	TokenHashtag   // #tag (includes #line: ids)
	TokenArrow     // -> shortcut option
	TokenFatArrow  // => line-group member
	TokenCmdStart  // <<
	TokenCmdEnd    // >>
	TokenExprStart // { opening an inline expression
	TokenExprEnd   // }

	// Expression tokens
	TokenNumber   // 42, 3.14
	TokenString   // "hello"
	TokenVariable // $name
	TokenIdentifier
	TokenLParen
	TokenRParen
	TokenComma

	// Operators
	TokenPlus        // +
	TokenMinus       // -
	TokenStar        // *
	TokenSlash       // /
	TokenPercent     // %
	TokenBang        // ! (also "not")
	TokenEqEq        // == (also "is")
	TokenNotEq       // !=
	TokenLt          // <
	TokenLe          // <=
	TokenGt          // >
	TokenGe          // >=
	TokenAndAnd      // && (also "and")
	TokenOrOr        // || (also "or")
	TokenAssign      // =
	TokenPlusAssign  // +=
	TokenMinusAssign // -=
	TokenStarAssign  // *=
	TokenSlashAssign // /=

	// Keywords (recognized after <<)
	TokenIf
	TokenElseif
	TokenElse
	TokenEndif
	TokenSet
	TokenDeclare
	TokenJump
	TokenStop
	TokenTrue
	TokenFalse
	TokenAs
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenError:       "ERROR",
	TokenHeaderKey:   "HEADER_KEY",
	TokenHeaderValue: "HEADER_VALUE",
	TokenBodyStart:   "BODY_START",
	TokenNodeEnd:     "NODE_END",
	TokenNewline:     "NEWLINE",
	TokenIndent:      "INDENT",
	TokenDedent:      "DEDENT",
	TokenText:        "TEXT",
	TokenHashtag:     "HASHTAG",
	TokenArrow:       "ARROW",
	TokenFatArrow:    "FAT_ARROW",
	TokenCmdStart:    "CMD_START",
	TokenCmdEnd:      "CMD_END",
	TokenExprStart:   "EXPR_START",
	TokenExprEnd:     "EXPR_END",
	TokenNumber:      "NUMBER",
	TokenString:      "STRING",
	TokenVariable:    "VARIABLE",
	TokenIdentifier:  "IDENTIFIER",
	TokenLParen:      "LPAREN",
	TokenRParen:      "RPAREN",
	TokenComma:       "COMMA",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenPercent:     "%",
	TokenBang:        "!",
	TokenEqEq:        "==",
	TokenNotEq:       "!=",
	TokenLt:          "<",
	TokenLe:          "<=",
	TokenGt:          ">",
	TokenGe:          ">=",
	TokenAndAnd:      "&&",
	TokenOrOr:        "||",
	TokenAssign:      "=",
	TokenPlusAssign:  "+=",
	TokenMinusAssign: "-=",
	TokenStarAssign:  "*=",
	TokenSlashAssign: "/=",
	TokenIf:          "if",
	TokenElseif:      "elseif",
	TokenElse:        "else",
	TokenEndif:       "endif",
	TokenSet:         "set",
	TokenDeclare:     "declare",
	TokenJump:        "jump",
	TokenStop:        "stop",
	TokenTrue:        "true",
	TokenFalse:       "false",
	TokenAs:          "as",
}

// String returns the name of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// commandKeywords maps the first word after << to its keyword token.
// Any other word begins a custom command, which is lexed as text.
var commandKeywords = map[string]TokenType{
	"if":      TokenIf,
	"elseif":  TokenElseif,
	"else":    TokenElse,
	"endif":   TokenEndif,
	"set":     TokenSet,
	"declare": TokenDeclare,
	"jump":    TokenJump,
	"stop":    TokenStop,
}

// wordOperators maps word-form operators usable inside expressions.
var wordOperators = map[string]TokenType{
	"and":   TokenAndAnd,
	"or":    TokenOrOr,
	"not":   TokenBang,
	"is":    TokenEqEq,
	"true":  TokenTrue,
	"false": TokenFalse,
	"as":    TokenAs,
}

// Position is a source location.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
}

// Token is one lexeme with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Type, t.Literal, t.Pos.Line, t.Pos.Column)
}
