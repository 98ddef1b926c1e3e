package compiler

import "testing"

// tokenTypes strips literals and positions for shape comparisons.
func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func assertTypes(t *testing.T, got []Token, want []TokenType) {
	t.Helper()
	gotTypes := tokenTypes(got)
	if len(gotTypes) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(gotTypes), gotTypes, len(want), want)
	}
	for i := range want {
		if gotTypes[i] != want[i] {
			t.Fatalf("token %d = %v, want %v (stream: %v)", i, gotTypes[i], want[i], got)
		}
	}
}

func TestLexHeadersAndBody(t *testing.T) {
	tokens := Tokenize("title: Start\ntags: intro\n---\nHello there.\n===\n")
	assertTypes(t, tokens, []TokenType{
		TokenHeaderKey, TokenHeaderValue,
		TokenHeaderKey, TokenHeaderValue,
		TokenBodyStart,
		TokenText, TokenNewline,
		TokenNodeEnd,
		TokenEOF,
	})
	if tokens[0].Literal != "title" || tokens[1].Literal != "Start" {
		t.Errorf("header tokens = %v %v, want title/Start", tokens[0], tokens[1])
	}
	if tokens[5].Literal != "Hello there." {
		t.Errorf("text literal = %q, want %q", tokens[5].Literal, "Hello there.")
	}
}

func TestLexHeaderComments(t *testing.T) {
	tokens := Tokenize("// a file comment\ntitle: Start\n---\n===\n")
	assertTypes(t, tokens, []TokenType{
		TokenHeaderKey, TokenHeaderValue, TokenBodyStart, TokenNodeEnd, TokenEOF,
	})
}

func TestLexMalformedHeader(t *testing.T) {
	tokens := Tokenize("not a header\n---\n===\n")
	if tokens[0].Type != TokenError {
		t.Fatalf("token 0 = %v, want ERROR", tokens[0])
	}
}

func TestLexInterpolation(t *testing.T) {
	tokens := Tokenize("title: S\n---\nYou have {$gold} gold.\n===\n")
	assertTypes(t, tokens, []TokenType{
		TokenHeaderKey, TokenHeaderValue, TokenBodyStart,
		TokenText, TokenExprStart, TokenVariable, TokenExprEnd, TokenText, TokenNewline,
		TokenNodeEnd, TokenEOF,
	})
	if tokens[5].Literal != "gold" {
		t.Errorf("variable literal = %q, want %q", tokens[5].Literal, "gold")
	}
}

func TestLexEscapes(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"escaped brace", `A literal \{brace\}.`, "A literal {brace}."},
		{"escaped hash", `Not a \#hashtag`, "Not a #hashtag"},
		{"escaped slashes", `See https:\/\/example.com`, "See https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize("title: S\n---\n" + tt.line + "\n===\n")
			var text string
			for _, tok := range tokens {
				if tok.Type == TokenText {
					text = tok.Literal
				}
			}
			if text != tt.want {
				t.Errorf("text = %q, want %q", text, tt.want)
			}
		})
	}
}

func TestLexComments(t *testing.T) {
	tokens := Tokenize("title: S\n---\nHello // trailing comment\n===\n")
	for _, tok := range tokens {
		if tok.Type == TokenText && tok.Literal != "Hello " {
			t.Errorf("text = %q, comment not stripped", tok.Literal)
		}
	}
}

func TestLexHashtags(t *testing.T) {
	tokens := Tokenize("title: S\n---\nHello #line:greeting #mood:happy\n===\n")
	var tags []string
	for _, tok := range tokens {
		if tok.Type == TokenHashtag {
			tags = append(tags, tok.Literal)
		}
	}
	if len(tags) != 2 || tags[0] != "line:greeting" || tags[1] != "mood:happy" {
		t.Errorf("hashtags = %v, want [line:greeting mood:happy]", tags)
	}
}

func TestLexShortcutOptionIndentation(t *testing.T) {
	src := "title: S\n---\n-> First\n    Nested line\n-> Second\n===\n"
	tokens := Tokenize(src)
	assertTypes(t, tokens, []TokenType{
		TokenHeaderKey, TokenHeaderValue, TokenBodyStart,
		TokenArrow, TokenText, TokenNewline,
		TokenIndent, TokenText, TokenNewline,
		TokenDedent, TokenArrow, TokenText, TokenNewline,
		TokenNodeEnd, TokenEOF,
	})
}

func TestLexDedentAtNodeEnd(t *testing.T) {
	src := "title: S\n---\n-> Only\n    Deep\n===\n"
	tokens := Tokenize(src)
	sawDedent := false
	for i, tok := range tokens {
		if tok.Type == TokenDedent {
			sawDedent = true
			// The dedent must arrive before the node-end marker.
			for _, later := range tokens[:i] {
				if later.Type == TokenNodeEnd {
					t.Fatal("NODE_END emitted before DEDENT")
				}
			}
		}
	}
	if !sawDedent {
		t.Fatal("no DEDENT emitted for indented block at node end")
	}
}

func TestLexTabsAsIndent(t *testing.T) {
	src := "title: S\n---\n-> A\n\tTabbed\n===\n"
	tokens := Tokenize(src)
	found := false
	for _, tok := range tokens {
		if tok.Type == TokenIndent {
			found = true
		}
	}
	if !found {
		t.Error("tab indentation produced no INDENT token")
	}
}

func TestLexFlowCommands(t *testing.T) {
	src := "title: S\n---\n<<set $gold = $gold + 10>>\n===\n"
	tokens := Tokenize(src)
	assertTypes(t, tokens, []TokenType{
		TokenHeaderKey, TokenHeaderValue, TokenBodyStart,
		TokenCmdStart, TokenSet, TokenVariable, TokenAssign,
		TokenVariable, TokenPlus, TokenNumber, TokenCmdEnd, TokenNewline,
		TokenNodeEnd, TokenEOF,
	})
}

func TestLexWordOperators(t *testing.T) {
	src := "title: S\n---\n<<if $a and not $b or $c is true>>\nx\n<<endif>>\n===\n"
	tokens := Tokenize(src)
	var ops []TokenType
	for _, tok := range tokens {
		switch tok.Type {
		case TokenAndAnd, TokenOrOr, TokenBang, TokenEqEq, TokenTrue:
			ops = append(ops, tok.Type)
		}
	}
	want := []TokenType{TokenAndAnd, TokenBang, TokenOrOr, TokenEqEq, TokenTrue}
	if len(ops) != len(want) {
		t.Fatalf("word operators = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operator %d = %v, want %v", i, ops[i], want[i])
		}
	}
}

func TestLexCustomCommand(t *testing.T) {
	src := "title: S\n---\n<<wait {$seconds} then fade>>\n===\n"
	tokens := Tokenize(src)
	assertTypes(t, tokens, []TokenType{
		TokenHeaderKey, TokenHeaderValue, TokenBodyStart,
		TokenCmdStart, TokenText, TokenText, TokenExprStart, TokenVariable, TokenExprEnd,
		TokenText, TokenCmdEnd, TokenNewline,
		TokenNodeEnd, TokenEOF,
	})
	if tokens[4].Literal != "wait" {
		t.Errorf("command name = %q, want %q", tokens[4].Literal, "wait")
	}
	if tokens[9].Literal != " then fade" {
		t.Errorf("command text = %q, want %q", tokens[9].Literal, " then fade")
	}
}

func TestLexExpressionLiterals(t *testing.T) {
	src := "title: S\n---\n{min(3.5, \"a \\\" quote\")}\n===\n"
	tokens := Tokenize(src)
	var number, str string
	for _, tok := range tokens {
		switch tok.Type {
		case TokenNumber:
			number = tok.Literal
		case TokenString:
			str = tok.Literal
		}
	}
	if number != "3.5" {
		t.Errorf("number literal = %q, want 3.5", number)
	}
	if str != `a " quote` {
		t.Errorf("string literal = %q, want %q", str, `a " quote`)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unterminated expression", "{$gold\n"},
		{"unterminated command", "<<wait forever\n"},
		{"unterminated string", `{"oops}` + "\n"},
		{"empty hashtag", "Hello #\n"},
		{"stray expression character", "{$a ? $b}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize("title: S\n---\n" + tt.body + "===\n")
			found := false
			for _, tok := range tokens {
				if tok.Type == TokenError {
					found = true
				}
			}
			if !found {
				t.Errorf("no ERROR token in %v", tokens)
			}
		})
	}
}

func TestLexLineGroups(t *testing.T) {
	src := "title: S\n---\n=> Hi.\n=> Hello. <<if $met>> #priority:2\n===\n"
	tokens := Tokenize(src)
	arrows := 0
	for _, tok := range tokens {
		if tok.Type == TokenFatArrow {
			arrows++
		}
	}
	if arrows != 2 {
		t.Errorf("fat arrows = %d, want 2", arrows)
	}
}

func TestLexCRLF(t *testing.T) {
	tokens := Tokenize("title: S\r\n---\r\nHello.\r\n===\r\n")
	assertTypes(t, tokens, []TokenType{
		TokenHeaderKey, TokenHeaderValue, TokenBodyStart,
		TokenText, TokenNewline, TokenNodeEnd, TokenEOF,
	})
	if tokens[3].Literal != "Hello." {
		t.Errorf("text = %q, want %q", tokens[3].Literal, "Hello.")
	}
}
