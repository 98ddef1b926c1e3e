package compiler

import (
	"strings"
	"testing"
)

// parseOne parses source expected to contain exactly one node and no
// error diagnostics.
func parseOne(t *testing.T, source string) *NodeDecl {
	t.Helper()
	nodes, diags := ParseFile("test.loom", source)
	if HasErrors(diags) {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(nodes) != 1 {
		t.Fatalf("parsed %d nodes, want 1", len(nodes))
	}
	return nodes[0]
}

func TestParseNodeHeaders(t *testing.T) {
	node := parseOne(t, "title: Start\ntags: intro chapter_one\ncolor: red\n---\nHello.\n===\n")
	if node.Title != "Start" {
		t.Errorf("Title = %q, want Start", node.Title)
	}
	if len(node.Tags) != 2 || node.Tags[0] != "intro" || node.Tags[1] != "chapter_one" {
		t.Errorf("Tags = %v, want [intro chapter_one]", node.Tags)
	}
	if node.Headers["color"] != "red" {
		t.Errorf("Headers[color] = %q, want red", node.Headers["color"])
	}
	if len(node.Body) != 1 {
		t.Fatalf("Body has %d statements, want 1", len(node.Body))
	}
	if _, ok := node.Body[0].(*LineStmt); !ok {
		t.Errorf("Body[0] is %T, want *LineStmt", node.Body[0])
	}
}

func TestParseMissingTitle(t *testing.T) {
	nodes, diags := ParseFile("test.loom", "tags: x\n---\nHello.\n===\n")
	if !HasErrors(diags) {
		t.Fatal("node without title parsed cleanly, want diagnostic")
	}
	if len(nodes) != 0 {
		t.Errorf("parsed %d nodes, want 0", len(nodes))
	}
}

func TestParseDuplicateHeader(t *testing.T) {
	_, diags := ParseFile("test.loom", "title: A\ntitle: B\n---\nx\n===\n")
	if !HasErrors(diags) {
		t.Fatal("duplicate title header parsed cleanly, want diagnostic")
	}
}

func TestParseMultipleNodes(t *testing.T) {
	nodes, diags := ParseFile("test.loom", "title: A\n---\none\n===\ntitle: B\n---\ntwo\n===\n")
	if HasErrors(diags) {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(nodes) != 2 || nodes[0].Title != "A" || nodes[1].Title != "B" {
		t.Fatalf("nodes = %v, want A and B", nodes)
	}
}

func TestParseLineWithInterpolation(t *testing.T) {
	node := parseOne(t, "title: S\n---\nYou have {$gold} gold.\n===\n")
	line := node.Body[0].(*LineStmt)
	if len(line.Parts) != 3 {
		t.Fatalf("line has %d parts, want 3", len(line.Parts))
	}
	if line.Parts[0].Text != "You have " {
		t.Errorf("part 0 = %q, want %q", line.Parts[0].Text, "You have ")
	}
	v, ok := line.Parts[1].Expr.(*VariableExpr)
	if !ok || v.Name != "gold" {
		t.Errorf("part 1 = %#v, want variable gold", line.Parts[1].Expr)
	}
	if line.Parts[2].Text != " gold." {
		t.Errorf("part 2 = %q, want %q", line.Parts[2].Text, " gold.")
	}
}

func TestParseLineHashtags(t *testing.T) {
	node := parseOne(t, "title: S\n---\nHi. #line:greet #mood:warm\n===\n")
	line := node.Body[0].(*LineStmt)
	if line.LineID != "line:greet" {
		t.Errorf("LineID = %q, want line:greet", line.LineID)
	}
	if len(line.Hashtags) != 1 || line.Hashtags[0] != "mood:warm" {
		t.Errorf("Hashtags = %v, want [mood:warm]", line.Hashtags)
	}
}

func TestParseShortcutOptions(t *testing.T) {
	src := `title: S
---
Pick one.
-> Apples <<if $likes_apples>>
    You picked apples.
-> Oranges
    You picked oranges.
Done.
===
`
	node := parseOne(t, src)
	if len(node.Body) != 3 {
		t.Fatalf("body has %d statements, want 3", len(node.Body))
	}
	opts, ok := node.Body[1].(*OptionsStmt)
	if !ok {
		t.Fatalf("Body[1] is %T, want *OptionsStmt", node.Body[1])
	}
	if len(opts.Options) != 2 {
		t.Fatalf("options = %d, want 2", len(opts.Options))
	}
	if opts.Options[0].Condition == nil {
		t.Error("option 0 lost its guard condition")
	}
	if opts.Options[1].Condition != nil {
		t.Error("option 1 grew a condition")
	}
	if len(opts.Options[0].Body) != 1 {
		t.Errorf("option 0 body = %d statements, want 1", len(opts.Options[0].Body))
	}
}

func TestParseNestedOptions(t *testing.T) {
	src := `title: S
---
-> Outer A
    -> Inner 1
        Deep.
    -> Inner 2
-> Outer B
===
`
	node := parseOne(t, src)
	outer := node.Body[0].(*OptionsStmt)
	if len(outer.Options) != 2 {
		t.Fatalf("outer options = %d, want 2", len(outer.Options))
	}
	inner, ok := outer.Options[0].Body[0].(*OptionsStmt)
	if !ok {
		t.Fatalf("nested statement is %T, want *OptionsStmt", outer.Options[0].Body[0])
	}
	if len(inner.Options) != 2 {
		t.Errorf("inner options = %d, want 2", len(inner.Options))
	}
	if len(inner.Options[0].Body) != 1 {
		t.Errorf("inner option body = %d statements, want 1", len(inner.Options[0].Body))
	}
}

func TestParseLineGroup(t *testing.T) {
	src := `title: S
---
=> Hello.
=> Hi again. <<if $met>>
    Nice to see you.
=> Greetings! #priority:5
===
`
	node := parseOne(t, src)
	group, ok := node.Body[0].(*LineGroupStmt)
	if !ok {
		t.Fatalf("Body[0] is %T, want *LineGroupStmt", node.Body[0])
	}
	if len(group.Members) != 3 {
		t.Fatalf("members = %d, want 3", len(group.Members))
	}
	if group.Members[0].HasPriority {
		t.Error("member 0 should have no explicit priority")
	}
	if group.Members[1].Condition == nil {
		t.Error("member 1 lost its condition")
	}
	if len(group.Members[1].Body) != 1 {
		t.Errorf("member 1 body = %d statements, want 1", len(group.Members[1].Body))
	}
	if !group.Members[2].HasPriority || group.Members[2].Priority != 5 {
		t.Errorf("member 2 priority = (%v, %d), want (true, 5)",
			group.Members[2].HasPriority, group.Members[2].Priority)
	}
}

func TestParseIfChain(t *testing.T) {
	src := `title: S
---
<<if $gold > 100>>
    Rich.
<<elseif $gold > 10>>
    Comfortable.
<<else>>
    Broke.
<<endif>>
===
`
	node := parseOne(t, src)
	ifStmt, ok := node.Body[0].(*IfStmt)
	if !ok {
		t.Fatalf("Body[0] is %T, want *IfStmt", node.Body[0])
	}
	if len(ifStmt.Clauses) != 3 {
		t.Fatalf("clauses = %d, want 3", len(ifStmt.Clauses))
	}
	if ifStmt.Clauses[0].Condition == nil || ifStmt.Clauses[1].Condition == nil {
		t.Error("if/elseif clauses must carry conditions")
	}
	if ifStmt.Clauses[2].Condition != nil {
		t.Error("else clause must have a nil condition")
	}
	for i, clause := range ifStmt.Clauses {
		if len(clause.Body) != 1 {
			t.Errorf("clause %d body = %d statements, want 1", i, len(clause.Body))
		}
	}
}

func TestParseIfErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing endif", "<<if $a>>\nx\n", "endif"},
		{"double else", "<<if $a>>\nx\n<<else>>\ny\n<<else>>\nz\n<<endif>>\n", "else"},
		{"elseif after else", "<<if $a>>\nx\n<<else>>\ny\n<<elseif $b>>\nz\n<<endif>>\n", "elseif"},
		{"stray endif", "<<endif>>\n", "endif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := ParseFile("test.loom", "title: S\n---\n"+tt.body+"===\n")
			if !HasErrors(diags) {
				t.Fatal("parsed cleanly, want diagnostic")
			}
			found := false
			for _, d := range diags {
				if strings.Contains(d.Message, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("diagnostics %v do not mention %q", diags, tt.want)
			}
		})
	}
}

func TestParseSet(t *testing.T) {
	tests := []struct {
		src  string
		op   AssignOp
	}{
		{"<<set $x = 1>>", AssignSet},
		{"<<set $x += 1>>", AssignAdd},
		{"<<set $x -= 1>>", AssignSub},
		{"<<set $x *= 2>>", AssignMul},
		{"<<set $x /= 2>>", AssignDiv},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			node := parseOne(t, "title: S\n---\n"+tt.src+"\n===\n")
			set, ok := node.Body[0].(*SetStmt)
			if !ok {
				t.Fatalf("Body[0] is %T, want *SetStmt", node.Body[0])
			}
			if set.Variable != "x" || set.Op != tt.op {
				t.Errorf("set = ($%s, %d), want ($x, %d)", set.Variable, set.Op, tt.op)
			}
		})
	}
}

func TestParseDeclare(t *testing.T) {
	node := parseOne(t, "title: S\n---\n<<declare $gold = 50 as number>>\n===\n")
	decl, ok := node.Body[0].(*DeclareStmt)
	if !ok {
		t.Fatalf("Body[0] is %T, want *DeclareStmt", node.Body[0])
	}
	if decl.Variable != "gold" || decl.ExplicitType != "number" {
		t.Errorf("declare = ($%s as %q), want ($gold as number)", decl.Variable, decl.ExplicitType)
	}
	if _, ok := decl.Value.(*NumberLit); !ok {
		t.Errorf("declare value is %T, want *NumberLit", decl.Value)
	}
}

func TestParseJumpAndStop(t *testing.T) {
	node := parseOne(t, "title: S\n---\n<<jump Target>>\n<<stop>>\n===\n")
	jump, ok := node.Body[0].(*JumpStmt)
	if !ok || jump.Target != "Target" {
		t.Fatalf("Body[0] = %#v, want jump to Target", node.Body[0])
	}
	if _, ok := node.Body[1].(*StopStmt); !ok {
		t.Fatalf("Body[1] is %T, want *StopStmt", node.Body[1])
	}
}

func TestParseCustomCommand(t *testing.T) {
	node := parseOne(t, "title: S\n---\n<<fade_out 2.5 {$speed}>>\n===\n")
	cmd, ok := node.Body[0].(*CommandStmt)
	if !ok {
		t.Fatalf("Body[0] is %T, want *CommandStmt", node.Body[0])
	}
	if cmd.Name != "fade_out" {
		t.Errorf("command name = %q, want fade_out", cmd.Name)
	}
	if len(cmd.Parts) != 2 {
		t.Fatalf("command parts = %d, want 2", len(cmd.Parts))
	}
	if cmd.Parts[0].Text != "2.5 " && cmd.Parts[0].Text != "2.5" {
		t.Errorf("command text = %q, want 2.5", cmd.Parts[0].Text)
	}
	if _, ok := cmd.Parts[1].Expr.(*VariableExpr); !ok {
		t.Errorf("command part 1 is %#v, want variable expression", cmd.Parts[1])
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	node := parseOne(t, "title: S\n---\n{1 + 2 * 3 == 7 && true}\n===\n")
	line := node.Body[0].(*LineStmt)
	and, ok := line.Parts[0].Expr.(*BinaryExpr)
	if !ok || and.Op != TokenAndAnd {
		t.Fatalf("top-level expression = %#v, want &&", line.Parts[0].Expr)
	}
	eq, ok := and.Left.(*BinaryExpr)
	if !ok || eq.Op != TokenEqEq {
		t.Fatalf("left of && = %#v, want ==", and.Left)
	}
	add, ok := eq.Left.(*BinaryExpr)
	if !ok || add.Op != TokenPlus {
		t.Fatalf("left of == = %#v, want +", eq.Left)
	}
	mul, ok := add.Right.(*BinaryExpr)
	if !ok || mul.Op != TokenStar {
		t.Fatalf("right of + = %#v, want *", add.Right)
	}
}

func TestParseUnaryAndCalls(t *testing.T) {
	node := parseOne(t, "title: S\n---\n{min(-$a, dice(6))}\n===\n")
	line := node.Body[0].(*LineStmt)
	call, ok := line.Parts[0].Expr.(*CallExpr)
	if !ok || call.Name != "min" || len(call.Args) != 2 {
		t.Fatalf("expression = %#v, want min(..., ...)", line.Parts[0].Expr)
	}
	neg, ok := call.Args[0].(*UnaryExpr)
	if !ok || neg.Op != TokenMinus {
		t.Errorf("arg 0 = %#v, want unary minus", call.Args[0])
	}
	inner, ok := call.Args[1].(*CallExpr)
	if !ok || inner.Name != "dice" {
		t.Errorf("arg 1 = %#v, want dice(...)", call.Args[1])
	}
}

func TestParseBareIdentifierSuggestsVariable(t *testing.T) {
	_, diags := ParseFile("test.loom", "title: S\n---\n<<set $x = gold>>\n===\n")
	if !HasErrors(diags) {
		t.Fatal("bare identifier parsed cleanly, want diagnostic")
	}
	found := false
	for _, d := range diags {
		if strings.Contains(d.Message, "$gold") {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics %v do not suggest $gold", diags)
	}
}

func TestParseRecoversPerNode(t *testing.T) {
	// An error in the first node must not swallow the second node.
	src := "title: A\n---\n<<set = 1>>\n===\ntitle: B\n---\nFine.\n===\n"
	nodes, diags := ParseFile("test.loom", src)
	if !HasErrors(diags) {
		t.Fatal("malformed set parsed cleanly, want diagnostic")
	}
	foundB := false
	for _, n := range nodes {
		if n.Title == "B" {
			foundB = true
		}
	}
	if !foundB {
		t.Error("parser did not recover to parse node B")
	}
}
