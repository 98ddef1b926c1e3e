package program

import (
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembler: human-readable listing of compiled programs
// ---------------------------------------------------------------------------

// Disassemble renders every node of a program as a readable listing,
// nodes sorted by name. Intended for debugging and golden tests.
func Disassemble(p *Program) string {
	var sb strings.Builder

	names := p.NodeNames()
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(DisassembleNode(p, p.Nodes[name]))
		sb.WriteByte('\n')
	}

	if len(p.SmartVariables) > 0 {
		vars := make([]string, 0, len(p.SmartVariables))
		for name := range p.SmartVariables {
			vars = append(vars, name)
		}
		sort.Strings(vars)
		for _, name := range vars {
			fmt.Fprintf(&sb, "smart $%s:\n", name)
			for i, inst := range p.SmartVariables[name].Instructions {
				fmt.Fprintf(&sb, "  %4d  %s\n", i, formatInstruction(inst))
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// DisassembleNode renders one node, annotating label positions.
func DisassembleNode(p *Program, node *Node) string {
	// Invert the label table for annotation.
	labelsAt := make(map[int][]string)
	for label, idx := range node.Labels {
		labelsAt[idx] = append(labelsAt[idx], label)
	}
	for _, labels := range labelsAt {
		sort.Strings(labels)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "node %s:\n", node.Name)
	for i, inst := range node.Instructions {
		for _, label := range labelsAt[i] {
			fmt.Fprintf(&sb, "%s:\n", label)
		}
		fmt.Fprintf(&sb, "  %4d  %s", i, formatInstruction(inst))
		if inst.Op == OpRunLine {
			if info, ok := p.Strings[inst.Str]; ok {
				fmt.Fprintf(&sb, "  ; %q", info.Text)
			}
		}
		sb.WriteByte('\n')
	}
	for _, label := range labelsAt[len(node.Instructions)] {
		fmt.Fprintf(&sb, "%s:\n", label)
	}
	return sb.String()
}

func formatInstruction(inst Instruction) string {
	switch inst.Op {
	case OpPushString:
		return fmt.Sprintf("%-16s %q", inst.Op, inst.Str)
	case OpPushNumber:
		return fmt.Sprintf("%-16s %v", inst.Op, inst.Num)
	case OpPushBool:
		return fmt.Sprintf("%-16s %v", inst.Op, inst.Bool)
	case OpPushVariable, OpStoreVariable, OpRunNode:
		return fmt.Sprintf("%-16s %s", inst.Op, inst.Str)
	case OpJump, OpJumpIfFalse, OpSelectCandidate:
		return fmt.Sprintf("%-16s %s", inst.Op, inst.Label)
	case OpCallFunc:
		return fmt.Sprintf("%-16s %s/%d", inst.Op, inst.Str, inst.Count)
	case OpRunLine:
		return fmt.Sprintf("%-16s %s subst=%d", inst.Op, inst.Str, inst.Count)
	case OpRunCommand:
		return fmt.Sprintf("%-16s %q subst=%d", inst.Op, inst.Str, inst.Count)
	case OpAddOption:
		return fmt.Sprintf("%-16s %s -> %s cond=%v", inst.Op, inst.Str, inst.Label, inst.Bool)
	case OpAddCandidate:
		return fmt.Sprintf("%-16s %s -> %s prio=%d cond=%v", inst.Op, inst.Str, inst.Label, inst.Count, inst.Bool)
	default:
		return inst.Op.String()
	}
}
