package program

import "fmt"

// ---------------------------------------------------------------------------
// Validation: invariant checks run after assembly and after deserialization
// ---------------------------------------------------------------------------

// ValidationError describes an invariant violation in a Program. The VM
// refuses to run a Program that fails validation.
type ValidationError struct {
	Node    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("invalid program: %s", e.Message)
	}
	return fmt.Sprintf("invalid program: node %q: %s", e.Node, e.Message)
}

func invalidf(node, format string, args ...interface{}) error {
	return &ValidationError{Node: node, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of a Program: unique and
// consistent node names, resolvable jump targets, known string ids, and
// balanced stack usage on every execution path. It is run by the
// compiler as a final gate and again on every deserialized Program, so
// hostile or corrupted bytes are rejected before execution.
func Validate(p *Program) error {
	if p == nil {
		return invalidf("", "nil program")
	}
	for name, node := range p.Nodes {
		if node == nil {
			return invalidf(name, "nil node")
		}
		if node.Name != name {
			return invalidf(name, "node registered under %q but named %q", name, node.Name)
		}
		if err := validateNode(p, node); err != nil {
			return err
		}
		if err := checkStackDepths(node); err != nil {
			return err
		}
	}
	for name, body := range p.SmartVariables {
		if err := validateSmartBody(name, body); err != nil {
			return err
		}
	}
	for name, decl := range p.Declarations {
		if decl.Type == TypeAny {
			return invalidf("", "declaration %q has no concrete type", name)
		}
		if decl.Default.Type != decl.Type {
			return invalidf("", "declaration %q: default is %s, declared %s",
				name, decl.Default.Type, decl.Type)
		}
	}
	return nil
}

func validateNode(p *Program, node *Node) error {
	limit := len(node.Instructions)
	for label, idx := range node.Labels {
		// idx == limit marks the node end.
		if idx < 0 || idx > limit {
			return invalidf(node.Name, "label %q points at %d, node has %d instructions", label, idx, limit)
		}
	}
	for i, inst := range node.Instructions {
		if !inst.Op.Valid() {
			return invalidf(node.Name, "instruction %d: unknown opcode 0x%02x", i, uint8(inst.Op))
		}
		switch inst.Op {
		case OpJump, OpJumpIfFalse, OpSelectCandidate:
			if _, ok := node.Labels[inst.Label]; !ok {
				return invalidf(node.Name, "instruction %d: jump to undefined label %q", i, inst.Label)
			}
		case OpAddOption, OpAddCandidate:
			if _, ok := node.Labels[inst.Label]; !ok {
				return invalidf(node.Name, "instruction %d: destination label %q undefined", i, inst.Label)
			}
			if _, ok := p.Strings[inst.Str]; !ok {
				return invalidf(node.Name, "instruction %d: unknown string id %q", i, inst.Str)
			}
		case OpRunLine:
			if _, ok := p.Strings[inst.Str]; !ok {
				return invalidf(node.Name, "instruction %d: unknown string id %q", i, inst.Str)
			}
		case OpRunNode:
			if _, ok := p.Nodes[inst.Str]; !ok {
				return invalidf(node.Name, "instruction %d: jump to undefined node %q", i, inst.Str)
			}
		case OpCallFunc:
			if inst.Str == "" {
				return invalidf(node.Name, "instruction %d: call with empty function name", i)
			}
		}
		if inst.Count < 0 {
			return invalidf(node.Name, "instruction %d: negative count", i)
		}
	}
	return nil
}

// stackDelta returns (pops, pushes) for an instruction.
func stackDelta(inst Instruction) (int, int) {
	switch inst.Op {
	case OpPushString, OpPushNumber, OpPushBool, OpPushVariable:
		return 0, 1
	case OpStoreVariable, OpPop, OpJumpIfFalse:
		return 1, 0
	case OpNeg, OpNot:
		return 1, 1
	case OpCallFunc:
		return inst.Count, 1
	case OpRunLine, OpRunCommand:
		return inst.Count, 0
	case OpAddOption:
		pops := inst.Count
		if inst.Bool {
			pops++
		}
		return pops, 0
	case OpAddCandidate:
		if inst.Bool {
			return 1, 0
		}
		return 0, 0
	default:
		if inst.Op.IsBinaryOp() {
			return 2, 1
		}
		return 0, 0
	}
}

// checkStackDepths runs a worklist dataflow over the node, propagating
// the operand-stack depth along every edge. Underflow, or two paths
// reaching the same instruction at different depths, is a validation
// error; this is what lets the VM execute without per-instruction
// bounds checks on well-formed programs.
func checkStackDepths(node *Node) error {
	limit := len(node.Instructions)
	depths := make([]int, limit+1)
	for i := range depths {
		depths[i] = -1 // unvisited
	}

	// Selection jumps transfer to buffered destination labels, so every
	// AddOption/AddCandidate label is a successor of the corresponding
	// flush instruction.
	var optionLabels, candidateLabels []string
	for _, inst := range node.Instructions {
		switch inst.Op {
		case OpAddOption:
			optionLabels = append(optionLabels, inst.Label)
		case OpAddCandidate:
			candidateLabels = append(candidateLabels, inst.Label)
		}
	}

	worklist := []int{0}
	depths[0] = 0
	visit := func(target, depth int) error {
		if depths[target] == -1 {
			depths[target] = depth
			worklist = append(worklist, target)
			return nil
		}
		if depths[target] != depth {
			return invalidf(node.Name, "instruction %d reachable at stack depths %d and %d",
				target, depths[target], depth)
		}
		return nil
	}

	for len(worklist) > 0 {
		i := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if i >= limit {
			continue // node end
		}
		inst := node.Instructions[i]
		pops, pushes := stackDelta(inst)
		if depths[i] < pops {
			return invalidf(node.Name, "instruction %d (%s) underflows the stack", i, inst.Op)
		}
		depth := depths[i] - pops + pushes

		switch inst.Op {
		case OpStop, OpRunNode:
			// Terminators: the stack is discarded.
		case OpJump:
			if err := visit(node.Labels[inst.Label], depth); err != nil {
				return err
			}
		case OpJumpIfFalse:
			if err := visit(node.Labels[inst.Label], depth); err != nil {
				return err
			}
			if err := visit(i+1, depth); err != nil {
				return err
			}
		case OpShowOptions:
			for _, label := range optionLabels {
				if err := visit(node.Labels[label], depth); err != nil {
					return err
				}
			}
		case OpSelectCandidate:
			if err := visit(node.Labels[inst.Label], depth); err != nil {
				return err
			}
			for _, label := range candidateLabels {
				if err := visit(node.Labels[label], depth); err != nil {
					return err
				}
			}
		default:
			if err := visit(i+1, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateSmartBody checks a smart-variable expression body: a linear,
// label-free instruction list built only from pure opcodes, leaving
// exactly one value on the stack.
func validateSmartBody(name string, body *Node) error {
	if body == nil {
		return invalidf("", "smart variable %q has nil body", name)
	}
	depth := 0
	for i, inst := range body.Instructions {
		switch inst.Op {
		case OpPushString, OpPushNumber, OpPushBool, OpPushVariable,
			OpNeg, OpNot, OpCallFunc,
			OpAdd, OpSub, OpMul, OpDiv, OpMod,
			OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
			pops, pushes := stackDelta(inst)
			if depth < pops {
				return invalidf("", "smart variable %q: instruction %d underflows", name, i)
			}
			depth += pushes - pops
		default:
			return invalidf("", "smart variable %q: instruction %d (%s) is not a pure expression op",
				name, i, inst.Op)
		}
	}
	if depth != 1 {
		return invalidf("", "smart variable %q: body leaves %d values on the stack, want 1", name, depth)
	}
	return nil
}
