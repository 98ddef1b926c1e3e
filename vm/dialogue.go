// Package vm executes compiled dialogue programs. A Dialogue is a
// resumable interpreter: it runs instructions until content must be
// delivered, returns a Signal describing what the host should do, and
// waits for the matching resume call. All persistent state lives in the
// host-supplied VariableStorage; the Dialogue itself only holds the
// position of the current run.
package vm

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/loomlang/loom/program"
)

var log = commonlog.GetLogger("loom.vm")

// ---------------------------------------------------------------------------
// Execution state
// ---------------------------------------------------------------------------

// ExecutionState is the dialogue's position in its lifecycle. Every
// entry point checks the state and returns a MisuseError when called
// out of turn; misuse never changes the state.
type ExecutionState uint8

const (
	// StateIdle means no node has been started yet.
	StateIdle ExecutionState = iota
	// StateRunning is the transient state while instructions execute.
	StateRunning
	// StateWaitingForContinue means a line or lifecycle signal was
	// delivered and Continue resumes execution.
	StateWaitingForContinue
	// StateWaitingForCommand means a command was delivered and Continue
	// resumes execution once the host has carried it out.
	StateWaitingForCommand
	// StateWaitingForOptions means options were delivered and the host
	// must call SetSelectedOption before continuing.
	StateWaitingForOptions
	// StateStopped means the run ended. SetNode starts a new run.
	StateStopped
)

var stateNames = map[ExecutionState]string{
	StateIdle:               "idle",
	StateRunning:            "running",
	StateWaitingForContinue: "waiting for continue",
	StateWaitingForCommand:  "waiting on a command",
	StateWaitingForOptions:  "waiting for an option selection",
	StateStopped:            "stopped",
}

func (s ExecutionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ExecutionState(%d)", uint8(s))
}

// maxSmartDepth bounds smart-variable recursion. A smart variable whose
// body reads another smart variable is fine; a cycle is not.
const maxSmartDepth = 16

// ---------------------------------------------------------------------------
// Dialogue
// ---------------------------------------------------------------------------

// Dialogue is one resumable run of a compiled Program. It is not safe
// for concurrent use; run one Dialogue per goroutine and share the
// Program and (a thread-safe) VariableStorage instead.
type Dialogue struct {
	program  *program.Program
	storage  VariableStorage
	library  Library
	handlers map[string]CommandHandler
	strategy SaliencyStrategy
	rng      *rand.Rand

	state       ExecutionState
	node        *program.Node
	ip          int
	stack       []program.Value
	options     []Option
	candidates  []Candidate
	queue       []Signal
	pendingNode string
	smartDepth  int
}

// New creates a Dialogue over a compiled program with in-memory
// variable storage, the standard function library, and random-best
// saliency seeded from the clock.
func New(p *program.Program) *Dialogue {
	d := &Dialogue{
		program:  p,
		storage:  NewMemoryVariableStorage(),
		handlers: make(map[string]CommandHandler),
		strategy: RandomBestStrategy{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		state:    StateIdle,
	}
	d.library = StandardLibrary(d.getStoredValue, func() *rand.Rand { return d.rng })
	return d
}

func (d *Dialogue) getStoredValue(name string) (program.Value, bool) {
	return d.storage.GetValue(name)
}

// SetProgram replaces the program. Only valid while no run is active.
func (d *Dialogue) SetProgram(p *program.Program) error {
	if d.IsActive() {
		return &MisuseError{Op: "SetProgram", State: d.state}
	}
	d.program = p
	return nil
}

// AddProgram merges another compiled program into the current one.
// Only valid while no run is active.
func (d *Dialogue) AddProgram(p *program.Program) error {
	if d.IsActive() {
		return &MisuseError{Op: "AddProgram", State: d.state}
	}
	if d.program == nil {
		d.program = p
		return nil
	}
	combined, err := program.Combine(d.program, p)
	if err != nil {
		return err
	}
	d.program = combined
	return nil
}

// SetVariableStorage replaces the variable store. The standard library
// follows the replacement automatically.
func (d *Dialogue) SetVariableStorage(storage VariableStorage) {
	d.storage = storage
}

// VariableStorage returns the active variable store.
func (d *Dialogue) VariableStorage() VariableStorage {
	return d.storage
}

// RegisterFunction adds or replaces a library function.
func (d *Dialogue) RegisterFunction(name string, fn Function) {
	d.library[name] = fn
}

// RegisterCommandHandler routes a command name to a host callback. The
// handler runs before the CommandSignal is delivered; commands without
// a handler are delivered verbatim.
func (d *Dialogue) RegisterCommandHandler(name string, handler CommandHandler) {
	d.handlers[name] = handler
}

// SetSessionSeed reseeds the random source so a run replays exactly:
// same seed, same storage contents, same selections give the same
// signal sequence.
func (d *Dialogue) SetSessionSeed(seed int64) {
	d.rng = rand.New(rand.NewSource(seed))
}

// SetSaliencyStrategy replaces the line-group selection policy.
func (d *Dialogue) SetSaliencyStrategy(strategy SaliencyStrategy) {
	d.strategy = strategy
}

// State returns the current execution state.
func (d *Dialogue) State() ExecutionState { return d.state }

// IsActive reports whether a run is in progress.
func (d *Dialogue) IsActive() bool {
	switch d.state {
	case StateIdle, StateStopped:
		return false
	default:
		return true
	}
}

// CurrentNode returns the name of the executing node, or "".
func (d *Dialogue) CurrentNode() string {
	if d.node == nil {
		return ""
	}
	return d.node.Name
}

// NodeNames returns the names of every node in the program.
func (d *Dialogue) NodeNames() []string {
	if d.program == nil {
		return nil
	}
	return d.program.NodeNames()
}

// NodeExists reports whether the program contains the named node.
func (d *Dialogue) NodeExists(name string) bool {
	return d.program != nil && d.program.Node(name) != nil
}

// NodeTags returns the tags of the named node.
func (d *Dialogue) NodeTags(name string) []string {
	if d.program == nil {
		return nil
	}
	if node := d.program.Node(name); node != nil {
		return node.Tags
	}
	return nil
}

// ---------------------------------------------------------------------------
// Run control
// ---------------------------------------------------------------------------

// SetNode starts (or restarts) a run at the named node. Any in-flight
// run is abandoned without lifecycle signals.
func (d *Dialogue) SetNode(name string) error {
	if d.program == nil {
		return &MisuseError{Op: "SetNode", State: d.state}
	}
	node := d.program.Node(name)
	if node == nil {
		return fmt.Errorf("no node named %q", name)
	}
	d.startNode(node)
	d.state = StateWaitingForContinue
	log.Debugf("starting node %s", name)
	return nil
}

func (d *Dialogue) startNode(node *program.Node) {
	d.node = node
	d.ip = 0
	d.stack = d.stack[:0]
	d.options = nil
	d.candidates = nil
	d.queue = nil
	d.pendingNode = ""
}

// Stop abandons the current run immediately. No lifecycle signals are
// delivered; the visited counter for the abandoned node is untouched.
func (d *Dialogue) Stop() {
	d.state = StateStopped
	d.node = nil
	d.stack = d.stack[:0]
	d.options = nil
	d.candidates = nil
	d.queue = nil
	d.pendingNode = ""
}

// Continue resumes execution and returns the next Signal. It is valid
// after SetNode, after a line or command signal, and after
// SetSelectedOption; anywhere else it returns a MisuseError and
// changes nothing, so calling it again after the run ended is a
// detectable no-op rather than a restart.
func (d *Dialogue) Continue() (Signal, error) {
	// Buffered lifecycle signals drain before any new execution.
	if len(d.queue) > 0 {
		sig := d.queue[0]
		d.queue = d.queue[1:]
		if _, done := sig.(DialogueCompleteSignal); done {
			d.state = StateStopped
			d.node = nil
		}
		return sig, nil
	}

	switch d.state {
	case StateWaitingForContinue, StateWaitingForCommand:
	default:
		return nil, &MisuseError{Op: "Continue", State: d.state}
	}

	if d.pendingNode != "" {
		node := d.program.Node(d.pendingNode)
		d.startNode(node)
		log.Debugf("starting node %s", node.Name)
	}

	d.state = StateRunning
	for d.state == StateRunning {
		sig, err := d.step()
		if err != nil {
			node := d.CurrentNode()
			d.Stop()
			return nil, &RuntimeError{Node: node, Message: "execution failed", Err: err}
		}
		if sig != nil {
			return sig, nil
		}
	}

	// A lifecycle boundary was reached and queued.
	return d.Continue()
}

// SetSelectedOption resumes a dialogue paused on options. The index
// refers to the delivered OptionsSignal; selecting a disabled option
// is misuse.
func (d *Dialogue) SetSelectedOption(index int) error {
	if d.state != StateWaitingForOptions {
		return &MisuseError{Op: "SetSelectedOption", State: d.state}
	}
	if index < 0 || index >= len(d.options) {
		return &MisuseError{
			Op:     "SetSelectedOption",
			State:  d.state,
			Reason: fmt.Sprintf("option index %d out of range (%d options)", index, len(d.options)),
		}
	}
	opt := d.options[index]
	if !opt.Enabled {
		return &MisuseError{
			Op:     "SetSelectedOption",
			State:  d.state,
			Reason: fmt.Sprintf("option %d (%q) is disabled", index, opt.Text),
		}
	}
	d.ip = d.node.Labels[opt.DestinationLabel]
	d.options = nil
	d.state = StateWaitingForContinue
	return nil
}

// ---------------------------------------------------------------------------
// Instruction execution
// ---------------------------------------------------------------------------

func (d *Dialogue) push(v program.Value) {
	d.stack = append(d.stack, v)
}

func (d *Dialogue) pop() (program.Value, error) {
	if len(d.stack) == 0 {
		return program.Value{}, fmt.Errorf("stack underflow")
	}
	v := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return v, nil
}

// popStrings pops count values and renders them first-pushed-first.
func (d *Dialogue) popStrings(count int) ([]string, error) {
	out := make([]string, count)
	for i := count - 1; i >= 0; i-- {
		v, err := d.pop()
		if err != nil {
			return nil, err
		}
		out[i] = v.ConvertString()
	}
	return out, nil
}

func (d *Dialogue) jumpTo(label string) error {
	index, ok := d.node.Labels[label]
	if !ok {
		return fmt.Errorf("undefined label %q", label)
	}
	d.ip = index
	return nil
}

// step executes one instruction. It returns a Signal when the host
// must act, or nil to keep running; reaching the end of the node
// behaves like stop.
func (d *Dialogue) step() (Signal, error) {
	if d.ip >= len(d.node.Instructions) {
		d.finishRun("")
		return nil, nil
	}
	inst := d.node.Instructions[d.ip]
	d.ip++

	if inst.Op.IsBinaryOp() {
		b, err := d.pop()
		if err != nil {
			return nil, err
		}
		a, err := d.pop()
		if err != nil {
			return nil, err
		}
		result, err := applyBinary(inst.Op, a, b)
		if err != nil {
			return nil, err
		}
		d.push(result)
		return nil, nil
	}

	switch inst.Op {
	case program.OpPushString:
		d.push(program.String(inst.Str))
	case program.OpPushNumber:
		d.push(program.Number(inst.Num))
	case program.OpPushBool:
		d.push(program.Bool(inst.Bool))
	case program.OpPushVariable:
		v, err := d.lookupVariable(inst.Str)
		if err != nil {
			return nil, err
		}
		d.push(v)
	case program.OpStoreVariable:
		v, err := d.pop()
		if err != nil {
			return nil, err
		}
		d.storage.SetValue(inst.Str, v)
	case program.OpPop:
		if _, err := d.pop(); err != nil {
			return nil, err
		}

	case program.OpNeg:
		v, err := d.pop()
		if err != nil {
			return nil, err
		}
		n, err := v.AsNumber()
		if err != nil {
			return nil, err
		}
		d.push(program.Number(-n))
	case program.OpNot:
		v, err := d.pop()
		if err != nil {
			return nil, err
		}
		b, err := v.AsBool()
		if err != nil {
			return nil, err
		}
		d.push(program.Bool(!b))

	case program.OpJump:
		return nil, d.jumpTo(inst.Label)
	case program.OpJumpIfFalse:
		v, err := d.pop()
		if err != nil {
			return nil, err
		}
		b, err := v.AsBool()
		if err != nil {
			return nil, err
		}
		if !b {
			return nil, d.jumpTo(inst.Label)
		}
	case program.OpRunNode:
		if d.program.Node(inst.Str) == nil {
			return nil, fmt.Errorf("jump to unknown node %q", inst.Str)
		}
		d.finishRun(inst.Str)
	case program.OpStop:
		d.finishRun("")

	case program.OpCallFunc:
		result, err := d.callFunction(inst.Str, inst.Count)
		if err != nil {
			return nil, err
		}
		d.push(result)

	case program.OpRunLine:
		subs, err := d.popStrings(inst.Count)
		if err != nil {
			return nil, err
		}
		info, ok := d.program.Strings[inst.Str]
		if !ok {
			return nil, fmt.Errorf("unknown string id %q", inst.Str)
		}
		d.state = StateWaitingForContinue
		return LineSignal{
			ID:   inst.Str,
			Text: ExpandSubstitutions(info.Text, subs),
			Tags: info.Tags,
		}, nil
	case program.OpRunCommand:
		subs, err := d.popStrings(inst.Count)
		if err != nil {
			return nil, err
		}
		text := ExpandSubstitutions(inst.Str, subs)
		fields := strings.Fields(text)
		name := ""
		var args []string
		if len(fields) > 0 {
			name = fields[0]
			args = fields[1:]
		}
		if handler, ok := d.handlers[name]; ok {
			if err := handler(args); err != nil {
				return nil, fmt.Errorf("command %q: %w", name, err)
			}
		}
		d.state = StateWaitingForCommand
		return CommandSignal{Text: text, Name: name, Args: args}, nil

	case program.OpAddOption:
		enabled := true
		if inst.Bool {
			v, err := d.pop()
			if err != nil {
				return nil, err
			}
			enabled, err = v.AsBool()
			if err != nil {
				return nil, err
			}
		}
		subs, err := d.popStrings(inst.Count)
		if err != nil {
			return nil, err
		}
		info, ok := d.program.Strings[inst.Str]
		if !ok {
			return nil, fmt.Errorf("unknown string id %q", inst.Str)
		}
		d.options = append(d.options, Option{
			ID:               inst.Str,
			Text:             ExpandSubstitutions(info.Text, subs),
			DestinationLabel: inst.Label,
			Enabled:          enabled,
		})
	case program.OpShowOptions:
		if len(d.options) == 0 {
			return nil, fmt.Errorf("show options with no buffered options")
		}
		d.state = StateWaitingForOptions
		options := make([]Option, len(d.options))
		copy(options, d.options)
		return OptionsSignal{Options: options}, nil

	case program.OpAddCandidate:
		passed := true
		if inst.Bool {
			v, err := d.pop()
			if err != nil {
				return nil, err
			}
			passed, err = v.AsBool()
			if err != nil {
				return nil, err
			}
		}
		d.candidates = append(d.candidates, Candidate{
			StringID:         inst.Str,
			DestinationLabel: inst.Label,
			Priority:         inst.Count,
			ConditionPassed:  passed,
		})
	case program.OpSelectCandidate:
		index := d.strategy.Select(d.candidates, d.rng)
		var label string
		if index == -1 {
			label = inst.Label
		} else {
			label = d.candidates[index].DestinationLabel
		}
		d.candidates = nil
		return nil, d.jumpTo(label)

	default:
		return nil, fmt.Errorf("unknown opcode %s", inst.Op)
	}
	return nil, nil
}

// finishRun ends the current node: the visited counter bumps, a node
// complete signal queues, and either the next node is scheduled or the
// whole run completes.
func (d *Dialogue) finishRun(next string) {
	completed := d.node.Name
	count, _ := d.storage.GetValue(visitedKeyPrefix + completed)
	d.storage.SetValue(visitedKeyPrefix+completed, program.Number(count.Num+1))

	d.queue = append(d.queue, NodeCompleteSignal{Node: completed})
	if next == "" {
		d.queue = append(d.queue, DialogueCompleteSignal{})
	}
	d.pendingNode = next
	d.stack = d.stack[:0]
	d.options = nil
	d.candidates = nil
	d.state = StateWaitingForContinue
}

func (d *Dialogue) callFunction(name string, argCount int) (program.Value, error) {
	fn, ok := d.library[name]
	if !ok {
		return program.Value{}, fmt.Errorf("unknown function %q", name)
	}
	if fn.Arity != argCount {
		return program.Value{}, fmt.Errorf("%s expects %d arguments, got %d", name, fn.Arity, argCount)
	}
	args := make([]program.Value, argCount)
	for i := argCount - 1; i >= 0; i-- {
		v, err := d.pop()
		if err != nil {
			return program.Value{}, err
		}
		args[i] = v
	}
	return fn.Impl(args)
}

// ---------------------------------------------------------------------------
// Variable resolution
// ---------------------------------------------------------------------------

// lookupVariable resolves a read: smart variables first, then stored
// values, then declaration defaults.
func (d *Dialogue) lookupVariable(name string) (program.Value, error) {
	if body, ok := d.program.SmartVariables[name]; ok {
		return d.evalSmartBody(name, body)
	}
	if v, ok := d.storage.GetValue(name); ok {
		return v, nil
	}
	if decl, ok := d.program.Declarations[name]; ok {
		return decl.Default, nil
	}
	return program.Value{}, fmt.Errorf("undefined variable $%s", name)
}

// evalSmartBody re-evaluates a smart variable's compiled expression.
// Bodies are label-free and side-effect free, so a plain value stack
// suffices; nested smart reads recurse through lookupVariable with a
// depth guard against cycles.
func (d *Dialogue) evalSmartBody(name string, body *program.Node) (program.Value, error) {
	if d.smartDepth >= maxSmartDepth {
		return program.Value{}, fmt.Errorf("smart variable $%s: evaluation too deep (cycle?)", name)
	}
	d.smartDepth++
	defer func() { d.smartDepth-- }()

	var stack []program.Value
	pop := func() (program.Value, error) {
		if len(stack) == 0 {
			return program.Value{}, fmt.Errorf("smart variable $%s: stack underflow", name)
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	for _, inst := range body.Instructions {
		switch {
		case inst.Op == program.OpPushString:
			stack = append(stack, program.String(inst.Str))
		case inst.Op == program.OpPushNumber:
			stack = append(stack, program.Number(inst.Num))
		case inst.Op == program.OpPushBool:
			stack = append(stack, program.Bool(inst.Bool))
		case inst.Op == program.OpPushVariable:
			v, err := d.lookupVariable(inst.Str)
			if err != nil {
				return program.Value{}, err
			}
			stack = append(stack, v)
		case inst.Op == program.OpNeg:
			v, err := pop()
			if err != nil {
				return program.Value{}, err
			}
			n, err := v.AsNumber()
			if err != nil {
				return program.Value{}, err
			}
			stack = append(stack, program.Number(-n))
		case inst.Op == program.OpNot:
			v, err := pop()
			if err != nil {
				return program.Value{}, err
			}
			b, err := v.AsBool()
			if err != nil {
				return program.Value{}, err
			}
			stack = append(stack, program.Bool(!b))
		case inst.Op.IsBinaryOp():
			b, err := pop()
			if err != nil {
				return program.Value{}, err
			}
			a, err := pop()
			if err != nil {
				return program.Value{}, err
			}
			result, err := applyBinary(inst.Op, a, b)
			if err != nil {
				return program.Value{}, err
			}
			stack = append(stack, result)
		case inst.Op == program.OpCallFunc:
			fn, ok := d.library[inst.Str]
			if !ok {
				return program.Value{}, fmt.Errorf("unknown function %q", inst.Str)
			}
			if fn.Arity != inst.Count {
				return program.Value{}, fmt.Errorf("%s expects %d arguments, got %d", inst.Str, fn.Arity, inst.Count)
			}
			args := make([]program.Value, inst.Count)
			for i := inst.Count - 1; i >= 0; i-- {
				v, err := pop()
				if err != nil {
					return program.Value{}, err
				}
				args[i] = v
			}
			result, err := fn.Impl(args)
			if err != nil {
				return program.Value{}, err
			}
			stack = append(stack, result)
		default:
			return program.Value{}, fmt.Errorf("smart variable $%s: impure opcode %s", name, inst.Op)
		}
	}
	if len(stack) != 1 {
		return program.Value{}, fmt.Errorf("smart variable $%s: body left %d values", name, len(stack))
	}
	return stack[0], nil
}

// ---------------------------------------------------------------------------
// Substitution
// ---------------------------------------------------------------------------

// ExpandSubstitutions replaces {0}-style markers in a string-table
// template with rendered values.
func ExpandSubstitutions(text string, substitutions []string) string {
	if len(substitutions) == 0 {
		return text
	}
	replacements := make([]string, 0, len(substitutions)*2)
	for i, sub := range substitutions {
		replacements = append(replacements, fmt.Sprintf("{%d}", i), sub)
	}
	return strings.NewReplacer(replacements...).Replace(text)
}
