package vm

import "fmt"

// ---------------------------------------------------------------------------
// Suspend signals returned to the host
// ---------------------------------------------------------------------------

// Signal describes the host action a suspension requires. Every pause
// is an explicit returned value plus an explicit resume call, so the
// host owns its own concurrency model around the dialogue.
type Signal interface {
	signal() // marker method
}

// LineSignal asks the host to deliver one fully-substituted line.
type LineSignal struct {
	ID   string   // string-table id
	Text string   // display text, substitutions applied
	Tags []string // hashtags from the source line
}

func (LineSignal) signal() {}

func (s LineSignal) String() string { return fmt.Sprintf("line: %s", s.Text) }

// Option is one presented choice.
type Option struct {
	ID               string // string-table id of the option line
	Text             string // display text, substitutions applied
	DestinationLabel string // label executed if this option is chosen
	Enabled          bool   // false when the option's guard evaluated false
}

// OptionsSignal asks the host to present a choice and report the
// selected index via SetSelectedOption.
type OptionsSignal struct {
	Options []Option
}

func (OptionsSignal) signal() {}

func (s OptionsSignal) String() string { return fmt.Sprintf("options: %d", len(s.Options)) }

// CommandSignal asks the host to execute a command. When a handler was
// registered for the command name it has already been invoked; the
// signal is still delivered so the host controls pacing.
type CommandSignal struct {
	Text string   // full templated text, substitutions applied
	Name string   // first word
	Args []string // remaining words
}

func (CommandSignal) signal() {}

func (s CommandSignal) String() string { return fmt.Sprintf("command: %s", s.Text) }

// NodeCompleteSignal reports that a node finished, either by reaching
// its end or by jumping elsewhere.
type NodeCompleteSignal struct {
	Node string
}

func (NodeCompleteSignal) signal() {}

func (s NodeCompleteSignal) String() string { return fmt.Sprintf("node complete: %s", s.Node) }

// DialogueCompleteSignal reports that the run has ended; the dialogue
// is Stopped and a new SetNode is required to run again.
type DialogueCompleteSignal struct{}

func (DialogueCompleteSignal) signal() {}

func (s DialogueCompleteSignal) String() string { return "dialogue complete" }
