package vm

import (
	"sync"

	"github.com/loomlang/loom/program"
)

// ---------------------------------------------------------------------------
// Variable storage capability
// ---------------------------------------------------------------------------

// VariableStorage is the externally supplied capability the dialogue
// reads and writes variables through. The VM never persists state
// itself: everything that must survive a run, or a node jump, lives
// here. Implementations shared across concurrent dialogues must be
// safe for concurrent use.
type VariableStorage interface {
	// GetValue returns the stored value for name, if any.
	GetValue(name string) (program.Value, bool)
	// SetValue stores a value under name.
	SetValue(name string, value program.Value)
	// Clear removes all stored values.
	Clear()
}

// MemoryVariableStorage is a map-backed VariableStorage. It is
// mutex-guarded so a host may share one store across dialogues.
type MemoryVariableStorage struct {
	mu     sync.RWMutex
	values map[string]program.Value
}

// NewMemoryVariableStorage creates an empty in-memory store.
func NewMemoryVariableStorage() *MemoryVariableStorage {
	return &MemoryVariableStorage{values: make(map[string]program.Value)}
}

// GetValue implements VariableStorage.
func (s *MemoryVariableStorage) GetValue(name string) (program.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[name]
	return value, ok
}

// SetValue implements VariableStorage.
func (s *MemoryVariableStorage) SetValue(name string, value program.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Clear implements VariableStorage.
func (s *MemoryVariableStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]program.Value)
}
