package review

import (
	"context"
	"sync"
)

// StaticProvider answers every item with the same action
type StaticProvider struct {
	Action Action
}

// Decide returns the configured action
func (p StaticProvider) Decide(_ context.Context, _ Item) (Decision, error) {
	return Decision{Action: p.Action}, nil
}

// ScriptedProvider replays a fixed queue of decisions and quits once it runs out
type ScriptedProvider struct {
	mu        sync.Mutex
	decisions []Decision
	seen      []Item
}

// NewScriptedProvider creates a provider that returns decisions in order
func NewScriptedProvider(decisions ...Decision) *ScriptedProvider {
	return &ScriptedProvider{decisions: decisions}
}

// Decide pops the next decision
func (p *ScriptedProvider) Decide(_ context.Context, item Item) (Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen = append(p.seen, item)
	if len(p.decisions) == 0 {
		return Quit(), nil
	}
	d := p.decisions[0]
	p.decisions = p.decisions[1:]
	return d, nil
}

// Seen returns every item presented so far
func (p *ScriptedProvider) Seen() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Item(nil), p.seen...)
}
