package promptgraph

import (
	"fmt"
	"strings"
)

// Record pushes text onto a text prompt's undo stack and clears its redo
// stack. The node's current text is not changed.
func (g *Graph) Record(id, text string) error {
	return g.withText(id, func(d *TextPromptData) {
		d.History.Push(text, g.now())
	})
}

// EditText commits a new text for a text prompt. When the text actually
// changes, the previous text is recorded first so Undo restores it.
func (g *Graph) EditText(id, text string) error {
	return g.withText(id, func(d *TextPromptData) {
		if d.Text == text {
			return
		}
		d.History.Push(d.Text, g.now())
		d.Text = text
	})
}

// Undo restores the most recent recorded text of a text prompt.
// It returns false, without error, when the undo stack is empty.
func (g *Graph) Undo(id string) (bool, error) {
	var ok bool
	err := g.withText(id, func(d *TextPromptData) {
		var text string
		if text, ok = d.History.Undo(d.Text, g.now()); ok {
			d.Text = text
		}
	})
	return ok, err
}

// Redo re-applies the most recently undone text of a text prompt.
// It returns false, without error, when the redo stack is empty.
func (g *Graph) Redo(id string) (bool, error) {
	var ok bool
	err := g.withText(id, func(d *TextPromptData) {
		var text string
		if text, ok = d.History.Redo(d.Text, g.now()); ok {
			d.Text = text
		}
	})
	return ok, err
}

// CaptureSavePoint checkpoints every text prompt whose non-blank text differs
// from its latest history entry. It returns the number of entries pushed;
// calling it again without edits pushes nothing.
func (g *Graph) CaptureSavePoint() int {
	g.mu.Lock()
	var changed []Node
	for _, id := range g.v.order {
		n := g.v.nodes[id]
		d, ok := n.Data.(*TextPromptData)
		if !ok || strings.TrimSpace(d.Text) == "" {
			continue
		}
		if latest, ok := d.History.Latest(); ok && latest.Text == d.Text {
			continue
		}
		d.History.Push(d.Text, g.now())
		changed = append(changed, n.Clone())
	}
	g.mu.Unlock()

	g.notify(changed)
	return len(changed)
}

// withText applies fn to a text prompt's payload. A node's kind never
// changes, so checking it before the update is safe.
func (g *Graph) withText(id string, fn func(*TextPromptData)) error {
	n, ok := g.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.Kind() != KindTextPrompt {
		return fmt.Errorf("%w: %s is %s", ErrNotTextPrompt, id, n.Kind())
	}
	return g.ApplyUpdate(id, func(n *Node) {
		fn(n.TextPrompt())
	})
}
