package memory

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"live-quiz-service/internal/notify"
)

// Tree is an in-process notify.Tree. It is the default when no Redis is configured
// and the reference implementation of the one-shot watch rules.
type Tree struct {
	mu       sync.Mutex
	closed   bool
	nodes    map[string]*treeNode
	watchers map[string]map[*watch]struct{}
}

type treeNode struct {
	data     notify.Tag
	children map[string]struct{}
}

type watch struct {
	ch   chan notify.Event
	stop func() bool
}

func NewTree() *Tree {
	return &Tree{
		nodes:    map[string]*treeNode{"/": {children: make(map[string]struct{})}},
		watchers: make(map[string]map[*watch]struct{}),
	}
}

func (t *Tree) EnsurePath(_ context.Context, p string) error {
	p = clean(p)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return notify.ErrClosed
	}

	parent := "/"
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if part == "" {
			continue
		}
		current := path.Join(parent, part)
		if _, ok := t.nodes[current]; !ok {
			t.nodes[current] = &treeNode{children: make(map[string]struct{})}
		}
		t.nodes[parent].children[part] = struct{}{}
		parent = current
	}
	return nil
}

func (t *Tree) SetData(_ context.Context, p string, tag notify.Tag) error {
	p = clean(p)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return notify.ErrClosed
	}
	node, ok := t.nodes[p]
	if !ok {
		t.mu.Unlock()
		return notify.ErrNoNode
	}
	node.data = tag
	pending := t.watchers[p]
	delete(t.watchers, p)
	t.mu.Unlock()

	ev := notify.Event{Path: p, Type: notify.EventChanged, Tag: tag}
	for w := range pending {
		w.stop()
		// buffered with room for exactly this event
		w.ch <- ev
		close(w.ch)
	}
	return nil
}

func (t *Tree) Data(_ context.Context, p string) (notify.Tag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.nodes[clean(p)]
	if !ok {
		return notify.TagNone, notify.ErrNoNode
	}
	return node.data, nil
}

// SubscribeOnce registers a watch; cancelling ctx before it fires drops it.
func (t *Tree) SubscribeOnce(ctx context.Context, p string) (<-chan notify.Event, error) {
	p = clean(p)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, notify.ErrClosed
	}

	w := &watch{ch: make(chan notify.Event, 1)}
	if t.watchers[p] == nil {
		t.watchers[p] = make(map[*watch]struct{})
	}
	t.watchers[p][w] = struct{}{}
	w.stop = context.AfterFunc(ctx, func() { t.drop(p, w) })
	return w.ch, nil
}

func (t *Tree) drop(p string, w *watch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if set, ok := t.watchers[p]; ok {
		if _, ok := set[w]; ok {
			delete(set, w)
			close(w.ch)
		}
	}
}

func (t *Tree) Children(_ context.Context, p string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.nodes[clean(p)]
	if !ok {
		return nil, notify.ErrNoNode
	}
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close drops every pending watch; their channels close without an event.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for p, set := range t.watchers {
		for w := range set {
			w.stop()
			close(w.ch)
		}
		delete(t.watchers, p)
	}
	return nil
}

// Watchers reports how many watches are pending on p.
func (t *Tree) Watchers(p string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watchers[clean(p)])
}

func clean(p string) string {
	return path.Clean("/" + p)
}
