package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/notify"
)

func TestTreeEnsurePathAndChildren(t *testing.T) {
	ctx := context.Background()
	tree := NewTree()

	if err := tree.EnsurePath(ctx, notify.ParticipantPath(1, 7)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := tree.EnsurePath(ctx, notify.ParticipantPath(1, 3)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// idempotent
	if err := tree.EnsurePath(ctx, notify.ParticipantPath(1, 3)); err != nil {
		t.Fatalf("ensure again: %v", err)
	}

	children, err := tree.Children(ctx, notify.ParticipantsPath(1))
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 2 || children[0] != "3" || children[1] != "7" {
		t.Fatalf("unexpected children %v", children)
	}
	if tag, err := tree.Data(ctx, notify.QuizPath(1)); err != nil || tag != notify.TagNone {
		t.Fatalf("expected unset data, got %q %v", tag, err)
	}
}

func TestTreeSetDataRequiresNode(t *testing.T) {
	tree := NewTree()
	if err := tree.SetData(context.Background(), notify.QuizPath(9), notify.TagAdvance); !errors.Is(err, notify.ErrNoNode) {
		t.Fatalf("expected ErrNoNode, got %v", err)
	}
}

func TestTreeWatchFiresOnce(t *testing.T) {
	ctx := context.Background()
	tree := NewTree()
	path := notify.QuizPath(1)
	_ = tree.EnsurePath(ctx, path)

	first, _ := tree.SubscribeOnce(ctx, path)
	second, _ := tree.SubscribeOnce(ctx, path)

	if err := tree.SetData(ctx, path, notify.TagAdvance); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tree.SetData(ctx, path, notify.TagEnd); err != nil {
		t.Fatalf("set: %v", err)
	}

	for _, ch := range []<-chan notify.Event{first, second} {
		ev, ok := <-ch
		if !ok || ev.Tag != notify.TagAdvance || ev.Type != notify.EventChanged {
			t.Fatalf("expected one advance event, got %+v ok=%v", ev, ok)
		}
		if _, ok := <-ch; ok {
			t.Fatalf("expected channel closed after the single event")
		}
	}

	if tag, _ := tree.Data(ctx, path); tag != notify.TagEnd {
		t.Fatalf("expected latest data end, got %q", tag)
	}
}

func TestTreeLateSubscriberMissesEarlierWrite(t *testing.T) {
	ctx := context.Background()
	tree := NewTree()
	path := notify.QuizPath(1)
	_ = tree.EnsurePath(ctx, path)
	_ = tree.SetData(ctx, path, notify.TagAdvance)

	ch, _ := tree.SubscribeOnce(ctx, path)
	select {
	case ev := <-ch:
		t.Fatalf("late subscriber must not see earlier write, got %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTreeCancelledWatchIsDropped(t *testing.T) {
	tree := NewTree()
	path := notify.QuizPath(1)
	_ = tree.EnsurePath(context.Background(), path)

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := tree.SubscribeOnce(ctx, path)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel without event")
		}
	case <-time.After(time.Second):
		t.Fatalf("watch not dropped after cancel")
	}
	if n := tree.Watchers(path); n != 0 {
		t.Fatalf("expected no pending watchers, got %d", n)
	}
}

func TestTreeClose(t *testing.T) {
	ctx := context.Background()
	tree := NewTree()
	path := notify.QuizPath(1)
	_ = tree.EnsurePath(ctx, path)
	ch, _ := tree.SubscribeOnce(ctx, path)

	if err := tree.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected pending watch closed")
	}
	if _, err := tree.SubscribeOnce(ctx, path); !errors.Is(err, notify.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
