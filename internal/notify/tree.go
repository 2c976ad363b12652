// Package notify implements the per-quiz progression signal on top of a
// hierarchical node tree with one-shot watches.
//
// Every quiz owns a node at /quiz/{id}. The server writes a Tag to it when the
// quiz advances or ends; each write wakes every watcher subscribed at that
// moment exactly once. Delivery is best-effort: the persisted quiz state is the
// source of truth and watchers re-synchronise by reading it.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// Tag is the data stored on a quiz node. The zero value means no transition yet.
type Tag string

const (
	TagNone    Tag = ""
	TagAdvance Tag = "advance"
	TagEnd     Tag = "end"
)

// ParseTag validates raw node data.
func ParseTag(raw string) (Tag, error) {
	switch Tag(raw) {
	case TagNone, TagAdvance, TagEnd:
		return Tag(raw), nil
	default:
		return TagNone, fmt.Errorf("notify: unknown tag %q", raw)
	}
}

// EventType describes why a watch fired.
type EventType string

const EventChanged EventType = "CHANGED"

// Event is the single delivery of a one-shot watch.
type Event struct {
	Path string
	Type EventType
	Tag  Tag
}

var (
	ErrNoNode = errors.New("notify: node does not exist")
	ErrClosed = errors.New("notify: tree closed")
)

// Tree is the node space shared by the server and participants.
type Tree interface {
	// EnsurePath creates path and its ancestors; existing nodes are left untouched.
	EnsurePath(ctx context.Context, path string) error
	// SetData stores tag on an existing node and fires its pending watches.
	SetData(ctx context.Context, path string, tag Tag) error
	// Data returns the tag currently stored on path.
	Data(ctx context.Context, path string) (Tag, error)
	// SubscribeOnce registers a watch on path. The returned channel yields at
	// most one Event and is then closed. The watch is live when SubscribeOnce returns.
	SubscribeOnce(ctx context.Context, path string) (<-chan Event, error)
	// Children lists the names of path's direct children, sorted.
	Children(ctx context.Context, path string) ([]string, error)
	// Close releases pending watches.
	Close() error
}

const Root = "/quiz"

func QuizPath(quizID int64) string {
	return fmt.Sprintf("%s/%d", Root, quizID)
}

func ParticipantsPath(quizID int64) string {
	return QuizPath(quizID) + "/participants"
}

func ParticipantPath(quizID, participantID int64) string {
	return fmt.Sprintf("%s/%d", ParticipantsPath(quizID), participantID)
}
