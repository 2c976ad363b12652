package redis

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/notify"
)

// Tree is a Redis-backed notify.Tree shared by the server and every participant process.
//
// Layout:
//   - HSET tree:{path} data {tag}       node existence + data
//   - SADD tree:{path}:children {name}  child names
//   - PUBLISH tree:watch:{path} {tag}   fires watches
//
// A watch is one SUBSCRIBE that is torn down after its first message, so
// writes published while nobody is subscribed are never seen.
type Tree struct {
	client *redis.Client

	mu     sync.Mutex
	closed bool
	subs   map[*redis.PubSub]struct{}
}

func NewTree(client *redis.Client) *Tree {
	return &Tree{
		client: client,
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

func (t *Tree) EnsurePath(ctx context.Context, p string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	p = clean(p)

	pipe := t.client.Pipeline()
	parent := "/"
	pipe.HSetNX(ctx, nodeKey(parent), "data", "")
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if part == "" {
			continue
		}
		current := path.Join(parent, part)
		pipe.HSetNX(ctx, nodeKey(current), "data", "")
		pipe.SAdd(ctx, childrenKey(parent), part)
		parent = current
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (t *Tree) SetData(ctx context.Context, p string, tag notify.Tag) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	p = clean(p)

	n, err := t.client.Exists(ctx, nodeKey(p)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return notify.ErrNoNode
	}

	pipe := t.client.Pipeline()
	pipe.HSet(ctx, nodeKey(p), "data", string(tag))
	pipe.Publish(ctx, watchChannel(p), string(tag))
	_, err = pipe.Exec(ctx)
	return err
}

func (t *Tree) Data(ctx context.Context, p string) (notify.Tag, error) {
	raw, err := t.client.HGet(ctx, nodeKey(clean(p)), "data").Result()
	if errors.Is(err, redis.Nil) {
		return notify.TagNone, notify.ErrNoNode
	}
	if err != nil {
		return notify.TagNone, err
	}
	return notify.ParseTag(raw)
}

func (t *Tree) SubscribeOnce(ctx context.Context, p string) (<-chan notify.Event, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	p = clean(p)

	ps := t.client.Subscribe(ctx, watchChannel(p))
	// wait for the subscription confirmation so the watch is live on return
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = ps.Close()
		return nil, notify.ErrClosed
	}
	t.subs[ps] = struct{}{}
	t.mu.Unlock()

	out := make(chan notify.Event, 1)
	go func() {
		defer close(out)
		defer t.release(ps)

		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return
		}
		// unknown payloads still fire the watch; the reader falls back to Data
		tag, _ := notify.ParseTag(msg.Payload)
		out <- notify.Event{Path: p, Type: notify.EventChanged, Tag: tag}
	}()
	return out, nil
}

func (t *Tree) Children(ctx context.Context, p string) ([]string, error) {
	p = clean(p)
	n, err := t.client.Exists(ctx, nodeKey(p)).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, notify.ErrNoNode
	}
	names, err := t.client.SMembers(ctx, childrenKey(p)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Close tears down pending watches. The Redis client itself belongs to the caller.
func (t *Tree) Close() error {
	t.mu.Lock()
	t.closed = true
	subs := make([]*redis.PubSub, 0, len(t.subs))
	for ps := range t.subs {
		subs = append(subs, ps)
	}
	t.mu.Unlock()

	var errs []error
	for _, ps := range subs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tree) release(ps *redis.PubSub) {
	t.mu.Lock()
	delete(t.subs, ps)
	t.mu.Unlock()
	_ = ps.Close()
}

func (t *Tree) checkOpen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return notify.ErrClosed
	}
	return nil
}

func clean(p string) string {
	return path.Clean("/" + p)
}

func nodeKey(p string) string {
	return "tree:" + p
}

func childrenKey(p string) string {
	return "tree:" + p + ":children"
}

func watchChannel(p string) string {
	return "tree:watch:" + p
}
