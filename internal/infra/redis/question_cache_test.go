package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	store := memory.NewStore()
	id, _ := store.CreateQuestion(context.Background(), sampleQuestion())
	loader := &countingLoader{QuestionLoader: store}
	cache := NewQuestionCache(client, loader, time.Minute)

	q, err := cache.GetQuestion(context.Background(), id)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if q.Correct != 2 || len(q.Answers) != 3 {
		t.Fatalf("unexpected question %+v", q)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("question:1") {
		t.Fatalf("expected question cached under question:1")
	}

	// Second call should hit cache, loader not incremented.
	q, _ = cache.GetQuestion(context.Background(), id)
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if q.Text != "2+2?" {
		t.Fatalf("expected cached text, got %q", q.Text)
	}

	mr.FastForward(2 * time.Minute)
	_, _ = cache.GetQuestion(context.Background(), id)
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestion(ctx context.Context, questionID int64) (domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestion(ctx, questionID)
}

func sampleQuestion() domain.Question {
	return domain.Question{
		Text:    "2+2?",
		Answers: []string{"3", "4", "5"},
		Correct: 2,
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
