package notify

import (
	"context"
	"fmt"
	"log/slog"

	"live-quiz-service/internal/domain"
)

// Publisher is the server side of the protocol. It satisfies app.Notifier.
type Publisher struct {
	tree   Tree
	logger *slog.Logger
}

func NewPublisher(tree Tree, logger *slog.Logger) *Publisher {
	return &Publisher{tree: tree, logger: logger}
}

// QuizCreated creates the quiz node and its participant namespace.
func (p *Publisher) QuizCreated(ctx context.Context, quizID int64) error {
	if err := p.tree.EnsurePath(ctx, QuizPath(quizID)); err != nil {
		return fmt.Errorf("create quiz node: %w", err)
	}
	if err := p.tree.EnsurePath(ctx, ParticipantsPath(quizID)); err != nil {
		return fmt.Errorf("create participants node: %w", err)
	}
	return nil
}

// QuizLaunched tells participants registered during PREPARED to pull the first question.
func (p *Publisher) QuizLaunched(ctx context.Context, quizID int64) error {
	return p.signal(ctx, quizID, TagAdvance)
}

// QuizAdvanced publishes "advance" or "end" depending on the transition.
func (p *Publisher) QuizAdvanced(ctx context.Context, quizID int64, result domain.AdvanceResult) error {
	tag := TagAdvance
	if result == domain.AdvanceEnded {
		tag = TagEnd
	}
	return p.signal(ctx, quizID, tag)
}

func (p *Publisher) signal(ctx context.Context, quizID int64, tag Tag) error {
	path := QuizPath(quizID)
	if err := p.tree.SetData(ctx, path, tag); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	// Listing is informational only.
	participants, err := p.tree.Children(ctx, ParticipantsPath(quizID))
	if err != nil {
		p.logger.Debug("list participants failed", "quiz_id", quizID, "error", err)
		return nil
	}
	p.logger.Info("quiz signal published",
		"quiz_id", quizID,
		"tag", string(tag),
		"participants", participants,
	)
	return nil
}
