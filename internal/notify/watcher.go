package notify

import (
	"context"
	"log/slog"
	"sync"

	"live-quiz-service/internal/domain"
)

// Fetcher pulls authoritative quiz state after a signal. Both the engine and
// the HTTP client stub implement it.
type Fetcher interface {
	CurrentQuestion(ctx context.Context, quizID, participantID int64) (domain.QuestionView, error)
	Report(ctx context.Context, quizID int64) (domain.Report, error)
}

// Update is what a watcher hands to its consumer after each signal.
type Update struct {
	QuizID   int64
	Tag      Tag
	Question *domain.QuestionView
	Report   *domain.Report
	Err      error
}

// Watcher is the participant side of the protocol.
//
// Each quiz is followed by one task that waits on a single-event subscription,
// refetches state according to the tag and only then subscribes again. A
// transition written while the task is refetching is not observed; the next
// fetch still reads the latest state.
type Watcher struct {
	tree          Tree
	fetcher       Fetcher
	participantID int64
	logger        *slog.Logger

	updates chan Update
	wg      sync.WaitGroup
}

func NewWatcher(tree Tree, fetcher Fetcher, participantID int64, logger *slog.Logger) *Watcher {
	return &Watcher{
		tree:          tree,
		fetcher:       fetcher,
		participantID: participantID,
		logger:        logger,
		updates:       make(chan Update, 16),
	}
}

// Updates streams fetched state. It is never closed; stop reading when the
// context passed to Join is done.
func (w *Watcher) Updates() <-chan Update {
	return w.updates
}

// Join announces the participant under the quiz and starts following the quiz
// node until it signals end or ctx is cancelled. Call it after a successful
// registration.
func (w *Watcher) Join(ctx context.Context, quizID int64) error {
	if err := w.tree.EnsurePath(ctx, ParticipantPath(quizID, w.participantID)); err != nil {
		return err
	}
	events, err := w.tree.SubscribeOnce(ctx, QuizPath(quizID))
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go w.follow(ctx, quizID, events)
	return nil
}

// Wait blocks until every follow task has stopped.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) follow(ctx context.Context, quizID int64, events <-chan Event) {
	defer w.wg.Done()

	for {
		var (
			ev Event
			ok bool
		)
		select {
		case <-ctx.Done():
			return
		case ev, ok = <-events:
			if !ok {
				return
			}
		}

		tag := ev.Tag
		if tag == TagNone {
			current, err := w.tree.Data(ctx, QuizPath(quizID))
			if err != nil {
				w.logger.Warn("read quiz node failed", "quiz_id", quizID, "error", err)
			}
			tag = current
		}

		if update, ok := w.fetch(ctx, quizID, tag); ok {
			w.deliver(ctx, update)
		}
		if tag == TagEnd {
			return
		}

		next, err := w.tree.SubscribeOnce(ctx, QuizPath(quizID))
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("resubscribe failed", "quiz_id", quizID, "error", err)
			}
			return
		}
		events = next
	}
}

func (w *Watcher) fetch(ctx context.Context, quizID int64, tag Tag) (Update, bool) {
	update := Update{QuizID: quizID, Tag: tag}
	switch tag {
	case TagAdvance:
		q, err := w.fetcher.CurrentQuestion(ctx, quizID, w.participantID)
		if err != nil {
			update.Err = err
			break
		}
		update.Question = &q
	case TagEnd:
		r, err := w.fetcher.Report(ctx, quizID)
		if err != nil {
			update.Err = err
			break
		}
		update.Report = &r
	default:
		w.logger.Debug("ignoring quiz signal", "quiz_id", quizID, "tag", string(tag))
		return update, false
	}
	return update, true
}

// deliver never blocks the follow loop: a slow consumer loses the oldest update.
func (w *Watcher) deliver(ctx context.Context, update Update) {
	if ctx.Err() != nil {
		return
	}
	select {
	case w.updates <- update:
	default:
		select {
		case <-w.updates:
		default:
		}
		select {
		case w.updates <- update:
		default:
		}
	}
}
