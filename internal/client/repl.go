package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/notify"
)

const prompt = "command > "

// REPL reads commands for one participant, runs them against the server and
// prints whatever the participant's watcher fetches in the background.
type REPL struct {
	stub          *Stub
	watcher       *notify.Watcher
	participantID int64
	logger        *slog.Logger

	mu  sync.Mutex
	out io.Writer
}

func NewREPL(stub *Stub, tree notify.Tree, participantID int64, out io.Writer, logger *slog.Logger) *REPL {
	return &REPL{
		stub:          stub,
		watcher:       notify.NewWatcher(tree, stub, participantID, logger),
		participantID: participantID,
		logger:        logger,
		out:           out,
	}
}

// Run processes lines from in until EXIT, EOF or ctx is done.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	watchCtx, cancel := context.WithCancel(ctx)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		r.printUpdates(watchCtx)
	}()
	defer func() {
		cancel()
		r.watcher.Wait()
		<-printed
	}()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-watchCtx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		r.print(prompt)
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-readErr:
				return err
			default:
				return nil
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := Parse(line)
		if err != nil {
			r.println("Invalid Input...", err)
			continue
		}
		if _, exit := cmd.(Exit); exit {
			return nil
		}

		result, err := r.Execute(watchCtx, cmd)
		if err != nil {
			r.println("SERVER ERROR:", describe(err))
			continue
		}
		r.println("SERVER RESPONSE:", encode(result))
	}
}

// Execute runs one command. A successful Register also starts following the quiz.
func (r *REPL) Execute(ctx context.Context, cmd Command) (any, error) {
	switch c := cmd.(type) {
	case CreateQuestion:
		id, err := r.stub.CreateQuestion(ctx, c.Text, c.Answers, c.Correct)
		return map[string]int64{"id": id}, err
	case CreateQuestionSet:
		id, err := r.stub.CreateQuestionSet(ctx, c.QuestionIDs)
		return map[string]int64{"id": id}, err
	case CreateQuiz:
		return r.stub.CreateQuiz(ctx, c.SetID, c.Points)
	case Launch:
		if err := r.stub.LaunchQuiz(ctx, c.QuizID); err != nil {
			return nil, err
		}
		return map[string]any{"quizId": c.QuizID, "state": domain.StateOngoing}, nil
	case Next:
		result, err := r.stub.AdvanceQuiz(ctx, c.QuizID)
		return map[string]any{"quizId": c.QuizID, "result": result}, err
	case Register:
		participants, err := r.stub.RegisterParticipant(ctx, c.QuizID, r.participantID)
		if err != nil {
			return nil, err
		}
		if err := r.watcher.Join(ctx, c.QuizID); err != nil {
			r.logger.Warn("follow quiz failed", "quiz_id", c.QuizID, "error", err)
		}
		return map[string]any{"quizId": c.QuizID, "participants": participants}, nil
	case Current:
		return r.stub.CurrentQuestion(ctx, c.QuizID, r.participantID)
	case Answer:
		correct, err := r.stub.SubmitAnswer(ctx, c.QuizID, r.participantID, c.Choice)
		return map[string]any{"quizId": c.QuizID, "correct": correct}, err
	case Report:
		return r.stub.Report(ctx, c.QuizID)
	case GetQuestion:
		return r.stub.GetQuestion(ctx, c.QuestionID)
	case QuizStatus:
		return r.stub.QuizState(ctx, c.QuizID)
	case Exit:
		return nil, nil
	default:
		return nil, fmt.Errorf("unhandled command %T", cmd)
	}
}

func (r *REPL) printUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-r.watcher.Updates():
			switch {
			case u.Err != nil:
				r.println("NOTIFICATION", string(u.Tag), "quiz", u.QuizID, "failed:", describe(u.Err))
			case u.Report != nil:
				r.println("NOTIFICATION", string(u.Tag), "quiz", u.QuizID, "report:", encode(u.Report))
			case u.Question != nil:
				r.println("NOTIFICATION", string(u.Tag), "quiz", u.QuizID, "question:", encode(u.Question))
			}
		}
	}
}

func (r *REPL) print(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, s)
}

func (r *REPL) println(args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, args...)
}

func describe(err error) string {
	var e *domain.Error
	if errors.As(err, &e) {
		return e.Kind.String() + ": " + e.Message
	}
	return err.Error()
}

func encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
