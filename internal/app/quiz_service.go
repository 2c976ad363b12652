package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"live-quiz-service/internal/domain"
)

// Store abstracts how quiz data is persisted (in-memory, Postgres).
// UpdateQuiz must run fn as one atomic read-modify-write. InsertAnswer must
// return domain.ErrDuplicateAnswer when the (quiz, question index, participant) triple exists,
// and domain.ErrStaleAnswer unless the quiz is ONGOING at the record's index when it is written.
type Store interface {
	CreateQuestion(ctx context.Context, q domain.Question) (int64, error)
	CreateQuestionSet(ctx context.Context, questionIDs []int64) (int64, error)
	QuestionSet(ctx context.Context, setID int64) (domain.QuestionSet, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (int64, error)
	Quiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quizID int64, fn func(*domain.Quiz) error) (domain.Quiz, error)
	InsertAnswer(ctx context.Context, rec domain.AnswerRecord) error
	Answers(ctx context.Context, quizID int64) ([]domain.AnswerRecord, error)
}

// QuestionRepository loads questions (from cache/backing store).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, questionID int64) (domain.Question, error)
}

// Notifier publishes quiz progression to participants. Failures never undo a state change.
type Notifier interface {
	QuizCreated(ctx context.Context, quizID int64) error
	QuizLaunched(ctx context.Context, quizID int64) error
	QuizAdvanced(ctx context.Context, quizID int64, result domain.AdvanceResult) error
}

// MaxPoints bounds a single question's score so every store can hold it.
const MaxPoints = math.MaxInt32

// QuizService is the quiz coordination engine.
type QuizService struct {
	store     Store
	questions QuestionRepository
	notifier  Notifier
	logger    *slog.Logger
}

func NewQuizService(store Store, questions QuestionRepository, notifier Notifier, logger *slog.Logger) *QuizService {
	return &QuizService{
		store:     store,
		questions: questions,
		notifier:  notifier,
		logger:    logger,
	}
}

// CreateQuestion stores a new question. correct is 1-based.
func (s *QuizService) CreateQuestion(ctx context.Context, text string, answers []string, correct int) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, domain.InvalidArgument("question text must not be empty")
	}
	if len(answers) == 0 {
		return 0, domain.InvalidArgument("question needs at least one candidate answer")
	}
	if correct < 1 || correct > len(answers) {
		return 0, domain.InvalidArgument("right answer must be a number between 1 and %d", len(answers))
	}
	id, err := s.store.CreateQuestion(ctx, domain.Question{Text: text, Answers: answers, Correct: correct})
	if err != nil {
		return 0, fmt.Errorf("create question: %w", err)
	}
	return id, nil
}

// GetQuestion returns a question without its correct index.
func (s *QuizService) GetQuestion(ctx context.Context, questionID int64) (domain.QuestionView, error) {
	q, err := s.question(ctx, questionID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	return domain.ViewOf(q), nil
}

// CreateQuestionSet stores an ordered set; every question must already exist.
func (s *QuizService) CreateQuestionSet(ctx context.Context, questionIDs []int64) (int64, error) {
	if len(questionIDs) == 0 {
		return 0, domain.InvalidArgument("question set needs at least one question")
	}
	for _, id := range questionIDs {
		if _, err := s.question(ctx, id); err != nil {
			return 0, err
		}
	}
	id, err := s.store.CreateQuestionSet(ctx, questionIDs)
	if err != nil {
		return 0, fmt.Errorf("create question set: %w", err)
	}
	return id, nil
}

func (s *QuizService) GetQuestionSet(ctx context.Context, setID int64) (domain.QuestionSet, error) {
	set, err := s.store.QuestionSet(ctx, setID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.QuestionSet{}, domain.NotFound("question set %d doesn't exist", setID)
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load question set: %w", err)
	}
	return set, nil
}

// CreateQuiz creates a PREPARED quiz over a question set and its notification node.
func (s *QuizService) CreateQuiz(ctx context.Context, setID int64, points []int) (domain.Quiz, error) {
	set, err := s.GetQuestionSet(ctx, setID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if len(points) != len(set.QuestionIDs) {
		return domain.Quiz{}, domain.InvalidArgument(
			"number of scores (%d) doesn't match number of questions in set (%d)", len(points), len(set.QuestionIDs))
	}
	for _, p := range points {
		if p < 0 {
			return domain.Quiz{}, domain.InvalidArgument("scores must not be negative")
		}
		if p > MaxPoints {
			return domain.Quiz{}, domain.InvalidArgument("scores must not exceed %d", MaxPoints)
		}
	}

	quiz := domain.Quiz{
		SetID:         setID,
		Points:        slices.Clone(points),
		QuestionIndex: 0,
		State:         domain.StatePrepared,
	}
	id, err := s.store.CreateQuiz(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}

	if err := s.notifier.QuizCreated(ctx, id); err != nil {
		s.logger.Warn("create quiz node failed", "quiz_id", id, "error", err)
	}
	return s.QuizState(ctx, id)
}

// QuizState returns the persisted quiz: the authoritative view participants resync from.
func (s *QuizService) QuizState(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz, err := s.store.Quiz(ctx, quizID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Quiz{}, quizNotFound(quizID)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

// LaunchQuiz moves a PREPARED quiz to ONGOING.
func (s *QuizService) LaunchQuiz(ctx context.Context, quizID int64) error {
	_, err := s.updateQuiz(ctx, quizID, func(q *domain.Quiz) error {
		if q.State != domain.StatePrepared {
			return domain.InvalidState("quiz %d can't be launched while %s", quizID, q.State)
		}
		q.State = domain.StateOngoing
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("quiz launched", "quiz_id", quizID)
	if err := s.notifier.QuizLaunched(ctx, quizID); err != nil {
		s.logger.Warn("launch signal failed", "quiz_id", quizID, "error", err)
	}
	return nil
}

// AdvanceQuiz moves to the next question, or ends the quiz after the last one.
func (s *QuizService) AdvanceQuiz(ctx context.Context, quizID int64) (domain.AdvanceResult, error) {
	var result domain.AdvanceResult
	quiz, err := s.updateQuiz(ctx, quizID, func(q *domain.Quiz) error {
		if q.State != domain.StateOngoing {
			return domain.InvalidState("quiz %d is currently not ongoing", quizID)
		}
		if q.QuestionIndex >= q.QuestionCount()-1 {
			q.State = domain.StateEnded
			result = domain.AdvanceEnded
			return nil
		}
		q.QuestionIndex++
		result = domain.AdvanceAdvanced
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("quiz advanced", "quiz_id", quizID, "result", string(result), "question_index", quiz.QuestionIndex)
	if err := s.notifier.QuizAdvanced(ctx, quizID, result); err != nil {
		s.logger.Warn("advance signal failed", "quiz_id", quizID, "error", err)
	}
	return result, nil
}

// RegisterParticipant adds a participant to a PREPARED quiz and returns the updated set.
func (s *QuizService) RegisterParticipant(ctx context.Context, quizID, participantID int64) ([]int64, error) {
	quiz, err := s.updateQuiz(ctx, quizID, func(q *domain.Quiz) error {
		if q.State != domain.StatePrepared {
			return domain.InvalidState("quiz %d is not accepting new participants at this time", quizID)
		}
		if q.HasParticipant(participantID) {
			return domain.Conflict("participant %d is already registered in quiz %d", participantID, quizID)
		}
		q.Participants = append(q.Participants, participantID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quiz.Participants, nil
}

// CurrentQuestion returns the question a registered participant should answer now.
func (s *QuizService) CurrentQuestion(ctx context.Context, quizID, participantID int64) (domain.QuestionView, error) {
	quiz, question, err := s.currentQuestion(ctx, quizID, participantID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	view := domain.ViewOf(question)
	view.QuizID = quiz.ID
	view.Index = quiz.QuestionIndex
	return view, nil
}

// SubmitAnswer records choice (1-based) for the current question and reports whether it is correct.
func (s *QuizService) SubmitAnswer(ctx context.Context, quizID, participantID int64, choice int) (bool, error) {
	quiz, question, err := s.currentQuestion(ctx, quizID, participantID)
	if err != nil {
		return false, err
	}
	if choice < 1 || choice > len(question.Answers) {
		return false, domain.InvalidArgument("invalid answer (answer must be a number between 1 and %d)", len(question.Answers))
	}

	err = s.store.InsertAnswer(ctx, domain.AnswerRecord{
		QuizID:        quizID,
		QuestionIndex: quiz.QuestionIndex,
		ParticipantID: participantID,
		Choice:        choice,
	})
	if errors.Is(err, domain.ErrDuplicateAnswer) {
		return false, domain.Conflict("participant %d has already answered question %d", participantID, quiz.QuestionIndex)
	}
	if errors.Is(err, domain.ErrStaleAnswer) || errors.Is(err, domain.ErrRecordNotFound) {
		return false, domain.InvalidState("quiz %d moved past question %d", quizID, quiz.QuestionIndex)
	}
	if err != nil {
		return false, fmt.Errorf("insert answer: %w", err)
	}
	return choice == question.Correct, nil
}

// Report folds the answer records of an ENDED quiz into per-participant scores.
// A quiz without any answer record has no report. Once one exists, registered
// participants who never answered are listed with 0.
func (s *QuizService) Report(ctx context.Context, quizID int64) (domain.Report, error) {
	quiz, err := s.QuizState(ctx, quizID)
	if err != nil {
		return domain.Report{}, err
	}
	if quiz.State != domain.StateEnded {
		return domain.Report{}, domain.InvalidState("quiz %d has not ended", quizID)
	}

	answers, err := s.store.Answers(ctx, quizID)
	if err != nil {
		return domain.Report{}, fmt.Errorf("load answers: %w", err)
	}
	if len(answers) == 0 {
		return domain.Report{}, domain.NotFound("quiz %d has no registered answers, unable to calculate scores", quizID)
	}

	set, err := s.GetQuestionSet(ctx, quiz.SetID)
	if err != nil {
		return domain.Report{}, err
	}

	scores := make(map[int64]int, len(quiz.Participants))
	for _, p := range quiz.Participants {
		scores[p] = 0
	}
	for _, rec := range answers {
		if rec.QuestionIndex < 0 || rec.QuestionIndex >= len(set.QuestionIDs) || rec.QuestionIndex >= len(quiz.Points) {
			return domain.Report{}, fmt.Errorf("answer for question index %d outside quiz %d", rec.QuestionIndex, quizID)
		}
		question, err := s.question(ctx, set.QuestionIDs[rec.QuestionIndex])
		if err != nil {
			return domain.Report{}, err
		}
		scores[rec.ParticipantID] += scoreAnswer(question, quiz.Points[rec.QuestionIndex], rec.Choice)
	}
	return domain.Report{QuizID: quizID, Scores: scores}, nil
}

func scoreAnswer(question domain.Question, points, choice int) int {
	if choice == question.Correct {
		return points
	}
	return 0
}

// currentQuestion runs the checks shared by reads and answers of the current question.
func (s *QuizService) currentQuestion(ctx context.Context, quizID, participantID int64) (domain.Quiz, domain.Question, error) {
	quiz, err := s.QuizState(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, domain.Question{}, err
	}
	if quiz.State != domain.StateOngoing {
		return domain.Quiz{}, domain.Question{}, domain.InvalidState("quiz %d is currently not ongoing", quizID)
	}
	if !quiz.HasParticipant(participantID) {
		return domain.Quiz{}, domain.Question{}, domain.Forbidden("participant %d is not registered in quiz %d", participantID, quizID)
	}

	set, err := s.GetQuestionSet(ctx, quiz.SetID)
	if err != nil {
		return domain.Quiz{}, domain.Question{}, err
	}
	if quiz.QuestionIndex < 0 || quiz.QuestionIndex >= len(set.QuestionIDs) {
		return domain.Quiz{}, domain.Question{}, fmt.Errorf("quiz %d question index %d out of range", quizID, quiz.QuestionIndex)
	}
	question, err := s.question(ctx, set.QuestionIDs[quiz.QuestionIndex])
	if err != nil {
		return domain.Quiz{}, domain.Question{}, err
	}
	return quiz, question, nil
}

func (s *QuizService) question(ctx context.Context, questionID int64) (domain.Question, error) {
	q, err := s.questions.GetQuestion(ctx, questionID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Question{}, domain.NotFound("question %d doesn't exist", questionID)
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (s *QuizService) updateQuiz(ctx context.Context, quizID int64, fn func(*domain.Quiz) error) (domain.Quiz, error) {
	quiz, err := s.store.UpdateQuiz(ctx, quizID, fn)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Quiz{}, quizNotFound(quizID)
	}
	if err != nil && domain.KindOf(err) == domain.KindInternal {
		return domain.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	return quiz, err
}

func quizNotFound(quizID int64) error {
	return domain.NotFound("quiz %d doesn't exist", quizID)
}
