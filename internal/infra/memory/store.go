package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store.
// One mutex serialises every write, which makes UpdateQuiz an atomic read-modify-write.
type Store struct {
	mu    sync.RWMutex
	clock func() time.Time

	questions map[int64]domain.Question
	sets      map[int64]domain.QuestionSet
	quizzes   map[int64]domain.Quiz
	answers   map[int64][]domain.AnswerRecord
	answered  map[answerKey]struct{}

	lastQuestionID int64
	lastSetID      int64
	lastQuizID     int64
}

type answerKey struct {
	quizID        int64
	questionIndex int
	participantID int64
}

func NewStore() *Store {
	return &Store{
		clock:     time.Now,
		questions: make(map[int64]domain.Question),
		sets:      make(map[int64]domain.QuestionSet),
		quizzes:   make(map[int64]domain.Quiz),
		answers:   make(map[int64][]domain.AnswerRecord),
		answered:  make(map[answerKey]struct{}),
	}
}

func (s *Store) CreateQuestion(_ context.Context, q domain.Question) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuestionID++
	q.ID = s.lastQuestionID
	q.Answers = slices.Clone(q.Answers)
	s.questions[q.ID] = q
	return q.ID, nil
}

func (s *Store) LoadQuestion(_ context.Context, questionID int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrRecordNotFound
	}
	q.Answers = slices.Clone(q.Answers)
	return q, nil
}

func (s *Store) CreateQuestionSet(_ context.Context, questionIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSetID++
	s.sets[s.lastSetID] = domain.QuestionSet{ID: s.lastSetID, QuestionIDs: slices.Clone(questionIDs)}
	return s.lastSetID, nil
}

func (s *Store) QuestionSet(_ context.Context, setID int64) (domain.QuestionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[setID]
	if !ok {
		return domain.QuestionSet{}, domain.ErrRecordNotFound
	}
	set.QuestionIDs = slices.Clone(set.QuestionIDs)
	return set, nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuizID++
	quiz.ID = s.lastQuizID
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = s.clock()
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return quiz.ID, nil
}

func (s *Store) Quiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrRecordNotFound
	}
	return cloneQuiz(quiz), nil
}

// UpdateQuiz applies fn to a copy of the quiz and stores it only if fn succeeds.
func (s *Store) UpdateQuiz(_ context.Context, quizID int64, fn func(*domain.Quiz) error) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrRecordNotFound
	}
	next := cloneQuiz(current)
	if err := fn(&next); err != nil {
		return domain.Quiz{}, err
	}
	next.ID = quizID
	s.quizzes[quizID] = cloneQuiz(next)
	return next, nil
}

func (s *Store) InsertAnswer(_ context.Context, rec domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[rec.QuizID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if quiz.State != domain.StateOngoing || quiz.QuestionIndex != rec.QuestionIndex {
		return domain.ErrStaleAnswer
	}
	key := answerKey{quizID: rec.QuizID, questionIndex: rec.QuestionIndex, participantID: rec.ParticipantID}
	if _, dup := s.answered[key]; dup {
		return domain.ErrDuplicateAnswer
	}
	s.answered[key] = struct{}{}
	s.answers[rec.QuizID] = append(s.answers[rec.QuizID], rec)
	return nil
}

func (s *Store) Answers(_ context.Context, quizID int64) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.answers[quizID]), nil
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	q.Points = slices.Clone(q.Points)
	q.Participants = slices.Clone(q.Participants)
	return q
}
