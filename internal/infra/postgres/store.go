package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// uniqueViolation is the SQLSTATE raised by the answer primary key.
const uniqueViolation = "23505"

// Store persists quiz data in Postgres. It satisfies app.Store and the question loaders.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateQuestion(ctx context.Context, q domain.Question) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO question (text, answers, correct) VALUES ($1, $2, $3) RETURNING id`,
		q.Text, q.Answers, q.Correct,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}

func (s *Store) LoadQuestion(ctx context.Context, questionID int64) (domain.Question, error) {
	var q domain.Question
	err := s.pool.QueryRow(ctx,
		`SELECT id, text, answers, correct FROM question WHERE id=$1`, questionID,
	).Scan(&q.ID, &q.Text, &q.Answers, &q.Correct)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (s *Store) CreateQuestionSet(ctx context.Context, questionIDs []int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO question_set (question_ids) VALUES ($1) RETURNING id`, questionIDs,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question set: %w", err)
	}
	return id, nil
}

func (s *Store) QuestionSet(ctx context.Context, setID int64) (domain.QuestionSet, error) {
	set := domain.QuestionSet{ID: setID}
	err := s.pool.QueryRow(ctx,
		`SELECT question_ids FROM question_set WHERE id=$1`, setID,
	).Scan(&set.QuestionIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSet{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load question set: %w", err)
	}
	return set, nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) (int64, error) {
	participants := quiz.Participants
	if participants == nil {
		participants = []int64{}
	}
	points, err := toInt32s(quiz.Points)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO quiz (set_id, points, question_index, state, participants)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		quiz.SetID, points, quiz.QuestionIndex, string(quiz.State), participants,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quiz: %w", err)
	}
	return id, nil
}

func (s *Store) Quiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz, err := scanQuiz(s.pool.QueryRow(ctx, selectQuiz+` WHERE id=$1`, quizID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

// UpdateQuiz locks the quiz row, applies fn and writes the mutable columns back in one transaction.
func (s *Store) UpdateQuiz(ctx context.Context, quizID int64, fn func(*domain.Quiz) error) (domain.Quiz, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	quiz, err := scanQuiz(tx.QueryRow(ctx, selectQuiz+` WHERE id=$1 FOR UPDATE`, quizID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("lock quiz: %w", err)
	}

	if err := fn(&quiz); err != nil {
		return domain.Quiz{}, err
	}

	participants := quiz.Participants
	if participants == nil {
		participants = []int64{}
	}
	_, err = tx.Exec(ctx,
		`UPDATE quiz SET question_index=$1, state=$2, participants=$3 WHERE id=$4`,
		quiz.QuestionIndex, string(quiz.State), participants, quizID,
	)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Quiz{}, fmt.Errorf("commit: %w", err)
	}
	return quiz, nil
}

// InsertAnswer records the answer only while the quiz is ONGOING at rec.QuestionIndex.
// The share lock holds off a concurrent UpdateQuiz until the insert commits.
func (s *Store) InsertAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO answer (quiz_id, question_index, participant_id, choice)
		 SELECT id, question_index, $3::bigint, $4::integer FROM quiz
		 WHERE id=$1 AND state=$5 AND question_index=$2
		 FOR SHARE`,
		rec.QuizID, rec.QuestionIndex, rec.ParticipantID, rec.Choice, string(domain.StateOngoing),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateAnswer
	}
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleAnswer
	}
	return nil
}

func (s *Store) Answers(ctx context.Context, quizID int64) ([]domain.AnswerRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT quiz_id, question_index, participant_id, choice FROM answer
		 WHERE quiz_id=$1 ORDER BY question_index, participant_id`, quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.AnswerRecord
	for rows.Next() {
		var rec domain.AnswerRecord
		if err := rows.Scan(&rec.QuizID, &rec.QuestionIndex, &rec.ParticipantID, &rec.Choice); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, rec)
	}
	return answers, rows.Err()
}

const selectQuiz = `SELECT id, set_id, points, question_index, state, participants, created_at FROM quiz`

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var (
		quiz   domain.Quiz
		points []int32
		state  string
	)
	err := row.Scan(&quiz.ID, &quiz.SetID, &points, &quiz.QuestionIndex, &state, &quiz.Participants, &quiz.CreatedAt)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Points = make([]int, len(points))
	for i, p := range points {
		quiz.Points[i] = int(p)
	}
	quiz.State = domain.State(state)
	return quiz, nil
}

// toInt32s narrows points to the int[] column, refusing values it cannot hold.
func toInt32s(in []int) ([]int32, error) {
	out := make([]int32, len(in))
	for i, v := range in {
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("points[%d]=%d overflows int4", i, v)
		}
		out[i] = int32(v)
	}
	return out, nil
}
