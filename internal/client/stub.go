package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"live-quiz-service/internal/domain"
	api "live-quiz-service/internal/transport/http"
)

// Stub calls the quiz server's REST API. It implements notify.Fetcher, so a
// participant's watcher refetches through it. Server failures come back as
// *domain.Error with the kind the server reported.
type Stub struct {
	baseURL string
	http    *http.Client
}

func NewStub(baseURL string, httpClient *http.Client) *Stub {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Stub{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (s *Stub) CreateQuestion(ctx context.Context, text string, answers []string, correct int) (int64, error) {
	var out api.IDResponse
	err := s.do(ctx, http.MethodPost, "/questions", api.CreateQuestionRequest{
		Text: text, Answers: answers, Correct: correct,
	}, &out)
	return out.ID, err
}

func (s *Stub) GetQuestion(ctx context.Context, questionID int64) (domain.QuestionView, error) {
	var out domain.QuestionView
	err := s.do(ctx, http.MethodGet, "/questions/"+id(questionID), nil, &out)
	return out, err
}

func (s *Stub) CreateQuestionSet(ctx context.Context, questionIDs []int64) (int64, error) {
	var out api.IDResponse
	err := s.do(ctx, http.MethodPost, "/question-sets", api.CreateQuestionSetRequest{QuestionIDs: questionIDs}, &out)
	return out.ID, err
}

func (s *Stub) CreateQuiz(ctx context.Context, setID int64, points []int) (domain.Quiz, error) {
	var out domain.Quiz
	err := s.do(ctx, http.MethodPost, "/quizzes", api.CreateQuizRequest{SetID: setID, Points: points}, &out)
	return out, err
}

func (s *Stub) QuizState(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var out domain.Quiz
	err := s.do(ctx, http.MethodGet, "/quizzes/"+id(quizID), nil, &out)
	return out, err
}

func (s *Stub) LaunchQuiz(ctx context.Context, quizID int64) error {
	return s.do(ctx, http.MethodPost, "/quizzes/"+id(quizID)+"/launch", nil, nil)
}

func (s *Stub) AdvanceQuiz(ctx context.Context, quizID int64) (domain.AdvanceResult, error) {
	var out api.AdvanceResponse
	err := s.do(ctx, http.MethodPost, "/quizzes/"+id(quizID)+"/advance", nil, &out)
	return out.Result, err
}

func (s *Stub) RegisterParticipant(ctx context.Context, quizID, participantID int64) ([]int64, error) {
	var out api.RegisterResponse
	err := s.do(ctx, http.MethodPost, "/quizzes/"+id(quizID)+"/participants",
		api.RegisterRequest{ParticipantID: &participantID}, &out)
	return out.Participants, err
}

func (s *Stub) CurrentQuestion(ctx context.Context, quizID, participantID int64) (domain.QuestionView, error) {
	var out domain.QuestionView
	query := url.Values{"participantId": {id(participantID)}}
	err := s.do(ctx, http.MethodGet, "/quizzes/"+id(quizID)+"/question?"+query.Encode(), nil, &out)
	return out, err
}

func (s *Stub) SubmitAnswer(ctx context.Context, quizID, participantID int64, choice int) (bool, error) {
	var out api.AnswerResponse
	err := s.do(ctx, http.MethodPost, "/quizzes/"+id(quizID)+"/answers",
		api.AnswerRequest{ParticipantID: &participantID, Choice: choice}, &out)
	return out.Correct, err
}

func (s *Stub) Report(ctx context.Context, quizID int64) (domain.Report, error) {
	var out domain.Report
	err := s.do(ctx, http.MethodGet, "/quizzes/"+id(quizID)+"/report", nil, &out)
	return out, err
}

func (s *Stub) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Kind == "" {
			return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
		return &domain.Error{Kind: domain.ParseKind(apiErr.Kind), Message: apiErr.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}
