package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/logger"
	"live-quiz-service/internal/notify"
)

func TestAPIQuizFlow(t *testing.T) {
	server, _, _ := newTestServer(t)

	var created IDResponse
	status := doJSON(t, http.MethodPost, server.URL+"/questions", CreateQuestionRequest{
		Text: "2+2?", Answers: []string{"3", "4", "5"}, Correct: 2,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, int64(1), created.ID)

	var view map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, server.URL+"/questions/1", nil, &view))
	require.Equal(t, "2+2?", view["text"])
	require.NotContains(t, view, "correct")

	var set IDResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, server.URL+"/question-sets",
		CreateQuestionSetRequest{QuestionIDs: []int64{created.ID}}, &set))

	var quiz domain.Quiz
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, server.URL+"/quizzes",
		CreateQuizRequest{SetID: set.ID, Points: []int{10}}, &quiz))
	require.Equal(t, domain.StatePrepared, quiz.State)
	base := server.URL + "/quizzes/1"

	var reg RegisterResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/participants", registerBody(7), &reg))
	require.Equal(t, []int64{7}, reg.Participants)

	var apiErr ErrorResponse
	require.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/participants", registerBody(7), &apiErr))
	require.Equal(t, "Conflict", apiErr.Kind)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/launch", nil, nil))

	var current domain.QuestionView
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/question?participantId=7", nil, &current))
	require.Equal(t, 0, current.Index)
	require.Equal(t, []string{"3", "4", "5"}, current.Answers)

	require.Equal(t, http.StatusForbidden, doJSON(t, http.MethodGet, base+"/question?participantId=8", nil, &apiErr))
	require.Equal(t, "Forbidden", apiErr.Kind)

	var answer AnswerResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/answers", answerBody(7, 2), &answer))
	require.True(t, answer.Correct)
	require.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/answers", answerBody(7, 1), &apiErr))

	require.Equal(t, http.StatusConflict, doJSON(t, http.MethodGet, base+"/report", nil, &apiErr))
	require.Equal(t, "InvalidState", apiErr.Kind)

	var advanced AdvanceResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/advance", nil, &advanced))
	require.Equal(t, domain.AdvanceEnded, advanced.Result)

	var report domain.Report
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/report", nil, &report))
	require.Equal(t, map[int64]int{7: 10}, report.Scores)

	var state domain.Quiz
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base, nil, &state))
	require.Equal(t, domain.StateEnded, state.State)
}

func TestAPIRejectsBadInput(t *testing.T) {
	server, _, _ := newTestServer(t)

	var apiErr ErrorResponse
	require.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, server.URL+"/quizzes/99", nil, &apiErr))
	require.Equal(t, "NotFound", apiErr.Kind)

	require.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, server.URL+"/quizzes/abc", nil, &apiErr))
	require.Equal(t, "InvalidArgument", apiErr.Kind)

	require.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, server.URL+"/questions",
		CreateQuestionRequest{Text: "no answers"}, &apiErr))

	require.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, server.URL+"/question-sets",
		CreateQuestionSetRequest{}, &apiErr))

	require.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, server.URL+"/question-sets",
		CreateQuestionSetRequest{QuestionIDs: []int64{42}}, &apiErr))

	resp, err := http.Post(server.URL+"/quizzes", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, server.URL+"/quizzes/1/participants",
		map[string]any{}, &apiErr))

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	cases := map[domain.Kind]int{
		domain.KindNotFound:        http.StatusNotFound,
		domain.KindInvalidState:    http.StatusConflict,
		domain.KindForbidden:       http.StatusForbidden,
		domain.KindInvalidArgument: http.StatusBadRequest,
		domain.KindConflict:        http.StatusConflict,
		domain.KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		require.Equal(t, want, StatusFor(kind), kind.String())
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.QuizService, *memory.Tree) {
	t.Helper()
	tree := memory.NewTree()
	store := memory.NewStore()
	service := app.NewQuizService(
		store,
		memory.NewQuestionCache(store, time.Minute),
		notify.NewPublisher(tree, logger.Discard()),
		logger.Discard(),
	)
	server := httptest.NewServer(NewRouter(service, tree, logger.Discard()))
	t.Cleanup(func() {
		server.Close()
		_ = tree.Close()
	})
	return server, service, tree
}

func doJSON(t *testing.T, method, url string, body, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func registerBody(participantID int64) RegisterRequest {
	return RegisterRequest{ParticipantID: &participantID}
}

func answerBody(participantID int64, choice int) AnswerRequest {
	return AnswerRequest{ParticipantID: &participantID, Choice: choice}
}
