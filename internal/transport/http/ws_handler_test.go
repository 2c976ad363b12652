package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/notify"
)

func TestWebSocketFollowsQuiz(t *testing.T) {
	ctx := context.Background()
	server, service, tree := newTestServer(t)
	quizID := seedQuiz(t, service, 2)
	if _, err := service.RegisterParticipant(ctx, quizID, 7); err != nil {
		t.Fatalf("register: %v", err)
	}

	conn := dialWS(t, server.URL, quizID, 7)
	defer conn.Close()

	readNext(t, conn, "joined")

	if err := service.LaunchQuiz(ctx, quizID); err != nil {
		t.Fatalf("launch: %v", err)
	}
	var view domain.QuestionView
	decodePayload(t, readNext(t, conn, "question"), &view)
	if view.Index != 0 || view.Text != "2+2?" {
		t.Fatalf("unexpected first question %+v", view)
	}

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"choice": 2},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	var result answerResult
	decodePayload(t, readNext(t, conn, "answerResult"), &result)
	if !result.Correct {
		t.Fatalf("expected correct answer, got %+v", result)
	}

	waitForWatch(t, tree, notify.QuizPath(quizID))
	if _, err := service.AdvanceQuiz(ctx, quizID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	decodePayload(t, readNext(t, conn, "question"), &view)
	if view.Index != 1 {
		t.Fatalf("expected second question, got %+v", view)
	}

	waitForWatch(t, tree, notify.QuizPath(quizID))
	if _, err := service.AdvanceQuiz(ctx, quizID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	var report domain.Report
	decodePayload(t, readNext(t, conn, "report"), &report)
	if report.Scores[7] != 10 {
		t.Fatalf("expected 10 points for participant 7, got %v", report.Scores)
	}
}

func TestWebSocketResyncsMidQuiz(t *testing.T) {
	ctx := context.Background()
	server, service, _ := newTestServer(t)
	quizID := seedQuiz(t, service, 1)
	if _, err := service.RegisterParticipant(ctx, quizID, 3); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := service.LaunchQuiz(ctx, quizID); err != nil {
		t.Fatalf("launch: %v", err)
	}

	conn := dialWS(t, server.URL, quizID, 3)
	defer conn.Close()

	readNext(t, conn, "joined")
	readNext(t, conn, "question")
}

func TestWebSocketRejectsUnregisteredParticipant(t *testing.T) {
	server, service, _ := newTestServer(t)
	quizID := seedQuiz(t, service, 1)

	conn := dialWS(t, server.URL, quizID, 99)
	defer conn.Close()

	var failure errorPayload
	decodePayload(t, readNext(t, conn, "error"), &failure)
	if failure.Kind != "Forbidden" {
		t.Fatalf("expected Forbidden, got %+v", failure)
	}
}

func TestWebSocketRequiresIDs(t *testing.T) {
	server, _, _ := newTestServer(t)
	u := "ws" + server.URL[len("http"):] + "/ws?quizId=abc"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", resp)
	}
}

func TestDeliverStopsWhenWriterIsGone(t *testing.T) {
	send := make(chan outboundMessage[any], 1)
	writerDone := make(chan struct{})
	if !deliver(send, writerDone, outboundMessage[any]{Type: "joined"}) {
		t.Fatalf("expected delivery with buffer space")
	}

	close(writerDone)
	done := make(chan bool)
	go func() { done <- deliver(send, writerDone, outboundMessage[any]{Type: "question"}) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected delivery to fail once the writer stopped")
		}
	case <-time.After(time.Second):
		t.Fatalf("deliver blocked on a full queue")
	}
}

func dialWS(t *testing.T, serverURL string, quizID, participantID int64) *websocket.Conn {
	t.Helper()
	u := "ws" + serverURL[len("http"):] + "/ws?quizId=" + strconv.FormatInt(quizID, 10) +
		"&participantId=" + strconv.FormatInt(participantID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) json.RawMessage {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, msg.Payload)
	}
	return msg.Payload
}

func decodePayload(t *testing.T, raw json.RawMessage, out any) {
	t.Helper()
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode payload %s: %v", raw, err)
	}
}

// seedQuiz creates n questions worth 10 points each, correct answer 2.
func seedQuiz(t *testing.T, service *app.QuizService, n int) int64 {
	t.Helper()
	ctx := context.Background()
	var ids []int64
	var points []int
	for i := 0; i < n; i++ {
		id, err := service.CreateQuestion(ctx, "2+2?", []string{"3", "4", "5"}, 2)
		if err != nil {
			t.Fatalf("question: %v", err)
		}
		ids = append(ids, id)
		points = append(points, 10)
	}
	setID, err := service.CreateQuestionSet(ctx, ids)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	quiz, err := service.CreateQuiz(ctx, setID, points)
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	return quiz.ID
}

func waitForWatch(t *testing.T, tree *memory.Tree, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for tree.Watchers(path) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("watch on %s never renewed", path)
		}
		time.Sleep(time.Millisecond)
	}
}
