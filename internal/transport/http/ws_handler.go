package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/notify"
)

// WSHandler hosts a notify.Watcher per browser participant and relays its updates.
type WSHandler struct {
	service  *app.QuizService
	tree     notify.Tree
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, tree notify.Tree, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		tree:    tree,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Choice int `json:"choice"`
}

type answerResult struct {
	Choice  int  `json:"choice"`
	Correct bool `json:"correct"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Kind:    domain.KindOf(err).String(),
		Message: err.Error(),
	}}
}

// ServeWS upgrades a registered participant's request and streams quiz progress to it.
// Messages out: joined, question, report, answerResult, error. Messages in: answer.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID, err1 := strconv.ParseInt(r.URL.Query().Get("quizId"), 10, 64)
	participantID, err2 := strconv.ParseInt(r.URL.Query().Get("participantId"), 10, 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "missing or invalid quizId or participantId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := h.logger.With("conn_id", uuid.NewString(), "quiz_id", quizID, "participant_id", participantID)

	quiz, err := h.service.QuizState(r.Context(), quizID)
	if err == nil && !quiz.HasParticipant(participantID) {
		err = domain.Forbidden("participant %d is not registered in quiz %d", participantID, quizID)
	}
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	watcher := notify.NewWatcher(h.tree, h.service, participantID, logger)
	if err := watcher.Join(ctx, quizID); err != nil {
		logger.Warn("ws watch failed", "error", err)
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer watcher.Wait()
	logger.Info("participant connected")

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write error", "error", err)
				return
			}
		}
	}()

	deliver(send, writerDone, outboundMessage[any]{Type: "joined", Payload: quiz})
	// a participant connecting mid-quiz resyncs to the current question
	if quiz.State == domain.StateOngoing {
		if view, err := h.service.CurrentQuestion(ctx, quizID, participantID); err == nil {
			deliver(send, writerDone, outboundMessage[any]{Type: "question", Payload: view})
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update := <-watcher.Updates():
				select {
				case send <- updateMessage(update):
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !deliver(send, writerDone, h.reply(ctx, quizID, participantID, inbound)) {
			break
		}
	}

	cancel()
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	logger.Info("participant disconnected")
}

func (h *WSHandler) reply(ctx context.Context, quizID, participantID int64, inbound inboundMessage) outboundMessage[any] {
	if inbound.Type != "answer" {
		return errorMessage(domain.InvalidArgument("unsupported message type %q", inbound.Type))
	}
	var payload answerPayload
	if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
		return errorMessage(domain.InvalidArgument("invalid answer payload"))
	}
	correct, err := h.service.SubmitAnswer(ctx, quizID, participantID, payload.Choice)
	if err != nil {
		return errorMessage(err)
	}
	return outboundMessage[any]{Type: "answerResult", Payload: answerResult{
		Choice:  payload.Choice,
		Correct: correct,
	}}
}

// deliver queues msg for the writer and reports false once the writer has stopped.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func updateMessage(update notify.Update) outboundMessage[any] {
	switch {
	case update.Err != nil:
		return errorMessage(update.Err)
	case update.Report != nil:
		return outboundMessage[any]{Type: "report", Payload: update.Report}
	default:
		return outboundMessage[any]{Type: "question", Payload: update.Question}
	}
}
