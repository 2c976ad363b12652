package domain

import "time"

// State is the lifecycle state of a quiz instance.
type State string

const (
	StatePrepared State = "PREPARED"
	StateOngoing  State = "ONGOING"
	StateEnded    State = "ENDED"
)

// AdvanceResult tells the caller which transition an advance produced.
type AdvanceResult string

const (
	AdvanceAdvanced AdvanceResult = "ADVANCED"
	AdvanceEnded    AdvanceResult = "ENDED"
)

// Question models an MCQ question. Correct is a 1-based index into Answers.
type Question struct {
	ID      int64    `json:"id"`
	Text    string   `json:"text"`
	Answers []string `json:"answers"`
	Correct int      `json:"correct"`
}

// QuestionSet is an ordered, reusable list of question ids.
type QuestionSet struct {
	ID          int64   `json:"id"`
	QuestionIDs []int64 `json:"questionIds"`
}

// Quiz is one administration of a question set.
// Points runs parallel to the set's questions, so len(Points) is the question count.
type Quiz struct {
	ID            int64     `json:"id"`
	SetID         int64     `json:"setId"`
	Points        []int     `json:"points"`
	QuestionIndex int       `json:"questionIndex"`
	State         State     `json:"state"`
	Participants  []int64   `json:"participants"`
	CreatedAt     time.Time `json:"createdAt"`
}

// QuestionCount returns the number of questions in the quiz's set.
func (q Quiz) QuestionCount() int {
	return len(q.Points)
}

// HasParticipant reports whether participantID is registered.
func (q Quiz) HasParticipant(participantID int64) bool {
	for _, p := range q.Participants {
		if p == participantID {
			return true
		}
	}
	return false
}

// AnswerRecord is the durable fact that a participant chose an option for a question occurrence.
// (QuizID, QuestionIndex, ParticipantID) is unique.
type AnswerRecord struct {
	QuizID        int64 `json:"quizId"`
	QuestionIndex int   `json:"questionIndex"`
	ParticipantID int64 `json:"participantId"`
	Choice        int   `json:"choice"`
}

// QuestionView is what participants see: the correct index is withheld.
type QuestionView struct {
	QuizID  int64    `json:"quizId,omitempty"`
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Answers []string `json:"answers"`
}

// ViewOf strips the correct answer from q.
func ViewOf(q Question) QuestionView {
	return QuestionView{Text: q.Text, Answers: q.Answers}
}

// Report maps participant ids to accumulated scores.
type Report struct {
	QuizID int64         `json:"quizId"`
	Scores map[int64]int `json:"scores"`
}
