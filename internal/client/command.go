// Package client is the participant front-end: a line-oriented command REPL
// that talks to the quiz server over HTTP and follows registered quizzes
// through the notification tree.
package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned by Parse for malformed lines.
var ErrInvalidInput = errors.New("invalid input")

// Command is one parsed REPL line. The variants below are the complete set.
type Command interface {
	command()
}

type CreateQuestion struct {
	Text    string
	Answers []string
	Correct int
}

type CreateQuestionSet struct {
	QuestionIDs []int64
}

type CreateQuiz struct {
	SetID  int64
	Points []int
}

type Launch struct{ QuizID int64 }

type Next struct{ QuizID int64 }

type Register struct{ QuizID int64 }

// Current asks for the current question of a quiz.
type Current struct{ QuizID int64 }

type Answer struct {
	QuizID int64
	Choice int
}

type Report struct{ QuizID int64 }

type GetQuestion struct{ QuestionID int64 }

type QuizStatus struct{ QuizID int64 }

type Exit struct{}

func (CreateQuestion) command()    {}
func (CreateQuestionSet) command() {}
func (CreateQuiz) command()        {}
func (Launch) command()            {}
func (Next) command()              {}
func (Register) command()          {}
func (Current) command()           {}
func (Answer) command()            {}
func (Report) command()            {}
func (GetQuestion) command()       {}
func (QuizStatus) command()        {}
func (Exit) command()              {}

// Parse turns a ';'-separated line into a Command:
//
//	QUESTION;text;a1;...;k   QSET;q1;q2;...   QUIZ;set;p1;p2;...
//	LAUNCH;quiz  NEXT;quiz  REG;quiz  GET;quiz  ANS;quiz;choice  REL;quiz
//	GET_QUESTION;id  GET_QUIZ_STATUS;quiz  EXIT
func Parse(line string) (Command, error) {
	parts := strings.Split(strings.TrimSpace(line), ";")
	name, args := parts[0], parts[1:]

	switch name {
	case "EXIT":
		return Exit{}, nil
	case "QUESTION":
		if len(args) < 3 {
			return nil, invalid(name, "expected text, at least one answer and the right answer")
		}
		correct, err := strconv.Atoi(args[len(args)-1])
		if err != nil {
			return nil, invalid(name, "right answer must be a number")
		}
		return CreateQuestion{
			Text:    args[0],
			Answers: append([]string(nil), args[1:len(args)-1]...),
			Correct: correct,
		}, nil
	case "QSET":
		if len(args) < 1 {
			return nil, invalid(name, "expected at least one question id")
		}
		ids, err := parseIDs(args)
		if err != nil {
			return nil, invalid(name, err.Error())
		}
		return CreateQuestionSet{QuestionIDs: ids}, nil
	case "QUIZ":
		if len(args) < 2 {
			return nil, invalid(name, "expected a question set id and at least one score")
		}
		setID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, invalid(name, "question set id must be a number")
		}
		points := make([]int, 0, len(args)-1)
		for _, raw := range args[1:] {
			p, err := strconv.Atoi(raw)
			if err != nil {
				return nil, invalid(name, fmt.Sprintf("score %q is not a number", raw))
			}
			points = append(points, p)
		}
		return CreateQuiz{SetID: setID, Points: points}, nil
	case "ANS":
		if len(args) != 2 {
			return nil, invalid(name, "expected quiz id and answer")
		}
		quizID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, invalid(name, "quiz id must be a number")
		}
		choice, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, invalid(name, "answer must be a number")
		}
		return Answer{QuizID: quizID, Choice: choice}, nil
	case "LAUNCH", "NEXT", "REG", "GET", "REL", "GET_QUESTION", "GET_QUIZ_STATUS":
		if len(args) != 1 {
			return nil, invalid(name, "expected exactly one id")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, invalid(name, "id must be a number")
		}
		return singleID(name, id), nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidInput, name)
	}
}

func singleID(name string, id int64) Command {
	switch name {
	case "LAUNCH":
		return Launch{QuizID: id}
	case "NEXT":
		return Next{QuizID: id}
	case "REG":
		return Register{QuizID: id}
	case "GET":
		return Current{QuizID: id}
	case "REL":
		return Report{QuizID: id}
	case "GET_QUESTION":
		return GetQuestion{QuestionID: id}
	default:
		return QuizStatus{QuizID: id}
	}
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("id %q is not a number", r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func invalid(name, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, name, reason)
}
