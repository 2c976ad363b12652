package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"QUESTION;2+2?;3;4;5;2", CreateQuestion{Text: "2+2?", Answers: []string{"3", "4", "5"}, Correct: 2}},
		{"QSET;1;2;3", CreateQuestionSet{QuestionIDs: []int64{1, 2, 3}}},
		{"QUIZ;4;10;5", CreateQuiz{SetID: 4, Points: []int{10, 5}}},
		{"LAUNCH;1", Launch{QuizID: 1}},
		{"NEXT;1", Next{QuizID: 1}},
		{"REG;2", Register{QuizID: 2}},
		{"GET;2", Current{QuizID: 2}},
		{"ANS;2;3", Answer{QuizID: 2, Choice: 3}},
		{"REL;2", Report{QuizID: 2}},
		{"GET_QUESTION;9", GetQuestion{QuestionID: 9}},
		{"GET_QUIZ_STATUS;9", QuizStatus{QuizID: 9}},
		{"  EXIT \n", Exit{}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.line)
		require.NoError(t, err, tc.line)
		require.Equal(t, tc.want, got, tc.line)
	}
}

func TestParseRejectsMalformedLines(t *testing.T) {
	for _, line := range []string{
		"",
		"HELLO;1",
		"QUESTION;text;1",
		"QUESTION;text;a;b;x",
		"QSET",
		"QSET;1;two",
		"QUIZ;1",
		"QUIZ;x;10",
		"QUIZ;1;ten",
		"LAUNCH",
		"LAUNCH;one",
		"REG;1;2",
		"ANS;1",
		"ANS;1;b",
	} {
		_, err := Parse(line)
		require.Error(t, err, line)
		require.True(t, errors.Is(err, ErrInvalidInput), line)
	}
}
