package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerKey_Score(t *testing.T) {
	key := AnswerKey{
		"q1": {Answer: "A", Points: 2},
		"q2": {Answer: "b"},
		"q3": {Answer: ""},
	}

	score, maxScore := key.Score(Answers{"q1": "a", "q2": " B ", "q3": "anything"})
	assert.Equal(t, 3.0, score)
	assert.Equal(t, 3.0, maxScore)

	score, maxScore = key.Score(nil)
	assert.Zero(t, score)
	assert.Equal(t, 3.0, maxScore)
}

func TestAnswerKey_ScoreIsStableWithFractionalPoints(t *testing.T) {
	key := AnswerKey{}
	answers := Answers{}
	for i, pts := range []float64{0.1, 0.2, 0.3, 0.7, 1.1, 1.33, 0.98, 5.5} {
		qid := fmt.Sprintf("q%d", i+1)
		key[qid] = KeyEntry{Answer: "A", Points: pts}
		answers[qid] = "A"
	}

	wantScore, wantMax := key.Score(answers)
	for range 2000 {
		score, maxScore := key.Score(answers)
		require.Equal(t, wantScore, score)
		require.Equal(t, wantMax, maxScore)
	}
}

func TestExam_InWindow(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	e := &Exam{ScheduleStart: start, ScheduleEnd: start.Add(time.Hour)}

	assert.True(t, e.InWindow(start))
	assert.True(t, e.InWindow(start.Add(time.Hour)))
	assert.False(t, e.InWindow(start.Add(-time.Second)))
	assert.False(t, e.InWindow(start.Add(time.Hour+time.Second)))
}

func TestSubmissionStatus_Final(t *testing.T) {
	assert.False(t, SubmissionInProgress.Final())
	assert.False(t, SubmissionNotStarted.Final())
	assert.True(t, SubmissionSubmitted.Final())
	assert.True(t, SubmissionGraded.Final())
	assert.True(t, SubmissionInvalidated.Final())
}
