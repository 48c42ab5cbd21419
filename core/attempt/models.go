package attempt

import (
	"math"
	"time"

	"github.com/trezcool/quizmaster/core"
)

// Quiz statuses for a user
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusExpired    = "expired"
)

// Attempt is one instance of a user taking one quiz. Completed attempts are never modified.
type Attempt struct {
	ID                 int        `json:"id"`
	UserID             int        `json:"user_id"`
	QuizID             int        `json:"quiz_id"`
	AttemptNumber      int        `json:"attempt_number"`
	TotalScored        int        `json:"total_scored"`
	TotalPossible      int        `json:"total_possible"`
	QuestionIDs        []int      `json:"-"` // frozen at start
	TimeStampOfAttempt *time.Time `json:"time_stamp_of_attempt"` // caller supplied
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"` // server clock
}

func (a Attempt) Completed() bool {
	return a.CompletedAt != nil
}

// AttemptedAt is the display time of a completed attempt.
func (a Attempt) AttemptedAt() time.Time {
	switch {
	case a.TimeStampOfAttempt != nil:
		return a.TimeStampOfAttempt.UTC()
	case a.CompletedAt != nil:
		return a.CompletedAt.UTC()
	default:
		return a.StartedAt.UTC()
	}
}

type (
	// QuizStatus is the state of a quiz for one user.
	QuizStatus struct {
		ID             int    `json:"id"`
		Status         string `json:"status"`
		HasAttempt     bool   `json:"has_attempt"`
		MaxAttempts    *int   `json:"max_attempts"`
		AttemptsUsed   int    `json:"attempts_used"`
		CurrentAttempt *int   `json:"current_attempt"`
	}

	// QuizQuestion is a Question as shown to the user taking the quiz, without its correct option.
	QuizQuestion struct {
		ID       int      `json:"id"`
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}

	StartedAttempt struct {
		QuizID        int            `json:"quiz_id"`
		AttemptNumber int            `json:"attempt_number,omitempty"`
		TimeDuration  string         `json:"time_duration"`
		Questions     []QuizQuestion `json:"questions"`
	}

	// Submission holds the answers of a user: {questionID: selected option}.
	Submission struct {
		Answers            map[string]int
		TimeStampOfAttempt *time.Time
	}

	Result struct {
		ScoreID       int     `json:"score_id"`
		TotalScored   int     `json:"total_scored"`
		TotalPossible int     `json:"total_possible"`
		Percentage    float64 `json:"percentage"`
		AttemptNumber int     `json:"attempt_number"`
	}

	Score struct {
		QuizID         int       `json:"quiz_id"`
		AttemptNumber  int       `json:"attempt_number"`
		TotalScored    int       `json:"total_scored"`
		TotalPossible  int       `json:"total_possible"`
		TotalQuestions int       `json:"total_questions"`
		Percentage     float64   `json:"percentage"`
		AttemptedAt    time.Time `json:"attempted_at"`
	}

	// ScoreDetail is a completed Attempt joined with its quiz, chapter and subject.
	ScoreDetail struct {
		Attempt
		QuizDate      time.Time
		ChapterName   string
		SubjectName   string
		QuestionCount int // current number of questions of the quiz
	}

	// DetailFilter applies AND operation on the set fields. Only completed attempts are returned.
	DetailFilter struct {
		UserID        int
		CompletedFrom time.Time // completed_at >= CompletedFrom
		CompletedTo   time.Time // completed_at <= CompletedTo
		Limit         int
		// OrderByCompletion orders by completed_at ascending instead of time_stamp_of_attempt descending.
		OrderByCompletion bool
	}
)

// Possible returns the stored total_possible or, when it is 0, the current question count.
func (sd ScoreDetail) Possible() int {
	if sd.TotalPossible > 0 {
		return sd.TotalPossible
	}
	return sd.QuestionCount
}

func (sd ScoreDetail) Percentage() float64 {
	return core.Percentage(sd.TotalScored, sd.Possible())
}

func (sd ScoreDetail) Score() Score {
	possible := sd.Possible()
	return Score{
		QuizID:         sd.QuizID,
		AttemptNumber:  sd.AttemptNumber,
		TotalScored:    sd.TotalScored,
		TotalPossible:  possible,
		TotalQuestions: possible,
		Percentage:     core.Percentage(sd.TotalScored, possible),
		AttemptedAt:    sd.AttemptedAt(),
	}
}

// ParseAnswers keeps the integral option values of raw answers, as decoded from JSON.
// Other values are dropped.
func ParseAnswers(raw map[string]interface{}) map[string]int {
	answers := make(map[string]int, len(raw))
	for qid, val := range raw {
		switch v := val.(type) {
		case float64:
			if v == math.Trunc(v) {
				answers[qid] = int(v)
			}
		case int:
			answers[qid] = v
		}
	}
	return answers
}
