package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizmaster/core"
)

type (
	Subject struct {
		ID       int       `json:"id"`
		Name     string    `json:"name"`
		Chapters []Chapter `json:"chapters,omitempty"`
	}

	Chapter struct {
		ID        int    `json:"id"`
		SubjectID int    `json:"subject_id"`
		Name      string `json:"name"`
	}

	Quiz struct {
		ID           int       `json:"id"`
		ChapterID    int       `json:"chapter_id"`
		DateOfQuiz   time.Time `json:"date_of_quiz"`  // UTC
		TimeDuration string    `json:"time_duration"` // HH:MM
		MaxAttempts  *int      `json:"max_attempts"`  // unbounded when nil
		CreatedAt    time.Time `json:"created_at"`    // UTC
	}

	Question struct {
		ID                int    `json:"id"`
		QuizID            int    `json:"quiz_id"`
		QuestionStatement string `json:"question_statement"`
		Option1           string `json:"option1"`
		Option2           string `json:"option2"`
		Option3           string `json:"option3"`
		Option4           string `json:"option4"`
		CorrectOption     int    `json:"correct_option"`
	}

	// QuizSummary is a Quiz joined with its chapter and subject names and its question count.
	QuizSummary struct {
		ID             int       `json:"id"`
		ChapterID      int       `json:"chapter_id"`
		ChapterName    string    `json:"chapter_name"`
		SubjectName    string    `json:"subject_name"`
		DateOfQuiz     time.Time `json:"date_of_quiz"`
		TimeDuration   string    `json:"time_duration"`
		TotalQuestions int       `json:"total_questions"`
		CreatedAt      time.Time `json:"-"`
	}

	// QuizFilter applies AND operation on the set fields.
	QuizFilter struct {
		ChapterID      int
		CreatedFrom    time.Time // created_at >= CreatedFrom
		ScheduledAfter time.Time // date_of_quiz > ScheduledAfter
		Limit          int
	}
)

func (q Question) Options() []string {
	return []string{q.Option1, q.Option2, q.Option3, q.Option4}
}

// Expired reports whether the quiz start date is before now.
func (q Quiz) Expired(now time.Time) bool {
	return q.DateOfQuiz.Before(now)
}

// SubjectInput is used to create or rename a Subject.
type SubjectInput struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func (in *SubjectInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	return validate.Struct(in)
}

// ChapterInput is used to create or rename a Chapter.
type ChapterInput struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func (in *ChapterInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	return validate.Struct(in)
}

// NewQuiz contains information needed to create a new Quiz.
type NewQuiz struct {
	DateOfQuiz   string `json:"date_of_quiz" validate:"required,isotime"`
	TimeDuration string `json:"time_duration" validate:"required,hhmm"`
	MaxAttempts  *int   `json:"max_attempts" validate:"omitempty,min=1"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.DateOfQuiz = core.CleanString(nq.DateOfQuiz)
	nq.TimeDuration = core.CleanString(nq.TimeDuration)
	return validate.Struct(nq)
}

// UpdateQuiz defines what information may be provided to modify an existing Quiz.
type UpdateQuiz struct {
	DateOfQuiz   *string `json:"date_of_quiz" validate:"omitempty,isotime"`
	TimeDuration *string `json:"time_duration" validate:"omitempty,hhmm"`
	MaxAttempts  *int    `json:"max_attempts" validate:"omitempty,min=1"`
	// ClearMaxAttempts removes the attempt limit.
	ClearMaxAttempts bool `json:"clear_max_attempts"`
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate) error {
	if uq.DateOfQuiz != nil {
		*uq.DateOfQuiz = core.CleanString(*uq.DateOfQuiz)
	}
	if uq.TimeDuration != nil {
		*uq.TimeDuration = core.CleanString(*uq.TimeDuration)
	}
	return validate.Struct(uq)
}

// NewQuestion contains information needed to create a new Question.
type NewQuestion struct {
	QuestionStatement string `json:"question_statement" validate:"required,notblank"`
	Option1           string `json:"option1" validate:"required"`
	Option2           string `json:"option2" validate:"required"`
	Option3           string `json:"option3" validate:"required"`
	Option4           string `json:"option4" validate:"required"`
	CorrectOption     int    `json:"correct_option" validate:"required,option"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.QuestionStatement = core.CleanString(nq.QuestionStatement)
	return validate.Struct(nq)
}

// UpdateQuestion defines what information may be provided to modify an existing Question.
type UpdateQuestion struct {
	QuestionStatement *string `json:"question_statement" validate:"omitempty,notblank"`
	Option1           *string `json:"option1" validate:"omitempty,min=1"`
	Option2           *string `json:"option2" validate:"omitempty,min=1"`
	Option3           *string `json:"option3" validate:"omitempty,min=1"`
	Option4           *string `json:"option4" validate:"omitempty,min=1"`
	CorrectOption     *int    `json:"correct_option" validate:"omitempty,option"`
}

func (uq *UpdateQuestion) Validate(validate *validator.Validate) error {
	if uq.QuestionStatement != nil {
		*uq.QuestionStatement = core.CleanString(*uq.QuestionStatement)
	}
	return validate.Struct(uq)
}

func (uq UpdateQuestion) apply(q *Question) {
	if uq.QuestionStatement != nil {
		q.QuestionStatement = *uq.QuestionStatement
	}
	if uq.Option1 != nil {
		q.Option1 = *uq.Option1
	}
	if uq.Option2 != nil {
		q.Option2 = *uq.Option2
	}
	if uq.Option3 != nil {
		q.Option3 = *uq.Option3
	}
	if uq.Option4 != nil {
		q.Option4 = *uq.Option4
	}
	if uq.CorrectOption != nil {
		q.CorrectOption = *uq.CorrectOption
	}
}
