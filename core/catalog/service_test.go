package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/user"
	"github.com/trezcool/quizmaster/tests"
)

func setup(t *testing.T) (*catalog.Service, *testutil.Store) {
	store := testutil.NewStore(t)
	return catalog.NewService(store.Catalog), store
}

func newValidate() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

func TestService_subjects(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	physics, err := svc.CreateSubject(ctx, catalog.SubjectInput{Name: "Physics"})
	require.NoError(t, err)
	history, err := svc.CreateSubject(ctx, catalog.SubjectInput{Name: "History"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name:    "create: duplicate name (case-insensitive)",
			run:     func() error { _, err := svc.CreateSubject(ctx, catalog.SubjectInput{Name: "PHYSICS"}); return err },
			wantErr: catalog.ErrSubjectNameExists,
		},
		{
			name:    "update: not found",
			run:     func() error { _, err := svc.UpdateSubject(ctx, 999, catalog.SubjectInput{Name: "Maths"}); return err },
			wantErr: catalog.ErrSubjectNotFound,
		},
		{
			name:    "update: name taken",
			run:     func() error { _, err := svc.UpdateSubject(ctx, history.ID, catalog.SubjectInput{Name: "physics"}); return err },
			wantErr: catalog.ErrSubjectNameExists,
		},
		{
			name: "update: same name",
			run:  func() error { _, err := svc.UpdateSubject(ctx, physics.ID, catalog.SubjectInput{Name: "Physics"}); return err },
		},
		{
			name: "update",
			run:  func() error { _, err := svc.UpdateSubject(ctx, history.ID, catalog.SubjectInput{Name: "World History"}); return err },
		},
		{
			name:    "delete: not found",
			run:     func() error { return svc.DeleteSubject(ctx, 999) },
			wantErr: catalog.ErrSubjectNotFound,
		},
		{
			name: "delete: in use",
			run: func() error {
				testutil.CreateChapter(t, store.Catalog, physics.ID, "Optics")
				return svc.DeleteSubject(ctx, physics.ID)
			},
			wantErr: catalog.ErrSubjectInUse,
		},
		{
			name: "delete",
			run:  func() error { return svc.DeleteSubject(ctx, history.ID) },
		},
	}
	for _, tt := range tests { // sequential
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	subjects, err := svc.ListSubjects(ctx, true /* withChapters */)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "Physics", subjects[0].Name)
	require.Len(t, subjects[0].Chapters, 1)
	assert.Equal(t, "Optics", subjects[0].Chapters[0].Name)

	subjects, err = svc.ListSubjects(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, subjects[0].Chapters)
}

func TestService_chaptersAndQuizzes(t *testing.T) {
	catalog.NowFunc = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	defer func() { catalog.NowFunc = time.Now }()

	svc, store := setup(t)
	ctx := context.Background()
	subj := testutil.CreateSubject(t, store.Catalog, "Physics")

	_, err := svc.CreateChapter(ctx, 999, catalog.ChapterInput{Name: "Optics"})
	assert.Equal(t, catalog.ErrSubjectNotFound, err)
	_, err = svc.ListChapters(ctx, 999)
	assert.Equal(t, catalog.ErrSubjectNotFound, err)

	chap, err := svc.CreateChapter(ctx, subj.ID, catalog.ChapterInput{Name: "Optics"})
	require.NoError(t, err)
	chap, err = svc.UpdateChapter(ctx, chap.ID, catalog.ChapterInput{Name: "Waves"})
	require.NoError(t, err)
	assert.Equal(t, "Waves", chap.Name)

	_, err = svc.CreateQuiz(ctx, 999, catalog.NewQuiz{DateOfQuiz: "2026-11-01T10:00:00", TimeDuration: "00:45"})
	assert.Equal(t, catalog.ErrChapterNotFound, err)

	quiz, err := svc.CreateQuiz(ctx, chap.ID, catalog.NewQuiz{DateOfQuiz: "2026-11-01T10:00:00+01:00", TimeDuration: "00:45"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC), quiz.DateOfQuiz)
	assert.Equal(t, time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC), quiz.CreatedAt)
	assert.Nil(t, quiz.MaxAttempts)

	t.Run("partial update", func(t *testing.T) {
		quiz, err := svc.UpdateQuiz(ctx, quiz.ID, catalog.UpdateQuiz{MaxAttempts: core.IntPtr(3)})
		require.NoError(t, err)
		assert.Equal(t, core.IntPtr(3), quiz.MaxAttempts)
		assert.Equal(t, "00:45", quiz.TimeDuration)

		duration := "01:30"
		quiz, err = svc.UpdateQuiz(ctx, quiz.ID, catalog.UpdateQuiz{TimeDuration: &duration, ClearMaxAttempts: true})
		require.NoError(t, err)
		assert.Nil(t, quiz.MaxAttempts)
		assert.Equal(t, "01:30", quiz.TimeDuration)

		bad := "next monday"
		_, err = svc.UpdateQuiz(ctx, quiz.ID, catalog.UpdateQuiz{DateOfQuiz: &bad})
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.True(t, ok, "error = %v, want *core.ValidationError", err)
	})

	t.Run("in use", func(t *testing.T) {
		assert.Equal(t, catalog.ErrChapterInUse, svc.DeleteChapter(ctx, chap.ID))

		q := testutil.CreateQuestion(t, store.Catalog, quiz.ID, "Q1", 2)
		assert.Equal(t, catalog.ErrQuizInUse, svc.DeleteQuiz(ctx, quiz.ID))
		require.NoError(t, svc.DeleteQuestion(ctx, q.ID))

		usr := testutil.CreateUser(t, store.Users, "Jane", "jane@test.cd", "", []string{user.RoleStudent}, true)
		testutil.CreateCompletedAttempt(t, store.Attempts, usr.ID, quiz.ID, 1, 0, 1, time.Now())
		assert.Equal(t, catalog.ErrQuizInUse, svc.DeleteQuiz(ctx, quiz.ID))
	})

	quizzes, err := svc.ListQuizzes(ctx, chap.ID)
	require.NoError(t, err)
	assert.Len(t, quizzes, 1)
	_, err = svc.ListQuizzes(ctx, 999)
	assert.Equal(t, catalog.ErrChapterNotFound, err)
}

func TestService_questions(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	subj := testutil.CreateSubject(t, store.Catalog, "Physics")
	chap := testutil.CreateChapter(t, store.Catalog, subj.ID, "Optics")
	quiz := testutil.CreateQuiz(t, store.Catalog, chap.ID, time.Now().Add(time.Hour), nil)

	_, err := svc.CreateQuestion(ctx, 999, catalog.NewQuestion{QuestionStatement: "?", CorrectOption: 1})
	assert.Equal(t, catalog.ErrQuizNotFound, err)

	q, err := svc.CreateQuestion(ctx, quiz.ID, catalog.NewQuestion{
		QuestionStatement: "Speed of light?",
		Option1:           "3e8 m/s",
		Option2:           "340 m/s",
		Option3:           "1 m/s",
		Option4:           "42",
		CorrectOption:     1,
	})
	require.NoError(t, err)

	stmt, correct := "Speed of sound?", 2
	q, err = svc.UpdateQuestion(ctx, q.ID, catalog.UpdateQuestion{QuestionStatement: &stmt, CorrectOption: &correct})
	require.NoError(t, err)
	assert.Equal(t, "Speed of sound?", q.QuestionStatement)
	assert.Equal(t, 2, q.CorrectOption)
	assert.Equal(t, "3e8 m/s", q.Option1)

	questions, err := svc.ListQuestions(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Question{q}, questions)

	_, err = svc.UpdateQuestion(ctx, 999, catalog.UpdateQuestion{})
	assert.Equal(t, catalog.ErrQuestionNotFound, err)
	assert.Equal(t, catalog.ErrQuestionNotFound, svc.DeleteQuestion(ctx, 999))
	require.NoError(t, svc.DeleteQuestion(ctx, q.ID))
	questions, err = svc.ListQuestions(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestInputs_Validate(t *testing.T) {
	validate := newValidate()
	five := 5

	tests := []struct {
		name    string
		input   interface{ Validate(*validator.Validate) error }
		wantErr bool
	}{
		{name: "subject: blank", input: &catalog.SubjectInput{Name: "   "}, wantErr: true},
		{name: "subject", input: &catalog.SubjectInput{Name: " Physics "}},
		{name: "quiz: bad duration", input: &catalog.NewQuiz{DateOfQuiz: "2026-11-01", TimeDuration: "90"}, wantErr: true},
		{name: "quiz: bad date", input: &catalog.NewQuiz{DateOfQuiz: "01/11/2026", TimeDuration: "01:30"}, wantErr: true},
		{name: "quiz: max_attempts < 1", input: &catalog.NewQuiz{DateOfQuiz: "2026-11-01", TimeDuration: "01:30", MaxAttempts: core.IntPtr(0)}, wantErr: true},
		{name: "quiz", input: &catalog.NewQuiz{DateOfQuiz: "2026-11-01T10:00", TimeDuration: "01:30", MaxAttempts: core.IntPtr(2)}},
		{
			name: "question: option out of range", wantErr: true,
			input: &catalog.NewQuestion{QuestionStatement: "?", Option1: "a", Option2: "b", Option3: "c", Option4: "d", CorrectOption: 5},
		},
		{
			name: "question: missing option", wantErr: true,
			input: &catalog.NewQuestion{QuestionStatement: "?", Option1: "a", Option2: "b", Option3: "c", CorrectOption: 1},
		},
		{
			name:  "question",
			input: &catalog.NewQuestion{QuestionStatement: "?", Option1: "a", Option2: "b", Option3: "c", Option4: "d", CorrectOption: 4},
		},
		{name: "question update: option out of range", input: &catalog.UpdateQuestion{CorrectOption: &five}, wantErr: true},
		{name: "question update: empty", input: &catalog.UpdateQuestion{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.input.Validate(validate); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
