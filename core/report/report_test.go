package report_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/report"
	"github.com/trezcool/quizmaster/core/user"
	emailsvc "github.com/trezcool/quizmaster/services/email"
	logsvc "github.com/trezcool/quizmaster/services/logger"
	"github.com/trezcool/quizmaster/tests"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *testutil.Store
	mailSvc *emailsvc.ConsoleServiceMock
	ledger  *report.MemoryLedger
	runner  *report.Runner
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

func setup(t *testing.T) *fixture {
	report.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { report.NowFunc = time.Now })

	conf := core.NewConfig()
	conf.TestMode = true
	logger := newLogger(conf)
	core.ParseEmailTemplates(logger)
	emailsvc.ResetSentMessages()

	f := &fixture{
		store:   testutil.NewStore(t),
		mailSvc: emailsvc.NewConsoleServiceMock(conf, logger),
		ledger:  report.NewMemoryLedger(),
	}
	f.runner = report.NewRunner(f.store.Stats, user.NewService(f.store.Users), f.mailSvc, f.ledger, logger, conf)
	return f
}

func (f *fixture) quiz(t *testing.T, subject string, createdAt time.Time) catalog.Quiz {
	subj := testutil.CreateSubject(t, f.store.Catalog, subject)
	chap := testutil.CreateChapter(t, f.store.Catalog, subj.ID, "Optics")
	return testutil.CreateQuiz(t, f.store.Catalog, chap.ID, now.Add(48*time.Hour), nil, createdAt)
}

func TestRunner_NewQuizReminder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.CreateUser(t, f.store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, f.store.Users, "John Doe", "john@test.cd", "", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, f.store.Users, "Jim Doe", "jim@test.cd", "", []string{user.RoleStudent}, false)
	testutil.CreateUser(t, f.store.Users, "Admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	t.Run("no new quizzes", func(t *testing.T) {
		f.quiz(t, "History", now.Add(-25*time.Hour))
		res := f.runner.NewQuizReminder(ctx)
		assert.Equal(t, report.RunResult{
			Job:     report.JobNewQuizReminder,
			RunKey:  "new_quiz_reminder:2026-10-16",
			Status:  report.StatusSucceeded,
			Message: "No new quizzes to notify about.",
		}, res)
		assert.Empty(t, emailsvc.GetSentMessages())
	})

	quiz := f.quiz(t, "Physics", now.Add(-time.Hour))
	f.mailSvc.FailFor("john@test.cd")

	t.Run("send", func(t *testing.T) {
		res := f.runner.NewQuizReminder(ctx)
		assert.True(t, res.Succeeded())
		assert.Equal(t, 1, res.Sent)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, "Sent notifications for 1 new quizzes to 1 students.", res.Message)

		sent := emailsvc.GetSentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "jane@test.cd", sent[0].To[0].Address)
		assert.Equal(t, "New Quizzes Available on Quiz Master!", sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "(Quiz ID: "+strconv.Itoa(quiz.ID)+")")
	})

	t.Run("same day: failed recipients only", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		res := f.runner.NewQuizReminder(ctx)
		assert.Equal(t, 0, res.Sent)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 1, res.Failed)
		assert.Empty(t, emailsvc.GetSentMessages())
	})
}

func TestRunner_NewQuizReminder_retry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.CreateUser(t, f.store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	f.quiz(t, "Physics", now.Add(-time.Hour))

	conf := core.NewConfig()
	logger := newLogger(conf)
	failing := emailsvc.NewConsoleServiceMock(conf, logger)
	failing.FailFor("jane@test.cd")

	res := report.NewRunner(f.store.Stats, user.NewService(f.store.Users), failing, f.ledger, logger, conf).NewQuizReminder(ctx)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, emailsvc.GetSentMessages())

	// the failed claim was released
	res = f.runner.NewQuizReminder(ctx)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 0, res.Skipped)
	assert.Len(t, emailsvc.GetSentMessages(), 1)
}

func TestMonthWindow(t *testing.T) {
	tests := []struct {
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			now:       time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
			wantStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 9, 30, 23, 59, 59, 0, time.UTC),
		},
		{
			now:       time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			wantStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC),
		},
		{
			now:       time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC),
			wantStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			now:       time.Date(2027, 1, 1, 9, 0, 0, 0, time.UTC),
			wantStart: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format(core.DateLayout), func(t *testing.T) {
			start, end := report.MonthWindow(tt.now)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestRunner_MonthlyActivityReport(t *testing.T) {
	f := setup(t)
	report.NowFunc = func() time.Time { return time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	jane := testutil.CreateUser(t, f.store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	john := testutil.CreateUser(t, f.store.Users, "John Doe", "john@test.cd", "", []string{user.RoleStudent}, true)
	quiz := f.quiz(t, "Physics", now.AddDate(0, -2, 0))

	sep := func(day, hour int) time.Time { return time.Date(2026, 9, day, hour, 0, 0, 0, time.UTC) }
	testutil.CreateCompletedAttempt(t, f.store.Attempts, jane.ID, quiz.ID, 2, 1, 4, sep(20, 8))
	testutil.CreateCompletedAttempt(t, f.store.Attempts, jane.ID, quiz.ID, 1, 3, 4, sep(10, 10))
	testutil.CreateCompletedAttempt(t, f.store.Attempts, jane.ID, quiz.ID, 3, 4, 4, now.Add(-time.Hour)) // october
	testutil.CreateCompletedAttempt(t, f.store.Attempts, john.ID, quiz.ID, 1, 4, 4, time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC))

	res := f.runner.MonthlyActivityReport(ctx)
	assert.Equal(t, report.RunResult{
		Job:     report.JobMonthlyReport,
		RunKey:  "monthly_report:2026-09",
		Status:  report.StatusSucceeded,
		Sent:    1,
		Skipped: 1,
		Message: "Finished generating monthly reports for September 2026: 1 sent.",
	}, res)

	sent := emailsvc.GetSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@test.cd", sent[0].To[0].Address)
	assert.Equal(t, "Your Quiz Master Activity Report for September 2026", sent[0].Subject)

	activity, ok := sent[0].TemplateData.(report.Activity)
	require.True(t, ok)
	assert.Equal(t, report.Activity{
		FullName:      "Jane Doe",
		Month:         "September 2026",
		TotalAttempts: 2,
		AverageScore:  "50.00",
		Lines: []string{
			"2026-09-10 10:00:00 UTC: Physics - Optics | Quiz ID " + strconv.Itoa(quiz.ID) + " - Scored 3/4 (75.00%)",
			"2026-09-20 08:00:00 UTC: Physics - Optics | Quiz ID " + strconv.Itoa(quiz.ID) + " - Scored 1/4 (25.00%)",
		},
	}, activity)

	// rerun of the same month
	emailsvc.ResetSentMessages()
	res = f.runner.MonthlyActivityReport(ctx)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, emailsvc.GetSentMessages())
}

func TestRunner_ExportUserScoresCSV(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	jane := testutil.CreateUser(t, f.store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	john := testutil.CreateUser(t, f.store.Users, "John Doe", "john@test.cd", "", []string{user.RoleStudent}, true)
	nomail := testutil.CreateUser(t, f.store.Users, "No Mail", "", "", []string{user.RoleStudent}, true)
	quiz := f.quiz(t, "Physics", now.AddDate(0, -1, 0))
	testutil.CreateCompletedAttempt(t, f.store.Attempts, jane.ID, quiz.ID, 1, 3, 4, now.Add(-time.Hour))

	tests := []struct {
		name     string
		userID   int
		wantMsg  string
		wantSent int
	}{
		{name: "user not found", userID: 999, wantMsg: "Task failed: user not found or missing email"},
		{name: "no email", userID: nomail.ID, wantMsg: "Task failed: user not found or missing email"},
		{name: "no scores", userID: john.ID, wantMsg: "No scores to export for user " + strconv.Itoa(john.ID) + "."},
		{name: "export", userID: jane.ID, wantMsg: "Exported 1 scores for user " + strconv.Itoa(jane.ID) + ".", wantSent: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()
			res := f.runner.ExportUserScoresCSV(ctx, tt.userID)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Equal(t, tt.wantSent, res.Sent)
			assert.Len(t, emailsvc.GetSentMessages(), tt.wantSent)
		})
	}

	sent := emailsvc.GetSentMessages()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Attachments, 1)
	at := sent[0].Attachments[0]
	assert.Equal(t, "quiz_scores_"+strconv.Itoa(jane.ID)+"_20261016.csv", at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)

	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Contains(t, string(content), "Quiz ID,Subject,Chapter,Quiz Date,Attempt Timestamp,Score,Total Possible,Percentage\n")
	assert.Contains(t, string(content), ",Optics,2026-10-18,2026-10-16 11:00:00 UTC,3,4,75.00\n")
}

func TestWriteScoresCSV(t *testing.T) {
	at := time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC)
	details := []attempt.ScoreDetail{
		{
			Attempt:       attempt.Attempt{QuizID: 1, TotalScored: 2, TotalPossible: 3, TimeStampOfAttempt: &at, CompletedAt: &at},
			QuizDate:      time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
			SubjectName:   "Physics",
			ChapterName:   "Optics, waves",
			QuestionCount: 5,
		},
		{
			// legacy score: no total possible recorded
			Attempt:       attempt.Attempt{QuizID: 2, TotalScored: 1, CompletedAt: &at},
			QuizDate:      time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC),
			QuestionCount: 4,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteScoresCSV(&buf, details))
	assert.Equal(t, "Quiz ID,Subject,Chapter,Quiz Date,Attempt Timestamp,Score,Total Possible,Percentage\n"+
		"1,Physics,\"Optics, waves\",2026-09-01,2026-09-10 10:00:00 UTC,2,3,66.67\n"+
		"2,,,2026-09-02,2026-09-10 10:00:00 UTC,1,4,25.00\n", buf.String())
}

func TestLines(t *testing.T) {
	assert.Equal(t, "N/A - N/A (Quiz ID: 7)", report.QuizLine(catalog.QuizSummary{ID: 7}))
	assert.Equal(t, "Physics - Optics (Quiz ID: 7)", report.QuizLine(catalog.QuizSummary{ID: 7, SubjectName: "Physics", ChapterName: "Optics"}))

	at := time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-09-10 10:00:00 UTC: Quiz ID 7 - Scored 0/0 (0.00%)",
		report.ActivityLine(attempt.ScoreDetail{Attempt: attempt.Attempt{QuizID: 7, CompletedAt: &at}}))
}

func TestRunner_noMailService(t *testing.T) {
	f := setup(t)
	conf := core.NewConfig()
	runner := report.NewRunner(f.store.Stats, user.NewService(f.store.Users), nil, f.ledger, newLogger(conf), conf)
	ctx := context.Background()

	for _, res := range []report.RunResult{
		runner.NewQuizReminder(ctx),
		runner.MonthlyActivityReport(ctx),
		runner.ExportUserScoresCSV(ctx, 1),
	} {
		assert.Equal(t, report.StatusFailed, res.Status, res.Job)
		assert.Equal(t, "Task failed: mail service not configured", res.Message, res.Job)
	}
}

func TestMemoryLedger(t *testing.T) {
	ledger := report.NewMemoryLedger()
	ctx := context.Background()

	_, err := ledger.Claim(ctx, "", "jane@test.cd")
	assert.Error(t, err)

	ok, err := ledger.Claim(ctx, "run:1", "jane@test.cd")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = ledger.Claim(ctx, "run:1", "jane@test.cd")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = ledger.Claim(ctx, "run:2", "jane@test.cd")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ledger.Release(ctx, "run:1", "jane@test.cd"))
	ok, err = ledger.Claim(ctx, "run:1", "jane@test.cd")
	require.NoError(t, err)
	assert.True(t, ok)
}
