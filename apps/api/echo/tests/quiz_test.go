package tests

import (
	"context"
	"encoding/json"
	"net/http"
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
	"github.com/trezcool/quizmaster/tests"
)

func Test_quizApi_attemptFlow(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, app.conf, student)

	now := time.Now().UTC()
	subj := testutil.CreateSubject(t, app.store.Catalog, "Physics")
	chap := testutil.CreateChapter(t, app.store.Catalog, subj.ID, "Optics")
	quiz := testutil.CreateQuiz(t, app.store.Catalog, chap.ID, now.Add(48*time.Hour), core.IntPtr(1))
	expired := testutil.CreateQuiz(t, app.store.Catalog, chap.ID, now.Add(-time.Hour), nil)

	var questions []catalog.Question
	for i, correct := range []int{1, 2, 3, 4} {
		questions = append(questions, testutil.CreateQuestion(t, app.store.Catalog, quiz.ID, "Q"+strconv.Itoa(i+1), correct))
	}
	quizQuestions := make([]attempt.QuizQuestion, 0, len(questions))
	for _, q := range questions {
		quizQuestions = append(quizQuestions, attempt.QuizQuestion{ID: q.ID, Question: q.QuestionStatement, Options: q.Options()})
	}

	path := func(id int, suffix string) string {
		return "/api/quizzes/" + strconv.Itoa(id) + suffix
	}
	status := func(st string, used int, current *int) []byte {
		return marchallObj(t, attempt.QuizStatus{
			ID: quiz.ID, Status: st, HasAttempt: current != nil, MaxAttempts: core.IntPtr(1), AttemptsUsed: used, CurrentAttempt: current,
		})
	}
	started := marchallObj(t, attempt.StartedAttempt{QuizID: quiz.ID, AttemptNumber: 1, TimeDuration: "00:30", Questions: quizQuestions})

	// 3 of 4 right; unknown ids and non integral options are ignored
	answers := map[string]interface{}{
		strconv.Itoa(questions[0].ID): 1,
		strconv.Itoa(questions[1].ID): 2,
		strconv.Itoa(questions[2].ID): 3,
		strconv.Itoa(questions[3].ID): 1,
		"99999":                       1,
	}
	submission := marchallObj(t, echoMap{"answers": answers, "time_stamp_of_attempt": "2030-01-02T10:00:00"})

	tests := []httpTest{
		{name: "auth required", path: path(quiz.ID, ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "not found", path: path(999, ""), token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "quiz not found"})},
		{name: "status: not started", path: path(quiz.ID, ""), token: token, wantCode: http.StatusOK, wantData: status(attempt.StatusNotStarted, 0, nil)},
		{
			name: "submit: no active attempt", method: http.MethodPost, path: path(quiz.ID, "/submit"), token: token, body: submission,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "No active quiz attempt found"}),
		},
		{
			name: "start: expired", method: http.MethodPost, path: path(expired.ID, "/start"), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Quiz has expired"}),
		},
		{name: "start", method: http.MethodPost, path: path(quiz.ID, "/start"), token: token, wantCode: http.StatusOK, wantData: started},
		{name: "status: in progress", path: path(quiz.ID, ""), token: token, wantCode: http.StatusOK, wantData: status(attempt.StatusInProgress, 1, core.IntPtr(1))},
		{name: "start: resume", method: http.MethodPost, path: path(quiz.ID, "/start"), token: token, wantCode: http.StatusOK, wantData: started},
		{
			name: "submit: bad timestamp", method: http.MethodPost, path: path(quiz.ID, "/submit"), token: token,
			body: []byte(`{"answers": {}, "time_stamp_of_attempt": "yesterday"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"time_stamp_of_attempt": "must be an ISO 8601 date-time"}),
		},
		{
			name: "submit", method: http.MethodPost, path: path(quiz.ID, "/submit"), token: token, body: submission, wantCode: http.StatusOK,
			wantData: marchallObj(t, attempt.Result{ScoreID: 1, TotalScored: 3, TotalPossible: 4, Percentage: 75, AttemptNumber: 1}),
		},
		{
			name: "submit: already completed", method: http.MethodPost, path: path(quiz.ID, "/submit"), token: token, body: submission,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "No active quiz attempt found"}),
		},
		{name: "status: completed", path: path(quiz.ID, ""), token: token, wantCode: http.StatusOK, wantData: status(attempt.StatusCompleted, 1, core.IntPtr(1))},
		{
			name: "start: no attempts remaining", method: http.MethodPost, path: path(quiz.ID, "/start"), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "No attempts remaining"}),
		},
		{
			name: "scores", path: "/api/scores", token: token, wantCode: http.StatusOK,
			wantData: marchallList(t, attempt.Score{
				QuizID: quiz.ID, AttemptNumber: 1, TotalScored: 3, TotalPossible: 4, TotalQuestions: 4, Percentage: 75,
				AttemptedAt: time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC),
			}),
		},
	}
	for _, tt := range tests { // sequential: the cases walk the attempt lifecycle
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

func Test_quizApi_browse(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, app.conf, student)

	now := time.Now().UTC().Truncate(time.Second)
	physics := testutil.CreateSubject(t, app.store.Catalog, "Physics")
	history := testutil.CreateSubject(t, app.store.Catalog, "History")
	optics := testutil.CreateChapter(t, app.store.Catalog, physics.ID, "Optics")
	waves := testutil.CreateChapter(t, app.store.Catalog, physics.ID, "Waves")
	past := testutil.CreateQuiz(t, app.store.Catalog, optics.ID, now.Add(-24*time.Hour), nil)
	soon := testutil.CreateQuiz(t, app.store.Catalog, waves.ID, now.Add(24*time.Hour), nil)
	testutil.CreateQuestion(t, app.store.Catalog, soon.ID, "Q1", 1)
	testutil.CreateQuestion(t, app.store.Catalog, soon.ID, "Q2", 2)
	testutil.CreateCompletedAttempt(t, app.store.Attempts, student.ID, past.ID, 1, 1, 2, now.Add(-time.Hour))

	summary := func(quiz catalog.Quiz, chap catalog.Chapter, questions int) catalog.QuizSummary {
		return catalog.QuizSummary{
			ID: quiz.ID, ChapterID: chap.ID, ChapterName: chap.Name, SubjectName: physics.Name,
			DateOfQuiz: quiz.DateOfQuiz, TimeDuration: quiz.TimeDuration, TotalQuestions: questions,
		}
	}

	tests := []httpTest{
		{
			name: "subjects (with chapters)", path: "/api/subjects", wantCode: http.StatusOK,
			wantData: marchallList(t,
				catalog.Subject{ID: physics.ID, Name: physics.Name, Chapters: []catalog.Chapter{optics, waves}},
				catalog.Subject{ID: history.ID, Name: history.Name},
			),
		},
		{
			name: "upcoming (all quizzes)", path: "/api/quizzes/upcoming", wantCode: http.StatusOK,
			wantData: marchallList(t, summary(past, optics, 0), summary(soon, waves, 2)),
		},
		{
			name: "dashboard", path: "/api/dashboard", wantCode: http.StatusOK,
			wantData: marchallObj(t, echoMap{
				"upcoming_quizzes": []echoMap{{
					"id": soon.ID, "chapter_name": waves.Name, "subject_name": physics.Name,
					"date": soon.DateOfQuiz, "duration": soon.TimeDuration,
				}},
				"recent_scores": []echoMap{{
					"quiz_id": past.ID, "chapter_name": optics.Name, "score_percentage": 50, "attempted_at": now.Add(-time.Hour),
				}},
				"performance_stats": echoMap{"total_quizzes_attempted": 1, "average_score": 50},
			}),
		},
		{name: "scores", path: "/api/scores", wantCode: http.StatusOK, extra: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.token = token
			rec := app.do(tt)
			checkCodeAndData(t, tt, rec)

			if n, ok := tt.extra.(int); ok {
				var scores []attempt.Score
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
				assert.Len(t, scores, n)
			}
		})
	}
}

func Test_quizApi_exportScores(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	tt := httpTest{
		name: "export", method: http.MethodPost, path: "/api/export/scores", token: getToken(t, app.conf, student),
		wantCode: http.StatusAccepted,
	}
	checkCodeAndData(t, tt, app.do(tt))

	require.Equal(t, 1, app.queue.Len())
	task, err := app.queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.JobExportScores, task.Type)

	var payload report.ExportPayload
	require.NoError(t, task.Decode(&payload))
	assert.Equal(t, student.ID, payload.UserID)
}
