package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/report"
	"github.com/trezcool/quizmaster/core/user"
	emailsvc "github.com/trezcool/quizmaster/services/email"
	logsvc "github.com/trezcool/quizmaster/services/logger"
	"github.com/trezcool/quizmaster/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Store) {
	conf := core.NewConfig()
	conf.TestMode = true
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "ADMIN : ", 0), conf)
	logger.Enable(false)
	core.ParseEmailTemplates(logger)
	emailsvc.ResetSentMessages()

	// set up DB & repos
	store := testutil.NewStore(t)
	usrSvc := user.NewService(store.Users)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	ledger := report.NewMemoryLedger() // shared by the runs of a test

	// start CLI
	return &commandLine{
		usrSvc:  usrSvc,
		usrRepo: store.Users,
		newRunner: func() (*report.Runner, error) {
			return report.NewRunner(
				store.Stats,
				usrSvc,
				mailSvc,
				ledger,
				logger,
				conf,
			), nil
		},
	}, store
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "leaderboard", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, store := setup(t)

	existing := testutil.CreateUser(t, store.Users, "John Doe", "john@test.cd", "old-pwd", []string{user.RoleStudent}, false)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "missing name", args: []string{"adduser", "-email", "jane@test.cd"}, extra: "pwd", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "jane@test.cd", "-name", "Jane"}, wantErr: errHelp},
		{name: "create student", args: []string{"adduser", "-email", " Jane@Test.cd ", "-name", "Jane Doe"}, extra: "Sup3r-S3cret!"},
		{name: "update to admin", args: []string{"adduser", "-email", "john@test.cd", "-name", "ignored", "-admin"}, extra: "N3w-S3cret!"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	ctx := context.Background()
	jane, err := store.Users.GetUser(ctx, user.GetFilter{Email: "jane@test.cd"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", jane.FullName)
	assert.Equal(t, []string{user.RoleStudent}, jane.Roles)
	assert.True(t, jane.IsActive)
	assert.NoError(t, jane.CheckPassword("Sup3r-S3cret!"))

	john, err := store.Users.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "John Doe", john.FullName)
	assert.True(t, john.IsAdmin())
	assert.True(t, john.IsActive)
	assert.NoError(t, john.CheckPassword("N3w-S3cret!"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, store := setup(t)

	usr := testutil.CreateUser(t, store.Users, "User", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: "lol"},
		{name: "reset (case & spaces)", args: []string{"resetpassword", "-email", " AWE@test.cd"}, extra: "lmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := store.Users.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_runJob(t *testing.T) {
	cli, store := setup(t)

	student := testutil.CreateUser(t, store.Users, "Jane Doe", "jane@test.cd", "", []string{user.RoleStudent}, true)
	subj := testutil.CreateSubject(t, store.Catalog, "Physics")
	chap := testutil.CreateChapter(t, store.Catalog, subj.ID, "Optics")
	quiz := testutil.CreateQuiz(t, store.Catalog, chap.ID, time.Now().Add(24*time.Hour), nil)
	testutil.CreateCompletedAttempt(t, store.Attempts, student.ID, quiz.ID, 1, 1, 2, time.Now().Add(-time.Hour))

	tests := []cliTest{
		{name: "no args", args: []string{"runjob"}, wantErr: errHelp},
		{name: "unknown job", args: []string{"runjob", "-job", "lol"}, wantErrStr: "\"lol\": no such job"},
		{name: "export: no user", args: []string{"runjob", "-job", report.JobExportScores}, wantErrStr: "export_scores requires -user"},
		{name: "export: user not found", args: []string{"runjob", "-job", report.JobExportScores, "-user", "999"}, wantErrStr: "export_scores failed: Task failed: user not found or missing email"},
		{name: "new quiz reminder", args: []string{"runjob", "-job", report.JobNewQuizReminder}, extra: 1},
		{name: "new quiz reminder: already sent today", args: []string{"runjob", "-job", report.JobNewQuizReminder}, extra: 0},
		{name: "export", args: []string{"runjob", "-job", report.JobExportScores, "-user", strconv.Itoa(student.ID)}, extra: 1},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()
			tt.check(t, cli.run(args))
			if n, ok := tt.extra.(int); ok {
				assert.Len(t, emailsvc.GetSentMessages(), n)
			}
		})
	}
}
