package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/user"
)

var (
	csvHeader = []string{
		"Quiz ID",
		"Subject",
		"Chapter",
		"Quiz Date",
		"Attempt Timestamp",
		"Score",
		"Total Possible",
		"Percentage",
	}

	errInvalidRecipient = errors.New("user not found or missing email")
)

// ExportPayload is the task payload of a score export.
type ExportPayload struct {
	UserID int `json:"user_id"`
}

// ExportUserScoresCSV emails the completed attempts of user userID as a CSV attachment.
func (r *Runner) ExportUserScoresCSV(ctx context.Context, userID int) RunResult {
	res := RunResult{Job: JobExportScores, RunKey: JobExportScores + ":" + uuid.New().String()}
	input := map[string]interface{}{"user_id": userID}
	if r.mailSvc == nil {
		return r.fail(res, errNoMailService, input)
	}

	usr, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if err != user.ErrNotFound {
			return r.fail(res, errors.Wrap(err, "getting user"), input)
		}
		return r.fail(res, errInvalidRecipient, input)
	}
	if usr.Email == "" {
		return r.fail(res, errInvalidRecipient, input)
	}

	details, err := r.repo.QueryScoreDetails(ctx, attempt.DetailFilter{UserID: userID})
	if err != nil {
		return r.fail(res, errors.Wrap(err, "querying scores"), input)
	}
	if len(details) == 0 {
		return r.succeed(res, fmt.Sprintf("No scores to export for user %d.", userID))
	}

	var buf bytes.Buffer
	if err = WriteScoresCSV(&buf, details); err != nil {
		return r.fail(res, errors.Wrap(err, "writing csv"), input)
	}
	msg := &core.EmailMessage{
		Subject:      fmt.Sprintf("Your %s Score Export", r.conf.AppName),
		TemplateName: "score_export",
		TemplateData: map[string]interface{}{"FullName": usr.FullName},
	}
	filename := fmt.Sprintf("quiz_scores_%d_%s.csv", userID, NowFunc().UTC().Format("20060102"))
	if err = msg.Attach(&buf, filename, "text/csv"); err != nil {
		return r.fail(res, errors.Wrap(err, "attaching csv"), input)
	}

	r.deliver(ctx, &res, usr, msg)
	if res.Sent == 0 {
		return r.fail(res, errors.New("sending email"), input)
	}
	return r.succeed(res, fmt.Sprintf("Exported %d scores for user %d.", len(details), userID))
}

// WriteScoresCSV writes the header row then one row per score detail.
func WriteScoresCSV(buf *bytes.Buffer, details []attempt.ScoreDetail) error {
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, sd := range details {
		row := []string{
			strconv.Itoa(sd.QuizID),
			sd.SubjectName,
			sd.ChapterName,
			sd.QuizDate.UTC().Format(core.DateLayout),
			core.FormatDateTime(sd.AttemptedAt()),
			strconv.Itoa(sd.TotalScored),
			strconv.Itoa(sd.Possible()),
			formatPercentage(sd.Percentage()),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
