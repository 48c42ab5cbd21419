package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core"
	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/user"
)

var (
	roleParam     = "role"
	isActiveParam = "is_active"
)

// idParam parses the path param `name` as an entity id.
func idParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// bindUserFilter reads `?role=admin&role=student&is_active=true`.
func bindUserFilter(ctx echo.Context) (user.QueryFilter, error) {
	var filter user.QueryFilter
	data := ctx.QueryParams()

	for _, val := range data[roleParam] {
		for _, role := range strings.Split(val, ",") {
			if role = core.CleanString(role, true /* lower */); role != "" {
				filter.Roles = append(filter.Roles, role)
			}
		}
	}
	if val := core.CleanString(data.Get(isActiveParam)); val != "" {
		active, err := strconv.ParseBool(val)
		if err != nil {
			return filter, core.NewValidationError(nil, core.FieldError{Field: isActiveParam, Error: "must be a boolean"})
		}
		filter.IsActive = &active
	}
	return filter, nil
}

// SubmitRequest is the body of a quiz submission. Answers map question ids to the selected option.
type SubmitRequest struct {
	Answers            map[string]interface{} `json:"answers"`
	TimeStampOfAttempt string                 `json:"time_stamp_of_attempt"`
}

func (sr SubmitRequest) Submission() (attempt.Submission, error) {
	sub := attempt.Submission{Answers: attempt.ParseAnswers(sr.Answers)}
	if ts := core.CleanString(sr.TimeStampOfAttempt); ts != "" {
		t, err := core.ParseTime(ts)
		if err != nil {
			return sub, core.NewValidationError(
				errors.Wrap(err, "parsing time_stamp_of_attempt"),
				core.FieldError{Field: "time_stamp_of_attempt", Error: "must be an ISO 8601 date-time"},
			)
		}
		sub.TimeStampOfAttempt = &t
	}
	return sub, nil
}
