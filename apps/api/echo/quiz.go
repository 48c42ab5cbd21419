package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core/attempt"
	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/user"
)

type quizApi struct {
	deps ServerDeps
}

func registerQuizAPI(g *echo.Group, deps ServerDeps) {
	api := quizApi{deps: deps}

	qg := g.Group("", requireCapability(user.CanAttemptQuizzes))
	qg.GET("/dashboard", api.dashboard)
	qg.GET("/quizzes/upcoming", api.upcomingQuizzes)
	qg.GET("/subjects", api.subjects)
	qg.GET("/quizzes/:id", api.quizStatus)
	qg.POST("/quizzes/:id/start", api.startQuiz)
	qg.POST("/quizzes/:id/submit", api.submitQuiz)
	qg.GET("/scores", api.scores)
	qg.POST("/export/scores", api.exportScores)
}

func (api *quizApi) dashboard(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	dash, err := api.deps.DashboardSvc.Get(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

// upcomingQuizzes lists every quiz, past ones included, with its question count.
func (api *quizApi) upcomingQuizzes(ctx echo.Context) error {
	summaries, err := api.deps.CatalogSvc.ListQuizSummaries(ctx.Request().Context(), catalog.QuizFilter{})
	if err != nil {
		return errors.Wrap(err, "listing quiz summaries")
	}
	if summaries == nil {
		summaries = []catalog.QuizSummary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (api *quizApi) subjects(ctx echo.Context) error {
	subjects, err := api.deps.CatalogSvc.ListSubjects(ctx.Request().Context(), true /* withChapters */)
	if err != nil {
		return errors.Wrap(err, "listing subjects")
	}
	if subjects == nil {
		subjects = []catalog.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *quizApi) quizStatus(ctx echo.Context) error {
	quizID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	status, err := api.deps.AttemptSvc.GetQuizStatusForUser(ctx.Request().Context(), quizID, p.ID)
	if err != nil {
		return errors.Wrap(err, "getting quiz status")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *quizApi) startQuiz(ctx echo.Context) error {
	quizID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	started, err := api.deps.AttemptSvc.StartAttempt(ctx.Request().Context(), quizID, p.ID)
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusOK, started)
}

func (api *quizApi) submitQuiz(ctx echo.Context) error {
	quizID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data SubmitRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitRequest")
	}
	sub, err := data.Submission()
	if err != nil {
		return err
	}

	res, err := api.deps.AttemptSvc.SubmitAttempt(ctx.Request().Context(), quizID, p.ID, sub)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) scores(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	scores, err := api.deps.AttemptSvc.GetUserScores(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "getting user scores")
	}
	if scores == nil {
		scores = []attempt.Score{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

// exportScores queues a CSV export of the scores of the principal, mailed to them.
func (api *quizApi) exportScores(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	if err = api.deps.Exporter.DispatchExport(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "dispatching score export")
	}
	return ctx.JSON(http.StatusAccepted, MessageResponse{
		Message: "Export started. You will receive an email with your scores shortly.",
	})
}
