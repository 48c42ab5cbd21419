package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizmaster/core/catalog"
	"github.com/trezcool/quizmaster/core/user"
)

type adminApi struct {
	deps ServerDeps
}

func registerAdminAPI(g *echo.Group, deps ServerDeps) {
	api := adminApi{deps: deps}

	cg := g.Group("/admin", requireCapability(user.CanManageCatalog))
	cg.GET("/subjects", api.listSubjects)
	cg.POST("/subjects", api.createSubject)
	cg.PUT("/subjects/:id", api.updateSubject)
	cg.DELETE("/subjects/:id", api.deleteSubject)

	cg.GET("/subjects/:id/chapters", api.listChapters)
	cg.POST("/subjects/:id/chapters", api.createChapter)
	cg.PUT("/chapters/:id", api.updateChapter)
	cg.DELETE("/chapters/:id", api.deleteChapter)

	cg.GET("/chapters/:id/quizzes", api.listQuizzes)
	cg.POST("/chapters/:id/quizzes", api.createQuiz)
	cg.PUT("/quizzes/:id", api.updateQuiz)
	cg.DELETE("/quizzes/:id", api.deleteQuiz)

	cg.GET("/quizzes/:id/questions", api.listQuestions)
	cg.POST("/quizzes/:id/questions", api.createQuestion)
	cg.PUT("/questions/:id", api.updateQuestion)
	cg.DELETE("/questions/:id", api.deleteQuestion)

	ug := g.Group("/admin/users", requireCapability(user.CanManageUsers))
	ug.GET("", api.listUsers)
	ug.PUT("/:id/toggle-active", api.toggleUserActive)
	ug.DELETE("/:id", api.deleteUser)
}

// Subjects

func (api *adminApi) listSubjects(ctx echo.Context) error {
	subjects, err := api.deps.CatalogSvc.ListSubjects(ctx.Request().Context(), false)
	if err != nil {
		return errors.Wrap(err, "listing subjects")
	}
	if subjects == nil {
		subjects = []catalog.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *adminApi) createSubject(ctx echo.Context) error {
	var data catalog.SubjectInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubjectInput")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	subj, err := api.deps.CatalogSvc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subj)
}

func (api *adminApi) updateSubject(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.SubjectInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubjectInput")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	subj, err := api.deps.CatalogSvc.UpdateSubject(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, subj)
}

func (api *adminApi) deleteSubject(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.deps.CatalogSvc.DeleteSubject(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Chapters

func (api *adminApi) listChapters(ctx echo.Context) error {
	subjectID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	chapters, err := api.deps.CatalogSvc.ListChapters(ctx.Request().Context(), subjectID)
	if err != nil {
		return errors.Wrap(err, "listing chapters")
	}
	if chapters == nil {
		chapters = []catalog.Chapter{}
	}
	return ctx.JSON(http.StatusOK, chapters)
}

func (api *adminApi) createChapter(ctx echo.Context) error {
	subjectID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.ChapterInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChapterInput")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	chap, err := api.deps.CatalogSvc.CreateChapter(ctx.Request().Context(), subjectID, data)
	if err != nil {
		return errors.Wrap(err, "creating chapter")
	}
	return ctx.JSON(http.StatusCreated, chap)
}

func (api *adminApi) updateChapter(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.ChapterInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChapterInput")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	chap, err := api.deps.CatalogSvc.UpdateChapter(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating chapter")
	}
	return ctx.JSON(http.StatusOK, chap)
}

func (api *adminApi) deleteChapter(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.deps.CatalogSvc.DeleteChapter(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting chapter")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Quizzes

func (api *adminApi) listQuizzes(ctx echo.Context) error {
	chapterID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	quizzes, err := api.deps.CatalogSvc.ListQuizzes(ctx.Request().Context(), chapterID)
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	if quizzes == nil {
		quizzes = []catalog.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *adminApi) createQuiz(ctx echo.Context) error {
	chapterID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.NewQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	quiz, err := api.deps.CatalogSvc.CreateQuiz(ctx.Request().Context(), chapterID, data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, quiz)
}

func (api *adminApi) updateQuiz(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.UpdateQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	quiz, err := api.deps.CatalogSvc.UpdateQuiz(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, quiz)
}

func (api *adminApi) deleteQuiz(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.deps.CatalogSvc.DeleteQuiz(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Questions

func (api *adminApi) listQuestions(ctx echo.Context) error {
	quizID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	questions, err := api.deps.CatalogSvc.ListQuestions(ctx.Request().Context(), quizID)
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	if questions == nil {
		questions = []catalog.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *adminApi) createQuestion(ctx echo.Context) error {
	quizID, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.NewQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	q, err := api.deps.CatalogSvc.CreateQuestion(ctx.Request().Context(), quizID, data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *adminApi) updateQuestion(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.UpdateQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	q, err := api.deps.CatalogSvc.UpdateQuestion(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *adminApi) deleteQuestion(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.deps.CatalogSvc.DeleteQuestion(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Users

type (
	UserListItem struct {
		ID            int      `json:"id"`
		Email         string   `json:"email"`
		FullName      string   `json:"full_name"`
		Qualification string   `json:"qualification"`
		Active        bool     `json:"active"`
		Roles         []string `json:"roles"`
		CreatedAt     string   `json:"created_at"`
	}

	UserStatus struct {
		ID     int    `json:"id"`
		Email  string `json:"email"`
		Active bool   `json:"active"`
	}
)

func NewUserListItem(usr user.User) UserListItem {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserListItem{
		ID:            usr.ID,
		Email:         usr.Email,
		FullName:      usr.FullName,
		Qualification: usr.Qualification,
		Active:        usr.IsActive,
		Roles:         roles,
		CreatedAt:     usr.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (api *adminApi) listUsers(ctx echo.Context) error {
	filter, err := bindUserFilter(ctx)
	if err != nil {
		return err
	}
	users, err := api.deps.UserSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}

	items := make([]UserListItem, 0, len(users))
	for _, usr := range users {
		items = append(items, NewUserListItem(usr))
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *adminApi) toggleUserActive(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	usr, err := api.deps.UserSvc.ToggleActive(ctx.Request().Context(), p, id)
	if err != nil {
		return errors.Wrap(err, "toggling user active")
	}
	return ctx.JSON(http.StatusOK, UserStatus{ID: usr.ID, Email: usr.Email, Active: usr.IsActive})
}

func (api *adminApi) deleteUser(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	if err = api.deps.UserSvc.Delete(ctx.Request().Context(), p, id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}
