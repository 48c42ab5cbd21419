package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizmaster/core/catalog"
)

const (
	quizColumns     = `id, chapter_id, date_of_quiz, time_duration, max_attempts, created_at`
	questionColumns = `id, quiz_id, question_statement, option1, option2, option3, option4, correct_option`
)

type quizRow struct {
	ID           int       `db:"id"`
	ChapterID    int       `db:"chapter_id"`
	DateOfQuiz   time.Time `db:"date_of_quiz"`
	TimeDuration string    `db:"time_duration"`
	MaxAttempts  null.Int  `db:"max_attempts"`
	CreatedAt    time.Time `db:"created_at"`
}

func (row quizRow) toQuiz() catalog.Quiz {
	return catalog.Quiz{
		ID:           row.ID,
		ChapterID:    row.ChapterID,
		DateOfQuiz:   row.DateOfQuiz.UTC(),
		TimeDuration: row.TimeDuration,
		MaxAttempts:  row.MaxAttempts.Ptr(),
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

type subjectRow struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
}

func (row subjectRow) toSubject() catalog.Subject {
	return catalog.Subject{ID: row.ID, Name: row.Name}
}

type chapterRow struct {
	ID        int    `db:"id"`
	SubjectID int    `db:"subject_id"`
	Name      string `db:"name"`
}

func toChapters(rows []chapterRow) []catalog.Chapter {
	chapters := make([]catalog.Chapter, 0, len(rows))
	for _, row := range rows {
		chapters = append(chapters, catalog.Chapter(row))
	}
	return chapters
}

type questionRow struct {
	ID                int    `db:"id"`
	QuizID            int    `db:"quiz_id"`
	QuestionStatement string `db:"question_statement"`
	Option1           string `db:"option1"`
	Option2           string `db:"option2"`
	Option3           string `db:"option3"`
	Option4           string `db:"option4"`
	CorrectOption     int    `db:"correct_option"`
}

func (row questionRow) toQuestion() catalog.Question {
	return catalog.Question(row)
}

type catalogRepository struct {
	store
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *sqlx.DB) catalog.Repository {
	return &catalogRepository{store{db: db}}
}

func (repo *catalogRepository) WithinTx(ctx context.Context, fn func(repo catalog.Repository) error) error {
	return repo.withinTx(ctx, func(s store) error {
		return fn(&catalogRepository{s})
	})
}

// Subjects

func (repo *catalogRepository) QuerySubjects(ctx context.Context) ([]catalog.Subject, error) {
	var rows []subjectRow
	if err := repo.selectAll(ctx, &rows, "SELECT id, name FROM subject ORDER BY id"); err != nil {
		return nil, err
	}
	subjects := make([]catalog.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, row.toSubject())
	}
	return subjects, nil
}

func (repo *catalogRepository) GetSubject(ctx context.Context, id int) (catalog.Subject, error) {
	var row subjectRow
	if err := repo.get(ctx, &row, "SELECT id, name FROM subject WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return catalog.Subject{}, catalog.ErrSubjectNotFound
		}
		return catalog.Subject{}, err
	}
	return row.toSubject(), nil
}

func (repo *catalogRepository) SubjectNameExists(ctx context.Context, name string, excludedIDs ...int) (bool, error) {
	w := &where{}
	w.add("LOWER(name) = LOWER(?)", name)
	if len(excludedIDs) > 0 {
		w.add("NOT (id = ANY(?))", pq.Array(excludedIDs))
	}
	n, err := repo.count(ctx, "SELECT COUNT(*) FROM subject"+w.String(), w.args...)
	return n > 0, err
}

func (repo *catalogRepository) CreateSubject(ctx context.Context, subj catalog.Subject) (catalog.Subject, error) {
	var row subjectRow
	if err := repo.get(ctx, &row, "INSERT INTO subject (name) VALUES (?) RETURNING id, name", subj.Name); err != nil {
		return catalog.Subject{}, translate(err, catalog.ErrSubjectNameExists, nil)
	}
	return row.toSubject(), nil
}

func (repo *catalogRepository) UpdateSubject(ctx context.Context, subj catalog.Subject) (catalog.Subject, error) {
	var row subjectRow
	if err := repo.get(ctx, &row, "UPDATE subject SET name = ? WHERE id = ? RETURNING id, name", subj.Name, subj.ID); err != nil {
		if err == sql.ErrNoRows {
			return catalog.Subject{}, catalog.ErrSubjectNotFound
		}
		return catalog.Subject{}, translate(err, catalog.ErrSubjectNameExists, nil)
	}
	return row.toSubject(), nil
}

func (repo *catalogRepository) DeleteSubject(ctx context.Context, id int) error {
	_, err := repo.exec(ctx, "DELETE FROM subject WHERE id = ?", id)
	return translate(err, nil, catalog.ErrSubjectInUse)
}

// Chapters

func (repo *catalogRepository) QueryChapters(ctx context.Context, subjectIDs ...int) ([]catalog.Chapter, error) {
	var rows []chapterRow
	if len(subjectIDs) == 0 {
		if err := repo.selectAll(ctx, &rows, "SELECT id, subject_id, name FROM chapter ORDER BY id"); err != nil {
			return nil, err
		}
		return toChapters(rows), nil
	}

	query, args, err := sqlx.In("SELECT id, subject_id, name FROM chapter WHERE subject_id IN (?) ORDER BY id", subjectIDs)
	if err != nil {
		return nil, err
	}
	if err = repo.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return toChapters(rows), nil
}

func (repo *catalogRepository) GetChapter(ctx context.Context, id int) (catalog.Chapter, error) {
	var row chapterRow
	if err := repo.get(ctx, &row, "SELECT id, subject_id, name FROM chapter WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return catalog.Chapter{}, catalog.ErrChapterNotFound
		}
		return catalog.Chapter{}, err
	}
	return catalog.Chapter(row), nil
}

func (repo *catalogRepository) CountChapters(ctx context.Context, subjectID int) (int, error) {
	return repo.count(ctx, "SELECT COUNT(*) FROM chapter WHERE subject_id = ?", subjectID)
}

func (repo *catalogRepository) CreateChapter(ctx context.Context, chap catalog.Chapter) (catalog.Chapter, error) {
	var row chapterRow
	err := repo.get(
		ctx, &row,
		"INSERT INTO chapter (subject_id, name) VALUES (?, ?) RETURNING id, subject_id, name",
		chap.SubjectID, chap.Name,
	)
	if err != nil {
		return catalog.Chapter{}, translate(err, nil, catalog.ErrSubjectNotFound)
	}
	return catalog.Chapter(row), nil
}

func (repo *catalogRepository) UpdateChapter(ctx context.Context, chap catalog.Chapter) (catalog.Chapter, error) {
	var row chapterRow
	err := repo.get(ctx, &row, "UPDATE chapter SET name = ? WHERE id = ? RETURNING id, subject_id, name", chap.Name, chap.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return catalog.Chapter{}, catalog.ErrChapterNotFound
		}
		return catalog.Chapter{}, err
	}
	return catalog.Chapter(row), nil
}

func (repo *catalogRepository) DeleteChapter(ctx context.Context, id int) error {
	_, err := repo.exec(ctx, "DELETE FROM chapter WHERE id = ?", id)
	return translate(err, nil, catalog.ErrChapterInUse)
}

// Quizzes

func quizWhere(filter catalog.QuizFilter, alias string) *where {
	w := &where{}
	if filter.ChapterID != 0 {
		w.add(alias+"chapter_id = ?", filter.ChapterID)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add(alias+"created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.ScheduledAfter.IsZero() {
		w.add(alias+"date_of_quiz > ?", filter.ScheduledAfter.UTC())
	}
	return w
}

func (repo *catalogRepository) QueryQuizzes(ctx context.Context, filter catalog.QuizFilter) ([]catalog.Quiz, error) {
	w := quizWhere(filter, "")
	var rows []quizRow
	err := repo.selectAll(ctx, &rows, "SELECT "+quizColumns+" FROM quiz"+w.String()+" ORDER BY id"+limit(filter.Limit), w.args...)
	if err != nil {
		return nil, err
	}
	quizzes := make([]catalog.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, row.toQuiz())
	}
	return quizzes, nil
}

func (repo *catalogRepository) QueryQuizSummaries(ctx context.Context, filter catalog.QuizFilter) ([]catalog.QuizSummary, error) {
	return querySummaries(ctx, repo.store, filter)
}

func (repo *catalogRepository) GetQuiz(ctx context.Context, id int) (catalog.Quiz, error) {
	return getQuiz(ctx, repo.store, id)
}

func (repo *catalogRepository) CountQuizzes(ctx context.Context, chapterID int) (int, error) {
	return repo.count(ctx, "SELECT COUNT(*) FROM quiz WHERE chapter_id = ?", chapterID)
}

func (repo *catalogRepository) CreateQuiz(ctx context.Context, quiz catalog.Quiz) (catalog.Quiz, error) {
	var row quizRow
	err := repo.get(
		ctx, &row,
		`INSERT INTO quiz (chapter_id, date_of_quiz, time_duration, max_attempts, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING `+quizColumns,
		quiz.ChapterID, quiz.DateOfQuiz.UTC(), quiz.TimeDuration, null.IntFromPtr(quiz.MaxAttempts), quiz.CreatedAt.UTC(),
	)
	if err != nil {
		return catalog.Quiz{}, translate(err, nil, catalog.ErrChapterNotFound)
	}
	return row.toQuiz(), nil
}

func (repo *catalogRepository) UpdateQuiz(ctx context.Context, quiz catalog.Quiz) (catalog.Quiz, error) {
	var row quizRow
	err := repo.get(
		ctx, &row,
		"UPDATE quiz SET date_of_quiz = ?, time_duration = ?, max_attempts = ? WHERE id = ? RETURNING "+quizColumns,
		quiz.DateOfQuiz.UTC(), quiz.TimeDuration, null.IntFromPtr(quiz.MaxAttempts), quiz.ID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return catalog.Quiz{}, catalog.ErrQuizNotFound
		}
		return catalog.Quiz{}, err
	}
	return row.toQuiz(), nil
}

func (repo *catalogRepository) DeleteQuiz(ctx context.Context, id int) error {
	_, err := repo.exec(ctx, "DELETE FROM quiz WHERE id = ?", id)
	return translate(err, nil, catalog.ErrQuizInUse)
}

// Questions

func (repo *catalogRepository) QueryQuestions(ctx context.Context, quizID int) ([]catalog.Question, error) {
	return queryQuestions(ctx, repo.store, quizID)
}

func (repo *catalogRepository) GetQuestion(ctx context.Context, id int) (catalog.Question, error) {
	var row questionRow
	if err := repo.get(ctx, &row, "SELECT "+questionColumns+" FROM question WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return catalog.Question{}, catalog.ErrQuestionNotFound
		}
		return catalog.Question{}, err
	}
	return row.toQuestion(), nil
}

func (repo *catalogRepository) CountQuestions(ctx context.Context, quizID int) (int, error) {
	return repo.count(ctx, "SELECT COUNT(*) FROM question WHERE quiz_id = ?", quizID)
}

func (repo *catalogRepository) CreateQuestion(ctx context.Context, q catalog.Question) (catalog.Question, error) {
	var row questionRow
	err := repo.get(
		ctx, &row,
		`INSERT INTO question (quiz_id, question_statement, option1, option2, option3, option4, correct_option)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING `+questionColumns,
		q.QuizID, q.QuestionStatement, q.Option1, q.Option2, q.Option3, q.Option4, q.CorrectOption,
	)
	if err != nil {
		return catalog.Question{}, translate(err, nil, catalog.ErrQuizNotFound)
	}
	return row.toQuestion(), nil
}

func (repo *catalogRepository) UpdateQuestion(ctx context.Context, q catalog.Question) (catalog.Question, error) {
	var row questionRow
	err := repo.get(
		ctx, &row,
		`UPDATE question SET question_statement = ?, option1 = ?, option2 = ?, option3 = ?, option4 = ?, correct_option = ?
		WHERE id = ? RETURNING `+questionColumns,
		q.QuestionStatement, q.Option1, q.Option2, q.Option3, q.Option4, q.CorrectOption, q.ID,
	)
	if err == sql.ErrNoRows {
		return catalog.Question{}, catalog.ErrQuestionNotFound
	}
	return row.toQuestion(), err
}

func (repo *catalogRepository) DeleteQuestion(ctx context.Context, id int) error {
	_, err := repo.exec(ctx, "DELETE FROM question WHERE id = ?", id)
	return err
}

func (repo *catalogRepository) CountQuizAttempts(ctx context.Context, quizID int) (int, error) {
	return repo.count(ctx, "SELECT COUNT(*) FROM attempt WHERE quiz_id = ?", quizID)
}

func getQuiz(ctx context.Context, s store, id int) (catalog.Quiz, error) {
	var row quizRow
	if err := s.get(ctx, &row, "SELECT "+quizColumns+" FROM quiz WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return catalog.Quiz{}, catalog.ErrQuizNotFound
		}
		return catalog.Quiz{}, err
	}
	return row.toQuiz(), nil
}

func queryQuestions(ctx context.Context, s store, quizID int) ([]catalog.Question, error) {
	var rows []questionRow
	if err := s.selectAll(ctx, &rows, "SELECT "+questionColumns+" FROM question WHERE quiz_id = ? ORDER BY id", quizID); err != nil {
		return nil, err
	}
	questions := make([]catalog.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.toQuestion())
	}
	return questions, nil
}
