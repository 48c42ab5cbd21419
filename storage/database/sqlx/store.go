package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// postgres error codes
const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

// store runs its queries on the DB or, within a transaction, on the Tx.
type store struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

func (s store) ext() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// withinTx runs fn in a new transaction, or in the current one if any.
func (s store) withinTx(ctx context.Context, fn func(s store) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(store{db: s.db, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (s store) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, s.ext(), dest, s.db.Rebind(query), args...)
}

func (s store) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, s.ext(), dest, s.db.Rebind(query), args...)
}

func (s store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.ext().ExecContext(ctx, s.db.Rebind(query), args...)
}

// execIn expands the slice arguments of query (`IN (?)`) before executing it.
func (s store) execIn(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	return s.exec(ctx, query, args...)
}

func (s store) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	err := s.get(ctx, &n, query, args...)
	return n, err
}

// translate maps the constraint violations of err to the given domain errors, when set.
func translate(err error, onUnique, onForeignKey error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == uniqueViolation && onUnique != nil:
			return onUnique
		case pqErr.Code == foreignKeyViolation && onForeignKey != nil:
			return onForeignKey
		}
	}
	return err
}

// where accumulates AND-ed conditions with `?` placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func limit(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}
