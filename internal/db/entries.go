package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/wellness-tracker/internal/tracker"
)

// EntryRepository stores tracker entries. Every tracker has its own table
// sharing the id, user_id, entry_date and timestamp columns; the remaining
// columns come from the entry itself.
type EntryRepository struct {
	pool *pgxpool.Pool
}

var metaColumns = []string{"id", "user_id", "entry_date", "created_at", "updated_at"}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func tableName(kind tracker.Kind) string {
	return pgx.Identifier{kind.Table()}.Sanitize()
}

func selectEntries(e tracker.Entry) string {
	return fmt.Sprintf(`SELECT id, user_id, entry_date::text, created_at, updated_at, %s FROM %s`,
		quoteColumns(e.Columns()), tableName(e.Kind()))
}

// scanEntry reads a row selected by selectEntries into e.
func scanEntry(row pgx.Row, e tracker.Entry) error {
	m := e.Base()
	var date string
	targets := append([]any{&m.ID, &m.UserID, &date, &m.CreatedAt, &m.UpdatedAt}, e.Targets()...)
	if err := row.Scan(targets...); err != nil {
		return err
	}
	m.Date = tracker.Date(date)
	return nil
}

// Get retrieves the user's entry of kind for date.
func (r *EntryRepository) Get(ctx context.Context, kind tracker.Kind, userID uuid.UUID, date tracker.Date) (tracker.Entry, error) {
	e, err := tracker.New(kind)
	if err != nil {
		return nil, err
	}

	query := selectEntries(e) + ` WHERE user_id = $1 AND entry_date = $2::text::date`
	err = scanEntry(r.pool.QueryRow(ctx, query, userID, string(date)), e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tracker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", kind.Table(), err)
	}
	return e, nil
}

// Insert stores a new entry.
func (r *EntryRepository) Insert(ctx context.Context, e tracker.Entry) error {
	m := e.Base()
	cols := append(append([]string{}, metaColumns...), e.Columns()...)
	args := append([]any{m.ID, m.UserID, string(m.Date), m.CreatedAt, m.UpdatedAt}, e.Values()...)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	placeholders[2] += "::text::date"

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		tableName(e.Kind()), quoteColumns(cols), strings.Join(placeholders, ", "))
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s for %s already exists: %w", e.Kind(), m.Date, err)
		}
		return fmt.Errorf("inserting into %s: %w", e.Kind().Table(), err)
	}
	return nil
}

// Update replaces the tracker columns of the user's entry for its date.
func (r *EntryRepository) Update(ctx context.Context, e tracker.Entry) error {
	m := e.Base()
	cols := e.Columns()
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), i+4)
	}

	query := fmt.Sprintf(`UPDATE %s SET updated_at = $3, %s WHERE user_id = $1 AND entry_date = $2::text::date`,
		tableName(e.Kind()), strings.Join(sets, ", "))
	args := append([]any{m.UserID, string(m.Date), m.UpdatedAt}, e.Values()...)

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s: %w", e.Kind().Table(), err)
	}
	if result.RowsAffected() == 0 {
		return tracker.ErrNotFound
	}
	return nil
}

// List returns the user's entries of kind with from <= date <= to, oldest first.
func (r *EntryRepository) List(ctx context.Context, kind tracker.Kind, userID uuid.UUID, from, to tracker.Date) ([]tracker.Entry, error) {
	sample, err := tracker.New(kind)
	if err != nil {
		return nil, err
	}

	query := selectEntries(sample) + `
		WHERE user_id = $1 AND entry_date BETWEEN $2::text::date AND $3::text::date
		ORDER BY entry_date ASC
	`
	rows, err := r.pool.Query(ctx, query, userID, string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", kind.Table(), err)
	}
	defer rows.Close()

	var entries []tracker.Entry
	for rows.Next() {
		e, _ := tracker.New(kind)
		if err := scanEntry(rows, e); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", kind.Table(), err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", kind.Table(), err)
	}
	return entries, nil
}
