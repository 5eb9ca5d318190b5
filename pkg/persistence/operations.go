package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docassist/pkg/form"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DatabaseOperations runs queries against one connection.
type DatabaseOperations struct {
	db  *sql.DB
	now func() time.Time
}

func NewDatabaseOperations(db *sql.DB) *DatabaseOperations {
	return &DatabaseOperations{db: db, now: time.Now}
}

// InsertGeneration stores gen, assigning an id and timestamp when missing.
func (ops *DatabaseOperations) InsertGeneration(ctx context.Context, gen *Generation) error {
	if gen.ID == "" {
		gen.ID = GenerateGenerationID()
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = ops.now().UTC()
	}
	if gen.Status == "" {
		gen.Status = StatusSucceeded
	}

	_, err := ops.db.ExecContext(ctx, `
		INSERT INTO generations (
			id, source, title, sections_json, input_json, markdown, filename, model,
			prompt_tokens, completion_tokens, cost_usd, duration_ms, status, error_category, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gen.ID, string(gen.Source), gen.Title, gen.SectionsJSON, gen.InputJSON, gen.Markdown, gen.Filename, gen.Model,
		gen.PromptTokens, gen.CompletionTokens, gen.CostUSD, gen.DurationMS, gen.Status, gen.ErrorCategory,
		gen.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation %s: %w", gen.ID, err)
	}
	return nil
}

const generationColumns = `id, source, title, sections_json, input_json, markdown, filename, model,
	prompt_tokens, completion_tokens, cost_usd, duration_ms, status, error_category, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row scanner) (*Generation, error) {
	var gen Generation
	var source, createdAt string
	err := row.Scan(&gen.ID, &source, &gen.Title, &gen.SectionsJSON, &gen.InputJSON, &gen.Markdown, &gen.Filename,
		&gen.Model, &gen.PromptTokens, &gen.CompletionTokens, &gen.CostUSD, &gen.DurationMS, &gen.Status,
		&gen.ErrorCategory, &createdAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap
	}
	gen.Source = Source(source)
	if gen.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	return &gen, nil
}

// GetGeneration returns one generation or ErrNotFound.
func (ops *DatabaseOperations) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	row := ops.db.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = ?`, id)
	gen, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("generation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation %s: %w", id, err)
	}
	return gen, nil
}

// ListGenerations returns generations newest first. Markdown bodies are
// omitted; use GetGeneration for the full record.
func (ops *DatabaseOperations) ListGenerations(ctx context.Context, filter GenerationFilter) ([]*Generation, error) {
	var where []string
	var args []any
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + generationColumns + ` FROM generations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := ops.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var out []*Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gen.Markdown = ""
		out = append(out, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generations: %w", err)
	}
	return out, nil
}

// GetGenerationStats aggregates every stored generation.
func (ops *DatabaseOperations) GetGenerationStats(ctx context.Context) (*GenerationStats, error) {
	var stats GenerationStats
	err := ops.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(prompt_tokens + completion_tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM generations`).Scan(&stats.Total, &stats.Succeeded, &stats.Failed, &stats.Tokens, &stats.CostUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate generations: %w", err)
	}
	return &stats, nil
}

// SaveFormSession upserts a form session snapshot.
func (ops *DatabaseOperations) SaveFormSession(ctx context.Context, id string, state form.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal form session %s: %w", id, err)
	}
	_, err = ops.db.ExecContext(ctx, `
		INSERT INTO form_sessions (id, state_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		id, string(data), ops.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save form session %s: %w", id, err)
	}
	return nil
}

// LoadFormSessions returns every stored snapshot keyed by id.
func (ops *DatabaseOperations) LoadFormSessions(ctx context.Context) (map[string]form.State, error) {
	rows, err := ops.db.QueryContext(ctx, `SELECT id, state_json FROM form_sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query form sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]form.State)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan form session: %w", err)
		}
		var state form.State
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return nil, fmt.Errorf("failed to decode form session %s: %w", id, err)
		}
		out[id] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate form sessions: %w", err)
	}
	return out, nil
}

// DeleteFormSession removes a snapshot. Missing ids are not an error.
func (ops *DatabaseOperations) DeleteFormSession(ctx context.Context, id string) error {
	if _, err := ops.db.ExecContext(ctx, `DELETE FROM form_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete form session %s: %w", id, err)
	}
	return nil
}

// DeleteFormSessionsBefore prunes snapshots not touched since cutoff.
func (ops *DatabaseOperations) DeleteFormSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := ops.db.ExecContext(ctx, `DELETE FROM form_sessions WHERE updated_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune form sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned sessions: %w", err)
	}
	return n, nil
}

var _ form.Store = (*DatabaseOperations)(nil)
