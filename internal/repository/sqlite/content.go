package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
)

// ContentRepository implements domain.ContentRepository using SQLite.
type ContentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a new SQLite-backed ContentRepository.
func NewContentRepository(db *DB) *ContentRepository {
	return &ContentRepository{db: db.SqlDB}
}

func (r *ContentRepository) Create(ctx context.Context, c *domain.TestContent) error {
	now := time.Now().UTC()
	if c.Difficulty == "" {
		c.Difficulty = domain.DefaultDifficulty
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO test_contents (text, difficulty, created_at) VALUES (?, ?, ?)`,
		c.Text, c.Difficulty, now,
	)
	if err != nil {
		return fmt.Errorf("insert content: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	return nil
}

func (r *ContentRepository) GetByID(ctx context.Context, id int64) (*domain.TestContent, error) {
	c := &domain.TestContent{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, text, difficulty, created_at FROM test_contents WHERE id = ?`, id,
	).Scan(&c.ID, &c.Text, &c.Difficulty, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query content by id: %w", err)
	}
	return c, nil
}

// GetActive returns the most recently created content.
func (r *ContentRepository) GetActive(ctx context.Context) (*domain.TestContent, error) {
	c := &domain.TestContent{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, text, difficulty, created_at FROM test_contents
		 ORDER BY id DESC LIMIT 1`,
	).Scan(&c.ID, &c.Text, &c.Difficulty, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query active content: %w", err)
	}
	return c, nil
}

func (r *ContentRepository) List(ctx context.Context) ([]domain.TestContent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, text, difficulty, created_at FROM test_contents ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	defer rows.Close()

	var contents []domain.TestContent
	for rows.Next() {
		var c domain.TestContent
		if err := rows.Scan(&c.ID, &c.Text, &c.Difficulty, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

func (r *ContentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM test_contents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
