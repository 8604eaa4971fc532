package postgres

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortly/internal/database"
	"github.com/vadimbarashkov/shortly/internal/models"
)

type linkRecord struct {
	ID         int64          `db:"id"`
	ShortCode  string         `db:"short_code"`
	TargetURL  string         `db:"target_url"`
	Title      sql.NullString `db:"title"`
	ClickCount int64          `db:"click_count"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r *linkRecord) ToLink() *models.Link {
	return &models.Link{
		ID:         r.ID,
		ShortCode:  r.ShortCode,
		TargetURL:  r.TargetURL,
		Title:      r.Title.String,
		ClickCount: r.ClickCount,
		CreatedAt:  r.CreatedAt,
	}
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

// Create inserts a new link record. Uniqueness of the short code is
// enforced by the primary key, not by a prior existence check, so two
// concurrent creates with the same code cannot both succeed.
func (r *LinkRepository) Create(ctx context.Context, shortCode, targetURL, title string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Create"

	rec := new(linkRecord)
	query := `INSERT INTO links(short_code, target_url, title)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode, targetURL, title)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

// GetByShortCode retrieves a link record without mutating it.
func (r *LinkRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetByShortCode"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

// IncrementClicks adds delta to the click counter in a single statement.
// The counter is never read first, so concurrent increments from the
// redirect path and the analytics consumer cannot lose updates.
func (r *LinkRepository) IncrementClicks(ctx context.Context, shortCode string, delta int64) error {
	const op = "database.postgres.LinkRepository.IncrementClicks"

	query := `UPDATE links
		SET click_count = click_count + $2
		WHERE short_code = $1`

	res, err := r.db.ExecContext(ctx, query, shortCode, delta)
	if err != nil {
		return fmt.Errorf("%s: failed to increment clicks: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

// List returns a page of links ordered by creation time descending.
// Pagination is keyset-based over (created_at, id); the cursor is an
// opaque token produced by a previous call.
func (r *LinkRepository) List(ctx context.Context, cursor string, limit int) ([]*models.Link, string, error) {
	const op = "database.postgres.LinkRepository.List"

	if limit <= 0 {
		limit = defaultPageSize
	}

	var recs []linkRecord
	var err error

	if cursor == "" {
		query := `SELECT * FROM links
			ORDER BY created_at DESC, id DESC
			LIMIT $1`
		err = r.db.SelectContext(ctx, &recs, query, limit+1)
	} else {
		createdAt, id, decodeErr := decodeCursor(cursor)
		if decodeErr != nil {
			return nil, "", fmt.Errorf("%s: %w", op, decodeErr)
		}

		query := `SELECT * FROM links
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3`
		err = r.db.SelectContext(ctx, &recs, query, createdAt, id, limit+1)
	}

	if err != nil {
		return nil, "", fmt.Errorf("%s: failed to list link records: %w", op, err)
	}

	var nextCursor string
	if len(recs) > limit {
		recs = recs[:limit]
		last := recs[len(recs)-1]
		nextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	links := make([]*models.Link, 0, len(recs))
	for i := range recs {
		links = append(links, recs[i].ToLink())
	}

	return links, nextCursor, nil
}

const defaultPageSize = 25

func encodeCursor(createdAt time.Time, id int64) string {
	raw := fmt.Sprintf("%d:%d", createdAt.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, database.ErrInvalidCursor
	}

	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return time.Time{}, 0, database.ErrInvalidCursor
	}

	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, 0, database.ErrInvalidCursor
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, 0, database.ErrInvalidCursor
	}

	return time.Unix(0, nanos), id, nil
}
