package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

const searchLogColumns = `id, keyword, institution_name, announcement_no, inquiry_mode,
        date_from, date_to, page_no, num_of_rows, channel, client_id,
        expected_calls, successful_calls, partial_failure, dual_search, cached,
        item_count, total_count, error_message, duration_ms, created_at`

type SearchLogRepo struct {
	db *DB
}

func NewSearchLogRepo(db *DB) *SearchLogRepo {
	return &SearchLogRepo{db: db}
}

func (r *SearchLogRepo) Create(ctx context.Context, rec *domain.SearchRecord) error {
	query := `
        INSERT INTO search_log (
            keyword, institution_name, announcement_no, inquiry_mode,
            date_from, date_to, page_no, num_of_rows, channel, client_id,
            expected_calls, successful_calls, partial_failure, dual_search, cached,
            item_count, total_count, error_message, duration_ms
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
        RETURNING id, created_at
    `

	err := r.db.Pool.QueryRow(ctx, query,
		rec.Keyword,
		rec.InstitutionName,
		rec.AnnouncementNo,
		int(rec.Mode),
		nullTime(rec.DateFrom),
		nullTime(rec.DateTo),
		rec.PageNo,
		rec.NumOfRows,
		rec.Channel,
		rec.ClientID,
		rec.ExpectedCalls,
		rec.SuccessfulCalls,
		rec.PartialFailure,
		rec.DualSearch,
		rec.Cached,
		rec.ItemCount,
		rec.TotalCount,
		rec.ErrorMessage,
		rec.Duration.Milliseconds(),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create search record: %w", err)
	}

	return nil
}

func (r *SearchLogRepo) ListRecent(ctx context.Context, limit int) ([]domain.SearchRecord, error) {
	query := `SELECT ` + searchLogColumns + `
        FROM search_log
        ORDER BY created_at DESC, id DESC
        LIMIT $1
    `
	return r.query(ctx, query, limit)
}

func (r *SearchLogRepo) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.SearchRecord, error) {
	query := `SELECT ` + searchLogColumns + `
        FROM search_log
        WHERE client_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `
	return r.query(ctx, query, clientID, limit)
}

func (r *SearchLogRepo) GetByID(ctx context.Context, id int64) (*domain.SearchRecord, error) {
	query := `SELECT ` + searchLogColumns + ` FROM search_log WHERE id = $1`

	rec, err := scanRecord(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get search record: %w", err)
	}
	return rec, nil
}

func (r *SearchLogRepo) query(ctx context.Context, query string, args ...any) ([]domain.SearchRecord, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list search records: %w", err)
	}
	defer rows.Close()

	var records []domain.SearchRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search record: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (*domain.SearchRecord, error) {
	var (
		rec        domain.SearchRecord
		mode       int
		from, to   *time.Time
		durationMS int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.Keyword,
		&rec.InstitutionName,
		&rec.AnnouncementNo,
		&mode,
		&from,
		&to,
		&rec.PageNo,
		&rec.NumOfRows,
		&rec.Channel,
		&rec.ClientID,
		&rec.ExpectedCalls,
		&rec.SuccessfulCalls,
		&rec.PartialFailure,
		&rec.DualSearch,
		&rec.Cached,
		&rec.ItemCount,
		&rec.TotalCount,
		&rec.ErrorMessage,
		&durationMS,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Mode = domain.InquiryMode(mode)
	if from != nil {
		rec.DateFrom = *from
	}
	if to != nil {
		rec.DateTo = *to
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return &rec, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
