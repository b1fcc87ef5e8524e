package repository

import (
	"context"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

// SearchLogRepository - журнал выполненных поисков
type SearchLogRepository interface {
	Create(ctx context.Context, rec *domain.SearchRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.SearchRecord, error)
	ListByClient(ctx context.Context, clientID string, limit int) ([]domain.SearchRecord, error)
	GetByID(ctx context.Context, id int64) (*domain.SearchRecord, error)
}
