package repository

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

type MockSearchLogRepository struct {
	mu      sync.RWMutex
	records []domain.SearchRecord
	nextID  int64

	// CreateErr - если задан, Create его возвращает
	CreateErr error
}

func NewMockSearchLogRepository() *MockSearchLogRepository {
	return &MockSearchLogRepository{nextID: 1}
}

func (m *MockSearchLogRepository) Create(ctx context.Context, rec *domain.SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return m.CreateErr
	}

	rec.ID = m.nextID
	m.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records = append(m.records, *rec)
	return nil
}

// ListRecent - от новых к старым
func (m *MockSearchLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.SearchRecord, error) {
	return m.list(func(domain.SearchRecord) bool { return true }, limit), nil
}

func (m *MockSearchLogRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.SearchRecord, error) {
	return m.list(func(r domain.SearchRecord) bool { return r.ClientID == clientID }, limit), nil
}

func (m *MockSearchLogRepository) GetByID(ctx context.Context, id int64) (*domain.SearchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (m *MockSearchLogRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MockSearchLogRepository) list(keep func(domain.SearchRecord) bool, limit int) []domain.SearchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.SearchRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if !keep(m.records[i]) {
			continue
		}
		result = append(result, m.records[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}
