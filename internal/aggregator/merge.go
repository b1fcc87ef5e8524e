package aggregator

import (
	"github.com/kitbuilder587/bid-search/internal/domain"
)

// Merge склеивает выдачу успешных вызовов в порядке вызовов
// и оставляет первое вхождение каждого id.
// Записи без номера объявления не схлопываются.
func Merge(sequences [][]domain.BidAnnouncement) []domain.BidAnnouncement {
	total := 0
	for _, seq := range sequences {
		total += len(seq)
	}

	merged := make([]domain.BidAnnouncement, 0, total)
	seen := make(map[string]struct{}, total)

	for _, seq := range sequences {
		for _, item := range seq {
			if item.ID != "" {
				if _, dup := seen[item.ID]; dup {
					continue
				}
				seen[item.ID] = struct{}{}
			}
			merged = append(merged, item)
		}
	}
	return merged
}

// Paginate - страница page размера size из уже слитого списка
func Paginate(items []domain.BidAnnouncement, page, size int) []domain.BidAnnouncement {
	if page < 1 || size < 1 {
		return []domain.BidAnnouncement{}
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []domain.BidAnnouncement{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}

// SumTotals - сумма totalCount успешных вызовов.
// Дубликаты между категориями в ней не вычтены.
func SumTotals(totals []int) int {
	sum := 0
	for _, t := range totals {
		sum += t
	}
	return sum
}
