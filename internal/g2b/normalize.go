package g2b

import (
	"github.com/kitbuilder587/bid-search/internal/domain"
)

var (
	noticeInstitutionAliases = []string{"ntceInsttNm", "insttNm"}
	demandInstitutionAliases = []string{"dmandInsttNm", "dminsttNm"}
)

// normalize переводит запись upstream в BidAnnouncement.
// Сама запись сохраняется в Raw без изменений.
func normalize(cat domain.Category, rec map[string]any) domain.BidAnnouncement {
	return domain.BidAnnouncement{
		ID:                field(rec, "bidNtceNo"),
		Order:             field(rec, "bidNtceOrd"),
		Title:             field(rec, "bidNtceNm"),
		NoticeInstitution: resolveAlias(rec, noticeInstitutionAliases),
		DemandInstitution: resolveAlias(rec, demandInstitutionAliases),
		NoticeDatetime:    field(rec, "bidNtceDt"),
		CloseDatetime:     field(rec, "bidClseDt"),
		DetailURL:         field(rec, "bidNtceDtlUrl"),
		SourceCategory:    cat,
		Raw:               rec,
	}
}

func normalizeAll(cat domain.Category, body ParsedBody) []domain.BidAnnouncement {
	recs := body.Records()
	items := make([]domain.BidAnnouncement, 0, len(recs))
	for _, rec := range recs {
		items = append(items, normalize(cat, rec))
	}
	return items
}

// resolveAlias берет значение по самому длинному из имен, у которого оно непустое
func resolveAlias(rec map[string]any, aliases []string) string {
	var best, bestKey string
	for _, key := range aliases {
		v := field(rec, key)
		if v == "" {
			continue
		}
		if len(key) > len(bestKey) {
			best, bestKey = v, key
		}
	}
	return best
}

func field(rec map[string]any, key string) string {
	return stringify(rec[key])
}
