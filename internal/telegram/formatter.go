package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

// MaxMessageLength - лимит телеграма на одно сообщение
const MaxMessageLength = 4096

func FormatSearchResult(title string, res *domain.AggregationResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("<b>🔎 %s</b>\n", html.EscapeString(title)))
	sb.WriteString(fmt.Sprintf("총 %d건 · %d페이지 %d건 표시\n", res.TotalCount, res.PageNo, len(res.Items)))
	if res.Cached {
		sb.WriteString("<i>캐시된 결과</i>\n")
	}

	if res.Meta.PartialFailure {
		sb.WriteString(fmt.Sprintf("\n⚠️ 일부 조회 실패 (%d/%d 성공)\n", res.Meta.SuccessfulCalls, res.Meta.ExpectedCalls))
		for _, w := range res.Warnings {
			sb.WriteString("• " + html.EscapeString(w) + "\n")
		}
	}

	if len(res.Items) == 0 {
		sb.WriteString("\n검색 결과가 없습니다.")
		return sb.String()
	}

	sb.WriteString("\n━━━━━━━━━━━━━━━━━━━━━\n")
	for i, b := range res.Items {
		sb.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, formatBidBody(b)))
	}

	return sb.String()
}

// FormatBid - карточка одного объявления для /detail
func FormatBid(b domain.BidAnnouncement) string {
	return formatBidBody(b)
}

func formatBidBody(b domain.BidAnnouncement) string {
	var sb strings.Builder

	sb.WriteString("<b>" + html.EscapeString(orDash(b.Title)) + "</b>\n")
	sb.WriteString(fmt.Sprintf("   [%s] <code>%s</code>\n", b.SourceCategory.Label(), html.EscapeString(b.NumberWithOrder())))

	if b.NoticeInstitution != "" || b.DemandInstitution != "" {
		sb.WriteString("   공고: " + html.EscapeString(orDash(b.NoticeInstitution)))
		if b.DemandInstitution != "" && b.DemandInstitution != b.NoticeInstitution {
			sb.WriteString(" / 수요: " + html.EscapeString(b.DemandInstitution))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("   게시 %s · 마감 %s\n", shortDatetime(b.NoticeDatetime), shortDatetime(b.CloseDatetime)))

	if b.DetailURL != "" {
		sb.WriteString(fmt.Sprintf("   <a href=\"%s\">상세보기</a>\n", html.EscapeString(b.DetailURL)))
	}
	return sb.String()
}

func FormatHistory(records []domain.SearchRecord) string {
	if len(records) == 0 {
		return "검색 기록이 없습니다."
	}

	var sb strings.Builder
	sb.WriteString("<b>최근 검색</b>\n\n")
	for i, r := range records {
		what := r.Keyword
		switch {
		case r.AnnouncementNo != "":
			what = r.AnnouncementNo
		case r.Keyword != "" && r.InstitutionName != "":
			what = r.Keyword + " + " + r.InstitutionName
		case r.InstitutionName != "":
			what = r.InstitutionName
		}

		status := fmt.Sprintf("%d건", r.ItemCount)
		if !r.Succeeded() {
			status = "실패"
		} else if r.PartialFailure {
			status += " ⚠️"
		}

		sb.WriteString(fmt.Sprintf("%d. %s · %s · %s\n",
			i+1,
			html.EscapeString(truncate(what, 40)),
			status,
			r.CreatedAt.In(domain.KST).Format("01-02 15:04"),
		))
	}
	return sb.String()
}

func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var messages []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			messages = append(messages, text)
			break
		}

		splitPoint := findSafeSplitPoint(text, maxLen)
		if splitPoint <= 0 || splitPoint > len(text) {
			splitPoint = runeBoundary(text, maxLen)
		}

		messages = append(messages, text[:splitPoint])
		text = text[splitPoint:]
	}

	return messages
}

func findSafeSplitPoint(text string, maxLen int) int {
	// ищем пробел или перевод строки, не ломая HTML-теги
	for i := maxLen - 1; i > maxLen/2; i-- {
		if i >= len(text) {
			continue
		}
		if isInsideHTMLTag(text, i) {
			continue
		}

		if text[i] == '\n' || text[i] == ' ' {
			return i + 1
		}
	}

	// внутри тега - ищем конец
	if maxLen < len(text) && isInsideHTMLTag(text, maxLen) {
		for i := maxLen; i < len(text); i++ {
			if text[i] == '>' {
				for j := i + 1; j < len(text) && j < i+50; j++ {
					if text[j] == '\n' || text[j] == ' ' {
						return j + 1
					}
				}
				return i + 1
			}
		}
	}

	for i := maxLen - 1; i > 0; i-- {
		if text[i] == ' ' || text[i] == '\n' {
			return i + 1
		}
	}

	return runeBoundary(text, maxLen)
}

// runeBoundary - ближайшая граница руны не дальше pos, хангыль многобайтный
func runeBoundary(text string, pos int) int {
	if pos >= len(text) {
		return len(text)
	}
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

func isInsideHTMLTag(text string, pos int) bool {
	if pos >= len(text) || pos < 0 {
		return false
	}
	for i := pos; i >= 0; i-- {
		if text[i] == '>' {
			return false
		}
		if text[i] == '<' {
			return true
		}
	}
	return false
}

// shortDatetime - "2026-01-10 10:00:00" -> "2026-01-10 10:00"
func shortDatetime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes-1]) + "…"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
