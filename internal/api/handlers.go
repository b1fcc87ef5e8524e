package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kitbuilder587/bid-search/internal/domain"
	"github.com/kitbuilder587/bid-search/internal/service"
)

const channelHTTP = service.ChannelHTTP

type Handler struct {
	svc    service.SearchService
	logger *zap.Logger
}

func NewHandler(svc service.SearchService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// searchQuery - параметры /api/bid-search в именах G2B
type searchQuery struct {
	Keyword     string `form:"bidNtceNm" binding:"max=200"`
	Institution string `form:"insttNm" binding:"max=200"`
	InquiryDiv  int    `form:"inqryDiv" binding:"omitempty,oneof=1 2"`
	FromBidDt   string `form:"fromBidDt"`
	ToBidDt     string `form:"toBidDt"`
	InqryBgnDt  string `form:"inqryBgnDt"`
	InqryEndDt  string `form:"inqryEndDt"`
	PageNo      int    `form:"pageNo" binding:"omitempty,min=1"`
	NumOfRows   int    `form:"numOfRows" binding:"omitempty,min=1,max=999"`
	BidNtceNo   string `form:"bidNtceNo" binding:"max=40"`
	NoCache     string `form:"nocache"`
	IncludeRaw  string `form:"includeRaw"`
}

func (q searchQuery) toRequest() (domain.SearchRequest, error) {
	from, err := domain.ParseBidDate(firstNonEmpty(q.FromBidDt, q.InqryBgnDt), false)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	to, err := domain.ParseBidDate(firstNonEmpty(q.ToBidDt, q.InqryEndDt), true)
	if err != nil {
		return domain.SearchRequest{}, err
	}

	mode := domain.InquiryMode(q.InquiryDiv)
	if mode == 0 && strings.TrimSpace(q.BidNtceNo) != "" {
		mode = domain.InquiryByNumber
	}

	return domain.SearchRequest{
		Keyword:         q.Keyword,
		InstitutionName: q.Institution,
		AnnouncementNo:  q.BidNtceNo,
		Mode:            mode,
		DateFrom:        from,
		DateTo:          to,
		Page:            q.PageNo,
		PageSize:        q.NumOfRows,
		NoCache:         isTruthy(q.NoCache),
	}, nil
}

// BidSearch - GET /api/bid-search
func (h *Handler) BidSearch(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: err.Error()})
		return
	}

	req, err := q.toRequest()
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.svc.Search(c.Request.Context(), req, h.origin(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newSearchResponse(res, isTruthy(q.IncludeRaw)))
}

// BidDetail - GET /api/bid-detail?bidNtceNo=&bidNtceOrd=
func (h *Handler) BidDetail(c *gin.Context) {
	no := strings.TrimSpace(c.Query("bidNtceNo"))
	if no == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: "bidNtceNo is required"})
		return
	}

	bid, err := h.svc.Lookup(c.Request.Context(), no, strings.TrimSpace(c.Query("bidNtceOrd")), h.origin(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, DetailResponse{Success: true, Data: *bid})
}

// History - GET /api/bid-search/history?limit=
func (h *Handler) History(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := h.svc.History(c.Request.Context(), "", limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newHistoryResponse(records))
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"configured": h.svc.Configured(),
		"history":    h.svc.HistoryEnabled(),
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		c.Error(err)
	} else {
		h.logger.Debug("request rejected",
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}

func (h *Handler) origin(c *gin.Context) service.Origin {
	return service.Origin{Channel: channelHTTP, ClientID: c.ClientIP()}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}
