package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kitbuilder587/bid-search/internal/domain"
	"github.com/kitbuilder587/bid-search/internal/service"
)

var errStrict = errors.New("partial failure in strict mode")

type searchFlags struct {
	keyword     string
	institution string
	number      string
	from        string
	to          string
	page        int
	rows        int
	noCache     bool
	strict      bool
	asJSON      bool
}

func searchCommand() *cobra.Command {
	var f searchFlags

	cmd := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Run one aggregated search and print the result",
		Long: `Runs the same aggregation as GET /api/bid-search once and prints it.

Examples:
  bidsearch search 준설
  bidsearch search --instt 부산광역시 --from 20260101 --to 20260131
  bidsearch search --no R26BK01234567 --strict`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && f.keyword == "" {
				f.keyword = args[0]
			}

			req, err := f.request()
			if err != nil {
				return err
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := buildApp(cmd.Context(), cfg, logger, appOptions{Registry: prometheus.NewRegistry()})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.service.Search(cmd.Context(), req, service.Origin{Channel: service.ChannelCLI})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				printResult(out, res)
			}

			if f.strict && res.Meta.SuccessfulCalls < res.Meta.ExpectedCalls {
				return fmt.Errorf("%w: %d/%d calls succeeded", errStrict, res.Meta.SuccessfulCalls, res.Meta.ExpectedCalls)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.keyword, "keyword", "k", "", "bidNtceNm filter")
	cmd.Flags().StringVarP(&f.institution, "instt", "i", "", "insttNm filter")
	cmd.Flags().StringVar(&f.number, "no", "", "bidNtceNo exact lookup (inqryDiv=2)")
	cmd.Flags().StringVar(&f.from, "from", "", "start date, YYYYMMDD or YYYYMMDDHHmm")
	cmd.Flags().StringVar(&f.to, "to", "", "end date, YYYYMMDD or YYYYMMDDHHmm")
	cmd.Flags().IntVar(&f.page, "page", domain.DefaultPage, "page number")
	cmd.Flags().IntVar(&f.rows, "rows", domain.DefaultPageSize, "rows per page")
	cmd.Flags().BoolVar(&f.noCache, "nocache", false, "skip the cache read")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "exit non-zero unless every upstream call succeeded")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the result as JSON")

	return cmd
}

func (f searchFlags) request() (domain.SearchRequest, error) {
	from, err := domain.ParseBidDate(f.from, false)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	to, err := domain.ParseBidDate(f.to, true)
	if err != nil {
		return domain.SearchRequest{}, err
	}

	req := domain.SearchRequest{
		Keyword:         f.keyword,
		InstitutionName: f.institution,
		DateFrom:        from,
		DateTo:          to,
		Page:            f.page,
		PageSize:        f.rows,
		NoCache:         f.noCache,
	}
	if f.number != "" {
		req.Mode = domain.InquiryByNumber
		req.AnnouncementNo = f.number
	}
	return req, nil
}

func printResult(w io.Writer, res *domain.AggregationResult) {
	status := "ok"
	switch {
	case res.Cached:
		status = "cached"
	case res.Meta.PartialFailure:
		status = "partial"
	}

	fmt.Fprintf(w, "status: %s\n", status)
	fmt.Fprintf(w, "totalCount: %d (page %d, %d rows)\n", res.TotalCount, res.PageNo, res.NumOfRows)
	fmt.Fprintf(w, "calls: %d/%d succeeded, dual=%t, pagination=%s\n",
		res.Meta.SuccessfulCalls, res.Meta.ExpectedCalls, res.Meta.DualSearch, res.Meta.Pagination)

	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}

	fmt.Fprintln(w, strings.Repeat("-", 40))
	for i, b := range res.Items {
		fmt.Fprintf(w, "%3d. [%s] %s %s\n", i+1, b.SourceCategory, b.NumberWithOrder(), b.Title)
	}
}
