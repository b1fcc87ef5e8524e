package g2b

import (
	"testing"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

func TestParseItems_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantType  string
		wantCount int
	}{
		{
			name:     "empty string items",
			body:     `{"response":{"header":{"resultCode":"00"},"body":{"items":"","totalCount":0}}}`,
			wantType: "empty",
		},
		{
			name:     "missing items",
			body:     `{"response":{"header":{"resultCode":"00"},"body":{"totalCount":0}}}`,
			wantType: "empty",
		},
		{
			name:      "single object under item",
			body:      `{"response":{"header":{"resultCode":"00"},"body":{"items":{"item":{"bidNtceNo":"A"}},"totalCount":1}}}`,
			wantType:  "single",
			wantCount: 1,
		},
		{
			name:      "array under item",
			body:      `{"response":{"header":{"resultCode":"00"},"body":{"items":{"item":[{"bidNtceNo":"A"},{"bidNtceNo":"B"}]},"totalCount":2}}}`,
			wantType:  "many",
			wantCount: 2,
		},
		{
			name:      "items is array",
			body:      `{"response":{"header":{"resultCode":"00"},"body":{"items":[{"bidNtceNo":"A"},{"bidNtceNo":"B"},{"bidNtceNo":"C"}],"totalCount":3}}}`,
			wantType:  "many",
			wantCount: 3,
		},
		{
			name:      "xml repeated item",
			body:      `<response><header><resultCode>00</resultCode></header><body><items><item><bidNtceNo>A</bidNtceNo></item><item><bidNtceNo>B</bidNtceNo></item></items></body></response>`,
			wantType:  "many",
			wantCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := decodeBody("", []byte(tt.body))
			if err != nil {
				t.Fatalf("decodeBody() error = %v", err)
			}
			env, err := readEnvelope(dec.tree)
			if err != nil {
				t.Fatalf("readEnvelope() error = %v", err)
			}
			if env.ResultCode != "00" {
				t.Errorf("ResultCode = %q, want 00", env.ResultCode)
			}

			var gotType string
			switch env.Body.(type) {
			case Empty:
				gotType = "empty"
			case Single:
				gotType = "single"
			case Many:
				gotType = "many"
			}
			if gotType != tt.wantType {
				t.Errorf("body type = %s, want %s", gotType, tt.wantType)
			}
			if n := len(env.Body.Records()); n != tt.wantCount {
				t.Errorf("Records() len = %d, want %d", n, tt.wantCount)
			}
		})
	}
}

func TestResolveAlias(t *testing.T) {
	tests := []struct {
		name    string
		rec     map[string]any
		wantNtc string
		wantDmd string
	}{
		{
			name:    "only long alias",
			rec:     map[string]any{"ntceInsttNm": "Busan"},
			wantNtc: "Busan",
		},
		{
			name:    "only short alias",
			rec:     map[string]any{"insttNm": "Seoul", "dminsttNm": "Seoul Office"},
			wantNtc: "Seoul",
			wantDmd: "Seoul Office",
		},
		{
			name:    "both present, longer alias name wins",
			rec:     map[string]any{"insttNm": "Busan", "ntceInsttNm": "Busan Port Authority", "dminsttNm": "A", "dmandInsttNm": "B"},
			wantNtc: "Busan Port Authority",
			wantDmd: "B",
		},
		{
			name:    "longer alias name wins over longer value",
			rec:     map[string]any{"insttNm": "Busan Metropolitan City", "ntceInsttNm": "Busan"},
			wantNtc: "Busan",
		},
		{
			name:    "empty long alias falls back",
			rec:     map[string]any{"ntceInsttNm": "  ", "insttNm": "Daegu"},
			wantNtc: "Daegu",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bid := normalize(domain.CategoryGoods, tt.rec)
			if bid.NoticeInstitution != tt.wantNtc {
				t.Errorf("NoticeInstitution = %q, want %q", bid.NoticeInstitution, tt.wantNtc)
			}
			if bid.DemandInstitution != tt.wantDmd {
				t.Errorf("DemandInstitution = %q, want %q", bid.DemandInstitution, tt.wantDmd)
			}
		})
	}
}

func TestDecodeBody_Sniffing(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        Format
		fallback    bool
	}{
		{"json without content type", "", `{"response":{}}`, FormatJSON, false},
		{"xml without content type", "", `<response/>`, FormatXML, false},
		{"text/plain xml", "text/plain", `<response/>`, FormatXML, false},
		{"declared xml but json", "application/xml", `{"response":{}}`, FormatJSON, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := decodeBody(tt.contentType, []byte(tt.body))
			if err != nil {
				t.Fatalf("decodeBody() error = %v", err)
			}
			if dec.format != tt.want {
				t.Errorf("format = %s, want %s", dec.format, tt.want)
			}
			if dec.fallback != tt.fallback {
				t.Errorf("fallback = %v, want %v", dec.fallback, tt.fallback)
			}
		})
	}
}

func TestDecodeXML_EUCKR(t *testing.T) {
	// "부산" в EUC-KR
	body := append([]byte(`<?xml version="1.0" encoding="EUC-KR"?><response><header><resultCode>00</resultCode></header><body><items><item><bidNtceNm>`),
		0xBA, 0xCE, 0xBB, 0xEA)
	body = append(body, []byte(`</bidNtceNm></item></items></body></response>`)...)

	dec, err := decodeBody("text/xml", body)
	if err != nil {
		t.Fatalf("decodeBody() error = %v", err)
	}
	env, err := readEnvelope(dec.tree)
	if err != nil {
		t.Fatalf("readEnvelope() error = %v", err)
	}
	recs := env.Body.Records()
	if len(recs) != 1 || recs[0]["bidNtceNm"] != "부산" {
		t.Errorf("records = %v, want one item titled 부산", recs)
	}
}

func TestToInt(t *testing.T) {
	if got := toInt("42"); got != 42 {
		t.Errorf("toInt(\"42\") = %d", got)
	}
	if got := toInt(float64(7)); got != 7 {
		t.Errorf("toInt(7.0) = %d", got)
	}
	if got := toInt(nil); got != 0 {
		t.Errorf("toInt(nil) = %d", got)
	}
}
