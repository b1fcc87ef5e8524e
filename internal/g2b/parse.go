package g2b

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

type Format string

const (
	FormatUnknown Format = ""
	FormatJSON    Format = "json"
	FormatXML     Format = "xml"
)

func (f Format) other() Format {
	if f == FormatXML {
		return FormatJSON
	}
	return FormatXML
}

// ParsedBody - items из ответа: пусто, один объект или массив.
// upstream отдает items.item то объектом, то массивом, сводим один раз здесь.
type ParsedBody interface {
	Records() []map[string]any
	isParsedBody()
}

type Empty struct{}

type Single struct {
	Item map[string]any
}

type Many struct {
	Items []map[string]any
}

func (Empty) Records() []map[string]any { return nil }
func (s Single) Records() []map[string]any { return []map[string]any{s.Item} }
func (m Many) Records() []map[string]any { return m.Items }

func (Empty) isParsedBody() {}
func (Single) isParsedBody() {}
func (Many) isParsedBody() {}

type decoded struct {
	tree     map[string]any
	format   Format
	declared Format
	fallback bool
}

type envelope struct {
	ResultCode string
	ResultMsg  string
	TotalCount int
	PageNo     int
	NumOfRows  int
	Body       ParsedBody
}

const snippetLen = 200

var errNotObject = errors.New("top-level value is not an object")

// decodeBody пробует заявленный формат, потом другой.
// Без внятного Content-Type формат угадывается по первому символу.
func decodeBody(contentType string, body []byte) (*decoded, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}
	if looksLikeHTML(trimmed) {
		return nil, fmt.Errorf("received HTML page instead of data: %s", snippet(trimmed))
	}

	declared := formatFromContentType(contentType)
	first := declared
	if first == FormatUnknown {
		first = sniffFormat(trimmed)
	}

	var errs [2]error
	for i, f := range []Format{first, first.other()} {
		tree, err := decodeAs(f, trimmed)
		if err == nil {
			return &decoded{
				tree:     tree,
				format:   f,
				declared: declared,
				fallback: i > 0 || (declared != FormatUnknown && declared != f),
			}, nil
		}
		errs[i] = err
	}

	if isPlainText(trimmed) {
		return nil, fmt.Errorf("unexpected text response: %s", snippet(trimmed))
	}
	return nil, fmt.Errorf("could not parse response (%s: %v; %s: %v)", first, errs[0], first.other(), errs[1])
}

func decodeAs(f Format, body []byte) (map[string]any, error) {
	if f == FormatXML {
		return decodeXML(body)
	}
	return decodeJSON(body)
}

func decodeJSON(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return m, nil
}

type xmlNode struct {
	name     string
	text     strings.Builder
	children []*xmlNode
}

// decodeXML строит из XML такое же дерево map/[]any/string, как json
func decodeXML(body []byte) (map[string]any, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader

	var stack []*xmlNode
	var root *xmlNode

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			} else {
				return nil, errors.New("multiple root elements")
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("unbalanced closing tag")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, errors.New("no root element")
	}
	if len(stack) != 0 {
		return nil, errors.New("unexpected end of document")
	}
	return map[string]any{root.name: root.value()}, nil
}

func (n *xmlNode) value() any {
	if len(n.children) == 0 {
		return strings.TrimSpace(n.text.String())
	}

	m := make(map[string]any, len(n.children))
	for _, c := range n.children {
		v := c.value()
		switch existing := m[c.name].(type) {
		case nil:
			m[c.name] = v
		case []any:
			m[c.name] = append(existing, v)
		default:
			m[c.name] = []any{existing, v}
		}
	}
	return m
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "utf-8", "utf8":
		return input, nil
	case "euc-kr", "euckr", "cp949", "ks_c_5601-1987":
		return transform.NewReader(input, korean.EUCKR.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}

// readEnvelope достает resultCode, счетчики и items.
// Понимает и обычный response/header/body, и ошибку шлюза data.go.kr.
func readEnvelope(tree map[string]any) (*envelope, error) {
	if gw, ok := tree["OpenAPI_ServiceResponse"].(map[string]any); ok {
		return gatewayEnvelope(gw), nil
	}

	root := tree
	if r, ok := tree["response"].(map[string]any); ok {
		root = r
	}

	header, _ := root["header"].(map[string]any)
	body, _ := root["body"].(map[string]any)
	if header == nil && body == nil {
		return nil, errors.New("unexpected response structure: no header or body")
	}

	env := &envelope{Body: Empty{}}
	if header != nil {
		env.ResultCode = stringify(header["resultCode"])
		env.ResultMsg = stringify(header["resultMsg"])
	}
	if body == nil {
		return env, nil
	}

	if env.ResultCode == "" {
		env.ResultCode = stringify(body["resultCode"])
		env.ResultMsg = stringify(body["resultMsg"])
	}
	env.TotalCount = toInt(body["totalCount"])
	env.PageNo = toInt(body["pageNo"])
	env.NumOfRows = toInt(body["numOfRows"])
	env.Body = parseItems(body["items"])

	return env, nil
}

func gatewayEnvelope(gw map[string]any) *envelope {
	hdr, _ := gw["cmmMsgHeader"].(map[string]any)
	env := &envelope{Body: Empty{}, ResultCode: "gateway"}
	if hdr == nil {
		env.ResultMsg = "gateway error"
		return env
	}
	if code := stringify(hdr["returnReasonCode"]); code != "" {
		env.ResultCode = code
	}
	msg := stringify(hdr["returnAuthMsg"])
	if msg == "" {
		msg = stringify(hdr["errMsg"])
	}
	env.ResultMsg = msg
	return env
}

func parseItems(v any) ParsedBody {
	switch items := v.(type) {
	case map[string]any:
		return fromValue(items["item"])
	case []any:
		return fromValue(items)
	default:
		// "" когда результатов нет
		return Empty{}
	}
}

func fromValue(v any) ParsedBody {
	switch item := v.(type) {
	case map[string]any:
		return Single{Item: item}
	case []any:
		recs := make([]map[string]any, 0, len(item))
		for _, el := range item {
			if m, ok := el.(map[string]any); ok {
				recs = append(recs, m)
			}
		}
		if len(recs) == 0 {
			return Empty{}
		}
		return Many{Items: recs}
	default:
		return Empty{}
	}
}

func formatFromContentType(ct string) Format {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "json"):
		return FormatJSON
	case strings.Contains(ct, "xml"):
		return FormatXML
	default:
		return FormatUnknown
	}
}

func sniffFormat(body []byte) Format {
	if len(body) > 0 && body[0] == '<' {
		return FormatXML
	}
	return FormatJSON
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

func isPlainText(body []byte) bool {
	return len(body) < 500 && !bytes.ContainsAny(body, "{[<")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	r := []rune(s)
	if len(r) > snippetLen {
		return string(r[:snippetLen]) + "..."
	}
	return s
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func toInt(v any) int {
	s := stringify(v)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
