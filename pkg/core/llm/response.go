package llm

import (
	"encoding/json"
	"fmt"
	"quarterly_metrics/pkg/models"
	"sort"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/rotisserie/eris"
)

var (
	ErrNoJSON     = eris.New("no JSON object in oracle response")
	ErrUnreadable = eris.New("oracle response could not be parsed")
)

// response is the document-level reply. A reply without "statements" is read as a single
// statement whose fields sit at the top level.
type response struct {
	CompanyName string      `json:"company_name"`
	Statements  []statement `json:"statements"`
	statement
}

type statement struct {
	Variant           string    `json:"variant"`
	StatementUsed     string    `json:"statement_used"`
	PageNumbers       []int     `json:"page_numbers"`
	UnitHint          string    `json:"unit_hint"`
	Period            string    `json:"period"`
	ComparativePeriod string    `json:"comparative_period"`
	Duration          string    `json:"duration"`
	AuditStatus       string    `json:"audit_status"`
	Current           lineItems `json:"current"`
	Comparative       lineItems `json:"comparative"`
}

func (s statement) empty() bool {
	return len(s.Current) == 0 && len(s.Comparative) == 0 && s.Period == ""
}

// lineItems accepts either [{"label","value","unit_hint"}] or {"label": value}.
type lineItems []models.LineItem

func (l *lineItems) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var m map[string]rawValue
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		labels := make([]string, 0, len(m))
		for k := range m {
			labels = append(labels, k)
		}
		sort.Strings(labels)
		out := make(lineItems, 0, len(m))
		for _, k := range labels {
			out = append(out, models.LineItem{Label: k, Value: string(m[k])})
		}
		*l = out
		return nil
	}

	var items []struct {
		Label    string   `json:"label"`
		Value    rawValue `json:"value"`
		UnitHint string   `json:"unit_hint"`
	}
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(lineItems, 0, len(items))
	for _, it := range items {
		out = append(out, models.LineItem{Label: it.Label, Value: string(it.Value), UnitHint: it.UnitHint})
	}
	*l = out
	return nil
}

// rawValue keeps numbers as their literal text so no precision is lost before the
// decimal parser sees them. null becomes "".
type rawValue string

func (v *rawValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*v = ""
	case strings.HasPrefix(s, `"`):
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		*v = rawValue(u)
	default:
		*v = rawValue(s)
	}
	return nil
}

// ParseResponse turns oracle text into raw extraction records for doc. It tries strict
// JSON first, then a repaired version, then Hjson. Source IDs are "<document_id>#<n>".
func ParseResponse(text string, doc models.SourceDocument) ([]models.RawExtractionRecord, error) {
	body := jsonObject(text)
	if body == "" {
		return nil, ErrNoJSON
	}
	var resp response
	decode := func(b []byte) error {
		resp = response{}
		return json.Unmarshal(b, &resp)
	}
	if err := smartParse(body, decode); err != nil {
		return nil, err
	}

	statements := resp.Statements
	if len(statements) == 0 && !resp.statement.empty() {
		statements = []statement{resp.statement}
	}
	records := make([]models.RawExtractionRecord, 0, len(statements))
	for i, s := range statements {
		records = append(records, models.RawExtractionRecord{
			SourceID:                     fmt.Sprintf("%s#%d", doc.DocumentID, i+1),
			DocumentID:                   doc.DocumentID,
			CompanySymbol:                doc.CompanySymbol,
			CompanyName:                  strings.TrimSpace(resp.CompanyName),
			PeriodDescription:            s.Period,
			ComparativePeriodDescription: s.ComparativePeriod,
			Duration:                     s.Duration,
			AuditStatus:                  s.AuditStatus,
			UnitHint:                     s.UnitHint,
			Variant:                      models.ParseVariant(s.Variant),
			StatementUsed:                s.StatementUsed,
			PageNumbers:                  s.PageNumbers,
			Current:                      s.Current,
			Comparative:                  s.Comparative,
		})
	}
	return records, nil
}

// jsonObject cuts the outermost {...} out of a reply that may carry prose or code fences.
func jsonObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// smartParse tries strict JSON, then json-repair, then Hjson. decode must reset its
// target, since a failed attempt may leave it half filled.
func smartParse(input string, decode func([]byte) error) error {
	err := decode([]byte(input))
	if err == nil {
		return nil
	}

	if repaired, rerr := jsonrepair.RepairJSON(input); rerr == nil {
		if decode([]byte(repaired)) == nil {
			return nil
		}
	}

	if normalized, herr := hjsonToJSON(input); herr == nil {
		if decode(normalized) == nil {
			return nil
		}
	}
	return eris.Wrapf(ErrUnreadable, "%v", err)
}

// hjsonToJSON reads lenient Hjson (comments, unquoted keys, missing commas) and
// re-encodes it as standard JSON.
func hjsonToJSON(input string) ([]byte, error) {
	var out interface{}
	if err := hjson.Unmarshal([]byte(input), &out); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}
