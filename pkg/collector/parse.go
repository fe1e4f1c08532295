package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/pario-ai/tokenboard/pkg/models"
)

// Parse errors.
var (
	ErrNoJSON       = errors.New("no JSON object in output")
	ErrMissingDaily = errors.New("missing daily array")
)

// ExtractJSONObject returns the first balanced {...} object in out. Text
// before it, such as shell startup noise, is skipped.
func ExtractJSONObject(out []byte) ([]byte, error) {
	for start := 0; start < len(out); start++ {
		if out[start] != '{' {
			continue
		}
		if end := matchBrace(out, start); end > 0 {
			obj := out[start : end+1]
			if json.Valid(obj) {
				return obj, nil
			}
		}
	}
	return nil, ErrNoJSON
}

// matchBrace returns the index of the brace closing out[start], or -1.
func matchBrace(out []byte, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(out); i++ {
		c := out[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// FieldMap lists, per canonical field, the source keys tried in order.
var FieldMap = map[string][]string{
	"date":                {"date", "day"},
	"inputTokens":         {"inputTokens", "input_tokens"},
	"outputTokens":        {"outputTokens", "output_tokens"},
	"cacheCreationTokens": {"cacheCreationTokens", "cacheCreationInputTokens", "cache_creation_tokens", "cache_creation_input_tokens"},
	"cacheReadTokens":     {"cacheReadTokens", "cacheReadInputTokens", "cache_read_tokens", "cache_read_input_tokens"},
	"totalTokens":         {"totalTokens", "total_tokens"},
	"totalCost":           {"totalCost", "costUSD", "cost", "total_cost"},
	"credits":             {"credits", "totalCredits"},
	"modelsUsed":          {"modelsUsed", "models"},
}

type report struct {
	Daily  []map[string]json.RawMessage `json:"daily"`
	Totals map[string]json.RawMessage   `json:"totals"`
}

// Parse extracts and normalizes a report from raw tool output.
func Parse(out []byte) ([]models.DailyUsage, models.Totals, error) {
	obj, err := ExtractJSONObject(out)
	if err != nil {
		return nil, models.Totals{}, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(obj, &envelope); err != nil {
		return nil, models.Totals{}, fmt.Errorf("parse output: %w", err)
	}
	rawDaily, ok := envelope["daily"]
	if !ok || strings.TrimSpace(string(rawDaily)) == "null" {
		return nil, models.Totals{}, ErrMissingDaily
	}

	var rep report
	if err := json.Unmarshal(obj, &rep); err != nil {
		return nil, models.Totals{}, fmt.Errorf("%w: %v", ErrMissingDaily, err)
	}

	daily := make([]models.DailyUsage, 0, len(rep.Daily))
	for _, rec := range rep.Daily {
		daily = append(daily, normalize(rec))
	}

	var totals models.Totals
	if len(rep.Totals) > 0 {
		totals = normalizeTotals(rep.Totals)
	} else {
		totals = SumTotals(daily)
	}
	return daily, totals, nil
}

func normalize(rec map[string]json.RawMessage) models.DailyUsage {
	d := models.DailyUsage{
		Date:                str(rec, "date"),
		InputTokens:         integer(rec, "inputTokens"),
		OutputTokens:        integer(rec, "outputTokens"),
		CacheCreationTokens: integer(rec, "cacheCreationTokens"),
		CacheReadTokens:     integer(rec, "cacheReadTokens"),
		TotalCost:           float(rec, "totalCost"),
		Credits:             optionalFloat(rec, "credits"),
		ModelsUsed:          modelNames(rec),
	}
	if _, ok := lookup(rec, "totalTokens"); ok {
		d.TotalTokens = integer(rec, "totalTokens")
	} else {
		d.TotalTokens = d.InputTokens + d.OutputTokens + d.CacheCreationTokens + d.CacheReadTokens
	}
	if raw, err := json.Marshal(rec); err == nil {
		d.RawData = raw
	}
	return d
}

func normalizeTotals(rec map[string]json.RawMessage) models.Totals {
	t := models.Totals{
		InputTokens:         integer(rec, "inputTokens"),
		OutputTokens:        integer(rec, "outputTokens"),
		CacheCreationTokens: integer(rec, "cacheCreationTokens"),
		CacheReadTokens:     integer(rec, "cacheReadTokens"),
		TotalCost:           float(rec, "totalCost"),
		Credits:             optionalFloat(rec, "credits"),
	}
	if _, ok := lookup(rec, "totalTokens"); ok {
		t.TotalTokens = integer(rec, "totalTokens")
	} else {
		t.TotalTokens = t.InputTokens + t.OutputTokens + t.CacheCreationTokens + t.CacheReadTokens
	}
	return t
}

// SumTotals adds up daily rows.
func SumTotals(daily []models.DailyUsage) models.Totals {
	var t models.Totals
	for _, d := range daily {
		t.InputTokens += d.InputTokens
		t.OutputTokens += d.OutputTokens
		t.CacheCreationTokens += d.CacheCreationTokens
		t.CacheReadTokens += d.CacheReadTokens
		t.TotalTokens += d.TotalTokens
		t.TotalCost += d.TotalCost
		if d.Credits != nil {
			if t.Credits == nil {
				t.Credits = new(float64)
			}
			*t.Credits += *d.Credits
		}
	}
	return t
}

// lookup returns the first non-null source value for a canonical field.
func lookup(rec map[string]json.RawMessage, field string) (json.RawMessage, bool) {
	for _, key := range FieldMap[field] {
		if v, ok := rec[key]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func str(rec map[string]json.RawMessage, field string) string {
	v, ok := lookup(rec, field)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func float(rec map[string]json.RawMessage, field string) float64 {
	f, _ := numberOf(rec, field)
	return f
}

func optionalFloat(rec map[string]json.RawMessage, field string) *float64 {
	f, ok := numberOf(rec, field)
	if !ok {
		return nil
	}
	return &f
}

func integer(rec map[string]json.RawMessage, field string) int64 {
	f, _ := numberOf(rec, field)
	return int64(math.Round(f))
}

// numberOf reads a number, accepting numeric strings as some tools emit them.
func numberOf(rec map[string]json.RawMessage, field string) (float64, bool) {
	v, ok := lookup(rec, field)
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
	}
	return 0, false
}

type modelBreakdown struct {
	ModelName string `json:"modelName"`
}

func modelNames(rec map[string]json.RawMessage) []string {
	var names []string
	if v, ok := lookup(rec, "modelsUsed"); ok {
		_ = json.Unmarshal(v, &names)
	}
	if len(names) == 0 {
		if v, ok := rec["modelBreakdowns"]; ok {
			var breakdowns []modelBreakdown
			if json.Unmarshal(v, &breakdowns) == nil {
				names = lo.Map(breakdowns, func(b modelBreakdown, _ int) string { return b.ModelName })
			}
		}
	}
	return lo.Uniq(lo.Compact(names))
}
