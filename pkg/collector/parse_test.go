package collector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"shell noise", "Welcome to zsh!\nnvm: using node 20\n{\"daily\":[]}\n", `{"daily":[]}`},
		{"braces in strings", `noise {"msg":"a } b { c","n":{"x":"\"}"}} trailing`, `{"msg":"a } b { c","n":{"x":"\"}"}}`},
		{"invalid first candidate", `{oops} {"ok":true}`, `{"ok":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := ExtractJSONObject([]byte("command not found: ccusage"))
	assert.True(t, errors.Is(err, ErrNoJSON))

	_, err = ExtractJSONObject([]byte(`{"unterminated":`))
	assert.True(t, errors.Is(err, ErrNoJSON))
}

func TestParseCanonicalFields(t *testing.T) {
	out := []byte(`{"daily":[{
		"date":"2024-05-01",
		"inputTokens":100,
		"outputTokens":50,
		"cacheCreationTokens":10,
		"cacheReadTokens":5,
		"totalTokens":165,
		"totalCost":1.23,
		"modelsUsed":["claude-opus-4","claude-opus-4"]
	}],"totals":{"inputTokens":100,"outputTokens":50,"cacheCreationTokens":10,"cacheReadTokens":5,"totalTokens":165,"totalCost":1.23}}`)

	daily, totals, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	d := daily[0]
	assert.Equal(t, "2024-05-01", d.Date)
	assert.Equal(t, int64(100), d.InputTokens)
	assert.Equal(t, int64(165), d.TotalTokens)
	assert.InDelta(t, 1.23, d.TotalCost, 1e-9)
	assert.Equal(t, []string{"claude-opus-4"}, d.ModelsUsed)
	assert.Nil(t, d.Credits)
	assert.NotEmpty(t, d.RawData)
	assert.Equal(t, int64(165), totals.TotalTokens)
}

func TestParseAlternateFieldNames(t *testing.T) {
	out := []byte(`{"daily":[{
		"day":"2024-05-02",
		"input_tokens":10,
		"output_tokens":20,
		"cacheCreationInputTokens":3,
		"cache_read_input_tokens":4,
		"costUSD":"0.5",
		"credits":7,
		"modelBreakdowns":[{"modelName":"gpt-5"},{"modelName":"gpt-5-mini"},{"modelName":""}]
	}]}`)

	daily, totals, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	d := daily[0]
	assert.Equal(t, "2024-05-02", d.Date)
	assert.Equal(t, int64(3), d.CacheCreationTokens)
	assert.Equal(t, int64(4), d.CacheReadTokens)
	assert.Equal(t, int64(37), d.TotalTokens)
	assert.InDelta(t, 0.5, d.TotalCost, 1e-9)
	require.NotNil(t, d.Credits)
	assert.Equal(t, 7.0, *d.Credits)
	assert.Equal(t, []string{"gpt-5", "gpt-5-mini"}, d.ModelsUsed)

	assert.Equal(t, int64(37), totals.TotalTokens)
	require.NotNil(t, totals.Credits)
	assert.Equal(t, 7.0, *totals.Credits)
}

func TestParseFieldPrecedence(t *testing.T) {
	out := []byte(`{"daily":[{"date":"2024-05-03","cacheCreationTokens":1,"cache_creation_input_tokens":99,"totalCost":null,"cost":2}]}`)
	daily, _, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, int64(1), daily[0].CacheCreationTokens)
	assert.Equal(t, 2.0, daily[0].TotalCost)
}

func TestParseMissingDaily(t *testing.T) {
	for _, in := range []string{`{"totals":{}}`, `{"daily":null}`, `{"daily":{"a":1}}`} {
		_, _, err := Parse([]byte(in))
		assert.True(t, errors.Is(err, ErrMissingDaily), in)
	}
}

func TestSumTotals(t *testing.T) {
	daily, _, err := Parse([]byte(`{"daily":[
		{"date":"2024-01-01","totalTokens":10,"totalCost":1},
		{"date":"2024-01-02","totalTokens":20,"totalCost":2}
	]}`))
	require.NoError(t, err)
	totals := SumTotals(daily)
	assert.Equal(t, int64(30), totals.TotalTokens)
	assert.Equal(t, 3.0, totals.TotalCost)
	assert.Nil(t, totals.Credits)
}
