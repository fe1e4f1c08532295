package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		daily   int
	}{
		{"valid", `{"device":{"deviceId":"a","deviceName":"b"},"daily":[{"date":"2024-01-01"}]}`, false, 1},
		{"empty daily", `{"device":{"deviceId":"a","deviceName":"b"},"daily":[]}`, false, 0},
		{"bad json", `{"device":`, true, 0},
		{"missing device", `{"daily":[]}`, true, 0},
		{"missing device id", `{"device":{"deviceName":"b"},"daily":[]}`, true, 0},
		{"missing device name", `{"device":{"deviceId":"a"},"daily":[]}`, true, 0},
		{"missing daily", `{"device":{"deviceId":"a","deviceName":"b"}}`, true, 0},
		{"null daily", `{"device":{"deviceId":"a","deviceName":"b"},"daily":null}`, true, 0},
		{"object daily", `{"device":{"deviceId":"a","deviceName":"b"},"daily":{}}`, true, 0},
		{"array body", `[]`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Len(t, req.Daily, tt.daily)
		})
	}
}

func TestToRecordOptionalFields(t *testing.T) {
	rec, verr := toRecord([]byte(`{"date":"2024-02-29","totalTokens":1e3,"totalCost":0.000123,"credits":4.5,"cacheReadTokens":12.6,"modelsUsed":["a","a",""]}`), "dev", "codex")
	require.Nil(t, verr)
	assert.Equal(t, int64(1000), rec.TotalTokens)
	assert.Equal(t, "0.000123", rec.TotalCost.String())
	assert.True(t, rec.Credits.Valid)
	assert.Equal(t, "4.5", rec.Credits.Decimal.String())
	assert.Equal(t, int64(13), rec.CacheReadTokens)
	assert.Equal(t, []string{"a"}, []string(rec.ModelsUsed))
	assert.Equal(t, "codex", rec.AgentType)
}

func TestToRecordWithoutCredits(t *testing.T) {
	rec, verr := toRecord([]byte(`{"date":"2024-01-01","totalTokens":0,"totalCost":0,"credits":null}`), "dev", "claude-code")
	require.Nil(t, verr)
	assert.False(t, rec.Credits.Valid)
	assert.Empty(t, rec.ModelsUsed)
}
