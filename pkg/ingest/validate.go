package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/pario-ai/tokenboard/pkg/models"
)

// ErrInvalidRequest marks a payload whose overall shape is unusable.
var ErrInvalidRequest = errors.New("invalid sync request")

const dateLayout = "2006-01-02"

// ValidateRequest checks the envelope: device identity and a daily array.
func ValidateRequest(req models.SyncRequest) error {
	switch {
	case req.Device == nil:
		return fmt.Errorf("%w: missing device", ErrInvalidRequest)
	case strings.TrimSpace(req.Device.DeviceID) == "":
		return fmt.Errorf("%w: missing device.deviceId", ErrInvalidRequest)
	case strings.TrimSpace(req.Device.DeviceName) == "":
		return fmt.Errorf("%w: missing device.deviceName", ErrInvalidRequest)
	case req.Daily == nil:
		return fmt.Errorf("%w: daily must be an array", ErrInvalidRequest)
	}
	return nil
}

// DecodeRequest parses a request body. Shape problems wrap ErrInvalidRequest.
func DecodeRequest(body []byte) (models.SyncRequest, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return models.SyncRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var req models.SyncRequest
	if raw, ok := envelope["device"]; ok && !isNull(raw) {
		var d models.DeviceInfo
		if err := json.Unmarshal(raw, &d); err != nil {
			return models.SyncRequest{}, fmt.Errorf("%w: device: %v", ErrInvalidRequest, err)
		}
		req.Device = &d
	}
	if raw, ok := envelope["daily"]; ok && !isNull(raw) {
		if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
			return models.SyncRequest{}, fmt.Errorf("%w: daily must be an array", ErrInvalidRequest)
		}
		daily := []json.RawMessage{}
		if err := json.Unmarshal(raw, &daily); err != nil {
			return models.SyncRequest{}, fmt.Errorf("%w: daily: %v", ErrInvalidRequest, err)
		}
		req.Daily = daily
	}

	if err := ValidateRequest(req); err != nil {
		return models.SyncRequest{}, err
	}
	return req, nil
}

// recordError is a per-record validation failure.
type recordError struct {
	date    string
	message string
}

func (e *recordError) Error() string { return e.message }

// toRecord validates one raw daily entry and converts it to a row.
// A valid entry has a YYYY-MM-DD date and numeric totalTokens and totalCost.
func toRecord(raw json.RawMessage, deviceID, agentType string) (models.UsageRecord, *recordError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return models.UsageRecord{}, &recordError{message: "record must be a JSON object"}
	}

	var date string
	if v, ok := fields["date"]; ok {
		_ = json.Unmarshal(v, &date)
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return models.UsageRecord{}, &recordError{message: "missing date"}
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return models.UsageRecord{}, &recordError{date: date, message: "invalid date, expected YYYY-MM-DD"}
	}

	totalTokens, ok := number(fields["totalTokens"])
	if !ok {
		return models.UsageRecord{}, &recordError{date: date, message: "totalTokens must be a number"}
	}
	totalCost, ok := number(fields["totalCost"])
	if !ok {
		return models.UsageRecord{}, &recordError{date: date, message: "totalCost must be a number"}
	}

	rec := models.UsageRecord{
		DeviceID:            deviceID,
		Date:                date,
		AgentType:           agentType,
		InputTokens:         optionalInt(fields["inputTokens"]),
		OutputTokens:        optionalInt(fields["outputTokens"]),
		CacheCreationTokens: optionalInt(fields["cacheCreationTokens"]),
		CacheReadTokens:     optionalInt(fields["cacheReadTokens"]),
		TotalTokens:         totalTokens.Round(0).IntPart(),
		TotalCost:           totalCost,
		ModelsUsed:          datatypes.JSONSlice[string](modelsUsed(fields["modelsUsed"])),
		RawData:             datatypes.JSON(append(json.RawMessage(nil), raw...)),
	}
	if c, ok := number(fields["credits"]); ok {
		rec.Credits = decimal.NewNullDecimal(c)
	}
	return rec, nil
}

// number accepts only JSON numbers, not numeric strings.
func number(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return decimal.Zero, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		d = decimal.NewFromFloat(f)
	}
	return d, true
}

func optionalInt(raw json.RawMessage) int64 {
	d, ok := number(raw)
	if !ok {
		return 0
	}
	return d.Round(0).IntPart()
}

func modelsUsed(raw json.RawMessage) []string {
	var names []string
	if len(raw) == 0 || json.Unmarshal(raw, &names) != nil {
		return []string{}
	}
	return lo.Uniq(lo.Filter(names, func(m string, _ int) bool { return m != "" }))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
