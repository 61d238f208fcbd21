package listener

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"contract-ledger/internal/model"
)

var (
	errUnsupportedPayload = errors.New("push payload must be a JSON object or array")

	parserPool fastjson.ParserPool
)

// Drop reasons reported for records that cannot be used.
const (
	dropMissingID   = "missing_id"
	dropMissingName = "missing_name"
	dropNotObject   = "not_object"
)

// ParseMessage decodes one push payload: a single record object or an array
// of them. Records lacking an identifier or a name are skipped and their
// reasons returned in dropped. Unknown fields are ignored.
func ParseMessage(data []byte, now time.Time) (records []model.ContractRecord, dropped []string, err error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, nil, err
	}

	var items []*fastjson.Value
	switch v.Type() {
	case fastjson.TypeObject:
		items = []*fastjson.Value{v}
	case fastjson.TypeArray:
		items, _ = v.Array()
	default:
		return nil, nil, errUnsupportedPayload
	}

	for _, item := range items {
		record, reason := parseRecord(item, now)
		if reason != "" {
			dropped = append(dropped, reason)
			continue
		}
		records = append(records, record)
	}

	return records, dropped, nil
}

func parseRecord(v *fastjson.Value, now time.Time) (model.ContractRecord, string) {
	if v.Type() != fastjson.TypeObject {
		return model.ContractRecord{}, dropNotObject
	}

	id := firstString(v, "id", "_id", "contractId", "contract_id")
	if id == "" {
		return model.ContractRecord{}, dropMissingID
	}

	name := firstString(v, "name", "title", "contractName")
	if name == "" {
		return model.ContractRecord{}, dropMissingName
	}

	record := model.ContractRecord{
		ID:         id,
		Name:       name,
		UploadDate: firstString(v, "date", "uploadDate", "upload_date"),
		Status:     model.StatusInReview,
		DeletedAt:  now.UTC(),
	}

	if status, ok := model.ParseContractStatus(firstString(v, "status")); ok {
		record.Status = status
	}

	if score, ok := firstNumber(v, "score", "riskScore", "risk_score"); ok {
		record.RiskScore = clampScore(score)
	}

	if band, ok := model.ParseRiskBand(firstString(v, "riskBand", "risk_band", "risk")); ok {
		record.RiskBand = band
	} else {
		record.RiskBand = model.RiskBandForScore(record.RiskScore)
	}

	if deletedAt, ok := firstTime(v, "deletedAt", "deleted_at"); ok {
		record.DeletedAt = deletedAt
	}

	return record, ""
}

// firstString returns the first present key as a trimmed string. Numeric
// values are accepted so numeric ids survive.
func firstString(v *fastjson.Value, keys ...string) string {
	for _, key := range keys {
		field := v.Get(key)
		if field == nil {
			continue
		}
		switch field.Type() {
		case fastjson.TypeString:
			if s := strings.TrimSpace(string(field.GetStringBytes())); s != "" {
				return s
			}
		case fastjson.TypeNumber:
			return field.String()
		}
	}
	return ""
}

// firstNumber treats NaN and infinities as absent.
func firstNumber(v *fastjson.Value, keys ...string) (float64, bool) {
	for _, key := range keys {
		field := v.Get(key)
		if field == nil {
			continue
		}

		var f float64
		switch field.Type() {
		case fastjson.TypeNumber:
			f = field.GetFloat64()
		case fastjson.TypeString:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(string(field.GetStringBytes())), 64)
			if err != nil {
				continue
			}
			f = parsed
		default:
			continue
		}

		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		return f, true
	}
	return 0, false
}

// firstTime accepts RFC 3339 strings or epoch milliseconds.
func firstTime(v *fastjson.Value, keys ...string) (time.Time, bool) {
	for _, key := range keys {
		field := v.Get(key)
		if field == nil {
			continue
		}
		switch field.Type() {
		case fastjson.TypeString:
			raw := strings.TrimSpace(string(field.GetStringBytes()))
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				return t.UTC(), true
			}
		case fastjson.TypeNumber:
			if ms, err := field.Int64(); err == nil && ms > 0 {
				return time.UnixMilli(ms).UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func clampScore(score float64) int {
	switch {
	case math.IsNaN(score):
		return 0
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return int(score + 0.5)
	}
}
