package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

// transformModelOutputToRecords converts {"records": [...]} into wire records.
// Records without an id get a fresh UUID.
func transformModelOutputToRecords(rawOutput map[string]interface{}) ([]domain.Record, error) {
	recsAny, ok := rawOutput["records"]
	if !ok {
		return nil, fmt.Errorf("transformModelOutputToRecords: missing 'records' key in model output")
	}

	recsSlice, ok := recsAny.([]interface{})
	if !ok {
		return nil, fmt.Errorf("transformModelOutputToRecords: 'records' is %T, want []interface{}", recsAny)
	}

	result := make([]domain.Record, 0, len(recsSlice))
	for i, item := range recsSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("record %d is %T, want object", i, item)
		}

		kind, err := getStringField(obj, "type", true)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if k := domain.Kind(strings.ToLower(kind)); k != domain.KindTrade && k != domain.KindPayment {
			return nil, fmt.Errorf("record %d: unknown type %q", i, kind)
		}
		obj["type"] = strings.ToLower(kind)

		rec, err := recordFromObject(obj)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		result = append(result, rec)
	}
	return result, nil
}

// recordFromObject maps a decoded JSON object onto domain.Record through its
// JSON tags.
func recordFromObject(obj map[string]interface{}) (domain.Record, error) {
	var rec domain.Record
	data, err := json.Marshal(obj)
	if err != nil {
		return rec, fmt.Errorf("re-encode: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	val, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if required && strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return val, nil
}
