package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ghalamif/FactoryBatch/internal/domain"
)

// ErrMalformedEvent marks payloads that can never be ingested as sent.
var ErrMalformedEvent = errors.New("malformed telemetry event")

// Decode resolves the payload shape once: a top-level "records" (or
// "Records") key makes it a batch, anything else is one bare reading. Every
// reading is validated here, so a returned event is safe to persist in full.
func Decode(payload []byte) (*domain.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedEvent)
	}

	list, isBatch, err := recordsOf(raw)
	if err != nil {
		return nil, err
	}
	if !isBatch {
		r, err := parseReading(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return domain.SingleEvent(r), nil
	}

	readings := make([]domain.Reading, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: records[%d] is not an object", ErrMalformedEvent, i)
		}
		r, err := parseReading(obj)
		if err != nil {
			return nil, fmt.Errorf("%w: records[%d]: %v", ErrMalformedEvent, i, err)
		}
		readings = append(readings, r)
	}
	return domain.BatchEvent(readings), nil
}

func recordsOf(raw map[string]any) ([]any, bool, error) {
	for _, key := range []string{"records", "Records"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return nil, true, fmt.Errorf("%w: %q must be a list", ErrMalformedEvent, key)
		}
		return list, true, nil
	}
	return nil, false, nil
}

func parseReading(obj map[string]any) (domain.Reading, error) {
	var r domain.Reading

	machine, ok := obj["machine_id"].(string)
	if !ok || strings.TrimSpace(machine) == "" {
		return r, errors.New("missing machine_id")
	}
	temp, err := parseDecimal(obj, "temperature")
	if err != nil {
		return r, err
	}
	vib, err := parseDecimal(obj, "vibration")
	if err != nil {
		return r, err
	}
	ts, ok := obj["timestamp"].(string)
	if !ok || ts == "" {
		return r, errors.New("missing timestamp")
	}
	if _, err := domain.ParseTimestamp(ts); err != nil {
		return r, err
	}

	return domain.Reading{
		MachineID:   machine,
		Temperature: temp,
		Vibration:   vib,
		Timestamp:   ts,
	}, nil
}

// parseDecimal reads a numeric field from its JSON text. Numeric strings are
// accepted too, since some gateways quote every value.
func parseDecimal(obj map[string]any, key string) (decimal.Decimal, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return decimal.Decimal{}, fmt.Errorf("missing %s", key)
	}
	var text string
	switch n := v.(type) {
	case json.Number:
		text = n.String()
	case string:
		text = strings.TrimSpace(n)
	default:
		return decimal.Decimal{}, fmt.Errorf("%s is not a number", key)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %v", key, err)
	}
	return d, nil
}
