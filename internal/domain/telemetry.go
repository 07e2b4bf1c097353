package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Reading is one validated machine measurement as reported by the publisher.
// Timestamp keeps the publisher's text so it can be stored and exported verbatim.
type Reading struct {
	MachineID   string
	Temperature decimal.Decimal
	Vibration   decimal.Decimal
	Timestamp   string
}

// EventKind tags the two inbound telemetry shapes.
type EventKind uint8

const (
	EventSingle EventKind = iota + 1
	EventBatch
)

func (k EventKind) String() string {
	switch k {
	case EventSingle:
		return "single"
	case EventBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// Event is the decoded form of an inbound payload: either one bare reading or
// a {records: [...]} wrapper. The shape is resolved once at the decode boundary.
type Event struct {
	Kind     EventKind
	Readings []Reading
}

func SingleEvent(r Reading) *Event {
	return &Event{Kind: EventSingle, Readings: []Reading{r}}
}

func BatchEvent(rs []Reading) *Event {
	return &Event{Kind: EventBatch, Readings: rs}
}

// Message is the nested mapping persisted with every buffer record. Fields are
// optional at this level because records written by other producers may lack
// them; the extractor decides what to do with incomplete messages.
type Message struct {
	MachineID   string
	Temperature decimal.NullDecimal
	Vibration   decimal.NullDecimal
	Timestamp   string
}

// Message converts the reading into its persisted form.
func (r Reading) Message() Message {
	return Message{
		MachineID:   r.MachineID,
		Temperature: decimal.NewNullDecimal(r.Temperature),
		Vibration:   decimal.NewNullDecimal(r.Vibration),
		Timestamp:   r.Timestamp,
	}
}

// Complete reports whether the message carries every exported column.
func (m Message) Complete() bool {
	return m.MachineID != "" && m.Temperature.Valid && m.Vibration.Valid
}

type messageJSON struct {
	MachineID   string      `json:"machine_id,omitempty"`
	Temperature json.Number `json:"temperature,omitempty"`
	Vibration   json.Number `json:"vibration,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
}

// MarshalJSON writes decimals as bare JSON numbers carrying their exact text.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{MachineID: m.MachineID, Timestamp: m.Timestamp}
	if m.Temperature.Valid {
		out.Temperature = json.Number(FormatDecimal(m.Temperature.Decimal))
	}
	if m.Vibration.Valid {
		out.Vibration = json.Number(FormatDecimal(m.Vibration.Decimal))
	}
	return json.Marshal(out)
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var in messageJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	msg := Message{MachineID: in.MachineID, Timestamp: in.Timestamp}
	if in.Temperature != "" {
		d, err := decimal.NewFromString(in.Temperature.String())
		if err != nil {
			return fmt.Errorf("message temperature: %w", err)
		}
		msg.Temperature = decimal.NewNullDecimal(d)
	}
	if in.Vibration != "" {
		d, err := decimal.NewFromString(in.Vibration.String())
		if err != nil {
			return fmt.Errorf("message vibration: %w", err)
		}
		msg.Vibration = decimal.NewNullDecimal(d)
	}
	*m = msg
	return nil
}

// BufferRecord is one row of the append-only buffer store. Timestamp is the
// sort key and always holds the reading's own timestamp, never ingestion time.
type BufferRecord struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Message   Message `json:"message"`
}

// EventTime parses the record's sort key.
func (r *BufferRecord) EventTime() (time.Time, error) {
	return ParseTimestamp(r.Timestamp)
}

const zonelessLayout = "2006-01-02T15:04:05.999999999"

// ParseTimestamp accepts RFC 3339 timestamps and zone-less ISO-8601 values,
// which are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(zonelessLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601", s)
	}
	return t, nil
}

// FormatDecimal renders d with exactly the digits it was parsed with, so
// "0.420" stays "0.420" and "72.34" never becomes a float approximation.
func FormatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
