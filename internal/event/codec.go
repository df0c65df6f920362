package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/hivelog/internal/payload"
)

// Serialize encodes e as one canonical JSON line without a trailing newline.
//
// Keys are sorted per RFC 8785 and strings are NFC-normalized, so equal
// events always produce identical bytes.
func Serialize(e Event) ([]byte, error) {
	obj := payload.Object{
		"id":        payload.String(e.ID),
		"type":      payload.String(string(e.Type)),
		"stream_id": payload.String(e.StreamID),
		"timestamp": payload.Int(e.Timestamp),
	}
	if e.CausationID != "" {
		obj["causation_id"] = payload.String(e.CausationID)
	}
	if e.CorrelationID != "" {
		obj["correlation_id"] = payload.String(e.CorrelationID)
	}
	if e.Actor != "" {
		obj["actor"] = payload.String(e.Actor)
	}
	if e.Seq != 0 {
		obj["seq"] = payload.Int(e.Seq)
	}
	if e.Payload != nil {
		obj["payload"] = e.Payload
	} else {
		obj["payload"] = payload.Object{}
	}

	data, err := payload.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("serialize event %s: %w", e.ID, err)
	}
	return data, nil
}

// Canonical returns e as it reads back from its serialized line: strings
// NFC-normalized and the payload decoded from canonical bytes. Stores return
// this form so the live view of an event equals what a replay sees.
func Canonical(e Event) (Event, error) {
	line, err := Serialize(e)
	if err != nil {
		return Event{}, err
	}
	out, ok := Deserialize(line)
	if !ok {
		return Event{}, fmt.Errorf("serialize event %s: line does not decode", e.ID)
	}
	return out, nil
}

// wireEvent mirrors the line format for decoding. Pointers distinguish
// missing fields from zero values.
type wireEvent struct {
	ID            *string        `json:"id"`
	Type          *string        `json:"type"`
	StreamID      *string        `json:"stream_id"`
	CausationID   string         `json:"causation_id"`
	CorrelationID string         `json:"correlation_id"`
	Actor         string         `json:"actor"`
	Timestamp     *json.Number   `json:"timestamp"`
	Seq           json.Number    `json:"seq"`
	Payload       payload.Object `json:"payload"`
}

// Deserialize decodes one line. It never fails loudly: malformed or partial
// JSON, unknown types, missing id/type/stream_id, and non-integer numbers
// all yield ok=false so a reader can skip the line.
func Deserialize(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Event{}, false
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var w wireEvent
	if err := dec.Decode(&w); err != nil {
		return Event{}, false
	}
	if dec.More() {
		return Event{}, false
	}

	if w.ID == nil || *w.ID == "" || w.StreamID == nil || *w.StreamID == "" || w.Type == nil {
		return Event{}, false
	}
	t := Type(*w.Type)
	if !t.Valid() {
		return Event{}, false
	}
	if w.Timestamp == nil {
		return Event{}, false
	}
	ts, err := w.Timestamp.Int64()
	if err != nil {
		return Event{}, false
	}
	var seq int64
	if w.Seq != "" {
		if seq, err = w.Seq.Int64(); err != nil {
			return Event{}, false
		}
	}

	pl := w.Payload
	if pl == nil {
		pl = payload.Object{}
	}
	return Event{
		ID:            *w.ID,
		Type:          t,
		StreamID:      *w.StreamID,
		CausationID:   w.CausationID,
		CorrelationID: w.CorrelationID,
		Actor:         w.Actor,
		Timestamp:     ts,
		Seq:           seq,
		Payload:       pl,
	}, true
}
