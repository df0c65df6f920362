// Package compat adapts the older loosely-typed call shape, where every
// operation took a free-form map, onto the typed orchestrator API.
//
// All coercion lives here: numbers decoded as float64 are narrowed to
// integers, options may be bare strings, and type names may use underscores.
// Anything that cannot be coerced is rejected with ErrInvalidArgument before
// the orchestrator is called.
package compat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/orchestrator"
	"github.com/roach88/hivelog/internal/payload"
)

// ErrInvalidArgument reports legacy input that cannot be translated.
var ErrInvalidArgument = errors.New("compat: invalid argument")

// Envelope keys consumed by Emit; every other key becomes payload.
const (
	keyStream      = "stream"
	keyActor       = "actor"
	keyCausation   = "causation"
	keyCorrelation = "correlation"
)

// Legacy exposes the map-based operations over an Orchestrator.
type Legacy struct {
	o *orchestrator.Orchestrator
}

// New wraps o.
func New(o *orchestrator.Orchestrator) *Legacy {
	return &Legacy{o: o}
}

// Emit appends an event of typeName. Envelope keys (stream, actor,
// causation, correlation) are lifted out of data; the rest is the payload.
func (l *Legacy) Emit(ctx context.Context, typeName string, data map[string]any) (event.Event, error) {
	typ, err := parseType(typeName)
	if err != nil {
		return event.Event{}, err
	}
	stream, err := requireString(data, keyStream)
	if err != nil {
		return event.Event{}, err
	}

	rest := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case keyStream, keyActor, keyCausation, keyCorrelation:
			continue
		}
		rest[k] = v
	}
	pl, err := toPayload(rest)
	if err != nil {
		return event.Event{}, err
	}

	return l.o.Append(ctx, event.Input{
		Type:          typ,
		StreamID:      stream,
		Actor:         optString(data, keyActor),
		CausationID:   optString(data, keyCausation),
		CorrelationID: optString(data, keyCorrelation),
		Payload:       pl,
	})
}

// Spawn creates a workflow from data{id, description, executor, prompt,
// parent, timeout, actor} and returns its id.
func (l *Legacy) Spawn(ctx context.Context, data map[string]any) (string, error) {
	desc, err := requireString(data, "description")
	if err != nil {
		return "", err
	}
	timeout, err := optInt(data, "timeout")
	if err != nil {
		return "", err
	}
	return l.o.CreateWorkflow(ctx, orchestrator.WorkflowSpec{
		ID:            optString(data, "id"),
		StreamID:      optString(data, keyStream),
		Description:   desc,
		Executor:      optString(data, "executor"),
		Prompt:        optString(data, "prompt"),
		ParentStream:  optString(data, "parent"),
		TimeoutMs:     timeout,
		Actor:         optString(data, keyActor),
		CorrelationID: optString(data, keyCorrelation),
	})
}

// Finish moves a workflow to a terminal status from data{id, status,
// result, error}. Status is one of completed, failed or aborted.
func (l *Legacy) Finish(ctx context.Context, data map[string]any) (bool, error) {
	id, err := requireString(data, "id")
	if err != nil {
		return false, err
	}
	switch status := optString(data, "status"); event.WorkflowStatus(status) {
	case event.WorkflowCompleted, "":
		return l.o.CompleteWorkflow(ctx, id, optString(data, "result"))
	case event.WorkflowFailed:
		return l.o.FailWorkflow(ctx, id, optString(data, "error"))
	case event.WorkflowAborted:
		return l.o.AbortWorkflow(ctx, id, optString(data, "error"))
	default:
		return false, fmt.Errorf("%w: status %q", ErrInvalidArgument, status)
	}
}

// Checkpoint requests a checkpoint from data{stream, decision, options,
// requester, timeout} and returns its id. Options may be strings or maps
// with id, label and description.
func (l *Legacy) Checkpoint(ctx context.Context, data map[string]any) (string, error) {
	stream, err := requireString(data, keyStream)
	if err != nil {
		return "", err
	}
	decision, err := requireString(data, "decision")
	if err != nil {
		return "", err
	}
	options, err := toOptions(data["options"])
	if err != nil {
		return "", err
	}
	timeout, err := optInt(data, "timeout")
	if err != nil {
		return "", err
	}
	return l.o.RequestCheckpoint(ctx, orchestrator.CheckpointRequest{
		StreamID:      stream,
		Decision:      decision,
		Options:       options,
		Requester:     optString(data, "requester"),
		Timeout:       time.Duration(timeout) * time.Millisecond,
		CorrelationID: optString(data, keyCorrelation),
	})
}

// Approve resolves a checkpoint from data{id, approver, option}.
func (l *Legacy) Approve(ctx context.Context, data map[string]any) (bool, error) {
	id, err := checkpointID(data)
	if err != nil {
		return false, err
	}
	return l.o.ApproveCheckpoint(ctx, id, optString(data, "approver"), optString(data, "option"))
}

// Reject resolves a checkpoint from data{id, rejecter, reason}. The older
// "approver" key is accepted in place of rejecter.
func (l *Legacy) Reject(ctx context.Context, data map[string]any) (bool, error) {
	id, err := checkpointID(data)
	if err != nil {
		return false, err
	}
	rejecter := optString(data, "rejecter")
	if rejecter == "" {
		rejecter = optString(data, "approver")
	}
	return l.o.RejectCheckpoint(ctx, id, rejecter, optString(data, "reason"))
}

func checkpointID(data map[string]any) (string, error) {
	if id := optString(data, "checkpoint_id"); id != "" {
		return id, nil
	}
	return requireString(data, "id")
}

// parseType accepts "workflow.spawned" and "workflow_spawned".
func parseType(name string) (event.Type, error) {
	if typ, ok := event.ParseType(name); ok {
		return typ, nil
	}
	if typ, ok := event.ParseType(strings.ReplaceAll(name, "_", ".")); ok {
		return typ, nil
	}
	return "", fmt.Errorf("%w: unknown event type %q", ErrInvalidArgument, name)
}

func requireString(data map[string]any, key string) (string, error) {
	s, ok := data[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidArgument, key)
	}
	return s, nil
}

func optString(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func optInt(data map[string]any, key string) (int64, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", key, err)
	}
	return n, nil
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > 1<<53 {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidArgument, n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrInvalidArgument, v)
	}
}

// toPayload narrows integral floats and converts data to a payload object.
func toPayload(data map[string]any) (payload.Object, error) {
	narrowed, err := narrow(data)
	if err != nil {
		return nil, err
	}
	v, err := payload.FromAny(narrowed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return v.(payload.Object), nil
}

func narrow(v any) (any, error) {
	switch val := v.(type) {
	case float64:
		return toInt(val)
	case float32:
		return toInt(float64(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := narrow(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := narrow(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

func toOptions(v any) ([]event.Option, error) {
	if v == nil {
		return nil, nil
	}
	var raw []any
	switch list := v.(type) {
	case []string:
		for _, s := range list {
			raw = append(raw, s)
		}
	case []any:
		raw = list
	default:
		return nil, fmt.Errorf("%w: options must be a list", ErrInvalidArgument)
	}

	out := make([]event.Option, 0, len(raw))
	for i, item := range raw {
		switch opt := item.(type) {
		case string:
			out = append(out, event.Option{ID: opt, Label: opt})
		case map[string]any:
			id, err := requireString(opt, "id")
			if err != nil {
				return nil, fmt.Errorf("options[%d]: %w", i, err)
			}
			out = append(out, event.Option{
				ID:          id,
				Label:       optString(opt, "label"),
				Description: optString(opt, "description"),
			})
		default:
			return nil, fmt.Errorf("%w: options[%d] has type %T", ErrInvalidArgument, i, item)
		}
	}
	return out, nil
}
