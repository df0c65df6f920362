package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
)

// CheckpointRequest describes a decision awaiting approval.
type CheckpointRequest struct {
	StreamID  string
	Decision  string
	Options   []event.Option
	Requester string

	// Timeout overrides the orchestrator's checkpoint timeout when positive.
	Timeout time.Duration

	CorrelationID string
}

// RequestCheckpoint appends checkpoint.requested and returns the new
// checkpoint id. The checkpoint expires Timeout after the request.
func (o *Orchestrator) RequestCheckpoint(ctx context.Context, req CheckpointRequest) (string, error) {
	o.mu.Lock()
	id, err := o.requestCheckpointLocked(ctx, req)
	o.mu.Unlock()
	if err != nil {
		return "", err
	}
	o.drain()
	return id, nil
}

func (o *Orchestrator) requestCheckpointLocked(ctx context.Context, req CheckpointRequest) (string, error) {
	if err := o.initLocked(ctx); err != nil {
		return "", err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.checkpointTimeout
	}
	options := req.Options
	if options == nil {
		options = []event.Option{}
	}
	if err := validText(req.Decision); err != nil {
		return "", fmt.Errorf("request checkpoint: %w", err)
	}
	for _, opt := range options {
		if err := validText(opt.ID, opt.Label, opt.Description); err != nil {
			return "", fmt.Errorf("request checkpoint: %w", err)
		}
	}

	id := payload.NFC(o.ids.Generate())
	now := o.clock()
	pl, err := payload.FromStruct(event.CheckpointRequestedPayload{
		CheckpointID: id,
		Decision:     req.Decision,
		Options:      options,
		ExpiresAt:    now.Add(timeout).UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("request checkpoint: %w", err)
	}
	if _, err := o.appendLocked(ctx, event.Input{
		Type:          event.TypeCheckpointRequested,
		StreamID:      req.StreamID,
		CorrelationID: req.CorrelationID,
		Actor:         req.Requester,
		Timestamp:     now.UnixMilli(),
		Payload:       pl,
	}); err != nil {
		return "", err
	}
	return id, nil
}

// ApproveCheckpoint resolves a pending checkpoint with option. It returns
// false without appending when id is not pending. A non-empty option must be
// one the checkpoint offered.
func (o *Orchestrator) ApproveCheckpoint(ctx context.Context, id, approver, option string) (bool, error) {
	return o.resolveCheckpoint(ctx, event.TypeCheckpointApproved, approver, event.CheckpointResolvedPayload{
		CheckpointID: id,
		Option:       option,
	})
}

// RejectCheckpoint resolves a pending checkpoint as rejected.
func (o *Orchestrator) RejectCheckpoint(ctx context.Context, id, rejecter, reason string) (bool, error) {
	return o.resolveCheckpoint(ctx, event.TypeCheckpointRejected, rejecter, event.CheckpointResolvedPayload{
		CheckpointID: id,
		Reason:       reason,
	})
}

func (o *Orchestrator) resolveCheckpoint(ctx context.Context, typ event.Type, actor string, pl event.CheckpointResolvedPayload) (bool, error) {
	o.mu.Lock()
	ok, err := o.resolveLocked(ctx, typ, actor, pl)
	o.mu.Unlock()
	if err != nil || !ok {
		return false, err
	}
	o.drain()
	return true, nil
}

func (o *Orchestrator) resolveLocked(ctx context.Context, typ event.Type, actor string, pl event.CheckpointResolvedPayload) (bool, error) {
	if err := o.initLocked(ctx); err != nil {
		return false, err
	}
	if err := validText(pl.CheckpointID, pl.Option, pl.Reason); err != nil {
		return false, fmt.Errorf("%s: %w", typ, err)
	}
	pl.CheckpointID = payload.NFC(pl.CheckpointID)
	pl.Option = payload.NFC(pl.Option)
	cp, ok := o.proj.Checkpoint(pl.CheckpointID)
	if !ok {
		o.logger.Debug("resolution for unknown checkpoint", "type", typ, "checkpoint_id", pl.CheckpointID)
		return false, nil
	}
	if pl.Option != "" && len(cp.Options) > 0 && !cp.HasOption(pl.Option) {
		return false, fmt.Errorf("%w: %q", ErrInvalidOption, pl.Option)
	}
	obj, err := payload.FromStruct(pl)
	if err != nil {
		return false, fmt.Errorf("%s: %w", typ, err)
	}
	if _, err := o.appendLocked(ctx, event.Input{
		Type:     typ,
		StreamID: cp.StreamID,
		Actor:    actor,
		Payload:  obj,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// PendingCheckpoints returns the unresolved checkpoints in request order.
func (o *Orchestrator) PendingCheckpoints() []event.Checkpoint {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.proj.PendingCheckpoints()
}

// Checkpoint returns the pending checkpoint with id.
func (o *Orchestrator) Checkpoint(id string) (event.Checkpoint, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.proj.Checkpoint(payload.NFC(id))
}

// ExpiredCheckpoints returns the pending checkpoints past their expiry at
// now. Expiry is advisory: expired checkpoints stay pending until resolved.
func (o *Orchestrator) ExpiredCheckpoints(now time.Time) []event.Checkpoint {
	nowMs := now.UnixMilli()
	var out []event.Checkpoint
	for _, cp := range o.PendingCheckpoints() {
		if event.IsExpired(cp, nowMs) {
			out = append(out, cp)
		}
	}
	return out
}
