package event

// CheckpointStatus is the resolution state of a checkpoint.
type CheckpointStatus string

const (
	CheckpointRequested CheckpointStatus = "requested"
	CheckpointApproved  CheckpointStatus = "approved"
	CheckpointRejected  CheckpointStatus = "rejected"
)

// Option is one choice offered to the approver.
type Option struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// Checkpoint is a pending or resolved human decision.
type Checkpoint struct {
	ID             string           `json:"id"`
	StreamID       string           `json:"stream_id"`
	Decision       string           `json:"decision"`
	Options        []Option         `json:"options"`
	Requester      string           `json:"requester,omitempty"`
	RequestedAt    int64            `json:"requested_at"`
	ExpiresAt      int64            `json:"expires_at,omitempty"` // 0 = never
	Approver       string           `json:"approver,omitempty"`
	SelectedOption string           `json:"selected_option,omitempty"`
	Status         CheckpointStatus `json:"status"`
	Reason         string           `json:"reason,omitempty"`
}

// IsExpired reports whether cp has an expiry at or before nowMs.
func IsExpired(cp Checkpoint, nowMs int64) bool {
	return cp.ExpiresAt != 0 && cp.ExpiresAt <= nowMs
}

// HasOption reports whether id is one of the offered options.
func (cp Checkpoint) HasOption(id string) bool {
	for _, o := range cp.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

func (cp Checkpoint) clone() Checkpoint {
	if cp.Options != nil {
		opts := make([]Option, len(cp.Options))
		copy(opts, cp.Options)
		cp.Options = opts
	}
	return cp
}

// CheckpointRequestedPayload is the payload of checkpoint.requested.
type CheckpointRequestedPayload struct {
	CheckpointID string   `json:"checkpoint_id"`
	Decision     string   `json:"decision"`
	Options      []Option `json:"options"`
	ExpiresAt    int64    `json:"expires_at,omitempty"`
}

// CheckpointResolvedPayload is the payload of checkpoint.approved and
// checkpoint.rejected. Option is set on approval, Reason on rejection.
type CheckpointResolvedPayload struct {
	CheckpointID string `json:"checkpoint_id"`
	Option       string `json:"option,omitempty"`
	Reason       string `json:"reason,omitempty"`
}
