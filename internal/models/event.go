// internal/models/event.go
package models

// ChangeAction names what happened to a funnel.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeDeleted ChangeAction = "deleted"
	// ChangeReload tells listeners to refetch the whole funnel list.
	ChangeReload ChangeAction = "reload"
)

// ChangeEvent is broadcast to dashboard listeners after every mutation.
type ChangeEvent struct {
	Action   ChangeAction `json:"action"`
	FunnelID string       `json:"funnelId,omitempty"`
	Details  string       `json:"details,omitempty"`
}
