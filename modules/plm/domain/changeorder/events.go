package changeorder

import (
	"time"

	"github.com/google/uuid"
)

// Outbox topics for durable delivery to external notifiers.
const (
	TopicCreated        = "changeorder.created"
	TopicVersionCreated = "changeorder.version_created"
	TopicStatusChanged  = "changeorder.status_changed"
	TopicCommented      = "changeorder.commented"
	TopicDeleted        = "changeorder.deleted"
)

// CreatedEvent is published after a new chain commits.
type CreatedEvent struct {
	Result ChangeOrder
}

// VersionCreatedEvent is published after a content edit produced a new
// version. Previous is the superseded row.
type VersionCreatedEvent struct {
	Previous ChangeOrder
	Result   ChangeOrder
}

// StatusChangedEvent is published after a status transition commits. Result
// is the authoritative row, which may be a new version.
type StatusChangedEvent struct {
	From   Status
	To     Status
	Actor  Actor
	Result ChangeOrder
}

type CommentedEvent struct {
	Comment Comment
	Order   ChangeOrder
}

type DeletedEvent struct {
	Result ChangeOrder
}

// NotificationEvent is what the outbox relay republishes on the in-process
// bus. It is a distinct type from the post-commit events so durable
// subscribers (notifiers) do not double-receive alongside embedded ones.
type NotificationEvent struct {
	Topic   string
	Payload EventPayload
}

// EventPayload is the wire form stored in the outbox for every topic.
type EventPayload struct {
	ChainRootID uuid.UUID `json:"chain_root_id"`
	VersionID   uuid.UUID `json:"version_id"`
	Version     int       `json:"version"`
	Status      Status    `json:"status"`
	Title       string    `json:"title"`
	ActorID     uuid.UUID `json:"actor_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}
