package models

import "time"

// Account represents a user that can take part in friendships.
type Account struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
}

// RelationshipStatus is the lifecycle state of a directed relationship record.
type RelationshipStatus string

const (
	StatusPending  RelationshipStatus = "pending"
	StatusAccepted RelationshipStatus = "accepted"
)

// Relationship is a directed edge expressing From's relationship toward To.
// An accepted friendship is stored as two records, one per direction.
type Relationship struct {
	ID          string
	From        string
	To          string
	Status      RelationshipStatus
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// Counterpart returns the account on the other side of the record from accountID.
func (r Relationship) Counterpart(accountID string) string {
	if r.From == accountID {
		return r.To
	}
	return r.From
}

// Profile holds the public fields of an account shown to other users.
type Profile struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name,omitempty"`
	Contact   string `json:"contact,omitempty"`
}

// FriendEntry is a relationship as seen from one account, enriched with the
// counterpart's profile.
type FriendEntry struct {
	RequestID   string             `json:"requestId"`
	Status      RelationshipStatus `json:"status"`
	Incoming    bool               `json:"incoming"`
	Friend      Profile            `json:"friend"`
	CreatedAt   time.Time          `json:"createdAt"`
	RespondedAt *time.Time         `json:"respondedAt,omitempty"`
}

// FriendList is the classified relationship view for a single account.
type FriendList struct {
	Accepted []FriendEntry `json:"accepted"`
	Pending  []FriendEntry `json:"pending"`
	Incoming []FriendEntry `json:"incoming"`
	Outgoing []FriendEntry `json:"outgoing"`
}

// EventType names a relationship state transition.
type EventType string

const (
	EventRequestSent       EventType = "request.sent"
	EventRequestAccepted   EventType = "request.accepted"
	EventRequestDeclined   EventType = "request.declined"
	EventRequestCancelled  EventType = "request.cancelled"
	EventFriendshipRemoved EventType = "friendship.removed"
)

// Event records a committed relationship transition for downstream consumers.
type Event struct {
	Type           EventType `json:"type"`
	RelationshipID string    `json:"relationshipId,omitempty"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	OccurredAt     time.Time `json:"occurredAt"`
}
