package model

import (
	"encoding/json"
	"time"
)

// Topics pushed by the platform backend.
const (
	TopicBalanceUpdate          = "balance_update"
	TopicMetricsUpdate          = "metrics_update"
	TopicInvitationStatusUpdate = "invitation_status_update"
)

// Message is the inbound push envelope. The Data payload is left opaque;
// consumers decode it per topic.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	UserID    int64           `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// SubscribeCommand is the outbound control message that lists every active
// topic. It is sent once after each successful open.
type SubscribeCommand struct {
	Type string               `json:"type"`
	Data SubscribeCommandData `json:"data"`
}

// SubscribeCommandData carries the subscribe command payload.
type SubscribeCommandData struct {
	UserID            int64    `json:"user_id"`
	SubscriptionTypes []string `json:"subscription_types"`
}

// NewSubscribeCommand builds a subscribe command for the given topics.
func NewSubscribeCommand(userID int64, topics []string) SubscribeCommand {
	return SubscribeCommand{
		Type: "subscribe",
		Data: SubscribeCommandData{
			UserID:            userID,
			SubscriptionTypes: topics,
		},
	}
}

// Balance is the REST payload for a user's current balance. Amount stays a
// decimal string; the client displays it but never does arithmetic on it.
type Balance struct {
	UserID    int64     `json:"user_id"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DashboardMetrics is the REST payload for a tutor's dashboard counters.
type DashboardMetrics struct {
	UserID             int64     `json:"user_id"`
	ActiveStudents     int       `json:"active_students"`
	LessonsToday       int       `json:"lessons_today"`
	PendingInvitations int       `json:"pending_invitations"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// InvitationStatus is the push payload for invitation_status_update messages.
type InvitationStatus struct {
	InvitationID string    `json:"invitation_id"`
	Status       string    `json:"status"` // "pending", "accepted", "declined", "expired"
	StudentName  string    `json:"student_name,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
