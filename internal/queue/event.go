// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Security event types published on the auth.security queue.
const (
	EventLoginFailed   = "login_failed"
	EventAccountLocked = "account_locked"
	EventLoginSuccess  = "login_success"
	EventTokenReplay   = "token_replay"
	EventTokensRevoked = "tokens_revoked"
)

// SecurityEvent is published for notable authentication outcomes so that
// downstream consumers can alert or aggregate without querying the primary
// database.  The event stream is best-effort; the transactional login_logs
// table remains the authoritative audit record.
type SecurityEvent struct {
	EventID      string `json:"event_id"`
	Type         string `json:"type"`
	AccountClass string `json:"account_class"`
	AccountID    uint64 `json:"account_id"`
	Email        string `json:"email"`
	IP           string `json:"ip"`
	UserAgent    string `json:"user_agent"`
	Detail       string `json:"detail,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

// NewSecurityEvent stamps a fresh event with a unique id and the current
// UTC time.
func NewSecurityEvent(eventType string, class string, accountID uint64, email, ip, userAgent, detail string) SecurityEvent {
	return SecurityEvent{
		EventID:      uuid.NewString(),
		Type:         eventType,
		AccountClass: class,
		AccountID:    accountID,
		Email:        email,
		IP:           ip,
		UserAgent:    userAgent,
		Detail:       detail,
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	}
}
