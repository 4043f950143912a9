package domain

import "time"

// OutboxStatus is the lifecycle of an outbox envelope.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxPublished  OutboxStatus = "published"
	OutboxFailed     OutboxStatus = "failed"
	OutboxDeadLetter OutboxStatus = "dead_letter"
)

// MaxOutboxRetries is the retry_count at which an envelope moves to the dead
// letter status instead of being scheduled again.
const MaxOutboxRetries = 5

// OutboxEnvelope is a durable, at-least-once event record written in the
// same unit of work as the domain change that produced it.
type OutboxEnvelope struct {
	ID            string       `json:"id"`
	TenantID      TenantID     `json:"tenantId"`
	AggregateType string       `json:"aggregateType"`
	AggregateID   string       `json:"aggregateId"`
	EventType     EventType    `json:"eventType"`
	Payload       []byte       `json:"payload"`
	Status        OutboxStatus `json:"status"`
	RetryCount    int          `json:"retryCount"`
	NextRetryAt   time.Time    `json:"nextRetryAt"`
	LastError     string       `json:"lastError,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`

	LockOwner    string    `json:"-"`
	LockExpiresAt time.Time `json:"-"`
}

// NextBackoff returns the duration to wait before the next publish attempt,
// 2^retry_count seconds, after incrementing retryCount failed attempts.
func NextBackoff(retryCount int) time.Duration {
	seconds := int64(1) << uint(retryCount)
	return time.Duration(seconds) * time.Second
}
