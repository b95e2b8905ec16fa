package domain

import "time"

// Status is a generic ACTIVE/INACTIVE lifecycle state shared by Tenant and
// Assistant (spec.md §3).
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// ThreadStatus is the lifecycle state of a Thread (spec.md §3).
type ThreadStatus string

const (
	ThreadIdle   ThreadStatus = "IDLE"
	ThreadActive ThreadStatus = "ACTIVE"
	ThreadBusy   ThreadStatus = "BUSY"
	ThreadFailed ThreadStatus = "FAILED"
)

// Tenant scopes every other entity in the system. Created/updated/soft
// deleted by an external management API; this repo reads and caches it, and
// writes it only through the POST /tenants/sync upsert.
type Tenant struct {
	ID     string
	Status Status
}

// Assistant is a configured persona bound to a tenant and, optionally, to a
// thread (spec.md §3). Consumed read-only by the Agent Runtime when composing
// the role prompt.
type Assistant struct {
	ID          string
	TenantID    string
	Status      Status
	Name        string
	Occupation  string
	Personality string
	Industry    string
	VoiceID     string
}

// CustomerAttributes holds free-form end-user attributes attached to a
// Thread (name, phone, ...).
type CustomerAttributes map[string]string

// Thread is one long-lived conversation with one end user under one tenant.
//
// Invariants (spec.md §3):
//   - exactly one in-flight workflow per thread at a time, enforced by the
//     IDLE/ACTIVE -> BUSY -> ACTIVE|FAILED transition around dispatch;
//   - the tenant of a bound assistant must equal the thread's tenant.
type Thread struct {
	ID                    string
	TenantID              string
	AssistantID           string // empty until bound
	Status                ThreadStatus
	Customer              CustomerAttributes
	LastAwakeningAt       time.Time
	AwakeningAttemptCount int
}

// HasAssistant reports whether the thread has a bound assistant.
func (t Thread) HasAssistant() bool { return t.AssistantID != "" }
