// Package types provides shared type definitions used across commlink packages.
// This package exists to break import cycles between store, scheduler, router and session.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"time"
)

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// SenderID identifies the author of an utterance.
type SenderID string

const (
	// SenderBot is the identity used for every agent-authored reply.
	SenderBot SenderID = "commlink-bot"
	// SenderReminder is the synthetic identity reminder deliveries are posted from.
	SenderReminder SenderID = "reminder-bot"
)

// IsAgent reports whether the sender is one of the synthetic agent identities.
func (s SenderID) IsAgent() bool {
	return s == SenderBot || s == SenderReminder
}

// Utterance is one message unit in the conversation history.
//
// TokenIndex is set only when the text exactly matched the phrase dictionary;
// in that case Text is empty. Seq is the logical timestamp assigned by the
// store on write and orders the history.
type Utterance struct {
	ID         string
	Sender     SenderID
	Text       string
	TokenIndex *int
	Seq        int64
	CreatedAt  time.Time
}

// IsCompressed reports whether the utterance carries a dictionary index instead of text.
func (u Utterance) IsCompressed() bool {
	return u.TokenIndex != nil
}

// IntPtr returns a pointer to v. Used to build compressed utterances.
func IntPtr(v int) *int {
	return &v
}

// =============================================================================
// REMINDERS
// =============================================================================

// ReminderRecord is a persisted one-shot notification.
// DueAt is expressed in epoch milliseconds.
type ReminderRecord struct {
	ID      string
	DueAt   int64
	Message string
}

// Due reports whether the record is due at now.
func (r ReminderRecord) Due(now time.Time) bool {
	return r.DueAt <= now.UnixMilli()
}

// DueTime returns DueAt as a time.Time.
func (r ReminderRecord) DueTime() time.Time {
	return time.UnixMilli(r.DueAt)
}

// =============================================================================
// SESSION
// =============================================================================

// SessionPhase is the lifecycle phase of a chat session.
// Phases advance monotonically; only a hard reset returns to PhaseUnauthenticated.
type SessionPhase int

const (
	PhaseUnauthenticated SessionPhase = iota
	PhaseAuthenticating
	PhaseHandshakeInProgress
	PhaseReady
)

// String returns the phase name.
func (p SessionPhase) String() string {
	names := []string{"Unauthenticated", "Authenticating", "HandshakeInProgress", "Ready"}
	if int(p) >= 0 && int(p) < len(names) {
		return names[p]
	}
	return fmt.Sprintf("SessionPhase(%d)", int(p))
}

// Identity is the resolved user behind a session.
type Identity struct {
	ID        SenderID
	Anonymous bool
}
