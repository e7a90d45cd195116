/*
notify.go - Notification dispatch boundary

PURPOSE:
  Services announce domain events here; delivery (mail, push, in-app)
  lives behind the interface. The engine ships with a log-only
  implementation; SaaS deployments plug in their own.

DELIVERY CONTRACT:
  Notify must not block domain operations and must not fail them: a
  broken notification channel never rolls back a scheduling decision.
  Implementations swallow and log their own errors.
*/
package core

import (
	"context"
	"log"
)

type EventKind string

const (
	EventShiftAssigned    EventKind = "SHIFT_ASSIGNED"
	EventShiftCancelled   EventKind = "SHIFT_CANCELLED"
	EventAbsenceRequested EventKind = "ABSENCE_REQUESTED"
	EventAbsenceDecided   EventKind = "ABSENCE_DECIDED"
	EventSwapRequested    EventKind = "SWAP_REQUESTED"
	EventSwapDecided      EventKind = "SWAP_DECIDED"
	EventChangeRequested  EventKind = "CHANGE_REQUESTED"
	EventChangeDecided    EventKind = "CHANGE_DECIDED"
	EventEntrySubmitted   EventKind = "ENTRY_SUBMITTED"
	EventEntryDecided     EventKind = "ENTRY_DECIDED"
	EventOvertimeAlert    EventKind = "OVERTIME_ALERT"
	EventMonthLocked      EventKind = "MONTH_LOCKED"
)

// Event is one notification to one recipient.
type Event struct {
	Kind        EventKind
	WorkspaceID string
	RecipientID string // employee to notify
	SubjectID   string // shift/absence/entry/request the event is about
	Message     string
}

// Notifier delivers events. Implementations must be safe for concurrent
// use and must never return delivery failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// LogNotifier writes events to the process log. The default when no
// delivery channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, e Event) {
	log.Printf("[Notify] %s workspace=%s recipient=%s subject=%s: %s",
		e.Kind, e.WorkspaceID, e.RecipientID, e.SubjectID, e.Message)
}

// NopNotifier discards events. Used in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}
