package ingestion

import (
	"fmt"
	"strings"
	"time"

	"VaultLedger/internal/event"
)

// Subjects are vault.commands.<type>, with <type> the command's wire name
// (deposit, harvest, set_worker_fee, ...).
const (
	CommandSubjectPrefix = "vault.commands."
	CommandSubjects      = CommandSubjectPrefix + ">"
)

// RawEvent is a command as received from a transport, before decoding.
type RawEvent struct {
	Subject  string
	Data     []byte
	Received time.Time

	// Ack confirms the message; Term drops it for good; Nak asks for
	// redelivery. Each may be nil.
	Ack  func() error
	Term func() error
	Nak  func() error
}

// CommandSubject is the subject a command of type et is published on.
func CommandSubject(et event.EventType) string {
	return CommandSubjectPrefix + et.String()
}

// EventTypeFromSubject resolves the command type from a subject. Extra
// tokens after the type (vault.commands.deposit.alice) are allowed so
// producers can partition further.
func EventTypeFromSubject(subject string) (event.EventType, error) {
	rest, ok := strings.CutPrefix(subject, CommandSubjectPrefix)
	if !ok || rest == "" {
		return event.EventTypeUnknown, fmt.Errorf("subject %q is not a command subject", subject)
	}
	name, _, _ := strings.Cut(rest, ".")
	et := event.ParseEventType(name)
	if et == event.EventTypeUnknown {
		return event.EventTypeUnknown, fmt.Errorf("unknown command type %q", name)
	}
	return et, nil
}

// ParseRawEvent decodes a raw command into its typed form. The payload is
// strict JSON: unknown fields, a missing idempotency key or a missing
// caller are rejected.
func ParseRawEvent(raw RawEvent) (event.Event, error) {
	et, err := EventTypeFromSubject(raw.Subject)
	if err != nil {
		return nil, err
	}
	return event.Decode(et, raw.Data)
}

func (r RawEvent) ack() {
	if r.Ack != nil {
		_ = r.Ack()
	}
}

func (r RawEvent) term() {
	if r.Term != nil {
		_ = r.Term()
		return
	}
	r.ack()
}

func (r RawEvent) nak() {
	if r.Nak != nil {
		_ = r.Nak()
	}
}
