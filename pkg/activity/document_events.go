package activity

import (
	"strings"
	"time"
)

// DocumentEventInput describes the common fields for document lifecycle
// events.
type DocumentEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Doctype    string
	Name       string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildDocumentCreatedEvent constructs a normalized event for a first save.
func BuildDocumentCreatedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.created", input)
}

// BuildDocumentUpdatedEvent constructs a normalized event for a re-save.
func BuildDocumentUpdatedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.updated", input)
}

// BuildDocumentSubmittedEvent constructs a normalized event for a submit.
func BuildDocumentSubmittedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.submitted", input)
}

// BuildDocumentCancelledEvent constructs a normalized event for a cancel.
func BuildDocumentCancelledEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.cancelled", input)
}

// BuildDocumentDeletedEvent constructs a normalized event for a delete.
func BuildDocumentDeletedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.deleted", input)
}

// BuildDocumentAmendedEvent constructs a normalized event for an amend,
// keyed by the cancelled predecessor's name.
func BuildDocumentAmendedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.amended", input)
}

func buildDocumentEvent(verb string, input DocumentEventInput) Event {
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		Doctype:    strings.TrimSpace(input.Doctype),
		Name:       strings.TrimSpace(input.Name),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   cloneMap(input.Metadata),
		OccurredAt: input.OccurredAt,
	}
}
