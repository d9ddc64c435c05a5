package googletasks

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tasks "google.golang.org/api/tasks/v1"

	"reqdash/internal/service"
)

// notesPrefix starts the first line of the notes of every task reqdash writes.
const notesPrefix = "reqdash/v1"

// header holds the request fields Google Tasks has no place for.
type header struct {
	Status   service.Status
	Priority int
	Created  time.Time
	Owner    string
}

// encodeNotes renders h as a single line. A nil description leaves the
// line alone; any other description, empty included, follows a newline.
func encodeNotes(h header, desc *string) string {
	line := fmt.Sprintf("%s status=%s priority=%d created=%s owner=%s",
		notesPrefix, h.Status, h.Priority, h.Created.UTC().Format(time.RFC3339Nano), h.Owner)
	if desc == nil {
		return line
	}
	return line + "\n" + *desc
}

// decodeNotes splits notes into header and description. ok is false for
// notes reqdash did not write; all of the text is then the description.
func decodeNotes(notes string) (h header, desc *string, ok bool) {
	first, rest, hasRest := strings.Cut(notes, "\n")
	fields := strings.Fields(first)
	if len(fields) == 0 || fields[0] != notesPrefix {
		if notes != "" {
			desc = &notes
		}
		return header{}, desc, false
	}
	for _, f := range fields[1:] {
		k, v, found := strings.Cut(f, "=")
		if !found {
			continue
		}
		switch k {
		case "status":
			h.Status = service.Status(v)
		case "priority":
			h.Priority, _ = strconv.Atoi(v)
		case "created":
			h.Created, _ = time.Parse(time.RFC3339Nano, v)
		case "owner":
			h.Owner = v
		}
	}
	if hasRest {
		desc = &rest
	}
	return h, desc, true
}

// toRequest converts a task. Tasks added outside reqdash get defaults.
// Google's completion state wins over the header: a task completed in
// another client is DONE, and a task reopened there is NEW again.
func toRequest(t *tasks.Task, owner string) service.Request {
	h, desc, _ := decodeNotes(t.Notes)
	r := service.Request{
		ID:          t.Id,
		Owner:       h.Owner,
		Title:       t.Title,
		Description: desc,
		Status:      h.Status,
		Priority:    h.Priority,
		CreatedAt:   h.Created,
	}
	if r.Owner == "" {
		r.Owner = owner
	}
	if !r.Status.Valid() {
		r.Status = service.StatusNew
	}
	if r.Priority < service.PriorityHigh || r.Priority > service.PriorityLow {
		r.Priority = service.PriorityDefault
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt, _ = time.Parse(time.RFC3339, t.Updated)
	}
	switch {
	case t.Status == statusCompleted:
		r.Status = service.StatusDone
	case r.Status == service.StatusDone:
		r.Status = service.StatusNew
	}
	return r
}
