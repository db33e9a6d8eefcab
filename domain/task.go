package domain

// Board columns. The engine validates moves against this set; create and
// update pass the field through untouched so older clients keep working.
const (
	StatusTodo       = "TODO"
	StatusInProgress = "INPROGRESS"
	StatusDone       = "DONE"
)

// Display hints, advisory only.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"

	CategoryBug         = "Bug"
	CategoryFeature     = "Feature"
	CategoryEnhancement = "Enhancement"
)

// Attachment is a file carried inline on a task. Data is the base64-encoded
// content, optionally with a data-URL prefix, exactly as received from the
// client.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// Task represents a single board card.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	Category    string       `json:"category,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   string       `json:"createdAt"`
}

// Clone returns a copy that shares no storage with the receiver.
func (t Task) Clone() Task {
	out := t
	if t.Attachments != nil {
		out.Attachments = make([]Attachment, len(t.Attachments))
		copy(out.Attachments, t.Attachments)
	}
	return out
}

// ValidStatus reports whether s is one of the three board columns.
func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// TaskCreate is the client-supplied portion of a new task. ID and CreatedAt
// are assigned by the engine.
type TaskCreate struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	Category    string       `json:"category,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// TaskUpdate carries partial updates for a task. Only non-nil fields are
// merged over the stored task; ID and CreatedAt are never replaced.
type TaskUpdate struct {
	ID          string        `json:"id"`
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *string       `json:"status,omitempty"`
	Priority    *string       `json:"priority,omitempty"`
	Category    *string       `json:"category,omitempty"`
	Attachments *[]Attachment `json:"attachments,omitempty"`
}

// TaskMove asks for a status-only change.
type TaskMove struct {
	TaskID    string `json:"taskId"`
	NewStatus string `json:"newStatus"`
}
