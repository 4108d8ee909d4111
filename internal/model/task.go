package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for due dates.
const DateLayout = "2006-01-02"

// ErrInvalidDraft is returned when a draft or patch fails validation.
var ErrInvalidDraft = errors.New("invalid task")

// Status is the column a task sits in.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Next cycles To Do -> In Progress -> Completed -> To Do.
func (s Status) Next() Status {
	switch s {
	case StatusToDo:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusToDo
	}
}

// ParseStatus accepts the wire strings as well as a few loose spellings
// ("todo", "in_progress", "done") used on the command line and in YAML.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s))) {
	case "", "to do", "todo":
		return StatusToDo, nil
	case "in progress", "inprogress", "doing":
		return StatusInProgress, nil
	case "completed", "done", "complete":
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidDraft, s)
}

// Task is a single task. Top-level tasks carry their subtasks; a subtask
// has ParentID set and never has subtasks of its own.
type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description *string   `json:"description,omitempty" yaml:"description,omitempty"`
	Status      Status    `json:"status" yaml:"status"`
	DueDate     *string   `json:"dueDate,omitempty" yaml:"due_date,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updated_at"`
	ParentID    *string   `json:"parentId,omitempty" yaml:"parent_id,omitempty"`
	IsSubtask   bool      `json:"isSubtask" yaml:"is_subtask"`
	Subtasks    []Task    `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
}

// IsDueToday returns true if the task's due date is today.
func (t Task) IsDueToday() bool {
	if t.DueDate == nil {
		return false
	}
	return *t.DueDate == time.Now().Format(DateLayout)
}

// IsOverdue returns true if the task is past its due date and not completed.
func (t Task) IsOverdue() bool {
	if t.DueDate == nil || t.Status == StatusCompleted {
		return false
	}
	return *t.DueDate < time.Now().Format(DateLayout)
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	c := t
	c.Description = cloneString(t.Description)
	c.DueDate = cloneString(t.DueDate)
	c.ParentID = cloneString(t.ParentID)
	if t.Subtasks != nil {
		c.Subtasks = make([]Task, len(t.Subtasks))
		for i, st := range t.Subtasks {
			c.Subtasks[i] = st.Clone()
		}
	}
	return c
}

// DescriptionText returns the description or "" when unset.
func (t Task) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// Draft holds the caller-supplied fields of a task that does not exist yet.
type Draft struct {
	Title       string
	Description *string
	Status      Status
	DueDate     *string
	ParentID    *string
}

// Validate checks the draft and fills in the default status.
func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	if d.Status == "" {
		d.Status = StatusToDo
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDraft, d.Status)
	}
	if d.DueDate != nil {
		if err := ValidateDate(*d.DueDate); err != nil {
			return err
		}
	}
	if d.ParentID != nil && *d.ParentID == "" {
		d.ParentID = nil
	}
	return nil
}

// NewTask materializes a validated draft with a client-generated identity.
func NewTask(d Draft, id string, now time.Time) Task {
	t := Task{
		ID:          id,
		Title:       d.Title,
		Description: nonEmpty(d.Description),
		Status:      d.Status,
		DueDate:     nonEmpty(d.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if d.ParentID != nil {
		pid := *d.ParentID
		t.ParentID = &pid
		t.IsSubtask = true
	}
	return t
}

// Patch is a partial update. Nil fields are left untouched; an empty
// Description or DueDate clears that field.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
	DueDate     *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.DueDate == nil
}

// Validate rejects patches that would break task invariants.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidDraft)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDraft, *p.Status)
	}
	if p.DueDate != nil && *p.DueDate != "" {
		if err := ValidateDate(*p.DueDate); err != nil {
			return err
		}
	}
	return nil
}

// Apply writes the patch onto t. UpdatedAt is left to the caller.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = nonEmpty(p.Description)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DueDate != nil {
		t.DueDate = nonEmpty(p.DueDate)
	}
}

// PatchFrom builds a patch that overwrites every mutable field with t's values.
func PatchFrom(t Task) Patch {
	title := t.Title
	desc := t.DescriptionText()
	status := t.Status
	due := ""
	if t.DueDate != nil {
		due = *t.DueDate
	}
	return Patch{Title: &title, Description: &desc, Status: &status, DueDate: &due}
}

// ValidateDate checks a YYYY-MM-DD string.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%w: invalid date %q", ErrInvalidDraft, s)
	}
	return nil
}

// ChangeType names the kind of mutation a pending change records.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// PendingChange is a mutation not yet acknowledged by the remote store.
type PendingChange struct {
	Type      ChangeType `json:"type"`
	Task      Task       `json:"task"`
	Timestamp time.Time  `json:"timestamp"`
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
