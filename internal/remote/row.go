package remote

import (
	"strings"
	"time"

	"github.com/nissyi-gh/taskr/internal/model"
)

// Row is the remote store's representation of a task.
type Row struct {
	ID          string    `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	Title       string    `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Description *string   `gorm:"column:description;type:text" json:"description"`
	Status      string    `gorm:"column:status;type:varchar(20);not null" json:"status"`
	DueDate     *string   `gorm:"column:due_date;type:varchar(10)" json:"due_date"`
	CreatedAt   time.Time `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
	UserID      string    `gorm:"column:user_id;type:varchar(64);index;not null" json:"user_id"`
	ParentID    *string   `gorm:"column:parent_id;type:varchar(64);index" json:"parent_id"`
	IsSubtask   bool      `gorm:"column:is_subtask" json:"is_subtask"`
}

// TableName pins the table name.
func (Row) TableName() string { return "tasks" }

// ToRow converts a task into an owned row. Subtasks are separate rows.
func ToRow(t model.Task, owner string) Row {
	return Row{
		ID:          t.ID,
		Title:       t.Title,
		Description: nonEmpty(t.Description),
		Status:      string(t.Status),
		DueDate:     nonEmpty(t.DueDate),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
		UserID:      owner,
		ParentID:    nonEmpty(t.ParentID),
		IsSubtask:   t.ParentID != nil,
	}
}

// Task converts the row back into a domain task.
func (r Row) Task() model.Task {
	return model.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: nonEmpty(r.Description),
		Status:      model.Status(r.Status),
		DueDate:     nonEmpty(r.DueDate),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ParentID:    nonEmpty(r.ParentID),
		IsSubtask:   r.ParentID != nil,
	}
}

// patchFields returns the column updates for p. updated_at is always set.
func patchFields(p model.Patch, now time.Time) map[string]any {
	fields := map[string]any{"updated_at": now.UTC()}
	if p.Title != nil {
		fields["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		fields["description"] = nullable(*p.Description)
	}
	if p.Status != nil {
		fields["status"] = string(*p.Status)
	}
	if p.DueDate != nil {
		fields["due_date"] = nullable(*p.DueDate)
	}
	return fields
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
