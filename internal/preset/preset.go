// Package preset holds the onboarding tasks seeded for new, signed-out users.
package preset

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/nissyi-gh/taskr/internal/model"
	"gopkg.in/yaml.v3"
)

// SeenKey is the meta key recording that presets were seeded once.
const SeenKey = "presets_seen"

//go:embed presets.yaml
var presetsYAML []byte

// Preset is one onboarding task. DueInDays is relative to seeding time.
type Preset struct {
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Status      model.Status `yaml:"status"`
	DueInDays   *int         `yaml:"due_in_days,omitempty"`
	Subtasks    []Preset     `yaml:"subtasks,omitempty"`
}

// All returns the embedded presets.
func All() []Preset {
	var out []Preset
	if err := yaml.Unmarshal(presetsYAML, &out); err != nil {
		panic(fmt.Sprintf("preset: embedded presets.yaml: %v", err))
	}
	return out
}

// Tasks materializes the presets as tasks created at now.
func Tasks(now time.Time, newID func() string) []model.Task {
	presets := All()
	out := make([]model.Task, 0, len(presets))
	for _, p := range presets {
		t := p.task(now, newID(), nil)
		for _, sp := range p.Subtasks {
			pid := t.ID
			t.Subtasks = append(t.Subtasks, sp.task(now, newID(), &pid))
		}
		out = append(out, t)
	}
	return out
}

func (p Preset) task(now time.Time, id string, parentID *string) model.Task {
	d := model.Draft{Title: p.Title, Status: p.Status, ParentID: parentID}
	if p.Description != "" {
		desc := p.Description
		d.Description = &desc
	}
	if p.DueInDays != nil {
		due := now.AddDate(0, 0, *p.DueInDays).Format(model.DateLayout)
		d.DueDate = &due
	}
	return model.NewTask(d, id, now)
}

// Unmodified reports whether t is a preset left as seeded: same title,
// description and status, with the same subtasks. Due dates are relative
// to seeding time and are not compared.
func Unmodified(t model.Task) bool {
	for _, p := range All() {
		if p.matches(t) {
			return true
		}
	}
	return false
}

func (p Preset) matches(t model.Task) bool {
	if !SameText(t, p.Title, p.Description, p.Status) || len(t.Subtasks) != len(p.Subtasks) {
		return false
	}
	for i, sp := range p.Subtasks {
		if !SameText(t.Subtasks[i], sp.Title, sp.Description, sp.Status) {
			return false
		}
	}
	return true
}

// SameText compares the fields used to recognise a task without an id.
func SameText(t model.Task, title, description string, status model.Status) bool {
	return t.Title == title && t.DescriptionText() == description && t.Status == status
}

// Store is the part of the local cache seeding needs.
type Store interface {
	ReadAll(ctx context.Context) ([]model.Task, error)
	ReplaceAll(ctx context.Context, tasks []model.Task) error
	Meta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

// Seed writes the presets into an empty cache the first time it runs and
// records that they were shown. It reports whether anything was written.
func Seed(ctx context.Context, s Store, now time.Time, newID func() string) (bool, error) {
	if _, seen, err := s.Meta(ctx, SeenKey); err != nil {
		return false, fmt.Errorf("read preset flag: %w", err)
	} else if seen {
		return false, nil
	}

	existing, err := s.ReadAll(ctx)
	if err != nil {
		return false, fmt.Errorf("read cached tasks: %w", err)
	}
	seeded := false
	if len(existing) == 0 {
		if err := s.ReplaceAll(ctx, Tasks(now, newID)); err != nil {
			return false, fmt.Errorf("seed presets: %w", err)
		}
		seeded = true
	}
	if err := s.SetMeta(ctx, SeenKey, "true"); err != nil {
		return seeded, fmt.Errorf("mark presets seen: %w", err)
	}
	return seeded, nil
}
