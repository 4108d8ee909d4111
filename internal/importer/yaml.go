package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/nissyi-gh/taskr/internal/model"
	"github.com/nissyi-gh/taskr/internal/service"
	"gopkg.in/yaml.v3"
)

// YAMLTask represents a single task in the YAML input.
type YAMLTask struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description,omitempty"`
	Status      string     `yaml:"status,omitempty"`
	DueDate     string     `yaml:"due_date,omitempty"`
	Children    []YAMLTask `yaml:"children,omitempty"`
}

// YAMLInput represents the root structure of the YAML input.
type YAMLInput struct {
	Tasks []YAMLTask `yaml:"tasks"`
}

// Saver creates tasks.
type Saver interface {
	SaveTask(ctx context.Context, d model.Draft) (service.Result, error)
}

// Parse decodes and validates a YAML task list. parentID marks the tasks as
// subtasks of an existing task, in which case they may not have children.
func Parse(yamlStr string, parentID *string) ([]YAMLTask, error) {
	var input YAMLInput
	if err := yaml.Unmarshal([]byte(yamlStr), &input); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}

	if len(input.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in YAML")
	}

	depth := 0
	if parentID != nil {
		depth = 1
	}
	for _, yt := range input.Tasks {
		if err := validate(yt, depth); err != nil {
			return nil, err
		}
	}
	return input.Tasks, nil
}

func validate(yt YAMLTask, depth int) error {
	if yt.Title == "" {
		return fmt.Errorf("task title is required")
	}
	if _, err := model.ParseStatus(yt.Status); err != nil {
		return fmt.Errorf("task %q: %w", yt.Title, err)
	}
	if yt.DueDate != "" {
		if err := model.ValidateDate(yt.DueDate); err != nil {
			return fmt.Errorf("task %q: %w", yt.Title, err)
		}
	}
	if len(yt.Children) > 0 && depth > 0 {
		return fmt.Errorf("task %q: subtasks cannot have children", yt.Title)
	}
	for _, c := range yt.Children {
		if err := validate(c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Import parses a YAML string and creates the tasks through s.
// parentID can be nil for root-level tasks.
// Returns the number of tasks created.
func Import(ctx context.Context, s Saver, yamlStr string, parentID *string) (int, error) {
	tasks, err := Parse(yamlStr, parentID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, yt := range tasks {
		n, err := importTask(ctx, s, yt, parentID)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

func importTask(ctx context.Context, s Saver, yt YAMLTask, parentID *string) (int, error) {
	status, _ := model.ParseStatus(yt.Status)
	d := model.Draft{Title: yt.Title, Status: status, ParentID: parentID}
	if yt.Description != "" {
		desc := yt.Description
		d.Description = &desc
	}
	if yt.DueDate != "" {
		dd := yt.DueDate
		d.DueDate = &dd
	}

	res, err := s.SaveTask(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("add task %q: %w", yt.Title, err)
	}
	if res.Task == nil {
		return 0, errors.New("add task: no task returned")
	}
	count := 1

	for _, child := range yt.Children {
		id := res.Task.ID
		n, err := importTask(ctx, s, child, &id)
		if err != nil {
			return count, err
		}
		count += n
	}

	return count, nil
}

// Export renders tasks in the import format.
func Export(tasks []model.Task) (string, error) {
	out := YAMLInput{Tasks: make([]YAMLTask, 0, len(tasks))}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, toYAML(t))
	}
	b, err := yaml.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("YAML encode error: %w", err)
	}
	return string(b), nil
}

func toYAML(t model.Task) YAMLTask {
	yt := YAMLTask{
		Title:       t.Title,
		Description: t.DescriptionText(),
		Status:      string(t.Status),
	}
	if t.DueDate != nil {
		yt.DueDate = *t.DueDate
	}
	for _, st := range t.Subtasks {
		yt.Children = append(yt.Children, toYAML(st))
	}
	return yt
}
