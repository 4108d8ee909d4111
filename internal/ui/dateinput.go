package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nissyi-gh/taskr/internal/model"
)

const (
	fieldYear = iota
	fieldMonth
	fieldDay
	fieldCount
)

var dateFields = [fieldCount]struct {
	placeholder string
	width       int
}{
	{"YYYY", 4},
	{"MM", 2},
	{"DD", 2},
}

var errDigitsOnly = errors.New("digits only")

// dateInput edits a due date as three numeric fields. A field that fills up
// hands focus to the next one; "-" also advances.
type dateInput struct {
	fields [fieldCount]textinput.Model
	focus  int
	now    func() time.Time
}

func newDateInput() dateInput {
	d := dateInput{now: time.Now}
	for i, spec := range dateFields {
		ti := textinput.New()
		ti.Placeholder = spec.placeholder
		ti.CharLimit = spec.width
		ti.Width = spec.width + 2
		ti.Validate = digitsOnly
		d.fields[i] = ti
	}
	return d
}

func digitsOnly(s string) error {
	if strings.Trim(s, "0123456789") != "" {
		return errDigitsOnly
	}
	return nil
}

func (d *dateInput) Focus() tea.Cmd {
	return d.focusField(fieldYear)
}

// SetValue splits a YYYY-MM-DD string into the fields. An empty string
// clears them.
func (d *dateInput) SetValue(date string) {
	parts := strings.SplitN(date, "-", fieldCount)
	for i := range d.fields {
		v := ""
		if date != "" && i < len(parts) {
			v = parts[i]
		}
		d.fields[i].SetValue(v)
	}
}

// Value returns the entered date. An empty year or month means the current
// one; the day is required.
func (d *dateInput) Value() (string, error) {
	now := d.now()
	year, err := d.number(fieldYear, now.Year())
	if err != nil {
		return "", err
	}
	month, err := d.number(fieldMonth, int(now.Month()))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(d.fields[fieldDay].Value()) == "" {
		return "", errors.New("day is required")
	}
	day, err := d.number(fieldDay, 0)
	if err != nil {
		return "", err
	}

	date := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	if err := model.ValidateDate(date); err != nil {
		return "", err
	}
	return date, nil
}

func (d *dateInput) number(field, fallback int) (int, error) {
	s := strings.TrimSpace(d.fields[field].Value())
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", dateFields[field].placeholder, errDigitsOnly)
	}
	return n, nil
}

// shift sets the date to today plus days.
func (d *dateInput) shift(days int) {
	d.SetValue(d.now().AddDate(0, 0, days).Format(model.DateLayout))
}

func (d *dateInput) IsEmpty() bool {
	for _, f := range d.fields {
		if f.Value() != "" {
			return false
		}
	}
	return true
}

func (d *dateInput) focusField(idx int) tea.Cmd {
	if idx < 0 || idx >= fieldCount {
		return nil
	}
	d.focus = idx
	var cmd tea.Cmd
	for i := range d.fields {
		if i == idx {
			cmd = d.fields[i].Focus()
		} else {
			d.fields[i].Blur()
		}
	}
	return cmd
}

func (d dateInput) Update(msg tea.Msg) (dateInput, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "tab", "right":
			cmd := d.focusField(d.focus + 1)
			return d, cmd
		case "-":
			// A full field already advanced; the separator typed after it is absorbed.
			if d.fields[d.focus].Value() == "" && d.focus > fieldYear && d.full(d.focus-1) {
				return d, nil
			}
			cmd := d.focusField(d.focus + 1)
			return d, cmd
		case "shift+tab", "left":
			cmd := d.focusField(d.focus - 1)
			return d, cmd
		case "ctrl+t":
			d.shift(0)
			return d, nil
		case "ctrl+w":
			d.shift(7)
			return d, nil
		case "ctrl+u":
			d.SetValue("")
			cmd := d.focusField(fieldYear)
			return d, cmd
		}
	}

	var cmd tea.Cmd
	field := &d.fields[d.focus]
	*field, cmd = field.Update(msg)
	if _, isKey := msg.(tea.KeyMsg); isKey && d.focus < fieldDay && d.full(d.focus) {
		next := d.focusField(d.focus + 1)
		return d, tea.Batch(cmd, next)
	}
	return d, cmd
}

func (d *dateInput) full(field int) bool {
	return len(d.fields[field].Value()) == dateFields[field].width
}

func (d dateInput) View() string {
	views := make([]string, 0, fieldCount)
	for _, f := range d.fields {
		views = append(views, f.View())
	}
	return strings.Join(views, " - ")
}
