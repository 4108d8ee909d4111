package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func fixedDateInput() dateInput {
	d := newDateInput()
	d.now = func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.Local) }
	d.Focus()
	return d
}

func typeInto(d dateInput, s string) dateInput {
	for _, r := range s {
		d, _ = d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return d
}

func TestDateInputValue(t *testing.T) {
	tests := []struct {
		name    string
		typed   string
		want    string
		wantErr bool
	}{
		{name: "full date advances between fields", typed: "20261225", want: "2026-12-25"},
		{name: "dash advances", typed: "2027-1-5", want: "2027-01-05"},
		{name: "year and month default to now", typed: "--7", want: "2026-03-07"},
		{name: "day required", typed: "2026-04", wantErr: true},
		{name: "impossible date", typed: "2026-02-30", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := typeInto(fixedDateInput(), tt.typed)
			got, err := d.Value()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDateInputShortcuts(t *testing.T) {
	d := fixedDateInput()

	d, _ = d.Update(tea.KeyMsg{Type: tea.KeyCtrlW})
	if got, _ := d.Value(); got != "2026-03-16" {
		t.Errorf("ctrl+w: got %q", got)
	}
	d, _ = d.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if got, _ := d.Value(); got != "2026-03-09" {
		t.Errorf("ctrl+t: got %q", got)
	}
	d, _ = d.Update(tea.KeyMsg{Type: tea.KeyCtrlU})
	if !d.IsEmpty() {
		t.Error("ctrl+u should clear the date")
	}

	d.SetValue("2025-07-04")
	if got, _ := d.Value(); got != "2025-07-04" {
		t.Errorf("SetValue round trip: got %q", got)
	}
}
