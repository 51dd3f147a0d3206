package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"localchat/internal/settings"
)

// settingsDismissedMsg carries the edited snapshot out of the overlay. The
// root model persists it and hands it to the chat pane, which drops its
// model-session handle so the new instructions apply.
type settingsDismissedMsg struct {
	settings settings.Settings
}

const (
	settingsFieldStreaming = iota
	settingsFieldTemperature
	settingsFieldInstructions
	settingsFieldCount
)

// settingsModel edits a working copy of the settings. Nothing is applied or
// persisted until the overlay is dismissed.
type settingsModel struct {
	working settings.Settings
	cursor  int

	instructions textinput.Model
	editingText  bool

	width  int
	height int
}

func newSettingsModel() settingsModel {
	ti := textinput.New()
	ti.Placeholder = "System instructions"
	ti.CharLimit = 2048
	ti.Width = 60
	return settingsModel{instructions: ti}
}

func (m *settingsModel) open(current settings.Settings) {
	m.working = current
	m.cursor = settingsFieldStreaming
	m.editingText = false
	m.instructions.SetValue(current.SystemInstructions)
	m.instructions.Blur()
}

func (m *settingsModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.editingText {
		switch msg.String() {
		case "enter":
			m.working.SystemInstructions = strings.TrimSpace(m.instructions.Value())
			m.editingText = false
			m.instructions.Blur()
			return nil
		case "esc":
			m.instructions.SetValue(m.working.SystemInstructions)
			m.editingText = false
			m.instructions.Blur()
			return nil
		}
		var cmd tea.Cmd
		m.instructions, cmd = m.instructions.Update(msg)
		return cmd
	}

	switch msg.String() {
	case "esc", "ctrl+o":
		return m.dismiss()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j", "tab":
		if m.cursor < settingsFieldCount-1 {
			m.cursor++
		}
	case "left", "h":
		m.adjust(-1)
	case "right", "l":
		m.adjust(1)
	case "enter", " ":
		switch m.cursor {
		case settingsFieldStreaming:
			m.working.UseStreaming = !m.working.UseStreaming
		case settingsFieldInstructions:
			m.editingText = true
			m.instructions.SetValue(m.working.SystemInstructions)
			m.instructions.CursorEnd()
			m.instructions.Focus()
		}
	}
	return nil
}

// adjust moves the field under the cursor. Temperature steps by 0.1 and is
// clamped to the model's accepted range.
func (m *settingsModel) adjust(dir int) {
	switch m.cursor {
	case settingsFieldStreaming:
		m.working.UseStreaming = !m.working.UseStreaming
	case settingsFieldTemperature:
		m.working.Temperature += 0.1 * float64(dir)
		m.working.Clamp()
	}
}

func (m *settingsModel) dismiss() tea.Cmd {
	m.working.Clamp()
	snapshot := m.working
	return func() tea.Msg { return settingsDismissedMsg{settings: snapshot} }
}

func (m *settingsModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.instructions.Width = min(width-16, 80)
}

func (m *settingsModel) view() string {
	streaming := "off"
	if m.working.UseStreaming {
		streaming = "on"
	}

	rows := []string{
		m.row(settingsFieldStreaming, "Streaming", streaming),
		m.row(settingsFieldTemperature, "Temperature", fmt.Sprintf("%.1f", m.working.Temperature)),
	}

	instr := m.working.SystemInstructions
	if m.editingText {
		instr = m.instructions.View()
	}
	rows = append(rows, m.row(settingsFieldInstructions, "Instructions", instr))

	body := lipgloss.JoinVertical(lipgloss.Left,
		"Settings",
		"",
		strings.Join(rows, "\n"),
		"",
		"↑/↓ move · ←/→ adjust · enter toggle/edit · esc close",
	)
	return dialogStyle.Render(body)
}

func (m *settingsModel) row(field int, label, value string) string {
	marker := "  "
	if m.cursor == field {
		marker = "> "
	}
	return fmt.Sprintf("%s%-13s %s", marker, label, value)
}
