package ui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"localchat/internal/export"
	"localchat/internal/llm"
	"localchat/internal/settings"
)

type pane int

const (
	paneSidebar pane = iota
	paneChat
)

type settingsSavedMsg struct {
	err error
}

// Model is the root of the interface: a sessions pane, a chat pane, and a
// modal settings overlay. It routes input by focus and forwards the
// cross-component events the panes raise for each other.
type Model struct {
	keys keyMap
	help help.Model

	sidebar      sidebarModel
	chat         chatModel
	settingsView settingsModel

	settingsPath string
	showSettings bool
	focus        pane

	width  int
	height int
}

func New(st Store, client llm.Client, cfg settings.Settings, settingsPath string, exporter *export.Exporter) Model {
	keys := defaultKeys()
	return Model{
		keys:         keys,
		help:         help.New(),
		sidebar:      newSidebarModel(st, keys),
		chat:         newChatModel(st, client, cfg, exporter, keys),
		settingsView: newSettingsModel(),
		settingsPath: settingsPath,
		focus:        paneChat,
	}
}

func (m Model) Init() tea.Cmd {
	return m.sidebar.loadCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		sidebarWidth, chatWidth := paneWidths(msg.Width)
		contentHeight := msg.Height - 2
		m.sidebar.resize(sidebarWidth, contentHeight)
		m.chat.resize(chatWidth, contentHeight)
		m.settingsView.resize(msg.Width, msg.Height)
		return m, m.chat.renderCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionChosenMsg:
		m.focus = paneChat
		return m, m.chat.selectSession(msg.session, msg.query)

	case settingsDismissedMsg:
		m.showSettings = false
		m.chat.applySettings(msg.settings)
		path := m.settingsPath
		snapshot := msg.settings
		return m, func() tea.Msg {
			return settingsSavedMsg{err: settings.Save(path, snapshot)}
		}

	case settingsSavedMsg:
		if msg.err != nil {
			m.chat.status = "Could not save settings: " + msg.err.Error()
		}
		return m, nil

	case turnSessionSavedMsg:
		// The chat pane consumes the event; the sidebar refreshes so a
		// session synthesized mid-turn appears in the listing.
		cmd := m.chat.update(msg)
		return m, tea.Batch(cmd, m.sidebar.loadCmd())
	}

	if cmd := m.sidebar.update(msg); cmd != nil {
		return m, cmd
	}
	return m, m.chat.update(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showSettings {
		return m, m.settingsView.handleKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Settings):
		m.showSettings = true
		m.settingsView.open(m.chat.settings)
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		if m.typingExclusive() {
			break
		}
		if m.focus == paneSidebar {
			m.focus = paneChat
		} else {
			m.focus = paneSidebar
		}
		return m, nil
	case key.Matches(msg, m.keys.FocusLeft):
		m.focus = paneSidebar
		return m, nil
	case key.Matches(msg, m.keys.FocusRight):
		m.focus = paneChat
		return m, nil
	}

	if m.focus == paneSidebar {
		return m, m.sidebar.handleKey(msg)
	}
	return m, m.chat.handleKey(msg)
}

// typingExclusive reports whether a text field currently owns the keyboard,
// in which case tab inserts into it rather than switching panes.
func (m Model) typingExclusive() bool {
	if m.focus == paneSidebar {
		return m.sidebar.searchMode || m.sidebar.renaming
	}
	return false
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.showSettings {
		overlay := m.settingsView.view()
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, overlay)
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebar.view(m.focus == paneSidebar),
		m.chat.view(m.focus == paneChat),
	)

	status := m.statusLine()
	return lipgloss.JoinVertical(lipgloss.Left, panes, status, m.help.View(m.keys))
}

func (m Model) statusLine() string {
	switch {
	case m.chat.status != "":
		return statusStyle.Render(m.chat.status)
	case m.sidebar.status != "":
		if m.sidebar.err != nil {
			return errorStatusStyle.Render(m.sidebar.status)
		}
		return statusStyle.Render(m.sidebar.status)
	}
	return ""
}

// paneWidths splits the terminal between the sessions pane and the chat
// pane. The sidebar takes roughly a third, bounded so neither pane collapses
// on narrow terminals.
func paneWidths(total int) (sidebar, chat int) {
	sidebar = total / 3
	if sidebar < 24 {
		sidebar = 24
	}
	if sidebar > 44 {
		sidebar = 44
	}
	if sidebar > total-20 {
		sidebar = total / 2
	}
	chat = total - sidebar - 4
	if chat < 1 {
		chat = 1
	}
	return sidebar, chat
}
