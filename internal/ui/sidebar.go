package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"localchat/internal/store"
)

type sessionsLoadedMsg struct {
	sessions []store.Session
	err      error
}

type renameDoneMsg struct {
	err error
}

type deleteDoneMsg struct {
	err error
}

// sessionChosenMsg is the "session selected" event. The root model forwards
// it to the chat pane; query carries the active search so matches can be
// highlighted in the opened transcript.
type sessionChosenMsg struct {
	session store.Session
	query   string
}

type sessionItem struct {
	s store.Session
}

func (i sessionItem) Title() string {
	return shorten(strings.TrimSpace(i.s.Title), 36)
}

func (i sessionItem) Description() string {
	return "updated " + store.FormatUnix(i.s.UpdatedAt)
}

func (i sessionItem) FilterValue() string {
	return strings.ToLower(i.s.Title)
}

// sidebarModel owns the directory of persisted sessions: the recency-ordered
// listing, message-content search, rename and delete flows, and selection.
type sidebarModel struct {
	store Store
	keys  keyMap

	list   list.Model
	search textinput.Model

	sessions    []store.Session
	searchMode  bool
	searchQuery string
	isLoading   bool
	selectedID  string

	renaming     bool
	renameInput  textinput.Model
	renameTarget store.Session

	width  int
	height int

	status string
	err    error
}

func newSidebarModel(st Store, keys keyMap) sidebarModel {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 32, 20)
	l.Title = "Sessions"
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	ti := textinput.New()
	ti.Placeholder = "Search message content..."
	ti.Prompt = "/ "
	ti.CharLimit = 256

	ri := textinput.New()
	ri.Placeholder = "Session title"
	ri.CharLimit = 256

	return sidebarModel{
		store:       st,
		keys:        keys,
		list:        l,
		search:      ti,
		renameInput: ri,
	}
}

// loadCmd fetches the recency-ordered listing. With a non-empty query the
// listing is filtered to sessions whose messages match; the predicate runs in
// the persistence gateway and only session ids come back.
func (m *sidebarModel) loadCmd() tea.Cmd {
	m.isLoading = true
	st := m.store
	query := strings.TrimSpace(m.searchQuery)
	return func() tea.Msg {
		sessions, err := st.FetchAllSessions(context.Background())
		if err != nil {
			return sessionsLoadedMsg{err: err}
		}
		if query == "" {
			return sessionsLoadedMsg{sessions: sessions}
		}
		ids, err := st.SearchMessages(context.Background(), query)
		if err != nil {
			return sessionsLoadedMsg{err: err}
		}
		matched := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			matched[id] = struct{}{}
		}
		filtered := make([]store.Session, 0, len(ids))
		for _, s := range sessions {
			if _, ok := matched[s.ID]; ok {
				filtered = append(filtered, s)
			}
		}
		return sessionsLoadedMsg{sessions: filtered}
	}
}

func (m *sidebarModel) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case sessionsLoadedMsg:
		m.isLoading = false
		if msg.err != nil {
			m.err = msg.err
			m.status = "Failed to load sessions"
			return nil
		}
		m.err = nil
		m.applySessions(msg.sessions)
		return nil

	case renameDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Rename failed: " + msg.err.Error()
			return nil
		}
		m.status = "Renamed"
		return m.loadCmd()

	case deleteDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Delete failed: " + msg.err.Error()
			return nil
		}
		m.status = "Deleted"
		return m.loadCmd()
	}
	return nil
}

func (m *sidebarModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.renaming {
		return m.handleRenameKey(msg)
	}
	if m.searchMode {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.search.SetValue(m.searchQuery)
		m.search.CursorEnd()
		m.search.Focus()
		return nil
	case key.Matches(msg, m.keys.Select):
		if item, ok := m.list.SelectedItem().(sessionItem); ok {
			m.selectedID = item.s.ID
			query := m.searchQuery
			return func() tea.Msg { return sessionChosenMsg{session: item.s, query: query} }
		}
		return nil
	case key.Matches(msg, m.keys.Rename):
		if item, ok := m.list.SelectedItem().(sessionItem); ok {
			m.openRenameDialog(item.s)
		}
		return nil
	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.list.SelectedItem().(sessionItem); ok {
			return m.deleteCmd(item.s.ID)
		}
		return nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

func (m *sidebarModel) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.searchMode = false
		m.searchQuery = ""
		m.search.SetValue("")
		m.search.Blur()
		return m.loadCmd()
	case "enter":
		m.searchMode = false
		m.search.Blur()
		m.searchQuery = strings.TrimSpace(m.search.Value())
		return m.loadCmd()
	}

	before := strings.TrimSpace(m.search.Value())
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	after := strings.TrimSpace(m.search.Value())
	if after != before {
		m.searchQuery = after
		return tea.Batch(cmd, m.loadCmd())
	}
	return cmd
}

func (m *sidebarModel) openRenameDialog(sess store.Session) {
	m.renaming = true
	m.renameTarget = sess
	m.renameInput.SetValue(sess.Title)
	m.renameInput.CursorEnd()
	m.renameInput.Focus()
}

func (m *sidebarModel) handleRenameKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.renaming = false
		m.renameInput.Blur()
		return nil
	case "enter":
		title := strings.TrimSpace(m.renameInput.Value())
		if title == "" {
			// Blank titles are rejected before any persistence call;
			// the dialog stays open for another attempt.
			m.status = "Title cannot be empty"
			return nil
		}
		m.renaming = false
		m.renameInput.Blur()
		return m.renameCmd(m.renameTarget, title)
	}

	var cmd tea.Cmd
	m.renameInput, cmd = m.renameInput.Update(msg)
	return cmd
}

// renameCmd persists a new title with a bumped timestamp. A session deleted
// in the meantime is a reported error, not a silent re-create.
func (m *sidebarModel) renameCmd(sess store.Session, title string) tea.Cmd {
	st := m.store
	return func() tea.Msg {
		current, err := st.GetSession(context.Background(), sess.ID)
		if errors.Is(err, store.ErrSessionNotFound) {
			return renameDoneMsg{err: fmt.Errorf("session %q no longer exists", sess.Title)}
		}
		if err != nil {
			return renameDoneMsg{err: err}
		}
		current.Title = title
		current.UpdatedAt = time.Now().Unix()
		if err := st.UpdateSession(context.Background(), current); err != nil {
			return renameDoneMsg{err: err}
		}
		return renameDoneMsg{}
	}
}

// deleteCmd removes the session and, through the gateway, all its messages.
// The chat pane is deliberately left alone even when it has this session
// open; its transcript stays usable until the user resets or switches.
func (m *sidebarModel) deleteCmd(sessionID string) tea.Cmd {
	st := m.store
	return func() tea.Msg {
		if err := st.DeleteSession(context.Background(), sessionID); err != nil {
			return deleteDoneMsg{err: err}
		}
		return deleteDoneMsg{}
	}
}

func (m *sidebarModel) applySessions(in []store.Session) {
	m.sessions = in
	items := make([]list.Item, 0, len(in))
	for _, s := range in {
		items = append(items, sessionItem{s: s})
	}
	m.list.SetItems(items)

	if len(in) == 0 {
		return
	}

	selectIdx := 0
	if m.selectedID != "" {
		for idx, s := range in {
			if s.ID == m.selectedID {
				selectIdx = idx
				break
			}
		}
	}
	m.list.Select(selectIdx)
}

func (m *sidebarModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width-2, height-4)
	m.search.Width = width - 6
	m.renameInput.Width = width - 10
}

func (m *sidebarModel) view(focused bool) string {
	var footer string
	switch {
	case m.renaming:
		footer = dialogStyle.Render("Rename:\n" + m.renameInput.View())
	case m.searchMode:
		footer = m.search.View()
	case m.searchQuery != "":
		footer = "search: " + m.searchQuery
	case m.isLoading:
		footer = "loading..."
	}

	body := m.list.View()
	if footer != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, footer)
	}
	return panelStyle(focused).Width(m.width).Height(m.height).Render(body)
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
