package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"localchat/internal/clipboard"
	"localchat/internal/export"
	"localchat/internal/llm"
	"localchat/internal/settings"
	"localchat/internal/store"
)

// transcriptEntry is a persisted message plus its sync status. Unsynced marks
// an entry whose last persistence write failed; the in-memory text is kept and
// the divergence stays visible until a later write of the same id succeeds.
type transcriptEntry struct {
	store.Message
	Unsynced bool
}

type transcriptLoadedMsg struct {
	session store.Session
	msgs    []store.Message
	err     error
}

type handleReadyMsg struct {
	handle llm.Session
	err    error
}

type renderedMsg struct {
	nonce   int
	content string
	matches int
}

type exportDoneMsg struct {
	path string
	err  error
}

type copyDoneMsg struct {
	err error
}

// chatModel owns the conversation state: transcript, input buffer, the
// responding flag, the model-session handle and the selected persisted
// session. Only its update method mutates that state; asynchronous work
// reports back through typed messages.
type chatModel struct {
	store    Store
	client   llm.Client
	exporter *export.Exporter
	settings settings.Settings
	keys     keyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	transcript     []transcriptEntry
	isResponding   bool
	handle         llm.Session
	selected       *store.Session
	highlightQuery string

	turnSeq    int
	cancelTurn context.CancelFunc
	turnEvents <-chan tea.Msg

	renderNonce int
	width       int
	height      int

	status string
	err    error
}

func newChatModel(st Store, client llm.Client, cfg settings.Settings, exporter *export.Exporter, keys keyMap) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(60, 20)
	vp.SetContent("Start a conversation, or pick a session from the sidebar.")

	sp := spinner.New()
	sp.Spinner = spinner.Points

	return chatModel{
		store:    st,
		client:   client,
		exporter: exporter,
		settings: cfg,
		keys:     keys,
		input:    ti,
		viewport: vp,
		spinner:  sp,
	}
}

func (m *chatModel) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case turnHandleMsg:
		if msg.seq != m.turnSeq {
			return nil
		}
		if msg.err != nil {
			m.finishTurn()
			m.alert("Session could not be created: " + msg.err.Error())
			return nil
		}
		m.handle = msg.handle
		return awaitTurn(m.turnEvents)

	case turnSessionSavedMsg:
		if msg.seq != m.turnSeq {
			return nil
		}
		s := msg.session
		m.selected = &s
		m.reportPersistErr("session", msg.persistErr)
		return awaitTurn(m.turnEvents)

	case turnUserMsg:
		if msg.seq != m.turnSeq {
			return nil
		}
		m.transcript = append(m.transcript, transcriptEntry{Message: msg.msg, Unsynced: msg.persistErr != nil})
		m.reportPersistErr("message", msg.persistErr)
		m.syncViewport()
		return awaitTurn(m.turnEvents)

	case turnPlaceholderMsg:
		if msg.seq != m.turnSeq {
			return nil
		}
		m.transcript = append(m.transcript, transcriptEntry{Message: msg.msg, Unsynced: msg.persistErr != nil})
		m.reportPersistErr("message", msg.persistErr)
		m.input.SetValue("")
		m.syncViewport()
		return awaitTurn(m.turnEvents)

	case turnChunkMsg:
		if msg.seq != m.turnSeq {
			return nil
		}
		if n := len(m.transcript); n > 0 {
			m.transcript[n-1].Text = msg.text
			m.transcript[n-1].Unsynced = msg.persistErr != nil
		}
		m.reportPersistErr("message", msg.persistErr)
		m.syncViewport()
		return awaitTurn(m.turnEvents)

	case turnDoneMsg:
		if msg.seq != m.turnSeq {
			return nil
		}
		m.finishTurn()
		if msg.err != nil {
			m.alert("An error occurred: " + msg.err.Error())
			return nil
		}
		return m.renderCmd()

	case transcriptLoadedMsg:
		if msg.err != nil {
			m.alert("Could not load messages: " + msg.err.Error())
			return nil
		}
		entries := make([]transcriptEntry, 0, len(msg.msgs))
		for _, message := range msg.msgs {
			entries = append(entries, transcriptEntry{Message: message})
		}
		m.transcript = entries
		m.syncViewport()
		return tea.Batch(m.renderCmd(), m.primeHandleCmd())

	case handleReadyMsg:
		if m.isResponding {
			// A send already started; the runner owns handle creation now.
			return nil
		}
		if msg.err != nil {
			m.alert("Session could not be created: " + msg.err.Error())
			return nil
		}
		m.handle = msg.handle
		return nil

	case renderedMsg:
		if msg.nonce != m.renderNonce || m.isResponding {
			return nil
		}
		m.viewport.SetContent(msg.content)
		m.viewport.GotoBottom()
		if m.highlightQuery != "" && msg.matches > 0 {
			m.status = fmt.Sprintf("%d matches for %q", msg.matches, m.highlightQuery)
		}
		return nil

	case exportDoneMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}
		return nil

	case copyDoneMsg:
		if msg.err != nil {
			m.status = "Could not copy: " + msg.err.Error()
		} else {
			m.status = "Copied last reply to clipboard"
		}
		return nil

	case spinner.TickMsg:
		if !m.isResponding {
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (m *chatModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Stop):
		if m.isResponding {
			m.stop()
		}
		return nil
	case key.Matches(msg, m.keys.Send):
		return m.submit()
	case key.Matches(msg, m.keys.NewChat):
		m.reset()
		return nil
	case key.Matches(msg, m.keys.Export):
		return m.exportCmd()
	case key.Matches(msg, m.keys.Copy):
		return m.copyCmd()
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit starts the send pipeline. Empty input is a no-op here at the
// presentation boundary; the pipeline itself never sees blank prompts.
// isResponding doubles as the mutual-exclusion flag: only one pipeline can be
// in flight.
func (m *chatModel) submit() tea.Cmd {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" || m.isResponding {
		return nil
	}
	if !m.client.IsModelAvailable() {
		m.alert("The language model is not available. Reason: " + m.client.AvailabilityDescription())
		return nil
	}

	m.isResponding = true
	m.err = nil
	m.status = ""
	m.highlightQuery = ""
	m.turnSeq++

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelTurn = cancel

	events := make(chan tea.Msg, 16)
	r := &turnRunner{
		store:    m.store,
		client:   m.client,
		settings: m.settings,
		handle:   m.handle,
		selected: m.selected,
		prompt:   prompt,
		seq:      m.turnSeq,
		events:   events,
	}
	go r.run(ctx)
	m.turnEvents = events

	return tea.Batch(awaitTurn(events), m.spinner.Tick)
}

// stop requests cancellation of the in-flight turn. Completion is observed
// through turnDoneMsg with cancelled set, so no error alert is raised and the
// partial text accumulated so far stays final.
func (m *chatModel) stop() {
	if m.cancelTurn != nil {
		m.cancelTurn()
	}
}

// selectSession resets the pane onto a persisted session: transcript cleared,
// handle dropped, then messages load asynchronously and a fresh handle is
// requested primed with the prior user turns. query, when non-empty, is the
// search that led here; its matches get marked in the rendered transcript.
func (m *chatModel) selectSession(sess store.Session, query string) tea.Cmd {
	m.interruptTurn()
	m.transcript = nil
	m.handle = nil
	m.isResponding = false
	s := sess
	m.selected = &s
	m.highlightQuery = strings.TrimSpace(query)
	m.status = ""
	m.err = nil
	m.viewport.SetContent("Loading conversation...")

	st := m.store
	return func() tea.Msg {
		msgs, err := st.FetchAllMessages(context.Background(), s.ID)
		return transcriptLoadedMsg{session: s, msgs: msgs, err: err}
	}
}

// reset starts a new chat. No persisted data is touched.
func (m *chatModel) reset() {
	m.interruptTurn()
	m.transcript = nil
	m.handle = nil
	m.selected = nil
	m.isResponding = false
	m.highlightQuery = ""
	m.input.SetValue("")
	m.status = ""
	m.err = nil
	m.viewport.SetContent("Start a conversation, or pick a session from the sidebar.")
}

// applySettings installs a new settings snapshot and drops the handle, so the
// next send recreates one with the current system instructions. Streaming and
// temperature take effect on the next send regardless.
func (m *chatModel) applySettings(cfg settings.Settings) {
	m.settings = cfg
	m.handle = nil
}

func (m *chatModel) primeHandleCmd() tea.Cmd {
	instructions := m.settings.SystemInstructions
	var b strings.Builder
	for _, e := range m.transcript {
		if e.Role == store.RoleUser {
			b.WriteString(e.Text)
			b.WriteString("\n")
		}
	}
	if b.Len() > 0 {
		instructions += "\n\nEarlier user messages in this conversation:\n" + b.String()
	}

	client := m.client
	return func() tea.Msg {
		h, err := client.CreateSession(context.Background(), instructions)
		return handleReadyMsg{handle: h, err: err}
	}
}

func (m *chatModel) exportCmd() tea.Cmd {
	if m.selected == nil || len(m.transcript) == 0 {
		m.status = "Nothing to export yet"
		return nil
	}
	sess := *m.selected
	msgs := make([]store.Message, 0, len(m.transcript))
	for _, e := range m.transcript {
		msgs = append(msgs, e.Message)
	}
	exp := m.exporter
	return func() tea.Msg {
		path, err := exp.Export(sess, msgs)
		return exportDoneMsg{path: path, err: err}
	}
}

func (m *chatModel) copyCmd() tea.Cmd {
	var reply string
	for i := len(m.transcript) - 1; i >= 0; i-- {
		if m.transcript[i].Role == store.RoleAssistant && strings.TrimSpace(m.transcript[i].Text) != "" {
			reply = m.transcript[i].Text
			break
		}
	}
	if reply == "" {
		m.status = "No assistant reply to copy"
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return copyDoneMsg{err: clipboard.Copy(ctx, reply)}
	}
}

func (m *chatModel) finishTurn() {
	m.isResponding = false
	if m.cancelTurn != nil {
		m.cancelTurn()
		m.cancelTurn = nil
	}
}

func (m *chatModel) interruptTurn() {
	if m.cancelTurn != nil {
		m.cancelTurn()
		m.cancelTurn = nil
	}
	m.turnSeq++
}

// alert surfaces a pipeline-level failure and terminates the responding state,
// mirroring the single user-facing error surface of the original flow.
func (m *chatModel) alert(text string) {
	m.isResponding = false
	m.status = text
	m.err = nil
}

func (m *chatModel) reportPersistErr(kind string, err error) {
	if err == nil {
		return
	}
	// Writes are not rolled back or retried; the transcript keeps the
	// in-memory value and the entry is flagged unsynced.
	m.status = "Could not save " + kind + ": " + err.Error()
}

func (m *chatModel) syncViewport() {
	m.renderNonce++
	m.viewport.SetContent(m.plainTranscript())
	m.viewport.GotoBottom()
}

func (m *chatModel) plainTranscript() string {
	if len(m.transcript) == 0 {
		return "Start a conversation, or pick a session from the sidebar."
	}
	var b strings.Builder
	for _, e := range m.transcript {
		label := assistantLabelStyle.Render("Assistant")
		if e.Role == store.RoleUser {
			label = userLabelStyle.Render("You")
		}
		b.WriteString(label)
		if e.Unsynced {
			b.WriteString(" " + unsyncedMarkStyle.Render("[unsaved]"))
		}
		b.WriteString("\n")
		if e.Text == "" && e.Role == store.RoleAssistant && m.isResponding {
			b.WriteString(m.spinner.View())
		} else {
			b.WriteString(e.Text)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// renderCmd re-renders the finished transcript as markdown off the Update
// loop. The nonce discards stale renders after rapid session switches or
// resizes.
func (m *chatModel) renderCmd() tea.Cmd {
	if len(m.transcript) == 0 {
		return nil
	}
	m.renderNonce++
	nonce := m.renderNonce
	msgs := make([]store.Message, 0, len(m.transcript))
	for _, e := range m.transcript {
		msgs = append(msgs, e.Message)
	}
	wrap := m.viewport.Width - 2
	if wrap < 20 {
		wrap = 20
	}
	return renderTranscriptCmd(msgs, wrap, nonce, m.highlightQuery)
}

func (m *chatModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 2
	m.viewport.Height = height - 4
	m.input.Width = width - 6
}

func (m *chatModel) view(focused bool) string {
	inputLine := m.input.View()
	if m.isResponding {
		inputLine = m.spinner.View() + " responding... (esc to stop)"
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		strings.Repeat("─", max(m.viewport.Width, 1)),
		inputLine,
	)
	return panelStyle(focused).Width(m.width).Height(m.height).Render(body)
}
