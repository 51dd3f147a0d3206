package ui

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"localchat/internal/settings"
	"localchat/internal/store"
)

func newTestApp(t *testing.T, st Store, client *fakeClient) Model {
	t.Helper()
	m := New(st, client, testSettings(), filepath.Join(t.TempDir(), "settings.yaml"), nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

func TestInitLoadsSessions(t *testing.T) {
	m := newTestApp(t, newFakeStore(), &fakeClient{})
	if m.Init() == nil {
		t.Fatalf("expected initial session load command")
	}
}

func TestTabTogglesFocus(t *testing.T) {
	m := newTestApp(t, newFakeStore(), &fakeClient{})
	if m.focus != paneChat {
		t.Fatalf("expected chat focused initially")
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.focus != paneSidebar {
		t.Fatalf("expected sidebar focused after tab")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.focus != paneChat {
		t.Fatalf("expected chat focused after second tab")
	}
}

func TestTabInsertsWhileRenaming(t *testing.T) {
	m := newTestApp(t, newFakeStore(), &fakeClient{})
	m.focus = paneSidebar
	m.sidebar.openRenameDialog(store.Session{ID: "s1", Title: "x"})

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.focus != paneSidebar {
		t.Fatalf("tab must not switch panes while a dialog owns the keyboard")
	}
}

func TestSessionChosenRoutesToChat(t *testing.T) {
	st := newFakeStore()
	st.messages["s1"] = []store.Message{{ID: "m1", SessionID: "s1", Role: store.RoleUser, Text: "hi"}}
	m := newTestApp(t, st, &fakeClient{})
	m.focus = paneSidebar

	updated, cmd := m.Update(sessionChosenMsg{session: store.Session{ID: "s1", Title: "t"}})
	m = updated.(Model)
	if m.focus != paneChat {
		t.Fatalf("expected focus to move to chat")
	}
	if cmd == nil {
		t.Fatalf("expected transcript load command")
	}
	if m.chat.selected == nil || m.chat.selected.ID != "s1" {
		t.Fatalf("expected chat pane bound to chosen session")
	}
}

func TestSettingsDismissalPersistsAndApplies(t *testing.T) {
	m := newTestApp(t, newFakeStore(), &fakeClient{})

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	m = updated.(Model)
	if !m.showSettings {
		t.Fatalf("expected settings overlay open")
	}

	edited := testSettings()
	edited.UseStreaming = false
	edited.SystemInstructions = "Be brief."
	updated, cmd := m.Update(settingsDismissedMsg{settings: edited})
	m = updated.(Model)

	if m.showSettings {
		t.Fatalf("expected overlay closed")
	}
	if m.chat.settings.SystemInstructions != "Be brief." || m.chat.settings.UseStreaming {
		t.Fatalf("expected chat settings applied, got %+v", m.chat.settings)
	}
	if m.chat.handle != nil {
		t.Fatalf("expected handle invalidated by settings change")
	}

	if cmd == nil {
		t.Fatalf("expected save command")
	}
	saved := cmd().(settingsSavedMsg)
	if saved.err != nil {
		t.Fatalf("save settings: %v", saved.err)
	}
	if _, err := os.Stat(m.settingsPath); err != nil {
		t.Fatalf("expected settings file written: %v", err)
	}
	got, err := settings.Load(m.settingsPath)
	if err != nil {
		t.Fatalf("reload settings: %v", err)
	}
	if got.SystemInstructions != "Be brief." {
		t.Fatalf("unexpected persisted settings: %+v", got)
	}
}

func TestTurnSessionSavedRefreshesSidebar(t *testing.T) {
	st := newFakeStore()
	m := newTestApp(t, st, &fakeClient{})
	st.sessions["s1"] = store.Session{ID: "s1", UpdatedAt: 5, Title: "mid-turn"}

	m.chat.turnSeq = 7
	_, cmd := m.Update(turnSessionSavedMsg{seq: 7, session: st.sessions["s1"]})
	if cmd == nil {
		t.Fatalf("expected sidebar refresh alongside chat handling")
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestApp(t, newFakeStore(), &fakeClient{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
}
