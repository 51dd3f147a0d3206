package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"localchat/internal/config"
	"localchat/internal/export"
	"localchat/internal/llm"
	"localchat/internal/settings"
	"localchat/internal/store"
	"localchat/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	prefs, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	exporter, err := export.New(cfg.ExportDir)
	if err != nil {
		return err
	}

	client := llm.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
	model := ui.New(st, client, prefs, cfg.SettingsPath, exporter)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run interface: %w", err)
	}
	return nil
}
