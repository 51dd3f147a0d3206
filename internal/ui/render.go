package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"localchat/internal/config"
	"localchat/internal/export"
	"localchat/internal/highlight"
	"localchat/internal/store"
)

// renderTranscriptCmd renders the transcript as markdown off the Update loop.
// A non-empty query marks its matches in the output after rendering, so the
// marks survive glamour's own styling.
func renderTranscriptCmd(msgs []store.Message, wrap, nonce int, query string) tea.Cmd {
	return func() tea.Msg {
		md := export.BuildTranscriptMarkdown(msgs)
		if strings.TrimSpace(md) == "" {
			return renderedMsg{nonce: nonce, content: ""}
		}

		rendered := md
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			if out, renderErr := r.Render(md); renderErr == nil {
				rendered = out
			}
		}

		matches := 0
		if query != "" {
			res := highlight.Apply(rendered, query, func(s string) string {
				return matchStyle.Render(s)
			})
			rendered = res.Text
			matches = res.Count
		}
		return renderedMsg{nonce: nonce, content: rendered, matches: matches}
	}
}
