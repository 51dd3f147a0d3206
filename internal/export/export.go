package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"localchat/internal/store"
)

type Exporter struct {
	overrideDir string
	cwd         string
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd}, nil
}

// Export writes the session transcript as a markdown file and returns the
// path it wrote.
func (e *Exporter) Export(session store.Session, messages []store.Message) (string, error) {
	path := e.outputPath(session)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	body := BuildTranscriptMarkdown(messages)
	md := BuildSessionMarkdown(session, body, time.Now().UTC())
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// BuildTranscriptMarkdown renders messages as alternating headed sections.
// Empty messages (an assistant placeholder that never received text) are
// skipped.
func BuildTranscriptMarkdown(messages []store.Message) string {
	var b strings.Builder
	for _, m := range messages {
		content := strings.TrimSpace(m.Text)
		if content == "" {
			continue
		}

		switch m.Role {
		case store.RoleUser:
			b.WriteString("## You\n\n")
		case store.RoleAssistant:
			b.WriteString("## Assistant\n\n")
		default:
			b.WriteString("## " + m.Role + "\n\n")
		}
		b.WriteString(content + "\n\n")
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return ""
	}
	return out + "\n"
}

func BuildSessionMarkdown(session store.Session, transcript string, now time.Time) string {
	var b strings.Builder
	b.WriteString("# " + safeValue(session.Title) + "\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString("session: " + session.ID + "\n")
	b.WriteString("created: " + store.FormatUnix(session.CreatedAt) + "\n")
	b.WriteString("updated: " + store.FormatUnix(session.UpdatedAt) + "\n")
	b.WriteString("```\n\n")
	b.WriteString(transcript)
	if !strings.HasSuffix(transcript, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Exporter) outputPath(session store.Session) string {
	dir := e.overrideDir
	if dir == "" {
		dir = filepath.Join(e.cwd, "exports")
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cwd, dir)
	}
	return filepath.Join(dir, safeFileName(session.Title)+"-"+safeFileName(session.ID)+".md")
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "session"
	}
	if len(s) > 48 {
		s = s[:48]
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(s)
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Untitled session"
	}
	return s
}
