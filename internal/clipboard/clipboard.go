// Package clipboard copies text to the system clipboard by shelling out to
// whichever platform tool is installed.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

var ErrToolNotFound = errors.New("no clipboard tool found")

// Tool is a resolved clipboard writer command.
type Tool struct {
	Path string
	Args []string
}

// candidates, in preference order, per platform. Wayland first on linux so
// wl-copy wins over the X11 tools when both are installed.
var candidates = map[string][]Tool{
	"darwin": {
		{Path: "pbcopy"},
	},
	"linux": {
		{Path: "wl-copy"},
		{Path: "xclip", Args: []string{"-selection", "clipboard"}},
		{Path: "xsel", Args: []string{"--clipboard", "--input"}},
	},
}

// Resolve finds the first available clipboard tool for the given platform.
// lookPath is injectable for tests.
func Resolve(goos string, lookPath func(string) (string, error)) (Tool, error) {
	for _, c := range candidates[goos] {
		path, err := lookPath(c.Path)
		if err != nil {
			continue
		}
		return Tool{Path: path, Args: c.Args}, nil
	}
	return Tool{}, ErrToolNotFound
}

// Copy writes text to the clipboard, honoring ctx for the child process.
func Copy(ctx context.Context, text string) error {
	tool, err := Resolve(runtime.GOOS, exec.LookPath)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, tool.Path, tool.Args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		if len(out) > 0 {
			return fmt.Errorf("clipboard command failed: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("clipboard command failed: %w", err)
	}
	return nil
}
