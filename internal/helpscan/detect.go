package helpscan

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mbenning/stagehand/internal/entity"
)

// ErrNoHelp means the command produced no usable help text.
var ErrNoHelp = errors.New("no help output received")

// Detect runs the command with --help, falling back to -h, and parses
// whatever it prints. Help exit codes are ignored since many programs exit
// non-zero after printing usage.
func Detect(ctx context.Context, command string) ([]entity.ScriptParameter, error) {
	out, err := tryHelpFlag(ctx, command, "--help")
	if err != nil {
		out, err = tryHelpFlag(ctx, command, "-h")
	}
	if err != nil {
		return nil, fmt.Errorf("run help command: %w", err)
	}
	return Parse(out), nil
}

func tryHelpFlag(ctx context.Context, command, flag string) (string, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", errors.New("empty command")
	}
	args := append(append([]string(nil), parts[1:]...), flag)

	cmd := exec.CommandContext(ctx, parts[0], args...)
	configureHelpCommand(cmd)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", err
		}
	}

	// Help lands on stdout or stderr depending on the program; take the
	// larger of the two.
	combined := stdout.String()
	if stderr.Len() > stdout.Len() {
		combined = stderr.String()
	}
	if strings.TrimSpace(combined) == "" {
		return "", ErrNoHelp
	}
	return combined, nil
}
