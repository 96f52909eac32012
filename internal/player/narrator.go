package player

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	DefaultNarrator = "espeak-ng"

	baseWordsPerMinute = 175
)

// ExecNarrator speaks text through an external text-to-speech command.
type ExecNarrator struct {
	command string
	logger  *log.Logger
}

func NewExecNarrator(command string, logger *log.Logger) *ExecNarrator {
	if command == "" {
		command = DefaultNarrator
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ExecNarrator{command: command, logger: logger}
}

// Speak blocks until the paragraph has been spoken or ctx is cancelled.
func (n *ExecNarrator) Speak(ctx context.Context, text string, rate float64, voice string) error {
	cmd := commandContext(ctx, n.command, narratorArgs(n.command, text, rate, voice)...)
	output, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %s", n.command, err, strings.TrimSpace(string(output)))
	}
	n.logger.Debug("paragraph spoken", "chars", len(text), "rate", rate)
	return nil
}

func narratorArgs(command, text string, rate float64, voice string) []string {
	if rate <= 0 {
		rate = 1
	}
	wpm := strconv.Itoa(int(baseWordsPerMinute * rate))

	var args []string
	switch filepath.Base(command) {
	case "say":
		args = []string{"-r", wpm}
	default:
		args = []string{"-s", wpm}
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return append(args, "--", text)
}
