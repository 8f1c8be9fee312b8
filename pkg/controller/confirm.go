package controller

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Confirmer is the confirmation capability consulted before a pipeline starts
// mutating. Injecting it keeps the engines testable without a terminal
// attached.
type Confirmer interface {
	// Confirm presents the prompt and reports whether the operator approved.
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// TerminalConfirmer prompts on a terminal and reads a y/N answer.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm writes the prompt and interprets the first line of input. Anything
// but y/yes counts as a decline.
func (t *TerminalConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	if _, err := fmt.Fprintf(t.Out, "%s [y/N]: ", prompt); err != nil {
		return false, err
	}

	answer, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
