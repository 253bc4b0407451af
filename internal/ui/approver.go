package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// ForcedApprover approves without prompting. Used with --force and in
// non-interactive sessions where --force was given.
type ForcedApprover struct {
	verbose bool
	output  io.Writer
}

// NewForcedApprover creates a new ForcedApprover writing to stderr.
func NewForcedApprover(verbose bool) pgcopy.Approver {
	return &ForcedApprover{verbose: verbose, output: os.Stderr}
}

// RequestApproval always approves.
func (a *ForcedApprover) RequestApproval(ctx context.Context, updateID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if a.verbose {
		fmt.Fprintf(a.output, "[VERBOSE] --force given, marking %q complete without confirmation\n", updateID)
	}
	return true, nil
}

var _ pgcopy.Approver = (*ForcedApprover)(nil)

// InteractiveApprover asks the user to type the update id to confirm.
type InteractiveApprover struct {
	verbose bool
	input   io.Reader
	output  io.Writer
}

// NewInteractiveApprover creates a new InteractiveApprover on stdin/stderr.
func NewInteractiveApprover(verbose bool) pgcopy.Approver {
	return &InteractiveApprover{verbose: verbose, input: os.Stdin, output: os.Stderr}
}

// RequestApproval prompts for the update id and approves only on an exact match.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, updateID string) (bool, error) {
	fmt.Fprintf(a.output, "\n%s Marking %q complete records the run without loading any rows.\n", SymbolWarning, updateID)
	fmt.Fprintln(a.output, "Future runs with this update id will be skipped.")
	fmt.Fprintf(a.output, "\nTo confirm, type the update id '%s' and press Enter: ", updateID)

	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		reader := bufio.NewReader(a.input)
		input, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || input == "") {
			errChan <- err
			return
		}
		inputChan <- strings.TrimSpace(input)
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errChan:
		return false, fmt.Errorf("failed to read input: %w", err)
	case input := <-inputChan:
		if input == updateID {
			fmt.Fprintf(a.output, "%s Confirmed.\n", SymbolCheck)
			return true, nil
		}
		fmt.Fprintf(a.output, "%s Input '%s' does not match update id '%s'. Operation cancelled.\n", SymbolCross, input, updateID)
		return false, nil
	}
}

var _ pgcopy.Approver = (*InteractiveApprover)(nil)
