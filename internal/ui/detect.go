package ui

import (
	"os"

	"golang.org/x/term"
)

// Mode represents the interaction mode for pgcopy.
type Mode int

const (
	// ModeNonInteractive is used for schedulers, CI/CD pipelines and piped input.
	ModeNonInteractive Mode = iota
	// ModeInteractive is used when a human is at the terminal.
	ModeInteractive
)

// DetectMode determines whether pgcopy may prompt.
//
// Returns ModeNonInteractive if:
//   - PGCOPY_NON_INTERACTIVE=1 is set
//   - CI is set (common CI/CD convention)
//   - stdin or stderr is not a terminal
//
// stdin matters because `pgcopy load -` reads rows from it.
func DetectMode() Mode {
	if automated() {
		return ModeNonInteractive
	}
	if !isTerminal(os.Stdin) || !isTerminal(os.Stderr) {
		return ModeNonInteractive
	}
	return ModeInteractive
}

// IsInteractive reports whether a confirmation prompt can be shown.
func IsInteractive() bool {
	return DetectMode() == ModeInteractive
}

// Styled reports whether output written to f should use colors and borders.
// It does not depend on stdin, so piped row input still gets a styled summary.
func Styled(f *os.File) bool {
	if automated() || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(f)
}

func automated() bool {
	return os.Getenv("PGCOPY_NON_INTERACTIVE") == "1" || os.Getenv("CI") != ""
}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
