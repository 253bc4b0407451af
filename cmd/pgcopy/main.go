package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/vvka-141/pgcopy/internal/cli"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

func main() {
	// Recover from panics to ensure graceful exits with stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(pgcopy.ExitPanic)
		}
	}()

	if os.Getenv("PGCOPY_TEST_PANIC") == "1" {
		panic("intentional test panic")
	}

	if err := cli.Execute(); err != nil {
		os.Exit(pgcopy.ExitCodeForError(err))
	}
}
