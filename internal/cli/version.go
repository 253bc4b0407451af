package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printVersionInfo(os.Stdout, os.Stderr, versionShort)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}

// resolvedVersion falls back to module build info for `go install` builds,
// which carry no ldflags.
func resolvedVersion() (string, string) {
	v, c := version, commit
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v, c
	}
	if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	if c == "unknown" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				c = s.Value[:7]
			}
		}
	}
	return v, c
}

// printVersionInfo writes the version line to out for pipeline consumption.
// The description goes to decor.
func printVersionInfo(out, decor io.Writer, short bool) {
	v, c := resolvedVersion()
	if short {
		fmt.Fprintln(out, v)
		return
	}
	fmt.Fprintf(out, "pgcopy %s (%s, %s) %s %s/%s\n", v, c, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintln(decor, "Idempotent PostgreSQL table loader")
}
