package cli

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// sslModes contains valid PostgreSQL SSL modes for shell completion.
var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// authMethods contains the --auth values for shell completion.
var authMethods = []string{"standard", "aws", "google", "azure"}

func completePrefix(values []string, toComplete string) []string {
	var matches []string
	for _, v := range values {
		if strings.HasPrefix(v, toComplete) {
			matches = append(matches, v)
		}
	}
	return matches
}

// completeSSLModes provides shell completion for SSL mode flag values.
func completeSSLModes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completePrefix(sslModes, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeAuthMethods provides shell completion for --auth.
func completeAuthMethods(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completePrefix(authMethods, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeTables offers the tables defined in pgcopy.yaml.
func completeTables(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	projectCfg, err := loadProjectConfig(getConfigDir(cmd))
	if err != nil || projectCfg == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var tables []string
	for name := range projectCfg.Tables {
		tables = append(tables, name)
	}
	slices.Sort(tables)
	return completePrefix(tables, toComplete), cobra.ShellCompDirectiveNoFileComp
}
