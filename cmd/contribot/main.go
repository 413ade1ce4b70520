// Command contribot discovers beginner-friendly issues from curated lists,
// keeps them in sync and annotates them for newcomers
package main

import (
	"errors"
	"fmt"
	"os"

	"contribot/internal/core/version"

	"github.com/spf13/cobra"
)

// Exit statuses of a scrape
const (
	exitOK      = 0
	exitFailed  = 1
	exitPaused  = 2
	exitAborted = 3
)

// exitError carries a status code out of a RunE
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type globals struct {
	envFiles    []string
	sourcesFile string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "contribot",
		Short:         "Find, track and annotate good first issues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", []string{".env"}, "dotenv files to load; existing env wins")
	cmd.PersistentFlags().StringVar(&g.sourcesFile, "sources", "", "sources.yaml path (default: CONTRIBOT_SOURCES_FILE or the built-in list)")

	cmd.AddCommand(newScrapeCmd(g))
	cmd.AddCommand(newAnnotateCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newScheduleCmd(g))
	cmd.AddCommand(newMigrateCmd(g))
	cmd.AddCommand(newSourcesCmd(g))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			bi := version.Info()
			fmt.Fprintf(cmd.OutOrStdout(), "contribot %s (commit: %s, built: %s)\n", bi.Version, bi.Commit, bi.Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "contribot:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "contribot:", err)
	return exitFailed
}

func main() {
	os.Exit(execute(newRootCmd()))
}
