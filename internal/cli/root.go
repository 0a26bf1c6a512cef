// Package cli implements the stagehand command tree.
package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/logging"
	"github.com/mbenning/stagehand/internal/store"
)

// app carries state shared by every command: flags, the root logger and the
// lazily opened store.
type app struct {
	dataDir  string
	logLevel string
	log      zerolog.Logger

	storeOnce sync.Once
	st        *store.Store
	storeErr  error
}

// store opens the data directory on first use.
func (a *app) store() (*store.Store, error) {
	a.storeOnce.Do(func() {
		a.st, a.storeErr = store.Open(a.dataDir)
	})
	return a.st, a.storeErr
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".stagehand"
	}
	return filepath.Join(base, "stagehand")
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "stagehand",
		Short: "Process supervisor for project services and scripts",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = logging.Init(a.logLevel)
		},
	}

	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", defaultDataDir(), "Directory holding projects, scripts and settings")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(newUpCmd(a))
	root.AddCommand(newProjectsCmd(a))
	root.AddCommand(newSvcCmd(a))
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newExecCmd(a))
	root.AddCommand(newScanCmd(a))
	root.AddCommand(newParamsCmd(a))
	root.AddCommand(newScriptsCmd(a))
	root.AddCommand(newGroupsCmd(a))
	root.AddCommand(newTuiCmd(a))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint. SIGINT and SIGTERM cancel the command
// context; commands that supervise processes shut their engine down before
// returning.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
