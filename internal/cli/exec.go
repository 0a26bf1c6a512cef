package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/engine"
)

func newExecCmd(a *app) *cobra.Command {
	var (
		id  string
		dir string
	)

	cmd := &cobra.Command{
		Use:   "exec -- <command> [args...]",
		Short: "Supervise an ad-hoc command and wait for it to finish",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = filepath.Base(args[0])
			}

			waiter := newExitWaiter()
			eng := engine.New(engine.MultiSink{engine.LogSink{Log: a.log}, waiter}, engine.WithLogger(a.log))
			defer eng.Close()

			pid, err := eng.Launch(engine.LaunchSpec{
				Category: engine.CategoryProjectScript,
				ID:       id,
				Dir:      dir,
				Program:  args[0],
				Args:     args[1:],
			})
			if err != nil {
				return err
			}
			a.log.Debug().Int("pid", pid).Str("id", id).Msg("command launched")

			select {
			case info := <-waiter.ch:
				if !info.success {
					if info.code != nil {
						return fmt.Errorf("%s exited with code %d", id, *info.code)
					}
					return fmt.Errorf("%s was terminated", id)
				}
				return nil
			case <-cmd.Context().Done():
				eng.Shutdown()
				return cmd.Context().Err()
			}
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Identifier for the supervised command (default: program name)")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory")
	return cmd
}
