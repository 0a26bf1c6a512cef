package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/command"
	"github.com/mbenning/stagehand/internal/engine"
	"github.com/mbenning/stagehand/internal/entity"
	"github.com/mbenning/stagehand/internal/store"
)

func newGroupsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage and run script groups",
	}
	cmd.AddCommand(newGroupsListCmd(a))
	cmd.AddCommand(newGroupsAddCmd(a))
	cmd.AddCommand(newGroupsRmCmd(a))
	cmd.AddCommand(newGroupsRunCmd(a))
	return cmd
}

func newGroupsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List script groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			groups := st.ScriptGroups()
			if len(groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no groups defined")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODE\tSTOP-ON-FAILURE\tSCRIPTS")
			for _, g := range groups {
				fmt.Fprintf(w, "%s\t%s\t%v\t%d\n", g.Name, g.ExecutionMode, g.StopOnFailure, len(g.ScriptIDs))
			}
			return w.Flush()
		},
	}
}

func newGroupsAddCmd(a *app) *cobra.Command {
	var (
		mode          string
		scripts       []string
		continueOnErr bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a script group from registered global scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}

			groupMode := entity.GroupSequential
			if mode == string(entity.GroupParallel) {
				groupMode = entity.GroupParallel
			}
			g := entity.NewScriptGroup(args[0], groupMode)
			g.StopOnFailure = !continueOnErr
			for _, ref := range scripts {
				script, err := st.GlobalScript(ref)
				if err != nil {
					return err
				}
				g.ScriptIDs = append(g.ScriptIDs, script.ID)
			}

			if err := st.AddScriptGroup(g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created group %q with %d scripts\n", g.Name, len(g.ScriptIDs))
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(entity.GroupSequential), "Execution mode (sequential or parallel)")
	cmd.Flags().StringArrayVar(&scripts, "script", nil, "Member script id or name, in order (repeatable)")
	cmd.Flags().BoolVar(&continueOnErr, "continue-on-error", false, "Keep launching after a failed launch (sequential mode)")
	return cmd
}

func newGroupsRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <group>",
		Short: "Delete a script group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			return st.RemoveScriptGroup(args[0])
		},
	}
}

func newGroupsRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <group>",
		Short: "Run every script in a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			group, err := st.ScriptGroup(args[0])
			if err != nil {
				return err
			}
			specs, err := groupSpecs(st, group)
			if err != nil {
				return err
			}

			eng := engine.New(engine.LogSink{Log: a.log}, engine.WithLogger(a.log))
			defer eng.Close()

			mode := engine.GroupSequential
			if group.ExecutionMode == entity.GroupParallel {
				mode = engine.GroupParallel
			}

			failed := 0
			for _, res := range eng.RunGroup(specs, mode, group.StopOnFailure) {
				if res.Err != nil {
					failed++
					a.log.Error().Err(res.Err).Str("script", res.ID).Msg("launch failed")
				}
			}

			// Parallel members are still running when RunGroup returns.
			for {
				running := false
				for _, spec := range specs {
					if eng.IsRunning(spec.Category, spec.ID) {
						running = true
						break
					}
				}
				if !running {
					break
				}
				select {
				case <-cmd.Context().Done():
					eng.Shutdown()
					return cmd.Context().Err()
				case <-time.After(100 * time.Millisecond):
				}
			}

			if failed > 0 {
				return fmt.Errorf("group %q: %d scripts failed to launch", group.Name, failed)
			}
			return nil
		},
	}
}

// groupSpecs resolves each member script into a launch spec using its
// default preset values.
func groupSpecs(st *store.Store, group entity.ScriptGroup) ([]engine.LaunchSpec, error) {
	specs := make([]engine.LaunchSpec, 0, len(group.ScriptIDs))
	for _, id := range group.ScriptIDs {
		script, err := st.GlobalScript(id)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", group.Name, err)
		}

		values := map[string]string{}
		presetName := ""
		if script.DefaultPresetID != "" {
			if p, ok := script.Preset(script.DefaultPresetID); ok {
				presetName = p.Name
				values = command.PresetValues(p, nil)
			}
		}
		program, argv, ok := command.Build(script, values, nil)
		if !ok {
			return nil, fmt.Errorf("script %q resolves to an empty command", script.Name)
		}
		specs = append(specs, engine.LaunchSpec{
			Category: engine.CategoryGlobalScript,
			ID:       script.ID,
			Dir:      script.WorkingDir,
			Program:  program,
			Args:     argv,
			Env:      script.EnvVars,
			Meta:     engine.Meta{Preset: presetName},
		})
	}
	return specs, nil
}
