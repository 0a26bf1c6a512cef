package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/engine"
	"github.com/mbenning/stagehand/internal/entity"
	"github.com/mbenning/stagehand/internal/store"
)

func newSvcCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "svc",
		Short: "Manage and run project services",
	}
	cmd.AddCommand(newSvcListCmd(a))
	cmd.AddCommand(newSvcAddCmd(a))
	cmd.AddCommand(newSvcRunCmd(a))
	return cmd
}

func newSvcListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [project]",
		Short: "List services, optionally limited to one project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}

			projects := st.Projects()
			if len(args) == 1 {
				p, err := findProject(st, args[0])
				if err != nil {
					return err
				}
				projects = []entity.Project{p}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROJECT\tNAME\tMODES\tPORT\tCOMMAND")
			rows := 0
			for _, p := range projects {
				for _, svc := range p.Services {
					port := ""
					if svc.Port > 0 {
						port = fmt.Sprintf("%d", svc.Port)
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.Name, svc.Name, len(svc.Modes), port, svc.Command)
					rows++
				}
			}
			if rows == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no services defined")
				return nil
			}
			return w.Flush()
		},
	}
}

func newSvcAddCmd(a *app) *cobra.Command {
	var (
		dir  string
		port int
	)

	cmd := &cobra.Command{
		Use:   "add <project> <name> <command>",
		Short: "Attach a service to a project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			p, err := findProject(st, args[0])
			if err != nil {
				return err
			}

			if dir == "" {
				dir = p.RootPath
			}
			svc := entity.NewService(args[1], dir, args[2])
			svc.Port = port
			svc.Order = len(p.Services)
			p.Services = append(p.Services, svc)
			if err := st.UpdateProject(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added service %q to project %q\n", svc.Name, p.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Working directory (default: project root)")
	cmd.Flags().IntVar(&port, "port", 0, "Port the service listens on")
	return cmd
}

func newSvcRunCmd(a *app) *cobra.Command {
	var (
		mode   string
		preset string
	)

	cmd := &cobra.Command{
		Use:   "run <service>",
		Short: "Run a project service until it exits or is interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			spec, err := serviceSpec(st, args[0], mode, preset)
			if err != nil {
				return err
			}

			waiter := newExitWaiter()
			eng := engine.New(engine.MultiSink{engine.LogSink{Log: a.log}, waiter}, engine.WithLogger(a.log))
			defer eng.Close()

			pid, err := eng.Launch(spec)
			if err != nil {
				return err
			}
			a.log.Info().Int("pid", pid).Str("service", spec.ID).Msg("service running, press ctrl-c to stop")

			select {
			case info := <-waiter.ch:
				if !info.success {
					if info.code != nil {
						return fmt.Errorf("service %q exited with code %d", spec.ID, *info.code)
					}
					return fmt.Errorf("service %q was terminated", spec.ID)
				}
				return nil
			case <-cmd.Context().Done():
				eng.Shutdown()
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Run mode (default: the service's default mode)")
	cmd.Flags().StringVar(&preset, "preset", "", "Arg preset appended to the command (default: the service's default preset)")
	return cmd
}

// serviceSpec resolves a service by id or name into a launch spec. The mode
// selects a command override, the arg preset and extra args are appended, and
// the working directory defaults to the project root.
func serviceSpec(st *store.Store, ref, mode, preset string) (engine.LaunchSpec, error) {
	proj, svc, err := st.FindService(ref)
	if err != nil {
		return engine.LaunchSpec{}, err
	}

	if mode == "" {
		mode = svc.DefaultMode
	}
	cmdline := svc.CommandForMode(mode)

	if preset == "" {
		preset = svc.DefaultArgPreset
	}
	if preset != "" {
		presetArgs, ok := svc.ArgPresets[preset]
		if !ok {
			return engine.LaunchSpec{}, fmt.Errorf("service %q has no arg preset %q", svc.Name, preset)
		}
		cmdline += " " + presetArgs
	}
	if svc.ExtraArgs != "" {
		cmdline += " " + svc.ExtraArgs
	}

	dir := svc.WorkingDir
	if dir == "" {
		dir = proj.RootPath
	}
	return engine.LaunchSpec{
		Category: engine.CategoryService,
		ID:       svc.Name,
		Dir:      dir,
		Shell:    cmdline,
		Env:      svc.EnvVars,
		Meta:     engine.Meta{Mode: mode, Preset: preset},
	}, nil
}
