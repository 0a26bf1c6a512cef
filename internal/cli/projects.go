package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/engine"
	"github.com/mbenning/stagehand/internal/entity"
	"github.com/mbenning/stagehand/internal/store"
)

func newProjectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage projects and run their scripts",
	}
	cmd.AddCommand(newProjectsListCmd(a))
	cmd.AddCommand(newProjectsAddCmd(a))
	cmd.AddCommand(newProjectsRmCmd(a))
	cmd.AddCommand(newProjectsAddScriptCmd(a))
	cmd.AddCommand(newProjectsRunCmd(a))
	return cmd
}

// findProject resolves a project reference by id first, then by name.
func findProject(st *store.Store, ref string) (entity.Project, error) {
	p, err := st.Project(ref)
	if err == nil {
		return p, nil
	}
	return st.ProjectByName(ref)
}

func newProjectsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			projects := st.Projects()
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects defined")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROOT\tSERVICES\tSCRIPTS")
			for _, p := range projects {
				id := p.ID
				if len(id) > 8 {
					id = id[:8]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", id, p.Name, p.RootPath, len(p.Services), len(p.Scripts))
			}
			return w.Flush()
		},
	}
}

func newProjectsAddCmd(a *app) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name> [root]",
		Short: "Create a project rooted at a directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}

			root := ""
			if len(args) == 2 {
				root = args[1]
			} else if root, err = os.Getwd(); err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}

			p := entity.NewProject(args[0], root)
			p.Description = description
			if err := st.AddProject(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created project %q (%s)\n", p.Name, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Project description")
	return cmd
}

func newProjectsRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <project>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			p, err := findProject(st, args[0])
			if err != nil {
				return err
			}
			return st.RemoveProject(p.ID)
		},
	}
}

func newProjectsAddScriptCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "add-script <project> <name> <command>",
		Short: "Attach a one-shot script to a project",
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
			sc := entity.NewScript(args[1], dir, args[2])
			sc.Order = len(p.Scripts)
			p.Scripts = append(p.Scripts, sc)
			if err := st.UpdateProject(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added script %q to project %q\n", sc.Name, p.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Working directory (default: project root)")
	return cmd
}

func newProjectsRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Run a project script and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			spec, err := projectScriptSpec(st, args[0])
			if err != nil {
				return err
			}

			waiter := newExitWaiter()
			eng := engine.New(engine.MultiSink{engine.LogSink{Log: a.log}, waiter}, engine.WithLogger(a.log))
			defer eng.Close()

			if _, err := eng.Launch(spec); err != nil {
				return err
			}

			select {
			case info := <-waiter.ch:
				if !info.success {
					if info.code != nil {
						return fmt.Errorf("script %q exited with code %d", spec.ID, *info.code)
					}
					return fmt.Errorf("script %q was terminated", spec.ID)
				}
				return nil
			case <-cmd.Context().Done():
				eng.Shutdown()
				return cmd.Context().Err()
			}
		},
	}
}

// projectScriptSpec resolves a project script by id or name into a launch
// spec, defaulting its working directory to the project root.
func projectScriptSpec(st *store.Store, ref string) (engine.LaunchSpec, error) {
	proj, sc, err := st.FindScript(ref)
	if err != nil {
		return engine.LaunchSpec{}, err
	}
	dir := sc.WorkingDir
	if dir == "" {
		dir = proj.RootPath
	}
	return engine.LaunchSpec{
		Category: engine.CategoryProjectScript,
		ID:       sc.Name,
		Dir:      dir,
		Shell:    sc.Command,
	}, nil
}
