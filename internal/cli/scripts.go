package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/entity"
	"github.com/mbenning/stagehand/internal/helpscan"
)

func newScriptsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "Manage registered global scripts",
	}
	cmd.AddCommand(newScriptsListCmd(a))
	cmd.AddCommand(newScriptsAddCmd(a))
	cmd.AddCommand(newScriptsRmCmd(a))
	cmd.AddCommand(newScriptsExportCmd(a))
	cmd.AddCommand(newScriptsImportCmd(a))
	return cmd
}

func newScriptsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered global scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			scripts := st.GlobalScripts()
			if len(scripts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no scripts registered")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTAGS\tPARAMS\tCOMMAND")
			for _, g := range scripts {
				id := g.ID
				if len(id) > 8 {
					id = id[:8]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", id, g.Name, strings.Join(g.Tags, ","), len(g.Parameters), g.Command)
			}
			return w.Flush()
		},
	}
}

func newScriptsAddCmd(a *app) *cobra.Command {
	var (
		dir         string
		path        string
		description string
		tags        []string
		detect      bool
	)

	cmd := &cobra.Command{
		Use:   "add <name> <command>",
		Short: "Register a global script",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}

			g := entity.NewGlobalScript(args[0], args[1], dir)
			g.ScriptPath = path
			g.Description = description
			g.Tags = tags

			if detect {
				target := g.Command
				if g.ScriptPath != "" {
					target = strings.ReplaceAll(target, "{{SCRIPT_FILE}}", g.ScriptPath)
				}
				params, err := helpscan.Detect(cmd.Context(), target)
				if err != nil {
					a.log.Warn().Err(err).Msg("parameter detection failed")
				} else {
					g.Parameters = params
				}
			}

			if err := st.AddGlobalScript(g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %q (%s)\n", g.Name, g.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Working directory for the script")
	cmd.Flags().StringVar(&path, "path", "", "Script file substituted for {{SCRIPT_FILE}}")
	cmd.Flags().StringVar(&description, "description", "", "Script description")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().BoolVar(&detect, "detect", false, "Detect parameters from --help output")
	return cmd
}

func newScriptsRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <script>",
		Short: "Remove a registered global script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			return st.RemoveGlobalScript(args[0])
		},
	}
}

func newScriptsExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export global scripts and groups to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			if err := st.ExportGlobals(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d scripts to %s\n", len(st.GlobalScripts()), args[0])
			return nil
		},
	}
}

func newScriptsImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import global scripts and groups from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			n, err := st.ImportGlobals(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d scripts\n", n)
			return nil
		},
	}
}
