package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mbenning/stagehand/internal/discover"
	"github.com/mbenning/stagehand/internal/entity"
)

func newScanCmd(a *app) *cobra.Command {
	var register bool

	cmd := &cobra.Command{
		Use:   "scan [folder]",
		Short: "Discover script files in the configured scripts folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			settings := st.Settings()

			folder := settings.ScriptsFolder
			if len(args) == 1 {
				folder = args[0]
			}
			if folder == "" {
				return fmt.Errorf("no scripts folder configured; pass one or set it in settings")
			}

			found := discover.Scan(folder, settings.ScanExtensions, settings.IgnoredPatterns)
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no scripts found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Fprintln(w, "NAME\tEXT\tDESCRIPTION\tPATH")
			}
			registered := 0
			for _, s := range found {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.Extension, s.Description, s.Path)
				if !register {
					continue
				}
				if _, exists := st.GlobalScriptByPath(s.Path); exists {
					continue
				}
				g := entity.NewGlobalScript(s.Name, scriptCommand(s.Extension), "")
				g.ScriptPath = s.Path
				g.Description = s.Description
				g.AutoDiscovered = true
				if err := st.AddGlobalScript(g); err != nil {
					return err
				}
				registered++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if register {
				fmt.Fprintf(cmd.OutOrStdout(), "registered %d new scripts\n", registered)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&register, "register", false, "Register newly discovered scripts as global scripts")
	return cmd
}

// scriptCommand picks an interpreter invocation for a file extension. The
// {{SCRIPT_FILE}} placeholder is resolved at launch time.
func scriptCommand(ext string) string {
	switch strings.ToLower(ext) {
	case ".sh", ".bash":
		return "bash {{SCRIPT_FILE}}"
	case ".zsh":
		return "zsh {{SCRIPT_FILE}}"
	case ".py":
		return "python3 {{SCRIPT_FILE}}"
	case ".js":
		return "node {{SCRIPT_FILE}}"
	case ".ts":
		return "npx tsx {{SCRIPT_FILE}}"
	case ".rb":
		return "ruby {{SCRIPT_FILE}}"
	case ".pl":
		return "perl {{SCRIPT_FILE}}"
	case ".ps1":
		return "powershell -ExecutionPolicy Bypass -File {{SCRIPT_FILE}}"
	case ".bat", ".cmd":
		return "{{SCRIPT_FILE}}"
	}
	return "{{SCRIPT_FILE}}"
}
