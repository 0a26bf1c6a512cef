package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/helpscan"
	"github.com/mbenning/stagehand/internal/store"
)

func newParamsCmd(a *app) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "params <script>",
		Short: "Detect a script's parameters from its --help output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}

			// Registered scripts are detected through their resolved command;
			// anything else is treated as a raw command line.
			helpTarget := args[0]
			script, err := st.GlobalScript(args[0])
			switch {
			case err == nil:
				helpTarget = script.Command
				if script.ScriptPath != "" {
					helpTarget = strings.ReplaceAll(helpTarget, "{{SCRIPT_FILE}}", script.ScriptPath)
				}
			case !errors.Is(err, store.ErrNotFound):
				return err
			case save:
				return fmt.Errorf("cannot save parameters: %w", err)
			}

			params, err := helpscan.Detect(cmd.Context(), helpTarget)
			if err != nil {
				return err
			}
			if len(params) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no parameters detected")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tFLAGS\tREQUIRED\tDEFAULT\tDESCRIPTION")
			for _, p := range params {
				flags := p.LongFlag
				if p.ShortFlag != "" {
					if flags != "" {
						flags = p.ShortFlag + ", " + flags
					} else {
						flags = p.ShortFlag
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n", p.Name, p.Type, flags, p.Required, p.DefaultValue, p.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if save {
				script.Parameters = params
				if err := st.UpdateGlobalScript(script); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %d parameters to %q\n", len(params), script.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Persist detected parameters on the registered script")
	return cmd
}
