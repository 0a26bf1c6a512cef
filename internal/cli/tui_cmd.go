package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/engine"
	"github.com/mbenning/stagehand/internal/manifest"
	"github.com/mbenning/stagehand/internal/tui"
)

func newTuiCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Monitor supervised processes interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			sink := engine.NewChannelSink(256)
			// The terminal belongs to tview; engine diagnostics are dropped.
			eng := engine.New(sink, engine.WithLogger(zerolog.Nop()))
			defer eng.Close()

			if file != "" {
				if err := launchManifest(eng, file); err != nil {
					return err
				}
			}

			ui := tui.New(eng, sink)
			return ui.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Manifest whose services are launched before the monitor opens")
	return cmd
}

// launchManifest runs a manifest's setup scripts and then launches its
// services on the given engine. Script failures surface only when the group
// is sequential with stopOnFailure; the monitor shows the rest.
func launchManifest(eng *engine.Engine, file string) error {
	m, err := manifest.Load(file)
	if err != nil {
		return err
	}
	if scripts, mode, stopOnFailure := m.ScriptSpecs(); len(scripts) > 0 {
		for _, res := range eng.RunGroup(scripts, mode, stopOnFailure) {
			if res.Err != nil && stopOnFailure && mode == engine.GroupSequential {
				return fmt.Errorf("setup script %q: %w", res.ID, res.Err)
			}
		}
	}
	for _, spec := range m.ServiceSpecs() {
		if _, err := eng.Launch(spec); err != nil {
			return err
		}
	}
	return nil
}
