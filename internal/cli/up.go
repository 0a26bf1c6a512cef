package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/engine"
	"github.com/mbenning/stagehand/internal/manifest"
)

func newUpCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Run a manifest: setup scripts first, then services until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(file)
			if err != nil {
				return err
			}
			specs := m.ServiceSpecs()
			if len(specs) == 0 {
				return errors.New("manifest declares no services")
			}

			eng := engine.New(engine.LogSink{Log: a.log}, engine.WithLogger(a.log))
			defer eng.Close()

			if scripts, mode, stopOnFailure := m.ScriptSpecs(); len(scripts) > 0 {
				for _, res := range eng.RunGroup(scripts, mode, stopOnFailure) {
					if res.Err == nil {
						continue
					}
					if stopOnFailure && mode == engine.GroupSequential {
						return fmt.Errorf("setup script %q: %w", res.ID, res.Err)
					}
					a.log.Error().Err(res.Err).Str("script", res.ID).Msg("setup script failed")
				}
			}

			for _, spec := range specs {
				if _, err := eng.Launch(spec); err != nil {
					return err
				}
			}
			a.log.Info().Int("services", len(specs)).Msg("services launched, press ctrl-c to stop")

			<-cmd.Context().Done()
			eng.Shutdown()
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", manifest.DefaultName, "Path to manifest file")
	return cmd
}
