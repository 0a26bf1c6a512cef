package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbenning/stagehand/internal/command"
	"github.com/mbenning/stagehand/internal/engine"
	"github.com/mbenning/stagehand/internal/entity"
)

// exitInfo is the terminal outcome delivered by exitWaiter.
type exitInfo struct {
	code    *int
	success bool
}

// exitWaiter is a sink that hands the first exit event to a waiting command.
type exitWaiter struct {
	engine.NopSink
	ch chan exitInfo
}

func newExitWaiter() *exitWaiter {
	return &exitWaiter{ch: make(chan exitInfo, 1)}
}

func (w *exitWaiter) OnExit(cat engine.Category, id string, code *int, success bool) {
	select {
	case w.ch <- exitInfo{code: code, success: success}:
	default:
	}
}

func newRunCmd(a *app) *cobra.Command {
	var (
		params []string
		preset string
		extra  []string
	)

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a global script and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			script, err := st.GlobalScript(args[0])
			if err != nil {
				return err
			}

			values := map[string]string{}
			presetName := ""
			presetID := preset
			if presetID == "" {
				presetID = script.DefaultPresetID
			}
			if presetID != "" {
				p, ok := script.Preset(presetID)
				if !ok && preset != "" {
					return fmt.Errorf("script %q has no preset %q", script.Name, preset)
				}
				if ok {
					presetName = p.Name
					values = command.PresetValues(p, nil)
				}
			}
			for _, kv := range params {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --param %q, want key=value", kv)
				}
				values[k] = v
			}

			program, argv, ok := command.Build(script, values, extra)
			if !ok {
				return fmt.Errorf("script %q resolves to an empty command", script.Name)
			}

			waiter := newExitWaiter()
			eng := engine.New(engine.MultiSink{engine.LogSink{Log: a.log}, waiter}, engine.WithLogger(a.log))
			defer eng.Close()

			rec := entity.NewExecutionRecord(script.ID)
			rec.Parameters = values
			rec.PresetName = presetName
			if err := st.AddExecutionRecord(rec); err != nil {
				a.log.Warn().Err(err).Msg("recording execution failed")
			}

			_, err = eng.Launch(engine.LaunchSpec{
				Category: engine.CategoryGlobalScript,
				ID:       script.ID,
				Dir:      script.WorkingDir,
				Program:  program,
				Args:     argv,
				Env:      script.EnvVars,
				Meta:     engine.Meta{Preset: presetName},
			})
			if err != nil {
				return err
			}

			select {
			case info := <-waiter.ch:
				finished := time.Now().UTC()
				if err := st.UpdateExecutionRecord(rec.ID, func(r *entity.ExecutionRecord) {
					r.FinishedAt = &finished
					r.DurationMS = finished.Sub(r.StartedAt).Milliseconds()
					r.Success = info.success
					r.ExitCode = info.code
				}); err != nil {
					a.log.Warn().Err(err).Msg("updating execution record failed")
				}
				if !info.success {
					if info.code != nil {
						return fmt.Errorf("script %q exited with code %d", script.Name, *info.code)
					}
					return fmt.Errorf("script %q was terminated", script.Name)
				}
				return nil
			case <-cmd.Context().Done():
				eng.Shutdown()
				return cmd.Context().Err()
			}
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "Parameter value as key=value (repeatable)")
	cmd.Flags().StringVar(&preset, "preset", "", "Parameter preset id or name")
	cmd.Flags().StringArrayVar(&extra, "extra", nil, "Extra argument appended verbatim (repeatable)")
	return cmd
}
