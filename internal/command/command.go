// Package command resolves a global script plus parameter values into the
// program and argument vector to execute.
package command

import (
	"strings"

	"github.com/mbenning/stagehand/internal/entity"
)

// Build produces (program, args) for a global script. The {{SCRIPT_FILE}}
// placeholder is replaced with the script path, parameter values are
// appended in definition order, then any extra arguments. ok is false when
// the resolved command is empty.
func Build(script entity.GlobalScript, values map[string]string, extra []string) (program string, args []string, ok bool) {
	base := script.Command
	if script.ScriptPath != "" {
		base = strings.ReplaceAll(base, "{{SCRIPT_FILE}}", script.ScriptPath)
	}

	tokens := strings.Fields(base)
	if len(tokens) == 0 {
		return "", nil, false
	}
	program, args = tokens[0], tokens[1:]

	for _, def := range script.Parameters {
		value, present := values[def.Name]
		if !present || value == "" {
			continue
		}
		if def.Type == entity.ParamBool {
			if value == "true" {
				if flag := pickFlag(def); flag != "" {
					args = append(args, flag)
				}
			}
			continue
		}
		if flag := pickFlag(def); flag != "" {
			args = append(args, flag)
		}
		if def.NArgs != "" {
			args = append(args, strings.Fields(value)...)
		} else {
			args = append(args, stripQuotes(value))
		}
	}

	args = append(args, extra...)
	return program, args, true
}

func pickFlag(def entity.ScriptParameter) string {
	if def.LongFlag != "" {
		return def.LongFlag
	}
	return def.ShortFlag
}

// stripQuotes removes one matched pair of surrounding quotes.
func stripQuotes(v string) string {
	if len(v) >= 2 {
		if (v[0] == '\'' && v[len(v)-1] == '\'') || (v[0] == '"' && v[len(v)-1] == '"') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// PresetValues merges a preset into explicit values; explicit values win.
// Presets can disable individual parameters, which removes them entirely.
func PresetValues(preset entity.ParameterPreset, explicit map[string]string) map[string]string {
	merged := make(map[string]string, len(preset.Values)+len(explicit))
	for name, value := range preset.Values {
		if enabled, tracked := preset.Enabled[name]; tracked && !enabled {
			continue
		}
		merged[name] = value
	}
	for name, value := range explicit {
		merged[name] = value
	}
	return merged
}
