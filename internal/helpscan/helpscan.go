// Package helpscan parses `--help` output into parameter schemas. It
// understands GNU/POSIX option lines, Python argparse layouts with the
// description on a continuation line, long-only options, value placeholders
// like VALUE, <value> and [VALUE ...], and argparse positional sections.
package helpscan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mbenning/stagehand/internal/entity"
)

// Value hints cover multi-value shapes: PLAYER [PLAYER ...], MIN MAX, <file>.
const valueHint = `[A-Z][A-Z0-9_.*-]*(?:[ \t]+(?:\.\.\.|[A-Z][A-Z0-9_.*-]*(?:[ \t]+\.\.\.)?|\[[^\]\n]+\]))*|<[^>\n]+>|\[[^\]\n]+\]`

var (
	optionWithShortRe = regexp.MustCompile(`^[ \t]{1,8}(-[a-zA-Z0-9])(?:[ \t]*,?[ \t]*(--[\w][\w-]*))?(?:[ \t]+(?:=[ \t]*)?(` + valueHint + `))?(?:[ \t]{2,}(.+))?$`)
	longOnlyRe        = regexp.MustCompile(`^[ \t]{2,}(--[\w][\w-]*)(?:[ \t]+(?:=[ \t]*)?(` + valueHint + `))?(?:[ \t]{2,}(.+))?$`)
	continuationRe    = regexp.MustCompile(`^[ \t]{10,}(\S.*)$`)
	sectionHeaderRe   = regexp.MustCompile(`^[a-zA-Z][\w\s]*:\s*$`)
	positionalRe      = regexp.MustCompile(`^[ \t]{2,8}([a-zA-Z][a-zA-Z0-9_-]*)(?:[ \t]{2,}(.+))?$`)
	defaultRe         = regexp.MustCompile(`(?i)[(\[]\s*defaults?\s*[:=]\s*['"]?([^'")\]]+?)['"]?\s*[)\]]`)
)

// Parse extracts parameters from help text. Options are optional; entries in
// a "positional arguments:" section come back required.
func Parse(helpText string) []entity.ScriptParameter {
	var params []entity.ScriptParameter
	seen := make(map[string]bool)

	lines := strings.Split(helpText, "\n")
	inPositional := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if sectionHeaderRe.MatchString(line) {
			header := strings.ToLower(strings.TrimSpace(line))
			inPositional = strings.HasPrefix(header, "positional argument")
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if caps := optionWithShortRe.FindStringSubmatch(line); caps != nil {
			inPositional = false
			short, long, hint := caps[1], caps[2], caps[3]
			desc := strings.TrimSpace(caps[4])
			desc, i = absorbContinuations(lines, i, desc)

			name := deriveName(long, short)
			if seen[name] {
				continue
			}
			seen[name] = true
			params = append(params, entity.ScriptParameter{
				Name:         name,
				Type:         deduceType(hint, desc, false),
				ShortFlag:    short,
				LongFlag:     long,
				Description:  desc,
				DefaultValue: extractDefault(desc),
				NArgs:        detectNArgs(hint),
			})
			continue
		}

		if caps := longOnlyRe.FindStringSubmatch(line); caps != nil {
			inPositional = false
			long, hint := caps[1], caps[2]
			desc := strings.TrimSpace(caps[3])
			desc, i = absorbContinuations(lines, i, desc)

			name := deriveName(long, "")
			if seen[name] {
				continue
			}
			seen[name] = true
			params = append(params, entity.ScriptParameter{
				Name:         name,
				Type:         deduceType(hint, desc, false),
				LongFlag:     long,
				Description:  desc,
				DefaultValue: extractDefault(desc),
				NArgs:        detectNArgs(hint),
			})
			continue
		}

		if inPositional {
			if caps := positionalRe.FindStringSubmatch(line); caps != nil {
				name := caps[1]
				desc := strings.TrimSpace(caps[2])
				desc, i = absorbContinuations(lines, i, desc)

				if seen[name] {
					continue
				}
				seen[name] = true
				typ := deduceType("", desc, true)
				// A bool positional makes no sense.
				if typ == entity.ParamBool {
					typ = entity.ParamString
				}
				params = append(params, entity.ScriptParameter{
					Name:         name,
					Type:         typ,
					Description:  desc,
					DefaultValue: extractDefault(desc),
					Required:     true,
				})
			}
		}
	}
	return params
}

// absorbContinuations folds deeply indented follow-up lines into desc and
// returns the advanced line index.
func absorbContinuations(lines []string, i int, desc string) (string, int) {
	if desc == "" {
		if i+1 < len(lines) {
			if caps := continuationRe.FindStringSubmatch(lines[i+1]); caps != nil {
				return strings.TrimSpace(caps[1]), i + 1
			}
		}
		return desc, i
	}
	for i+1 < len(lines) {
		caps := continuationRe.FindStringSubmatch(lines[i+1])
		if caps == nil {
			break
		}
		desc += " " + strings.TrimSpace(caps[1])
		i++
	}
	return desc, i
}

func deriveName(long, short string) string {
	if long != "" {
		return strings.ReplaceAll(strings.TrimLeft(long, "-"), "-", "_")
	}
	if short != "" {
		return strings.TrimLeft(short, "-")
	}
	return "unknown"
}

// detectNArgs reads a value hint like "PLAYER [PLAYER ...]" as "+" and
// "MIN MAX" as a fixed count.
func detectNArgs(hint string) string {
	if hint == "" {
		return ""
	}
	if strings.Contains(hint, "[") && strings.Contains(hint, "...") {
		return "+"
	}
	n := 0
	for _, w := range strings.Fields(hint) {
		if w == "" || strings.HasPrefix(w, "[") {
			continue
		}
		if c := w[0]; c >= 'A' && c <= 'Z' {
			n++
		}
	}
	if n > 1 {
		return strconv.Itoa(n)
	}
	return ""
}

// deduceType maps a value hint (or, for positionals, description keywords)
// to a parameter type. A flag with no value placeholder is a boolean.
func deduceType(hint, desc string, positional bool) entity.ParamType {
	if hint == "" {
		if positional {
			lower := strings.ToLower(desc)
			switch {
			case strings.Contains(lower, "number"), strings.Contains(lower, "count"), strings.Contains(lower, "port"):
				return entity.ParamNumber
			case strings.Contains(lower, "path"), strings.Contains(lower, "directory"), strings.Contains(lower, "file"):
				return entity.ParamPath
			}
			return entity.ParamString
		}
		return entity.ParamBool
	}

	clean := strings.ToUpper(hint)
	clean = strings.Trim(clean, "<>[]")
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "..."))

	switch clean {
	case "NUM", "NUMBER", "COUNT", "N", "PORT", "INT", "INTEGER":
		return entity.ParamNumber
	case "FILE", "PATH", "DIR", "DIRECTORY", "FOLDER":
		return entity.ParamPath
	}
	return entity.ParamString
}

// extractDefault pulls a value out of "(default: x)" or "[default: x]". The
// opening bracket is required so "Default number of..." is not mistaken for
// a default value.
func extractDefault(desc string) string {
	if desc == "" {
		return ""
	}
	caps := defaultRe.FindStringSubmatch(desc)
	if caps == nil {
		return ""
	}
	return strings.TrimSpace(caps[1])
}
