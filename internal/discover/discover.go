// Package discover walks a scripts folder and turns matching files into
// candidate global scripts, reading the first comment line of each file as
// its description.
package discover

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Script is a file found during a scan, before registration.
type Script struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Extension   string `json:"extension"`
}

// Scan walks folder for files whose extension is in extensions (with or
// without a leading dot, case-insensitive). Any path component containing
// one of the ignored patterns is pruned. Results come back sorted by name.
func Scan(folder string, extensions, ignored []string) []Script {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return nil
	}

	var results []Script
	_ = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if path != folder && matchesAny(name, ignored) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext == "" || !extensionWanted(ext, extensions) {
			return nil
		}

		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		results = append(results, Script{
			Path:        abs,
			Name:        strings.TrimSuffix(name, ext),
			Description: extractDescription(path),
			Extension:   ext,
		})
		return nil
	})

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// extensionWanted accepts both ".py" and "py" spellings in the configured
// list.
func extensionWanted(ext string, extensions []string) bool {
	noDot := strings.TrimPrefix(ext, ".")
	for _, e := range extensions {
		e = strings.TrimSpace(e)
		if strings.EqualFold(e, ext) || strings.EqualFold(e, noDot) {
			return true
		}
	}
	return false
}

// extractDescription reads the first comment line of a script. Shebangs and
// PEP 723 inline metadata blocks are skipped; shell "#", batch "REM" and
// PowerShell "<#" comment styles are understood.
func extractDescription(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	inScriptBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())

		if trimmed == "# /// script" {
			inScriptBlock = true
			continue
		}
		if inScriptBlock {
			if trimmed == "# ///" {
				inScriptBlock = false
			}
			continue
		}
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#!") {
			continue
		}
		if comment, ok := strings.CutPrefix(trimmed, "#"); ok {
			if desc := strings.TrimSpace(comment); desc != "" {
				return desc
			}
			continue
		}
		if strings.HasPrefix(strings.ToUpper(trimmed), "REM ") {
			if desc := strings.TrimSpace(trimmed[4:]); desc != "" {
				return desc
			}
		}
		if rest, ok := strings.CutPrefix(trimmed, "<#"); ok {
			desc := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "#>"))
			if desc != "" {
				return desc
			}
		}
		break
	}
	return ""
}
