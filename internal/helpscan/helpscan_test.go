package helpscan

import (
	"testing"

	"github.com/mbenning/stagehand/internal/entity"
)

func find(t *testing.T, params []entity.ScriptParameter, name string) entity.ScriptParameter {
	t.Helper()
	for _, p := range params {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("parameter %q not found in %v", name, names(params))
	return entity.ScriptParameter{}
}

func names(params []entity.ScriptParameter) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

func TestParseGNUStyle(t *testing.T) {
	help := `
Usage: myapp [OPTIONS]

Options:
  -v, --verbose           Enable verbose output
  -o, --output FILE       Output file path
  -n, --count NUM         Number of items
      --no-color          Disable colors
  -h, --help              Show help
  -V, --version           Show version
`
	params := Parse(help)
	if len(params) != 6 {
		t.Fatalf("got %d params %v, want 6", len(params), names(params))
	}

	verbose := find(t, params, "verbose")
	if verbose.Type != entity.ParamBool {
		t.Errorf("verbose type = %s, want bool", verbose.Type)
	}
	if verbose.ShortFlag != "-v" || verbose.LongFlag != "--verbose" {
		t.Errorf("verbose flags = %q/%q", verbose.ShortFlag, verbose.LongFlag)
	}

	if output := find(t, params, "output"); output.Type != entity.ParamPath {
		t.Errorf("output type = %s, want path", output.Type)
	}
	if count := find(t, params, "count"); count.Type != entity.ParamNumber {
		t.Errorf("count type = %s, want number", count.Type)
	}
}

func TestParsePythonArgparseStyle(t *testing.T) {
	help := `usage: dir_tree.py [-h] [--exclude [EXCLUDE ...]] [--files] directory

Print a tree structure of a directory.

positional arguments:
  directory             The root directory to print the tree from.

options:
  -h, --help            show this help message and exit
  --exclude [EXCLUDE ...]
                        List of folders to exclude.
  --files               Include files in the tree structure.
`
	params := Parse(help)
	if len(params) != 4 {
		t.Fatalf("got %d params %v, want 4", len(params), names(params))
	}

	directory := find(t, params, "directory")
	if directory.Type != entity.ParamPath {
		t.Errorf("directory type = %s, want path", directory.Type)
	}
	if directory.ShortFlag != "" || directory.LongFlag != "" {
		t.Errorf("positional has flags: %q/%q", directory.ShortFlag, directory.LongFlag)
	}
	if !directory.Required {
		t.Errorf("positional not required")
	}

	exclude := find(t, params, "exclude")
	if exclude.LongFlag != "--exclude" {
		t.Errorf("exclude long flag = %q", exclude.LongFlag)
	}
	if exclude.Description != "List of folders to exclude." {
		t.Errorf("exclude description = %q", exclude.Description)
	}
	if exclude.NArgs != "+" {
		t.Errorf("exclude nargs = %q, want +", exclude.NArgs)
	}

	if files := find(t, params, "files"); files.Type != entity.ParamBool {
		t.Errorf("files type = %s, want bool", files.Type)
	}
}

func TestParseMultiplePositionals(t *testing.T) {
	help := `usage: mytool [-h] [--verbose] source destination

Copy files from source to destination.

positional arguments:
  source                Source file path
  destination           Destination directory path

options:
  -h, --help            show this help message and exit
  --verbose             Enable verbose output
`
	params := Parse(help)
	if len(params) != 4 {
		t.Fatalf("got %d params %v, want 4", len(params), names(params))
	}

	source := find(t, params, "source")
	if !source.Required || source.Type != entity.ParamPath {
		t.Errorf("source = %+v", source)
	}
	dest := find(t, params, "destination")
	if !dest.Required || dest.Type != entity.ParamPath {
		t.Errorf("destination = %+v", dest)
	}
	if verbose := find(t, params, "verbose"); verbose.Required || verbose.Type != entity.ParamBool {
		t.Errorf("verbose = %+v", verbose)
	}
}

func TestParseMultiValueArgs(t *testing.T) {
	help := `usage: game [-h] [--player-list] [--players PLAYER [PLAYER ...]]
                     [--speed-range MIN MAX] [--nb-impostor N]
                     [--dry-run]

options:
  -h, --help            show this help message and exit
  --player-list         Show all configured players and exit.
  --players PLAYER [PLAYER ...]
                        Players for this session (by name or id). At
                        least 1 required.
  --speed-range MIN MAX
                        Speed range in km/h (default: 0 150).
  --nb-impostor N       Default number of impostors (default: 1).
  --dry-run             Run the game logic without side effects.
`
	params := Parse(help)

	players := find(t, params, "players")
	if players.NArgs != "+" {
		t.Errorf("players nargs = %q, want +", players.NArgs)
	}
	if players.Type != entity.ParamString {
		t.Errorf("players type = %s, want string", players.Type)
	}

	speed := find(t, params, "speed_range")
	if speed.NArgs != "2" {
		t.Errorf("speed_range nargs = %q, want 2", speed.NArgs)
	}
	if speed.DefaultValue != "0 150" {
		t.Errorf("speed_range default = %q, want %q", speed.DefaultValue, "0 150")
	}

	nb := find(t, params, "nb_impostor")
	if nb.Type != entity.ParamNumber || nb.DefaultValue != "1" || nb.NArgs != "" {
		t.Errorf("nb_impostor = %+v", nb)
	}

	for _, flag := range []string{"player_list", "dry_run"} {
		if p := find(t, params, flag); p.Type != entity.ParamBool {
			t.Errorf("%s type = %s, want bool", flag, p.Type)
		}
	}
}

func TestExtractDefault(t *testing.T) {
	cases := []struct {
		desc string
		want string
	}{
		{"Output directory (default: ./out)", "./out"},
		{"Port number [default: 8080]", "8080"},
		{"Simple description", ""},
		{"Speed range in km/h (default: 0 150).", "0 150"},
		{"Default number of impostors (default: 1).", "1"},
	}
	for _, tc := range cases {
		if got := extractDefault(tc.desc); got != tc.want {
			t.Errorf("extractDefault(%q) = %q, want %q", tc.desc, got, tc.want)
		}
	}
}
