// Package cli implements the zakatctl subcommands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

// Commands lists every zakatctl subcommand.
var Commands = []subcommands.Command{
	&migrateCmd{},
	&summaryCmd{},
	&historyCmd{},
}

const defaultDataDir = "./data"

func dataDirDefault() string {
	if dir := os.Getenv("ZAKAT_DATA_DIR"); dir != "" {
		return dir
	}
	return defaultDataDir
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(w io.Writer, md string) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Fprint(w, out)
			return
		}
	}
	fmt.Fprint(w, md)
}
