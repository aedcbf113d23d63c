package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
)

type historyCmd struct {
	dataDir  string
	limit    int
	currency string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list recent state snapshots" }
func (*historyCmd) Usage() string {
	return `zakatctl history [-data <dir>] [-n <count>] [-currency <code>]

  Lists the most recent saved snapshots, newest first.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dataDir, "data", dataDirDefault(), "data directory holding state.db")
	f.IntVar(&c.limit, "n", 20, "number of snapshots to show")
	f.StringVar(&c.currency, "currency", "", "currency used to format values (defaults to the saved state's)")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	repo, closeDB, err := openSnapshots(c.dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeDB()

	entries, err := repo.History(ctx, c.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	currency := strings.ToUpper(c.currency)
	if currency == "" {
		if st, ok, err := repo.Load(ctx); err == nil && ok {
			currency = st.EffectiveCurrency()
		}
	}

	printMarkdown(os.Stdout, HistoryMarkdown(entries, currency))
	return subcommands.ExitSuccess
}
