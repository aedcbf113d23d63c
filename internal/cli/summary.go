package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrAsimZahid/zakat-calculator/internal/database"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/passive"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/snapshots"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

type summaryCmd struct {
	dataDir string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display the saved holdings and zakat due" }
func (*summaryCmd) Usage() string {
	return `zakatctl summary [-data <dir>]

  Displays the last saved calculator state: holdings, the category breakdown,
  the nisab check and the zakat due.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dataDir, "data", dataDirDefault(), "data directory holding state.db")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	repo, closeDB, err := openSnapshots(c.dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeDB()

	st, ok, err := repo.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if !ok {
		fmt.Println("No saved state.")
		return subcommands.ExitSuccess
	}

	printMarkdown(os.Stdout, SummaryMarkdown(st))
	return subcommands.ExitSuccess
}

// openSnapshots opens state.db under dataDir without creating it.
func openSnapshots(dataDir string) (*snapshots.Repository, func(), error) {
	path := filepath.Join(dataDir, "state.db")
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("no state database at %s: %w", path, err)
	}

	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    database.NameState,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}

	repo := snapshots.NewRepository(db.Conn(), passive.NewMigrator(zerolog.Nop()), "", zerolog.Nop())
	return repo, func() { _ = db.Close() }, nil
}
