package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/MrAsimZahid/zakat-calculator/internal/modules/passive"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

type migrateCmd struct {
	in  string
	out string
}

func (*migrateCmd) Name() string { return "migrate" }
func (*migrateCmd) Synopsis() string {
	return "upgrade a saved passive-investments block to the current schema"
}
func (*migrateCmd) Usage() string {
	return `zakatctl migrate [-in <file>] [-out <file>]

  Reads a passive-investments JSON block, or a whole calculator state holding
  one under stockValues.passiveInvestments, and writes it back in the current
  schema. "-" means stdin/stdout.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in, "in", "-", "input JSON file")
	f.StringVar(&c.out, "out", "-", "output JSON file")
}

func (c *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	data, err := readInput(c.in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	migrated, err := migrateDocument(data, passive.NewMigrator(zerolog.Nop()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if err := writeOutput(c.out, migrated); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// migrateDocument migrates either a bare passive block or the block nested in
// a whole state document, leaving every other state field untouched.
func migrateDocument(data []byte, m *passive.Migrator) ([]byte, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("input is not a JSON object: %w", err)
	}

	stockValues, nested := doc["stockValues"].(map[string]interface{})
	if !nested {
		p := m.Migrate(doc)
		if p == nil {
			return nil, fmt.Errorf("unrecognized passive investments data")
		}
		return json.MarshalIndent(p, "", "  ")
	}

	raw, _ := stockValues["passiveInvestments"].(map[string]interface{})
	if raw == nil {
		return nil, fmt.Errorf("state has no passive investments block")
	}
	p := m.Migrate(raw)
	if p == nil {
		return nil, fmt.Errorf("unrecognized passive investments data")
	}
	stockValues["passiveInvestments"] = p
	return json.MarshalIndent(doc, "", "  ")
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	data = append(data, '\n')
	if path == "-" || path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
