// Command ledgermigrate applies, rolls back and inspects schema migrations.
package main

import (
	"os"

	flags "github.com/jessevdk/go-flags"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

func newParser(global *GlobalOptions) (*flags.Parser, error) {
	parser := flags.NewParser(global, flags.Default)

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"up", "Apply pending migrations", "Apply pending migrations in ascending order in one transaction.", &UpCommand{global: global}},
		{"down", "Roll back applied migrations", "Roll back applied migrations, most recent first, in one transaction.", &DownCommand{global: global}},
		{"version", "Print the current version", "Print the highest applied version, or 0.", &VersionCommand{global: global}},
		{"list", "List all migrations", "List every known migration and whether it is applied.", &ListCommand{global: global}},
		{"pending", "List pending migrations", "List migrations newer than the current version.", &PendingCommand{global: global}},
		{"validate", "Compare the ledger with the migrations", "Report applied versions that are unknown, renamed or out of order.", &ValidateCommand{global: global}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			return nil, err
		}
	}
	return parser, nil
}

func main() {
	global := &GlobalOptions{}
	parser, err := newParser(global)
	if err != nil {
		os.Exit(2)
	}

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}
