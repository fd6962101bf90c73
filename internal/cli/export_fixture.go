package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hashtagcpt/psychophysics-parrot/internal/replay"
)

func (a *app) newExportFixtureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-fixture",
		Short: "Export a stored session as a replay fixture",
		Long: `Export-fixture turns a stored session into a JSON replay fixture: its
config, its recorded responses, and the per-response expectations
produced by replaying them.

Example:
  parrot export-fixture --db parrot.db --session 6f1c... --out fixture.json`,
		RunE: a.runExportFixture,
	}
	cmd.Flags().String("db", "", "path to SQLite database (default store.path)")
	cmd.Flags().String("session", "", "session ID to export")
	cmd.Flags().String("out", "", "output fixture JSON path")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) runExportFixture(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = a.cfg.Store.Path
	}
	sessionID, _ := cmd.Flags().GetString("session")
	outPath, _ := cmd.Flags().GetString("out")

	f, err := fixtureFromDB(dbPath, sessionID, true)
	if err != nil {
		return err
	}
	if err := replay.SaveFixture(outPath, f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d responses to %s\n", len(f.Responses), outPath)
	return nil
}
