package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/hashtagcpt/psychophysics-parrot/internal/report"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

func (a *app) newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List stored sessions or show one in detail",
		Long: `Inspect reads a parrot SQLite database.

Without --session it lists the most recent sessions. With --session it
prints the run summary and per-level table of that session.

Example:
  parrot inspect --db parrot.db --last 10
  parrot inspect --db parrot.db --session 6f1c... --format yaml`,
		RunE: a.runInspect,
	}
	cmd.Flags().String("db", "", "path to SQLite database (default store.path)")
	cmd.Flags().String("session", "", "show a single session in detail")
	cmd.Flags().Int("last", 20, "show N most recent sessions")
	cmd.Flags().Bool("json", false, "list sessions as JSON instead of a table")
	cmd.Flags().String("format", "text", "detail format (text, yaml)")
	return cmd
}

func (a *app) runInspect(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = a.cfg.Store.Path
	}
	sessionID, _ := cmd.Flags().GetString("session")
	last, _ := cmd.Flags().GetInt("last")
	jsonOut, _ := cmd.Flags().GetBool("json")
	format, _ := cmd.Flags().GetString("format")

	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if sessionID != "" {
		return runDetailMode(out, st, sessionID, format)
	}
	return runListMode(out, st, last, jsonOut)
}

// #region list-mode

type listRow struct {
	SessionID     string   `json:"session_id"`
	Track         string   `json:"track"`
	Responses     int      `json:"responses"`
	Threshold     *float64 `json:"threshold,omitempty"`
	FinishReasons []string `json:"finish_reasons"`
	CreatedAt     string   `json:"created_at"`
}

func runListMode(out io.Writer, st *store.Store, last int, jsonOut bool) error {
	sessions, err := st.ListSessions(last)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no sessions found")
		return nil
	}

	rows := make([]listRow, len(sessions))
	for i, rec := range sessions {
		lr := listRow{
			SessionID:     rec.SessionID,
			Track:         rec.Track,
			Responses:     rec.Responses,
			FinishReasons: rec.FinishReasons,
			CreatedAt:     rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if !math.IsNaN(rec.Threshold) {
			th := rec.Threshold
			lr.Threshold = &th
		}
		rows[i] = lr
	}

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	fmt.Fprintf(out, "%-12s  %-10s  %9s  %9s  %-22s  %s\n",
		"Session", "Track", "Responses", "Threshold", "Finished", "Time")
	fmt.Fprintf(out, "%-12s+-%-10s+-%9s+-%9s+-%-22s+-%s\n",
		"------------", "----------", "---------", "---------", "----------------------", "--------------------")
	for _, r := range rows {
		th := "-"
		if r.Threshold != nil {
			th = fmt.Sprintf("%.3f", *r.Threshold)
		}
		finished := "-"
		if len(r.FinishReasons) > 0 {
			finished = r.FinishReasons[0]
			if len(r.FinishReasons) > 1 {
				finished += fmt.Sprintf(" +%d", len(r.FinishReasons)-1)
			}
		}
		fmt.Fprintf(out, "%-12s  %-10s  %9d  %9s  %-22s  %s\n",
			shortID(r.SessionID), r.Track, r.Responses, th, finished, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(out io.Writer, st *store.Store, sessionID, format string) error {
	rec, err := st.GetSession(sessionID)
	if err != nil {
		return err
	}
	trials, err := st.ListTrials(sessionID)
	if err != nil {
		return err
	}
	tallies, err := st.GetTallies(sessionID)
	if err != nil {
		return err
	}
	return writeSummaries(out, format, []report.Summary{report.FromStore(rec, trials, tallies)})
}

// #endregion detail-mode

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
