package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hashtagcpt/psychophysics-parrot/internal/export"
	"github.com/hashtagcpt/psychophysics-parrot/internal/observer"
	"github.com/hashtagcpt/psychophysics-parrot/internal/report"
	"github.com/hashtagcpt/psychophysics-parrot/internal/session"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

func (a *app) newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run staircases against a simulated 2AFC observer",
		Long: `Run one or more staircases to completion against a simulated
two-interval forced-choice observer and print a summary per track.

Tracks run concurrently, each with its own staircase and its own observer
seeded from observer.seed plus the track number.

Example:
  parrot simulate --tracks 3 --format yaml --xlsx run.xlsx`,
		RunE: a.runSimulate,
	}

	cmd.Flags().Int("tracks", 1, "number of interleaved tracks")
	cmd.Flags().Uint64("seed", 1, "observer random seed")
	cmd.Flags().Int("max-responses", session.DefaultMaxResponses, "response cap per track")
	cmd.Flags().String("db", "", "persist sessions to this SQLite database")
	cmd.Flags().String("csv", "", "write the per-level table to this CSV file")
	cmd.Flags().String("xlsx", "", "write tallies and reversals to this XLSX workbook")
	cmd.Flags().String("format", "text", "summary format (text, yaml)")

	_ = a.v.BindPFlag("session.tracks", cmd.Flags().Lookup("tracks"))
	_ = a.v.BindPFlag("observer.seed", cmd.Flags().Lookup("seed"))
	_ = a.v.BindPFlag("session.max_responses", cmd.Flags().Lookup("max-responses"))
	return cmd
}

func (a *app) runSimulate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "yaml" {
		return fmt.Errorf("invalid format: %s (must be text or yaml)", format)
	}
	dbPath, _ := cmd.Flags().GetString("db")
	csvPath, _ := cmd.Flags().GetString("csv")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []session.Option{
		session.WithLogger(a.quietLogger()),
		session.WithMaxResponses(a.cfg.Session.MaxResponses),
	}
	if dbPath != "" {
		st, err := store.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer st.Close()
		opts = append(opts, session.WithStore(st))
	}
	runner := session.NewRunner(opts...)

	tracks := make([]session.Track, a.cfg.Session.Tracks)
	for i := range tracks {
		cfg := a.cfg.ToStaircaseConfig()
		tracks[i] = session.Track{
			Name:      fmt.Sprintf("track-%d", i+1),
			Config:    cfg,
			Responder: observer.New(a.cfg.Observer.NoiseSD, a.cfg.Observer.Seed+uint64(i), a.cfg.Transfer()),
		}
	}

	var results []session.Result
	var err error
	if len(tracks) == 1 {
		var res session.Result
		res, err = runner.Run(ctx, tracks[0])
		results = []session.Result{res}
	} else {
		results, err = runner.RunInterleaved(ctx, tracks)
	}
	if err != nil {
		return err
	}

	summaries := make([]report.Summary, len(results))
	for i, res := range results {
		summaries[i] = report.FromResult(res)
		if err := writeExports(res, csvPath, xlsxPath, len(results) > 1); err != nil {
			return err
		}
	}
	return writeSummaries(cmd.OutOrStdout(), format, summaries)
}

func writeExports(res session.Result, csvPath, xlsxPath string, perTrack bool) error {
	tallies := store.TalliesFrom(res.Levels, res.Final.NTrials, res.Final.NCorrect)
	if csvPath != "" {
		if err := export.WriteTalliesCSVFile(trackPath(csvPath, res.Track, perTrack), tallies); err != nil {
			return err
		}
	}
	if xlsxPath != "" {
		if err := export.WriteWorkbook(trackPath(xlsxPath, res.Track, perTrack), tallies, export.ReversalsFrom(res.Final)); err != nil {
			return err
		}
	}
	return nil
}

// trackPath turns out.csv into out-track-2.csv when several tracks share a flag.
func trackPath(path, track string, perTrack bool) string {
	if !perTrack {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + track + ext
}

func writeSummaries(w io.Writer, format string, summaries []report.Summary) error {
	if format == "yaml" {
		return report.WriteYAML(w, summaries)
	}
	return report.WriteText(w, summaries)
}
