package report

// #region imports
import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/montanaflynn/stats"
	"gopkg.in/yaml.v3"

	"github.com/hashtagcpt/psychophysics-parrot/internal/session"
	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

// #endregion

// #region types

// LevelSummary is the response tally at one grid level.
type LevelSummary struct {
	Level    float64  `yaml:"level"`
	NTrials  int      `yaml:"n_trials"`
	NCorrect int      `yaml:"n_correct"`
	PCorrect *float64 `yaml:"p_correct,omitempty"`
}

// Summary describes one finished (or stopped) staircase run.
type Summary struct {
	SessionID      string         `yaml:"session_id,omitempty"`
	Track          string         `yaml:"track"`
	Responses      int            `yaml:"responses"`
	Reversals      int            `yaml:"reversals"`
	Threshold      float64        `yaml:"threshold"`
	ThresholdError float64        `yaml:"threshold_error"`
	ReversalMedian float64        `yaml:"reversal_median"`
	ReversalIQR    float64        `yaml:"reversal_iqr"`
	ReversalMin    float64        `yaml:"reversal_min"`
	ReversalMax    float64        `yaml:"reversal_max"`
	FinishReasons  []string       `yaml:"finish_reasons"`
	Levels         []LevelSummary `yaml:"levels"`
}

// #endregion types

// #region build

// Build summarises a run from its reversal levels and per-level tallies.
// Spread statistics use the same reversals as the threshold estimate (all
// but the first) and are NaN while the estimate is undefined.
func Build(track, sessionID string, responses int, reversals []float64, tallies []store.LevelTally, reasons []string) Summary {
	s := Summary{
		SessionID:      sessionID,
		Track:          track,
		Responses:      responses,
		Reversals:      len(reversals),
		FinishReasons:  reasons,
		ReversalMedian: math.NaN(),
		ReversalIQR:    math.NaN(),
		ReversalMin:    math.NaN(),
		ReversalMax:    math.NaN(),
	}
	s.Threshold, s.ThresholdError = staircase.Estimate(reversals)

	if len(reversals) >= staircase.MinReversalsForEstimate {
		used := stats.Float64Data(reversals[1:])
		s.ReversalMedian, _ = stats.Median(used)
		s.ReversalIQR, _ = stats.InterQuartileRange(used)
		s.ReversalMin, _ = stats.Min(used)
		s.ReversalMax, _ = stats.Max(used)
	}

	for _, t := range tallies {
		ls := LevelSummary{Level: t.Level, NTrials: t.NTrials, NCorrect: t.NCorrect}
		if t.NTrials > 0 {
			p := t.ProportionCorrect()
			ls.PCorrect = &p
		}
		s.Levels = append(s.Levels, ls)
	}
	return s
}

// FromResult summarises a session runner result.
func FromResult(res session.Result) Summary {
	reasons := make([]string, 0, len(res.FinishReasons)+1)
	for _, r := range res.FinishReasons {
		reasons = append(reasons, string(r))
	}
	if res.Capped {
		reasons = append(reasons, session.FinishResponseCap)
	}
	tallies := store.TalliesFrom(res.Levels, res.Final.NTrials, res.Final.NCorrect)
	return Build(res.Track, res.SessionID, res.Responses, res.Final.Reversals, tallies, reasons)
}

// FromStore summarises a persisted session. Reversal levels are the levels
// presented on the trials flagged as reversals.
func FromStore(rec store.SessionRecord, trials []store.TrialRecord, tallies []store.LevelTally) Summary {
	var reversals []float64
	for _, t := range trials {
		if t.Reversal {
			reversals = append(reversals, t.Level)
		}
	}
	return Build(rec.Track, rec.SessionID, len(trials), reversals, tallies, rec.FinishReasons)
}

// #endregion build

// #region render

// WriteYAML encodes summaries as a YAML sequence.
func WriteYAML(w io.Writer, summaries []Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(summaries); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// WriteText renders summaries as aligned plain-text tables.
func WriteText(w io.Writer, summaries []Summary) error {
	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Track: %s", s.Track)
		if s.SessionID != "" {
			fmt.Fprintf(w, " (%s)", s.SessionID)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Responses: %d  Reversals: %d\n", s.Responses, s.Reversals)
		fmt.Fprintf(w, "Threshold: %s ± %s\n", formatFloat(s.Threshold), formatFloat(s.ThresholdError))
		fmt.Fprintf(w, "Reversal median: %s  IQR: %s  range: [%s, %s]\n",
			formatFloat(s.ReversalMedian), formatFloat(s.ReversalIQR),
			formatFloat(s.ReversalMin), formatFloat(s.ReversalMax))
		reasons := "-"
		if len(s.FinishReasons) > 0 {
			reasons = strings.Join(s.FinishReasons, ", ")
		}
		fmt.Fprintf(w, "Finished: %s\n\n", reasons)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "LEVEL\tTRIALS\tCORRECT\tP(CORRECT)")
		for _, l := range s.Levels {
			p := "-"
			if l.PCorrect != nil {
				p = fmt.Sprintf("%.2f", *l.PCorrect)
			}
			fmt.Fprintf(tw, "%g\t%d\t%d\t%s\n", l.Level, l.NTrials, l.NCorrect, p)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", f)
}

// #endregion render
