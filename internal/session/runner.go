package session

// #region imports
import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hashtagcpt/psychophysics-parrot/internal/logging"
	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

// #endregion

// DefaultMaxResponses bounds a run whose termination conditions can never be
// met, e.g. a staircase pinned at the floor that never reverses.
const DefaultMaxResponses = 10000

// #region runner-struct

// Runner drives staircases with responses from a Responder and optionally
// persists every session to a Store.
type Runner struct {
	store        *store.Store
	maxResponses int
	logger       *log.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists sessions, trials, tallies and events.
func WithStore(s *store.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithMaxResponses overrides DefaultMaxResponses. Non-positive values are ignored.
func WithMaxResponses(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxResponses = n
		}
	}
}

// WithLogger sets the logger for runner messages and verbose staircases.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{maxResponses: DefaultMaxResponses, logger: log.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// #endregion runner-struct

// #region run

// Run presents trials for one track until its staircase is finished, the
// response cap is hit, ctx is done, or the responder fails. On ctx
// cancellation the partial Result is returned with ctx's error.
func (r *Runner) Run(ctx context.Context, tr Track) (Result, error) {
	sessionID := uuid.New().String()
	if tr.Name == "" {
		tr.Name = "default"
	}
	if tr.Responder == nil {
		return Result{}, fmt.Errorf("track %s: no responder", tr.Name)
	}

	opts := []staircase.Option{staircase.WithLogger(r.logger)}
	var sink *logging.ProvenanceSink
	if r.store != nil {
		if err := tr.Config.Validate(); err != nil {
			return Result{}, fmt.Errorf("track %s: %w", tr.Name, err)
		}
		if err := r.store.CreateSession(store.SessionRecord{
			SessionID: sessionID,
			Track:     tr.Name,
			Config:    tr.Config,
		}); err != nil {
			return Result{}, err
		}
		sink = logging.NewProvenanceSink(r.store.DB(), sessionID)
		opts = append(opts, staircase.WithSink(sink))
	}

	sc, err := staircase.New(tr.Config, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("track %s: %w", tr.Name, err)
	}
	r.logger.Printf("[SESSION] %s track=%s start=%g", sessionID, tr.Name, sc.CurLevel())

	res := Result{SessionID: sessionID, Track: tr.Name, Levels: sc.Levels()}
	var runErr error
	for !sc.IsFinished() {
		if res.Responses >= r.maxResponses {
			res.Capped = true
			r.logger.Printf("[SESSION] %s track=%s stopped at response cap %d", sessionID, tr.Name, r.maxResponses)
			break
		}
		if runErr = ctx.Err(); runErr != nil {
			break
		}

		level, idx := sc.CurLevel(), sc.CurIndex()
		correct, err := tr.Responder.Respond(ctx, level)
		if err != nil {
			runErr = fmt.Errorf("track %s response %d: %w", tr.Name, res.Responses+1, err)
			break
		}
		if err := sc.RecordResponse(correct); err != nil {
			runErr = fmt.Errorf("track %s response %d: %w", tr.Name, res.Responses+1, err)
			break
		}
		res.Responses++

		if r.store != nil {
			if err := r.store.AppendTrial(store.TrialRecord{
				SessionID:  sessionID,
				Response:   res.Responses,
				Level:      level,
				LevelIndex: idx,
				Correct:    correct,
				Reversal:   sc.JustReversed(),
				RevCount:   sc.ReversalCount(),
				TrialCount: sc.TrialCount(),
				NextLevel:  sc.CurLevel(),
				Direction:  sc.Direction(),
			}); err != nil {
				runErr = err
				break
			}
		}
	}

	res.Threshold = sc.ReversalThreshold()
	res.ThresholdError = sc.ReversalError()
	res.FinishReasons = sc.FinishReasons()
	res.Final = sc.Snapshot()

	if r.store != nil {
		if err := r.persistEnd(sc, res, sink); err != nil && runErr == nil {
			runErr = err
		}
	}

	r.logger.Printf("[SESSION] %s track=%s responses=%d reversals=%d threshold=%.3f ± %.3f",
		sessionID, tr.Name, res.Responses, sc.ReversalCount(), res.Threshold, res.ThresholdError)
	return res, runErr
}

// persistEnd writes final tallies and closes the session row.
func (r *Runner) persistEnd(sc *staircase.Staircase, res Result, sink *logging.ProvenanceSink) error {
	if err := r.store.SaveTallies(res.SessionID, store.TalliesFrom(sc.Levels(), sc.NTrials(), sc.NCorrect())); err != nil {
		return err
	}
	reasons := make([]string, 0, len(res.FinishReasons)+1)
	for _, fr := range res.FinishReasons {
		reasons = append(reasons, string(fr))
	}
	if res.Capped {
		reasons = append(reasons, FinishResponseCap)
	}
	if len(reasons) > 0 {
		if err := r.store.FinishSession(res.SessionID, res.Threshold, res.ThresholdError, reasons); err != nil {
			return err
		}
	}
	if err := sink.Err(); err != nil {
		return fmt.Errorf("event log for %s: %w", res.SessionID, err)
	}
	return nil
}

// #endregion run

// #region run-interleaved

// RunInterleaved runs every track concurrently, each with its own staircase.
// Results are returned in track order. The first error cancels the remaining tracks.
func (r *Runner) RunInterleaved(ctx context.Context, tracks []Track) ([]Result, error) {
	results := make([]Result, len(tracks))
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for i := range tracks {
		tr := tracks[i]
		if tr.Name == "" {
			tr.Name = fmt.Sprintf("track-%d", i+1)
		}
		g.Go(func() error {
			res, err := r.Run(gctx, tr)
			results[i] = res
			return err
		})
	}
	err := g.Wait()
	r.logger.Printf("[SESSION] %d interleaved tracks done in %s", len(tracks), time.Since(start).Round(time.Millisecond))
	return results, err
}

// #endregion run-interleaved
