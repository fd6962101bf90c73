package codec

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hashtagcpt/psychophysics-parrot/internal/logging"
	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

// #endregion

// #region service-struct

// FinishClosed is stored as the finish reason of a session closed by its
// client before the staircase finished.
const FinishClosed = "closed"

// Service hosts remote staircases, one per session. The session map is
// guarded by mu; each session has its own lock so RPCs on different
// sessions do not serialise.
type Service struct {
	store  *store.Store
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*remoteSession
}

type remoteSession struct {
	mu     sync.Mutex
	sc     *staircase.Staircase
	sink   *logging.ProvenanceSink
	track  string
	closed bool // set by Close under mu
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceStore persists remote sessions like local runs.
func WithServiceStore(s *store.Store) ServiceOption {
	return func(svc *Service) { svc.store = s }
}

// WithServiceLogger sets the logger for RPC messages and verbose staircases.
func WithServiceLogger(l *log.Logger) ServiceOption {
	return func(svc *Service) { svc.logger = l }
}

// NewService creates an empty Service.
func NewService(opts ...ServiceOption) *Service {
	svc := &Service{logger: log.Default(), sessions: make(map[string]*remoteSession)}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Len returns the number of open sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// #endregion service-struct

// #region open

// Open creates a staircase from the request's "config" object.
func (s *Service) Open(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	cfgVal := fields["config"].GetStructValue()
	if cfgVal == nil {
		return nil, status.Error(codes.InvalidArgument, "config is required")
	}
	raw, err := json.Marshal(cfgVal.AsMap())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "config: %v", err)
	}
	var cfg staircase.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id := uuid.New().String()
	track := fields["track"].GetStringValue()
	if track == "" {
		track = "remote"
	}

	rs := &remoteSession{track: track}
	opts := []staircase.Option{staircase.WithLogger(s.logger)}
	if s.store != nil {
		if err := s.store.CreateSession(store.SessionRecord{SessionID: id, Track: track, Config: cfg}); err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		rs.sink = logging.NewProvenanceSink(s.store.DB(), id)
		opts = append(opts, staircase.WithSink(rs.sink))
	}
	sc, err := staircase.New(cfg, opts...)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rs.sc = sc

	s.mu.Lock()
	s.sessions[id] = rs
	s.mu.Unlock()

	s.logger.Printf("[RPC] open session=%s track=%s start=%g", id, track, sc.CurLevel())
	return snapshotOf(id, sc).toStruct()
}

// #endregion open

// #region record

// Record applies {"session_id", "correct"} and returns the new snapshot.
func (s *Service) Record(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	correctVal, ok := fields["correct"].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "correct must be a bool")
	}
	id, rs, err := s.acquire(in)
	if err != nil {
		return nil, err
	}
	defer rs.mu.Unlock()

	level, idx := rs.sc.CurLevel(), rs.sc.CurIndex()
	if err := rs.sc.RecordResponse(correctVal.BoolValue); err != nil {
		if errors.Is(err, staircase.ErrInvariantViolation) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	snap := snapshotOf(id, rs.sc)
	if s.store != nil {
		if err := s.store.AppendTrial(store.TrialRecord{
			SessionID:  id,
			Response:   snap.Responses,
			Level:      level,
			LevelIndex: idx,
			Correct:    correctVal.BoolValue,
			Reversal:   snap.JustReversed,
			RevCount:   snap.RevCount,
			TrialCount: snap.TrialCount,
			NextLevel:  snap.CurLevel,
			Direction:  snap.Direction,
		}); err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	return snap.toStruct()
}

// #endregion record

// #region snapshot

// Snapshot returns the current state of {"session_id"}.
func (s *Service) Snapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, rs, err := s.acquire(in)
	if err != nil {
		return nil, err
	}
	defer rs.mu.Unlock()
	return snapshotOf(id, rs.sc).toStruct()
}

// #endregion snapshot

// #region close

// Close removes {"session_id"}, persists its tallies, and returns the final snapshot.
func (s *Service) Close(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, rs, err := s.acquire(in)
	if err != nil {
		return nil, err
	}
	defer rs.mu.Unlock()
	rs.closed = true
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	snap := snapshotOf(id, rs.sc)
	if s.store != nil {
		if err := s.persistClose(rs, snap); err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	s.logger.Printf("[RPC] close session=%s responses=%d reversals=%d", id, snap.Responses, snap.RevCount)
	return snap.toStruct()
}

func (s *Service) persistClose(rs *remoteSession, snap Snapshot) error {
	if err := s.store.SaveTallies(snap.SessionID, store.TalliesFrom(rs.sc.Levels(), snap.NTrials, snap.NCorrect)); err != nil {
		return err
	}
	reasons := snap.FinishReasons
	if len(reasons) == 0 {
		reasons = []string{FinishClosed}
	}
	if err := s.store.FinishSession(snap.SessionID, snap.Threshold, snap.ThresholdError, reasons); err != nil {
		return err
	}
	if err := rs.sink.Err(); err != nil {
		return fmt.Errorf("event log for %s: %w", snap.SessionID, err)
	}
	return nil
}

// #endregion close

// #region helpers
// acquire returns the open session named by {"session_id"} with its lock
// held. A session closed while the caller waited for the lock is NotFound.
func (s *Service) acquire(in *structpb.Struct) (string, *remoteSession, error) {
	id := in.GetFields()["session_id"].GetStringValue()
	if id == "" {
		return "", nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	s.mu.Lock()
	rs, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return "", nil, status.Errorf(codes.NotFound, "session %s not found", id)
	}
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return "", nil, status.Errorf(codes.NotFound, "session %s closed", id)
	}
	return id, rs, nil
}

// #endregion helpers
