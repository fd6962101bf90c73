package codec

import (
	"context"
	"errors"
	"math"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

// #region mock
type mockStaircaseService struct {
	StaircaseServiceClient

	lastIn *structpb.Struct
	resp   *structpb.Struct
	err    error
}

func (m *mockStaircaseService) Open(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastIn = in
	return m.resp, m.err
}

func (m *mockStaircaseService) Record(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastIn = in
	return m.resp, m.err
}

func (m *mockStaircaseService) Snapshot(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastIn = in
	return m.resp, m.err
}

func (m *mockStaircaseService) Close(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.lastIn = in
	return m.resp, m.err
}

func cannedSnapshot(t *testing.T) *structpb.Struct {
	t.Helper()
	st, err := Snapshot{
		SessionID:      "abc",
		Responses:      4,
		CurLevel:       3,
		CurIndex:       2,
		Direction:      staircase.DirectionUp,
		RevCount:       1,
		JustReversed:   true,
		Threshold:      math.NaN(),
		ThresholdError: math.NaN(),
		Reversals:      []float64{2},
		NTrials:        []int{0, 4, 0, 0, 0},
		NCorrect:       []int{0, 2, 0, 0, 0},
	}.toStruct()
	if err != nil {
		t.Fatalf("toStruct: %v", err)
	}
	return st
}

// #endregion mock

// #region constructor-tests
func TestNewCodecClientInvalidAddr(t *testing.T) {
	client, err := NewCodecClient("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()
}

func TestNewCodecClientWithService(t *testing.T) {
	c := NewCodecClientWithService(&mockStaircaseService{})
	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.client == nil {
		t.Fatal("expected non-nil internal client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close without connection: %v", err)
	}
}

// #endregion constructor-tests

// #region rpc-tests
func TestOpen_SendsConfig(t *testing.T) {
	mock := &mockStaircaseService{resp: cannedSnapshot(t)}
	c := NewCodecClientWithService(mock)

	snap, err := c.Open(context.Background(), "left", staircase.DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.SessionID != "abc" {
		t.Errorf("expected session abc, got %q", snap.SessionID)
	}

	fields := mock.lastIn.GetFields()
	if fields["track"].GetStringValue() != "left" {
		t.Errorf("expected track left, got %v", fields["track"])
	}
	cfg := fields["config"].GetStructValue().GetFields()
	if got := len(cfg["levels"].GetListValue().GetValues()); got != 5 {
		t.Errorf("expected 5 levels, got %d", got)
	}
	if _, ok := cfg["max_ceiling_increments"].GetKind().(*structpb.Value_NullValue); !ok {
		t.Errorf("expected null ceiling cap for +Inf, got %v", cfg["max_ceiling_increments"])
	}
}

func TestRecord_Success(t *testing.T) {
	mock := &mockStaircaseService{resp: cannedSnapshot(t)}
	c := NewCodecClientWithService(mock)

	snap, err := c.Record(context.Background(), "abc", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mock.lastIn.GetFields()["correct"].GetBoolValue() {
		t.Error("expected correct=true in request")
	}
	if mock.lastIn.GetFields()["session_id"].GetStringValue() != "abc" {
		t.Error("expected session_id in request")
	}
	if snap.Direction != staircase.DirectionUp || !snap.JustReversed || snap.RevCount != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if !math.IsNaN(snap.Threshold) || !math.IsNaN(snap.ThresholdError) {
		t.Errorf("expected NaN threshold, got %g ± %g", snap.Threshold, snap.ThresholdError)
	}
	if len(snap.NTrials) != 5 || snap.NTrials[1] != 4 || snap.NCorrect[1] != 2 {
		t.Errorf("unexpected tallies %v %v", snap.NTrials, snap.NCorrect)
	}
}

func TestRecord_Error(t *testing.T) {
	mock := &mockStaircaseService{err: errors.New("connection refused")}
	c := NewCodecClientWithService(mock)

	_, err := c.Record(context.Background(), "abc", false)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, mock.err) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestSnapshotAndClose_Error(t *testing.T) {
	mock := &mockStaircaseService{err: errors.New("unavailable")}
	c := NewCodecClientWithService(mock)

	if _, err := c.Snapshot(context.Background(), "abc"); err == nil {
		t.Error("expected snapshot error")
	}
	if _, err := c.CloseSession(context.Background(), "abc"); err == nil {
		t.Error("expected close error")
	}
}

// #endregion rpc-tests
