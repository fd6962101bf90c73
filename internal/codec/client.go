package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

// #region client-struct
// CodecClient wraps the gRPC connection to a remote staircase service.
type CodecClient struct {
	conn   *grpc.ClientConn
	client StaircaseServiceClient
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the staircase gRPC server. Extra dial options
// are appended after insecure transport credentials.
func NewCodecClient(addr string, opts ...grpc.DialOption) (*CodecClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{
		conn:   conn,
		client: NewStaircaseServiceClient(conn),
	}, nil
}

// NewCodecClientWithService creates a CodecClient with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewCodecClientWithService(svc StaircaseServiceClient) *CodecClient {
	return &CodecClient{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region open
// Open starts a remote staircase and returns its initial snapshot.
func (c *CodecClient) Open(ctx context.Context, track string, cfg staircase.Config) (Snapshot, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal config: %w", err)
	}
	var cfgMap map[string]any
	if err := json.Unmarshal(raw, &cfgMap); err != nil {
		return Snapshot{}, fmt.Errorf("marshal config: %w", err)
	}
	in, err := structpb.NewStruct(map[string]any{"track": track, "config": cfgMap})
	if err != nil {
		return Snapshot{}, fmt.Errorf("build open request: %w", err)
	}
	resp, err := c.client.Open(ctx, in)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open rpc: %w", err)
	}
	return snapshotFromStruct(resp)
}

// #endregion open

// #region record
// Record sends one response for sessionID.
func (c *CodecClient) Record(ctx context.Context, sessionID string, correct bool) (Snapshot, error) {
	in := sessionRequest(sessionID)
	in.Fields["correct"] = structpb.NewBoolValue(correct)
	resp, err := c.client.Record(ctx, in)
	if err != nil {
		return Snapshot{}, fmt.Errorf("record rpc: %w", err)
	}
	return snapshotFromStruct(resp)
}

// #endregion record

// #region snapshot
// Snapshot fetches the current state of sessionID.
func (c *CodecClient) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	resp, err := c.client.Snapshot(ctx, sessionRequest(sessionID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot rpc: %w", err)
	}
	return snapshotFromStruct(resp)
}

// #endregion snapshot

// #region close-session
// CloseSession ends sessionID on the server and returns its final state.
func (c *CodecClient) CloseSession(ctx context.Context, sessionID string) (Snapshot, error) {
	resp, err := c.client.Close(ctx, sessionRequest(sessionID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("close rpc: %w", err)
	}
	return snapshotFromStruct(resp)
}

// #endregion close-session

func sessionRequest(sessionID string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"session_id": structpb.NewStringValue(sessionID),
	}}
}
