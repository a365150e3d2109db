package server

import (
	"context"
	"encoding/json"

	sdkmath "cosmossdk.io/math"
	"google.golang.org/grpc"

	"VaultLedger/internal/query"
	"VaultLedger/internal/state"
	"VaultLedger/internal/types"
)

const ServiceName = "vaultledger.v1.VaultService"

// ============================================================================
// Messages
// ============================================================================

type SubmitCommandRequest struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type SubmitCommandResponse struct {
	Sequence  int64           `json:"sequence,omitempty"`
	Duplicate bool            `json:"duplicate"`
	StateHash string          `json:"state_hash,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

type GetPositionsRequest struct {
	Owner types.Address `json:"owner"`
}

type GetRewardsRequest struct {
	Vault types.Address `json:"vault"`
	Owner types.Address `json:"owner"`
}

type GetCollectorRequest struct {
	Collector types.Address `json:"collector"`
}

type GetSnapshotRequest struct{}

type GetSnapshotResponse struct {
	Snapshot     state.Snapshot `json:"snapshot"`
	AsOfSequence int64          `json:"as_of_sequence"`
}

type EstimateDepositRequest struct {
	Worker types.Address `json:"worker"`
	Amount sdkmath.Int   `json:"amount"`
}

type EstimateAmountsRequest struct {
	Worker types.Address `json:"worker"`
	LP     sdkmath.Int   `json:"lp"`
}

type GetPositionInfoRequest struct {
	Vault      types.Address    `json:"vault"`
	PositionID types.PositionID `json:"position_id"`
}

type GetHarvestHistoryRequest struct {
	Worker types.Address `json:"worker"`
	Limit  int           `json:"limit"`
}

type ListJournalsRequest struct {
	Account       string `json:"account"`
	PageSize      int    `json:"page_size"`
	AfterSequence int64  `json:"after_sequence"`
}

type ListJournalsResponse struct {
	Journals []query.JournalHistoryEntry `json:"journals"`
}

type GetCollectedFeesRequest struct {
	Collector   types.Address `json:"collector"`
	Beneficiary types.Address `json:"beneficiary"`
}

type GetEventLogInfoRequest struct{}

type GetEventLogInfoResponse struct {
	LastSequence     int64  `json:"last_sequence"`
	CoreSequence     int64  `json:"core_sequence"`
	CoreStateHash    string `json:"core_state_hash"`
	Checkpoints      int    `json:"checkpoints"`
	LastCheckpoint   int64  `json:"last_checkpoint,omitempty"`
	VerifiedThrough  int64  `json:"verified_through,omitempty"`
	ProjectionSynced int64  `json:"projection_synced"`
}

type VerifyIntegrityRequest struct{}

type RebuildProjectionsRequest struct{}

type RebuildProjectionsResponse struct {
	Replayed int64 `json:"replayed"`
}

// ============================================================================
// Service
// ============================================================================

// VaultServiceServer is the gRPC surface: one command entry point plus
// read-only queries and admin operations.
type VaultServiceServer interface {
	SubmitCommand(context.Context, *SubmitCommandRequest) (*SubmitCommandResponse, error)

	GetPositions(context.Context, *GetPositionsRequest) (*query.PositionsResponse, error)
	GetRewards(context.Context, *GetRewardsRequest) (*query.RewardsResponse, error)
	GetCollector(context.Context, *GetCollectorRequest) (*query.CollectorResponse, error)
	GetSnapshot(context.Context, *GetSnapshotRequest) (*GetSnapshotResponse, error)
	EstimateDeposit(context.Context, *EstimateDepositRequest) (*query.DepositQuote, error)
	EstimateAmounts(context.Context, *EstimateAmountsRequest) (*query.AmountsQuote, error)
	GetPositionInfo(context.Context, *GetPositionInfoRequest) (*query.PositionInfoResponse, error)
	GetHarvestHistory(context.Context, *GetHarvestHistoryRequest) (*query.HarvestsResponse, error)
	ListJournals(context.Context, *ListJournalsRequest) (*ListJournalsResponse, error)
	GetCollectedFees(context.Context, *GetCollectedFeesRequest) (*query.CollectedTotal, error)

	GetEventLogInfo(context.Context, *GetEventLogInfoRequest) (*GetEventLogInfoResponse, error)
	VerifyIntegrity(context.Context, *VerifyIntegrityRequest) (*query.IntegrityReport, error)
	RebuildProjections(context.Context, *RebuildProjectionsRequest) (*RebuildProjectionsResponse, error)
}

// unary builds the method descriptor for one request/response pair.
func unary[Req, Resp any](name string, call func(VaultServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VaultServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VaultServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// VaultServiceDesc describes VaultServiceServer for grpc.Server. Messages
// travel with the JSON codec.
var VaultServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VaultServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SubmitCommand", VaultServiceServer.SubmitCommand),
		unary("GetPositions", VaultServiceServer.GetPositions),
		unary("GetRewards", VaultServiceServer.GetRewards),
		unary("GetCollector", VaultServiceServer.GetCollector),
		unary("GetSnapshot", VaultServiceServer.GetSnapshot),
		unary("EstimateDeposit", VaultServiceServer.EstimateDeposit),
		unary("EstimateAmounts", VaultServiceServer.EstimateAmounts),
		unary("GetPositionInfo", VaultServiceServer.GetPositionInfo),
		unary("GetHarvestHistory", VaultServiceServer.GetHarvestHistory),
		unary("ListJournals", VaultServiceServer.ListJournals),
		unary("GetCollectedFees", VaultServiceServer.GetCollectedFees),
		unary("GetEventLogInfo", VaultServiceServer.GetEventLogInfo),
		unary("VerifyIntegrity", VaultServiceServer.VerifyIntegrity),
		unary("RebuildProjections", VaultServiceServer.RebuildProjections),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vaultledger/v1/vault.proto",
}

// RegisterVaultServiceServer registers srv on s.
func RegisterVaultServiceServer(s grpc.ServiceRegistrar, srv VaultServiceServer) {
	s.RegisterService(&VaultServiceDesc, srv)
}

// VaultServiceClient calls the service over a connection using the JSON
// codec.
type VaultServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewVaultServiceClient(cc grpc.ClientConnInterface) *VaultServiceClient {
	return &VaultServiceClient{cc: cc}
}

// Invoke calls method with in and decodes the reply into out.
func (c *VaultServiceClient) Invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *VaultServiceClient) SubmitCommand(ctx context.Context, in *SubmitCommandRequest, opts ...grpc.CallOption) (*SubmitCommandResponse, error) {
	out := new(SubmitCommandResponse)
	if err := c.Invoke(ctx, "SubmitCommand", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VaultServiceClient) EstimateDeposit(ctx context.Context, in *EstimateDepositRequest, opts ...grpc.CallOption) (*query.DepositQuote, error) {
	out := new(query.DepositQuote)
	if err := c.Invoke(ctx, "EstimateDeposit", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VaultServiceClient) GetPositions(ctx context.Context, in *GetPositionsRequest, opts ...grpc.CallOption) (*query.PositionsResponse, error) {
	out := new(query.PositionsResponse)
	if err := c.Invoke(ctx, "GetPositions", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
