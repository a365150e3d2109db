package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"VaultLedger/internal/core"
	"VaultLedger/internal/ingestion"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/persistence"
	"VaultLedger/internal/query"
	"VaultLedger/internal/types"
)

// CoreInfo is the part of the core the admin endpoints report on.
type CoreInfo interface {
	GetSequence() int64
	GetStateHash() [32]byte
}

var _ CoreInfo = (*core.DeterministicCore)(nil)

// ServerDeps holds everything the services need. Store and Rebuild are nil
// when running without Postgres.
type ServerDeps struct {
	Core          CoreInfo
	QueryService  *query.QueryService
	IngestService *ingestion.GRPCIngestService
	Store         *persistence.CheckpointStore
	// Rebuild clears and replays the projection tables, returning the
	// number of commands replayed.
	Rebuild        func(ctx context.Context) (int64, error)
	ProjectionSeq  func() int64
	HealthChecker  *observability.HealthChecker
	Metrics        *observability.Metrics
	Gatherer       prometheus.Gatherer
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// GRPCServer serves VaultService over gRPC and the same methods as
// HTTP/JSON through a grpc-gateway mux.
type GRPCServer struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
	service    *vaultService
	grpcAddr   string
	httpAddr   string
	deps       *ServerDeps
	logger     zerolog.Logger
}

// NewGRPCServer creates the server with every service registered.
func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) *GRPCServer {
	svc := &vaultService{deps: deps}
	s := &GRPCServer{
		service:  svc,
		grpcAddr: grpcAddr,
		httpAddr: httpAddr,
		deps:     deps,
		logger:   deps.Logger,
	}

	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.observe),
	)
	RegisterVaultServiceServer(s.grpcServer, svc)

	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetServing flips the gRPC health status of the vault service.
func (s *GRPCServer) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Service exposes the service implementation for in-process callers.
func (s *GRPCServer) Service() VaultServiceServer { return s.service }

// observe records request metrics, applies the request timeout and maps
// domain errors to status codes.
func (s *GRPCServer) observe(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	if s.deps.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.RequestTimeout)
		defer cancel()
	}
	resp, err := handler(ctx, req)
	err = toStatus(err)

	if m := s.deps.Metrics; m != nil {
		m.QueryRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		m.QueryDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Debug().Str("method", info.FullMethod).Err(err).Msg("request failed")
	}
	return resp, err
}

// StartGRPC serves gRPC until ctx is cancelled.
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.ServeGRPC(ctx, lis)
}

// ServeGRPC serves gRPC on lis until ctx is cancelled.
func (s *GRPCServer) ServeGRPC(ctx context.Context, lis net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		s.logger.Info().Msg("gRPC server shutting down")
		s.grpcServer.GracefulStop()
	})
	defer stop()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// HTTPHandler is the HTTP surface: health, metrics and the REST gateway.
func (s *GRPCServer) HTTPHandler() (http.Handler, error) {
	gw, err := newGateway(s.service, s.deps.Metrics)
	if err != nil {
		return nil, err
	}
	httpMux := http.NewServeMux()
	if hc := s.deps.HealthChecker; hc != nil {
		httpMux.HandleFunc("/healthz", hc.LivenessHandler)
		httpMux.HandleFunc("/readyz", hc.ReadinessHandler)
	}
	if s.deps.Gatherer != nil {
		httpMux.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
	httpMux.Handle("/", gw)
	return httpMux, nil
}

// StartHTTPGateway serves the HTTP surface until ctx is cancelled.
func (s *GRPCServer) StartHTTPGateway(ctx context.Context) error {
	handler, err := s.HTTPHandler()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		s.logger.Info().Msg("HTTP gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	})
	defer stop()

	s.logger.Info().Str("addr", s.httpAddr).Msg("HTTP gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// VaultService implementation
// ============================================================================

type vaultService struct {
	deps *ServerDeps
}

var _ VaultServiceServer = (*vaultService)(nil)

func (s *vaultService) SubmitCommand(ctx context.Context, req *SubmitCommandRequest) (*SubmitCommandResponse, error) {
	if req.EventType == "" {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "event_type is required")
	}
	if s.deps.IngestService == nil {
		return nil, errorsmod.Wrap(types.ErrUnknownComponent, "command ingest is disabled")
	}
	out, err := s.deps.IngestService.Submit(ctx, req.EventType, req.Payload)
	if err != nil {
		return nil, err
	}
	if out.Duplicate {
		return &SubmitCommandResponse{Duplicate: true}, nil
	}
	return &SubmitCommandResponse{
		Sequence:  out.Envelope.Sequence,
		StateHash: hex.EncodeToString(out.Envelope.StateHash[:]),
		Result:    out.Envelope.Result,
	}, nil
}

func (s *vaultService) GetPositions(ctx context.Context, req *GetPositionsRequest) (*query.PositionsResponse, error) {
	return s.deps.QueryService.GetPositions(ctx, req.Owner)
}

func (s *vaultService) GetRewards(ctx context.Context, req *GetRewardsRequest) (*query.RewardsResponse, error) {
	if req.Vault == "" || req.Owner == "" {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "vault and owner are required")
	}
	return s.deps.QueryService.GetRewards(ctx, req.Vault, req.Owner)
}

func (s *vaultService) GetCollector(ctx context.Context, req *GetCollectorRequest) (*query.CollectorResponse, error) {
	return s.deps.QueryService.GetCollector(ctx, req.Collector)
}

func (s *vaultService) GetSnapshot(ctx context.Context, _ *GetSnapshotRequest) (*GetSnapshotResponse, error) {
	snap, seq, err := s.deps.QueryService.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &GetSnapshotResponse{Snapshot: snap, AsOfSequence: seq}, nil
}

func (s *vaultService) EstimateDeposit(ctx context.Context, req *EstimateDepositRequest) (*query.DepositQuote, error) {
	return s.deps.QueryService.EstimateDeposit(ctx, req.Worker, req.Amount)
}

func (s *vaultService) EstimateAmounts(ctx context.Context, req *EstimateAmountsRequest) (*query.AmountsQuote, error) {
	return s.deps.QueryService.EstimateAmounts(ctx, req.Worker, req.LP)
}

func (s *vaultService) GetPositionInfo(ctx context.Context, req *GetPositionInfoRequest) (*query.PositionInfoResponse, error) {
	return s.deps.QueryService.GetPositionInfo(ctx, req.Vault, req.PositionID)
}

func (s *vaultService) GetHarvestHistory(ctx context.Context, req *GetHarvestHistoryRequest) (*query.HarvestsResponse, error) {
	return s.deps.QueryService.GetHarvestHistory(ctx, req.Worker, req.Limit)
}

func (s *vaultService) ListJournals(ctx context.Context, req *ListJournalsRequest) (*ListJournalsResponse, error) {
	if req.Account == "" {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, "account is required")
	}
	entries, err := s.deps.QueryService.GetJournalHistory(ctx, req.Account, req.PageSize, req.AfterSequence)
	if err != nil {
		return nil, err
	}
	return &ListJournalsResponse{Journals: entries}, nil
}

func (s *vaultService) GetCollectedFees(ctx context.Context, req *GetCollectedFeesRequest) (*query.CollectedTotal, error) {
	return s.deps.QueryService.GetCollectedFees(ctx, req.Collector, req.Beneficiary)
}

func (s *vaultService) GetEventLogInfo(ctx context.Context, _ *GetEventLogInfoRequest) (*GetEventLogInfoResponse, error) {
	resp := &GetEventLogInfoResponse{}
	if c := s.deps.Core; c != nil {
		hash := c.GetStateHash()
		resp.CoreSequence = c.GetSequence()
		resp.CoreStateHash = hex.EncodeToString(hash[:])
	}
	if s.deps.ProjectionSeq != nil {
		resp.ProjectionSynced = s.deps.ProjectionSeq()
	}
	if s.deps.Store == nil {
		return resp, nil
	}

	last, err := s.deps.Store.GetLatestSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest sequence: %w", err)
	}
	resp.LastSequence = last

	cps, err := s.deps.Store.Checkpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkpoints: %w", err)
	}
	resp.Checkpoints = len(cps)
	for _, cp := range cps {
		resp.LastCheckpoint = cp.Sequence
		if cp.Verified {
			resp.VerifiedThrough = cp.Sequence
		}
	}
	return resp, nil
}

func (s *vaultService) VerifyIntegrity(ctx context.Context, _ *VerifyIntegrityRequest) (*query.IntegrityReport, error) {
	return s.deps.QueryService.VerifyIntegrity(ctx)
}

func (s *vaultService) RebuildProjections(ctx context.Context, _ *RebuildProjectionsRequest) (*RebuildProjectionsResponse, error) {
	if s.deps.Rebuild == nil {
		return nil, query.ErrNoDatabase
	}
	n, err := s.deps.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild projections: %w", err)
	}
	return &RebuildProjectionsResponse{Replayed: n}, nil
}
