package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/status"

	"VaultLedger/internal/observability"
	"VaultLedger/internal/types"
)

const maxCommandBody = 1 << 20

// gateway maps REST routes onto VaultServiceServer in-process. Component
// addresses contain slashes, so vaults and workers travel as query
// parameters rather than path segments.
type gateway struct {
	svc       VaultServiceServer
	mux       *runtime.ServeMux
	marshaler runtime.Marshaler
	metrics   *observability.Metrics
}

func newGateway(svc VaultServiceServer, metrics *observability.Metrics) (*runtime.ServeMux, error) {
	g := &gateway{
		svc:       svc,
		marshaler: &runtime.JSONBuiltin{},
		metrics:   metrics,
	}
	g.mux = runtime.NewServeMux(runtime.WithErrorHandler(runtime.DefaultHTTPErrorHandler))

	routes := []struct {
		method, path, name string
		h                  func(*http.Request, map[string]string) (any, error)
	}{
		{http.MethodPost, "/v1/commands/{type}", "SubmitCommand", g.submit},
		{http.MethodGet, "/v1/positions/{owner}", "GetPositions", g.positions},
		{http.MethodGet, "/v1/rewards/{owner}", "GetRewards", g.rewards},
		{http.MethodGet, "/v1/position-info/{id}", "GetPositionInfo", g.positionInfo},
		{http.MethodGet, "/v1/collectors/{collector}", "GetCollector", g.collector},
		{http.MethodGet, "/v1/collectors/{collector}/collected/{beneficiary}", "GetCollectedFees", g.collectedFees},
		{http.MethodGet, "/v1/snapshot", "GetSnapshot", g.snapshot},
		{http.MethodGet, "/v1/quotes/deposit", "EstimateDeposit", g.estimateDeposit},
		{http.MethodGet, "/v1/quotes/amounts", "EstimateAmounts", g.estimateAmounts},
		{http.MethodGet, "/v1/harvests", "GetHarvestHistory", g.harvests},
		{http.MethodGet, "/v1/journals", "ListJournals", g.journals},
		{http.MethodGet, "/v1/admin/event-log", "GetEventLogInfo", g.eventLog},
		{http.MethodGet, "/v1/admin/integrity", "VerifyIntegrity", g.integrity},
		{http.MethodPost, "/v1/admin/projections/rebuild", "RebuildProjections", g.rebuild},
	}
	for _, rt := range routes {
		if err := g.mux.HandlePath(rt.method, rt.path, g.wrap(rt.name, rt.h)); err != nil {
			return nil, err
		}
	}
	return g.mux, nil
}

func (g *gateway) wrap(name string, h func(*http.Request, map[string]string) (any, error)) runtime.HandlerFunc {
	endpoint := "http:" + name
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()
		resp, err := h(r, params)
		err = toStatus(err)
		if g.metrics != nil {
			g.metrics.QueryRequests.WithLabelValues(endpoint, status.Code(err).String()).Inc()
			g.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			runtime.HTTPError(r.Context(), g.mux, g.marshaler, w, r, err)
			return
		}
		body, err := g.marshaler.Marshal(resp)
		if err != nil {
			runtime.HTTPError(r.Context(), g.mux, g.marshaler, w, r, err)
			return
		}
		w.Header().Set("Content-Type", g.marshaler.ContentType(resp))
		_, _ = w.Write(body)
	}
}

// ============================================================================
// Handlers
// ============================================================================

func (g *gateway) submit(r *http.Request, p map[string]string) (any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrInvalidArgument, err.Error())
	}
	return g.svc.SubmitCommand(r.Context(), &SubmitCommandRequest{
		EventType: p["type"],
		Payload:   json.RawMessage(body),
	})
}

func (g *gateway) positions(r *http.Request, p map[string]string) (any, error) {
	return g.svc.GetPositions(r.Context(), &GetPositionsRequest{Owner: types.Address(p["owner"])})
}

func (g *gateway) rewards(r *http.Request, p map[string]string) (any, error) {
	return g.svc.GetRewards(r.Context(), &GetRewardsRequest{
		Vault: types.Address(r.URL.Query().Get("vault")),
		Owner: types.Address(p["owner"]),
	})
}

func (g *gateway) positionInfo(r *http.Request, p map[string]string) (any, error) {
	id, err := strconv.ParseUint(p["id"], 10, 64)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidArgument, "position id %q", p["id"])
	}
	return g.svc.GetPositionInfo(r.Context(), &GetPositionInfoRequest{
		Vault:      types.Address(r.URL.Query().Get("vault")),
		PositionID: types.PositionID(id),
	})
}

func (g *gateway) collector(r *http.Request, p map[string]string) (any, error) {
	return g.svc.GetCollector(r.Context(), &GetCollectorRequest{Collector: types.Address(p["collector"])})
}

func (g *gateway) collectedFees(r *http.Request, p map[string]string) (any, error) {
	return g.svc.GetCollectedFees(r.Context(), &GetCollectedFeesRequest{
		Collector:   types.Address(p["collector"]),
		Beneficiary: types.Address(p["beneficiary"]),
	})
}

func (g *gateway) snapshot(r *http.Request, _ map[string]string) (any, error) {
	return g.svc.GetSnapshot(r.Context(), &GetSnapshotRequest{})
}

func (g *gateway) estimateDeposit(r *http.Request, _ map[string]string) (any, error) {
	amount, err := intParam(r, "amount")
	if err != nil {
		return nil, err
	}
	return g.svc.EstimateDeposit(r.Context(), &EstimateDepositRequest{Worker: worker(r), Amount: amount})
}

func (g *gateway) estimateAmounts(r *http.Request, _ map[string]string) (any, error) {
	lp, err := intParam(r, "lp")
	if err != nil {
		return nil, err
	}
	return g.svc.EstimateAmounts(r.Context(), &EstimateAmountsRequest{Worker: worker(r), LP: lp})
}

func (g *gateway) harvests(r *http.Request, _ map[string]string) (any, error) {
	limit, err := optionalInt(r, "limit")
	if err != nil {
		return nil, err
	}
	return g.svc.GetHarvestHistory(r.Context(), &GetHarvestHistoryRequest{Worker: worker(r), Limit: int(limit)})
}

func (g *gateway) journals(r *http.Request, _ map[string]string) (any, error) {
	size, err := optionalInt(r, "page_size")
	if err != nil {
		return nil, err
	}
	after, err := optionalInt(r, "after_sequence")
	if err != nil {
		return nil, err
	}
	return g.svc.ListJournals(r.Context(), &ListJournalsRequest{Account: r.URL.Query().Get("account"), PageSize: int(size), AfterSequence: after})
}

func (g *gateway) eventLog(r *http.Request, _ map[string]string) (any, error) {
	return g.svc.GetEventLogInfo(r.Context(), &GetEventLogInfoRequest{})
}

func (g *gateway) integrity(r *http.Request, _ map[string]string) (any, error) {
	return g.svc.VerifyIntegrity(r.Context(), &VerifyIntegrityRequest{})
}

func (g *gateway) rebuild(r *http.Request, _ map[string]string) (any, error) {
	return g.svc.RebuildProjections(r.Context(), &RebuildProjectionsRequest{})
}

func worker(r *http.Request) types.Address {
	return types.Address(r.URL.Query().Get("worker"))
}

func intParam(r *http.Request, name string) (sdkmath.Int, error) {
	raw := r.URL.Query().Get(name)
	v, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidArgument, "%s: invalid integer %q", name, raw)
	}
	return v, nil
}

func optionalInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errorsmod.Wrapf(types.ErrInvalidArgument, "%s: invalid integer %q", name, raw)
	}
	return v, nil
}
