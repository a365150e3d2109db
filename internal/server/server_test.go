package server_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"VaultLedger/internal/core"
	"VaultLedger/internal/ingestion"
	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/projection"
	"VaultLedger/internal/query"
	"VaultLedger/internal/server"
	"VaultLedger/internal/testutil"
)

type harness struct {
	core    *core.DeterministicCore
	srv     *server.GRPCServer
	metrics *observability.Metrics
	reg     *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c, err := core.NewDeterministicCore(testutil.DefaultGenesis(t), core.Options{})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	health := observability.NewHealthChecker()
	health.SetReady(true)

	srv := server.NewGRPCServer("127.0.0.1:0", "127.0.0.1:0", &server.ServerDeps{
		Core:          c,
		QueryService:  query.NewQueryService(c, nil, projection.NewHarvestHistory(8)),
		IngestService: ingestion.NewGRPCIngestService(c, metrics),
		HealthChecker: health,
		Metrics:       metrics,
		Gatherer:      reg,
		Logger:        zerolog.Nop(),
	})
	return &harness{core: c, srv: srv, metrics: metrics, reg: reg}
}

func depositPayload(key string) json.RawMessage {
	return json.RawMessage(`{"idempotency_key":"` + key + `","caller":"alice","timestamp_us":1700000000000000,` +
		`"client":"client/acme","worker":"worker/base-farm","amount":"100000000000000000","min_lp":"0"}`)
}

// ============================================================================
// gRPC over bufconn
// ============================================================================

func dial(t *testing.T, h *harness) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.ServeGRPC(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPC_SubmitAndQuery(t *testing.T) {
	h := newHarness(t)
	client := server.NewVaultServiceClient(dial(t, h))
	ctx := context.Background()

	quote, err := client.EstimateDeposit(ctx, &server.EstimateDepositRequest{Worker: "worker/base-farm", Amount: fpmath.Unit.QuoRaw(10)})
	require.NoError(t, err)
	assert.Equal(t, "15791204559624730", quote.LP.String())

	resp, err := client.SubmitCommand(ctx, &server.SubmitCommandRequest{EventType: "deposit", Payload: depositPayload("g-1")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Sequence)
	assert.False(t, resp.Duplicate)
	assert.Len(t, resp.StateHash, 64)

	var outcome core.DepositOutcome
	require.NoError(t, json.Unmarshal(resp.Result, &outcome))
	assert.True(t, outcome.Position.StakedShare.Equal(quote.LP))

	dup, err := client.SubmitCommand(ctx, &server.SubmitCommandRequest{EventType: "deposit", Payload: depositPayload("g-1")})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, int64(1), h.core.GetSequence())

	pos, err := client.GetPositions(ctx, &server.GetPositionsRequest{Owner: "alice"})
	require.NoError(t, err)
	require.Len(t, pos.Positions, 1)
	assert.Equal(t, int64(1), pos.AsOfSequence)
}

func TestGRPC_ErrorsMapToStatusCodes(t *testing.T) {
	h := newHarness(t)
	client := server.NewVaultServiceClient(dial(t, h))
	ctx := context.Background()

	deposit := func(key, amount, minLP string) func() error {
		return func() error {
			_, err := client.SubmitCommand(ctx, &server.SubmitCommandRequest{
				EventType: "deposit",
				Payload: json.RawMessage(`{"idempotency_key":"` + key + `","caller":"alice","client":"client/acme",` +
					`"worker":"worker/base-farm","amount":"` + amount + `","min_lp":"` + minLP + `"}`),
			})
			return err
		}
	}

	cases := []struct {
		name   string
		call   func() error
		want   codes.Code
		reason string
	}{
		{"unauthorized mint", func() error {
			_, err := client.SubmitCommand(ctx, &server.SubmitCommandRequest{
				EventType: "mint",
				Payload:   json.RawMessage(`{"idempotency_key":"m","caller":"mallory","to":"mallory","token":"BASE","amount":"1"}`),
			})
			return err
		}, codes.PermissionDenied, "unauthorized"},
		{"slippage", deposit("s", "100000000000000000", "100000000000000000000"), codes.Aborted, "slippage exceeded"},
		{"insufficient funds", deposit("f", "1000000000000000000000", "0"), codes.FailedPrecondition, "insufficient funds"},
		{"unknown command", func() error {
			_, err := client.SubmitCommand(ctx, &server.SubmitCommandRequest{EventType: "teleport", Payload: json.RawMessage(`{}`)})
			return err
		}, codes.InvalidArgument, ""},
		{"unknown worker", func() error {
			_, err := client.EstimateDeposit(ctx, &server.EstimateDepositRequest{Worker: "worker/none", Amount: sdkmath.OneInt()})
			return err
		}, codes.NotFound, "unknown component"},
		{"no database", func() error {
			return client.Invoke(ctx, "VerifyIntegrity", &server.VerifyIntegrityRequest{}, &query.IntegrityReport{})
		}, codes.Unavailable, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.Equal(t, tc.want, status.Code(err), "%v", err)
			if tc.reason != "" {
				assert.True(t, strings.HasPrefix(status.Convert(err).Message(), tc.reason+": "), "%v", err)
			}
		})
	}
	assert.Equal(t, int64(0), h.core.GetSequence())
}

func TestGRPC_HealthAndEventLogInfo(t *testing.T) {
	h := newHarness(t)
	conn := dial(t, h)
	ctx := context.Background()

	hc := healthpb.NewHealthClient(conn)
	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	h.srv.SetServing(true)
	resp, err = hc.Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	var info server.GetEventLogInfoResponse
	require.NoError(t, server.NewVaultServiceClient(conn).Invoke(ctx, "GetEventLogInfo", &server.GetEventLogInfoRequest{}, &info))
	assert.Equal(t, int64(0), info.CoreSequence)
	assert.Len(t, info.CoreStateHash, 64)
	assert.Zero(t, info.Checkpoints)
}

// ============================================================================
// HTTP gateway
// ============================================================================

func httpServer(t *testing.T, h *harness) *httptest.Server {
	t.Helper()
	handler, err := h.srv.HTTPHandler()
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestGateway_CommandAndQuoteRoutes(t *testing.T) {
	h := newHarness(t)
	ts := httpServer(t, h)

	res, err := http.Post(ts.URL+"/v1/commands/deposit", "application/json", strings.NewReader(string(depositPayload("h-1"))))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var submit server.SubmitCommandResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&submit))
	assert.Equal(t, int64(1), submit.Sequence)

	res2, err := http.Get(ts.URL + "/v1/quotes/deposit?worker=worker/base-farm&amount=100000000000000000")
	require.NoError(t, err)
	defer res2.Body.Close()
	require.Equal(t, http.StatusOK, res2.StatusCode)
	var quote query.DepositQuote
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&quote))
	assert.Equal(t, int64(1), quote.AsOfSequence)
	assert.True(t, quote.LP.IsPositive())

	res3, err := http.Get(ts.URL + "/v1/positions/alice")
	require.NoError(t, err)
	defer res3.Body.Close()
	require.Equal(t, http.StatusOK, res3.StatusCode)
	var pos query.PositionsResponse
	require.NoError(t, json.NewDecoder(res3.Body).Decode(&pos))
	assert.Len(t, pos.Positions, 1)

	res4, err := http.Get(ts.URL + "/v1/rewards/alice?vault=vault/base")
	require.NoError(t, err)
	defer res4.Body.Close()
	require.Equal(t, http.StatusOK, res4.StatusCode)
	var rewards query.RewardsResponse
	require.NoError(t, json.NewDecoder(res4.Body).Decode(&rewards))
	assert.True(t, rewards.Pending.IsZero())
}

func TestGateway_ErrorStatuses(t *testing.T) {
	h := newHarness(t)
	ts := httpServer(t, h)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/v1/commands/teleport", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/v1/commands/mint", `{"idempotency_key":"m","caller":"mallory","to":"mallory","token":"BASE","amount":"1"}`, http.StatusForbidden},
		{http.MethodGet, "/v1/admin/integrity", "", http.StatusServiceUnavailable},
		{http.MethodGet, "/v1/quotes/deposit?worker=worker/base-farm&amount=x", "", http.StatusBadRequest},
		{http.MethodGet, "/v1/position-info/999?vault=vault/base", "", http.StatusNotFound},
		{http.MethodGet, "/v1/journals?account=user:alice&page_size=abc", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, strings.NewReader(tc.body))
			require.NoError(t, err)
			res, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, tc.want, res.StatusCode)
		})
	}
}

func TestGateway_HealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	ts := httpServer(t, h)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}

	res, err := http.Get(ts.URL + "/v1/positions/bob")
	require.NoError(t, err)
	res.Body.Close()
	families, err := h.reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if strings.HasSuffix(f.GetName(), "query_requests_total") {
			found = true
		}
	}
	assert.True(t, found)
}
