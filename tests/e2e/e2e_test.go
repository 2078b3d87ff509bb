//go:build integration

package e2e

// End-to-end integration tests against real Postgres + Redis via
// testcontainers. Run with: go test -tags integration ./tests/e2e/... -v
//
// Covered flows:
//   - membership sale cycle (login → open shift → subscribe → reconcile)
//   - package check-in idempotency (duplicate idempotency key)
//   - prorated cancellation refund
//   - NO_ACTIVITY shift classification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/funkypatns/progym/internal/config"
	"github.com/funkypatns/progym/internal/infra"
	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	token  string // admin JWT
	engine *gin.Engine
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("progym_test"),
		tcPostgres.WithUsername("progym"),
		tcPostgres.WithPassword("progym"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		JWTSecret:          "test-secret-key",
		JWTExpirationHours: 8,
		JWTRefreshHours:    24,
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		WorkerPoolSize:     1,
		GymName:            "ProGym E2E",
		PDFStoragePath:     t.TempDir(),
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("progym2026"), 12)
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.User{
		Username:     "admin-e2e",
		FullName:     "Admin E2E",
		Email:        "admin@e2e.test",
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		Active:       true,
	}).Error)

	smtpCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	r := router.New(cfg, db, rdb, smtpCB)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	loginResp := do(t, srv, "POST", "/v1/auth/login",
		jsonBody(t, map[string]string{"username": "admin-e2e", "password": "progym2026"}),
		"",
	)
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	var loginBody struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, loginResp, &loginBody)
	require.NotEmpty(t, loginBody.AccessToken)

	return &testEnv{server: srv, token: loginBody.AccessToken, engine: r}
}

func (env *testEnv) createPlan(t *testing.T, body map[string]any) string {
	t.Helper()
	resp := do(t, env.server, "POST", "/v1/plans", jsonBody(t, body), env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var plan struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &plan)
	return plan.ID
}

func (env *testEnv) createMember(t *testing.T, name string) string {
	t.Helper()
	resp := do(t, env.server, "POST", "/v1/members",
		jsonBody(t, map[string]any{"full_name": name}), env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var member struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &member)
	return member.ID
}

func (env *testEnv) openShift(t *testing.T, openingCash float64) string {
	t.Helper()
	resp := do(t, env.server, "POST", "/v1/shifts/open",
		jsonBody(t, map[string]any{"machine_id": "front-desk-e2e", "opening_cash": openingCash}),
		env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var shift struct {
		ID string `json:"id"`
	}
	decodeJSON(t, resp, &shift)
	return shift.ID
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_MembershipSaleCycle(t *testing.T) {
	env := setupTestEnv(t)

	planID := env.createPlan(t, map[string]any{
		"name": "Monthly", "type": "duration", "price": 300, "duration_days": 30,
	})
	memberID := env.createMember(t, "Walk In")
	shiftID := env.openShift(t, 1000)

	// Partial payment: 120 now, 180 owed.
	subResp := do(t, env.server, "POST", "/v1/subscriptions",
		jsonBody(t, map[string]any{
			"member_id": memberID, "plan_id": planID,
			"paid_amount": 120, "method": "cash", "shift_id": shiftID,
		}), env.token)
	require.Equal(t, http.StatusCreated, subResp.StatusCode)
	var created struct {
		Subscription struct {
			ID            string `json:"id"`
			PaymentStatus string `json:"payment_status"`
			Status        string `json:"status"`
		} `json:"subscription"`
		Payment *struct {
			Amount decimal.Decimal `json:"amount"`
			Status string          `json:"status"`
		} `json:"payment"`
		PendingInvoice *struct {
			Amount decimal.Decimal `json:"amount"`
			Status string          `json:"status"`
		} `json:"pending_invoice"`
	}
	decodeJSON(t, subResp, &created)
	assert.Equal(t, "active", created.Subscription.Status)
	assert.Equal(t, "partial", created.Subscription.PaymentStatus)
	require.NotNil(t, created.Payment)
	assert.True(t, created.Payment.Amount.Equal(decimal.NewFromInt(120)))
	require.NotNil(t, created.PendingInvoice)
	assert.True(t, created.PendingInvoice.Amount.Equal(decimal.NewFromInt(180)))
	assert.Equal(t, "pending", created.PendingInvoice.Status)

	// Drawer reconciles: 1000 opening + 120 cash collected.
	closeResp := do(t, env.server, "POST", "/v1/shifts/close",
		jsonBody(t, map[string]any{"shift_id": shiftID, "closing_cash": 1120}), env.token)
	require.Equal(t, http.StatusOK, closeResp.StatusCode)
	var closed struct {
		Status         string          `json:"status"`
		ExpectedCash   decimal.Decimal `json:"expected_cash"`
		CashDifference decimal.Decimal `json:"cash_difference"`
		ActivityType   string          `json:"activity_type"`
	}
	decodeJSON(t, closeResp, &closed)
	assert.Equal(t, "closed", closed.Status)
	assert.True(t, closed.ExpectedCash.Equal(decimal.NewFromInt(1120)))
	assert.True(t, closed.CashDifference.IsZero())
	assert.Equal(t, "NORMAL", closed.ActivityType)
}

func TestE2E_CheckInIdempotency(t *testing.T) {
	env := setupTestEnv(t)

	planID := env.createPlan(t, map[string]any{
		"name": "10 Sessions", "type": "sessions", "price": 200,
		"total_sessions": 10, "session_price": 25,
	})
	memberID := env.createMember(t, "Session Member")

	assignResp := do(t, env.server, "POST", "/v1/packages",
		jsonBody(t, map[string]any{"member_id": memberID, "plan_id": planID}), env.token)
	require.Equal(t, http.StatusCreated, assignResp.StatusCode)
	var pack struct {
		ID string `json:"id"`
	}
	decodeJSON(t, assignResp, &pack)

	checkIn := func() (int, map[string]any) {
		resp := do(t, env.server, "POST", "/v1/packages/"+pack.ID+"/check-in",
			jsonBody(t, map[string]any{"idempotency_key": "e2e-checkin-0001"}), env.token)
		var body map[string]any
		decodeJSON(t, resp, &body)
		return resp.StatusCode, body
	}

	status1, first := checkIn()
	require.Equal(t, http.StatusOK, status1)
	assert.Equal(t, false, first["replay"])

	status2, second := checkIn()
	require.Equal(t, http.StatusOK, status2)
	assert.Equal(t, true, second["replay"])
	assert.Equal(t, first["payload"], second["payload"])

	// Exactly one session consumed across both calls.
	payload := second["payload"].(map[string]any)
	assert.Equal(t, float64(9), payload["remaining_sessions"])
}

func TestE2E_ProratedCancelRefund(t *testing.T) {
	env := setupTestEnv(t)

	planID := env.createPlan(t, map[string]any{
		"name": "Monthly", "type": "duration", "price": 300, "duration_days": 30,
	})
	memberID := env.createMember(t, "Leaving Soon")
	shiftID := env.openShift(t, 500)

	subResp := do(t, env.server, "POST", "/v1/subscriptions",
		jsonBody(t, map[string]any{
			"member_id": memberID, "plan_id": planID,
			"paid_amount": 300, "method": "cash", "shift_id": shiftID,
		}), env.token)
	require.Equal(t, http.StatusCreated, subResp.StatusCode)
	var created struct {
		Subscription struct {
			ID string `json:"id"`
		} `json:"subscription"`
	}
	decodeJSON(t, subResp, &created)

	// Cancelled on day one: a single started day is consumed at 10/day.
	cancelResp := do(t, env.server, "POST", "/v1/subscriptions/"+created.Subscription.ID+"/cancel",
		jsonBody(t, map[string]any{"type": "prorated", "shift_id": shiftID}), env.token)
	require.Equal(t, http.StatusOK, cancelResp.StatusCode)
	var cancelled struct {
		Subscription struct {
			Status string `json:"status"`
		} `json:"subscription"`
		RefundAmount decimal.Decimal `json:"refund_amount"`
	}
	decodeJSON(t, cancelResp, &cancelled)
	assert.Equal(t, "cancelled", cancelled.Subscription.Status)
	assert.True(t, cancelled.RefundAmount.Equal(decimal.NewFromInt(290)),
		"refund %s", cancelled.RefundAmount)

	// The shift ledger shows both sides of the movement: 300 in, 290 out.
	summaryResp := do(t, env.server, "GET", "/v1/shifts/"+shiftID+"/summary", nil, env.token)
	require.Equal(t, http.StatusOK, summaryResp.StatusCode)
	var summary struct {
		TotalCollected decimal.Decimal `json:"total_collected"`
		TotalRefunded  decimal.Decimal `json:"total_refunded"`
		NetCash        decimal.Decimal `json:"net_cash"`
	}
	decodeJSON(t, summaryResp, &summary)
	assert.True(t, summary.TotalCollected.Equal(decimal.NewFromInt(300)))
	assert.True(t, summary.TotalRefunded.Equal(decimal.NewFromInt(290)))
	assert.True(t, summary.NetCash.Equal(decimal.NewFromInt(10)))
}

func TestE2E_NoActivityShiftClose(t *testing.T) {
	env := setupTestEnv(t)
	shiftID := env.openShift(t, 250)

	closeResp := do(t, env.server, "POST", "/v1/shifts/close",
		jsonBody(t, map[string]any{"shift_id": shiftID, "closing_cash": 250}), env.token)
	require.Equal(t, http.StatusOK, closeResp.StatusCode)
	var closed struct {
		Status       string `json:"status"`
		ActivityType string `json:"activity_type"`
	}
	decodeJSON(t, closeResp, &closed)
	assert.Equal(t, "closed", closed.Status)
	assert.Equal(t, "NO_ACTIVITY", closed.ActivityType)
}
