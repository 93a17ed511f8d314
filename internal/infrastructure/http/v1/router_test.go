package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/core/apperror"
	appctx "invoicer/internal/core/context"
	"invoicer/internal/core/numerator"
	"invoicer/internal/core/retry"
	"invoicer/internal/core/tx"
	"invoicer/internal/domain/auth"
	"invoicer/internal/domain/numbering"
	"invoicer/internal/domain/vat"
	"invoicer/pkg/logger"
)

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeDB) Stat() *pgxpool.Stat { return nil }

type testEnv struct {
	router http.Handler
	jwt    *auth.JWTService
	gen    *numerator.MockGenerator
	txm    *tx.FakeManager
	db     *fakeDB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	gen := &numerator.MockGenerator{}
	txm := &tx.FakeManager{}
	clock := numerator.FixedClock(time.Date(2025, time.May, 14, 10, 0, 0, 0, time.UTC))
	numbers := numbering.NewService(gen, txm, clock, numbering.Config{})

	vatSvc, err := vat.NewService(vat.Config{HomeCountry: "DE"})
	require.NoError(t, err)

	db := &fakeDB{}
	router := NewRouter(RouterConfig{
		DB:           db,
		AppName:      "invoicer",
		Version:      "test",
		Logger:       logger.Nop(),
		JWTValidator: jwtSvc,
		Retry:        retry.Policy{MaxAttempts: 3},
		Numbers:      numbers,
		VAT:          vatSvc,
	})

	return &testEnv{router: router, jwt: jwtSvc, gen: gen, txm: txm, db: db}
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	token, _, err := e.jwt.GenerateAccessToken(appctx.UserContext{UserID: "u-1", Role: role})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNumberRoutes_Sequential(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, numerator.RoleAccountant)

	rec := env.do(t, http.MethodGet, "/api/v1/numbers/invoice", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "INV2505000001", decodeBody(t, rec)["invoiceNumber"])

	rec = env.do(t, http.MethodGet, "/api/v1/numbers/invoice", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INV2505000002", decodeBody(t, rec)["invoiceNumber"])

	rec = env.do(t, http.MethodGet, "/api/v1/numbers/item", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ITM2505000001", decodeBody(t, rec)["itemNumber"])

	assert.Equal(t, 3, env.txm.Committed)
}

func TestNumberRoutes_UserNumberPerRole(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, numerator.RoleSuperAdmin)

	rec := env.do(t, http.MethodGet, "/api/v1/numbers/user?role=customer", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CUS000001", decodeBody(t, rec)["userNumber"])

	rec = env.do(t, http.MethodGet, "/api/v1/numbers/user?role=SUPER_ADMIN", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SAD000001", decodeBody(t, rec)["userNumber"])

	rec = env.do(t, http.MethodGet, "/api/v1/numbers/user?role=GUEST", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/numbers/user", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNumberRoutes_RetryThenSuccess(t *testing.T) {
	env := newTestEnv(t)
	calls := 0
	env.gen.NextFunc = func(ctx context.Context, scope numerator.Scope, opts *numerator.Options) (string, error) {
		calls++
		if calls == 1 {
			return "", apperror.NewDuplicateNumber("invoices_invoice_number_key", errors.New("unique violation"))
		}
		return scope.Format(7)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/numbers/invoice", env.token(t, numerator.RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INV2505000007", decodeBody(t, rec)["invoiceNumber"])
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, env.txm.RolledBack)
}

func TestNumberRoutes_RetriesExhausted(t *testing.T) {
	env := newTestEnv(t)
	calls := 0
	env.gen.NextFunc = func(ctx context.Context, scope numerator.Scope, opts *numerator.Options) (string, error) {
		calls++
		return "", apperror.NewTransient(errors.New("serialization failure"))
	}

	rec := env.do(t, http.MethodGet, "/api/v1/numbers/item", env.token(t, numerator.RoleAdmin), "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	body := decodeBody(t, rec)
	assert.Equal(t, apperror.CodeNumberGenerationFailed, body["code"])
	assert.Equal(t, "Could not generate number, try again", body["message"])
	assert.Equal(t, 3, calls)
}

func TestNumberRoutes_NonRetryableNotRepeated(t *testing.T) {
	env := newTestEnv(t)
	calls := 0
	env.gen.NextFunc = func(ctx context.Context, scope numerator.Scope, opts *numerator.Options) (string, error) {
		calls++
		return "", apperror.NewMalformedNumber(scope.Key(), "INV25XX")
	}

	rec := env.do(t, http.MethodGet, "/api/v1/numbers/invoice", env.token(t, numerator.RoleAdmin), "")
	assert.Equal(t, 1, calls)
	assert.Equal(t, apperror.CodeMalformedNumber, decodeBody(t, rec)["code"])
}

func TestNumberRoutes_EmptyNumberIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.gen.NextFunc = func(ctx context.Context, scope numerator.Scope, opts *numerator.Options) (string, error) {
		return "", nil
	}

	rec := env.do(t, http.MethodGet, "/api/v1/numbers/invoice", env.token(t, numerator.RoleAdmin), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNumberRoutes_Authorization(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/numbers/invoice", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/numbers/invoice", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/numbers/invoice", env.token(t, numerator.RoleCustomer), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// accountants may not mint user numbers
	rec = env.do(t, http.MethodGet, "/api/v1/numbers/user?role=ADMIN", env.token(t, numerator.RoleAccountant), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Zero(t, env.txm.Begun)
}

func TestVATRoutes(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, numerator.RoleCustomer)

	rec := env.do(t, http.MethodGet, "/api/v1/vat/rates?country=fr", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rates vat.CountryRates
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rates))
	assert.Equal(t, "FR", rates.Country)
	assert.True(t, rates.Standard.Equal(decimal.NewFromInt(20)))

	rec = env.do(t, http.MethodGet, "/api/v1/vat/rates?country=ZZ", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/vat/quote", token,
		`{"customer":{"country":"DE"},"lines":[{"net":"100.00","category":"standard"},{"net":"10.00","category":"reduced"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var quote vat.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, vat.TreatmentStandard, quote.Treatment)
	assert.True(t, quote.VATTotal.Equal(decimal.RequireFromString("19.70")), quote.VATTotal.String())
	assert.True(t, quote.GrossTotal.Equal(decimal.RequireFromString("129.70")), quote.GrossTotal.String())

	rec = env.do(t, http.MethodPost, "/api/v1/vat/quote", token, `{"customer":{"country":"DE"},"lines":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	env.db.pingErr = errors.New("connection refused")
	rec = env.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/health/info", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decodeBody(t, rec)["version"])
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", rec.Header().Get("X-Trace-ID"))
}
