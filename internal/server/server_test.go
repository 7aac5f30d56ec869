package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/adscopehq/adscope/internal/config"
	quotadomain "github.com/adscopehq/adscope/internal/quota/domain"
	reportcachedomain "github.com/adscopehq/adscope/internal/reportcache/domain"
	"github.com/adscopehq/adscope/internal/userctx"
)

const testJWTSecret = "test-secret"

type fakeQuotaService struct {
	snapshot    *quotadomain.Snapshot
	recorded    []quotadomain.RecordUsageRequest
	recordErr   error
	checkCalled bool
}

func (f *fakeQuotaService) CheckLimit(ctx context.Context, req quotadomain.CheckLimitRequest) (*quotadomain.Snapshot, error) {
	f.checkCalled = true
	if _, ok := userctx.UserIDFromContext(ctx); !ok {
		return nil, quotadomain.ErrInvalidUser
	}
	return f.snapshot, nil
}

func (f *fakeQuotaService) RecordUsage(ctx context.Context, req quotadomain.RecordUsageRequest) (*quotadomain.RecordUsageResponse, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.recorded = append(f.recorded, req)
	return &quotadomain.RecordUsageResponse{
		ID:        "1",
		WeekStart: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeQuotaService) List(ctx context.Context, req quotadomain.ListUsageRequest) (*quotadomain.ListUsageResponse, error) {
	return &quotadomain.ListUsageResponse{}, nil
}

type fakeCacheService struct {
	view   *reportcachedomain.CachedReportView
	getErr error
}

func (f *fakeCacheService) Get(ctx context.Context, req reportcachedomain.GetRequest) (*reportcachedomain.CachedReportView, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.view, nil
}

func (f *fakeCacheService) Set(ctx context.Context, req reportcachedomain.SetRequest) (bool, error) {
	return true, nil
}

func (f *fakeCacheService) ClearUser(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

func (f *fakeCacheService) CleanupExpired(ctx context.Context) (int64, error) {
	return 2, nil
}

func newTestServer(t *testing.T, quotaSvc quotadomain.Service, cacheSvc reportcachedomain.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:         engine,
		cfg:            config.Config{AuthJWTSecret: testJWTSecret},
		quotaSvc:       quotaSvc,
		reportCacheSvc: cacheSvc,
	}
	srv.registerAPIRoutes()
	srv.registerAdminRoutes()
	return srv
}

func bearerToken(t *testing.T, userID snowflake.ID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func TestCheckUsageLimitRequiresAuth(t *testing.T) {
	srv := newTestServer(t, &fakeQuotaService{}, &fakeCacheService{})

	req := httptest.NewRequest(http.MethodGet, "/api/usage/limit", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCheckUsageLimitExhaustedIsOK(t *testing.T) {
	quotaSvc := &fakeQuotaService{
		snapshot: &quotadomain.Snapshot{
			CurrentUsage: 100,
			Limit:        100,
			Remaining:    0,
			CanGenerate:  false,
		},
	}
	srv := newTestServer(t, quotaSvc, &fakeCacheService{})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/usage/limit", nil)
	req.Header.Set("Authorization", bearerToken(t, node.Generate()))
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for exhausted quota: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data quotadomain.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.CanGenerate {
		t.Fatal("expected can_generate=false")
	}
	if !quotaSvc.checkCalled {
		t.Fatal("expected quota service to be called")
	}
}

func TestRecordUsageRejectsInvalidReportType(t *testing.T) {
	quotaSvc := &fakeQuotaService{recordErr: quotadomain.ErrInvalidReportType}
	srv := newTestServer(t, quotaSvc, &fakeCacheService{})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	payload := bytes.NewBufferString(`{"report_type":"csv_export"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/usage", payload)
	req.Header.Set("Authorization", bearerToken(t, node.Generate()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestUserMismatchIsForbidden(t *testing.T) {
	quotaSvc := &fakeQuotaService{recordErr: quotadomain.ErrUserMismatch}
	srv := newTestServer(t, quotaSvc, &fakeCacheService{})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	payload := bytes.NewBufferString(`{"report_type":"ai_analysis","user_id":"42"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/usage", payload)
	req.Header.Set("Authorization", bearerToken(t, node.Generate()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestGetCachedReportMissIsNotFound(t *testing.T) {
	cacheSvc := &fakeCacheService{getErr: reportcachedomain.ErrCacheMiss}
	srv := newTestServer(t, &fakeQuotaService{}, cacheSvc)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/reports/cache?account_id=123&time_range=LAST_30_DAYS", nil)
	req.Header.Set("Authorization", bearerToken(t, node.Generate()))
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminCleanupReturnsCount(t *testing.T) {
	srv := newTestServer(t, &fakeQuotaService{}, &fakeCacheService{})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/cache/cleanup", nil)
	req.Header.Set("Authorization", bearerToken(t, node.Generate()))
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data struct {
			Removed int64 `json:"removed"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.Removed != 2 {
		t.Fatalf("removed = %d, want 2", body.Data.Removed)
	}
}

func TestRejectsNonBearerAuth(t *testing.T) {
	srv := newTestServer(t, &fakeQuotaService{}, &fakeCacheService{})

	req := httptest.NewRequest(http.MethodGet, "/api/usage/limit", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
