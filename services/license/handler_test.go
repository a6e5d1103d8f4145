package license

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"licensing-controlplane/pkg/middleware"
)

func newTestRouter(t *testing.T) (*gin.Engine, *testEnv) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	env := newTestService(t)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Error())
	NewHandler(env.svc).RegisterRoutes(r)

	return r, env
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createLicenseViaHTTP(t *testing.T, r *gin.Engine, tenantID string, maxApps, maxExec int64) CreateLicenseResponse {
	t.Helper()

	now := time.Now()
	w := doJSON(t, r, http.MethodPost, "/v1/licenses", "", gin.H{
		"tenant_id":              tenantID,
		"max_apps":               maxApps,
		"max_executions_per_24h": maxExec,
		"valid_from":             now.Add(-time.Minute).Format(time.RFC3339),
		"valid_to":               now.Add(24 * 365 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CreateLicenseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp
}

func TestHTTPCreateLicense(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := createLicenseViaHTTP(t, r, "acme", 2, 5)
	require.Equal(t, "acme", resp.License.TenantID)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses", "", gin.H{
		"tenant_id":              "acme",
		"max_apps":               2,
		"max_executions_per_24h": 5,
		"valid_from":             time.Now().Format(time.RFC3339),
		"valid_to":               time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHTTPCreateLicenseRejectsBadBody(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses", "", gin.H{
		"tenant_id": "acme",
		"max_apps":  0,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPRegisterRequiresBearer(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/apps/register", "", gin.H{"app_name": "svc1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/apps/register", bytes.NewReader([]byte(`{"app_name":"svc1"}`)))
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPEntitlementFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createLicenseViaHTTP(t, r, "acme", 1, 2)

	w := doJSON(t, r, http.MethodPost, "/v1/apps/register", created.Token, gin.H{"app_name": "svc1"})
	require.Equal(t, http.StatusOK, w.Code)
	var reg RegisterApplicationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	require.True(t, reg.Success)

	w = doJSON(t, r, http.MethodPost, "/v1/apps/register", created.Token, gin.H{"app_name": "svc2"})
	require.Equal(t, http.StatusOK, w.Code, "app limit is a soft outcome")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	require.False(t, reg.Success)

	for i := 0; i < 2; i++ {
		w = doJSON(t, r, http.MethodPost, "/v1/jobs/start", created.Token, gin.H{"app_name": "svc1"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/jobs/start", created.Token, gin.H{"app_name": "svc1"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/jobs/start", created.Token, gin.H{"app_name": "svc2"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPGetLicense(t *testing.T) {
	r, _ := newTestRouter(t)
	createLicenseViaHTTP(t, r, "acme", 1, 1)

	req := httptest.NewRequest(http.MethodGet, "/v1/licenses/acme", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var lic License
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lic))
	require.Equal(t, "acme", lic.TenantID)

	req = httptest.NewRequest(http.MethodGet, "/v1/licenses/globex", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPRequestIDPropagated(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/licenses/none", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), fmt.Sprintf("%q", "NOT_FOUND"))
}
