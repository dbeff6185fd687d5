package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Domenick1991/skybooking/api"
	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandlers() Handlers {
	return Handlers{
		Flights:  api.NewFlightHandler(nil),
		Bookings: api.NewBookingHandler(nil),
		Bills:    api.NewBillHandler(nil),
	}
}

func TestNewRouter_ServesSwaggerSpec(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, swaggerSpecFile), []byte(`{"swagger":"2.0"}`), 0o644))

	cfg := config.Default()
	cfg.HTTP.SwaggerDir = dir
	router := newRouter(&cfg, logger.Discard(), testHandlers(), http.NotFoundHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/swagger-spec/"+swaggerSpecFile, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"swagger":"2.0"`)
}

func TestNewRouter_BillRoutesRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	router := newRouter(&cfg, logger.Discard(), testHandlers(), http.NotFoundHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/bills/bill-1/pay", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.HTTP.CORSOrigins = []string{"https://app.example.com"}
	router := newRouter(&cfg, logger.Discard(), testHandlers(), http.NotFoundHandler())

	req := httptest.NewRequest("OPTIONS", "/api/v1/flights", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRouter_HealthzDelegatesToGateway(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	gateway := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"SERVING"}`))
	})
	router := newRouter(&cfg, logger.Discard(), testHandlers(), gateway)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SERVING")
}

func TestNewServers(t *testing.T) {
	cfg := config.Default()
	s, err := newServers(&cfg, logger.Discard(), testHandlers())
	require.NoError(t, err)
	defer s.healthConn.Close()

	assert.NotNil(t, s.grpcServer)
	assert.Equal(t, cfg.HTTP.Address, s.httpServer.Addr)
}
