package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wildflourbakery/backend/order-service/internal/models"
)

// setGinTestMode ensures Gin does not write noisy logs during tests
func setGinTestMode() { gin.SetMode(gin.TestMode) }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestRespondError_FailureClasses(t *testing.T) {
	setGinTestMode()
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation maps to 400", models.ErrOrderNotPending, http.StatusBadRequest},
		{"negative restock maps to 400", models.ErrInvalidStock, http.StatusBadRequest},
		{"wrapped validation maps to 400", fmt.Errorf("order 7: %w", models.ErrInsufficientStock), http.StatusBadRequest},
		{"permission maps to 403", models.ErrAdminMismatch, http.StatusForbidden},
		{"not found maps to 404", models.ErrOrderNotFound, http.StatusNotFound},
		{"unknown maps to 500", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/boom", func(c *gin.Context) { respondError(c, "Failed", tt.err) })

			req := httptest.NewRequest(http.MethodGet, "/boom", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestRespondError_InternalErrorsAreOpaque(t *testing.T) {
	setGinTestMode()
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		respondError(c, "Failed", errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body.Message)
	assert.NotContains(t, body.Message, "5432")
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	setGinTestMode()
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/secure", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidJWT(t *testing.T) {
	setGinTestMode()
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/secure", func(c *gin.Context) {
		userID, ok := GetUserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	token := signToken(t, "test-secret", jwt.MapClaims{
		"user_id": 5,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":5`)
}

func TestAuthMiddleware_RejectsWrongSecret(t *testing.T) {
	setGinTestMode()
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/secure", func(c *gin.Context) { c.Status(http.StatusOK) })

	token := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": 5,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminMiddleware_RequiresAdminRole(t *testing.T) {
	setGinTestMode()
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	r := gin.New()
	r.Use(AuthMiddleware(), AdminMiddleware())
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	buyer := signToken(t, "test-secret", jwt.MapClaims{
		"user_id": 5,
		"role":    "Customer",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+buyer)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := signToken(t, "test-secret", jwt.MapClaims{
		"user_id": 9,
		"role":    "Admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleCheckoutWebhook_IgnoresOtherEventTypes(t *testing.T) {
	setGinTestMode()
	h := NewHandler(nil)
	r := gin.New()
	r.POST("/webhooks/stripe", h.HandleCheckoutWebhook)

	payload := `{"type": "payment_intent.created", "data": {"object": {}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestHandleCheckoutWebhook_RejectsMalformedPayload(t *testing.T) {
	setGinTestMode()
	h := NewHandler(nil)
	r := gin.New()
	r.POST("/webhooks/stripe", h.HandleCheckoutWebhook)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"type": `))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCheckoutWebhook_RejectsBadMetadata(t *testing.T) {
	setGinTestMode()
	h := NewHandler(nil)
	r := gin.New()
	r.POST("/webhooks/stripe", h.HandleCheckoutWebhook)

	payload := `{
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test", "metadata": {"method": "TELEPORT", "user": "5", "address_id": "42"}}}
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
