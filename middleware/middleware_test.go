package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-storefront/models"
	"go-storefront/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"golang.org/x/time/rate"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["message"]
}

func TestProtect(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	tokens := utils.NewTokenManager("secret", time.Hour)

	mt.Run("no token", func(mt *mtest.T) {
		auth := NewAuth(mt.DB, tokens)
		rec := httptest.NewRecorder()
		auth.Protect(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/profile", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Not authorized, no token", message(t, rec))
	})

	mt.Run("bad token", func(mt *mtest.T) {
		auth := NewAuth(mt.DB, tokens)
		req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")

		rec := httptest.NewRecorder()
		auth.Protect(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Not authorized, token failed", message(t, rec))
	})

	mt.Run("reset token is not a session", func(mt *mtest.T) {
		auth := NewAuth(mt.DB, tokens)
		token, err := tokens.GenerateResetToken(primitive.NewObjectID().Hex(), time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()
		auth.Protect(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	mt.Run("cookie attaches user", func(mt *mtest.T) {
		auth := NewAuth(mt.DB, tokens)
		id := primitive.NewObjectID()
		token, err := tokens.GenerateJWT(id.Hex())
		require.NoError(t, err)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ecommerce.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Jane"},
			{Key: "isAdmin", Value: true},
		}))

		var seen *models.User
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = UserFromContext(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()
		auth.Protect(next).ServeHTTP(rec, req)

		require.NotNil(t, seen)
		assert.Equal(t, id, seen.ID)
		assert.True(t, seen.IsAdmin)
	})
}

func TestAdmin(t *testing.T) {
	auth := &Auth{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), &models.User{Name: "customer"}))
	auth.Admin(okHandler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized as admin", message(t, rec))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), &models.User{IsAdmin: true}))
	auth.Admin(okHandler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", TokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
	assert.Equal(t, "cookie-token", TokenFromRequest(req))

	assert.Empty(t, TokenFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestCheckObjectID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "123"})
	CheckObjectID(okHandler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid ObjectId of: 123", message(t, rec))

	rec = httptest.NewRecorder()
	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": primitive.NewObjectID().Hex()})
	CheckObjectID(okHandler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2, nil)
	h := rl.Limit(okHandler)

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/users/auth", nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1, nil)
	rl.getVisitor("10.0.0.1")
	require.Len(t, rl.visitors, 1)

	rl.evict(time.Now().Add(time.Minute))
	assert.Len(t, rl.visitors, 1)

	rl.evict(time.Now().Add(time.Hour))
	assert.Empty(t, rl.visitors)
}

func TestClientIPIgnoresForwardedHeaderByDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	assert.Equal(t, "192.0.2.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "192.0.2.7", ClientIP(req))
	assert.Equal(t, "192.0.2.7", TrustedProxies(nil).ClientIP(req))
}

func TestClientIPBehindTrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.7"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", proxies.ClientIP(req))

	req.RemoteAddr = "198.51.100.20:1234"
	assert.Equal(t, "198.51.100.20", proxies.ClientIP(req))

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestRateLimiterIgnoresSpoofedForwardedFor(t *testing.T) {
	h := NewRateLimiter(rate.Every(time.Hour), 1, nil).Limit(okHandler)

	call := func(fwd string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/users/auth", nil)
		req.RemoteAddr = "192.0.2.7:5000"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.3"))
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics)
	router.Handle("/api/metrics-test/{id}", okHandler).Methods("GET")

	before := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/api/metrics-test/{id}", "200"))
	for _, id := range []string{"a", "b"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/metrics-test/"+id, nil))
	}
	after := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/api/metrics-test/{id}", "200"))

	assert.Equal(t, 2.0, after-before)
}

func TestVisitTrackerSkipsFailedRequests(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("failed login records nothing", func(mt *mtest.T) {
		vt := NewVisitTracker(mt.DB)
		failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		rec := httptest.NewRecorder()
		vt.Track(failing).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users/auth", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	mt.Run("successful login records a visit", func(mt *mtest.T) {
		vt := NewVisitTracker(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		rec := httptest.NewRecorder()
		vt.Track(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users/auth", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
