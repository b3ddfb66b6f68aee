package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/logger"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(logger.Replace(zap.New(core).Sugar()))
	return logs
}

func TestRequestLogging(t *testing.T) {
	setup := func(status int) *gin.Engine {
		r := gin.New()
		r.Use(RequestLogging())
		r.GET("/things/:id", func(c *gin.Context) {
			c.Set("userID", "user-1")
			c.JSON(status, gin.H{"request_id": RequestID(c)})
		})
		return r
	}

	t.Run("assigns an id and logs the route", func(t *testing.T) {
		logs := observeLogs(t)
		rec := httptest.NewRecorder()
		setup(http.StatusOK).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/42", http.NoBody))

		id := rec.Header().Get("X-Request-ID")
		require.NotEmpty(t, id)
		assert.Equal(t, id, parseBody(t, rec)["request_id"])

		entries := logs.FilterMessage("request").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		fields := entries[0].ContextMap()
		assert.Equal(t, "/things/:id", fields["path"])
		assert.Equal(t, "user-1", fields["user_id"])
		assert.Equal(t, id, fields["request_id"])
	})

	t.Run("keeps a valid caller id", func(t *testing.T) {
		observeLogs(t)
		const callerID = "0190d7a4-0000-7000-8000-00000000abcd"
		req := httptest.NewRequest(http.MethodGet, "/things/1", http.NoBody)
		req.Header.Set("X-Request-ID", callerID)
		rec := httptest.NewRecorder()
		setup(http.StatusOK).ServeHTTP(rec, req)

		assert.Equal(t, callerID, rec.Header().Get("X-Request-ID"))
	})

	t.Run("replaces a malformed caller id", func(t *testing.T) {
		observeLogs(t)
		req := httptest.NewRequest(http.MethodGet, "/things/1", http.NoBody)
		req.Header.Set("X-Request-ID", "<script>")
		rec := httptest.NewRecorder()
		setup(http.StatusOK).ServeHTTP(rec, req)

		assert.NotEqual(t, "<script>", rec.Header().Get("X-Request-ID"))
	})

	t.Run("client errors log at warn", func(t *testing.T) {
		logs := observeLogs(t)
		rec := httptest.NewRecorder()
		setup(http.StatusNotFound).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/1", http.NoBody))

		entries := logs.FilterMessage("request").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})
}

func TestErrorHandler(t *testing.T) {
	setup := func(h gin.HandlerFunc) *gin.Engine {
		r := gin.New()
		r.Use(ErrorHandler())
		r.GET("/", h)
		return r
	}
	get := func(r *gin.Engine) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		return rec
	}
	code := func(t *testing.T, rec *httptest.ResponseRecorder) string {
		t.Helper()
		errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
		require.True(t, ok)
		return errObj["code"].(string)
	}

	t.Run("app error keeps its status", func(t *testing.T) {
		observeLogs(t)
		rec := get(setup(func(c *gin.Context) { _ = c.Error(apperrors.ErrPendingExpired) }))
		assert.Equal(t, http.StatusGone, rec.Code)
		assert.Equal(t, "PENDING_TRANSACTION_EXPIRED", code(t, rec))
	})

	t.Run("bind error is invalid input", func(t *testing.T) {
		observeLogs(t)
		rec := get(setup(func(c *gin.Context) {
			_ = c.Error(errors.New("missing field")).SetType(gin.ErrorTypeBind)
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", code(t, rec))
	})

	t.Run("unknown error is hidden and logged", func(t *testing.T) {
		logs := observeLogs(t)
		rec := get(setup(func(c *gin.Context) { _ = c.Error(errors.New("pq: connection reset")) }))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INTERNAL_ERROR", code(t, rec))
		assert.NotContains(t, rec.Body.String(), "connection reset")
		assert.Equal(t, 1, logs.FilterMessage("request failed").Len())
	})

	t.Run("written responses are left alone", func(t *testing.T) {
		observeLogs(t)
		rec := get(setup(func(c *gin.Context) {
			_ = c.Error(errors.New("late"))
			c.JSON(http.StatusAccepted, gin.H{"ok": true})
		}))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}
