package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mautops/hrflow-gin/internal/api"
	"github.com/mautops/hrflow-gin/internal/config"
	"github.com/mautops/hrflow-gin/internal/container"
	"github.com/mautops/hrflow-gin/internal/database"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestServer 组装完整路由栈: 中间件、认证、控制器
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := config.Default()
	cfg.Auth.Secret = "route-test-secret"

	ctr := container.NewContainerWithDB(cfg, db)
	ctrl := api.NewControllers(
		ctr.DraftService(),
		ctr.CategoryService(),
		ctr.BalanceService(),
		ctr.QueryService(),
	)
	return api.SetupRoutes(cfg, db, ctrl), db, cfg
}

func bearerFor(t *testing.T, cfg *config.Config, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &api.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(cfg.Auth.Secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(router *gin.Engine, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoutesHealthAndMetricsOpen(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doJSON(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutesRequireAuth(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doJSON(router, http.MethodGet, "/api/v1/inbox", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutesDraftLifecycle(t *testing.T) {
	router, db, cfg := newTestServer(t)

	require.NoError(t, db.Create(&model.UserModel{ID: "alice", TenantID: "t1", Name: "alice", Role: "employee"}).Error)
	require.NoError(t, db.Create(&model.UserModel{ID: "bob", TenantID: "t1", Name: "bob", Role: "manager"}).Error)
	require.NoError(t, db.Create(&model.UserModel{ID: "hr", TenantID: "t1", Name: "hr", Role: "hr_admin"}).Error)

	alice := bearerFor(t, cfg, "alice")
	bob := bearerFor(t, cfg, "bob")
	hr := bearerFor(t, cfg, "hr")

	// 管理员建类型
	w := doJSON(router, http.MethodPost, "/api/v1/categories", hr, map[string]interface{}{
		"name":          "Annual Leave",
		"resource_type": "annual_leave",
		"route_template": []map[string]interface{}{
			{"kind": "approval", "approver": "bob"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var catResp struct {
		Data model.CategoryModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catResp))

	// 管理员发额度
	w = doJSON(router, http.MethodPut, "/api/v1/balances", hr, map[string]interface{}{
		"subject":       "alice",
		"resource_type": "annual_leave",
		"period":        "2026",
		"allocated":     "10",
		"reason":        "annual grant",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 员工建单并提交
	w = doJSON(router, http.MethodPost, "/api/v1/drafts", alice, map[string]interface{}{
		"category_id": catResp.Data.ID,
		"title":       "summer vacation",
		"quantity":    "3",
		"period":      "2026",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var draftResp struct {
		Data model.DraftModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &draftResp))
	draftID := draftResp.Data.ID

	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/drafts/%s/submit", draftID), alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 审批人待办非空
	w = doJSON(router, http.MethodGet, "/api/v1/inbox", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inbox))
	assert.Len(t, inbox.Data, 1)

	// 审批通过
	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/drafts/%s/approve", draftID), bob, map[string]interface{}{
		"comment": "enjoy",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 重复审批是冲突
	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/drafts/%s/approve", draftID), bob, map[string]interface{}{
		"comment": "again",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 额度已落账
	w = doJSON(router, http.MethodGet, "/api/v1/balances/alice?resource_type=annual_leave&period=2026", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var balResp struct {
		Data model.BalanceRecordModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balResp))
	assert.Equal(t, "7", balResp.Data.Available.String())
	assert.Equal(t, "3", balResp.Data.Used.String())

	// 历史可见
	w = doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/drafts/%s/history", draftID), alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutesErrorMapping(t *testing.T) {
	router, db, cfg := newTestServer(t)
	require.NoError(t, db.Create(&model.UserModel{ID: "alice", TenantID: "t1", Name: "alice", Role: "employee"}).Error)
	alice := bearerFor(t, cfg, "alice")

	// 不存在的单据
	w := doJSON(router, http.MethodGet, "/api/v1/drafts/missing", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 非管理员建类型
	w = doJSON(router, http.MethodPost, "/api/v1/categories", alice, map[string]interface{}{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 缺少必填字段
	w = doJSON(router, http.MethodPost, "/api/v1/drafts", alice, map[string]interface{}{"title": "no category"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
