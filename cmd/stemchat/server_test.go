package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/stemchat/config"
	"github.com/BaSui01/stemchat/internal/auth"
	"github.com/BaSui01/stemchat/internal/chat"
	"github.com/BaSui01/stemchat/internal/inventory"
	"github.com/BaSui01/stemchat/internal/lessons"
	"github.com/BaSui01/stemchat/internal/metrics"
)

var (
	collectorOnce sync.Once
	testCollector *metrics.Collector
)

// sharedCollector registers the prometheus metrics once per test binary.
func sharedCollector() *metrics.Collector {
	collectorOnce.Do(func() {
		testCollector = metrics.NewCollector("stemchat_test", zap.NewNop())
	})
	return testCollector
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type testServer struct {
	url    string
	app    *app
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","model":"tinyllama","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"I can help with inventory and lesson plans."}}]}`))
	}))
	t.Cleanup(llm.Close)

	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Auth.JWTSecret = "integration-secret"
	cfg.LLM.BaseURL = llm.URL + "/v1"
	cfg.LLM.Timeout = 5 * time.Second
	cfg.Bot.Timeout = 5 * time.Second
	cfg.Server.RateLimitRPS = 0
	cfg.Redis.Enabled = false
	cfg.Events.Enabled = false

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, auth.AutoMigrate(db))
	require.NoError(t, chat.AutoMigrate(db))
	require.NoError(t, inventory.AutoMigrate(db))
	require.NoError(t, lessons.AutoMigrate(db))

	users := auth.NewService(db, auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), zap.NewNop(),
		auth.WithBcryptCost(bcrypt.MinCost))
	summary, err := seedAll(context.Background(), db, users, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Users)
	require.Equal(t, len(inventory.SeedItems()), summary.Items)

	a, err := buildApp(cfg, db, sharedCollector(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(a.routes(ctx))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		waitCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if a.bot.Wait(waitCtx) == nil {
			a.bot.Close()
		}
		a.hub.Close()
		_ = a.close(waitCtx)
	})

	return &testServer{url: srv.URL, app: a, client: srv.Client()}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.url+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, status)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.Token)
	return tok.Token
}

// waitForBotReply polls the message list until n messages exist and the
// last one is from the bot.
func (s *testServer) waitForBotReply(t *testing.T, token string, n int) chat.View {
	t.Helper()
	var last chat.View
	require.Eventually(t, func() bool {
		status, env := s.do(t, http.MethodGet, "/api/messages", token, nil)
		if status != http.StatusOK {
			return false
		}
		var views []chat.View
		if err := json.Unmarshal(env.Data, &views); err != nil || len(views) != n {
			return false
		}
		last = views[n-1]
		return last.IsBot
	}, 5*time.Second, 20*time.Millisecond)
	return last
}

func TestServer_PublicAndProtectedRoutes(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, _ = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	for _, path := range []string{"/api/messages", "/api/inventory", "/api/agents"} {
		status, env = s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		require.NotNil(t, env.Error)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	}
}

func TestServer_SignupLoginAndAgents(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"username": "frizzle", "password": "magicbus",
	})
	require.Equal(t, http.StatusCreated, status)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.Token)

	status, _ = s.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"username": "frizzle", "password": "magicbus",
	})
	assert.Equal(t, http.StatusConflict, status)

	// 种子账号可以登录
	token := s.login(t, "teacher1", "password123")

	status, env = s.do(t, http.MethodGet, "/api/agents", token, nil)
	require.Equal(t, http.StatusOK, status)
	var agents []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &agents))
	require.Len(t, agents, 2)
	assert.Equal(t, "InventoryAgent", agents[0].Name)
	assert.Equal(t, "LessonPlanAgent", agents[1].Name)
}

func TestServer_BotAnswersInventoryQuestion(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "teacher1", "password123")

	status, env := s.do(t, http.MethodPost, "/api/messages", token, map[string]string{
		"content": "#How many pencils do we have?",
	})
	require.Equal(t, http.StatusCreated, status)
	var posted chat.View
	require.NoError(t, json.Unmarshal(env.Data, &posted))
	assert.Equal(t, "teacher1", posted.Username)
	assert.False(t, posted.IsBot)

	reply := s.waitForBotReply(t, token, 2)
	assert.Contains(t, reply.Content, "Pencils: 150 pieces in stock")
}

func TestServer_BotFallsBackToLLM(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "admin123")

	status, _ := s.do(t, http.MethodPost, "/api/messages", token, map[string]string{"content": "#asdfghjkl"})
	require.Equal(t, http.StatusCreated, status)

	reply := s.waitForBotReply(t, token, 2)
	assert.Equal(t, "I can help with inventory and lesson plans.", strings.TrimSpace(reply.Content))
}

func TestServer_InventoryUpdateThroughAPI(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "admin123")

	status, env := s.do(t, http.MethodGet, "/api/inventory/low-stock", token, nil)
	require.Equal(t, http.StatusOK, status)
	var low []struct {
		Name    string `json:"name"`
		Deficit int    `json:"deficit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &low))
	assert.NotEmpty(t, low)

	// Pencils 是第一个种子物料
	status, env = s.do(t, http.MethodPut, "/api/inventory/1", token, map[string]any{
		"quantity_change": -200, "reason": "too many",
	})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)

	status, env = s.do(t, http.MethodPut, "/api/inventory/1", token, map[string]any{
		"quantity_change": -50, "reason": "class set",
	})
	require.Equal(t, http.StatusOK, status)
	var updated struct {
		Item struct {
			Quantity int `json:"quantity"`
		} `json:"item"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 100, updated.Item.Quantity)
}
