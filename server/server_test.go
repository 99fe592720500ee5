package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	server "github.com/agentwire/a2a/server"
	config "github.com/agentwire/a2a/server/config"
	skills "github.com/agentwire/a2a/server/skills"
	types "github.com/agentwire/a2a/types"
	gin "github.com/gin-gonic/gin"
	assert "github.com/stretchr/testify/assert"
	zap "go.uber.org/zap"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *server.A2AServerImpl {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.NewWithDefaults(context.Background(), nil)
	assert.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
		assert.NoError(t, cfg.Validate())
	}

	srv, err := server.NewA2AServer(cfg, zap.NewNop(), nil)
	assert.NoError(t, err)
	return srv
}

func newTestServerWithCatalog(t *testing.T, mutate func(cfg *config.Config), catalog *skills.Registry) *server.A2AServerImpl {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.NewWithDefaults(context.Background(), nil)
	assert.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
		assert.NoError(t, cfg.Validate())
	}

	srv, err := server.NewA2AServerWithCatalog(cfg, zap.NewNop(), nil, catalog)
	assert.NoError(t, err)
	return srv
}

// newStallCatalog registers a single skill that holds until its context is
// canceled, for exercising the execution timeout and store saturation paths.
func newStallCatalog(t *testing.T) *skills.Registry {
	t.Helper()

	registry := skills.NewRegistry(zap.NewNop())
	assert.NoError(t, registry.Register(skills.Skill{
		ID:   "stall",
		Name: "Stall",
		Execute: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))
	return registry
}

func postRPC(t *testing.T, handler http.Handler, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	return w, decoded
}

func rpcError(t *testing.T, decoded map[string]any) map[string]any {
	t.Helper()
	errObj, ok := decoded["error"].(map[string]any)
	assert.True(t, ok, "expected an error object in response")
	return errObj
}

func TestA2AServer_EnvelopeValidation(t *testing.T) {
	handler := newTestServer(t, nil).Handler()

	t.Run("malformed json answers parse error with null id", func(t *testing.T) {
		w, decoded := postRPC(t, handler, `{not json`, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2.0", decoded["jsonrpc"])
		assert.Nil(t, decoded["id"])

		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32700), errObj["code"])
	})

	t.Run("wrong jsonrpc version is rejected", func(t *testing.T) {
		_, decoded := postRPC(t, handler, `{"jsonrpc":"1.0","method":"skills/list","id":7}`, nil)

		assert.Equal(t, float64(7), decoded["id"])
		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32600), errObj["code"])
	})

	t.Run("missing jsonrpc version is rejected", func(t *testing.T) {
		_, decoded := postRPC(t, handler, `{"method":"skills/list","id":8}`, nil)

		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32600), errObj["code"])
	})

	t.Run("unknown method", func(t *testing.T) {
		_, decoded := postRPC(t, handler, `{"jsonrpc":"2.0","method":"tasks/stream","id":9}`, nil)

		assert.Equal(t, float64(9), decoded["id"])
		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32601), errObj["code"])
		assert.Contains(t, errObj["message"], "tasks/stream")
	})

	t.Run("string id is echoed back", func(t *testing.T) {
		_, decoded := postRPC(t, handler, `{"jsonrpc":"2.0","method":"agent/describe","id":"req-1"}`, nil)
		assert.Equal(t, "req-1", decoded["id"])
	})
}

func TestA2AServer_MessageSend(t *testing.T) {
	handler := newTestServer(t, nil).Handler()

	t.Run("synchronous echo", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","method":"message/send","id":1,"params":{"message":{"role":"user","parts":[{"kind":"text","text":"echo hello world"}]}}}`
		w, decoded := postRPC(t, handler, body, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		result, ok := decoded["result"].(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "agent", result["role"])

		metadata, ok := result["metadata"].(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "echo", metadata["skillId"])
		assert.NotEmpty(t, metadata["timestamp"])

		parts, ok := result["parts"].([]any)
		assert.True(t, ok)
		assert.Len(t, parts, 1)
		part := parts[0].(map[string]any)
		assert.Equal(t, "data", part["kind"])
		data := part["data"].(map[string]any)
		assert.Equal(t, "hello world", data["echo"])
	})

	t.Run("explicit skill invocation via data part", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","method":"message/send","id":2,"params":{"message":{"role":"user","parts":[{"kind":"data","data":{"skillId":"status"}}]}}}`
		_, decoded := postRPC(t, handler, body, nil)

		result, ok := decoded["result"].(map[string]any)
		assert.True(t, ok)
		parts := result["parts"].([]any)
		data := parts[0].(map[string]any)["data"].(map[string]any)
		assert.Equal(t, "operational", data["status"])
	})

	t.Run("missing params", func(t *testing.T) {
		_, decoded := postRPC(t, handler, `{"jsonrpc":"2.0","method":"message/send","id":3}`, nil)

		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32602), errObj["code"])
	})

	t.Run("empty parts", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","method":"message/send","id":4,"params":{"message":{"role":"user","parts":[]}}}`
		_, decoded := postRPC(t, handler, body, nil)

		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32602), errObj["code"])
	})

	t.Run("unreadable parts", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","method":"message/send","id":5,"params":{"message":{"role":"user","parts":[{"kind":"file","file":{"name":"a.txt"}}]}}}`
		_, decoded := postRPC(t, handler, body, nil)

		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32602), errObj["code"])
		assert.Contains(t, errObj["message"], "No skill or message provided in parts")
	})

	t.Run("unknown skill lists the available catalog", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","method":"message/send","id":6,"params":{"message":{"role":"user","parts":[{"kind":"data","data":{"skillId":"nonexistent"}}]}}}`
		_, decoded := postRPC(t, handler, body, nil)

		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32602), errObj["code"])
		assert.Contains(t, errObj["message"], "nonexistent")

		data, ok := errObj["data"].(map[string]any)
		assert.True(t, ok)
		available, ok := data["availableSkills"].([]any)
		assert.True(t, ok)
		assert.NotEmpty(t, available)
	})
}

func TestA2AServer_PaymentGating(t *testing.T) {
	handler := newTestServer(t, func(cfg *config.Config) {
		cfg.PaymentConfig.Enable = true
		cfg.PaymentConfig.PayTo = "0x1234"
	}).Handler()

	paidBody := `{"jsonrpc":"2.0","method":"message/send","id":1,"params":{"message":{"role":"user","parts":[{"kind":"data","data":{"skillId":"premium-analysis","params":{"text":"one two three."}}}]}}}`

	t.Run("paid skill without proof answers 402", func(t *testing.T) {
		w, decoded := postRPC(t, handler, paidBody, nil)

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(402), errObj["code"])

		requirements, ok := errObj["data"].(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "exact", requirements["scheme"])
		assert.Equal(t, "0x1234", requirements["payTo"])
		assert.Equal(t, "0.01", requirements["amount"])
	})

	t.Run("proof via header passes the gate", func(t *testing.T) {
		w, decoded := postRPC(t, handler, paidBody, map[string]string{"X-Payment": "proof-token"})

		assert.Equal(t, http.StatusOK, w.Code)
		result, ok := decoded["result"].(map[string]any)
		assert.True(t, ok)
		parts := result["parts"].([]any)
		data := parts[0].(map[string]any)["data"].(map[string]any)
		assert.Equal(t, float64(3), data["words"])
	})

	t.Run("proof via message metadata passes the gate", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","method":"message/send","id":2,"params":{"message":{"role":"user","metadata":{"paymentProof":"proof-token"},"parts":[{"kind":"data","data":{"skillId":"premium-analysis","params":{"text":"short"}}}]}}}`
		w, _ := postRPC(t, handler, body, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("free skill is unaffected", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","method":"message/send","id":3,"params":{"message":{"role":"user","parts":[{"kind":"text","text":"echo hi"}]}}}`
		w, _ := postRPC(t, handler, body, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestA2AServer_MessageSendTimeout(t *testing.T) {
	handler := newTestServerWithCatalog(t, func(cfg *config.Config) {
		cfg.SkillTimeout = 50 * time.Millisecond
	}, newStallCatalog(t)).Handler()

	body := `{"jsonrpc":"2.0","method":"message/send","id":1,"params":{"message":{"role":"user","parts":[{"kind":"data","data":{"skillId":"stall"}}]}}}`
	w, decoded := postRPC(t, handler, body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	errObj := rpcError(t, decoded)
	assert.Equal(t, float64(-32603), errObj["code"])
	assert.Contains(t, errObj["message"], "stall")
	assert.Contains(t, errObj["message"], "context deadline exceeded")
}

func TestA2AServer_TaskSendStoreFull(t *testing.T) {
	handler := newTestServerWithCatalog(t, func(cfg *config.Config) {
		cfg.StoreConfig.Capacity = 1
	}, newStallCatalog(t)).Handler()

	body := `{"jsonrpc":"2.0","method":"tasks/send","id":1,"params":{"message":{"role":"user","parts":[{"kind":"data","data":{"skillId":"stall"}}]}}}`

	// The first task fills the store and never settles
	_, decoded := postRPC(t, handler, body, nil)
	result, ok := decoded["result"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "submitted", result["state"])

	_, decoded = postRPC(t, handler, body, nil)
	errObj := rpcError(t, decoded)
	assert.Equal(t, float64(-32602), errObj["code"])
	assert.Contains(t, errObj["message"], "task store at capacity")
}

func TestA2AServer_TaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	handler := srv.Handler()

	t.Run("tasks/send then tasks/get", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","method":"tasks/send","id":1,"params":{"message":{"role":"user","parts":[{"kind":"text","text":"echo round trip"}]}}}`
		w, decoded := postRPC(t, handler, body, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		result, ok := decoded["result"].(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "submitted", result["state"])
		taskID, ok := result["id"].(string)
		assert.True(t, ok)
		assert.NotEmpty(t, taskID)
		assert.NotEmpty(t, result["contextId"])

		settled, err := srv.GetTaskManager().Poll(taskID, 10*time.Millisecond, 2*time.Second)
		assert.NoError(t, err)
		assert.Equal(t, types.TaskStateCompleted, settled.State)

		getBody := fmt.Sprintf(`{"jsonrpc":"2.0","method":"tasks/get","id":2,"params":{"id":"%s"}}`, taskID)
		_, getDecoded := postRPC(t, handler, getBody, nil)

		fetched, ok := getDecoded["result"].(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "completed", fetched["state"])

		artifacts, ok := fetched["artifacts"].([]any)
		assert.True(t, ok)
		assert.Len(t, artifacts, 1)
	})

	t.Run("tasks/get for unknown id", func(t *testing.T) {
		_, decoded := postRPC(t, handler, `{"jsonrpc":"2.0","method":"tasks/get","id":3,"params":{"id":"missing"}}`, nil)

		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32602), errObj["code"])
		assert.Contains(t, errObj["message"], "task not found")
	})

	t.Run("tasks/cancel on a settled task", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","method":"tasks/send","id":4,"params":{"message":{"role":"user","parts":[{"kind":"text","text":"echo done"}]}}}`
		_, decoded := postRPC(t, handler, body, nil)

		result := decoded["result"].(map[string]any)
		taskID := result["id"].(string)

		_, err := srv.GetTaskManager().Poll(taskID, 10*time.Millisecond, 2*time.Second)
		assert.NoError(t, err)

		cancelBody := fmt.Sprintf(`{"jsonrpc":"2.0","method":"tasks/cancel","id":5,"params":{"id":"%s"}}`, taskID)
		_, cancelDecoded := postRPC(t, handler, cancelBody, nil)

		errObj := rpcError(t, cancelDecoded)
		assert.Equal(t, float64(-32602), errObj["code"])
		assert.Contains(t, errObj["message"], "Cannot cancel task in state: completed")
	})

	t.Run("tasks/cancel missing params", func(t *testing.T) {
		_, decoded := postRPC(t, handler, `{"jsonrpc":"2.0","method":"tasks/cancel","id":6,"params":{}}`, nil)

		errObj := rpcError(t, decoded)
		assert.Equal(t, float64(-32602), errObj["code"])
	})
}

func TestA2AServer_Discovery(t *testing.T) {
	srv := newTestServer(t, nil)
	handler := srv.Handler()

	t.Run("agent/describe", func(t *testing.T) {
		_, decoded := postRPC(t, handler, `{"jsonrpc":"2.0","method":"agent/describe","id":1}`, nil)

		result, ok := decoded["result"].(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "agentwire", result["name"])
		assert.Equal(t, "0.2.2", result["protocolVersion"])

		methods, ok := result["supportedMethods"].([]any)
		assert.True(t, ok)
		assert.Len(t, methods, 6)
	})

	t.Run("skills/list", func(t *testing.T) {
		_, decoded := postRPC(t, handler, `{"jsonrpc":"2.0","method":"skills/list","id":2}`, nil)

		result, ok := decoded["result"].(map[string]any)
		assert.True(t, ok)
		listed, ok := result["skills"].([]any)
		assert.True(t, ok)
		assert.Len(t, listed, 4)

		first := listed[0].(map[string]any)
		assert.Equal(t, "echo", first["id"])
		assert.NotEmpty(t, first["description"])
	})

	t.Run("well-known agent card endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var card types.AgentCard
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
		assert.Equal(t, "agentwire", card.Name)
		assert.Len(t, card.Skills, 4)
		assert.Equal(t, []string{"bearer"}, card.Authentication.Schemes)
	})

	t.Run("skills endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/skills", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var result types.SkillsListResult
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Len(t, result.Skills, 4)
	})

	t.Run("health endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var health map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, "ok", health["status"])
		assert.Equal(t, "agentwire", health["service"])
	})
}
