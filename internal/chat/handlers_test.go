package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupRouter() (*gin.Engine, *Service) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(NewMemoryStore(), logger)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/v1"))
	return r, svc
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateRoomEndpoint(t *testing.T) {
	r, _ := setupRouter()

	w := doJSON(t, r, "POST", "/v1/rooms", map[string]string{
		"name":  "MoonSafe Watch",
		"topic": "is MOON about to rug?",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Room Room `json:"room"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Room.Status != RoomOpen {
		t.Errorf("expected open room, got %s", resp.Room.Status)
	}

	// duplicate name conflicts
	w = doJSON(t, r, "POST", "/v1/rooms", map[string]string{"name": "moonsafe watch"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestCreateRoomEndpoint_BadBody(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest("POST", "/v1/rooms", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGetRoomEndpoint_NotFound(t *testing.T) {
	r, _ := setupRouter()

	w := doJSON(t, r, "GET", "/v1/rooms/room_missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPostMessageEndpoint(t *testing.T) {
	r, svc := setupRouter()
	room := mustRoom(t, svc, "general")

	w := doJSON(t, r, "POST", "/v1/rooms/"+room.ID+"/messages", map[string]string{
		"userId":  "user_1",
		"content": "this looks like a honeypot",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message Message `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Message.FlaggedKeywords) == 0 {
		t.Error("expected flagged keywords in response")
	}
	if resp.Message.CredibilityScore == 0 {
		t.Error("expected credibility score in response")
	}
}

func TestPostMessageEndpoint_Validation(t *testing.T) {
	r, svc := setupRouter()
	room := mustRoom(t, svc, "general")

	w := doJSON(t, r, "POST", "/v1/rooms/"+room.ID+"/messages", map[string]string{
		"userId": "user_1",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestListMessagesEndpoint(t *testing.T) {
	r, svc := setupRouter()
	room := mustRoom(t, svc, "general")
	for _, content := range []string{"one", "two"} {
		doJSON(t, r, "POST", "/v1/rooms/"+room.ID+"/messages", map[string]string{
			"userId":  "user_1",
			"content": content,
		})
	}

	w := doJSON(t, r, "GET", "/v1/rooms/"+room.ID+"/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Messages []Message `json:"messages"`
		Count    int       `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 messages, got %d", resp.Count)
	}
}

func TestListRoomsEndpoint(t *testing.T) {
	r, svc := setupRouter()
	mustRoom(t, svc, "alpha")
	mustRoom(t, svc, "beta")

	w := doJSON(t, r, "GET", "/v1/rooms", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 rooms, got %d", resp.Count)
	}
}

func TestFlagMessageEndpoint(t *testing.T) {
	r, svc := setupRouter()
	room := mustRoom(t, svc, "general")

	msg, err := svc.Post(context.Background(), room.ID, "user_1", "hello there")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	path := "/v1/rooms/" + room.ID + "/messages/" + msg.ID + "/flag"
	for i := 0; i < 5; i++ {
		w := doJSON(t, r, "POST", path, map[string]string{"userId": "reporter_1"})
		if w.Code != http.StatusOK {
			t.Fatalf("flag %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
	}

	var resp struct {
		Message Message `json:"message"`
	}
	w := doJSON(t, r, "POST", path, map[string]string{"userId": "reporter_1"})
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message.Status != MessageModerated || resp.Message.FlagCount != 6 {
		t.Errorf("message = %s/%d, want moderated/6", resp.Message.Status, resp.Message.FlagCount)
	}
}

func TestFlagMessageEndpoint_NotFound(t *testing.T) {
	r, svc := setupRouter()
	room := mustRoom(t, svc, "general")

	w := doJSON(t, r, "POST", "/v1/rooms/"+room.ID+"/messages/msg_missing/flag",
		map[string]string{"userId": "reporter_1"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
