package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/nmehra/assistantd/internal/config"
	"github.com/nmehra/assistantd/internal/storage"
)

func testServer(t *testing.T, role string) (*httptest.Server, *storage.Database) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultConfig()
	cfg.DevMode = true
	cfg.DevUserRole = role

	state := &WebState{Config: &cfg, DB: db}
	srv := httptest.NewServer(newRouter(state))
	t.Cleanup(srv.Close)
	return srv, db
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthNoAuth(t *testing.T) {
	srv, _ := testServer(t, storage.RoleAdmin)
	resp, body := doJSON(t, "GET", srv.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("got %d %v", resp.StatusCode, body)
	}
}

func TestDevUserProvisionedOnFirstRequest(t *testing.T) {
	srv, db := testServer(t, storage.RoleAdmin)

	resp, body := doJSON(t, "GET", srv.URL+"/api/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if body["email"] != "dev@example.com" || body["role"] != storage.RoleAdmin {
		t.Errorf("got %v", body)
	}

	user, err := db.GetUserByEmail("dev@example.com")
	if err != nil || user == nil {
		t.Fatalf("dev user not provisioned: %v %+v", err, user)
	}
}

func TestUsersRequireAdmin(t *testing.T) {
	srv, _ := testServer(t, storage.RoleUser)
	resp, _ := doJSON(t, "GET", srv.URL+"/api/users/", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status %d, want 403", resp.StatusCode)
	}
}

func TestUserCRUDOverHTTP(t *testing.T) {
	srv, _ := testServer(t, storage.RoleAdmin)

	resp, created := doJSON(t, "POST", srv.URL+"/api/users/", map[string]any{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "secret",
		"role":     storage.RoleUser,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %v", resp.StatusCode, created)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("no id in %v", created)
	}
	if _, exposed := created["password_hash"]; exposed {
		t.Error("password hash must not be serialized")
	}

	resp, got := doJSON(t, "GET", srv.URL+"/api/users/"+id, nil)
	if resp.StatusCode != http.StatusOK || got["username"] != "bob" {
		t.Errorf("get: %d %v", resp.StatusCode, got)
	}

	resp, updated := doJSON(t, "PUT", srv.URL+"/api/users/"+id, map[string]any{"role": storage.RoleOps})
	if resp.StatusCode != http.StatusOK || updated["role"] != storage.RoleOps {
		t.Errorf("update: %d %v", resp.StatusCode, updated)
	}

	resp, _ = doJSON(t, "DELETE", srv.URL+"/api/users/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, "GET", srv.URL+"/api/users/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: %d", resp.StatusCode)
	}
}

func TestCreateUserRejectsBadRole(t *testing.T) {
	srv, _ := testServer(t, storage.RoleAdmin)
	resp, _ := doJSON(t, "POST", srv.URL+"/api/users/", map[string]any{
		"username": "x", "email": "x@x", "role": "superuser",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d, want 400", resp.StatusCode)
	}
}

func TestAssistantComponents(t *testing.T) {
	srv, db := testServer(t, storage.RoleAdmin)

	resp, created := doJSON(t, "POST", srv.URL+"/api/virtual_assistants/", map[string]any{
		"name":       "helper",
		"prompt":     "be helpful",
		"model_name": "llama-3",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %v", resp.StatusCode, created)
	}
	id := created["id"].(string)

	// No model server hosts llama-3 yet.
	resp, _ = doJSON(t, "GET", srv.URL+"/api/virtual_assistants/"+id+"/components", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("components without model server: %d, want 404", resp.StatusCode)
	}

	err := db.CreateModelServer(storage.ModelServer{
		ID: "ms1", Name: "ollama", ProviderName: "ollama", ModelName: "llama-3", EndpointURL: "http://rt",
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, body := doJSON(t, "GET", srv.URL+"/api/virtual_assistants/"+id+"/components", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("components status %d: %v", resp.StatusCode, body)
	}
	ms, _ := body["model_server"].(map[string]any)
	if ms["model_name"] != "llama-3" {
		t.Errorf("model server: %v", ms)
	}
}

func TestChatHistoryScopedToCaller(t *testing.T) {
	srv, db := testServer(t, storage.RoleAdmin)

	// Provision the dev user by making any request.
	doJSON(t, "GET", srv.URL+"/api/me", nil)
	me, err := db.GetUserByEmail("dev@example.com")
	if err != nil || me == nil {
		t.Fatal("dev user missing")
	}

	other := "someone-else"
	err = db.CreateUser(storage.User{ID: other, Username: other, Email: other + "@example.com", Role: storage.RoleUser})
	if err != nil {
		t.Fatal(err)
	}

	for _, entry := range []storage.ChatHistory{
		{ID: "mine", UserID: &me.ID, Message: "q", Response: "a"},
		{ID: "theirs", UserID: &other, Message: "q", Response: "a"},
	} {
		if err := db.CreateChatHistory(entry); err != nil {
			t.Fatal(err)
		}
	}

	req, _ := http.NewRequest("GET", srv.URL+"/api/chat_history/", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var mine []map[string]any
	json.NewDecoder(resp.Body).Decode(&mine)
	if len(mine) != 1 || mine[0]["id"] != "mine" {
		t.Errorf("scoped list: %v", mine)
	}

	// Admin view sees everything.
	req, _ = http.NewRequest("GET", srv.URL+"/api/chat_history/admin/all", nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var all []map[string]any
	json.NewDecoder(resp2.Body).Decode(&all)
	if len(all) != 2 {
		t.Errorf("admin list: %v", all)
	}
}
