package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	// Reopening must re-run migrations without error.
	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()
}

func TestUserCRUD(t *testing.T) {
	db := testDB(t)

	u := User{ID: "u1", Username: "alice", Email: "alice@example.com", Role: RoleAdmin}
	if err := db.CreateUser(u); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetUser("u1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Username != "alice" || got.AgentIDs != "[]" {
		t.Fatalf("got %+v", got)
	}
	if got.CreatedAt == "" || got.UpdatedAt == "" {
		t.Error("timestamps not set")
	}

	byEmail, err := db.GetUserByEmail("alice@example.com")
	if err != nil || byEmail == nil || byEmail.ID != "u1" {
		t.Fatalf("lookup by email: %v %+v", err, byEmail)
	}

	got.Role = RoleUser
	if err := db.UpdateUser(*got); err != nil {
		t.Fatal(err)
	}
	updated, _ := db.GetUser("u1")
	if updated.Role != RoleUser {
		t.Errorf("role = %q", updated.Role)
	}

	if err := db.DeleteUser("u1"); err != nil {
		t.Fatal(err)
	}
	gone, err := db.GetUser("u1")
	if err != nil || gone != nil {
		t.Errorf("expected nil after delete, got %v %+v", err, gone)
	}
}

func TestUpdateMissingUserIsNotFound(t *testing.T) {
	db := testDB(t)
	err := db.UpdateUser(User{ID: "nope", Username: "x", Email: "x@x", Role: RoleUser, AgentIDs: "[]"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleOps, RoleUser} {
		if !ValidRole(role) {
			t.Errorf("%q should be valid", role)
		}
	}
	for _, role := range []string{"", "devops", "root"} {
		if ValidRole(role) {
			t.Errorf("%q should be invalid", role)
		}
	}
}

func TestVirtualAssistantAssociations(t *testing.T) {
	db := testDB(t)

	va := VirtualAssistant{
		ID:             "va1",
		Name:           "helper",
		Prompt:         "be helpful",
		ModelName:      "llama-3",
		KnowledgeBases: []string{"kb1", "kb2"},
		Tools:          []string{"mcp::weather"},
	}
	if err := db.CreateVirtualAssistant(va); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetVirtualAssistant("va1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.KnowledgeBases) != 2 || len(got.Tools) != 1 {
		t.Fatalf("associations: %+v", got)
	}

	// Update rewrites associations.
	got.KnowledgeBases = []string{"kb3"}
	got.Tools = []string{}
	if err := db.UpdateVirtualAssistant(*got); err != nil {
		t.Fatal(err)
	}
	updated, _ := db.GetVirtualAssistant("va1")
	if len(updated.KnowledgeBases) != 1 || updated.KnowledgeBases[0] != "kb3" {
		t.Errorf("knowledge bases: %v", updated.KnowledgeBases)
	}
	if len(updated.Tools) != 0 {
		t.Errorf("tools: %v", updated.Tools)
	}

	if err := db.DeleteVirtualAssistant("va1"); err != nil {
		t.Fatal(err)
	}
	gone, _ := db.GetVirtualAssistant("va1")
	if gone != nil {
		t.Error("assistant should be gone")
	}
}

func TestKnowledgeBaseUpsert(t *testing.T) {
	db := testDB(t)

	kb := KnowledgeBase{
		ID:             "kb1",
		Name:           "docs",
		Version:        "1",
		EmbeddingModel: "all-minilm",
		VectorDBName:   "docs-v1",
		IsExternal:     true,
	}
	if err := db.UpsertKnowledgeBaseByVectorDBName(kb); err != nil {
		t.Fatal(err)
	}

	// Second upsert with the same vector db name updates in place.
	kb.ID = "kb-other"
	kb.Name = "docs renamed"
	if err := db.UpsertKnowledgeBaseByVectorDBName(kb); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListKnowledgeBases()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one knowledge base, got %d", len(all))
	}
	if all[0].ID != "kb1" || all[0].Name != "docs renamed" || !all[0].IsExternal {
		t.Errorf("got %+v", all[0])
	}
}

func TestModelServerSyncPrune(t *testing.T) {
	db := testDB(t)

	for _, name := range []string{"llama-3", "granite", "mistral"} {
		err := db.CreateModelServer(ModelServer{
			ID: "ms-" + name, Name: name, ProviderName: "p", ModelName: name, EndpointURL: "http://rt",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	removed, err := db.DeleteModelServersNotIn([]string{"llama-3"})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed = %d", removed)
	}

	byModel, err := db.GetModelServerByModelName("llama-3")
	if err != nil || byModel == nil {
		t.Fatalf("lookup by model: %v %+v", err, byModel)
	}
	gone, _ := db.GetModelServerByName("granite")
	if gone != nil {
		t.Error("granite should be pruned")
	}
}

func TestMCPServerByName(t *testing.T) {
	db := testDB(t)

	s := MCPServer{
		ID: "m1", Name: "mcp::weather", Title: "Weather",
		Description: strPtr("forecasts"), EndpointURL: "http://mcp",
	}
	if err := db.UpsertMCPServerByName(s); err != nil {
		t.Fatal(err)
	}
	s.Title = "Weather v2"
	if err := db.UpsertMCPServerByName(s); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMCPServerByName("mcp::weather")
	if err != nil || got == nil {
		t.Fatalf("%v %+v", err, got)
	}
	if got.ID != "m1" || got.Title != "Weather v2" || *got.Description != "forecasts" {
		t.Errorf("got %+v", got)
	}
}

func TestChatHistoryScoping(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"u1", "u2"} {
		err := db.CreateUser(User{ID: id, Username: id, Email: id + "@example.com", Role: RoleUser})
		if err != nil {
			t.Fatal(err)
		}
	}

	for i, userID := range []string{"u1", "u1", "u2"} {
		uid := userID
		err := db.CreateChatHistory(ChatHistory{
			ID:       "h" + string(rune('1'+i)),
			UserID:   &uid,
			Message:  "q",
			Response: "a",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	mine, err := db.ListChatHistoryForUser("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Errorf("u1 history = %d", len(mine))
	}

	all, err := db.ListAllChatHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all history = %d", len(all))
	}

	n, err := db.DeleteChatHistoryForUser("u1")
	if err != nil || n != 2 {
		t.Fatalf("clear: %v %d", err, n)
	}
	remaining, _ := db.ListAllChatHistory()
	if len(remaining) != 1 {
		t.Errorf("remaining = %d", len(remaining))
	}
}

func TestChatSessionCache(t *testing.T) {
	db := testDB(t)

	key := "u1:va1"
	if got, err := db.GetChatSession(key); err != nil || got != nil {
		t.Fatalf("expected empty cache, got %v %+v", err, got)
	}

	if err := db.PutChatSession(key, `{"agent_id":"a1","session_id":"s1"}`); err != nil {
		t.Fatal(err)
	}
	// Put again replaces the state.
	if err := db.PutChatSession(key, `{"agent_id":"a2","session_id":"s2"}`); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetChatSession(key)
	if err != nil || got == nil {
		t.Fatal(err)
	}
	if got.State != `{"agent_id":"a2","session_id":"s2"}` {
		t.Errorf("state = %q", got.State)
	}

	if err := db.DeleteChatSession(key); err != nil {
		t.Fatal(err)
	}
	// Deleting a missing key is not an error.
	if err := db.DeleteChatSession(key); err != nil {
		t.Fatal(err)
	}
}

func TestGuardrailCRUD(t *testing.T) {
	db := testDB(t)

	g := Guardrail{ID: "g1", Name: "no-pii", Rules: `{"block": ["ssn"]}`}
	if err := db.CreateGuardrail(g); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetGuardrail("g1")
	if err != nil || got == nil || got.Rules != `{"block": ["ssn"]}` {
		t.Fatalf("%v %+v", err, got)
	}

	got.Name = "no-pii-v2"
	if err := db.UpdateGuardrail(*got); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteGuardrail("g1"); err != nil {
		t.Fatal(err)
	}
	var nf *NotFoundError
	if err := db.DeleteGuardrail("g1"); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}
