package router

import (
	"net/http"
	"testing"
)

func createClient(t *testing.T, e *env, body map[string]any) map[string]any {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/clients", e.adminToken, body)
	wantStatus(t, w, http.StatusCreated)
	client, _ := decode(t, w)["client"].(map[string]any)
	if client == nil {
		t.Fatalf("expected client payload: %s", w.Body.String())
	}
	return client
}

func TestCreateClientRequiresName(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/api/clients", e.adminToken, map[string]any{"email": "c@x.io"})
	wantStatus(t, w, http.StatusBadRequest)
	if decode(t, w)["error"] != "Client name is required" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestCreateClientDefaultsAndSeedNote(t *testing.T) {
	e := newTestEnv(t)
	client := createClient(t, e, map[string]any{"name": "Acme", "notes": "hello"})

	if client["status"] != "new_lead" || client["source"] != "direct" {
		t.Fatalf("unexpected defaults: %v / %v", client["status"], client["source"])
	}
	notes, _ := client["notes"].([]any)
	if len(notes) != 1 {
		t.Fatalf("expected exactly one seed note, got %d", len(notes))
	}
	note := notes[0].(map[string]any)
	if note["text"] != "hello" {
		t.Fatalf("unexpected note text: %v", note["text"])
	}
	if note["createdBy"] != e.adminID || note["createdByName"] != "Admin" {
		t.Fatalf("note must carry the creator identity: %v", note)
	}
}

func TestClientGetUpdateDelete(t *testing.T) {
	e := newTestEnv(t)
	client := createClient(t, e, map[string]any{"name": "Acme", "phone": "111"})
	id := client["id"].(string)

	w := e.do(t, http.MethodGet, "/api/clients/"+id, e.adminToken, nil)
	wantStatus(t, w, http.StatusOK)

	// Partial update: untouched fields survive, updatedAt appears.
	w = e.do(t, http.MethodPut, "/api/clients/"+id, e.adminToken, map[string]any{"phone": "222"})
	wantStatus(t, w, http.StatusOK)
	updated, _ := decode(t, w)["client"].(map[string]any)
	if updated["phone"] != "222" || updated["name"] != "Acme" {
		t.Fatalf("partial update clobbered fields: %v", updated)
	}
	if updated["updatedAt"] == nil {
		t.Fatal("expected updatedAt to be set")
	}

	w = e.do(t, http.MethodDelete, "/api/clients/"+id, e.adminToken, nil)
	wantStatus(t, w, http.StatusOK)

	w = e.do(t, http.MethodGet, "/api/clients/"+id, e.adminToken, nil)
	wantStatus(t, w, http.StatusNotFound)
}

func TestClientListAll(t *testing.T) {
	e := newTestEnv(t)
	createClient(t, e, map[string]any{"name": "A"})
	createClient(t, e, map[string]any{"name": "B"})

	w := e.do(t, http.MethodGet, "/api/clients", e.adminToken, nil)
	wantStatus(t, w, http.StatusOK)
	clients, _ := decode(t, w)["clients"].([]any)
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
}

func TestClientTypeMismatchIs404(t *testing.T) {
	e := newTestEnv(t)
	// A task id through the clients resource must not resolve.
	w := e.do(t, http.MethodPost, "/api/tasks", e.adminToken, map[string]any{"title": "T"})
	wantStatus(t, w, http.StatusCreated)
	taskID := decode(t, w)["task"].(map[string]any)["id"].(string)

	w = e.do(t, http.MethodGet, "/api/clients/"+taskID, e.adminToken, nil)
	wantStatus(t, w, http.StatusNotFound)
}

func TestAddNoteAppends(t *testing.T) {
	e := newTestEnv(t)
	client := createClient(t, e, map[string]any{"name": "Acme"})
	id := client["id"].(string)

	w := e.do(t, http.MethodPost, "/api/clients/"+id+"/notes", e.adminToken, map[string]any{})
	wantStatus(t, w, http.StatusBadRequest)

	w = e.do(t, http.MethodPost, "/api/clients/"+id+"/notes", e.adminToken, map[string]any{"text": "first"})
	wantStatus(t, w, http.StatusCreated)
	w = e.do(t, http.MethodPost, "/api/clients/"+id+"/notes", e.adminToken, map[string]any{"text": "second"})
	wantStatus(t, w, http.StatusCreated)

	w = e.do(t, http.MethodGet, "/api/clients/"+id, e.adminToken, nil)
	wantStatus(t, w, http.StatusOK)
	notes, _ := decode(t, w)["client"].(map[string]any)["notes"].([]any)
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].(map[string]any)["text"] != "first" || notes[1].(map[string]any)["text"] != "second" {
		t.Fatalf("append order broken: %v", notes)
	}

	w = e.do(t, http.MethodPost, "/api/clients/client_ghost/notes", e.adminToken, map[string]any{"text": "x"})
	wantStatus(t, w, http.StatusNotFound)
}

func TestDeleteClientDoesNotCascade(t *testing.T) {
	e := newTestEnv(t)
	client := createClient(t, e, map[string]any{"name": "Acme"})
	clientID := client["id"].(string)

	w := e.do(t, http.MethodPost, "/api/projects", e.adminToken, map[string]any{
		"name": "Site", "clientId": clientID,
	})
	wantStatus(t, w, http.StatusCreated)
	projectID := decode(t, w)["project"].(map[string]any)["id"].(string)

	w = e.do(t, http.MethodDelete, "/api/clients/"+clientID, e.adminToken, nil)
	wantStatus(t, w, http.StatusOK)

	// The project survives with its now-dangling weak reference.
	w = e.do(t, http.MethodGet, "/api/projects/"+projectID, e.adminToken, nil)
	wantStatus(t, w, http.StatusOK)
	project, _ := decode(t, w)["project"].(map[string]any)
	if project["clientId"] != clientID {
		t.Fatalf("weak reference must dangle untouched, got %v", project["clientId"])
	}
}
