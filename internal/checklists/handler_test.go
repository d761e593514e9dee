package checklists_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"tender-backend/internal/bootstrap"
	"tender-backend/internal/shared/config"
)

func buildTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(app.Scheduler.Stop)
	return app
}

func doJSON(t *testing.T, router *gin.Engine, method, path, guestID string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Guest-Id", guestID)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func createChecklist(t *testing.T, router *gin.Engine, guestID, body string) string {
	t.Helper()

	resp := doJSON(t, router, http.MethodPost, "/api/v1/checklists", guestID, body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ChecklistID string `json:"checklistId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return created.ChecklistID
}

func TestChecklistsUpdateOverHTTP(t *testing.T) {
	app := buildTestApp(t)
	router := app.Router

	id := createChecklist(t, router, "guest-a",
		`{"name":"Vergabe","description":"alt","language":"de","items":[{"kind":"question","text":"Lieferfrist?"}]}`)

	resp := doJSON(t, router, http.MethodPut, "/api/v1/checklists/"+id, "guest-a",
		`{"name":"Vergabe Q4","language":"en"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var updated struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Language    string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	if updated.Name != "Vergabe Q4" || updated.Language != "en" {
		t.Fatalf("fields not updated: %+v", updated)
	}
	if updated.Description != "alt" {
		t.Fatalf("omitted field must stay untouched, got %q", updated.Description)
	}

	// Another user cannot update it.
	resp = doJSON(t, router, http.MethodPut, "/api/v1/checklists/"+id, "guest-b", `{"name":"hijacked"}`)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for foreign update, got %d", resp.Code)
	}
}

func TestChecklistsAddItemOverHTTP(t *testing.T) {
	app := buildTestApp(t)
	router := app.Router

	id := createChecklist(t, router, "guest-a",
		`{"name":"Vergabe","items":[{"kind":"question","text":"Lieferfrist?"}]}`)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/checklists/"+id+"/items", "guest-a",
		`{"kind":"condition","text":"ISO 9001 vorhanden"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var item struct {
		ItemID   string `json:"itemId"`
		Kind     string `json:"kind"`
		Position int    `json:"position"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		t.Fatalf("decode item response: %v", err)
	}
	if item.ItemID == "" || item.Kind != "condition" || item.Position != 1 {
		t.Fatalf("unexpected item response: %+v", item)
	}

	get := doJSON(t, router, http.MethodGet, "/api/v1/checklists/"+id, "guest-a", "")
	var cl struct {
		Items []struct {
			Text string `json:"text"`
		} `json:"items"`
	}
	if err := json.NewDecoder(get.Body).Decode(&cl); err != nil {
		t.Fatalf("decode checklist: %v", err)
	}
	if len(cl.Items) != 2 || cl.Items[1].Text != "ISO 9001 vorhanden" {
		t.Fatalf("item not appended: %+v", cl.Items)
	}

	resp = doJSON(t, router, http.MethodPost, "/api/v1/checklists/"+id+"/items", "guest-a",
		`{"kind":"rating","text":"Skala 1-10?"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown kind, got %d", resp.Code)
	}
}

func TestChecklistsTemplatesRouteOverHTTP(t *testing.T) {
	app := buildTestApp(t)
	router := app.Router

	createChecklist(t, router, "guest-a",
		`{"name":"Privat","items":[{"kind":"question","text":"Frage?"}]}`)
	templateID := createChecklist(t, router, "guest-a",
		`{"name":"Vorlage","isTemplate":true,"items":[{"kind":"condition","text":"Referenzen vorhanden"}]}`)

	// The static templates path must not be swallowed by the :id route.
	resp := doJSON(t, router, http.MethodGet, "/api/v1/checklists/templates", "guest-b", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var templates []struct {
		ChecklistID string `json:"checklistId"`
		IsTemplate  bool   `json:"isTemplate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&templates); err != nil {
		t.Fatalf("decode templates: %v", err)
	}
	if len(templates) != 1 || templates[0].ChecklistID != templateID || !templates[0].IsTemplate {
		t.Fatalf("unexpected template listing: %+v", templates)
	}
}

func TestChecklistsDeleteTemplateForbiddenOverHTTP(t *testing.T) {
	app := buildTestApp(t)
	router := app.Router

	templateID := createChecklist(t, router, "guest-a",
		`{"name":"Vorlage","isTemplate":true,"items":[{"kind":"condition","text":"Referenzen vorhanden"}]}`)

	resp := doJSON(t, router, http.MethodDelete, "/api/v1/checklists/"+templateID, "guest-a", "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 deleting a template, got %d: %s", resp.Code, resp.Body.String())
	}

	get := doJSON(t, router, http.MethodGet, "/api/v1/checklists/"+templateID, "guest-a", "")
	if get.Code != http.StatusOK {
		t.Fatalf("template should still exist, got %d", get.Code)
	}
}
