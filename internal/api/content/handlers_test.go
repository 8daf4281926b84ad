package content

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/percussion/percussioncms-sub111/internal/api/authz"
	"github.com/percussion/percussioncms-sub111/internal/content"
	"github.com/percussion/percussioncms-sub111/internal/data"
	"github.com/percussion/percussioncms-sub111/internal/testutil"
)

const importDoc = `<?xml version="1.0" encoding="UTF-8"?>
<items>
  <item path="/sites/www/news/launch.html" name="Launch" type="page">
    <fields><field name="title" value="We launched"/></fields>
  </item>
  <item path="relative/bad.html"/>
</items>`

func setupContentTest(t *testing.T) {
	t.Helper()
	database := testutil.NewTestDB(t)
	prev := store
	store = content.NewService(database)
	t.Cleanup(func() { store = prev })
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/content/import", HandleImport)
	mux.HandleFunc("GET /api/v1/content/items", HandleListItems)
	mux.HandleFunc("GET /api/v1/content/items/{id}", HandleGetItem)
	mux.HandleFunc("POST /api/v1/content/items/{id}/state", HandleChangeState)
	return mux
}

func serve(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{Name: "editor1", Roles: []string{authz.RoleEditor}}))
	rec := httptest.NewRecorder()
	newMux().ServeHTTP(rec, req)
	return rec
}

func TestImportListAndPublish(t *testing.T) {
	setupContentTest(t)

	rec := serve(t, http.MethodPost, "/api/v1/content/import", importDoc)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var imported importResponse
	if err := json.NewDecoder(rec.Body).Decode(&imported); err != nil {
		t.Fatalf("decode import: %v", err)
	}
	if imported.Created != 1 || imported.Failed != 1 || len(imported.Results) != 2 {
		t.Fatalf("unexpected import summary: %+v", imported)
	}
	id := imported.Results[0].ID

	rec = serve(t, http.MethodGet, "/api/v1/content/items?path=/sites/www&maxResults=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page data.PagedResult[data.ItemProperties]
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if page.TotalResults != 1 || page.PageSize != 10 || page.Items[0].LastModifier != "editor1" {
		t.Fatalf("unexpected page: %+v", page)
	}

	rec = serve(t, http.MethodPost, "/api/v1/content/items/"+id+"/state", `{"state":"live"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var item content.Item
	if err := json.NewDecoder(rec.Body).Decode(&item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if item.Status != string(content.StateLive) || item.LastPublishedDate == nil {
		t.Fatalf("expected published item, got %+v", item)
	}
	if item.Fields["title"] != "We launched" {
		t.Fatalf("unexpected fields: %+v", item.Fields)
	}
}

func TestImportRejectsMalformedXML(t *testing.T) {
	setupContentTest(t)

	for _, body := range []string{"", "<items>", "<items></items>"} {
		if rec := serve(t, http.MethodPost, "/api/v1/content/import", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestItemErrors(t *testing.T) {
	setupContentTest(t)

	if rec := serve(t, http.MethodGet, "/api/v1/content/items/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := serve(t, http.MethodPost, "/api/v1/content/items/missing/state", `{"state":"Pending"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown state, got %d", rec.Code)
	}
	if rec := serve(t, http.MethodGet, "/api/v1/content/items?maxResults=0", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad page size, got %d", rec.Code)
	}
}
