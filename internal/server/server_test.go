package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UjjwalSharma01/reader/internal/app"
	"github.com/UjjwalSharma01/reader/internal/reader"
	"github.com/UjjwalSharma01/reader/pkg/domain"
	"github.com/UjjwalSharma01/reader/pkg/kv"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	a, err := app.New(app.Config{
		KV:      kv.NewMemoryStore(),
		DataDir: t.TempDir(),
		TempDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	ts := httptest.NewServer(New(Config{App: a}).Router())
	t.Cleanup(ts.Close)
	return ts
}

func multipartUpload(t *testing.T, files map[string]string) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return mw.FormDataContentType(), &buf
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func uploadOne(t *testing.T, ts *httptest.Server, name, content string) domain.Book {
	t.Helper()
	ct, body := multipartUpload(t, map[string]string{name: content})
	resp, err := http.Post(ts.URL+"/books", ct, body)
	if err != nil {
		t.Fatalf("POST /books: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var out struct {
		Results []struct {
			Book *domain.Book `json:"book"`
		} `json:"results"`
	}
	decodeBody(t, resp, &out)
	if len(out.Results) != 1 || out.Results[0].Book == nil {
		t.Fatalf("upload results = %+v", out.Results)
	}
	return *out.Results[0].Book
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestUploadMixedBatch(t *testing.T) {
	ts := newTestServer(t)
	ct, body := multipartUpload(t, map[string]string{
		"good.txt":  "some plain text",
		"photo.png": "not a book",
	})
	resp, err := http.Post(ts.URL+"/books", ct, body)
	if err != nil {
		t.Fatalf("POST /books: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (one file succeeded)", resp.StatusCode)
	}
	var out struct {
		Results []uploadResult `json:"results"`
		Created int            `json:"created"`
	}
	decodeBody(t, resp, &out)
	if out.Created != 1 || len(out.Results) != 2 {
		t.Fatalf("created=%d results=%d", out.Created, len(out.Results))
	}
	for _, res := range out.Results {
		switch res.FileName {
		case "good.txt":
			if res.Book == nil || res.Error != "" {
				t.Fatalf("good.txt = %+v", res)
			}
		case "photo.png":
			if res.Book != nil || res.Code != "UPLOAD_UNSUPPORTED_FORMAT" {
				t.Fatalf("photo.png = %+v", res)
			}
		default:
			t.Fatalf("unexpected result %+v", res)
		}
	}
}

func TestUploadAllRejected(t *testing.T) {
	ts := newTestServer(t)
	ct, body := multipartUpload(t, map[string]string{"a.exe": "x", "b.png": "y"})
	resp, err := http.Post(ts.URL+"/books", ct, body)
	if err != nil {
		t.Fatalf("POST /books: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestListSortedAndFiltered(t *testing.T) {
	ts := newTestServer(t)
	uploadOne(t, ts, "beta.txt", "b")
	uploadOne(t, ts, "alpha.txt", "a")

	resp, err := http.Get(ts.URL + "/books?sort=title")
	if err != nil {
		t.Fatalf("GET /books: %v", err)
	}
	var out struct {
		Items []domain.Book `json:"items"`
		Count int           `json:"count"`
	}
	decodeBody(t, resp, &out)
	if out.Count != 2 || out.Items[0].Title != "alpha" {
		t.Fatalf("listing = %+v", out)
	}
	for _, b := range out.Items {
		if b.Data != "" {
			t.Fatalf("listing carries payload for %q", b.Title)
		}
	}

	resp, err = http.Get(ts.URL + "/books?q=alp")
	if err != nil {
		t.Fatalf("GET /books?q: %v", err)
	}
	decodeBody(t, resp, &out)
	if out.Count != 1 || out.Items[0].Title != "alpha" {
		t.Fatalf("filtered listing = %+v", out)
	}
}

func TestGetAndDeleteBook(t *testing.T) {
	ts := newTestServer(t)
	book := uploadOne(t, ts, "gone.txt", "short")

	resp, err := http.Get(ts.URL + "/books/" + book.ID)
	if err != nil {
		t.Fatalf("GET book: %v", err)
	}
	var got domain.Book
	decodeBody(t, resp, &got)
	if got.ID != book.ID {
		t.Fatalf("got %+v", got)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/books/"+book.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE book: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/books/" + book.ID)
	if err != nil {
		t.Fatalf("GET deleted book: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status after delete = %d", resp.StatusCode)
	}
}

func TestReaderSessionFlow(t *testing.T) {
	ts := newTestServer(t)
	book := uploadOne(t, ts, "long.txt", strings.Repeat("word ", 2500))

	resp := postJSON(t, ts.URL+"/books/"+book.ID+"/open", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open status = %d", resp.StatusCode)
	}
	var view reader.View
	decodeBody(t, resp, &view)
	if view.TotalPages != 5 || view.CurrentPage != 0 {
		t.Fatalf("view = %+v", view)
	}

	resp = postJSON(t, ts.URL+"/reader/goto", map[string]int{"page": 2})
	decodeBody(t, resp, &view)
	if view.CurrentPage != 2 {
		t.Fatalf("goto -> %d", view.CurrentPage)
	}

	resp = postJSON(t, ts.URL+"/reader/bookmarks", map[string]string{"note": "here"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bookmark status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &view)
	if len(view.Bookmarks) != 1 || view.Bookmarks[0].Page != 2 {
		t.Fatalf("bookmarks = %+v", view.Bookmarks)
	}
	bookmarkID := view.Bookmarks[0].ID

	resp = postJSON(t, ts.URL+"/reader/next", nil)
	decodeBody(t, resp, &view)
	if view.CurrentPage != 3 {
		t.Fatalf("next -> %d", view.CurrentPage)
	}
	resp = postJSON(t, ts.URL+"/reader/prev", nil)
	decodeBody(t, resp, &view)
	if view.CurrentPage != 2 {
		t.Fatalf("prev -> %d", view.CurrentPage)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/reader/bookmarks/"+bookmarkID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE bookmark: %v", err)
	}
	decodeBody(t, resp, &view)
	if len(view.Bookmarks) != 0 {
		t.Fatalf("bookmarks after delete = %+v", view.Bookmarks)
	}

	resp = postJSON(t, ts.URL+"/reader/close", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/reader")
	if err != nil {
		t.Fatalf("GET /reader: %v", err)
	}
	var errBody errorResponse
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusConflict || errBody.Code != "READER_NO_SESSION" {
		t.Fatalf("status=%d body=%+v", resp.StatusCode, errBody)
	}
}

func TestOpenUnknownBook(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/books/missing/open", nil)
	var errBody errorResponse
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusNotFound || errBody.Code != "BOOK_DATA_NOT_FOUND" {
		t.Fatalf("status=%d body=%+v", resp.StatusCode, errBody)
	}
}

func TestOpenCorruptEPUB(t *testing.T) {
	ts := newTestServer(t)
	book := uploadOne(t, ts, "broken.epub", "this is not a zip archive")

	resp := postJSON(t, ts.URL+"/books/"+book.ID+"/open", nil)
	var errBody errorResponse
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusUnprocessableEntity || errBody.Code != "BOOK_INVALID_CONTAINER" {
		t.Fatalf("status=%d body=%+v", resp.StatusCode, errBody)
	}

	// The library entry stays intact after the failed open.
	resp2, err := http.Get(ts.URL + "/books/" + book.ID)
	if err != nil {
		t.Fatalf("GET book: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("library entry lost: %d", resp2.StatusCode)
	}
}

func TestSettingsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/settings")
	if err != nil {
		t.Fatalf("GET /settings: %v", err)
	}
	var settings domain.ReaderSettings
	decodeBody(t, resp, &settings)
	if settings != domain.DefaultSettings() {
		t.Fatalf("defaults = %+v", settings)
	}

	settings.Theme = "dark"
	settings.FontSize = 20
	body, _ := json.Marshal(settings)
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /settings: %v", err)
	}
	var saved domain.ReaderSettings
	decodeBody(t, resp, &saved)
	if saved.Theme != "dark" || saved.FontSize != 20 {
		t.Fatalf("saved = %+v", saved)
	}
}

func TestRequestIDPropagatedToErrors(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/reader")
	if err != nil {
		t.Fatalf("GET /reader: %v", err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("no request id header")
	}
	var errBody errorResponse
	decodeBody(t, resp, &errBody)
	if errBody.RequestID == "" {
		t.Fatal("error body missing request id")
	}
}
