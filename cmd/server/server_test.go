package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/toricodesthings/wordcloud-service/internal/config"
	"github.com/toricodesthings/wordcloud-service/internal/extract"
	"github.com/toricodesthings/wordcloud-service/internal/logging"
	"github.com/toricodesthings/wordcloud-service/internal/pipeline"
	"github.com/toricodesthings/wordcloud-service/internal/wordfreq"
)

func testConfig() config.Config {
	c := config.Load()
	c.InternalSharedSecret = ""
	c.PDFEngine = "auto"
	c.TrustProxyHeaders = false
	c.StopwordsFile = ""
	c.UseBaselineStopwords = true
	c.BackgroundColor = "#ffffff"
	c.DefaultWidth, c.DefaultHeight = 400, 200
	c.DefaultResolution = 100
	c.DefaultImageFormat = "png"
	c.MinWidth, c.MaxWidth = 400, 2000
	c.MinHeight, c.MaxHeight = 200, 2000
	c.MinResolution, c.MaxResolution = 100, 500
	c.RateLimitEvery = time.Second
	c.RateLimitBurst = 100
	c.MaxConcurrentRequests = 4
	c.RequestTimeout = 30 * time.Second
	return c
}

func newTestServer(t *testing.T, c config.Config) http.Handler {
	t.Helper()
	if err := setup(c, logging.New("error", "text", io.Discard)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return newRouter()
}

type formField struct{ name, value string }

func multipartBody(t *testing.T, fileName, contentType string, data []byte, fields ...formField) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName)}
		if contentType != "" {
			h["Content-Type"] = []string{contentType}
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, h http.Handler, path, fileName, contentType string, data []byte, fields ...formField) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, fileName, contentType, data, fields...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["status"] != "healthy" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAnalyzeReturnsFrequencyTable(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := post(t, h, "/api/analyze", "notes.txt", "text/plain", []byte("the cat sat on the mat"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success  bool                 `json:"success"`
		File     pipeline.FileDetails `json:"file"`
		FileType string               `json:"fileType"`
		Table    wordfreq.Table       `json:"table"`
		TopWords []string             `json:"topWords"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.FileType != "plain" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.File.Name != "notes.txt" || resp.File.Size != 22 {
		t.Fatalf("unexpected file details %+v", resp.File)
	}
	if len(resp.Table) != 5 || resp.Table[0].Word != "the" || resp.Table[0].Count != 2 {
		t.Fatalf("unexpected table %+v", resp.Table)
	}
	if len(resp.TopWords) != 5 {
		t.Fatalf("unexpected top words %v", resp.TopWords)
	}
}

func TestAnalyzeGenericTypeFallsBackToExtension(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := post(t, h, "/api/analyze", "notes.txt", "application/octet-stream", []byte("plain words"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name        string
		fileName    string
		contentType string
		data        []byte
		want        int
		code        string
	}{
		{"unsupported", "page.html", "text/html", []byte("<p>hi</p>"), http.StatusUnsupportedMediaType, "unsupported_format"},
		{"invalid utf8", "bad.txt", "text/plain", []byte{'o', 'k', 0xff}, http.StatusUnprocessableEntity, "unprocessable"},
		{"broken docx", "report.docx", "", []byte("not a zip"), http.StatusUnprocessableEntity, "unprocessable"},
		{"broken pdf", "paper.pdf", "application/pdf", []byte("%PDF-1.4 garbage"), http.StatusUnprocessableEntity, "unprocessable"},
	}

	h := newTestServer(t, testConfig())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(t, h, "/api/analyze", tc.fileName, tc.contentType, tc.data)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			if body := decodeJSON(t, rec); body["code"] != tc.code || body["success"] != false {
				t.Fatalf("unexpected body %v", body)
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	c := testConfig()
	c.MaxUploadBytes = 64
	c.MaxTextBytes = 64
	h := newTestServer(t, c)

	rec := post(t, h, "/api/analyze", "big.txt", "text/plain", bytes.Repeat([]byte("a "), 100))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMissingFileIsBadRequest(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := post(t, h, "/api/analyze", "", "", nil, formField{"width", "800"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart body, got %d", rec.Code)
	}
}

func TestURLInputRejectsPrivateHosts(t *testing.T) {
	t.Setenv("ALLOW_PRIVATE_DOWNLOAD_URLS", "")
	h := newTestServer(t, testConfig())

	rec := post(t, h, "/api/analyze", "", "", nil, formField{"url", "https://127.0.0.1/notes.txt"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["code"] != "validation_failed" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestWordcloudPNG(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := post(t, h, "/api/wordcloud", "notes.txt", "text/plain",
		[]byte("cloud cloud cloud words words render the and"),
		formField{"seed", "42"}, formField{"stopwords", "render"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "wordcloud.png") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("body is not a png")
	}
	if rec.Header().Get("X-Words-Placed") == "0" {
		t.Fatalf("expected placed words")
	}
}

func TestWordcloudSVGFormat(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := post(t, h, "/api/wordcloud", "notes.txt", "text/plain", []byte("alpha beta beta"),
		formField{"format", "svg"}, formField{"width", "600"}, formField{"height", "300"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `width="600"`) {
		t.Fatalf("unexpected svg %s", rec.Body.String())
	}
}

func TestWordcloudValidation(t *testing.T) {
	h := newTestServer(t, testConfig())

	cases := []formField{
		{"width", "100"},
		{"height", "tall"},
		{"resolution", "9000"},
		{"format", "gif"},
		{"useBaselineStopwords", "maybe"},
		{"seed", "-1"},
	}
	for _, f := range cases {
		rec := post(t, h, "/api/wordcloud", "notes.txt", "text/plain", []byte("words"), f)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s=%s: expected 400, got %d", f.name, f.value, rec.Code)
		}
	}
}

func TestTableDownloads(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := post(t, h, "/api/table", "notes.txt", "text/plain", []byte("b a b"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Word,Count\nb,2\na,1\n" {
		t.Fatalf("unexpected csv %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "word_count.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}

	rec = post(t, h, "/api/table?format=xlsx", "notes.txt", "text/plain", []byte("b a b"))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Disposition"), "word_count.xlsx") {
		t.Fatalf("unexpected xlsx response %d %v", rec.Code, rec.Header())
	}

	rec = post(t, h, "/api/table?format=ods", "notes.txt", "text/plain", []byte("b a b"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown table format, got %d", rec.Code)
	}
}

func TestStopwordsListing(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stopwords", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Count     int      `json:"count"`
		Stopwords []string `json:"stopwords"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count == 0 || resp.Count != len(resp.Stopwords) {
		t.Fatalf("unexpected listing %+v", resp)
	}
}

func TestInternalAuth(t *testing.T) {
	c := testConfig()
	c.InternalSharedSecret = strings.Repeat("s", 32)
	h := newTestServer(t, c)

	rec := post(t, h, "/api/analyze", "notes.txt", "text/plain", []byte("words"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("words"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Internal-Auth", c.InternalSharedSecret)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health must not require auth, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("metrics must require auth, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	c := testConfig()
	c.RateLimitEvery = time.Hour
	c.RateLimitBurst = 1
	h := newTestServer(t, c)

	get := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stopwords", nil))
		return rec.Code
	}
	if code := get(); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := get(); code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", code)
	}
}

func TestMethodNotAllowedAndNotFound(t *testing.T) {
	h := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["code"] != "method_not_allowed" {
		t.Fatalf("unexpected body %v", body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsCountExtractions(t *testing.T) {
	h := newTestServer(t, testConfig())
	post(t, h, "/api/analyze", "notes.txt", "text/plain", []byte("one two"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := decodeJSON(t, rec)
	byType, _ := body["extractions"].(map[string]any)
	if byType["plain"] != float64(1) {
		t.Fatalf("expected one plain extraction, got %v", body)
	}
	if body["totalRequests"] != float64(1) {
		t.Fatalf("expected one counted request, got %v", body["totalRequests"])
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&extract.UnsupportedFormatError{MIMEType: "image/png"}, http.StatusUnsupportedMediaType},
		{fmt.Errorf("wrapped: %w", extract.TooLarge("upload", 1<<20)), http.StatusRequestEntityTooLarge},
		{&extract.DecodeError{Offset: 3}, http.StatusUnprocessableEntity},
		{&extract.FormatError{Format: extract.FormatPDF, Err: errors.New("bad xref")}, http.StatusUnprocessableEntity},
		{&pipeline.ValidationError{Field: "width", Reason: "too small"}, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if ip := getClientIP(req); ip != "203.0.113.9" {
		t.Fatalf("unexpected ip %q", ip)
	}
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	req.Header.Set("X-Real-IP", "198.51.100.2")

	cfg.TrustProxyHeaders = false
	if ip := getClientIP(req); ip != "203.0.113.9" {
		t.Fatalf("forwarding headers must be ignored without a trusted proxy, got %q", ip)
	}

	cfg.TrustProxyHeaders = true
	defer func() { cfg.TrustProxyHeaders = false }()
	if ip := getClientIP(req); ip != "198.51.100.1" {
		t.Fatalf("unexpected forwarded ip %q", ip)
	}
	req.Header.Del("X-Forwarded-For")
	if ip := getClientIP(req); ip != "198.51.100.2" {
		t.Fatalf("unexpected real ip %q", ip)
	}
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	c := testConfig()
	c.RateLimitEvery = time.Hour
	c.RateLimitBurst = 1
	h := newTestServer(t, c)

	get := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/stopwords", nil)
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := get("198.51.100.1"); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := get("198.51.100.2"); code != http.StatusTooManyRequests {
		t.Fatalf("rotating X-Forwarded-For must not reset the limit, got %d", code)
	}
}

func TestSanitizeError(t *testing.T) {
	long := errors.New(strings.Repeat("x", 400))
	if got := sanitizeError(long); len(got) != 303 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated message, got %d chars", len(got))
	}
	if sanitizeError(nil) != "" {
		t.Fatalf("nil error should sanitize to empty string")
	}
	if got := sanitizeLogString("a\r\nb"); got != "ab" {
		t.Fatalf("unexpected %q", got)
	}
}
