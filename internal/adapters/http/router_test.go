package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

type ingestorFake struct {
	result *domain.IngestResult
	err    error
}

func (f *ingestorFake) Ingest(_ context.Context, filename string, _ int64, body io.Reader) (*domain.IngestResult, error) {
	_, _ = io.Copy(io.Discard, body)
	if f.err != nil {
		return f.result, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.IngestResult{
		Document: &domain.Document{
			ID:       "doc-1",
			Filename: filename,
			FileType: domain.FileTypePDF,
			Status:   domain.StatusIndexed,
		},
		ChunksTotal:   3,
		ChunksIndexed: 3,
	}, nil
}

type queryFake struct {
	answer *domain.Answer
	err    error
	k      int
}

func (f *queryFake) Ask(_ context.Context, _ string, k int) (*domain.Answer, error) {
	f.k = k
	return f.answer, f.err
}

func (f *queryFake) AskStream(_ context.Context, _ string, k int, emit func(string) error) (*domain.Answer, error) {
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	for _, delta := range []string{"The answer ", "is 42."} {
		if err := emit(delta); err != nil {
			return nil, err
		}
	}
	return f.answer, nil
}

func (f *queryFake) Summarize(context.Context, string) (*domain.Answer, error) {
	return f.answer, f.err
}

type adminFake struct {
	resets int
	err    error
}

func (f *adminFake) Reset(context.Context) error {
	f.resets++
	return f.err
}

func testAnswer() *domain.Answer {
	return &domain.Answer{
		Text: "The answer is 42.",
		Sources: []domain.Citation{
			{Index: 1, SourceFile: "a.pdf", Page: 2, ContentType: domain.ContentText, Preview: "alpha"},
		},
		SourceCount: 1,
	}
}

func newTestHandler(ingest *ingestorFake, query *queryFake, admin *adminFake) http.Handler {
	return NewRouter(ingest, query, admin, nil, RouterOptions{}).Handler()
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadReturnsChunkCounts(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &queryFake{}, &adminFake{})

	body, contentType := multipartBody(t, "report.pdf", "%PDF-1.4 fake")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", res.Code, res.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["chunks_indexed"] != float64(3) || resp["chunks_total"] != float64(3) {
		t.Fatalf("response = %v", resp)
	}
	if resp["document_id"] != "doc-1" {
		t.Fatalf("document_id = %v", resp["document_id"])
	}
}

func TestUploadUnsupportedFormatIs415(t *testing.T) {
	ingest := &ingestorFake{err: domain.WrapError(domain.ErrUnsupportedFormat, "ingest", errors.New("extension .exe"))}
	handler := newTestHandler(ingest, &queryFake{}, &adminFake{})

	body, contentType := multipartBody(t, "tool.exe", "MZ")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestUploadMissingFileFieldIs400(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &queryFake{}, &adminFake{})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestUploadPartialIndexCarriesCounts(t *testing.T) {
	ingest := &ingestorFake{
		err: &domain.PartialIndexError{Indexed: 7, Total: 10, Err: errors.New("embed quota")},
	}
	handler := newTestHandler(ingest, &queryFake{}, &adminFake{})

	body, contentType := multipartBody(t, "big.pdf", "%PDF-1.4")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", res.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["chunks_indexed"] != float64(7) || resp["chunks_total"] != float64(10) {
		t.Fatalf("response = %v", resp)
	}
}

func TestAskReturnsAnswerWithSources(t *testing.T) {
	query := &queryFake{answer: testAnswer()}
	handler := newTestHandler(&ingestorFake{}, query, &adminFake{})

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"what is it","k":3}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", res.Code, res.Body.String())
	}
	if query.k != 3 {
		t.Fatalf("k = %d", query.k)
	}
	var answer domain.Answer
	if err := json.Unmarshal(res.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text != "The answer is 42." || len(answer.Sources) != 1 {
		t.Fatalf("answer = %+v", answer)
	}
}

func TestAskBlankQuestionIs400(t *testing.T) {
	handler := newTestHandler(&ingestorFake{}, &queryFake{answer: testAnswer()}, &adminFake{})

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestAskEmptyIndexIs404(t *testing.T) {
	query := &queryFake{err: domain.WrapError(domain.ErrEmptyIndex, "retrieve", errors.New("nothing indexed"))}
	handler := newTestHandler(&ingestorFake{}, query, &adminFake{})

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestAskGenerationFailureIs502(t *testing.T) {
	query := &queryFake{err: domain.WrapError(domain.ErrGeneration, "generate", errors.New("model refused"))}
	handler := newTestHandler(&ingestorFake{}, query, &adminFake{})

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestAskStreamEmitsSSEFrames(t *testing.T) {
	query := &queryFake{answer: testAnswer()}
	handler := newTestHandler(&ingestorFake{}, query, &adminFake{})

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q","stream":true}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}

	frames := strings.Split(strings.TrimSpace(res.Body.String()), "\n\n")
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d: %q", len(frames), res.Body.String())
	}

	var first map[string]string
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &first); err != nil {
		t.Fatalf("decode first frame: %v", err)
	}
	if first["delta"] != "The answer " {
		t.Fatalf("first delta = %q", first["delta"])
	}

	var final struct {
		Sources     []domain.Citation `json:"sources"`
		SourceCount int               `json:"source_count"`
	}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[2], "data: ")), &final); err != nil {
		t.Fatalf("decode sources frame: %v", err)
	}
	if final.SourceCount != 1 || len(final.Sources) != 1 {
		t.Fatalf("final frame = %+v", final)
	}
	if frames[3] != "data: [DONE]" {
		t.Fatalf("last frame = %q", frames[3])
	}
}

func TestAskStreamErrorBeforeFirstDeltaUsesStatusCode(t *testing.T) {
	query := &queryFake{err: domain.WrapError(domain.ErrEmptyIndex, "retrieve", errors.New("nothing indexed"))}
	handler := newTestHandler(&ingestorFake{}, query, &adminFake{})

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q","stream":true}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestSummarizeWithEmptyBody(t *testing.T) {
	query := &queryFake{answer: testAnswer()}
	handler := newTestHandler(&ingestorFake{}, query, &adminFake{})

	req := httptest.NewRequest(http.MethodPost, "/summarize", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", res.Code, res.Body.String())
	}
}

func TestResetRequiresDelete(t *testing.T) {
	admin := &adminFake{}
	handler := newTestHandler(&ingestorFake{}, &queryFake{}, admin)

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", res.Code)
	}
	if admin.resets != 0 {
		t.Fatal("reset must not run on POST")
	}

	req = httptest.NewRequest(http.MethodDelete, "/reset", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	if admin.resets != 1 {
		t.Fatalf("resets = %d", admin.resets)
	}
}

func TestResetStoreUnavailableIs503(t *testing.T) {
	admin := &adminFake{err: domain.WrapError(domain.ErrVectorStoreUnavailable, "delete", errors.New("down"))}
	handler := newTestHandler(&ingestorFake{}, &queryFake{}, admin)

	req := httptest.NewRequest(http.MethodDelete, "/reset", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", res.Code)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := NewRouter(&ingestorFake{}, &queryFake{answer: testAnswer()}, &adminFake{}, nil, RouterOptions{
		RateLimitRPS:   1,
		RateLimitBurst: 1,
	}).Handler()

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated gate, got %d", res2.Code)
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for first request completion")
	}
}
