package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

func sampleChunks() ([]domain.Chunk, [][]float32) {
	chunks := []domain.Chunk{
		{ID: "doc-1:0", DocumentID: "doc-1", SourceFile: "a.pdf", FileType: domain.FileTypePDF, Seq: 0, Page: 1, ContentType: domain.ContentText, Text: "alpha"},
		{ID: "doc-1:1", DocumentID: "doc-1", SourceFile: "a.pdf", FileType: domain.FileTypePDF, Seq: 1, Page: 2, ContentType: domain.ContentText, Text: "beta"},
	}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	return chunks, vectors
}

func TestUpsertEnsuresCollectionOnce(t *testing.T) {
	var ensureCalls int32
	var upserted struct {
		Points []struct {
			ID      string         `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			if err := json.NewDecoder(r.Body).Decode(&upserted); err != nil {
				t.Errorf("decode upsert body: %v", err)
			}
			w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs", 2, nil)
	chunks, vectors := sampleChunks()

	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if len(upserted.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(upserted.Points))
	}
	if upserted.Points[0].Payload["source_file"] != "a.pdf" {
		t.Errorf("payload source_file = %v", upserted.Points[0].Payload["source_file"])
	}
}

func TestUpsertPointIDsAreDeterministic(t *testing.T) {
	first := pointID("doc-1:0")
	if first != pointID("doc-1:0") {
		t.Fatal("same chunk id must map to the same point id")
	}
	if first == pointID("doc-1:1") {
		t.Fatal("different chunk ids must map to different point ids")
	}
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	client := New("http://localhost:1", "docs", 768, nil)
	chunks, _ := sampleChunks()
	err := client.Upsert(context.Background(), chunks, [][]float32{{0.1, 0.2}, {0.3, 0.4}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchMapsPayloadToChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/docs/points/search" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"result":[
			{"score":0.92,"payload":{"doc_id":"doc-1","source_file":"a.pdf","file_type":"pdf","seq":3,"page":2,"slide":0,"content_type":"text","text":"alpha"}},
			{"score":0.81,"payload":{"doc_id":"doc-2","source_file":"deck.pptx","file_type":"pptx","seq":0,"page":0,"slide":4,"content_type":"image","text":"[IMAGE OCR] beta"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs", 2, nil)
	got, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Score != 0.92 || got[0].Page != 2 || got[0].Seq != 3 || got[0].SourceFile != "a.pdf" {
		t.Fatalf("first result = %+v", got[0])
	}
	if got[1].Slide != 4 || got[1].ContentType != domain.ContentImage {
		t.Fatalf("second result = %+v", got[1])
	}
}

func TestSearchMissingCollectionYieldsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs", 2, nil)
	got, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Search() on missing collection error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestSearchServerErrorIsVectorStoreUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "docs", 2, nil)
	_, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5)
	if !errors.Is(err, domain.ErrVectorStoreUnavailable) {
		t.Fatalf("expected ErrVectorStoreUnavailable, got %v", err)
	}
}

func TestDeleteCollectionTolerates404AndResetsEnsure(t *testing.T) {
	var ensureCalls int32
	var deleted bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/collections/docs":
			if deleted {
				http.NotFound(w, r)
				return
			}
			deleted = true
			w.Write([]byte(`{"result":true}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs", 2, nil)
	chunks, vectors := sampleChunks()
	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := client.DeleteCollection(context.Background()); err != nil {
		t.Fatalf("DeleteCollection() error = %v", err)
	}
	if err := client.DeleteCollection(context.Background()); err != nil {
		t.Fatalf("DeleteCollection() on missing collection error = %v", err)
	}

	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("Upsert() after reset error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 2 {
		t.Fatalf("expected collection recreated after delete, ensure calls = %d", got)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections" {
			w.Write([]byte(`{"result":{"collections":[]}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	if err := New(server.URL, "docs", 2, nil).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	server.Close()
	if err := New(server.URL, "docs", 2, nil).Ping(context.Background()); !errors.Is(err, domain.ErrVectorStoreUnavailable) {
		t.Fatalf("expected ErrVectorStoreUnavailable after shutdown, got %v", err)
	}
}
