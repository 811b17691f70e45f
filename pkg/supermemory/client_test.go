package supermemory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), "sk-test", append([]Option{WithBaseURL(srv.URL)}, opts...)...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), " "); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestStore(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/documents" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Expected bearer auth, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"id": "mem_1", "status": "queued"}`))
	}, WithSpace("kanban"))

	doc, err := c.Store(context.Background(), "  Task: a  ", []string{"task", "col-done"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if doc.ID != "mem_1" {
		t.Errorf("Expected id mem_1, got %s", doc.ID)
	}
	if got["content"] != "Task: a" {
		t.Errorf("Expected trimmed content, got %v", got["content"])
	}
	md, _ := got["metadata"].(map[string]interface{})
	if md["space"] != "kanban" {
		t.Errorf("Expected space in metadata, got %v", md)
	}
	if tags, _ := md["tags"].([]interface{}); len(tags) != 2 {
		t.Errorf("Expected 2 tags, got %v", md["tags"])
	}
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for empty content")
	})
	if _, err := c.Store(context.Background(), "   ", nil); err == nil {
		t.Error("Expected error for empty content")
	}
}

func TestSearchFallsBackToPost(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodGet {
			if r.URL.Query().Get("q") != "login" {
				t.Errorf("Expected q=login, got %s", r.URL.RawQuery)
			}
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(`{"documents": [{"id": "a", "content": "Task: Fix login bug"}]}`))
	})

	docs, err := c.Search(context.Background(), "login", SearchOptions{Tags: []string{"task"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Errorf("Unexpected results: %+v", docs)
	}
	if len(methods) != 2 || methods[0] != http.MethodGet || methods[1] != http.MethodPost {
		t.Errorf("Expected GET then POST, got %v", methods)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})
	err := c.Delete(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 APIError, got %v", err)
	}
}
