package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"todone/internal/config"
)

func newTestClient(baseURL string) *Client {
	return New(config.RemoteConfig{
		BaseURL:  baseURL,
		APIKey:   "key",
		APIExtra: "extra",
	})
}

func TestCreateEntity(t *testing.T) {
	var gotPath, gotBody, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"srv-42"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	id, err := client.CreateEntity(context.Background(), "tasks", `{"title":"Buy milk"}`)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "srv-42" {
		t.Fatalf("expected srv-42, got %s", id)
	}
	if gotPath != "/api/v1/tasks" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotBody != `{"title":"Buy milk"}` {
		t.Fatalf("unexpected body %s", gotBody)
	}
	if gotKey != "key" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
}

func TestCreateEntity_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.CreateEntity(context.Background(), "tasks", `{}`)
	if err == nil {
		t.Fatalf("expected error for response without id")
	}
}

func TestUpdateEntity_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		http.Error(w, "conflict", http.StatusConflict)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.UpdateEntity(context.Background(), "tasks", "t1", `{}`)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", statusErr.StatusCode)
	}
}

func TestDeleteEntity(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if err := client.DeleteEntity(context.Background(), "tasks", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/v1/tasks/t1" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	client := newTestClient(srv.URL)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	srv.Close()
	if err := client.Health(context.Background()); err == nil {
		t.Fatalf("expected error against closed server")
	}
}

func TestPullTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tasks":[{"id":"t1","title":"Buy milk"},{"id":"t2","title":"Walk dog"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	tasks, err := client.PullTasks(context.Background())
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
}
