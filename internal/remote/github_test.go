package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/verte-zerg/schooldash/internal/model"
)

const sampleDataset = `{
  "timeSettings": [
    {"period": 1, "start": "08:50", "end": "09:40"},
    {"period": 2, "start": "09:50", "end": "10:40"}
  ],
  "tests": [{"name": "Midterm", "date": "2026-11-02"}],
  "schedule": {"21HR": {"Mon": ["Math", "English"]}}
}`

type fakeRepo struct {
	mu      sync.Mutex
	sha     string
	content []byte
	puts    []putRequest
	auth    string
}

func (f *fakeRepo) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.URL.Path != "/repos/school/data/contents/data/dashboard.json" {
			http.NotFound(w, r)
			return
		}
		f.auth = r.Header.Get("Authorization")
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("ref") != "main" {
				t.Errorf("expected ref=main, got %q", r.URL.RawQuery)
			}
			if f.content == nil {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"message":"Not Found"}`)
				return
			}
			encoded := base64.StdEncoding.EncodeToString(f.content)
			// GitHub wraps base64 content at 60 columns.
			var wrapped strings.Builder
			for len(encoded) > 60 {
				wrapped.WriteString(encoded[:60] + "\n")
				encoded = encoded[60:]
			}
			wrapped.WriteString(encoded)
			_ = json.NewEncoder(w).Encode(contentsFile{SHA: f.sha, Content: wrapped.String(), Encoding: "base64"})
		case http.MethodPut:
			var req putRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode put: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.puts = append(f.puts, req)
			if req.SHA != f.sha {
				w.WriteHeader(http.StatusConflict)
				_, _ = io.WriteString(w, `{"message":"does not match"}`)
				return
			}
			raw, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				t.Errorf("decode content: %v", err)
			}
			f.content = raw
			f.sha = f.sha + "+"
			_ = json.NewEncoder(w).Encode(putResponse{Content: contentsFile{SHA: f.sha}})
		}
	})
}

func newClient(srv *httptest.Server, optimistic bool) *GitHub {
	return &GitHub{
		Owner:      "school",
		Repo:       "data",
		Path:       "data/dashboard.json",
		Branch:     "main",
		Token:      "secret",
		Optimistic: optimistic,
		BaseURL:    srv.URL,
		Client:     srv.Client(),
	}
}

func TestLoad(t *testing.T) {
	repo := &fakeRepo{sha: "abc", content: []byte(sampleDataset)}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()

	ds, err := newClient(srv, false).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Revision != "abc" {
		t.Fatalf("expected revision abc, got %q", ds.Revision)
	}
	if len(ds.Periods) != 2 || ds.Periods[1].Start != model.NewClock(9, 50) {
		t.Fatalf("unexpected periods: %+v", ds.Periods)
	}
	if ds.Schedule["21HR"][model.Monday][1] != "English" {
		t.Fatalf("unexpected schedule: %+v", ds.Schedule)
	}
	if len(ds.Tests) != 1 || ds.Tests[0].Name != "Midterm" {
		t.Fatalf("unexpected tests: %+v", ds.Tests)
	}
	if repo.auth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", repo.auth)
	}
}

func TestLoadFailures(t *testing.T) {
	cases := map[string]*fakeRepo{
		"missing":   {sha: "abc"},
		"malformed": {sha: "abc", content: []byte(`{"timeSettings": [`)},
		"invalid":   {sha: "abc", content: []byte(`{"timeSettings":[{"period":1,"start":"10:00","end":"09:00"}]}`)},
	}
	for name, repo := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(repo.handler(t))
			defer srv.Close()
			if _, err := newClient(srv, false).Load(context.Background()); !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestLoadNotConfigured(t *testing.T) {
	if _, err := (&GitHub{Owner: "school"}).Load(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLoadServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := newClient(srv, false)
	srv.Close()
	if _, err := client.Load(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSaveLastWriteWins(t *testing.T) {
	repo := &fakeRepo{sha: "abc", content: []byte(sampleDataset)}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()
	client := newClient(srv, false)

	ds, err := client.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Someone else saved in between.
	repo.sha = "other"

	ds.Version = 3
	ds.Schedule["21HR"][model.Monday][0] = "Physics"
	rev, err := client.Save(context.Background(), ds)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rev != "other+" {
		t.Fatalf("expected new revision other+, got %q", rev)
	}
	last := repo.puts[len(repo.puts)-1]
	if last.Branch != "main" || last.SHA != "other" || last.Message == "" {
		t.Fatalf("unexpected put request: %+v", last)
	}

	reloaded, err := client.Load(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Version != 3 || reloaded.Schedule["21HR"][model.Monday][0] != "Physics" {
		t.Fatalf("unexpected reloaded dataset: %+v", reloaded)
	}
}

func TestSaveOptimisticConflict(t *testing.T) {
	repo := &fakeRepo{sha: "abc", content: []byte(sampleDataset)}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()
	client := newClient(srv, true)

	ds, err := client.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	repo.sha = "other"

	_, err = client.Save(context.Background(), ds)
	if !errors.Is(err, ErrSaveRejected) {
		t.Fatalf("expected ErrSaveRejected, got %v", err)
	}
	var rejected *SaveRejectedError
	if !errors.As(err, &rejected) || rejected.Status != http.StatusConflict || rejected.Message != "does not match" {
		t.Fatalf("unexpected rejection: %#v", err)
	}
}

func TestSaveCreatesMissingFile(t *testing.T) {
	repo := &fakeRepo{}
	srv := httptest.NewServer(repo.handler(t))
	defer srv.Close()

	if _, err := newClient(srv, false).Save(context.Background(), model.DefaultAdminDataset()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(repo.puts) != 1 || repo.puts[0].SHA != "" {
		t.Fatalf("expected a create without sha, got %+v", repo.puts)
	}
}
