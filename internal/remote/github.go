// Package remote loads and saves the shared admin dataset in a GitHub repository.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/verte-zerg/schooldash/internal/model"
	"github.com/verte-zerg/schooldash/internal/schedule"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
	requestTimeout = 30 * time.Second
	commitMessage  = "Update school dashboard data"
	maxErrorBody   = 4 << 10
)

var (
	// ErrNotConfigured is returned when owner, repo or path is missing.
	ErrNotConfigured = errors.New("remote dataset is not configured")
	// ErrUnavailable covers network, HTTP and decoding failures.
	ErrUnavailable = errors.New("remote dataset unavailable")
	// ErrSaveRejected is matched by every *SaveRejectedError.
	ErrSaveRejected = errors.New("remote save rejected")
)

// SaveRejectedError reports a PUT that GitHub refused.
type SaveRejectedError struct {
	Status  int
	Message string
}

func (e *SaveRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote save rejected: HTTP %d", e.Status)
	}
	return fmt.Sprintf("remote save rejected: HTTP %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrSaveRejected) match.
func (e *SaveRejectedError) Is(target error) bool {
	return target == ErrSaveRejected
}

// GitHub stores the admin dataset as a JSON file through the contents API.
type GitHub struct {
	Owner  string
	Repo   string
	Path   string
	Branch string
	Token  string
	// Optimistic sends the revision observed on load instead of re-reading it
	// right before the write, so concurrent edits are rejected.
	Optimistic bool
	// BaseURL defaults to the public GitHub API.
	BaseURL string
	Client  *http.Client
}

// Configured reports whether enough is set to reach the repository.
func (g *GitHub) Configured() bool {
	return g != nil && g.Owner != "" && g.Repo != "" && g.Path != ""
}

type contentsFile struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putResponse struct {
	Content contentsFile `json:"content"`
}

type apiError struct {
	Message string `json:"message"`
}

// Load fetches and validates the dataset. The file's blob sha becomes Revision.
func (g *GitHub) Load(ctx context.Context) (model.AdminDataset, error) {
	if !g.Configured() {
		return model.AdminDataset{}, ErrNotConfigured
	}
	file, found, err := g.fetch(ctx)
	if err != nil {
		return model.AdminDataset{}, err
	}
	if !found {
		return model.AdminDataset{}, fmt.Errorf("%w: %s not found in %s/%s", ErrUnavailable, g.Path, g.Owner, g.Repo)
	}
	if file.Encoding != "" && file.Encoding != "base64" {
		return model.AdminDataset{}, fmt.Errorf("%w: unsupported content encoding %q", ErrUnavailable, file.Encoding)
	}
	raw, err := base64.StdEncoding.DecodeString(stripNewlines(file.Content))
	if err != nil {
		return model.AdminDataset{}, fmt.Errorf("%w: failed to decode content: %v", ErrUnavailable, err)
	}
	ds, err := decodeDataset(raw)
	if err != nil {
		return model.AdminDataset{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	ds.Revision = file.SHA
	return ds, nil
}

// Save writes ds and returns the new revision.
func (g *GitHub) Save(ctx context.Context, ds model.AdminDataset) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	sha := ds.Revision
	if !g.Optimistic {
		file, found, err := g.fetch(ctx)
		if err != nil {
			return "", err
		}
		sha = ""
		if found {
			sha = file.SHA
		}
	}

	payload, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode dataset: %w", err)
	}
	body, err := json.Marshal(putRequest{
		Message: commitMessage,
		Content: base64.StdEncoding.EncodeToString(payload),
		SHA:     sha,
		Branch:  g.Branch,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := g.do(ctx, http.MethodPut, g.contentsURL(false), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity, http.StatusForbidden, http.StatusUnauthorized, http.StatusNotFound:
		return "", &SaveRejectedError{Status: resp.StatusCode, Message: readMessage(resp.Body)}
	default:
		return "", fmt.Errorf("%w: unexpected status %s: %s", ErrUnavailable, resp.Status, readMessage(resp.Body))
	}

	var out putResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: failed to decode save response: %v", ErrUnavailable, err)
	}
	return out.Content.SHA, nil
}

func (g *GitHub) fetch(ctx context.Context) (contentsFile, bool, error) {
	resp, err := g.do(ctx, http.MethodGet, g.contentsURL(true), http.NoBody)
	if err != nil {
		return contentsFile{}, false, err
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return contentsFile{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return contentsFile{}, false, fmt.Errorf("%w: unexpected status %s: %s", ErrUnavailable, resp.Status, readMessage(resp.Body))
	}
	var file contentsFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return contentsFile{}, false, fmt.Errorf("%w: failed to decode contents: %v", ErrUnavailable, err)
	}
	return file, true, nil
}

func (g *GitHub) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func (g *GitHub) contentsURL(withRef bool) string {
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	segments := strings.Split(strings.Trim(g.Path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	target := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		base, url.PathEscape(g.Owner), url.PathEscape(g.Repo), strings.Join(segments, "/"))
	if withRef && g.Branch != "" {
		target += "?ref=" + url.QueryEscape(g.Branch)
	}
	return target
}

// decodeDataset parses and validates a dataset document.
func decodeDataset(raw []byte) (model.AdminDataset, error) {
	var ds model.AdminDataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return model.AdminDataset{}, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if ds.Tests == nil {
		ds.Tests = []model.Test{}
	}
	if ds.Schedule == nil {
		ds.Schedule = model.ScheduleGrid{}
	}
	if err := schedule.ValidateDataset(ds); err != nil {
		return model.AdminDataset{}, fmt.Errorf("invalid dataset: %w", err)
	}
	return ds, nil
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

func readMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return strings.TrimSpace(string(data))
}

func closeBody(resp *http.Response) {
	if cerr := resp.Body.Close(); cerr != nil {
		// Best-effort close.
		_ = cerr
	}
}
