// Package sync implements clone, fetch, pull, and push over a
// node/chunk wire protocol, generalizing the
// internal/remote/{clone,fetch,push,pull,auth}.go and
// internal/remote/http/client.go package from a git-packfile transfer to a
// content-addressed Merkle transfer: commits, directories, VNodes,
// and files move as individually-addressed nodes; file bytes move as
// content-addressed chunks through the same resumable upload path
// VersionStore already exposes locally.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/hash"
	"github.com/oxen-go/oxen/internal/merkle"
	"github.com/oxen-go/oxen/internal/oxenerr"
)

// Remote names the server a Client talks to and how to authenticate
// to it. Loading this from the user's user_config.toml is
// internal/config's job (UserConfig.SyncRemote); sync takes the
// resolved values so it never has to know about config file formats.
type Remote struct {
	Name  string
	URL   string
	Token string
}

// Client is the HTTP transport for the node/chunk wire protocol. It
// wraps retryablehttp the way internal/remote/http/client.go wrapped
// net/http.Client, generalized because chunk uploads must survive a
// dropped connection and resume from the last acknowledged part
// rather than restart.
type Client struct {
	http   *retryablehttp.Client
	remote Remote
}

// NewClient builds a Client for remote, retrying idempotent requests
// (every verb this package issues is safe to retry: node/chunk
// uploads are keyed by content hash, branch advances are CAS) up to
// 4 times with exponential backoff.
func NewClient(remote Remote, logger *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	if logger != nil {
		rc.Logger = zapRetryLogger{logger.Sugar()}
	} else {
		rc.Logger = nil
	}
	return &Client{http: rc, remote: remote}
}

// zapRetryLogger adapts *zap.SugaredLogger to retryablehttp's minimal
// Printf-style logging interface.
type zapRetryLogger struct {
	s *zap.SugaredLogger
}

func (l zapRetryLogger) Printf(format string, args ...interface{}) {
	l.s.Debugf(format, args...)
}

func (c *Client) url(repo, format string, a ...interface{}) string {
	path := fmt.Sprintf(format, a...)
	return strings.TrimRight(c.remote.URL, "/") + "/repos/" + repo + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*retryablehttp.Request, error) {
	var rc io.ReadSeeker
	if rs, ok := body.(io.ReadSeeker); ok {
		rc = rs
	} else if body != nil {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		rc = bytes.NewReader(b)
	}
	var req *retryablehttp.Request
	var err error
	if rc != nil {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, url, rc)
	} else {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, err
	}
	if c.remote.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.remote.Token)
	}
	return req, nil
}

func (c *Client) do(req *retryablehttp.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync: %s %s: %w", req.Method, req.URL, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, &oxenerr.UnauthorizedError{Reason: "remote rejected credentials"}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sync: %s %s: status %d: %s", req.Method, req.URL, resp.StatusCode, string(body))
	}
	return resp, nil
}

// branchInfo is the JSON shape of GET/PUT .../branches/:name.
type branchInfo struct {
	Name   string `json:"name"`
	Commit string `json:"commit"`
}

// GetBranch resolves a branch's current commit hash on the remote.
// Returns an *oxenerr.NotFoundError if the branch doesn't exist there.
func (c *Client) GetBranch(ctx context.Context, repo, branch string) (hash.Hash, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url(repo, "branches/%s", branch), nil)
	if err != nil {
		return hash.Hash{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("sync: get branch %s: %w", branch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return hash.Hash{}, &oxenerr.NotFoundError{Kind: "branch", ID: branch}
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return hash.Hash{}, fmt.Errorf("sync: get branch %s: status %d: %s", branch, resp.StatusCode, string(body))
	}
	var info branchInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return hash.Hash{}, fmt.Errorf("sync: decode branch response: %w", err)
	}
	return hash.Parse(info.Commit)
}

// ListBranches returns every branch on the remote and its current tip.
func (c *Client) ListBranches(ctx context.Context, repo string) (map[string]hash.Hash, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url(repo, "branches"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var infos []branchInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, fmt.Errorf("sync: decode branch list: %w", err)
	}
	out := make(map[string]hash.Hash, len(infos))
	for _, info := range infos {
		h, err := hash.Parse(info.Commit)
		if err != nil {
			return nil, fmt.Errorf("sync: branch %s: %w", info.Name, err)
		}
		out[info.Name] = h
	}
	return out, nil
}

// SetBranch advances branch from expected to next. The remote applies
// this as a compare-and-set against its own current tip, returning a
// 409 (surfaced here as *oxenerr.NotFastForwardError) if the branch
// moved since the caller last observed it.
func (c *Client) SetBranch(ctx context.Context, repo, branch string, expected, next hash.Hash) error {
	body, err := json.Marshal(branchInfo{Name: branch, Commit: next.String()})
	if err != nil {
		return err
	}
	url := c.url(repo, "branches/%s?expected=%s", branch, expected.String())
	req, err := c.newRequest(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sync: set branch %s: %w", branch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		var info branchInfo
		_ = json.NewDecoder(resp.Body).Decode(&info)
		return &oxenerr.NotFastForwardError{Branch: branch, Expected: expected.String(), Actual: info.Commit}
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sync: set branch %s: status %d: %s", branch, resp.StatusCode, string(b))
	}
	return nil
}

// HasNode reports whether the remote already has the merkle node h.
func (c *Client) HasNode(ctx context.Context, repo string, h hash.Hash) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodHead, c.url(repo, "tree/nodes/%s", h.String()), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("sync: has node %s: %w", h, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("sync: has node %s: status %d", h, resp.StatusCode)
	}
	return true, nil
}

// GetNode downloads and decodes a merkle node by its hash.
func (c *Client) GetNode(ctx context.Context, repo string, h hash.Hash) (merkle.Node, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url(repo, "tree/nodes/%s", h.String()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync: get node %s: %w", h, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, &oxenerr.NotFoundError{Kind: "node", ID: h.String()}
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sync: get node %s: status %d: %s", h, resp.StatusCode, string(b))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	n, err := merkle.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("sync: decode node %s: %w", h, err)
	}
	if n.Hash() != h {
		return nil, &oxenerr.HashMismatchError{Expected: h.String(), Actual: n.Hash().String()}
	}
	return n, nil
}

// PutNode uploads an already-encoded merkle node. Idempotent: the
// remote stores nodes keyed by their own hash, same as the local
// nodedb.DB.
func (c *Client) PutNode(ctx context.Context, repo string, n merkle.Node) error {
	req, err := c.newRequest(ctx, http.MethodPut, c.url(repo, "tree/nodes/%s", n.Hash().String()), bytes.NewReader(n.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// MissingNodeHashes asks the remote which of candidates it does not
// yet have, so a push only uploads what's actually missing instead of
// probing one HasNode call per node.
func (c *Client) MissingNodeHashes(ctx context.Context, repo string, candidates []hash.Hash) ([]hash.Hash, error) {
	return c.missingHashes(ctx, repo, "tree/missing_hashes", candidates)
}

// MissingChunkHashes asks the remote which chunk hashes referenced by
// a File it does not yet have.
func (c *Client) MissingChunkHashes(ctx context.Context, repo string, candidates []hash.Hash) ([]hash.Hash, error) {
	return c.missingHashes(ctx, repo, "versions/missing_hashes", candidates)
}

func (c *Client) missingHashes(ctx context.Context, repo, path string, candidates []hash.Hash) ([]hash.Hash, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	strs := make([]string, len(candidates))
	for i, h := range candidates {
		strs[i] = h.String()
	}
	body, err := json.Marshal(struct {
		Hashes []string `json:"hashes"`
	}{Hashes: strs})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.url(repo, path), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var result struct {
		Missing []string `json:"missing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("sync: decode missing-hashes response: %w", err)
	}
	out := make([]hash.Hash, len(result.Missing))
	for i, s := range result.Missing {
		h, err := hash.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// PutChunk uploads chunk number n of a resumable upload targeting the
// final content hash target. Safe to retry or repeat: the remote
// stages parts by number and only assembles them on Complete.
func (c *Client) PutChunk(ctx context.Context, repo string, target hash.Hash, n int, data []byte) error {
	url := c.url(repo, "versions/%s/chunks/%d", target.String(), n)
	req, err := c.newRequest(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ListChunks returns the chunk numbers the remote has already staged
// for target, letting a resumed push skip parts it already sent.
func (c *Client) ListChunks(ctx context.Context, repo string, target hash.Hash) ([]int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url(repo, "versions/%s/chunks", target.String()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var result struct {
		Chunks []int `json:"chunks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("sync: decode chunk list: %w", err)
	}
	return result.Chunks, nil
}

// CompleteChunks tells the remote every chunk of target has been
// uploaded, triggering server-side VersionStore.Finalize (concatenate
// in order, rehash, verify against target).
func (c *Client) CompleteChunks(ctx context.Context, repo string, target hash.Hash) error {
	req, err := c.newRequest(ctx, http.MethodPost, c.url(repo, "versions/%s/complete", target.String()), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sync: complete %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &oxenerr.HashMismatchError{Expected: target.String(), Actual: string(b)}
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sync: complete %s: status %d: %s", target, resp.StatusCode, string(b))
	}
	return nil
}

// GetBlob streams a version-stored object (a whole small file or one
// chunk; both are content-addressed the same way) back by hash.
func (c *Client) GetBlob(ctx context.Context, repo string, h hash.Hash) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.url(repo, "versions/%s", h.String()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync: get blob %s: %w", h, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, &oxenerr.NotFoundError{Kind: "object", ID: h.String()}
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sync: get blob %s: status %d: %s", h, resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
