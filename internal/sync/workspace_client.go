package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/oxen-go/oxen/internal/dataframe/format"
)

// WorkspaceInfo mirrors a server-side workspace's identity and
// settings, the JSON shape internal/server's workspace handlers speak.
type WorkspaceInfo struct {
	ID         string `json:"id"`
	BaseCommit string `json:"base_commit"`
	Branch     string `json:"branch"`
	Editable   bool   `json:"editable"`
}

// CreateWorkspace opens (or, if id already exists remotely, returns)
// a staging area rooted at baseCommit on the remote.
func (c *Client) CreateWorkspace(ctx context.Context, repo, id, baseCommit, branch string, editable bool) (*WorkspaceInfo, error) {
	body, err := json.Marshal(WorkspaceInfo{ID: id, BaseCommit: baseCommit, Branch: branch, Editable: editable})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPut, c.url(repo, "workspaces"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var info WorkspaceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("sync: decode workspace response: %w", err)
	}
	return &info, nil
}

// DeleteWorkspace discards a remote workspace without committing it.
func (c *Client) DeleteWorkspace(ctx context.Context, repo, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.url(repo, "workspaces/%s", id), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// AddWorkspaceFile streams data into a remote workspace's overlay at
// dst.
func (c *Client) AddWorkspaceFile(ctx context.Context, repo, id, dst string, data io.Reader) error {
	req, err := c.newRequest(ctx, http.MethodPost, c.url(repo, "workspaces/%s/files/%s", id, dst), data)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// RemoveWorkspaceFile tombstones relPath in a remote workspace's
// overlay.
func (c *Client) RemoveWorkspaceFile(ctx context.Context, repo, id, relPath string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.url(repo, "workspaces/%s/files/%s", id, relPath), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// CommitWorkspaceResult reports the commit a workspace's overlay
// landed in.
type CommitWorkspaceResult struct {
	Commit string `json:"commit"`
}

// CommitWorkspace applies a remote workspace's overlay onto branch and
// destroys the workspace on success.
func (c *Client) CommitWorkspace(ctx context.Context, repo, id, branch, message, author, email string, timestampS int64) (*CommitWorkspaceResult, error) {
	body, err := json.Marshal(struct {
		Message   string `json:"message"`
		Author    string `json:"author"`
		Email     string `json:"email"`
		Timestamp int64  `json:"timestamp"`
	}{Message: message, Author: author, Email: email, Timestamp: timestampS})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.url(repo, "workspaces/%s/commit/%s", id, branch), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var result CommitWorkspaceResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("sync: decode commit response: %w", err)
	}
	return &result, nil
}

// DataFrameRow is one row of a GetDataFrameRows response.
type DataFrameRow struct {
	ID     int64      `json:"id"`
	Values format.Row `json:"values"`
	Status string     `json:"status"`
}

// DataFrameRowsResult is a page of a workspace data frame's rows.
type DataFrameRowsResult struct {
	Columns []string       `json:"columns"`
	Rows    []DataFrameRow `json:"rows"`
}

// GetDataFrameRows pages through relPath's row-level view inside
// workspace id, optionally filtered by a SQL WHERE-clause fragment.
func (c *Client) GetDataFrameRows(ctx context.Context, repo, id, relPath, filter string, limit, offset int) (*DataFrameRowsResult, error) {
	url := c.url(repo, "workspaces/%s/data_frames/%s/rows?limit=%d&offset=%d", id, relPath, limit, offset)
	if filter != "" {
		url += "&filter=" + filter
	}
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var result DataFrameRowsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("sync: decode data frame rows: %w", err)
	}
	return &result, nil
}

// AddDataFrameRow appends one row to relPath's row-level view inside
// workspace id, returning the new row's id.
func (c *Client) AddDataFrameRow(ctx context.Context, repo, id, relPath string, values format.Row) (int64, error) {
	body, err := json.Marshal(struct {
		Values format.Row `json:"values"`
	}{Values: values})
	if err != nil {
		return 0, err
	}
	url := c.url(repo, "workspaces/%s/data_frames/%s/rows", id, relPath)
	req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var result struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("sync: decode add-row response: %w", err)
	}
	return result.ID, nil
}

// UpdateDataFrameRow overwrites rowID's values in relPath's row-level
// view inside workspace id.
func (c *Client) UpdateDataFrameRow(ctx context.Context, repo, id, relPath string, rowID int64, values format.Row) error {
	body, err := json.Marshal(struct {
		Values format.Row `json:"values"`
	}{Values: values})
	if err != nil {
		return err
	}
	url := c.url(repo, "workspaces/%s/data_frames/%s/rows/%d", id, relPath, rowID)
	req, err := c.newRequest(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteDataFrameRow marks rowID removed in relPath's row-level view
// inside workspace id.
func (c *Client) DeleteDataFrameRow(ctx context.Context, repo, id, relPath string, rowID int64) error {
	url := c.url(repo, "workspaces/%s/data_frames/%s/rows/%d", id, relPath, rowID)
	req, err := c.newRequest(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// RestoreDataFrameRow undoes a pending modify or delete on rowID,
// reverting it to its base-commit content.
func (c *Client) RestoreDataFrameRow(ctx context.Context, repo, id, relPath string, rowID int64) error {
	url := c.url(repo, "workspaces/%s/data_frames/%s/rows/%d/restore", id, relPath, rowID)
	req, err := c.newRequest(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// RestoreDataFrame discards every pending row edit in relPath's
// row-level view, reverting it to its base-commit content.
func (c *Client) RestoreDataFrame(ctx context.Context, repo, id, relPath string) error {
	url := c.url(repo, "workspaces/%s/data_frames/%s/restore", id, relPath)
	req, err := c.newRequest(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// schemaOpRequest mirrors internal/server's schemaOpRequest JSON shape.
type schemaOpRequest struct {
	Op       string       `json:"op"`
	Column   string       `json:"column"`
	NewName  string       `json:"new_name"`
	DataType string       `json:"data_type"`
	Default  format.Value `json:"default"`
}

func (c *Client) schemaOp(ctx context.Context, repo, id, relPath string, req schemaOpRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	url := c.url(repo, "workspaces/%s/schema/%s", id, relPath)
	httpReq, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.do(httpReq)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// AddDataFrameColumn adds a new column to relPath's row-level view,
// backfilling defaultValue into every existing row.
func (c *Client) AddDataFrameColumn(ctx context.Context, repo, id, relPath, column, dataType string, defaultValue format.Value) error {
	return c.schemaOp(ctx, repo, id, relPath, schemaOpRequest{Op: "add_column", Column: column, DataType: dataType, Default: defaultValue})
}

// RenameDataFrameColumn renames a column in relPath's row-level view.
func (c *Client) RenameDataFrameColumn(ctx context.Context, repo, id, relPath, oldName, newName string) error {
	return c.schemaOp(ctx, repo, id, relPath, schemaOpRequest{Op: "rename_column", Column: oldName, NewName: newName})
}

// RetypeDataFrameColumn changes a column's declared type, coercing
// every existing value.
func (c *Client) RetypeDataFrameColumn(ctx context.Context, repo, id, relPath, column, newType string) error {
	return c.schemaOp(ctx, repo, id, relPath, schemaOpRequest{Op: "retype_column", Column: column, DataType: newType})
}

// DropDataFrameColumn removes a column from relPath's row-level view.
func (c *Client) DropDataFrameColumn(ctx context.Context, repo, id, relPath, column string) error {
	return c.schemaOp(ctx, repo, id, relPath, schemaOpRequest{Op: "drop_column", Column: column})
}
