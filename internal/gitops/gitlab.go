package gitops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// GitLabProvider talks to a GitLab-style HTTP API. The project is
// addressed by a numeric id or a path slug, path-escaped into the URL.
type GitLabProvider struct {
	baseURL   string
	projectID string
	token     string
	client    *http.Client
}

// NewGitLabProvider builds a provider for the given instance and project.
func NewGitLabProvider(baseURL, projectID, token string) *GitLabProvider {
	return &GitLabProvider{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		projectID: projectID,
		token:     token,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GitLabProvider) Name() string { return "gitlab" }

func (g *GitLabProvider) projectPath(suffix string) string {
	return fmt.Sprintf("%s/api/v4/projects/%s%s", g.baseURL, url.PathEscape(g.projectID), suffix)
}

func (g *GitLabProvider) CreateBranch(ctx context.Context, branch, from string) error {
	payload := map[string]string{"branch": branch, "ref": from}

	err := g.post(ctx, g.projectPath("/repository/branches"), payload, nil)
	if alreadyExists(err) {
		return nil
	}
	return err
}

type gitlabCommitAction struct {
	Action   string `json:"action"`
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (g *GitLabProvider) CommitChangeSet(ctx context.Context, branch, message string, changes ChangeSet) error {
	build := func(action string) map[string]interface{} {
		actions := make([]gitlabCommitAction, 0, len(changes))
		for _, path := range sortedPaths(changes) {
			actions = append(actions, gitlabCommitAction{
				Action:   action,
				FilePath: path,
				Content:  base64.StdEncoding.EncodeToString(changes[path]),
				Encoding: "base64",
			})
		}
		return map[string]interface{}{
			"branch":         branch,
			"commit_message": message,
			"actions":        actions,
		}
	}

	err := g.post(ctx, g.projectPath("/repository/commits"), build("update"), nil)
	if fileMissing(err) {
		// first publish of a new flag file: the path does not exist yet
		err = g.post(ctx, g.projectPath("/repository/commits"), build("create"), nil)
	}
	return err
}

func (g *GitLabProvider) OpenMergeRequest(ctx context.Context, source, target, title, description string) (string, error) {
	payload := map[string]string{
		"source_branch": source,
		"target_branch": target,
		"title":         title,
		"description":   description,
	}

	var response struct {
		WebURL string `json:"web_url"`
	}
	if err := g.post(ctx, g.projectPath("/merge_requests"), payload, &response); err != nil {
		return "", err
	}
	return response.WebURL, nil
}

func (g *GitLabProvider) post(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &PublishError{Provider: g.Name(), Op: "encode", Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &PublishError{Provider: g.Name(), Op: "request", Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return &PublishError{Provider: g.Name(), Op: "request", Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return &PublishError{
			Provider:   g.Name(),
			Op:         "request",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &PublishError{Provider: g.Name(), Op: "decode", Message: err.Error(), Err: err}
		}
	}
	return nil
}

func sortedPaths(changes ChangeSet) []string {
	paths := make([]string, 0, len(changes))
	for path := range changes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// alreadyExists matches the provider message reported when a branch is
// created twice.
func alreadyExists(err error) bool {
	publishErr, ok := err.(*PublishError)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(publishErr.Message), "already exists")
}

// fileMissing matches the provider message reported when an "update"
// action targets a path absent from the repository.
func fileMissing(err error) bool {
	publishErr, ok := err.(*PublishError)
	if !ok {
		return false
	}
	message := strings.ToLower(publishErr.Message)
	return strings.Contains(message, "doesn't exist") ||
		strings.Contains(message, "does not exist") ||
		strings.Contains(message, "not found")
}
