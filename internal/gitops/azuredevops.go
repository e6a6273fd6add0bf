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
	"strings"
	"time"
)

const adoAPIVersion = "7.0"

// zeroObjectID is the ref "does not exist yet" marker in ref updates.
const zeroObjectID = "0000000000000000000000000000000000000000"

// AzureDevOpsProvider talks to an Azure-DevOps-style API. Repositories are
// addressed by organization, project and repository name.
type AzureDevOpsProvider struct {
	baseURL      string
	organization string
	project      string
	repository   string
	token        string
	client       *http.Client
}

// NewAzureDevOpsProvider builds a provider for the given repository.
func NewAzureDevOpsProvider(baseURL, organization, project, repository, token string) *AzureDevOpsProvider {
	return &AzureDevOpsProvider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		organization: organization,
		project:      project,
		repository:   repository,
		token:        token,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *AzureDevOpsProvider) Name() string { return "azuredevops" }

func (a *AzureDevOpsProvider) repoPath(suffix string) string {
	return fmt.Sprintf("%s/%s/%s/_apis/git/repositories/%s%s?api-version=%s",
		a.baseURL,
		url.PathEscape(a.organization),
		url.PathEscape(a.project),
		url.PathEscape(a.repository),
		suffix,
		adoAPIVersion,
	)
}

type adoRef struct {
	Name     string `json:"name"`
	ObjectID string `json:"objectId"`
}

type adoRefList struct {
	Value []adoRef `json:"value"`
}

// refObjectID resolves the tip commit of a branch, or "" when the ref does
// not exist.
func (a *AzureDevOpsProvider) refObjectID(ctx context.Context, branch string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/_apis/git/repositories/%s/refs?filter=heads/%s&api-version=%s",
		a.baseURL,
		url.PathEscape(a.organization),
		url.PathEscape(a.project),
		url.PathEscape(a.repository),
		url.PathEscape(branch),
		adoAPIVersion,
	)

	var refs adoRefList
	if err := a.do(ctx, http.MethodGet, endpoint, nil, &refs); err != nil {
		return "", err
	}
	want := "refs/heads/" + branch
	for _, ref := range refs.Value {
		if ref.Name == want {
			return ref.ObjectID, nil
		}
	}
	return "", nil
}

func (a *AzureDevOpsProvider) CreateBranch(ctx context.Context, branch, from string) error {
	baseID, err := a.refObjectID(ctx, from)
	if err != nil {
		return err
	}
	if baseID == "" {
		return &PublishError{Provider: a.Name(), Op: "create branch", Message: fmt.Sprintf("base branch %s not found", from)}
	}

	payload := []map[string]string{{
		"name":        "refs/heads/" + branch,
		"oldObjectId": zeroObjectID,
		"newObjectId": baseID,
	}}

	var response struct {
		Value []struct {
			Success      bool   `json:"success"`
			UpdateStatus string `json:"updateStatus"`
		} `json:"value"`
	}
	err = a.do(ctx, http.MethodPost, a.repoPath("/refs"), payload, &response)
	if err == nil && len(response.Value) > 0 && !response.Value[0].Success {
		err = &PublishError{Provider: a.Name(), Op: "create branch", Message: response.Value[0].UpdateStatus}
	}
	if err != nil {
		// a rejected update for a ref that exists means an earlier publish
		// created the branch; that is success
		if existingID, lookupErr := a.refObjectID(ctx, branch); lookupErr == nil && existingID != "" {
			return nil
		}
		return err
	}
	return nil
}

type adoChange struct {
	ChangeType string `json:"changeType"`
	Item       struct {
		Path string `json:"path"`
	} `json:"item"`
	NewContent struct {
		Content     string `json:"content"`
		ContentType string `json:"contentType"`
	} `json:"newContent"`
}

func (a *AzureDevOpsProvider) CommitChangeSet(ctx context.Context, branch, message string, changes ChangeSet) error {
	tipID, err := a.refObjectID(ctx, branch)
	if err != nil {
		return err
	}
	if tipID == "" {
		return &PublishError{Provider: a.Name(), Op: "commit", Message: fmt.Sprintf("branch %s not found", branch)}
	}

	build := func(changeType string) map[string]interface{} {
		entries := make([]adoChange, 0, len(changes))
		for _, path := range sortedPaths(changes) {
			var change adoChange
			change.ChangeType = changeType
			change.Item.Path = "/" + strings.TrimPrefix(path, "/")
			change.NewContent.Content = base64.StdEncoding.EncodeToString(changes[path])
			change.NewContent.ContentType = "base64encoded"
			entries = append(entries, change)
		}
		return map[string]interface{}{
			"refUpdates": []map[string]string{{
				"name":        "refs/heads/" + branch,
				"oldObjectId": tipID,
			}},
			"commits": []map[string]interface{}{{
				"comment": message,
				"changes": entries,
			}},
		}
	}

	err = a.do(ctx, http.MethodPost, a.repoPath("/pushes"), build("edit"), nil)
	if fileMissing(err) {
		// first publish of a new flag file
		err = a.do(ctx, http.MethodPost, a.repoPath("/pushes"), build("add"), nil)
	}
	return err
}

func (a *AzureDevOpsProvider) OpenMergeRequest(ctx context.Context, source, target, title, description string) (string, error) {
	payload := map[string]string{
		"sourceRefName": "refs/heads/" + source,
		"targetRefName": "refs/heads/" + target,
		"title":         title,
		"description":   description,
	}

	var response struct {
		PullRequestID int `json:"pullRequestId"`
		Repository    struct {
			WebURL string `json:"webUrl"`
		} `json:"repository"`
	}
	if err := a.do(ctx, http.MethodPost, a.repoPath("/pullrequests"), payload, &response); err != nil {
		return "", err
	}

	if response.Repository.WebURL != "" {
		return fmt.Sprintf("%s/pullrequest/%d", response.Repository.WebURL, response.PullRequestID), nil
	}
	return fmt.Sprintf("%s/%s/%s/_git/%s/pullrequest/%d",
		a.baseURL, a.organization, a.project, a.repository, response.PullRequestID), nil
}

func (a *AzureDevOpsProvider) do(ctx context.Context, method, endpoint string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &PublishError{Provider: a.Name(), Op: "encode", Message: err.Error(), Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &PublishError{Provider: a.Name(), Op: "request", Message: err.Error(), Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return &PublishError{Provider: a.Name(), Op: "request", Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return &PublishError{
			Provider:   a.Name(),
			Op:         "request",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &PublishError{Provider: a.Name(), Op: "decode", Message: err.Error(), Err: err}
		}
	}
	return nil
}
