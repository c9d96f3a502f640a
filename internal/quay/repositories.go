package quay

import (
	"context"
	"net/url"
	"strconv"
)

// Repository is an image repository inside an organization
type Repository struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// Tag is a tag of a repository
type Tag struct {
	Name           string `json:"name"`
	ManifestDigest string `json:"manifest_digest,omitempty"`
}

// ListRepositories returns every repository of the organization, following
// the API's pagination
func (c *Client) ListRepositories(ctx context.Context, org string) ([]Repository, error) {
	var repos []Repository
	query := url.Values{"namespace": {org}}
	for {
		var page struct {
			Repositories []Repository `json:"repositories"`
			NextPage     string       `json:"next_page"`
		}
		if err := c.do(ctx, "GET", "/repository", query, nil, &page); err != nil {
			return nil, err
		}
		repos = append(repos, page.Repositories...)
		if page.NextPage == "" {
			return repos, nil
		}
		query.Set("next_page", page.NextPage)
	}
}

// ListTags returns the active tags of a repository
func (c *Client) ListTags(ctx context.Context, org, repo string) ([]Tag, error) {
	var tags []Tag
	path := "/repository/" + org + "/" + repo + "/tag/"
	for pageNum := 1; ; pageNum++ {
		var page struct {
			Tags          []Tag `json:"tags"`
			HasAdditional bool  `json:"has_additional"`
		}
		query := url.Values{"onlyActiveTags": {"true"}, "page": {strconv.Itoa(pageNum)}}
		if err := c.do(ctx, "GET", path, query, nil, &page); err != nil {
			return nil, err
		}
		tags = append(tags, page.Tags...)
		if !page.HasAdditional {
			return tags, nil
		}
	}
}
