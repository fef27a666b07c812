// Copyright 2024 The OSS Rebuild Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/airgapcourier/depssmuggler/internal/httpx"
	"github.com/pkg/errors"
)

// SearchResult is one hit from an image search, normalized across
// registries per spec.md §4.7.
type SearchResult struct {
	Name        string
	Description string
	StarCount   int
	Official    bool
}

// catalogTTL bounds how long a custom registry's /v2/_catalog listing is
// cached, per spec.md §4.7's note that unlisted registries have no search
// API of their own and must be polled and cached instead.
const catalogTTL = 10 * time.Minute

type catalogCacheEntry struct {
	fetched time.Time
	repos   []string
}

// Searcher finds images by name across known registries, falling back to a
// TTL-cached /v2/_catalog scan for registries with no dedicated search API.
type Searcher struct {
	Client httpx.BasicClient

	mu      sync.Mutex
	catalog map[string]catalogCacheEntry
}

// Search dispatches to the registry-appropriate search endpoint.
func (s *Searcher) Search(ctx context.Context, registry, query string) ([]SearchResult, error) {
	switch registry {
	case "docker.io", "":
		return s.searchDockerHub(ctx, query)
	case "quay.io":
		return s.searchQuay(ctx, query)
	case "ghcr.io", "public.ecr.aws":
		// No public search API; a direct repository reference is the only
		// supported lookup, per spec.md §4.7.
		return []SearchResult{{Name: query}}, nil
	default:
		return s.searchCatalog(ctx, registry, query)
	}
}

func (s *Searcher) searchDockerHub(ctx context.Context, query string) ([]SearchResult, error) {
	u := fmt.Sprintf("https://hub.docker.com/v2/search/repositories/?query=%s", url.QueryEscape(query))
	var body struct {
		Results []struct {
			RepoName    string `json:"repo_name"`
			Description string `json:"short_description"`
			StarCount   int    `json:"star_count"`
			IsOfficial  bool   `json:"is_official"`
		} `json:"results"`
	}
	if err := s.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	out := make([]SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, SearchResult{Name: r.RepoName, Description: r.Description, StarCount: r.StarCount, Official: r.IsOfficial})
	}
	return out, nil
}

func (s *Searcher) searchQuay(ctx context.Context, query string) ([]SearchResult, error) {
	u := fmt.Sprintf("https://quay.io/api/v1/find/repositories?query=%s", url.QueryEscape(query))
	var body struct {
		Results []struct {
			Name        string `json:"name"`
			Namespace   struct {
				Name string `json:"name"`
			} `json:"namespace"`
			Description string `json:"description"`
		} `json:"results"`
	}
	if err := s.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	out := make([]SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, SearchResult{Name: r.Namespace.Name + "/" + r.Name, Description: r.Description})
	}
	return out, nil
}

func (s *Searcher) searchCatalog(ctx context.Context, registry, query string) ([]SearchResult, error) {
	repos, err := s.catalogFor(ctx, registry)
	if err != nil {
		return nil, err
	}
	var out []SearchResult
	for _, r := range repos {
		if query == "" || strings.Contains(strings.ToLower(r), strings.ToLower(query)) {
			out = append(out, SearchResult{Name: r})
		}
	}
	return out, nil
}

func (s *Searcher) catalogFor(ctx context.Context, registry string) ([]string, error) {
	s.mu.Lock()
	if s.catalog == nil {
		s.catalog = map[string]catalogCacheEntry{}
	}
	if e, ok := s.catalog[registry]; ok && time.Since(e.fetched) < catalogTTL {
		s.mu.Unlock()
		return e.repos, nil
	}
	s.mu.Unlock()

	var body struct {
		Repositories []string `json:"repositories"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("https://%s/v2/_catalog", registry), &body); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.catalog[registry] = catalogCacheEntry{fetched: time.Now(), repos: body.Repositories}
	s.mu.Unlock()
	return body.Repositories, nil
}

func (s *Searcher) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("search request to %s failed: %v", u, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
