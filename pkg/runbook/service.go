package runbook

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Service fetches the runbook content an alert's runbook_url points
// at (with caching), so the agent's prompt carries the runbook's
// actual text instead of just a link it cannot otherwise follow.
type Service struct {
	github         *GitHubClient
	cache          *Cache
	allowedDomains []string
}

// NewService creates a runbook-resolving Service. githubToken may be
// empty (public repos only, lower rate limits). allowedDomains
// restricts which hosts a runbook_url may point at; nil disables the
// allowlist check.
func NewService(githubToken string, cacheTTL time.Duration, allowedDomains []string) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		github:         NewGitHubClient(githubToken),
		cache:          NewCache(cacheTTL),
		allowedDomains: allowedDomains,
	}
}

// Resolve fetches and caches the content at alertRunbookURL. Returns
// ("", nil) if alertRunbookURL is empty — there is nothing to fetch,
// which is not an error.
func (s *Service) Resolve(ctx context.Context, alertRunbookURL string) (string, error) {
	if alertRunbookURL == "" {
		return "", nil
	}
	content, err := s.fetchWithCache(ctx, alertRunbookURL)
	if err != nil {
		return "", fmt.Errorf("fetch runbook %s: %w", alertRunbookURL, err)
	}
	return content, nil
}

// OverrideHTTPClientForTest replaces the internal GitHub client's HTTP client.
func (s *Service) OverrideHTTPClientForTest(httpClient *http.Client) {
	s.github.httpClient = httpClient
}

func (s *Service) fetchWithCache(ctx context.Context, rawURL string) (string, error) {
	if err := ValidateRunbookURL(rawURL, s.allowedDomains); err != nil {
		return "", err
	}

	normalizedURL := ConvertToRawURL(rawURL)
	if content, ok := s.cache.Get(normalizedURL); ok {
		return content, nil
	}

	content, err := s.github.DownloadContent(ctx, rawURL)
	if err != nil {
		return "", err
	}

	s.cache.Set(normalizedURL, content)
	return content, nil
}
