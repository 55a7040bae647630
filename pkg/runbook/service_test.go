package runbook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, server *httptest.Server, allowedDomains []string) *Service {
	t.Helper()
	svc := NewService("", time.Minute, allowedDomains)
	svc.OverrideHTTPClientForTest(server.Client())
	return svc
}

func TestResolveEmptyURLReturnsNothing(t *testing.T) {
	svc := NewService("", time.Minute, nil)
	content, err := svc.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", content)
}

func TestResolveFetchesContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# Fetched Runbook"))
	}))
	defer server.Close()

	svc := newTestService(t, server, nil)
	content, err := svc.Resolve(context.Background(), server.URL+"/runbook.md")
	require.NoError(t, err)
	assert.Equal(t, "# Fetched Runbook", content)
}

func TestResolveFetchErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestService(t, server, nil)
	_, err := svc.Resolve(context.Background(), server.URL+"/runbook.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch runbook")
}

func TestResolveRejectsDisallowedDomain(t *testing.T) {
	svc := NewService("", time.Minute, []string{"github.com"})
	_, err := svc.Resolve(context.Background(), "https://evil.com/runbook.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in allowed list")
}

func TestResolveCachesFetchedContent(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		_, _ = w.Write([]byte("# Cached Content"))
	}))
	defer server.Close()

	svc := newTestService(t, server, nil)

	content1, err := svc.Resolve(context.Background(), server.URL+"/runbook.md")
	require.NoError(t, err)
	assert.Equal(t, "# Cached Content", content1)
	assert.Equal(t, 1, callCount)

	content2, err := svc.Resolve(context.Background(), server.URL+"/runbook.md")
	require.NoError(t, err)
	assert.Equal(t, "# Cached Content", content2)
	assert.Equal(t, 1, callCount)
}
