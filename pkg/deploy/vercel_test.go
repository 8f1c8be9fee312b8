package deploy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/deployctl/pkg/config"
	"github.com/helvethink/deployctl/pkg/schemas"
)

func testVercelEnv() schemas.Environment {
	return schemas.Environment{
		Name:          "beta",
		Branch:        "beta",
		Platforms:     []schemas.PlatformName{schemas.PlatformVercel},
		VercelProject: "app-beta",
		URL:           "https://beta.example.com",
	}
}

func newVercelGateway(t *testing.T, baseURL string) *Vercel {
	t.Helper()

	v, err := NewVercelGateway(config.Vercel{
		APIURL:          baseURL,
		Token:           "test-token",
		EnableTLSVerify: true,
	}, nil)
	require.NoError(t, err)

	v.InitialBackoff = time.Millisecond

	return v
}

func TestVercelServiceExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v9/projects/app-beta":
			w.Write([]byte(`{"id":"prj_123"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	v := newVercelGateway(t, srv.URL)
	ctx := context.Background()

	exists, err := v.ServiceExists(ctx, testVercelEnv())
	assert.NoError(t, err)
	assert.True(t, exists)

	missing := testVercelEnv()
	missing.VercelProject = "app-unknown"

	exists, err = v.ServiceExists(ctx, missing)
	assert.NoError(t, err)
	assert.False(t, exists)

	// No configured project means no service, not an error.
	missing.VercelProject = ""
	exists, err = v.ServiceExists(ctx, missing)
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestVercelTriggerDeployNoWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v13/deployments", r.URL.Path)

		var req vercelDeployRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "app-beta", req.Name)
		assert.Equal(t, "beta", req.GitSource.Ref)

		w.Write([]byte(`{"id":"dpl_1","readyState":"QUEUED","url":"app-beta-xyz.vercel.app"}`))
	}))
	defer srv.Close()

	v := newVercelGateway(t, srv.URL)

	outcome, err := v.TriggerDeploy(context.Background(), testVercelEnv(), "abc123", false)
	assert.NoError(t, err)
	assert.Equal(t, schemas.DeployStatusPending, outcome.Status)
	assert.Equal(t, "dpl_1", outcome.DeployID)
	assert.Equal(t, "abc123", outcome.Revision)
	require.NotNil(t, outcome.URL)
	assert.Equal(t, "https://app-beta-xyz.vercel.app", *outcome.URL)
}

func TestVercelTriggerDeployWait(t *testing.T) {
	vercelPollInterval = time.Millisecond
	defer func() { vercelPollInterval = 5 * time.Second }()

	polls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.Write([]byte(`{"id":"dpl_2","readyState":"QUEUED"}`))
		default:
			polls++
			if polls < 3 {
				w.Write([]byte(`{"id":"dpl_2","readyState":"BUILDING"}`))
				return
			}

			w.Write([]byte(`{"id":"dpl_2","readyState":"READY"}`))
		}
	}))
	defer srv.Close()

	v := newVercelGateway(t, srv.URL)

	outcome, err := v.TriggerDeploy(context.Background(), testVercelEnv(), "abc123", true)
	assert.NoError(t, err)
	assert.Equal(t, schemas.DeployStatusSucceeded, outcome.Status)
	assert.Equal(t, 3, polls)
}

func TestVercelTriggerDeployFailureIsAnOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	v := newVercelGateway(t, srv.URL)

	outcome, err := v.TriggerDeploy(context.Background(), testVercelEnv(), "abc123", false)
	assert.NoError(t, err)
	assert.Equal(t, schemas.DeployStatusFailed, outcome.Status)
	assert.NotEmpty(t, outcome.Detail)
}

func TestVercelDeployStatusMapping(t *testing.T) {
	for readyState, expected := range map[string]schemas.DeployStatus{
		"READY":        schemas.DeployStatusSucceeded,
		"ERROR":        schemas.DeployStatusFailed,
		"CANCELED":     schemas.DeployStatusFailed,
		"QUEUED":       schemas.DeployStatusPending,
		"BUILDING":     schemas.DeployStatusPending,
		"INITIALIZING": schemas.DeployStatusPending,
	} {
		assert.Equal(t, expected, vercelDeployStatus(readyState), readyState)
	}
}

func TestVercelResolveURL(t *testing.T) {
	v := newVercelGateway(t, "http://unused")

	url, err := v.ResolveURL(context.Background(), testVercelEnv())
	assert.NoError(t, err)
	require.NotNil(t, url)
	assert.Equal(t, "https://beta.example.com", *url)

	env := testVercelEnv()
	env.URL = ""

	url, err = v.ResolveURL(context.Background(), env)
	assert.NoError(t, err)
	assert.Nil(t, url)
}
