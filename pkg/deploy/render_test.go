package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/deployctl/pkg/config"
	"github.com/helvethink/deployctl/pkg/schemas"
)

func testRenderEnv() schemas.Environment {
	return schemas.Environment{
		Name:          "prod",
		Branch:        "prod",
		Platforms:     []schemas.PlatformName{schemas.PlatformRender},
		RenderService: "srv-abc",
	}
}

func newRenderGateway(t *testing.T, baseURL string) *Render {
	t.Helper()

	r, err := NewRenderGateway(config.Render{
		APIURL:          baseURL,
		Token:           "test-token",
		EnableTLSVerify: true,
	}, nil)
	require.NoError(t, err)

	r.InitialBackoff = time.Millisecond

	return r
}

func TestRenderServiceExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/services/srv-abc":
			w.Write([]byte(`{"id":"srv-abc"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := newRenderGateway(t, srv.URL)
	ctx := context.Background()

	exists, err := r.ServiceExists(ctx, testRenderEnv())
	assert.NoError(t, err)
	assert.True(t, exists)

	missing := testRenderEnv()
	missing.RenderService = "srv-unknown"

	exists, err = r.ServiceExists(ctx, missing)
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestRenderTriggerDeployNoWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			require.Equal(t, "/v1/services/srv-abc/deploys", r.URL.Path)
			w.Write([]byte(`{"id":"dep-1","status":"created"}`))
		case r.URL.Path == "/v1/services/srv-abc":
			w.Write([]byte(`{"id":"srv-abc","serviceDetails":{"url":"https://prod.onrender.com"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := newRenderGateway(t, srv.URL)

	outcome, err := r.TriggerDeploy(context.Background(), testRenderEnv(), "abc123", false)
	assert.NoError(t, err)
	assert.Equal(t, schemas.DeployStatusPending, outcome.Status)
	assert.Equal(t, "dep-1", outcome.DeployID)
	require.NotNil(t, outcome.URL)
	assert.Equal(t, "https://prod.onrender.com", *outcome.URL)
}

func TestRenderTriggerDeployWait(t *testing.T) {
	renderPollInterval = time.Millisecond
	defer func() { renderPollInterval = 5 * time.Second }()

	polls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.Write([]byte(`{"id":"dep-2","status":"created"}`))
		case r.URL.Path == "/v1/services/srv-abc/deploys/dep-2":
			polls++
			if polls < 2 {
				w.Write([]byte(`{"id":"dep-2","status":"build_in_progress"}`))
				return
			}

			w.Write([]byte(`{"id":"dep-2","status":"build_failed"}`))
		default:
			w.Write([]byte(`{"id":"srv-abc","serviceDetails":{}}`))
		}
	}))
	defer srv.Close()

	r := newRenderGateway(t, srv.URL)

	outcome, err := r.TriggerDeploy(context.Background(), testRenderEnv(), "abc123", true)
	assert.NoError(t, err)
	assert.Equal(t, schemas.DeployStatusFailed, outcome.Status)
	assert.Equal(t, 2, polls)
}

func TestRenderTriggerDeployFailureIsAnOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := newRenderGateway(t, srv.URL)

	outcome, err := r.TriggerDeploy(context.Background(), testRenderEnv(), "abc123", false)
	assert.NoError(t, err)
	assert.Equal(t, schemas.DeployStatusFailed, outcome.Status)
	assert.NotEmpty(t, outcome.Detail)
}

func TestRenderDeployStatusMapping(t *testing.T) {
	for status, expected := range map[string]schemas.DeployStatus{
		"live":                   schemas.DeployStatusSucceeded,
		"build_failed":           schemas.DeployStatusFailed,
		"update_failed":          schemas.DeployStatusFailed,
		"canceled":               schemas.DeployStatusFailed,
		"deactivated":            schemas.DeployStatusFailed,
		"created":                schemas.DeployStatusPending,
		"build_in_progress":      schemas.DeployStatusPending,
		"update_in_progress":     schemas.DeployStatusPending,
		"pre_deploy_in_progress": schemas.DeployStatusPending,
	} {
		assert.Equal(t, expected, renderDeployStatus(status), status)
	}
}

func TestRenderResolveURLFallsBackToService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/services/srv-abc", r.URL.Path)
		w.Write([]byte(`{"id":"srv-abc","serviceDetails":{"url":"https://prod.onrender.com"}}`))
	}))
	defer srv.Close()

	r := newRenderGateway(t, srv.URL)

	url, err := r.ResolveURL(context.Background(), testRenderEnv())
	assert.NoError(t, err)
	require.NotNil(t, url)
	assert.Equal(t, "https://prod.onrender.com", *url)

	env := testRenderEnv()
	env.URL = "https://prod.example.com"

	url, err = r.ResolveURL(context.Background(), env)
	assert.NoError(t, err)
	require.NotNil(t, url)
	assert.Equal(t, "https://prod.example.com", *url)
}
