package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohitkumar/forge/approval"
	"github.com/mohitkumar/forge/config"
	"github.com/mohitkumar/forge/llm"
	"github.com/mohitkumar/forge/memory"
	"github.com/mohitkumar/forge/metadata"
	"github.com/mohitkumar/forge/model"
	"github.com/mohitkumar/forge/service"
	"github.com/mohitkumar/forge/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	metadataService := metadata.NewMetadataService(metadata.NewInMemoryStorage())
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: "answered", Model: req.Model, Cost: 0.01}, nil
	})
	runService := service.NewRunService(
		metadataService,
		client,
		memory.NewShortTermStore(),
		tool.NewDefaultRegistry(t.TempDir()),
		approval.NewManager(),
		config.Default(),
	)
	t.Cleanup(runService.Stop)
	server, err := NewServer(0, metadataService, runService)
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func validTeam() metadata.TeamDefinition {
	return metadata.TeamDefinition{
		Name:   "api-team",
		Agents: []metadata.AgentDefinition{{Name: "worker", Llm: "test-model"}},
		Steps:  []metadata.StepDefinition{{Id: "only", Agent: "worker", Task: "do it"}},
	}
}

func TestTeamEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/teams", validTeam())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/teams/api-team")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	def := decode[metadata.TeamDefinition](t, resp)
	assert.Equal(t, "api-team", def.Name)

	resp, err = http.Get(ts.URL + "/teams")
	require.NoError(t, err)
	names := decode[[]string](t, resp)
	assert.Contains(t, names, "api-team")

	resp, err = http.Get(ts.URL + "/teams/unknown")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterInvalidTeam(t *testing.T) {
	ts := newTestServer(t)
	bad := validTeam()
	bad.Steps[0].Agent = "ghost"

	resp := postJSON(t, ts.URL+"/teams", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRunEndpoints(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/teams", validTeam())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/runs", StartRunRequest{Team: "api-team", Input: map[string]any{"input": "x"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decode[map[string]string](t, resp)
	runId := started["runId"]
	require.NotEmpty(t, runId)

	deadline := time.Now().Add(5 * time.Second)
	var status service.RunStatus
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/runs/" + runId)
		require.NoError(t, err)
		status = decode[service.RunStatus](t, resp)
		if status.State == model.RUN_COMPLETED {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, model.RUN_COMPLETED, status.State)
	require.NotNil(t, status.Result)
	assert.Equal(t, "answered", status.Result.Output)

	resp, err := http.Get(ts.URL + "/runs/" + runId + "/trace")
	require.NoError(t, err)
	events := decode[[]model.TraceEvent](t, resp)
	assert.NotEmpty(t, events)

	resp, err = http.Get(ts.URL + "/runs/" + runId + "/cost")
	require.NoError(t, err)
	cost := decode[model.CostSummary](t, resp)
	assert.InDelta(t, 0.01, cost.TotalCost, 1e-9)

	resp, err = http.Get(ts.URL + "/runs/does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestStartRunUnknownTeam(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/runs", StartRunRequest{Team: "missing"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
