package qa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/socratic/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves the subset of the REST API the publisher uses.
type fakeGitHub struct {
	mu            sync.Mutex
	calls         []string
	refStatus     int
	prStatus      int
	createdRef    map[string]interface{}
	createdFile   map[string]interface{}
	createdPR     map[string]interface{}
	authHeader    string
	defaultBranch string
	// existingSHA makes the report file already present on the branch.
	existingSHA string
	contentsRef string
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *httptest.Server) {
	t.Helper()
	f := &fakeGitHub{refStatus: http.StatusCreated, prStatus: http.StatusCreated, defaultBranch: "develop"}

	record := func(r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.authHeader = r.Header.Get("Authorization")
	}
	decode := func(r *http.Request) map[string]interface{} {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		return body
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/tutor", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		json.NewEncoder(w).Encode(map[string]interface{}{"name": "tutor", "default_branch": f.defaultBranch})
	})
	mux.HandleFunc("GET /repos/octo/tutor/git/ref/heads/{branch}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ref":    "refs/heads/" + r.PathValue("branch"),
			"object": map[string]interface{}{"sha": "base-sha", "type": "commit"},
		})
	})
	mux.HandleFunc("POST /repos/octo/tutor/git/refs", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.createdRef = decode(r)
		w.WriteHeader(f.refStatus)
		if f.refStatus >= 300 {
			json.NewEncoder(w).Encode(map[string]interface{}{"message": "Reference already exists"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"ref": f.createdRef["ref"], "object": map[string]interface{}{"sha": "base-sha"}})
	})
	mux.HandleFunc("GET /repos/octo/tutor/contents/ai_agent/reports/suggestions.md", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.contentsRef = r.URL.Query().Get("ref")
		if f.existingSHA == "" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{"message": "Not Found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"type": "file",
			"path": "ai_agent/reports/suggestions.md",
			"sha":  f.existingSHA,
		})
	})
	mux.HandleFunc("PUT /repos/octo/tutor/contents/ai_agent/reports/suggestions.md", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.createdFile = decode(r)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"content": map[string]interface{}{"path": "ai_agent/reports/suggestions.md"}})
	})
	mux.HandleFunc("POST /repos/octo/tutor/pulls", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.createdPR = decode(r)
		w.WriteHeader(f.prStatus)
		if f.prStatus >= 300 {
			json.NewEncoder(w).Encode(map[string]interface{}{"message": "Validation Failed"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"number": 7, "html_url": "https://github.com/octo/tutor/pull/7"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestPublisher(t *testing.T, cfg PublisherConfig) *Publisher {
	t.Helper()
	p, err := NewPublisher(cfg)
	require.NoError(t, err)
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p
}

func TestPublishWithoutTokenSavesLocally(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	p := newTestPublisher(t, PublisherConfig{Repo: "octo/tutor", ReportsDir: dir})

	res := p.Publish(context.Background(), RunStub(planWithSteps(2)), "qa/dev-agent/1")
	assert.Equal(t, filepath.Join(dir, "suggestions.md"), res.Saved)
	assert.Empty(t, res.PRURL)
	assert.Empty(t, res.Error)
	assert.Equal(t, errors.OutcomeOK, res.Outcome)

	data, err := os.ReadFile(res.Saved)
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(data, &report), "the local file holds the JSON report")
	assert.Equal(t, 1, report.Failed)
}

func TestPublishWithoutRepo(t *testing.T) {
	p := newTestPublisher(t, PublisherConfig{Token: "t"})
	res := p.Publish(context.Background(), RunStub(planWithSteps(1)), "b")
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.PRURL)
	assert.Equal(t, errors.OutcomeFatal, res.Outcome)
	assert.True(t, errors.Is(res.Err, errors.ErrCodeRepoNotConfigured))
}

func TestPublishOpensDraftPR(t *testing.T) {
	fake, srv := newFakeGitHub(t)
	p := newTestPublisher(t, PublisherConfig{Repo: "octo/tutor", Token: "secret", APIURL: srv.URL})

	res := p.Publish(context.Background(), RunStub(planWithSteps(3)), "qa/dev-agent/1700000000")
	require.Empty(t, res.Error)
	assert.Equal(t, "https://github.com/octo/tutor/pull/7", res.PRURL)
	assert.Equal(t, "qa/dev-agent/1700000000", res.Branch)
	assert.Equal(t, errors.OutcomeOK, res.Outcome)

	assert.Equal(t, []string{
		"GET /repos/octo/tutor",
		"GET /repos/octo/tutor/git/ref/heads/develop",
		"POST /repos/octo/tutor/git/refs",
		"GET /repos/octo/tutor/contents/ai_agent/reports/suggestions.md",
		"PUT /repos/octo/tutor/contents/ai_agent/reports/suggestions.md",
		"POST /repos/octo/tutor/pulls",
	}, fake.calls)
	assert.Equal(t, "Bearer secret", fake.authHeader)

	assert.Equal(t, "refs/heads/qa/dev-agent/1700000000", fake.createdRef["ref"])
	assert.Equal(t, "base-sha", fake.createdRef["sha"])

	assert.Equal(t, "chore(qaa): add suggestions report 1700000000", fake.createdFile["message"])
	assert.Equal(t, "qa/dev-agent/1700000000", fake.createdFile["branch"])
	assert.Equal(t, "qa/dev-agent/1700000000", fake.contentsRef)
	assert.NotContains(t, fake.createdFile, "sha", "a new file is created without a sha")
	content, err := base64.StdEncoding.DecodeString(fake.createdFile["content"].(string))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# QA Agent report\n\nGenerated at "))

	assert.Equal(t, "QA: auto report 1700000000", fake.createdPR["title"])
	assert.Equal(t, "qa/dev-agent/1700000000", fake.createdPR["head"])
	assert.Equal(t, "develop", fake.createdPR["base"])
	assert.Equal(t, prBody, fake.createdPR["body"])
	assert.Equal(t, true, fake.createdPR["draft"])
}

func TestPublishOverwritesExistingReport(t *testing.T) {
	fake, srv := newFakeGitHub(t)
	fake.existingSHA = "old-report-sha"
	p := newTestPublisher(t, PublisherConfig{Repo: "octo/tutor", Token: "secret", APIURL: srv.URL})

	res := p.Publish(context.Background(), RunStub(planWithSteps(2)), "qa/dev-agent/2")
	require.Empty(t, res.Error)
	assert.Equal(t, "https://github.com/octo/tutor/pull/7", res.PRURL)
	assert.Equal(t, "qa/dev-agent/2", fake.contentsRef)
	assert.Equal(t, "old-report-sha", fake.createdFile["sha"])
	assert.Equal(t, "qa/dev-agent/2", fake.createdFile["branch"])
}

func TestPublishContinuesWhenBranchExists(t *testing.T) {
	fake, srv := newFakeGitHub(t)
	fake.refStatus = http.StatusUnprocessableEntity
	fake.defaultBranch = ""
	p := newTestPublisher(t, PublisherConfig{Repo: "octo/tutor", Token: "secret", APIURL: srv.URL})

	res := p.Publish(context.Background(), RunStub(planWithSteps(1)), "b")
	assert.Equal(t, "https://github.com/octo/tutor/pull/7", res.PRURL)
	assert.Contains(t, fake.calls, "GET /repos/octo/tutor/git/ref/heads/main", "missing default branch falls back to main")
	assert.Equal(t, "main", fake.createdPR["base"])
}

func TestPublishReportsPRFailure(t *testing.T) {
	fake, srv := newFakeGitHub(t)
	fake.prStatus = http.StatusUnprocessableEntity
	p := newTestPublisher(t, PublisherConfig{Repo: "octo/tutor", Token: "secret", APIURL: srv.URL})

	res := p.Publish(context.Background(), RunStub(planWithSteps(1)), "b")
	assert.Empty(t, res.PRURL)
	assert.Contains(t, res.Error, "Validation Failed")
	assert.Equal(t, errors.OutcomeDegraded, res.Outcome)
	assert.True(t, errors.Is(res.Err, errors.ErrCodePublishFailed))
}

func TestPublishReportsUnreachableAPI(t *testing.T) {
	_, srv := newFakeGitHub(t)
	srv.Close()
	p := newTestPublisher(t, PublisherConfig{Repo: "octo/tutor", Token: "secret", APIURL: srv.URL})

	res := p.Publish(context.Background(), RunStub(planWithSteps(1)), "b")
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.PRURL)
}
