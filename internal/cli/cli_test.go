package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAPI is a movies backend recording every request.
type fakeAPI struct {
	mu        sync.Mutex
	list      string
	audit     string
	putStatus int
	putReply  string
	requests  []string
	bodies    []string
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, r.Method+" "+r.URL.Path)
	a.bodies = append(a.bodies, string(body))

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/movies":
		_, _ = io.WriteString(w, a.list)
	case r.Method == http.MethodGet:
		_, _ = io.WriteString(w, a.audit)
	case r.Method == http.MethodPut && a.putStatus != 0:
		w.WriteHeader(a.putStatus)
		_, _ = io.WriteString(w, a.putReply)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (a *fakeAPI) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

const twoMovies = `[
	{"id": 2, "title": "B", "year": 2001, "votes": 20, "rating": 6.5, "genres": "Comedy"},
	{"id": 1, "title": "A", "year": 2000, "votes": 10, "rating": 7.5, "genres": "Drama"}
]`

// startAPI serves api and writes a CUE config pointing the movies dataset
// at it. Returns the config path.
func startAPI(t *testing.T, api *fakeAPI) string {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cfg := fmt.Sprintf(`
common: {
	host: %q
	port: %s
	headers: "X-Client": "gridsync-test"
}
datasets: movies: paths: {
	list:   "/movies"
	create: "/movies"
	audit:  "/movies/audit"
}
`, u.Hostname(), u.Port())

	path := filepath.Join(t.TempDir(), "gridsync.cue")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

// run executes the root command and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeBuffer(t *testing.T, buf string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buffer.json")
	require.NoError(t, os.WriteFile(path, []byte(buf), 0o644))
	return path
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
