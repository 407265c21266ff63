package cli

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/record"
)

func TestDatasetsText(t *testing.T) {
	out, err := run(t, "datasets", "--columns")
	require.NoError(t, err)
	assert.Contains(t, out, "movies\tMovies (identity: id)")
	assert.Contains(t, out, "super_heroes\tSuper Heroes (identity: id)")
	assert.Contains(t, out, "imdb_link")
}

func TestDatasetsJSON(t *testing.T) {
	out, err := run(t, "datasets", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []DatasetInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Empty(t, resp.Data[0].Columns)
}

func TestFetch(t *testing.T) {
	api := &fakeAPI{list: twoMovies}
	cfg := startAPI(t, api)

	out, err := run(t, "fetch", "movies", "--config", cfg)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "id"))
	assert.True(t, strings.HasPrefix(lines[1], "1 "), "sorted by identity: %q", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2 "))
	assert.Equal(t, "(2 rows)", lines[3])
	assert.Equal(t, []string{"GET /movies"}, api.Requests())
}

func TestFetchJSON(t *testing.T) {
	cfg := startAPI(t, &fakeAPI{list: twoMovies})

	out, err := run(t, "fetch", "movies", "--config", cfg, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Columns []string         `json:"columns"`
			Rows    []map[string]any `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"id", "title", "year", "votes", "rating", "genres"}, resp.Data.Columns)
	require.Len(t, resp.Data.Rows, 2)
	assert.Equal(t, "A", resp.Data.Rows[0]["title"])
}

func TestFetchEmptyDataset(t *testing.T) {
	cfg := startAPI(t, &fakeAPI{list: `[]`})

	out, err := run(t, "fetch", "movies", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "(0 rows)")
}

func TestFetchCommandErrors(t *testing.T) {
	cfg := startAPI(t, &fakeAPI{list: twoMovies})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown dataset", []string{"fetch", "books", "--config", cfg}, "unknown dataset"},
		{"missing config", []string{"fetch", "movies", "--config", filepath.Join(t.TempDir(), "none.cue")}, "failed to load config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFetchBackendDown(t *testing.T) {
	cfg := startAPI(t, &fakeAPI{list: `{"broken"`})

	_, err := run(t, "fetch", "movies", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "BACKEND", ErrorCode(err))
}

func TestEditPreviewOnly(t *testing.T) {
	api := &fakeAPI{list: twoMovies}
	cfg := startAPI(t, api)
	buf := writeBuffer(t, `{"edited_rows": {"0": {"title": "A2"}}, "deleted_rows": [1]}`)

	out, err := run(t, "edit", "movies", "--config", cfg, "--buffer", buf)
	require.NoError(t, err)

	assert.Contains(t, out, "Updated (1):")
	assert.Contains(t, out, "Deleted (1):")
	assert.NotContains(t, out, "Created")
	assert.Contains(t, out, "old    1")
	assert.Contains(t, out, "new    1")
	assert.NotContains(t, out, "Applied.")
	assert.Equal(t, []string{"GET /movies"}, api.Requests(), "a preview never writes")
}

func TestEditNoChanges(t *testing.T) {
	cfg := startAPI(t, &fakeAPI{list: twoMovies})
	buf := writeBuffer(t, `{"edited_rows": {"0": {"title": "A"}}}`)

	out, err := run(t, "edit", "movies", "--config", cfg, "--buffer", buf, "--apply")
	require.NoError(t, err)
	assert.Equal(t, "No changes.\n", out)
}

func TestEditApplyJournalsCycle(t *testing.T) {
	api := &fakeAPI{list: twoMovies}
	cfg := startAPI(t, api)
	journal := filepath.Join(t.TempDir(), "journal.db")
	buf := writeBuffer(t, `{"added_rows": [{"title": "C", "year": 2020}], "edited_rows": {"1": {"year": 2002}}}`)

	out, err := run(t, "edit", "movies", "--config", cfg, "--journal", journal, "--buffer", buf, "--apply")
	require.NoError(t, err)
	assert.Contains(t, out, "Created (1):")
	assert.Contains(t, out, "Applied.")
	assert.Equal(t, []string{"GET /movies", "POST /movies", "PUT /movies"}, api.Requests())

	out, err = run(t, "history", "--journal", journal)
	require.NoError(t, err)
	assert.Contains(t, out, "movies applied")
	assert.Contains(t, out, "create ok")
	assert.Contains(t, out, "update ok")
	assert.NotContains(t, out, "delete")
}

func TestEditApplyFailure(t *testing.T) {
	api := &fakeAPI{list: twoMovies, putStatus: http.StatusInternalServerError, putReply: `{"message":"boom"}`}
	cfg := startAPI(t, api)
	buf := writeBuffer(t, `{"edited_rows": {"0": {"title": "A2"}}, "deleted_rows": [1]}`)

	out, err := run(t, "edit", "movies", "--config", cfg, "--buffer", buf, "--apply")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Apply failed, edits discarded:")
	assert.Contains(t, out, "  Updated failed: 500 Server Error: boom\n")
	assert.NotContains(t, out, "Deleted failed")
	assert.Equal(t, []string{"GET /movies", "PUT /movies", "DELETE /movies"}, api.Requests(),
		"a failed batch does not stop the others")
}

func TestEditApplyFailureJSON(t *testing.T) {
	api := &fakeAPI{list: twoMovies, putStatus: http.StatusBadRequest, putReply: `{"error":"bad year"}`}
	cfg := startAPI(t, api)
	buf := writeBuffer(t, `{"edited_rows": {"0": {"year": 1}}}`)

	out, err := run(t, "edit", "movies", "--config", cfg, "--buffer", buf, "--apply", "--format", "json")
	require.Error(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "APPLY_FAILED", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "bad year")
}

func TestEditDiscard(t *testing.T) {
	api := &fakeAPI{list: twoMovies}
	cfg := startAPI(t, api)
	journal := filepath.Join(t.TempDir(), "journal.db")
	buf := writeBuffer(t, `{"deleted_rows": [0]}`)

	out, err := run(t, "edit", "movies", "--config", cfg, "--journal", journal, "--buffer", buf, "--discard")
	require.NoError(t, err)
	assert.Contains(t, out, "Discarded.")
	assert.Equal(t, []string{"GET /movies"}, api.Requests())

	out, err = run(t, "history", "--journal", journal, "--dataset", "movies")
	require.NoError(t, err)
	assert.Contains(t, out, "movies discarded")
}

func TestEditRejectsStalePosition(t *testing.T) {
	cfg := startAPI(t, &fakeAPI{list: twoMovies})
	buf := writeBuffer(t, `{"deleted_rows": [5]}`)

	_, err := run(t, "edit", "movies", "--config", cfg, "--buffer", buf)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "INDEX_OUT_OF_RANGE", ErrorCode(err))
}

func TestEditFlagValidation(t *testing.T) {
	cfg := startAPI(t, &fakeAPI{list: twoMovies})
	buf := writeBuffer(t, `{}`)

	_, err := run(t, "edit", "movies", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer")

	_, err = run(t, "edit", "movies", "--config", cfg, "--buffer", buf, "--apply", "--discard")
	require.Error(t, err)

	_, err = run(t, "edit", "movies", "--config", cfg, "--buffer", writeBuffer(t, `{not json`))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEditBufferFromStdin(t *testing.T) {
	cfg := startAPI(t, &fakeAPI{list: twoMovies})

	cmd := NewRootCommand()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetErr(&strings.Builder{})
	cmd.SetIn(strings.NewReader(`{"edited_rows": {"1": {"title": "B2"}}}`))
	cmd.SetArgs([]string{"edit", "movies", "--config", cfg, "--buffer", "-"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Updated (1):")
}

func TestAudit(t *testing.T) {
	api := &fakeAPI{list: twoMovies, audit: `[
		{"id": 1, "title": "A", "version": 1, "operation": "INSERT"},
		{"id": 1, "title": "A2", "version": 2, "operation": "UPDATE"}
	]`}
	cfg := startAPI(t, api)

	out, err := run(t, "audit", "movies", "1", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "UPDATE")
	assert.Contains(t, out, "(2 versions)")
	assert.Equal(t, []string{"GET /movies/audit/1"}, api.Requests())
}

func TestParseIdentity(t *testing.T) {
	assert.Equal(t, record.Int(42), parseIdentity("42"))
	assert.Equal(t, record.String("tt0111161"), parseIdentity("tt0111161"))
	assert.Equal(t, record.String("4.2"), parseIdentity("4.2"))
}

func TestHistoryRequiresJournal(t *testing.T) {
	_, err := run(t, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no journal configured")
}

func TestHistoryEmptyJournal(t *testing.T) {
	out, err := run(t, "history", "--journal", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Equal(t, "No cycles recorded.\n", out)
}
