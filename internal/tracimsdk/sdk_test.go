package tracimsdk

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(&Config{
		Address:     strings.TrimPrefix(server.URL, "http://"),
		WorkspaceID: 4,
		Username:    "alice",
		Password:    "secret",
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Config{}).Validate(), ErrNoAddress)
	assert.ErrorIs(t, (&Config{Address: "x"}).Validate(), ErrNoWorkspace)
	assert.ErrorIs(t, (&Config{Address: "x", WorkspaceID: 1}).Validate(), ErrNoUsername)

	c := &Config{Address: "tracim.local", UseTLS: true, WorkspaceID: 1, Username: "u"}
	assert.NoError(t, c.Validate())
	assert.Equal(t, "https://tracim.local/api", c.BaseURL())
}

func TestLabelOf(t *testing.T) {
	assert.Equal(t, "report", labelOf("report.pdf", content.KindFile))
	assert.Equal(t, "archive.tar", labelOf("archive.tar.gz", content.KindFile))
	assert.Equal(t, ".env", labelOf(".env", content.KindFile))
	assert.Equal(t, "My.Folder", labelOf("My.Folder", content.KindFolder))
	assert.Equal(t, "Notes", labelOf("Notes"+content.RichDocumentSuffix, content.KindRichDocument))
}

func TestClient_CreateContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/workspaces/4/contents", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "folder", body["content_type"])
		if body["label"] == "Taken" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": CodeContentAlreadyExists, "message": "already used"})
			return
		}
		assert.Nil(t, body["parent_id"])
		writeJSON(w, http.StatusOK, map[string]any{"content_id": 12, "current_revision_id": 30})
	})
	mux.HandleFunc("POST /api/workspaces/4/files", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "3", r.FormValue("parent_id"))
		_, header, err := r.FormFile("files")
		require.NoError(t, err)
		assert.Equal(t, "a.txt", header.Filename)
		writeJSON(w, http.StatusOK, map[string]any{"content_id": 13, "current_revision_id": 31})
	})
	client := newTestClient(t, mux)

	id, err := client.CreateContent(t.Context(), "Folder", content.KindFolder, 0)
	require.NoError(t, err)
	assert.Equal(t, content.ID(12), id)

	id, err = client.CreateContent(t.Context(), "a.txt", content.KindFile, 3)
	require.NoError(t, err)
	assert.Equal(t, content.ID(13), id)

	_, err = client.CreateContent(t.Context(), "Taken", content.KindFolder, 0)
	assert.ErrorIs(t, err, remote.ErrAlreadyExists)
}

func TestClient_GetErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/workspaces/4/contents/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "1":
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": CodeContentNotFound, "message": "not found"})
		case "2":
			writeJSON(w, http.StatusUnauthorized, map[string]any{})
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"content_id": 3, "current_revision_id": 5, "parent_id": nil,
				"content_type": "file", "filename": "a.txt", "is_deleted": true,
			})
		}
	})
	client := newTestClient(t, mux)

	_, err := client.Get(t.Context(), 1)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, err = client.Get(t.Context(), 2)
	assert.ErrorIs(t, err, remote.ErrUnauthorized)

	rc, err := client.Get(t.Context(), 3)
	require.NoError(t, err)
	assert.Equal(t, content.ID(0), rc.ParentID)
	assert.True(t, rc.Gone())
}

func TestClient_ListPagesAndFilters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/workspaces/4/contents", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_token") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{
					{"content_id": 1, "content_type": "folder", "filename": "Folder"},
					{"content_id": 2, "content_type": "thread", "filename": "Talk.thread.html"},
				},
				"has_next":        true,
				"next_page_token": "p2",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"content_id": 3, "content_type": "file", "filename": "a.txt", "parent_id": 1},
			},
		})
	})
	client := newTestClient(t, mux)

	contents, err := client.List(t.Context())
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, content.ID(1), contents[0].ContentID)
	assert.Equal(t, content.ID(3), contents[1].ContentID)

	found, err := client.FindOne(t.Context(), "a.txt", 1)
	require.NoError(t, err)
	assert.Equal(t, content.ID(3), found.ContentID)

	_, err = client.FindOne(t.Context(), "missing.txt", 1)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestClient_FillLocalAndRemote(t *testing.T) {
	var uploaded string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/workspaces/4/contents/7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"content_id": 7, "current_revision_id": 9, "content_type": "file", "filename": "a b.txt",
		})
	})
	mux.HandleFunc("GET /api/workspaces/4/files/7/raw/{name}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a b.txt", r.PathValue("name"))
		_, _ = io.WriteString(w, "remote bytes")
	})
	mux.HandleFunc("PUT /api/workspaces/4/files/7/raw/{name}", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		assert.Equal(t, "a b.txt", header.Filename)
		assert.Equal(t, "text/plain; charset=utf-8", header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		uploaded = string(data)
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, mux)

	dir := t.TempDir()
	target := filepath.Join(dir, "a b.txt")
	require.NoError(t, os.WriteFile(target, []byte("old and longer bytes"), 0o644))

	require.NoError(t, client.FillLocal(t.Context(), 7, target))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "remote bytes", string(data))

	require.NoError(t, os.WriteFile(target, []byte("local bytes"), 0o644))
	rev, err := client.FillRemote(t.Context(), 7, target)
	require.NoError(t, err)
	assert.Equal(t, content.Revision(9), rev)
	assert.Equal(t, "local bytes", uploaded)
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		"event: stream-open",
		"data: {}",
		"",
		": keep-alive",
		"event: message",
		`data: {"event_id": 5, "event_type": "content.modified.file",`,
		`data: "fields": {"content": {"content_id": 3, "parent_id": 1}, "workspace": {"workspace_id": 4}}}`,
		"",
		"",
	}, "\n")

	messages := make(chan remote.LiveMessage, 8)
	err := readSSE(t.Context(), bufio.NewScanner(strings.NewReader(stream)), messages)
	require.NoError(t, err)
	close(messages)

	var got []remote.LiveMessage
	for msg := range messages {
		got = append(got, msg)
	}
	require.Len(t, got, 2)
	assert.True(t, got[0].KeepAlive())
	assert.Equal(t, int64(5), got[1].EventID)
	assert.Equal(t, content.ID(3), got[1].ContentID())
	assert.Equal(t, content.ID(1), got[1].ParentID())
	assert.Equal(t, int64(4), got[1].WorkspaceID())
}

func TestWebsocketListener(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/whoami", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user_id": 42})
	})
	mux.HandleFunc("GET /api/users/42/live_messages", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.CloseNow()
		payload := `{"event_id": 8, "event_type": "content.created.folder", "fields": {"content": {"content_id": 2}}}`
		require.NoError(t, conn.Write(r.Context(), websocket.MessageText, []byte(payload)))
		conn.Close(websocket.StatusNormalClosure, "")
	})
	client := newTestClient(t, mux)

	listener, err := client.Listener(TransportWebsocket)
	require.NoError(t, err)

	messages := make(chan remote.LiveMessage, 1)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, listener.Listen(ctx, messages))

	msg := <-messages
	assert.Equal(t, int64(8), msg.EventID)
	assert.Equal(t, content.ID(2), msg.ContentID())

	_, err = client.Listener("carrier-pigeon")
	assert.ErrorIs(t, err, ErrUnknownTransport)
}
