package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/saker-ai/spot-sdk/pkg/spot"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Options{}, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func postValid(t *testing.T, url string, contentType string, body []byte) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProgramAccepted(t *testing.T) {
	s, srv := newTestServer(t)
	body := `{"name":"dance","commands":[{"Command":"stand"},{"Command":"move","Args":{"x":1,"y":0,"z":0}}]}`

	status, out := postValid(t, srv.URL+"/program", "application/json", []byte(body))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["valid"])

	programs := s.Programs()
	require.Len(t, programs, 1)
	assert.Equal(t, "dance", programs[0].Name)
	require.Len(t, programs[0].Commands, 2)
	assert.Equal(t, spot.VerbWalk, programs[0].Commands[1].Verb())
}

func TestProgramRejected(t *testing.T) {
	cases := map[string]string{
		"missing name":   `{"commands":[{"Command":"stand"}]}`,
		"unknown verb":   `{"name":"p","commands":[{"Command":"jump"}]}`,
		"missing params": `{"name":"p","commands":[{"Command":"rotate","Args":{"pitch":1}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s, srv := newTestServer(t)
			status, out := postValid(t, srv.URL+"/program", "application/json", []byte(body))
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, false, out["valid"])

			programs := s.Programs()
			require.Len(t, programs, 1)
			assert.NotEmpty(t, programs[0].Reason)
		})
	}
}

func TestProgramMalformedBody(t *testing.T) {
	_, srv := newTestServer(t)
	status, _ := postValid(t, srv.URL+"/program", "application/json", []byte(`{"name":`))
	assert.Equal(t, http.StatusBadRequest, status)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, filename := range files {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("pass\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestFileUploads(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		files  map[string]string
		valid  bool
	}{
		{
			name:   "single file",
			fields: map[string]string{"folder": "false", "main": "main.py"},
			files:  map[string]string{"file": "main.py"},
			valid:  true,
		},
		{
			name:   "folder",
			fields: map[string]string{"folder": "true", "main": "app.py"},
			files:  map[string]string{"app.py": "app.py", "util.py": "util.py"},
			valid:  true,
		},
		{
			name:   "folder without main",
			fields: map[string]string{"folder": "true", "main": "main.py"},
			files:  map[string]string{"util.py": "util.py"},
		},
		{
			name:   "wrong extension",
			fields: map[string]string{"folder": "false", "main": "main.py"},
			files:  map[string]string{"file": "main.sh"},
		},
		{
			name:   "no files",
			fields: map[string]string{"folder": "false", "main": "main.py"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, srv := newTestServer(t)
			body, contentType := multipartBody(t, tc.fields, tc.files)
			status, out := postValid(t, srv.URL+"/file", contentType, body)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, tc.valid, out["valid"])

			uploads := s.Uploads()
			require.Len(t, uploads, 1)
			assert.Equal(t, tc.valid, uploads[0].Valid)
		})
	}
}

func TestFileBadFolderFlag(t *testing.T) {
	_, srv := newTestServer(t)
	body, contentType := multipartBody(t, map[string]string{"folder": "maybe"}, map[string]string{"file": "main.py"})
	status, _ := postValid(t, srv.URL+"/file", contentType, body)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLiveSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := New(Options{}, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + LivePath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var welcome map[string]string
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome["type"])
	assert.NotEmpty(t, welcome["id"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "change-name", "name": "operator"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "command", "Command": "stand", "Args": ""}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "command", "Command": "jump", "Args": ""}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "command", "Command": "move", "Args": map[string]float64{"x": 1, "y": 2, "z": 3}}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	commands, err := s.WaitCommands(ctx, 2)
	require.NoError(t, err)
	require.Len(t, commands, 2)
	assert.Equal(t, "operator", commands[0].Controller)
	assert.Equal(t, spot.VerbStand, commands[0].Command.Verb())
	assert.Equal(t, map[string]float64{"x": 1, "y": 2, "z": 3}, commands[1].Command.Args())

	controllers := s.Controllers()
	require.Len(t, controllers, 1)
	assert.Equal(t, "operator", controllers[0].Name)

	s.DisconnectAll()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "err=%v", err)
}

func TestWaitCommandsHonoursContext(t *testing.T) {
	s := New(Options{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.WaitCommands(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDashboardAndInspection(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/dashboard/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "spot control server")

	postValid(t, srv.URL+"/program", "application/json", []byte(`{"name":"p","commands":[{"Command":"wait","Args":{"time":1}}]}`))

	resp, err = http.Get(srv.URL + "/programs")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Programs []struct {
			Name     string          `json:"name"`
			Valid    bool            `json:"valid"`
			Commands json.RawMessage `json:"commands"`
		} `json:"programs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Programs, 1)
	assert.True(t, out.Programs[0].Valid)
	assert.JSONEq(t, `[{"Command":"wait","Args":{"time":1}}]`, string(out.Programs[0].Commands))
}
