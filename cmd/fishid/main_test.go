package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fishText = "Fish Information\nSpecies: Clownfish\nHabitat\nCoral reefs\nInteresting Facts\nCan change color"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_AI_API_KEY", "GOOGLE_API_KEY", "FISHID_REMOTE_URL", "FISHID_CAMERA"} {
		t.Setenv(k, "")
	}
	configPath, logLevel, remoteURL = "", "", ""
	outputJSON, outputRaw = false, false

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func fishServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "No file uploaded"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"results": fishText})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reef.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0o644))
	return path
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "test-1.0.0"
	defer func() { version = original }()

	out, _, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "fishid version test-1.0.0")
}

func TestIdentify_Remote(t *testing.T) {
	srv := fishServer(t)

	out, _, err := execute(t, "identify", "--remote", srv.URL, writeImage(t))

	require.NoError(t, err)
	assert.Contains(t, out, "Fish Information")
	assert.Contains(t, out, "Clownfish")
	assert.Contains(t, out, "Can change color")
}

func TestIdentify_JSON(t *testing.T) {
	srv := fishServer(t)

	out, _, err := execute(t, "identify", "--json", "--remote", srv.URL, writeImage(t))
	require.NoError(t, err)

	var got struct {
		Results  string `json:"results"`
		Document struct {
			Blocks []map[string]any `json:"blocks"`
		} `json:"document"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, fishText, got.Results)
	assert.Len(t, got.Document.Blocks, 5)
	assert.Equal(t, "title", got.Document.Blocks[0]["type"])
}

func TestIdentify_Raw(t *testing.T) {
	srv := fishServer(t)

	out, _, err := execute(t, "identify", "--raw", "--remote", srv.URL, writeImage(t))

	require.NoError(t, err)
	assert.Equal(t, fishText+"\n", out)
}

func TestIdentify_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, errOut, err := execute(t, "identify", "--remote", srv.URL, writeImage(t))

	require.Error(t, err)
	assert.Contains(t, errOut, "Error recognizing fish. Please try again.")
}

func TestIdentify_MissingFile(t *testing.T) {
	_, _, err := execute(t, "identify", "--remote", "http://localhost:1", filepath.Join(t.TempDir(), "nope.jpg"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIdentify_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jpg")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, _, err := execute(t, "identify", "--remote", "http://localhost:1", path)

	assert.Error(t, err)
}

func TestIdentify_NoAPIKey(t *testing.T) {
	_, _, err := execute(t, "identify", writeImage(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("camera:\n  kind: usb\n"), 0o644))

	_, _, err := execute(t, "--config", path, "version")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera.kind")
}

func TestIdentify_RequiresArg(t *testing.T) {
	_, _, err := execute(t, "identify")
	assert.Error(t, err)
}
