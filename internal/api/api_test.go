package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/textconv/internal/config"
	"github.com/emandor/textconv/internal/export"
	"github.com/emandor/textconv/internal/extract"
	"github.com/emandor/textconv/internal/middleware"
)

type fakeRunner struct {
	recs []extract.Record
	err  error
	gate chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, _ string, observe extract.Observer) ([]extract.Record, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.recs {
		observe(i+1, len(f.recs))
	}
	return f.recs, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) add(e string) {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
}

func (n *fakeNotifier) BatchStarted(string, string, int) { n.add("started") }
func (n *fakeNotifier) BatchProgress(string, int, int)   { n.add("progress") }
func (n *fakeNotifier) BatchCompleted(string, any)       { n.add("completed") }
func (n *fakeNotifier) BatchError(string, error)         { n.add("error") }

func (n *fakeNotifier) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func gray(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	g.SetGray(w/2, h/2, color.Gray{})
	return g
}

func folderWithPNG(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, gray(120, 80)))
	require.NoError(t, f.Close())
	return dir
}

func newApp(t *testing.T, r Runner) (*fiber.App, *fakeNotifier) {
	t.Helper()
	cfg := &config.Config{AllowedFileExt: extract.DefaultExtensions, PreviewMax: 50}
	n := &fakeNotifier{}
	h := NewHandler(context.Background(), cfg, r, n)

	app := fiber.New()
	app.Use(middleware.RequestID())
	h.Mount(app.Group("/api/v1"))
	return app, n
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func create(t *testing.T, app *fiber.App, dir string) string {
	t.Helper()
	resp, body := do(t, app, http.MethodPost, "/api/v1/batches", map[string]string{"folder": dir})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode, string(body))
	var out struct{ ID string }
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func waitStatus(t *testing.T, app *fiber.App, id string, want Status) View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		var v View
		_, body := do(t, app, http.MethodGet, "/api/v1/batches/"+id, nil)
		require.NoError(t, json.Unmarshal(body, &v))
		if v.Status == want {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch %s stuck in %q, want %q", id, v.Status, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCreateBatchValidation(t *testing.T) {
	app, _ := newApp(t, &fakeRunner{})

	resp, _ := do(t, app, http.MethodPost, "/api/v1/batches", map[string]string{"folder": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/v1/batches", map[string]string{"folder": filepath.Join(t.TempDir(), "gone")})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, body := do(t, app, http.MethodPost, "/api/v1/batches", map[string]string{"folder": t.TempDir()})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), msgNoSources)
}

func TestBatchLifecycle(t *testing.T) {
	dir := folderWithPNG(t, "a.png")
	r := &fakeRunner{recs: []extract.Record{
		{Name: "a.png", Path: filepath.Join(dir, "a.png"), Kind: extract.KindImage, Pages: 1, Preview: gray(200, 100), Text: "Bonjour"},
		{Name: "b.pdf", Kind: extract.KindPDF, Err: errors.New("rasterize: exit status 1")},
	}}
	app, n := newApp(t, r)

	id := create(t, app, dir)
	v := waitStatus(t, app, id, StatusDone)

	assert.Equal(t, 2, v.Current)
	assert.Equal(t, 2, v.Total)
	assert.Equal(t, 1, v.Failed)
	require.NotNil(t, v.Output)
	assert.FileExists(t, v.Output.Text)
	assert.FileExists(t, v.Output.Docx)
	assert.Equal(t, filepath.Join(dir, export.TextName), v.Output.Text)
	require.Len(t, v.Records, 2)
	assert.Equal(t, "rasterize: exit status 1", v.Records[1].Error)

	assert.Eventually(t, func() bool {
		ev := n.list()
		return len(ev) == 4 && ev[0] == "started" && ev[3] == "completed"
	}, time.Second, 10*time.Millisecond)

	resp, body := do(t, app, http.MethodGet, "/api/v1/batches/"+id+"/records/1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var rv RecordView
	require.NoError(t, json.Unmarshal(body, &rv))
	assert.Equal(t, "File 1 of 2", rv.Label)
	assert.Equal(t, "Bonjour", rv.Text)
	assert.False(t, rv.HasPrev)
	assert.True(t, rv.HasNext)

	_, body = do(t, app, http.MethodGet, "/api/v1/batches/"+id+"/records/2", nil)
	require.NoError(t, json.Unmarshal(body, &rv))
	assert.True(t, rv.HasPrev)
	assert.False(t, rv.HasNext)
	assert.NotEmpty(t, rv.Error)

	resp, _ = do(t, app, http.MethodGet, "/api/v1/batches/"+id+"/records/3", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/api/v1/batches/"+id+"/records/1/preview", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	thumb, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 50, thumb.Bounds().Dx())
	assert.Equal(t, 25, thumb.Bounds().Dy())

	resp, _ = do(t, app, http.MethodGet, "/api/v1/batches/"+id+"/records/1/original", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/api/v1/batches/"+id+"/records/2/preview", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRecordsUnavailableWhileRunning(t *testing.T) {
	dir := folderWithPNG(t, "a.png")
	r := &fakeRunner{gate: make(chan struct{}), recs: []extract.Record{{Name: "a.png"}}}
	app, _ := newApp(t, r)

	id := create(t, app, dir)
	resp, _ := do(t, app, http.MethodGet, "/api/v1/batches/"+id+"/records/1", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, body := do(t, app, http.MethodPost, "/api/v1/batches", map[string]string{"folder": dir})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), id)

	close(r.gate)
	waitStatus(t, app, id, StatusDone)
}

func TestBatchFailure(t *testing.T) {
	dir := folderWithPNG(t, "a.png")
	app, n := newApp(t, &fakeRunner{err: errors.New("a.png: ocr: missing traineddata")})

	id := create(t, app, dir)
	v := waitStatus(t, app, id, StatusFailed)
	assert.Contains(t, v.Message, "missing traineddata")
	assert.Nil(t, v.Output)
	assert.Contains(t, n.list(), "error")
}

func TestBatchEmptyAfterStart(t *testing.T) {
	dir := folderWithPNG(t, "a.png")
	app, _ := newApp(t, &fakeRunner{err: extract.ErrNoSources})

	id := create(t, app, dir)
	v := waitStatus(t, app, id, StatusEmpty)
	assert.Equal(t, msgNoSources, v.Message)
}

func TestUnknownBatch(t *testing.T) {
	app, _ := newApp(t, &fakeRunner{})
	resp, _ := do(t, app, http.MethodGet, "/api/v1/batches/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
