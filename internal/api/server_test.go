package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dunamismax/imagersharp/internal/domain"
	"github.com/dunamismax/imagersharp/internal/pipeline"
	"github.com/dunamismax/imagersharp/internal/queue"
	"github.com/dunamismax/imagersharp/internal/ratelimit"
	"github.com/dunamismax/imagersharp/internal/store"
	"github.com/hibiken/asynq"
)

type fakeQueue struct {
	payloads []queue.EditImagePayload
	err      error
}

func (q *fakeQueue) EnqueueEditImage(_ context.Context, payload queue.EditImagePayload) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.payloads = append(q.payloads, payload)
	return &asynq.TaskInfo{ID: payload.JobID, Queue: "default", State: asynq.TaskStatePending}, nil
}

type fakeStorage struct {
	objects map[string]bool
}

func (s fakeStorage) PresignedPutURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://minio.local/put/" + key, nil
}

func (s fakeStorage) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://minio.local/get/" + key, nil
}

func (s fakeStorage) ObjectExists(_ context.Context, key string) (bool, error) {
	return s.objects[key], nil
}

type denyLimiter struct {
	subjects []string
}

func (d *denyLimiter) AllowN(_ context.Context, subject string, cost int64) (ratelimit.Decision, error) {
	d.subjects = append(d.subjects, subject)
	return ratelimit.Decision{Allowed: false, Cost: cost, RetryAfter: 3 * time.Second}, nil
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.JobStore == nil {
		opts.JobStore = store.NewMemoryJobStore()
	}
	return NewServer(opts)
}

func quadrantPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	half := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBA{R: 255, A: 255}
			switch {
			case x >= half && y < half:
				c = color.NRGBA{G: 255, A: 255}
			case x < half && y >= half:
				c = color.NRGBA{B: 255, A: 255}
			case x >= half && y >= half:
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func processRequest(t *testing.T, source []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if source != nil {
		part, err := mw.CreateFormFile("file", "source.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(source); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestProcessCropsToPNG(t *testing.T) {
	srv := newTestServer(t, Options{})
	req := processRequest(t, quadrantPNG(t, 400), map[string]string{
		"crop":    `{"x":50,"y":50,"width":200,"height":200}`,
		"quality": "80",
		"format":  "png",
	})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("expected image/png, got %s", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "inline; filename=processed.png" {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if rec.Header().Get("X-Image-Width") != "200" || rec.Header().Get("X-Image-Height") != "200" {
		t.Fatalf("unexpected dimension headers %v", rec.Header())
	}

	out, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 200 {
		t.Fatalf("expected 200x200 output, got %v", out.Bounds())
	}
	want := map[image.Point]color.NRGBA{
		{0, 0}:     {R: 255, A: 255},
		{199, 0}:   {G: 255, A: 255},
		{0, 199}:   {B: 255, A: 255},
		{199, 199}: {R: 255, G: 255, B: 255, A: 255},
	}
	for p, c := range want {
		if got := color.NRGBAModel.Convert(out.At(p.X, p.Y)).(color.NRGBA); got != c {
			t.Fatalf("pixel %v: expected %v, got %v", p, c, got)
		}
	}
}

func TestProcessErrorMapping(t *testing.T) {
	source := quadrantPNG(t, 40)
	tests := []struct {
		name   string
		source []byte
		fields map[string]string
		status int
		kind   string
	}{
		{
			name:   "crop out of bounds",
			source: source,
			fields: map[string]string{"crop": `{"x":30,"y":30,"width":20,"height":20}`},
			status: http.StatusUnprocessableEntity,
			kind:   pipeline.KindInvalidCrop,
		},
		{
			name:   "missing crop",
			source: source,
			fields: map[string]string{},
			status: http.StatusUnprocessableEntity,
			kind:   pipeline.KindInvalidCrop,
		},
		{
			name:   "unsupported format",
			source: source,
			fields: map[string]string{"crop": `{"x":0,"y":0,"width":10,"height":10}`, "format": "gif"},
			status: http.StatusUnsupportedMediaType,
			kind:   pipeline.KindUnsupportedFormat,
		},
		{
			name:   "quality out of range",
			source: source,
			fields: map[string]string{"crop": `{"x":0,"y":0,"width":10,"height":10}`, "quality": "0"},
			status: http.StatusBadRequest,
			kind:   pipeline.KindInvalidParams,
		},
		{
			name:   "negative saturation",
			source: source,
			fields: map[string]string{"crop": `{"x":0,"y":0,"width":10,"height":10}`, "saturation": "-1"},
			status: http.StatusBadRequest,
			kind:   pipeline.KindInvalidParams,
		},
		{
			name:   "undecodable source",
			source: []byte("definitely not an image"),
			fields: map[string]string{"crop": `{"x":0,"y":0,"width":10,"height":10}`},
			status: http.StatusBadRequest,
			kind:   pipeline.KindDecode,
		},
	}

	srv := newTestServer(t, Options{})
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, processRequest(t, tc.source, tc.fields))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if body := decodeErrorBody(t, rec); body["kind"] != tc.kind {
				t.Fatalf("expected kind %s, got %v", tc.kind, body)
			}
		})
	}
}

func TestProcessRequiresFile(t *testing.T) {
	srv := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, processRequest(t, nil, map[string]string{"crop": `{"x":0,"y":0,"width":1,"height":1}`}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProcessRejectsOversizedSource(t *testing.T) {
	srv := newTestServer(t, Options{Limits: pipeline.Limits{MaxPixels: 100}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, processRequest(t, quadrantPNG(t, 40), map[string]string{
		"crop": `{"x":0,"y":0,"width":5,"height":5}`,
	}))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeErrorBody(t, rec); body["kind"] != pipeline.KindSourceTooLarge {
		t.Fatalf("expected source_too_large kind, got %v", body)
	}
}

func TestProcessClassifiesJunkGIFAsDecode(t *testing.T) {
	srv := newTestServer(t, Options{Limits: pipeline.Limits{MaxPixels: 100}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, processRequest(t, []byte("GIF87a but not really"), map[string]string{
		"crop": `{"x":0,"y":0,"width":5,"height":5}`,
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeErrorBody(t, rec); body["kind"] != pipeline.KindDecode {
		t.Fatalf("expected kind %s, got %v", pipeline.KindDecode, body)
	}
}

func TestProcessRejectsOversizedBody(t *testing.T) {
	srv := newTestServer(t, Options{Limits: pipeline.Limits{MaxBytes: 16}})
	big := bytes.Repeat([]byte{0xAB}, multipartOverhead+1024)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, processRequest(t, big, map[string]string{
		"crop": `{"x":0,"y":0,"width":5,"height":5}`,
	}))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateStartAndGetLocalJob(t *testing.T) {
	sourcePath := filepath.Join(t.TempDir(), "source.png")
	if err := os.WriteFile(sourcePath, quadrantPNG(t, 20), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	q := &fakeQueue{}
	jobs := store.NewMemoryJobStore()
	srv := newTestServer(t, Options{Queue: q, JobStore: jobs})
	handler := srv.Handler()

	createBody := `{"source_type":"local_file","object_key":"` + sourcePath + `","edit":{"crop":{"x":0,"y":0,"width":10,"height":10},"output":{"format":"png"}}}`
	createReq := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(createBody))
	createReq.Header.Set("X-User-ID", "user-7")
	createRec := httptest.NewRecorder()
	handler.ServeHTTP(createRec, createReq)
	if createRec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 on create, got %d: %s", createRec.Code, createRec.Body.String())
	}

	var created struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(createRec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	startRec := httptest.NewRecorder()
	handler.ServeHTTP(startRec, httptest.NewRequest(http.MethodPost, "/v1/jobs/"+created.JobID+"/start", nil))
	if startRec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 on start, got %d: %s", startRec.Code, startRec.Body.String())
	}
	if len(q.payloads) != 1 || q.payloads[0].JobID != created.JobID {
		t.Fatalf("expected one payload for %s, got %+v", created.JobID, q.payloads)
	}
	if q.payloads[0].Edit.Output.Format != "png" {
		t.Fatalf("expected edit spec to travel with the payload, got %+v", q.payloads[0].Edit)
	}

	job, ok, err := jobs.Get(context.Background(), created.JobID)
	if err != nil || !ok {
		t.Fatalf("expected stored job, ok=%v err=%v", ok, err)
	}
	if job.Status != domain.JobStatusQueued || job.UserID != "user-7" {
		t.Fatalf("unexpected stored job %+v", job)
	}

	againRec := httptest.NewRecorder()
	handler.ServeHTTP(againRec, httptest.NewRequest(http.MethodPost, "/v1/jobs/"+created.JobID+"/start", nil))
	if againRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second start, got %d", againRec.Code)
	}

	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+created.JobID, nil))
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", getRec.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(getRec.Body).Decode(&got); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if got["status"] != domain.JobStatusQueued {
		t.Fatalf("expected queued status, got %v", got["status"])
	}
}

func TestCreatePresignedJobAndDownloadURL(t *testing.T) {
	jobs := store.NewMemoryJobStore()
	srv := newTestServer(t, Options{Storage: fakeStorage{}, JobStore: jobs})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"source_type":"s3_presigned","edit":{"crop":{"x":0,"y":0,"width":4,"height":4}}}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		JobID  string            `json:"job_id"`
		Upload map[string]string `json:"upload"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Upload["object_key"] != "uploads/"+created.JobID+"/source" {
		t.Fatalf("unexpected object key %q", created.Upload["object_key"])
	}
	if !strings.HasPrefix(created.Upload["presigned_put_url"], "https://minio.local/put/") {
		t.Fatalf("unexpected presigned url %q", created.Upload["presigned_put_url"])
	}

	startRec := httptest.NewRecorder()
	handler.ServeHTTP(startRec, httptest.NewRequest(http.MethodPost, "/v1/jobs/"+created.JobID+"/start", nil))
	if startRec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a queue, got %d", startRec.Code)
	}

	output := pipeline.Output{Path: "outputs/" + created.JobID + "/processed.jpg", Format: "jpeg"}
	if _, err := jobs.Complete(context.Background(), created.JobID, output); err != nil {
		t.Fatalf("complete job: %v", err)
	}

	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+created.JobID, nil))
	var got map[string]any
	if err := json.NewDecoder(getRec.Body).Decode(&got); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if got["download_url"] != "https://minio.local/get/"+output.Path {
		t.Fatalf("expected download url for output, got %v", got["download_url"])
	}
}

func TestStartJobWithMissingSource(t *testing.T) {
	jobs := store.NewMemoryJobStore()
	now := time.Now().UTC()
	job := domain.Job{
		ID:         "job-missing",
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeS3Presigned,
		ObjectKey:  "uploads/job-missing/source",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	srv := newTestServer(t, Options{Queue: &fakeQueue{}, JobStore: jobs, Storage: fakeStorage{}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/job-missing/start", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateJobRejectsBadEdit(t *testing.T) {
	srv := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"source_type":"s3_presigned","edit":{"crop":{"x":0,"y":0,"width":0,"height":4}}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body["kind"] != pipeline.KindInvalidCrop {
		t.Fatalf("expected invalid_crop kind, got %v", body)
	}
}

func TestGetUnknownJob(t *testing.T) {
	srv := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRateLimitRejects(t *testing.T) {
	limiter := &denyLimiter{}
	srv := newTestServer(t, Options{RateLimiter: limiter})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{}`)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "3" {
		t.Fatalf("expected Retry-After 3, got %q", rec.Header().Get("Retry-After"))
	}

	upload := httptest.NewRequest(http.MethodPost, "/v1/process", strings.NewReader("x"))
	upload.ContentLength = 12 << 20
	upload.Header.Set("X-User-ID", "u1")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, upload)
	if got := rec.Header().Get("X-RateLimit-Cost"); got != "3" {
		t.Fatalf("expected 12MiB upload to cost 3 tokens, got %q", got)
	}
	if last := limiter.subjects[len(limiter.subjects)-1]; last != "u1:/v1/process" {
		t.Fatalf("unexpected subject %q", last)
	}

	health := httptest.NewRecorder()
	srv.Handler().ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("expected healthz to bypass rate limiting, got %d", health.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	handler := srv.Handler()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "imagersharp_api_requests_total") {
		t.Fatal("expected request counter in metrics output")
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/v1/jobs/abc/start": "/v1/jobs/{id}/start",
		"/v1/jobs/abc":       "/v1/jobs/{id}",
		"/v1/jobs":           "/v1/jobs",
		"/v1/process":        "/v1/process",
		"/nope":              "other",
	}
	for path, want := range cases {
		if got := routeLabel(path); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
