package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/service"
	"github.com/TIANLI0/MatteKit/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
)

type fakeCache struct {
	entries map[string]*model.MatteResult
	getErr  error
}

func (c *fakeCache) GetMatteResult(_ context.Context, key string) (*model.MatteResult, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[key], nil
}

func (c *fakeCache) SetMatteResult(_ context.Context, key string, r *model.MatteResult) error {
	c.entries[key] = r
	return nil
}

type fakeProcessor struct {
	calls []*model.MatteRequest
	err   error
}

func (p *fakeProcessor) Process(_ context.Context, req *model.MatteRequest) (*model.MatteResult, error) {
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	return &model.MatteResult{Key: req.Key, Width: 2, Height: 2, Matte: "eA=="}, nil
}

type part struct {
	field, contentType string
	data               []byte
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="%s.bin"`, p.field, p.field))
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		pw.Write(p.data)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func newTestRouter(cache ResultCache, proc Processor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.UploadConfig{MaxSize: 1024, AllowedTypes: []string{"image/png", "image/jpeg"}}
	h := NewMatteHandler(cfg, cache, proc)
	r := gin.New()
	r.POST("/api/v1/matte", h.Matte)
	r.GET("/api/v1/matte/:key", h.GetByKey)
	return r
}

func post(t *testing.T, r *gin.Engine, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matte", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMatteProcessesAndCaches(t *testing.T) {
	cache := &fakeCache{entries: map[string]*model.MatteResult{}}
	proc := &fakeProcessor{}
	r := newTestRouter(cache, proc)

	img := part{"image", "image/png", []byte("image-bytes")}
	mask := part{"mask", "image/png", []byte("mask-bytes")}

	w := post(t, r, img, mask)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp model.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	key := utils.CacheKey(img.data, mask.data)
	want := model.UploadResponse{
		Success: true,
		Message: "处理成功",
		Data:    &model.MatteResult{Key: key, Width: 2, Height: 2, Matte: "eA=="},
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if len(proc.calls) != 1 || string(proc.calls[0].Mask) != "mask-bytes" {
		t.Fatalf("processor calls = %+v", proc.calls)
	}

	// Second upload is served from the cache.
	if w := post(t, r, img, mask); w.Code != http.StatusOK {
		t.Fatalf("cached status = %d", w.Code)
	}
	if len(proc.calls) != 1 {
		t.Errorf("cache miss on repeat upload: %d calls", len(proc.calls))
	}

	// Without a mask the key changes.
	post(t, r, img)
	if got := proc.calls[len(proc.calls)-1]; got.Key != utils.CacheKey(img.data, nil) || got.Mask != nil {
		t.Errorf("maskless request = %+v", got)
	}

	get := httptest.NewRecorder()
	r.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/v1/matte/"+key, nil))
	if get.Code != http.StatusOK {
		t.Errorf("GET cached key: %d", get.Code)
	}
}

func TestMatteRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name  string
		parts []part
	}{
		{"no image", []part{{"mask", "image/png", []byte("m")}}},
		{"image too large", []part{{"image", "image/png", make([]byte, 2048)}}},
		{"image wrong type", []part{{"image", "text/plain", []byte("x")}}},
		{"mask wrong type", []part{{"image", "image/png", []byte("x")}, {"mask", "application/pdf", []byte("m")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			r := newTestRouter(&fakeCache{entries: map[string]*model.MatteResult{}}, proc)
			if w := post(t, r, tt.parts...); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if len(proc.calls) != 0 {
				t.Error("processor called")
			}
		})
	}
}

func TestMatteMapsProcessingErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrQueueFull, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: bad png", service.ErrInvalidImage), http.StatusBadRequest},
		{service.ErrMaskRequired, http.StatusBadRequest},
		{context.Canceled, http.StatusRequestTimeout},
		{errors.New("device lost"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		cache := &fakeCache{entries: map[string]*model.MatteResult{}}
		r := newTestRouter(cache, &fakeProcessor{err: tt.err})
		w := post(t, r, part{"image", "image/png", []byte("x")})
		if w.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
		if len(cache.entries) != 0 {
			t.Errorf("%v: failure was cached", tt.err)
		}
	}
}

func TestGetByKey(t *testing.T) {
	cache := &fakeCache{entries: map[string]*model.MatteResult{"k": {Key: "k"}}}
	r := newTestRouter(cache, &fakeProcessor{})

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/matte/k", http.StatusOK},
		{"/api/v1/matte/absent", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
		}
	}

	cache.getErr = errors.New("redis down")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/matte/k", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("GET with cache error = %d", w.Code)
	}
}

func TestMatteCacheErrorFallsThrough(t *testing.T) {
	proc := &fakeProcessor{}
	r := newTestRouter(&fakeCache{entries: map[string]*model.MatteResult{}, getErr: errors.New("redis down")}, proc)
	if w := post(t, r, part{"image", "image/png", []byte("x")}); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if len(proc.calls) != 1 {
		t.Error("cache error stopped processing")
	}
}
