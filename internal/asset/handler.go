package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/teeforge/customizer/internal/typeid"
)

const (
	maxUploadSize = 20 << 20 // 20MB

	defaultMaxEdge = 4096
	thumbEdge      = 320
)

var ErrNotFound = errors.New("mockup not found")

// Mockup describes a stored garment image. Templates size their canvas
// from Width and Height.
type Mockup struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Format       string `json:"format"`
	Name         string `json:"name"`
}

// Handler accepts garment mockup uploads and serves them back.
type Handler struct {
	dir    string
	prefix string

	// MaxEdge bounds the longest side of a stored mockup; larger uploads
	// are downscaled to fit.
	MaxEdge int
}

// NewHandler stores mockups under dir and serves them below urlPrefix.
func NewHandler(dir, urlPrefix string) *Handler {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("create mockup dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir, prefix: strings.TrimSuffix(urlPrefix, "/") + "/", MaxEdge: defaultMaxEdge}
}

// Upload handles POST /assets/mockups (multipart form with a "file" field).
// Any decodable format is accepted; the stored copy is always PNG.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file too large (max 20MB)"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "unsupported or corrupt image"})
		return
	}

	m, err := h.save(img)
	if err != nil {
		slog.Error("save mockup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save mockup"})
		return
	}
	m.Format = format
	m.Name = header.Filename

	slog.Info("mockup uploaded", "id", m.ID, "format", format, "width", m.Width, "height", m.Height)
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) save(img image.Image) (*Mockup, error) {
	if b := img.Bounds(); h.MaxEdge > 0 && (b.Dx() > h.MaxEdge || b.Dy() > h.MaxEdge) {
		img = imaging.Fit(img, h.MaxEdge, h.MaxEdge, imaging.Lanczos)
	}

	id := typeid.NewAssetID()
	if err := writePNG(h.path(id), img); err != nil {
		return nil, err
	}
	if err := writePNG(h.thumbPath(id), imaging.Fit(img, thumbEdge, thumbEdge, imaging.Lanczos)); err != nil {
		os.Remove(h.path(id))
		return nil, err
	}

	b := img.Bounds()
	return &Mockup{
		ID:           id,
		URL:          h.prefix + id + ".png",
		ThumbnailURL: h.prefix + id + "_thumb.png",
		Width:        b.Dx(),
		Height:       b.Dy(),
	}, nil
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		os.Remove(path)
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Measure reads the pixel size of a stored mockup without decoding it fully.
func (h *Handler) Measure(id string) (width, height int, err error) {
	f, err := os.Open(h.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("open mockup: %w", err)
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode mockup: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// MeasureURL measures the mockup a served URL points at.
func (h *Handler) MeasureURL(url string) (width, height int, err error) {
	name, ok := strings.CutPrefix(url, h.prefix)
	if !ok || !strings.HasSuffix(name, ".png") || strings.HasSuffix(name, "_thumb.png") {
		return 0, 0, ErrNotFound
	}
	return h.Measure(strings.TrimSuffix(name, ".png"))
}

// Delete removes a stored mockup.
func (h *Handler) Delete(id string) error {
	if err := os.Remove(h.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove mockup: %w", err)
	}
	if err := os.Remove(h.thumbPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove thumbnail: %w", err)
	}
	return nil
}

// Remove handles DELETE /assets/mockups/{mockupId}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["mockupId"]
	if err := h.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "mockup not found"})
			return
		}
		slog.Error("delete mockup", "error", err, "id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete mockup"})
		return
	}

	slog.Info("mockup deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Serve returns an http.Handler for stored mockups. Ids are unique, so
// responses are cacheable forever.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix(h.prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

func (h *Handler) path(id string) string {
	return filepath.Join(h.dir, filepath.Base(id)+".png")
}

func (h *Handler) thumbPath(id string) string {
	return filepath.Join(h.dir, filepath.Base(id)+"_thumb.png")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
