package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/brightsend/mailform/internal/assets"
	"github.com/brightsend/mailform/internal/auth"
	"github.com/brightsend/mailform/internal/pkg/logger"
)

const maxUploadBody = 64 << 20 // 64 MiB across all files in one request

type uploadedAsset struct {
	Name  string            `json:"name"`
	Size  int64             `json:"size"`
	Image *assets.ImageInfo `json:"image,omitempty"`
}

// UploadAssets receives multipart files for a domain the caller owns,
// stages them, sniffs image metadata, and moves them into the domain
// tree. An S3 mirror, when configured, is updated best-effort.
func (h *Handlers) UploadAssets(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	domainName := chi.URLParam(r, "domain")

	domain, err := h.store.GetDomainByName(r.Context(), user.ID, domainName)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(500, err))
		return
	}
	if domain == nil {
		respondError(w, http.StatusNotFound, "domain not found")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	var saved []uploadedAsset
	for _, headers := range r.MultipartForm.File {
		for _, hdr := range headers {
			info, err := h.saveUpload(r, domain.Name, hdr)
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			saved = append(saved, *info)
		}
	}
	if len(saved) == 0 {
		respondError(w, http.StatusBadRequest, "no files in request")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"assets": saved})
}

func (h *Handlers) saveUpload(r *http.Request, domain string, hdr *multipart.FileHeader) (*uploadedAsset, error) {
	src, err := hdr.Open()
	if err != nil {
		return nil, errors.New("unreadable upload " + hdr.Filename)
	}
	defer src.Close()

	staged, err := h.assets.Stage(hdr.Filename, src)
	if err != nil {
		return nil, err
	}

	info := &uploadedAsset{Name: hdr.Filename, Size: hdr.Size}
	if f, err := os.Open(staged); err == nil {
		info.Image = assets.SniffImage(f)
		f.Close()
	}

	if err := h.assets.Commit(domain, hdr.Filename, staged); err != nil {
		os.Remove(staged)
		return nil, err
	}

	// The staged file is gone after Commit; mirror from the committed copy.
	if mirror := h.assets.Mirror(); mirror != nil {
		if path, err := h.assets.Resolve(domain, hdr.Filename); err == nil {
			if f, err := os.Open(path); err == nil {
				ct := hdr.Header.Get("Content-Type")
				if err := mirror.Upload(r.Context(), domain, hdr.Filename, ct, f); err != nil {
					logger.Warn("asset mirror upload failed", "domain", domain, "name", hdr.Filename, "error", err.Error())
				}
				f.Close()
			}
		}
	}

	logger.Info("asset stored", "domain", domain, "name", hdr.Filename, "size", hdr.Size)
	return info, nil
}

// ServeAsset serves a stored file. Unsafe paths and misses are both 404;
// a probe cannot distinguish a blocked path from an absent one.
func (h *Handlers) ServeAsset(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	relPath := chi.URLParam(r, "*")

	path, err := h.assets.Resolve(domain, relPath)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, path)
}
