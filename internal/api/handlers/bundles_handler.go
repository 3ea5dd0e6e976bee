package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/updrift/engine/internal/api/types"
	"github.com/updrift/engine/internal/resolver"
	"github.com/updrift/engine/internal/services"
	"github.com/updrift/engine/internal/storage"
	appErr "github.com/updrift/engine/pkg/errors"
)

// BundlesHandler serves the client-facing update protocol: the resolve query
// and the bundle download.
type BundlesHandler struct {
	projectSvc services.ProjectService
	resolveSvc services.ResolutionService
	releaseSvc services.ReleaseService
	store      storage.Store
}

func NewBundlesHandler(projectSvc services.ProjectService, resolveSvc services.ResolutionService, releaseSvc services.ReleaseService, store storage.Store) *BundlesHandler {
	return &BundlesHandler{projectSvc: projectSvc, resolveSvc: resolveSvc, releaseSvc: releaseSvc, store: store}
}

// Resolve answers GET /api/v1/bundles/{project}. Query params: platform,
// build (range policy) or version (constraint policy), optional channel.
// 404 with found:false is the normal "no update" answer; 422 means the
// client sent something unusable.
func (h *BundlesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}

	platform, err := resolver.ParsePlatform(r.URL.Query().Get("platform"))
	if err != nil {
		writeError(w, err)
		return
	}
	raw := r.URL.Query().Get("build")
	if raw == "" {
		raw = r.URL.Query().Get("version")
	}
	if raw == "" {
		writeError(w, appErr.New(appErr.CodeInvalid, "build or version is required"))
		return
	}

	rel, err := h.resolveSvc.Resolve(r.Context(), project, services.ResolveQuery{
		Platform:    platform,
		RawVersion:  raw,
		ChannelName: r.URL.Query().Get("channel"),
	})
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			writeJSON(w, http.StatusNotFound, types.ResolveResponse{Found: false})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, types.ResolveResponse{
		Found:     true,
		Name:      rel.Name,
		ID:        rel.Token,
		URL:       downloadURL(r, project.Token, rel.Token),
		Signature: rel.Signature,
	})
}

// Download streams GET /api/v1/bundles/{project}/{release}.zip. Bundles are
// immutable, so responses carry long-lived cache headers and the signature
// doubles as the ETag.
func (h *BundlesHandler) Download(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	token := strings.TrimSuffix(chi.URLParam(r, "release"), ".zip")
	rel, err := h.releaseSvc.Get(r.Context(), project, token)
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := h.store.Open(rel.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()

	etag := fmt.Sprintf("%q", rel.Signature)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Cache-Control", "public, max-age=604800")
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Signature", rel.Signature)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	http.ServeContent(w, r, token+".zip", rel.UpdatedAt, f)
}

func downloadURL(r *http.Request, projectToken, releaseToken string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/api/v1/bundles/%s/%s.zip", scheme, r.Host, projectToken, releaseToken)
}
