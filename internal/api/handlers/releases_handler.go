package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/updrift/engine/internal/api/types"
	"github.com/updrift/engine/internal/services"
	appErr "github.com/updrift/engine/pkg/errors"
)

// maxBundleBytes caps multipart uploads at 512 MiB.
const maxBundleBytes = 512 << 20

type ReleasesHandler struct {
	projectSvc services.ProjectService
	releaseSvc services.ReleaseService
}

func NewReleasesHandler(projectSvc services.ProjectService, releaseSvc services.ReleaseService) *ReleasesHandler {
	return &ReleasesHandler{projectSvc: projectSvc, releaseSvc: releaseSvc}
}

func (h *ReleasesHandler) List(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.releaseSvc.List(r.Context(), project)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}

// Create publishes a release from a multipart form: the bundle zip plus
// name, channel bindings, and the eligibility fields of the active policy.
func (h *ReleasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBundleBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("bundle")
	if err != nil {
		writeError(w, appErr.New(appErr.CodeInvalid, "bundle file is required"))
		return
	}
	defer file.Close()

	input := &services.CreateReleaseInput{
		Name:     r.FormValue("name"),
		Channels: r.Form["channels"],
		Bundle:   file,
	}
	input.AndroidAvailable, err = formBool(r, "android_available", true)
	if err == nil {
		input.IOSAvailable, err = formBool(r, "ios_available", true)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	for _, f := range []struct {
		name string
		dst  **uint64
	}{
		{"android_min", &input.AndroidMin},
		{"android_max", &input.AndroidMax},
		{"ios_min", &input.IOSMin},
		{"ios_max", &input.IOSMax},
	} {
		if *f.dst, err = formUint(r, f.name); err != nil {
			writeError(w, err)
			return
		}
	}
	if v := r.FormValue("android_requirements"); v != "" {
		input.AndroidRequirements = &v
	}
	if v := r.FormValue("ios_requirements"); v != "" {
		input.IOSRequirements = &v
	}

	rel, err := h.releaseSvc.Create(r.Context(), project, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: rel})
}

func (h *ReleasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	rel, err := h.releaseSvc.Get(r.Context(), project, chi.URLParam(r, "release"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: rel})
}

func (h *ReleasesHandler) Update(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name     *string  `json:"name"`
		Channels []string `json:"channels"`

		AndroidAvailable *bool   `json:"android_available"`
		AndroidMin       *uint64 `json:"android_min"`
		AndroidMax       *uint64 `json:"android_max"`
		IOSAvailable     *bool   `json:"ios_available"`
		IOSMin           *uint64 `json:"ios_min"`
		IOSMax           *uint64 `json:"ios_max"`

		AndroidRequirements *string `json:"android_requirements"`
		IOSRequirements     *string `json:"ios_requirements"`

		ClearAndroidBounds bool `json:"clear_android_bounds"`
		ClearIOSBounds     bool `json:"clear_ios_bounds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	rel, err := h.releaseSvc.Update(r.Context(), project, chi.URLParam(r, "release"), &services.UpdateReleaseInput{
		Name:                req.Name,
		Channels:            req.Channels,
		AndroidAvailable:    req.AndroidAvailable,
		AndroidMin:          req.AndroidMin,
		AndroidMax:          req.AndroidMax,
		IOSAvailable:        req.IOSAvailable,
		IOSMin:              req.IOSMin,
		IOSMax:              req.IOSMax,
		AndroidRequirements: req.AndroidRequirements,
		IOSRequirements:     req.IOSRequirements,
		ClearAndroidBounds:  req.ClearAndroidBounds,
		ClearIOSBounds:      req.ClearIOSBounds,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: rel})
}

func (h *ReleasesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.releaseSvc.Delete(r.Context(), project, chi.URLParam(r, "release")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

func formBool(r *http.Request, name string, def bool) (bool, error) {
	v := r.FormValue(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, appErr.New(appErr.CodeInvalid, name+" must be a boolean")
	}
	return b, nil
}

func formUint(r *http.Request, name string) (*uint64, error) {
	v := r.FormValue(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, appErr.New(appErr.CodeInvalid, name+" must be a non-negative integer")
	}
	return &n, nil
}
