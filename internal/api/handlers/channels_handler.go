package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/updrift/engine/internal/api/types"
	"github.com/updrift/engine/internal/services"
)

type ChannelsHandler struct {
	projectSvc services.ProjectService
	channelSvc services.ChannelService
}

func NewChannelsHandler(projectSvc services.ProjectService, channelSvc services.ChannelService) *ChannelsHandler {
	return &ChannelsHandler{projectSvc: projectSvc, channelSvc: channelSvc}
}

func (h *ChannelsHandler) List(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.channelSvc.List(r.Context(), project)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: items, Meta: &types.Meta{Total: int64(len(items))}})
}

func (h *ChannelsHandler) Create(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	ch, err := h.channelSvc.Create(r.Context(), project, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: ch})
}

func (h *ChannelsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	ch, err := h.channelSvc.Rename(r.Context(), project, chi.URLParam(r, "channel"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: ch})
}

func (h *ChannelsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, err := h.projectSvc.GetByToken(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.channelSvc.Delete(r.Context(), project, chi.URLParam(r, "channel")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}
