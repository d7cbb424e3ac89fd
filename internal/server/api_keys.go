package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/apikeys"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/auth"
	apihttp "github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/http"
	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/store"
)

// APIKeyServer serves API key management for dashboard users.
type APIKeyServer struct {
	keys *apikeys.Service
}

func NewAPIKeyServer(keys *apikeys.Service) *APIKeyServer {
	return &APIKeyServer{keys: keys}
}

// List returns the organization's keys without key material.
func (s *APIKeyServer) List(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	keys, err := s.keys.List(r.Context(), caller.Org.OrgID)
	if err != nil {
		writeInternalError(w, r, err, "Failed to list API keys")
		return
	}

	views := make([]*apiKeyView, 0, len(keys))
	for _, key := range keys {
		views = append(views, newAPIKeyView(key))
	}

	apihttp.WriteJSON(w, r, http.StatusOK, map[string]any{"keys": views})
}

type createAPIKeyRequest struct {
	Name string `json:"name" validate:"omitempty,min=1,max=100"`
}

type createAPIKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"createdAt"`
	Message   string    `json:"message"`
}

// Create issues a key. The response is the only place the plaintext appears.
func (s *APIKeyServer) Create(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	var body createAPIKeyRequest
	if err := apihttp.DecodeJSON(w, r, &body, apihttp.MaxJSONBodyBytes); err != nil && !errors.Is(err, apihttp.ErrEmptyBody) {
		writeBodyError(w, r, err, "invalid-body")
		return
	}

	issued, err := s.keys.Issue(r.Context(), caller, body.Name)
	if err != nil {
		writeInternalError(w, r, err, "Failed to create API key")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, createAPIKeyResponse{
		ID:        issued.Key.APIKeyID,
		Name:      issued.Key.Name,
		Key:       issued.Token,
		Prefix:    issued.Key.Prefix,
		CreatedAt: issued.Key.CreatedAt,
		Message:   "Save this key securely. It will not be shown again.",
	})
}

// Delete revokes the key named by the id query parameter.
func (s *APIKeyServer) Delete(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())

	id := r.URL.Query().Get("id")
	if id == "" {
		apihttp.WriteError(w, r, http.StatusBadRequest, "Key ID required")
		return
	}

	keyID, err := uuid.Parse(id)
	if err != nil {
		apihttp.WriteError(w, r, http.StatusNotFound, "Key not found")
		return
	}

	if err := s.keys.Revoke(r.Context(), caller.Org.OrgID, keyID); err != nil {
		if errors.Is(err, store.ErrAPIKeyNotFound) {
			apihttp.WriteError(w, r, http.StatusNotFound, "Key not found")
			return
		}
		writeInternalError(w, r, err, "Failed to delete API key")
		return
	}

	apihttp.WriteJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}
