package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/plancheckhq/plancheck/internal/api/response"
	"github.com/plancheckhq/plancheck/internal/store"
	"github.com/plancheckhq/plancheck/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	apiKeyPrefix    = "pc_"
	apiKeyRandBytes = 24
	keyPrefixLen    = 8
)

var validScopes = map[string]bool{
	"read":  true,
	"write": true,
	"admin": true,
}

// NewCreateKeyHandler returns the handler for POST /api/v1/admin/keys.
// The raw key appears in this response only; the store keeps the bcrypt hash.
func NewCreateKeyHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if len(req.Scopes) == 0 {
			req.Scopes = []string{"read"}
		}
		for _, s := range req.Scopes {
			if !validScopes[s] {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"scopes must be read, write, or admin", map[string]any{"invalid": s})
				return
			}
		}

		rawKey, err := generateRawKey()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to generate key", nil)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to hash key", nil)
			return
		}

		key := &models.APIKey{
			ID:        uuid.New(),
			Name:      req.Name,
			KeyHash:   string(hash),
			KeyPrefix: rawKey[:keyPrefixLen],
			Scopes:    req.Scopes,
		}
		if err := st.CreateAPIKey(r.Context(), key); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to save key", nil)
			return
		}

		response.Created(w, map[string]any{
			"key":     key,
			"raw_key": rawKey,
		})
	}
}

// NewListKeysHandler returns the handler for GET /api/v1/admin/keys.
func NewListKeysHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := st.ListAPIKeys(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list keys", nil)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeKeyHandler returns the handler for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"keyID must be a valid UUID", nil)
			return
		}

		if err := st.RevokeAPIKey(r.Context(), keyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Key not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to revoke key", nil)
			return
		}

		response.NoContent(w)
	}
}

func generateRawKey() (string, error) {
	buf := make([]byte, apiKeyRandBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}
