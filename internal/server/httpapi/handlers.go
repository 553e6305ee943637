package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/parcelsync/internal/common"
	"github.com/dmitrijs2005/parcelsync/internal/server/services"
)

const maxBodyBytes = 1 << 20

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type credentialRequest struct {
	Extension string `json:"extension"`
}

type credentialResponse struct {
	UploadURL        string `json:"uploadUrl"`
	FinalResourceURL string `json:"finalResourceUrl"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pair, err := a.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pair, err := a.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) uploadCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cred, err := a.records.RequestUploadCredential(r.Context(), req.Extension)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialResponse{UploadURL: cred.UploadURL, FinalResourceURL: cred.FinalResourceURL})
}

// createRecord is idempotent on clientItemId. The Idempotency-Key header,
// when present, must agree with the body.
func (a *API) createRecord(w http.ResponseWriter, r *http.Request) {
	var in services.CreateRecordInput
	if !decodeBody(w, r, &in) {
		return
	}

	key := r.Header.Get(common.IdempotencyKeyHeader)
	if in.ClientItemID == "" {
		in.ClientItemID = key
	}
	if key != "" && key != in.ClientItemID {
		writeError(w, r, http.StatusConflict, "idempotency_mismatch", "Idempotency-Key does not match clientItemId")
		return
	}

	rec, created, err := a.records.CreateRecord(r.Context(), userIDFrom(r.Context()), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, rec)
}
