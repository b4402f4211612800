package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/noteflow/noteflow/internal/domain"
	"github.com/noteflow/noteflow/internal/usecase"
)

// AuthHandler exposes registration and login.
type AuthHandler struct {
	auth *usecase.AuthUseCase
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(auth *usecase.AuthUseCase) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes mounts the auth endpoints on router.
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/register", h.Register).Methods("POST")
	router.HandleFunc("/api/auth/login", h.Login).Methods("POST")
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidEmail), errors.Is(err, usecase.ErrPasswordTooWeak):
			ErrorMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrEmailAlreadyExists):
			ErrorMessage(w, http.StatusConflict, err.Error())
		default:
			Error(w, err)
		}
		return
	}
	Success(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			ErrorMessage(w, http.StatusUnauthorized, err.Error())
			return
		}
		Error(w, err)
		return
	}
	Success(w, http.StatusOK, map[string]string{"accessToken": token})
}
