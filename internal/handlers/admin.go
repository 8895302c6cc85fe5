package handlers

import (
	"net/http"

	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// AdminHandler manages user accounts.
type AdminHandler struct {
	users UserService
}

func NewAdminHandler(users UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

// AdminRouter registers admin routes. Every route requires the admin role.
func AdminRouter(r chi.Router, users UserService, auth *Authenticator) {
	handler := NewAdminHandler(users)

	r.Use(auth.RequireAuth, auth.RequireAdmin)
	r.Get("/users", handler.ListUsers)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Put("/role", handler.UpdateRole)
		r.Put("/deactivate", handler.DeactivateUser)
		r.Put("/activate", handler.ActivateUser)
		r.Delete("/", handler.DeleteUser)
	})
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.users.List(r.Context(), offset, limit)
	if err != nil {
		writeInternal(w, r, "failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, PageResponse[types.User]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.users.UpdateRole(r.Context(), id, req.Role)
	h.respondUser(w, r, res, err, "failed to update role")
}

func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *AdminHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	admin, _ := userFromContext(r.Context())
	id, err := parseIDParam(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.users.SetActive(r.Context(), admin.ID, id, active)
	h.respondUser(w, r, res, err, "failed to update user")
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	admin, _ := userFromContext(r.Context())
	id, err := parseIDParam(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.users.Delete(r.Context(), admin.ID, id)
	if err != nil {
		writeInternal(w, r, "failed to delete user", err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) respondUser(w http.ResponseWriter, r *http.Request, res services.Result[types.User], err error, message string) {
	if err != nil {
		writeInternal(w, r, message, err)
		return
	}
	if !res.OK() {
		writeFailure(w, res.Kind, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res.Data)
}
