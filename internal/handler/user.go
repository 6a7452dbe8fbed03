package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/duochat/internal/middleware"
	"github.com/duochat/internal/model"
	"github.com/duochat/internal/repository"
	"github.com/duochat/internal/service"
)

// StatusBroadcaster pushes a presence change to every connected client.
// Implemented by ws.Hub.
type StatusBroadcaster interface {
	BroadcastUserStatus(userID string, status model.UserStatus)
}

type UserHandler struct {
	users    service.UserStore
	presence StatusBroadcaster
}

// NewUserHandler creates the profile/directory handler. presence may be nil;
// manual status changes are then not pushed to connected clients.
func NewUserHandler(users service.UserStore, presence StatusBroadcaster) *UserHandler {
	return &UserHandler{users: users, presence: presence}
}

// GetProfile returns the authenticated user's own profile.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user.ToPublic())
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user.ToPublic())
}

// GetUsers lists all users except the caller, for starting new conversations.
func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAll(r.Context(), 500)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list users failed")
		return
	}
	currentUserID := middleware.GetUserID(r.Context())
	result := make([]model.UserPublic, 0, len(users))
	for _, u := range users {
		if u.ID != currentUserID {
			result = append(result, u.ToPublic())
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeJSON(w, http.StatusOK, []model.UserPublic{})
		return
	}

	users, err := h.users.SearchByUsername(r.Context(), query, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	currentUserID := middleware.GetUserID(r.Context())
	result := make([]model.UserPublic, 0, len(users))
	for _, u := range users {
		if u.ID != currentUserID {
			result = append(result, u.ToPublic())
		}
	}
	writeJSON(w, http.StatusOK, result)
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	AvatarURL *string `json:"avatarUrl"`
	Bio       *string `json:"bio"`
	Status    *string `json:"status"`
}

// UpdateProfile patches the caller's profile. Absent fields keep their
// current value; a status change is also broadcast to connected clients.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	userID := middleware.GetUserID(r.Context())
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	firstName := user.FirstName
	if req.FirstName != nil {
		firstName = *req.FirstName
	}
	lastName := user.LastName
	if req.LastName != nil {
		lastName = *req.LastName
	}
	avatarURL := user.AvatarURL
	if req.AvatarURL != nil {
		avatarURL = *req.AvatarURL
	}
	bio := user.Bio
	if req.Bio != nil {
		bio = *req.Bio
	}

	if err := h.users.UpdateProfile(r.Context(), userID, firstName, lastName, avatarURL, bio); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	status := user.Status
	if req.Status != nil {
		newStatus := model.UserStatus(*req.Status)
		if !model.ValidStatus(newStatus) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		if newStatus != user.Status {
			if err := h.users.SetStatus(r.Context(), userID, newStatus); err != nil {
				writeError(w, http.StatusInternalServerError, "failed to update status")
				return
			}
			if h.presence != nil {
				h.presence.BroadcastUserStatus(userID, newStatus)
			}
			status = newStatus
		}
	}

	user.FirstName = firstName
	user.LastName = lastName
	user.AvatarURL = avatarURL
	user.Bio = bio
	user.Status = status
	writeJSON(w, http.StatusOK, user.ToPublic())
}
