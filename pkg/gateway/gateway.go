// Package gateway exposes the server as a JSON API under /api/v1.
package gateway

import (
	"net/http"
	"strings"

	"github.com/vecinotech/vecinotech/internal/authn"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/server"
	"github.com/vecinotech/vecinotech/pkg/server/commands"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
)

// Prefix is the path every API route lives under.
const Prefix = "/api/v1"

type Handler struct {
	server *server.Server
	logger logger.Logger
	mux    *http.ServeMux
}

var _ http.Handler = (*Handler)(nil)

// NewHandler routes the API to s. Callers are expected to authenticate
// requests first, see authn.Middleware.
func NewHandler(s *server.Server, l logger.Logger) *Handler {
	h := &Handler{server: s, logger: l, mux: http.NewServeMux()}

	h.handle("POST /requests", h.createRequest)
	h.handle("GET /requests/nearby", h.searchNearby)
	h.handle("GET /requests/map", h.mapListing)
	h.handle("GET /requests/{id}", h.getRequest)
	h.handle("POST /requests/{id}/claim", h.claimRequest)
	h.handle("POST /requests/{id}/complete", h.completeRequest)

	h.handle("GET /requests/{id}/messages", h.listMessages)
	h.handle("POST /requests/{id}/messages", h.sendMessage)
	h.handle("POST /requests/{id}/messages/read", h.markMessagesRead)
	h.handle("GET /requests/{id}/messages/unread", h.countUnread)
	h.handle("POST /requests/{id}/join", h.joinChat)
	h.handle("POST /requests/{id}/leave", h.leaveChat)
	h.handle("POST /requests/{id}/call", h.inviteToCall)

	h.handle("GET /requests/{id}/rating", h.getRating)
	h.handle("POST /requests/{id}/rating", h.rateRequest)
	h.handle("GET /volunteers/{id}/ratings", h.volunteerRatings)
	h.handle("GET /leaderboard", h.leaderboard)

	h.handle("GET /me/requests", h.myRequests)
	h.handle("GET /me/profile", h.getProfile)
	h.handle("PUT /me/profile", h.updateProfile)
	h.handle("POST /me/profile/locate", h.refreshLocation)
	h.handle("PUT /me/volunteer", h.setVolunteer)

	return h
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (h *Handler) handle(pattern string, fn handlerFunc) {
	method, path, _ := strings.Cut(pattern, " ")
	h.mux.HandleFunc(method+" "+Prefix+path, func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			WriteError(h.logger, w, r, err)
		}
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) error {
	var body createRequestBody
	if err := decode(w, r, &body); err != nil {
		return err
	}
	req, err := h.server.CreateRequest(r.Context(), commands.CreateRequestInput{
		RequesterID: authn.UserID(r.Context()),
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, newRequestView(req))
	return nil
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) error {
	req, err := h.server.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newRequestView(req))
	return nil
}

func (h *Handler) claimRequest(w http.ResponseWriter, r *http.Request) error {
	req, err := h.server.ClaimRequest(r.Context(), r.PathValue("id"), authn.UserID(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newRequestView(req))
	return nil
}

func (h *Handler) completeRequest(w http.ResponseWriter, r *http.Request) error {
	req, transitioned, err := h.server.CompleteRequest(r.Context(), r.PathValue("id"), authn.UserID(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, completeView{Request: newRequestView(req), Transitioned: transitioned})
	return nil
}

// searchNearby reads lat and lng (both or neither), radius_km and limit.
func (h *Handler) searchNearby(w http.ResponseWriter, r *http.Request) error {
	in := commands.SearchNearbyInput{UserID: authn.UserID(r.Context())}

	lat, hasLat, err := queryFloat(r, "lat")
	if err != nil {
		return err
	}
	lng, hasLng, err := queryFloat(r, "lng")
	if err != nil {
		return err
	}
	switch {
	case hasLat && hasLng:
		in.Origin = &geo.Coordinate{Latitude: lat, Longitude: lng}
	case hasLat || hasLng:
		return serverErrors.InvalidArgument("lat and lng must be given together")
	}

	if in.RadiusKm, _, err = queryFloat(r, "radius_km"); err != nil {
		return err
	}
	if in.Limit, err = queryInt(r, "limit"); err != nil {
		return err
	}

	res, err := h.server.SearchNearby(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newNearbyView(res))
	return nil
}

func (h *Handler) mapListing(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	reqs, err := h.server.MapListing(r.Context(), limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newRequestViews(reqs))
	return nil
}

func (h *Handler) myRequests(w http.ResponseWriter, r *http.Request) error {
	role := commands.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = commands.RoleRequester
	}
	reqs, err := h.server.ListRequests(r.Context(), authn.UserID(r.Context()), role)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newRequestViews(reqs))
	return nil
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	entries, err := h.server.Leaderboard(r.Context(), limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newLeaderboardView(entries))
	return nil
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) error {
	msgs, err := h.server.ListMessages(r.Context(), r.PathValue("id"), authn.UserID(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newMessageViews(msgs))
	return nil
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) error {
	var body sendMessageBody
	if err := decode(w, r, &body); err != nil {
		return err
	}
	m, err := h.server.SendMessage(r.Context(), r.PathValue("id"), authn.UserID(r.Context()), body.Body)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, newMessageView(m))
	return nil
}

func (h *Handler) markMessagesRead(w http.ResponseWriter, r *http.Request) error {
	n, err := h.server.MarkMessagesRead(r.Context(), r.PathValue("id"), authn.UserID(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, countView{Count: n})
	return nil
}

func (h *Handler) countUnread(w http.ResponseWriter, r *http.Request) error {
	n, err := h.server.CountUnread(r.Context(), r.PathValue("id"), authn.UserID(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, countView{Count: n})
	return nil
}

func (h *Handler) joinChat(w http.ResponseWriter, r *http.Request) error {
	if err := h.server.JoinChat(r.Context(), r.PathValue("id"), authn.UserID(r.Context())); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) leaveChat(w http.ResponseWriter, r *http.Request) error {
	if err := h.server.LeaveChat(r.Context(), r.PathValue("id"), authn.UserID(r.Context())); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) inviteToCall(w http.ResponseWriter, r *http.Request) error {
	invite, err := h.server.InviteToCall(r.Context(), r.PathValue("id"), authn.UserID(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, invite)
	return nil
}

func (h *Handler) getRating(w http.ResponseWriter, r *http.Request) error {
	rating, err := h.server.GetRequestRating(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newRatingView(rating))
	return nil
}

func (h *Handler) rateRequest(w http.ResponseWriter, r *http.Request) error {
	var body rateBody
	if err := decode(w, r, &body); err != nil {
		return err
	}
	rating, err := h.server.RateRequest(r.Context(), commands.RateRequestInput{
		RequestID:   r.PathValue("id"),
		RequesterID: authn.UserID(r.Context()),
		Score:       body.Score,
		Comment:     body.Comment,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, newRatingView(rating))
	return nil
}

func (h *Handler) volunteerRatings(w http.ResponseWriter, r *http.Request) error {
	res, err := h.server.ListVolunteerRatings(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	view := volunteerRatingsView{Ratings: make([]ratingView, 0, len(res.Ratings)), Average: res.Average}
	for _, rating := range res.Ratings {
		view.Ratings = append(view.Ratings, newRatingView(rating))
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) error {
	p, err := h.server.GetProfile(r.Context(), authn.UserID(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newProfileView(p))
	return nil
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) error {
	var body profileBody
	if err := decode(w, r, &body); err != nil {
		return err
	}
	p, err := h.server.UpdateProfile(r.Context(), commands.UpdateProfileInput{
		UserID:      authn.UserID(r.Context()),
		DisplayName: body.DisplayName,
		AddressLine: body.AddressLine,
		City:        body.City,
		PostalCode:  body.PostalCode,
		Country:     body.Country,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newProfileView(p))
	return nil
}

func (h *Handler) refreshLocation(w http.ResponseWriter, r *http.Request) error {
	p, err := h.server.RefreshLocation(r.Context(), authn.UserID(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newProfileView(p))
	return nil
}

func (h *Handler) setVolunteer(w http.ResponseWriter, r *http.Request) error {
	var body volunteerBody
	if err := decode(w, r, &body); err != nil {
		return err
	}
	p, err := h.server.SetVolunteer(r.Context(), authn.UserID(r.Context()), body.Volunteer)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newProfileView(p))
	return nil
}
