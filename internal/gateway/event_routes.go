package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"whatado/event-service/internal/handler"
	"whatado/event-service/internal/models"
	"whatado/event-service/pkg/auth"
)

type eventRoutes struct {
	client *handler.EventClient
}

func pathID(r *http.Request, name string) uint64 {
	// the route pattern guarantees digits
	id, _ := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	return id
}

// callerID returns the authenticated user, or the fallback supplied by the
// client when the gateway runs without authentication
func callerID(r *http.Request, fallback uint64) uint64 {
	if u, err := auth.GetUserFromContext(r.Context()); err == nil {
		return u.UserID
	}
	return fallback
}

func queryUint(r *http.Request, key string) (uint64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp", key)
	}
	return t, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func (h *eventRoutes) feedRequest(r *http.Request) (*handler.FeedRequest, error) {
	viewerID, err := queryUint(r, "viewer_id")
	if err != nil {
		return nil, err
	}
	start, err := queryTime(r, "start")
	if err != nil {
		return nil, err
	}
	end, err := queryTime(r, "end")
	if err != nil {
		return nil, err
	}
	take, err := queryInt(r, "take")
	if err != nil {
		return nil, err
	}
	skip, err := queryInt(r, "skip")
	if err != nil {
		return nil, err
	}
	return &handler.FeedRequest{
		ViewerID: callerID(r, viewerID),
		Start:    start,
		End:      end,
		Take:     take,
		Skip:     skip,
		Sort:     r.URL.Query().Get("sort"),
	}, nil
}

func (h *eventRoutes) primaryFeed(w http.ResponseWriter, r *http.Request) {
	req, err := h.feedRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.client.PrimaryFeed(r.Context(), req)
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *eventRoutes) otherFeed(w http.ResponseWriter, r *http.Request) {
	req, err := h.feedRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.client.OtherFeed(r.Context(), req)
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *eventRoutes) suggestedFeed(w http.ResponseWriter, r *http.Request) {
	viewerID, err := queryUint(r, "viewer_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.client.SuggestedFeed(r.Context(), &handler.ViewerRequest{ViewerID: callerID(r, viewerID)})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *eventRoutes) myEvents(w http.ResponseWriter, r *http.Request) {
	viewerID, err := queryUint(r, "viewer_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.client.MyEvents(r.Context(), &handler.ViewerRequest{ViewerID: callerID(r, viewerID)})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *eventRoutes) flaggedEvents(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.FlaggedEvents(r.Context(), &handler.Empty{})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *eventRoutes) getEvent(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.GetEvent(r.Context(), &handler.EventRequest{EventID: pathID(r, "id")})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *eventRoutes) createEvent(w http.ResponseWriter, r *http.Request) {
	var in models.CreateEventInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.CreatorID = callerID(r, in.CreatorID)
	resp, err := h.client.CreateEvent(r.Context(), &in)
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *eventRoutes) updateEvent(w http.ResponseWriter, r *http.Request) {
	var u models.EventUpdate
	if err := decodeBody(r, &u); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.client.UpdateEvent(r.Context(), &handler.UpdateEventRequest{EventID: pathID(r, "id"), Update: u})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *eventRoutes) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if _, err := h.client.DeleteEvent(r.Context(), &handler.EventRequest{EventID: pathID(r, "id")}); err != nil {
		writeGRPCError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *eventRoutes) flagEvent(w http.ResponseWriter, r *http.Request) {
	if _, err := h.client.FlagEvent(r.Context(), &handler.EventRequest{EventID: pathID(r, "id")}); err != nil {
		writeGRPCError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userBody struct {
	UserID uint64 `json:"user_id"`
}

func (h *eventRoutes) invite(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.client.Invite(r.Context(), &handler.AttendanceRequest{EventID: pathID(r, "id"), UserID: body.UserID})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *eventRoutes) uninvite(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.Uninvite(r.Context(), &handler.AttendanceRequest{EventID: pathID(r, "id"), UserID: pathID(r, "userId")})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *eventRoutes) addWannago(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	resp, err := h.client.AddWannago(r.Context(), &handler.AttendanceRequest{
		EventID: pathID(r, "id"),
		UserID:  callerID(r, body.UserID),
	})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *eventRoutes) updateWannago(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Declined *bool `json:"declined"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Declined == nil {
		writeError(w, http.StatusBadRequest, "declined is required")
		return
	}
	_, err := h.client.UpdateWannago(r.Context(), &handler.UpdateWannagoRequest{WannagoID: pathID(r, "id"), Declined: *body.Declined})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *eventRoutes) deleteWannago(w http.ResponseWriter, r *http.Request) {
	if _, err := h.client.DeleteWannago(r.Context(), &handler.WannagoRequest{WannagoID: pathID(r, "id")}); err != nil {
		writeGRPCError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
