package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/evanmaskanazi/socialworkboard/internal/repo"
	"github.com/evanmaskanazi/socialworkboard/internal/report"
	"github.com/evanmaskanazi/socialworkboard/internal/service"

	"github.com/go-chi/chi/v5"
)

type createClientRequest struct {
	Email              string   `json:"email"`
	Password           string   `json:"password"`
	TrackingCategories []int    `json:"tracking_categories"`
	InitialGoals       []string `json:"initial_goals"`
}

type goalRequest struct {
	ClientID  string    `json:"client_id"`
	GoalText  string    `json:"goal_text"`
	WeekStart *FlexDate `json:"week_start"`
}

type noteRequest struct {
	ClientID  string `json:"client_id"`
	NoteType  string `json:"note_type"`
	Content   string `json:"content"`
	IsMission bool   `json:"is_mission"`
}

type emailReportRequest struct {
	Recipient string `json:"recipient"`
}

func (a *API) handleTherapistDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := a.Service.TherapistDashboard(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) handleListClients(w http.ResponseWriter, r *http.Request) {
	filter := repo.ClientFilter{
		Status: r.URL.Query().Get("status"),
		SortBy: r.URL.Query().Get("sort_by"),
	}
	clients, err := a.Service.ListClients(r.Context(), userID(r), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients, "total": len(clients)})
}

func (a *API) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := a.Service.CreateClient(r.Context(), userID(r), service.CreateClientInput{
		Email:        req.Email,
		Password:     req.Password,
		CategoryIDs:  req.TrackingCategories,
		InitialGoals: req.InitialGoals,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleClientDetails(w http.ResponseWriter, r *http.Request) {
	details, err := a.Service.ClientDetails(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *API) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	goal, err := a.Service.AddGoal(r.Context(), userID(r), req.ClientID, req.GoalText, req.WeekStart.ToTimePtr())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (a *API) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := a.Service.AddNote(r.Context(), userID(r), req.ClientID, service.NoteInput{
		Type:      req.NoteType,
		Content:   req.Content,
		IsMission: req.IsMission,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (a *API) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	file, err := a.Service.GenerateReport(r.Context(), userID(r), chi.URLParam(r, "clientID"), chi.URLParam(r, "week"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

func (a *API) handleEmailReport(w http.ResponseWriter, r *http.Request) {
	var req emailReportRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	queued, err := a.Service.EmailReport(r.Context(), userID(r), chi.URLParam(r, "clientID"), chi.URLParam(r, "week"), req.Recipient)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if queued {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
