package http

import (
	"net/http"

	"github.com/evanmaskanazi/socialworkboard/internal/service"

	"github.com/go-chi/chi/v5"
)

type checkinRequest struct {
	Date              string               `json:"date"`
	EmotionalValue    flexValue            `json:"emotional_value"`
	EmotionalNotes    string               `json:"emotional_notes"`
	MedicationValue   flexValue            `json:"medication_value"`
	MedicationNotes   string               `json:"medication_notes"`
	ActivityValue     flexValue            `json:"activity_value"`
	ActivityNotes     string               `json:"activity_notes"`
	CategoryResponses map[string]flexValue `json:"category_responses"`
	GoalCompletions   map[string]bool      `json:"goal_completions"`
}

func (req checkinRequest) input() service.CheckinInput {
	in := service.CheckinInput{
		Date:       req.Date,
		Emotional:  service.RatingInput{Value: string(req.EmotionalValue), Notes: req.EmotionalNotes},
		Medication: service.RatingInput{Value: string(req.MedicationValue), Notes: req.MedicationNotes},
		Activity:   service.RatingInput{Value: string(req.ActivityValue), Notes: req.ActivityNotes},
		Categories: make(map[string]string, len(req.CategoryResponses)),
		Goals:      req.GoalCompletions,
	}
	for k, v := range req.CategoryResponses {
		in.Categories[k] = string(v)
	}
	return in
}

type reminderRequest struct {
	ReminderType string `json:"reminder_type"`
	ReminderTime string `json:"reminder_time"`
}

func (a *API) handleClientDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := a.Service.ClientDashboard(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) handleSubmitCheckin(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	checkin, err := a.Service.SubmitCheckin(r.Context(), userID(r), req.input())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Check-in saved successfully", "checkin": checkin})
}

func (a *API) handleClientProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := a.Service.ClientProgress(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (a *API) handleCompleteMission(w http.ResponseWriter, r *http.Request) {
	note, err := a.Service.CompleteMission(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (a *API) handleListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := a.Service.ListReminders(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

func (a *API) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reminder, err := a.Service.AddReminder(r.Context(), userID(r), req.ReminderType, req.ReminderTime)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reminder)
}

func (a *API) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := a.Service.RemoveReminder(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
