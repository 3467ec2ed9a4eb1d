package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/service"
)

const maxBodyBytes = 1 << 20

// FlexDate accepts YYYY-MM-DD from <input type="date"> as well as RFC3339.
type FlexDate struct {
	time.Time
}

func (fd *FlexDate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		fd.Time = t
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		fd.Time = t
		return nil
	}
	return errors.New("invalid date format")
}

func (fd *FlexDate) ToTimePtr() *time.Time {
	if fd == nil || fd.Time.IsZero() {
		return nil
	}
	t := fd.Time
	return &t
}

// flexValue is a form value sent either as a JSON number or a string.
// null and "" both mean no value.
type flexValue string

func (v *flexValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case string(b) == "null":
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = flexValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*v = flexValue(n.String())
	}
	return nil
}

type registerRequest struct {
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	Role            string   `json:"role"`
	Name            string   `json:"name"`
	LicenseNumber   string   `json:"license_number"`
	Organization    string   `json:"organization"`
	Specializations []string `json:"specializations"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password required")
		return
	}
	session, err := a.Service.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		Role:            req.Role,
		Name:            req.Name,
		LicenseNumber:   req.LicenseNumber,
		Organization:    req.Organization,
		Specializations: req.Specializations,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := a.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := a.Service.Me(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid payload")
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints where the body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid payload")
		return false
	}
	return true
}
