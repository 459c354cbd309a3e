package consultation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medical-intake-agent/internal/intake"
)

const duplicateMessage = "Your previous message is still being processed, please wait."

type Handler struct {
	svc    Service
	logger zerolog.Logger
}

func NewHandler(svc Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type CreateConsultationRequest struct {
	PatientID string `json:"patient_id"`
	Mode      string `json:"mode"`
}

type SendMessageRequest struct {
	Text      string   `json:"text"`
	ImageURLs []string `json:"image_urls"`
	Role      string   `json:"role"`
	// StageOverride is a clinician tool for pinning the stage of a single turn.
	StageOverride string `json:"stage_override"`
}

type MessageResponse struct {
	ConsultationID    string `json:"consultation_id"`
	Reply             string `json:"reply"`
	Stage             string `json:"stage"`
	Completeness      int    `json:"completeness"`
	ReadyForHandoff   bool   `json:"ready_for_handoff"`
	TerminationReason string `json:"termination_reason,omitempty"`
	Fallback          bool   `json:"fallback"`
}

type ConsultationResponse struct {
	ID              string                `json:"id"`
	PatientID       string                `json:"patient_id"`
	Mode            string                `json:"mode"`
	Stage           string                `json:"stage"`
	Completeness    int                   `json:"completeness"`
	ReadyForHandoff bool                  `json:"ready_for_handoff"`
	Record          intake.ClinicalRecord `json:"record"`
	Messages        []intake.Message      `json:"messages"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func toResponse(c *Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:              c.ID.String(),
		PatientID:       c.PatientID.String(),
		Mode:            string(c.Mode),
		Stage:           c.Stage().String(),
		Completeness:    c.Completeness(),
		ReadyForHandoff: c.ReadyForHandoff(),
		Record:          c.Record,
		Messages:        c.Messages,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func (h *Handler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	var req CreateConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	pid, err := uuid.Parse(req.PatientID)
	if err != nil {
		// Anonymous intake: the patient is linked when they book.
		pid = uuid.New()
	}

	mode := intake.Mode(req.Mode)
	switch mode {
	case "", intake.ModeIntake, intake.ModeConsult:
	default:
		http.Error(w, "Invalid mode", http.StatusBadRequest)
		return
	}

	c, err := h.svc.CreateConsultation(r.Context(), pid, mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetConsultation(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	in := Inbound{
		Text:      req.Text,
		ImageURLs: req.ImageURLs,
		Role:      intake.Role(req.Role),
	}
	switch in.Role {
	case "", intake.RolePatient, intake.RoleClinician:
	default:
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}
	if req.StageOverride != "" {
		stage, err := intake.ParseStage(req.StageOverride)
		if err != nil {
			http.Error(w, "Invalid stage_override", http.StatusBadRequest)
			return
		}
		in.StageOverride = &stage
	}

	out, err := h.svc.ProcessMessage(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		ConsultationID:    id.String(),
		Reply:             out.Reply,
		Stage:             out.Stage.String(),
		Completeness:      out.Completeness,
		ReadyForHandoff:   out.ReadyForHandoff,
		TerminationReason: string(out.TerminationReason),
		Fallback:          out.Fallback,
	})
}

func (h *Handler) ResetConsultation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.ResetConsultation(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid consultation ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Consultation not found", http.StatusNotFound)
	case errors.Is(err, ErrDuplicateSubmission):
		http.Error(w, duplicateMessage, http.StatusTooManyRequests)
	case errors.Is(err, ErrInvalidMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/consultations", func(r chi.Router) {
		r.Post("/", h.CreateConsultation)
		r.Get("/{id}", h.GetConsultation)
		r.Post("/{id}/messages", h.SendMessage)
		r.Post("/{id}/reset", h.ResetConsultation)
	})
}
