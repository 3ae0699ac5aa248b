package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/certforge/pkg/blob"
	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/eligibility"
	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/orchestrator"
	"github.com/matzehuels/certforge/pkg/pipeline"
	"github.com/matzehuels/certforge/pkg/render/scene"
)

type generateRequest struct {
	Participant certificate.Participant `json:"participant"`
	Event       certificate.Event       `json:"event"`
	Attestation eligibility.Attestation `json:"attestation"`
	// Layout is a raw layout config. Omitted uses the server default.
	Layout map[string]any `json:"layout,omitempty"`
}

type generateResponse struct {
	Certificate *certificate.Certificate `json:"certificate"`
	Duplicate   bool                     `json:"duplicate"`
	Degraded    []string                 `json:"degraded,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.orch.Generate(r.Context(), orchestratorRequest(req, s.layoutFor(req.Layout)))
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, generateResponse{
		Certificate: res.Certificate,
		Duplicate:   res.Duplicate,
		Degraded:    errorStrings(res.Degraded),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("event")
	if eventID == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "event query parameter is required"))
		return
	}
	c, err := s.orch.Lookup(r.Context(), eventID, chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	certs, err := s.orch.List(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":     eventID,
		"certificates": certs,
	})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	if err := errors.ValidatePath(ref); err != nil {
		writeError(w, err)
		return
	}
	data, err := s.orch.Artifact(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeBytes(w, blob.ContentType(ref), data)
}

type previewRequest struct {
	ParticipantName string            `json:"participant_name"`
	Number          string            `json:"certificate_number"`
	Event           certificate.Event `json:"event"`
	Layout          map[string]any    `json:"layout,omitempty"`
	Width           int               `json:"width,omitempty"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if err := pipeline.ValidateFormat(format); err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidFormat, "%s", err.Error()))
		return
	}
	var req previewRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	width := req.Width
	if width <= 0 {
		width = s.width
	}
	res, err := s.runner.Execute(r.Context(), s.layoutFor(req.Layout), scene.Data{
		ParticipantName: req.ParticipantName,
		Number:          req.Number,
		Vars:            varsFor(req.Event),
	}, pipeline.Options{
		Formats: []string{format},
		Width:   width,
		Cached:  true,
		Logger:  s.logger,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("X-Certforge-Degraded", strconv.Itoa(len(res.Degraded)))
	writeBytes(w, blob.ContentType("preview."+format), res.Artifacts[format])
}

func (s *Server) layoutFor(raw map[string]any) layout.Model {
	if raw == nil {
		return s.layout
	}
	return layout.Resolve(raw)
}

func varsFor(ev certificate.Event) layout.Vars {
	return layout.Vars{
		EventName: ev.Title,
		EventDate: ev.FormattedDate(),
		Venue:     ev.Venue,
	}
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	msg := errors.UserMessage(err)
	if code == errors.ErrCodeInternal {
		msg = fmt.Sprintf("internal error: %s", msg)
	}
	writeJSON(w, statusFor(code), map[string]errorBody{
		"error": {Code: code, Message: msg},
	})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeNotEligible:
		return http.StatusForbidden
	case errors.ErrCodeAllocationConflict, errors.ErrCodeDuplicateCertificate:
		return http.StatusConflict
	case errors.ErrCodeUploadFailure, errors.ErrCodeNetwork:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func orchestratorRequest(req generateRequest, m layout.Model) orchestrator.Request {
	return orchestrator.Request{
		Participant: req.Participant,
		Event:       req.Event,
		Attestation: req.Attestation,
		Layout:      m,
	}
}
