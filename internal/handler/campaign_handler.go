package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"whatsdrip/internal/models"
	"whatsdrip/internal/service"
)

// Webhook request types
const (
	RequestStartTemplate  = "startTemplate"
	RequestRemoveTemplate = "removeTemplate"
)

// Enrollment is the campaign engine as seen by the HTTP layer
type Enrollment interface {
	StartCampaign(ctx context.Context, req *service.StartCampaignRequest) (*service.StartCampaignResult, error)
	CancelCampaign(ctx context.Context, companyID, contactID string) (*service.CancelCampaignResult, error)
	PreviewSchedule(ctx context.Context, req *service.PreviewScheduleRequest) (*service.PreviewScheduleResult, error)
}

// CampaignHandler handles follow-up campaign requests
type CampaignHandler struct {
	enrollment Enrollment
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(enrollment Enrollment) *CampaignHandler {
	return &CampaignHandler{
		enrollment: enrollment,
	}
}

// WebhookRequest is the inbound follow-up trigger. IDSubstring is the company ID.
type WebhookRequest struct {
	RequestType string `json:"requestType"`
	Phone       string `json:"phone"`
	FirstName   string `json:"first_name"`
	PhoneIndex  int    `json:"phoneIndex"`
	TemplateID  string `json:"templateId"`
	IDSubstring string `json:"idSubstring"`
}

// WebhookResponse wraps the outcome of either request type
type WebhookResponse struct {
	RequestType string                        `json:"requestType"`
	Started     *service.StartCampaignResult  `json:"started,omitempty"`
	Cancelled   *service.CancelCampaignResult `json:"cancelled,omitempty"`
}

// Webhook handles POST /api/followup/webhook
func (h *CampaignHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is empty")
			return
		}
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if strings.TrimSpace(req.IDSubstring) == "" {
		WriteValidationError(w, "idSubstring is required")
		return
	}

	log := zerolog.Ctx(r.Context()).With().
		Str("request_type", req.RequestType).
		Str("company_id", req.IDSubstring).
		Logger()

	switch req.RequestType {
	case RequestStartTemplate:
		result, err := h.enrollment.StartCampaign(r.Context(), &service.StartCampaignRequest{
			CompanyID:  req.IDSubstring,
			TemplateID: req.TemplateID,
			Phone:      req.Phone,
			FirstName:  req.FirstName,
			PhoneIndex: req.PhoneIndex,
		})
		if err != nil {
			if service.IsClientError(err) {
				log.Info().Err(err).Msg("campaign start rejected")
			}
			HandleServiceError(w, r, err)
			return
		}
		WriteOK(w, WebhookResponse{RequestType: req.RequestType, Started: result})

	case RequestRemoveTemplate:
		if models.NormalizePhone(req.Phone) == "" {
			WriteValidationError(w, "phone is required")
			return
		}
		result, err := h.enrollment.CancelCampaign(r.Context(), req.IDSubstring, models.ContactID(req.IDSubstring, req.Phone))
		if err != nil {
			HandleServiceError(w, r, err)
			return
		}
		WriteOK(w, WebhookResponse{RequestType: req.RequestType, Cancelled: result})

	default:
		WriteValidationError(w, "requestType must be 'startTemplate' or 'removeTemplate'")
	}
}

// CancelCampaign handles DELETE /api/companies/{companyId}/contacts/{contactId}/campaign
func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	result, err := h.enrollment.CancelCampaign(r.Context(), vars["companyId"], vars["contactId"])
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteOK(w, result)
}

// Preview handles GET /api/companies/{companyId}/templates/{templateId}/preview
// It plans the template for ?phone=&first_name= without scheduling anything.
func (h *CampaignHandler) Preview(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	query := r.URL.Query()

	result, err := h.enrollment.PreviewSchedule(r.Context(), &service.PreviewScheduleRequest{
		CompanyID:  vars["companyId"],
		TemplateID: vars["templateId"],
		Phone:      query.Get("phone"),
		FirstName:  query.Get("first_name"),
	})
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteOK(w, result)
}
