package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/entity"
	"repair-job-service/internal/service"
)

type Handler struct {
	jobs     *service.JobService
	ledger   *service.PartLedger
	audit    *service.AuditTrail
	validate *validator.Validate
	log      *zap.Logger
}

func NewHandler(jobs *service.JobService, ledger *service.PartLedger, audit *service.AuditTrail, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		jobs:     jobs,
		ledger:   ledger,
		audit:    audit,
		validate: validator.New(),
		log:      log,
	}
}

// decode reads a JSON body into dst and runs its validate tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, apperr.KindValidation, "invalid json: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeErr(w, http.StatusBadRequest, apperr.KindValidation, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (entity.Actor, bool) {
	a, ok := ActorFrom(r.Context())
	if !ok {
		unauthenticated(w, "missing caller")
	}
	return a, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErr(w, http.StatusBadRequest, apperr.KindValidation, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalID(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

type createJobDTO struct {
	CustomerID         string     `json:"customer_id" validate:"required,uuid"`
	MinerModelID       string     `json:"miner_model_id" validate:"required,uuid"`
	ProblemDescription string     `json:"problem_description" validate:"required,max=4000"`
	Priority           *int       `json:"priority,omitempty" validate:"omitempty,min=0,max=2"` // 0=normal,1=urgent,2=critical (nil => 0)
	SerialNumber       string     `json:"serial_number,omitempty" validate:"max=128"`
	TechnicianID       *string    `json:"technician_id,omitempty" validate:"omitempty,uuid"`
	WarrantyProfileID  *string    `json:"warranty_profile_id,omitempty" validate:"omitempty,uuid"`
	ReceivedDate       *time.Time `json:"received_date,omitempty"`
	EstimatedDoneDate  *time.Time `json:"estimated_done_date,omitempty"`
}

// CreateJob godoc
// @Summary Register a machine for repair
// @Description Creates a job in RECEIVED with the next RJ<year>-<NNNN> number and logs CREATE_JOB.
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createJobDTO true "job intake (priority: 0=normal,1=urgent,2=critical)"
// @Success 201 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto createJobDTO
	if !h.decode(w, r, &dto) {
		return
	}

	req := service.CreateJobRequest{
		CustomerID:         uuid.MustParse(dto.CustomerID),
		MinerModelID:       uuid.MustParse(dto.MinerModelID),
		ProblemDescription: dto.ProblemDescription,
		SerialNumber:       dto.SerialNumber,
		ReceivedDate:       dto.ReceivedDate,
		EstimatedDoneDate:  dto.EstimatedDoneDate,
	}
	if dto.Priority != nil {
		req.Priority = entity.Priority(*dto.Priority)
	}
	var err error
	if req.TechnicianID, err = parseOptionalID(dto.TechnicianID); err != nil {
		writeErr(w, http.StatusBadRequest, apperr.KindValidation, "invalid technician_id")
		return
	}
	if req.WarrantyProfileID, err = parseOptionalID(dto.WarrantyProfileID); err != nil {
		writeErr(w, http.StatusBadRequest, apperr.KindValidation, "invalid warranty_profile_id")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type updateJobDTO struct {
	Priority           *int       `json:"priority,omitempty" validate:"omitempty,min=0,max=2"`
	EstimatedDoneDate  *time.Time `json:"estimated_done_date,omitempty"`
	ProblemDescription *string    `json:"problem_description,omitempty" validate:"omitempty,max=4000"`
}

// UpdateJob godoc
// @Summary Edit job details
// @Description Changes priority, estimated done date or problem description. Logs UPDATE_JOB.
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Param request body updateJobDTO true "fields to change"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [patch]
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var dto updateJobDTO
	if !h.decode(w, r, &dto) {
		return
	}

	req := service.UpdateJobRequest{
		EstimatedDoneDate:  dto.EstimatedDoneDate,
		ProblemDescription: dto.ProblemDescription,
	}
	if dto.Priority != nil {
		p := entity.Priority(*dto.Priority)
		req.Priority = &p
	}

	job, err := h.jobs.UpdateJob(r.Context(), actor, id, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// DeleteJob godoc
// @Summary Delete a job
// @Description Removes the job with its parts, activity, repair records and images. Refused while quotations or payments exist.
// @Tags jobs
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Success 204
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id} [delete]
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.jobs.DeleteJob(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changeStatusDTO struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note,omitempty" validate:"max=1000"`
}

// ChangeStatus godoc
// @Summary Move a job to another status
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Param request body changeStatusDTO true "target status and optional note"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/status [post]
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var dto changeStatusDTO
	if !h.decode(w, r, &dto) {
		return
	}

	status := entity.JobStatus(strings.ToUpper(strings.TrimSpace(dto.Status)))
	job, err := h.jobs.ChangeStatus(r.Context(), actor, id, status, dto.Note)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type assignTechnicianDTO struct {
	TechnicianID string `json:"technician_id" validate:"required,uuid"`
	Note         string `json:"note,omitempty" validate:"max=1000"`
}

// AssignTechnician godoc
// @Summary Assign or reassign the job's technician
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Param request body assignTechnicianDTO true "technician user id"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/technician [post]
func (h *Handler) AssignTechnician(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var dto assignTechnicianDTO
	if !h.decode(w, r, &dto) {
		return
	}

	job, err := h.jobs.AssignTechnician(r.Context(), actor, id, uuid.MustParse(dto.TechnicianID), dto.Note)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type withdrawPartDTO struct {
	PartID    string           `json:"part_id" validate:"required,uuid"`
	Quantity  int              `json:"quantity" validate:"required,min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty" swaggertype:"string"`
	Notes     string           `json:"notes,omitempty" validate:"max=1000"`
}

// WithdrawPart godoc
// @Summary Withdraw a part from stock for the job
// @Description Decrements stock and records the JobPart atomically. 409 insufficient_stock when stock is short.
// @Tags parts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Param request body withdrawPartDTO true "part and quantity"
// @Success 201 {object} entity.JobPart
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/parts [post]
func (h *Handler) WithdrawPart(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var dto withdrawPartDTO
	if !h.decode(w, r, &dto) {
		return
	}

	jp, err := h.ledger.Withdraw(r.Context(), actor, service.WithdrawRequest{
		JobID:     id,
		PartID:    uuid.MustParse(dto.PartID),
		Quantity:  dto.Quantity,
		UnitPrice: dto.UnitPrice,
		Notes:     dto.Notes,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, jp)
}

// ListJobParts godoc
// @Summary List parts withdrawn for the job
// @Tags parts
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Success 200 {array} entity.JobPart
// @Failure 404 {object} apiError
// @Router /jobs/{id}/parts [get]
func (h *Handler) ListJobParts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	parts, err := h.ledger.ListJobParts(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if parts == nil {
		parts = []entity.JobPart{}
	}
	writeJSON(w, http.StatusOK, parts)
}

// ReturnPart godoc
// @Summary Return a withdrawn part to stock
// @Tags parts
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Param jobPartId path string true "job part id (uuid)"
// @Success 204
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/parts/{jobPartId} [delete]
func (h *Handler) ReturnPart(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	jobPartID, ok := pathID(w, r, "jobPartId")
	if !ok {
		return
	}
	if err := h.ledger.Return(r.Context(), actor, id, jobPartID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type repairRecordDTO struct {
	Description string `json:"description" validate:"required,max=4000"`
}

// AddRepairRecord godoc
// @Summary Add a technician's repair note
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Param request body repairRecordDTO true "what was done"
// @Success 201 {object} entity.RepairRecord
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/repair-records [post]
func (h *Handler) AddRepairRecord(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var dto repairRecordDTO
	if !h.decode(w, r, &dto) {
		return
	}
	rec, err := h.jobs.AddRepairRecord(r.Context(), actor, id, dto.Description)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type attachImageDTO struct {
	StorageKey string `json:"storage_key" validate:"required,max=512"`
	Caption    string `json:"caption,omitempty" validate:"max=500"`
}

// AttachImage godoc
// @Summary Attach an uploaded image to the job
// @Tags images
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Param request body attachImageDTO true "storage key of the uploaded file"
// @Success 201 {object} entity.JobImage
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/images [post]
func (h *Handler) AttachImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var dto attachImageDTO
	if !h.decode(w, r, &dto) {
		return
	}
	img, err := h.jobs.AttachImage(r.Context(), actor, id, dto.StorageKey, dto.Caption)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// DeleteImage godoc
// @Summary Remove an image from the job
// @Tags images
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Param imageId path string true "image id (uuid)"
// @Success 204
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/images/{imageId} [delete]
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "imageId")
	if !ok {
		return
	}
	if err := h.jobs.DeleteImage(r.Context(), actor, id, imageID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListActivity godoc
// @Summary Job activity log, newest first
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "job id (uuid)"
// @Param limit query int false "page size (default 50, max 200)"
// @Param offset query int false "entries to skip"
// @Success 200 {array} entity.ActivityLog
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/activity [get]
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeErr(w, http.StatusBadRequest, apperr.KindValidation, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeErr(w, http.StatusBadRequest, apperr.KindValidation, "invalid offset")
		return
	}

	logs, err := h.audit.ListActivity(r.Context(), id, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if logs == nil {
		logs = []entity.ActivityLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
