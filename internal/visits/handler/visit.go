package handler

import (
	"brokerage/internal/visits/service"
	httputil "brokerage/pkg/http"
	"brokerage/pkg/logger"
	"brokerage/pkg/model"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type VisitHandler struct {
	service service.VisitService
	log     *logger.Logger
}

func NewVisitHandler(service service.VisitService, log *logger.Logger) *VisitHandler {
	return &VisitHandler{
		service: service,
		log:     log,
	}
}

func (h *VisitHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input model.CreateVisitInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	visit, err := h.service.Create(r.Context(), &input)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, visit); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *VisitHandler) ScheduleVisit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	customerID, err := httputil.ExtractCaller(r)
	if err != nil {
		h.writeError(w, "ScheduleVisit", err)
		return
	}

	var input model.ScheduleVisitInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		h.writeError(w, "ScheduleVisit", err)
		return
	}

	visit, err := h.service.ScheduleVisit(r.Context(), customerID, &input)
	if err != nil {
		h.writeError(w, "ScheduleVisit", err)
		return
	}

	if err := httputil.WriteCreated(w, visit); err != nil {
		h.log.Error("failed to write created response", "handler", "ScheduleVisit", "operation", "WriteCreated", "error", err)
	}
}

func (h *VisitHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, err := httputil.ExtractVisitFilter(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	visits, total, err := h.service.FindAll(r.Context(), filter)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, visits, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *VisitHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	visit, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", visit)
}

func (h *VisitHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.VisitUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	visit, err := h.service.Update(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	h.writeSuccess(w, "Update", visit)
}

func (h *VisitHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var input model.StatusInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	visit, err := h.service.UpdateStatus(r.Context(), ps.ByName("id"), input.Status)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	h.writeSuccess(w, "UpdateStatus", visit)
}

func (h *VisitHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	customerID, err := httputil.ExtractCaller(r)
	if err != nil {
		h.writeError(w, "UpdateSchedule", err)
		return
	}

	var input model.RescheduleInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		h.writeError(w, "UpdateSchedule", err)
		return
	}

	visit, err := h.service.UpdateSchedule(r.Context(), ps.ByName("id"), customerID, input.VisitDateTime)
	if err != nil {
		h.writeError(w, "UpdateSchedule", err)
		return
	}

	h.writeSuccess(w, "UpdateSchedule", visit)
}

func (h *VisitHandler) AssumeVisit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	brokerID, err := httputil.ExtractCaller(r)
	if err != nil {
		h.writeError(w, "AssumeVisit", err)
		return
	}

	visit, err := h.service.AssumeVisit(r.Context(), ps.ByName("id"), brokerID)
	if err != nil {
		h.writeError(w, "AssumeVisit", err)
		return
	}

	h.writeSuccess(w, "AssumeVisit", visit)
}

func (h *VisitHandler) CancelVisit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	customerID, err := httputil.ExtractCaller(r)
	if err != nil {
		h.writeError(w, "CancelVisit", err)
		return
	}

	visit, err := h.service.CancelVisit(r.Context(), ps.ByName("id"), customerID)
	if err != nil {
		h.writeError(w, "CancelVisit", err)
		return
	}

	h.writeSuccess(w, "CancelVisit", visit)
}

func (h *VisitHandler) Remove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Remove(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Remove", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *VisitHandler) GetByCustomer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	customerID, err := httputil.ParseInt64Param(ps.ByName("customerId"), "customer id")
	if err != nil {
		h.writeError(w, "GetByCustomer", err)
		return
	}

	filter, err := httputil.ExtractScopedVisitFilter(r)
	if err != nil {
		h.writeError(w, "GetByCustomer", err)
		return
	}

	visits, err := h.service.FindByCustomer(r.Context(), customerID, filter)
	if err != nil {
		h.writeError(w, "GetByCustomer", err)
		return
	}

	h.writeSuccess(w, "GetByCustomer", visits)
}

func (h *VisitHandler) GetByProperty(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	propertyID, err := httputil.ParseInt64Param(ps.ByName("propertyId"), "property id")
	if err != nil {
		h.writeError(w, "GetByProperty", err)
		return
	}

	filter, err := httputil.ExtractScopedVisitFilter(r)
	if err != nil {
		h.writeError(w, "GetByProperty", err)
		return
	}

	visits, err := h.service.FindByProperty(r.Context(), propertyID, filter)
	if err != nil {
		h.writeError(w, "GetByProperty", err)
		return
	}

	h.writeSuccess(w, "GetByProperty", visits)
}

func (h *VisitHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *VisitHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *VisitHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/visits", h.Create)
	router.GET("/api/v1/visits", h.GetAll)
	router.POST("/api/v1/visits/schedule", h.ScheduleVisit)
	router.GET("/api/v1/visits/id/:id", h.GetByID)
	router.PATCH("/api/v1/visits/id/:id", h.Update)
	router.DELETE("/api/v1/visits/id/:id", h.Remove)
	router.PATCH("/api/v1/visits/id/:id/status", h.UpdateStatus)
	router.PATCH("/api/v1/visits/id/:id/schedule", h.UpdateSchedule)
	router.POST("/api/v1/visits/id/:id/assume", h.AssumeVisit)
	router.POST("/api/v1/visits/id/:id/cancel", h.CancelVisit)
	router.GET("/api/v1/visits/customer/:customerId", h.GetByCustomer)
	router.GET("/api/v1/visits/property/:propertyId", h.GetByProperty)
}
