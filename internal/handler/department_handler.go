package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/department-tree/internal/domain"
	"github.com/department-tree/internal/dto"
	"github.com/department-tree/internal/service"
)

type DepartmentHandler struct {
	deptService service.DepartmentService
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewDepartmentHandler(deptService service.DepartmentService, logger *slog.Logger) *DepartmentHandler {
	return &DepartmentHandler{
		deptService: deptService,
		validator:   validator.New(),
		logger:      logger,
	}
}

func (h *DepartmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	dept, err := h.deptService.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, toDepartmentResponse(dept))
}

func (h *DepartmentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := extractID(r, "/departments/")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid department id", err.Error())
		return
	}

	dept, err := h.deptService.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, toDepartmentResponse(dept))
}

func (h *DepartmentHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := extractID(r, "/departments/")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid department id", err.Error())
		return
	}

	var req dto.MoveDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	dept, err := h.deptService.Move(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, toDepartmentResponse(dept))
}

func (h *DepartmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := extractID(r, "/departments/")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid department id", err.Error())
		return
	}

	if err := h.deptService.Delete(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// extractID достаёт первый сегмент пути после префикса
func extractID(r *http.Request, prefix string) (uuid.UUID, error) {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	path = strings.Trim(path, "/")

	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		return uuid.Nil, errors.New("id is required")
	}

	return uuid.Parse(parts[0])
}

func toDepartmentResponse(dept *domain.Department) dto.DepartmentResponse {
	return dto.DepartmentResponse{
		ID:         dept.ID,
		Name:       dept.Name,
		Identifier: dept.Identifier.String(),
		ParentID:   dept.ParentID,
		Path:       dept.Path.String(),
		Depth:      dept.Depth,
		IsActive:   dept.IsActive,
		CreatedAt:  dept.CreatedAt,
		UpdatedAt:  dept.UpdatedAt,
		DeletedAt:  dept.DeletedAt,
	}
}

func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	errs := domain.AsErrors(err)

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		respondErrors(w, logger, http.StatusNotFound, errs)
	case domain.KindValidation:
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			status = http.StatusConflict
		}
		respondErrors(w, logger, status, errs)
	default:
		logger.Error("internal error", slog.Any("error", err), slog.Any("cause", errors.Unwrap(err)))
		respondErrors(w, logger, http.StatusInternalServerError, domain.Errors{
			{Kind: domain.KindFailure, Code: errs[0].Code, Message: "internal server error"},
		})
	}
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondErrors(w http.ResponseWriter, logger *slog.Logger, status int, errs domain.Errors) {
	resp := dto.ErrorResponse{Errors: make([]dto.ErrorDetail, 0, len(errs))}
	for _, e := range errs {
		resp.Errors = append(resp.Errors, dto.ErrorDetail{
			Kind:    string(e.Kind),
			Code:    e.Code,
			Message: e.Message,
		})
	}
	if len(errs) > 0 {
		resp.Error = errs[0].Message
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode error response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, logger *slog.Logger, status int, errMsg, details string) {
	w.WriteHeader(status)
	resp := dto.ErrorResponse{Error: errMsg}
	if details != "" {
		resp.Message = details
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode error response", slog.Any("error", err))
	}
}
