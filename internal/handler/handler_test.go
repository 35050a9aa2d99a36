package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/department-tree/internal/domain"
	"github.com/department-tree/internal/dto"
	"github.com/department-tree/internal/handler"
)

type mockDepartmentService struct {
	departments map[uuid.UUID]*domain.Department
	locations   map[uuid.UUID]bool
	failWith    error
}

func newMockDepartmentService() *mockDepartmentService {
	return &mockDepartmentService{
		departments: make(map[uuid.UUID]*domain.Department),
		locations:   make(map[uuid.UUID]bool),
	}
}

func (s *mockDepartmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest) (*domain.Department, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}

	identifier, err := domain.NewIdentifier(req.Identifier)
	if err != nil {
		return nil, domain.Errors{domain.ErrInvalidIdentifier}
	}
	for _, dept := range s.departments {
		if dept.Identifier == identifier {
			return nil, domain.ErrDuplicateIdentifier
		}
	}
	for _, id := range req.LocationIDs {
		if !s.locations[id] {
			return nil, domain.ErrLocationNotFound
		}
	}

	var parent *domain.Department
	if req.ParentID != nil {
		p, ok := s.departments[*req.ParentID]
		if !ok || !p.IsActive {
			return nil, domain.ErrParentNotFound
		}
		parent = p
	}

	dept, err := domain.NewDepartment(req.Name, identifier, parent, req.LocationIDs, req.PositionIDs, time.Now())
	if err != nil {
		return nil, err
	}
	s.departments[dept.ID] = dept
	return dept, nil
}

func (s *mockDepartmentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error) {
	if dept, ok := s.departments[id]; ok {
		return dept, nil
	}
	return nil, domain.ErrDepartmentNotFound
}

func (s *mockDepartmentService) Move(ctx context.Context, id uuid.UUID, req *dto.MoveDepartmentRequest) (*domain.Department, error) {
	dept, ok := s.departments[id]
	if !ok || !dept.IsActive {
		return nil, domain.ErrDepartmentNotFound
	}

	var parent *domain.Department
	if req.ParentID != nil {
		if *req.ParentID == id {
			return nil, domain.ErrSelfReference
		}
		p, ok := s.departments[*req.ParentID]
		if !ok || !p.IsActive {
			return nil, domain.ErrParentNotFound
		}
		if p.Path.IsDescendantOf(dept.Path) {
			return nil, domain.ErrCyclicMove
		}
		parent = p
	}

	if _, err := dept.SetParent(parent, time.Now()); err != nil {
		return nil, err
	}
	return dept, nil
}

func (s *mockDepartmentService) Delete(ctx context.Context, id uuid.UUID) error {
	dept, ok := s.departments[id]
	if !ok {
		return domain.ErrDepartmentNotFound
	}
	return dept.Delete(time.Now())
}

type mockCatalogService struct {
	deptService *mockDepartmentService
}

func (s *mockCatalogService) CreateLocation(ctx context.Context, req *dto.CreateLocationRequest) (*domain.Location, error) {
	loc := &domain.Location{
		ID:        uuid.New(),
		Name:      req.Name,
		Address:   req.Address,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	s.deptService.locations[loc.ID] = true
	return loc, nil
}

func (s *mockCatalogService) CreatePosition(ctx context.Context, req *dto.CreatePositionRequest) (*domain.Position, error) {
	return &domain.Position{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}, nil
}

type testServer struct {
	server      *httptest.Server
	deptService *mockDepartmentService
}

func setupTestServer(_ *testing.T) *testServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	deptService := newMockDepartmentService()
	catalogService := &mockCatalogService{deptService: deptService}

	router := handler.NewRouter(
		handler.NewDepartmentHandler(deptService, logger),
		handler.NewCatalogHandler(catalogService, logger),
		logger,
	)

	return &testServer{
		server:      httptest.NewServer(router.Setup()),
		deptService: deptService,
	}
}

func (ts *testServer) Close() {
	ts.server.Close()
}

func postJSON(url string, body map[string]any) (*http.Response, error) {
	data, _ := json.Marshal(body)
	return http.Post(url, "application/json", bytes.NewBuffer(data))
}

func patchJSON(url string, body map[string]any) (*http.Response, error) {
	data, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

func deleteRequest(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

func (ts *testServer) mustLocation(t *testing.T) string {
	t.Helper()
	resp, err := postJSON(ts.server.URL+"/locations/", map[string]any{"name": "Office", "address": "Main st. 1"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	var loc dto.LocationResponse
	json.NewDecoder(resp.Body).Decode(&loc)
	return loc.ID.String()
}

func (ts *testServer) mustDepartment(t *testing.T, identifier string, parentID *uuid.UUID) dto.DepartmentResponse {
	t.Helper()
	body := map[string]any{
		"name":         "Department " + identifier,
		"identifier":   identifier,
		"location_ids": []string{ts.mustLocation(t)},
	}
	if parentID != nil {
		body["parent_id"] = parentID.String()
	}

	resp, err := postJSON(ts.server.URL+"/departments/", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	var dept dto.DepartmentResponse
	json.NewDecoder(resp.Body).Decode(&dept)
	return dept
}

func decodeErrors(t *testing.T, resp *http.Response) dto.ErrorResponse {
	t.Helper()
	var result dto.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.server.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestMetrics(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestRequestID_IsPropagated(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	id := uuid.NewString()
	req, _ := http.NewRequest(http.MethodGet, ts.server.URL+"/health", nil)
	req.Header.Set("X-Request-ID", id)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != id {
		t.Errorf("expected request id %s, got %s", id, got)
	}
}

func TestCreateDepartment_Success(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	root := ts.mustDepartment(t, "Department1", nil)
	if root.Path != "department1" {
		t.Errorf("expected path 'department1', got '%s'", root.Path)
	}
	if root.Depth != 0 {
		t.Errorf("expected depth 0, got %d", root.Depth)
	}

	dev := ts.mustDepartment(t, "dev", &root.ID)
	backend := ts.mustDepartment(t, "backend", &dev.ID)
	if backend.Path != "department1.dev.backend" {
		t.Errorf("expected path 'department1.dev.backend', got '%s'", backend.Path)
	}
	if backend.Depth != 2 {
		t.Errorf("expected depth 2, got %d", backend.Depth)
	}
}

func TestCreateDepartment_MissingLocations(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := postJSON(ts.server.URL+"/departments/", map[string]any{"name": "Sales", "identifier": "sales"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestCreateDepartment_InvalidIdentifier(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := postJSON(ts.server.URL+"/departments/", map[string]any{
		"name":         "Sales",
		"identifier":   "sales-team",
		"location_ids": []string{ts.mustLocation(t)},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	result := decodeErrors(t, resp)
	if len(result.Errors) != 1 || result.Errors[0].Code != domain.ErrInvalidIdentifier.Code {
		t.Errorf("expected %s error, got %+v", domain.ErrInvalidIdentifier.Code, result.Errors)
	}
}

func TestCreateDepartment_DuplicateIdentifier(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	ts.mustDepartment(t, "sales", nil)

	resp, err := postJSON(ts.server.URL+"/departments/", map[string]any{
		"name":         "Sales again",
		"identifier":   "sales",
		"location_ids": []string{ts.mustLocation(t)},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected %d, got %d", http.StatusConflict, resp.StatusCode)
	}
}

func TestCreateDepartment_ParentNotFound(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := postJSON(ts.server.URL+"/departments/", map[string]any{
		"name":         "Child",
		"identifier":   "child",
		"parent_id":    uuid.NewString(),
		"location_ids": []string{ts.mustLocation(t)},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	result := decodeErrors(t, resp)
	if len(result.Errors) != 1 || result.Errors[0].Kind != string(domain.KindNotFound) {
		t.Errorf("expected not_found error, got %+v", result.Errors)
	}
}

func TestCreateDepartment_InvalidJSON(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.server.URL+"/departments/", "application/json", bytes.NewBuffer([]byte("invalid")))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestCreateDepartment_InternalErrorIsHidden(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	loc := ts.mustLocation(t)
	ts.deptService.failWith = domain.ErrPersistence.Wrap(os.ErrDeadlineExceeded)

	resp, err := postJSON(ts.server.URL+"/departments/", map[string]any{
		"name":         "Sales",
		"identifier":   "sales",
		"location_ids": []string{loc},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected %d, got %d", http.StatusInternalServerError, resp.StatusCode)
	}

	result := decodeErrors(t, resp)
	if result.Error != "internal server error" {
		t.Errorf("expected generic message, got '%s'", result.Error)
	}
}

func TestGetDepartment_Success(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	created := ts.mustDepartment(t, "sales", nil)

	resp, err := http.Get(ts.server.URL + "/departments/" + created.ID.String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var result dto.DepartmentResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Identifier != "sales" {
		t.Errorf("expected identifier 'sales', got '%s'", result.Identifier)
	}
}

func TestGetDepartment_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.server.URL + "/departments/" + uuid.NewString())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestGetDepartment_InvalidID(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.server.URL + "/departments/abc")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestMoveDepartment_Success(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	root := ts.mustDepartment(t, "department1", nil)
	other := ts.mustDepartment(t, "department2", nil)
	dev := ts.mustDepartment(t, "dev", &root.ID)

	resp, err := patchJSON(ts.server.URL+"/departments/"+dev.ID.String()+"/parent", map[string]any{"parent_id": other.ID.String()})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var result dto.DepartmentResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Path != "department2.dev" {
		t.Errorf("expected path 'department2.dev', got '%s'", result.Path)
	}
}

func TestMoveDepartment_ToRoot(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	root := ts.mustDepartment(t, "department1", nil)
	dev := ts.mustDepartment(t, "dev", &root.ID)

	resp, err := patchJSON(ts.server.URL+"/departments/"+dev.ID.String()+"/parent", map[string]any{"parent_id": nil})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var result dto.DepartmentResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.ParentID != nil {
		t.Errorf("expected no parent, got %v", result.ParentID)
	}
	if result.Depth != 0 {
		t.Errorf("expected depth 0, got %d", result.Depth)
	}
}

func TestMoveDepartment_SelfReference(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	dept := ts.mustDepartment(t, "sales", nil)

	resp, err := patchJSON(ts.server.URL+"/departments/"+dept.ID.String()+"/parent", map[string]any{"parent_id": dept.ID.String()})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestMoveDepartment_Cycle(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	root := ts.mustDepartment(t, "department1", nil)
	dev := ts.mustDepartment(t, "dev", &root.ID)
	backend := ts.mustDepartment(t, "backend", &dev.ID)

	resp, err := patchJSON(ts.server.URL+"/departments/"+root.ID.String()+"/parent", map[string]any{"parent_id": backend.ID.String()})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	result := decodeErrors(t, resp)
	if len(result.Errors) != 1 || result.Errors[0].Code != domain.ErrCyclicMove.Code {
		t.Errorf("expected %s error, got %+v", domain.ErrCyclicMove.Code, result.Errors)
	}
}

func TestMoveDepartment_WrongMethod(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	dept := ts.mustDepartment(t, "sales", nil)

	resp, err := postJSON(ts.server.URL+"/departments/"+dept.ID.String()+"/parent", map[string]any{})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}

func TestDeleteDepartment_Success(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	root := ts.mustDepartment(t, "department1", nil)

	resp, err := deleteRequest(ts.server.URL + "/departments/" + root.ID.String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected %d, got %d", http.StatusNoContent, resp.StatusCode)
	}

	resp, err = http.Get(ts.server.URL + "/departments/" + root.ID.String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var result dto.DepartmentResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.IsActive {
		t.Error("expected department to be inactive")
	}
	if result.Path != "deleted_department1" {
		t.Errorf("expected path 'deleted_department1', got '%s'", result.Path)
	}
	if result.DeletedAt == nil {
		t.Error("expected deleted_at to be set")
	}
}

func TestDeleteDepartment_Twice(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	dept := ts.mustDepartment(t, "sales", nil)

	resp, err := deleteRequest(ts.server.URL + "/departments/" + dept.ID.String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = deleteRequest(ts.server.URL + "/departments/" + dept.ID.String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestDeleteDepartment_UnderDeletedAncestor(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	root := ts.mustDepartment(t, "department1", nil)
	dev := ts.mustDepartment(t, "dev", &root.ID)
	ts.deptService.departments[dev.ID].Path = domain.Path("deleted_department1.dev")

	resp, err := deleteRequest(ts.server.URL + "/departments/" + dev.ID.String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
	result := decodeErrors(t, resp)
	if len(result.Errors) != 1 || result.Errors[0].Code != domain.ErrDeletedLineage.Code {
		t.Fatalf("expected %s error, got %+v", domain.ErrDeletedLineage.Code, result.Errors)
	}
	if !strings.Contains(result.Errors[0].Message, "move it to an active parent") {
		t.Errorf("expected message to suggest a move, got %q", result.Errors[0].Message)
	}
}

func TestDeleteDepartment_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := deleteRequest(ts.server.URL + "/departments/" + uuid.NewString())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestCreatePosition_Success(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := postJSON(ts.server.URL+"/positions/", map[string]any{"name": "Engineer", "description": "Writes code"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected %d, got %d", http.StatusCreated, resp.StatusCode)
	}

	var result dto.PositionResponse
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Name != "Engineer" {
		t.Errorf("expected name 'Engineer', got '%s'", result.Name)
	}
}

func TestCreateLocation_Validation(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := postJSON(ts.server.URL+"/locations/", map[string]any{"name": "HQ"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestLocations_MethodNotAllowed(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.server.URL + "/locations/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}
