package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/core/service"
	"github.com/rl1809/vending-machine/internal/port"
)

const (
	statusOK    = "ok"
	statusError = "error"

	readyTimeout = 3 * time.Second
)

type HTTPHandler struct {
	vending *service.VendingService
	checks  map[string]port.HealthChecker
}

type PurchaseHTTPRequest struct {
	ItemName string `json:"item_name"`
	UserID   string `json:"user_id"`
}

type PurchaseHTTPResponse struct {
	Status   string        `json:"status"`
	Message  string        `json:"message"`
	NewStock *int          `json:"new_stock,omitempty"`
	Price    json.Number   `json:"price,omitempty"`
	Dispatch *DispatchJSON `json:"dispatch,omitempty"`
}

type DispatchJSON struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type CheckUserHTTPRequest struct {
	UserID string `json:"userId"`
}

type CheckUserHTTPResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Registered bool   `json:"registered"`
	Name       string `json:"name,omitempty"`
}

type RegisterHTTPRequest struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Grade     string `json:"grade"`
	UserID    string `json:"userId"`
}

type MessageHTTPResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ItemJSON struct {
	Name    string      `json:"name"`
	Stock   int         `json:"stock"`
	Price   json.Number `json:"price"`
	Shelf   string      `json:"shelf"`
	Address string      `json:"address"`
}

type StockHTTPResponse struct {
	Items []ItemJSON `json:"items"`
}

// NewHTTPHandler serves the vending endpoints. checks are probed, by name, on
// /ready.
func NewHTTPHandler(vending *service.VendingService, checks map[string]port.HealthChecker) *HTTPHandler {
	return &HTTPHandler{vending: vending, checks: checks}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/buy", h.Purchase)
	r.Post("/check_user", h.CheckUser)
	r.Post("/register", h.Register)
	r.Get("/stock", h.Stock)
	r.Get("/ping", h.Ping)
	r.Get("/ready", h.Ready)
	return r
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Status: statusError, Message: "invalid request body"})
		return
	}

	res, err := h.vending.Purchase(r.Context(), req.ItemName, req.UserID)
	if err != nil {
		status, message := errorResponse(err)
		if status == http.StatusInternalServerError {
			log.Printf("purchase %q: %v", req.ItemName, err)
		}
		writeJSON(w, status, PurchaseHTTPResponse{Status: statusError, Message: message})
		return
	}

	writeJSON(w, http.StatusOK, PurchaseHTTPResponse{
		Status:   statusOK,
		Message:  "purchased " + res.ItemName,
		NewStock: &res.NewStock,
		Price:    json.Number(res.Price.String()),
		Dispatch: dispatchJSON(res.Dispatch),
	})
}

func (h *HTTPHandler) CheckUser(w http.ResponseWriter, r *http.Request) {
	var req CheckUserHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Status: statusError, Message: "invalid request body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusOK, CheckUserHTTPResponse{Status: statusError, Message: service.ErrInvalidInput.Error()})
		return
	}

	name, ok, err := h.vending.IsRegistered(r.Context(), req.UserID)
	if err != nil {
		status, message := errorResponse(err)
		log.Printf("check user %q: %v", req.UserID, err)
		writeJSON(w, status, CheckUserHTTPResponse{Status: statusError, Message: message})
		return
	}

	writeJSON(w, http.StatusOK, CheckUserHTTPResponse{Status: statusOK, Registered: ok, Name: name})
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Status: statusError, Message: "invalid request body"})
		return
	}

	err := h.vending.Register(r.Context(), service.RegisterRequest{
		Identity:  req.UserID,
		Name:      req.Name,
		StudentID: req.StudentID,
		Grade:     req.Grade,
	})
	if err != nil {
		status, message := errorResponse(err)
		if status == http.StatusInternalServerError {
			log.Printf("register %q: %v", req.UserID, err)
		}
		writeJSON(w, status, MessageHTTPResponse{Status: statusError, Message: message})
		return
	}

	writeJSON(w, http.StatusOK, MessageHTTPResponse{Status: statusOK, Message: "registered " + req.Name})
}

func (h *HTTPHandler) Stock(w http.ResponseWriter, r *http.Request) {
	items, err := h.vending.ListItems(r.Context())
	if err != nil {
		log.Printf("list stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, MessageHTTPResponse{Status: statusError, Message: "store unavailable"})
		return
	}

	out := StockHTTPResponse{Items: make([]ItemJSON, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, itemJSON(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Ready runs every health check; a failing check also triggers its
// reconnect.
func (h *HTTPHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = statusOK
	}

	overall := statusOK
	if status != http.StatusOK {
		overall = statusError
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}

// errorResponse maps engine errors to an HTTP status and user-facing message.
// Business rejections are answered with 200 and status "error".
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrDuplicateRegistration),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrUnknownPurchaser),
		errors.Is(err, service.ErrStockConflict):
		return http.StatusOK, err.Error()
	case errors.Is(err, service.ErrLedgerAppend):
		return http.StatusInternalServerError, "sale could not be recorded"
	default:
		return http.StatusInternalServerError, "store unavailable"
	}
}

func dispatchJSON(d domain.DispatchStatus) *DispatchJSON {
	if d.OK {
		return &DispatchJSON{Status: statusOK}
	}
	return &DispatchJSON{Status: statusError, Error: d.Error}
}

func itemJSON(it domain.Item) ItemJSON {
	return ItemJSON{
		Name:    it.Name,
		Stock:   it.Stock,
		Price:   json.Number(it.Price.String()),
		Shelf:   it.Shelf,
		Address: it.Address,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
