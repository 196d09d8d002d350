package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/smartcart-io/cartd/internal/core/domain"
	"github.com/smartcart-io/cartd/internal/core/service"
	"github.com/smartcart-io/cartd/internal/wire"
)

// HTTPHandler exposes the hardware-adapter ingestion contract and the
// cart read endpoints.
type HTTPHandler struct {
	cartService *service.CartService
}

func NewHTTPHandler(cartService *service.CartService) *HTTPHandler {
	return &HTTPHandler{cartService: cartService}
}

type AddItemHTTPRequest struct {
	UserID    string  `json:"user_id"`
	ProductID string  `json:"product_id,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	ScanType  string  `json:"scan_type,omitempty"`
	ScanValue string  `json:"scan_value,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

type AddItemHTTPResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Product *ProductPayload `json:"product,omitempty"`
}

type ProductPayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand,omitempty"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	WeightGrams float64 `json:"weight_grams"`
	Unresolved  bool    `json:"unresolved,omitempty"`
}

type WeightHTTPRequest struct {
	DeviceID  string  `json:"device_id"`
	Weight    float64 `json:"weight"`
	Stable    bool    `json:"stable,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

type BindDeviceHTTPRequest struct {
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
}

type CalibrateHTTPRequest struct {
	DeviceID   string  `json:"device_id"`
	KnownGrams float64 `json:"known_grams"`
}

type StatusHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CartHTTPResponse struct {
	UserID              string                `json:"user_id"`
	Items               []CartItemPayload     `json:"items"`
	TotalQuantity       int                   `json:"total_quantity"`
	TotalPrice          float64               `json:"total_price"`
	ExpectedWeightGrams float64               `json:"expected_weight_grams"`
	Reconciliation      ReconciliationPayload `json:"reconciliation"`
}

type CartItemPayload struct {
	Product  ProductPayload `json:"product"`
	Quantity int            `json:"quantity"`
}

type ReconciliationPayload struct {
	ExpectedGrams  float64 `json:"expected_grams"`
	MeasuredGrams  float64 `json:"measured_grams"`
	ToleranceGrams float64 `json:"tolerance_grams"`
	DiffGrams      float64 `json:"diff_grams"`
	Match          bool    `json:"match"`
	Simulated      bool    `json:"simulated"`
}

func productPayload(p domain.Product) ProductPayload {
	return ProductPayload{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Category:    p.Category,
		Price:       p.Price,
		WeightGrams: p.NominalWeightGrams,
		Unresolved:  p.Unresolved,
	}
}

// AddItem handles POST /api/cart/add-item: one scan from a hardware
// adapter (or a manual add by product ID).
func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AddItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AddItemHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	scanKind := domain.ScanKind(req.ScanType)
	if req.ScanType == "" {
		scanKind = domain.ScanKindManual
	}
	if !scanKind.Valid() {
		writeJSON(w, http.StatusBadRequest, AddItemHTTPResponse{
			Success: false,
			Message: "unknown scan_type",
		})
		return
	}

	product, err := h.cartService.AddItem(r.Context(), service.AddItemRequest{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		ScanType:  scanKind,
		ScanValue: req.ScanValue,
		Timestamp: wire.FromUnixSeconds(req.Timestamp),
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		if errors.Is(err, service.ErrDuplicateScan) {
			status = http.StatusConflict
			message = "duplicate scan"
		} else if errors.Is(err, service.ErrInvalidRequest) {
			status = http.StatusBadRequest
			message = err.Error()
		}

		writeJSON(w, status, AddItemHTTPResponse{
			Success: false,
			Message: message,
		})
		return
	}

	p := productPayload(product)
	writeJSON(w, http.StatusOK, AddItemHTTPResponse{
		Success: true,
		Message: "item added",
		Product: &p,
	})
}

// UpdateWeight handles POST /api/weight/update: one raw load-cell sample.
func (h *HTTPHandler) UpdateWeight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req WeightHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, StatusHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	err := h.cartService.UpdateWeight(r.Context(), domain.WeightSample{
		DeviceID:  req.DeviceID,
		Grams:     req.Weight,
		Stable:    req.Stable,
		Timestamp: wire.FromUnixSeconds(req.Timestamp),
		Reason:    req.Reason,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"
		if errors.Is(err, service.ErrInvalidRequest) {
			status = http.StatusBadRequest
			message = err.Error()
		}
		writeJSON(w, status, StatusHTTPResponse{Success: false, Message: message})
		return
	}

	writeJSON(w, http.StatusOK, StatusHTTPResponse{Success: true, Message: "sample accepted"})
}

// Tare handles POST /api/weight/tare.
func (h *HTTPHandler) Tare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req WeightHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, StatusHTTPResponse{
			Success: false,
			Message: "device_id is required",
		})
		return
	}

	if err := h.cartService.Tare(req.DeviceID); err != nil {
		writeJSON(w, http.StatusInternalServerError, StatusHTTPResponse{Success: false, Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, StatusHTTPResponse{Success: true, Message: "tared"})
}

// Calibrate handles POST /api/weight/calibrate.
func (h *HTTPHandler) Calibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CalibrateHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, StatusHTTPResponse{
			Success: false,
			Message: "device_id is required",
		})
		return
	}

	if err := h.cartService.Calibrate(req.DeviceID, req.KnownGrams); err != nil {
		writeJSON(w, http.StatusInternalServerError, StatusHTTPResponse{Success: false, Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, StatusHTTPResponse{Success: true, Message: "calibrated"})
}

// BindDevice handles POST /api/device/bind: routes a load cell to a
// session.
func (h *HTTPHandler) BindDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BindDeviceHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, StatusHTTPResponse{
			Success: false,
			Message: "device_id and user_id are required",
		})
		return
	}

	h.cartService.BindDevice(req.DeviceID, req.UserID)
	writeJSON(w, http.StatusOK, StatusHTTPResponse{Success: true, Message: "device bound"})
}

// Cart handles GET /api/cart/{user} and POST /api/cart/{user}/checkout.
func (h *HTTPHandler) Cart(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/cart/")
	if rest == "" || rest == r.URL.Path {
		http.NotFound(w, r)
		return
	}

	if userID, ok := strings.CutSuffix(rest, "/checkout"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := h.cartService.Checkout(userID); err != nil {
			writeJSON(w, http.StatusInternalServerError, StatusHTTPResponse{Success: false, Message: "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, StatusHTTPResponse{Success: true, Message: "cart cleared"})
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}

	snap := h.cartService.Snapshot(rest)
	items := make([]CartItemPayload, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		items = append(items, CartItemPayload{
			Product:  productPayload(e.Product),
			Quantity: e.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, CartHTTPResponse{
		UserID:              snap.UserID,
		Items:               items,
		TotalQuantity:       snap.TotalQuantity,
		TotalPrice:          snap.TotalPrice,
		ExpectedWeightGrams: snap.ExpectedWeightGrams,
		Reconciliation: ReconciliationPayload{
			ExpectedGrams:  snap.Reconciliation.ExpectedGrams,
			MeasuredGrams:  snap.Reconciliation.MeasuredGrams,
			ToleranceGrams: snap.Reconciliation.ToleranceGrams,
			DiffGrams:      snap.Reconciliation.DiffGrams,
			Match:          snap.Reconciliation.Match,
			Simulated:      snap.Reconciliation.Simulated,
		},
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
