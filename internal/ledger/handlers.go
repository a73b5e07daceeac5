package ledger

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/ledger-scan/internal/reconcile"
)

const (
	// maxUploadSize fits high-resolution phone photos
	maxUploadSize = int64(50 << 20)
	maxBodySize   = int64(1 << 20)

	uploadTooLarge    = "File is too large. Maximum size is 50MB. Please compress or resize your image."
	recognitionFailed = "Could not read the invoice. Please retry or check your connection."
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError maps service errors onto status codes. Unexpected errors are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDraftNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidParty), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNoItems):
		status = http.StatusBadRequest
	case errors.Is(err, ErrPartyHasTransactions):
		status = http.StatusConflict
	case errors.Is(err, ErrRecognitionFailed):
		writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "error": recognitionFailed})
		return
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
		message = "Internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return false
	}
	return true
}

// contentTypeFor guesses a content type from the file extension
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScanInvoice reads an uploaded invoice image and returns its draft
func (s *Server) handleScanInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = uploadTooLarge
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		message := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			message = "No file was selected. Please choose a file to upload."
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error reading file. Please try again."})
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}

	draft, err := s.service.ScanInvoice(r.Context(), header.Filename, data, contentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.service.GetDraft(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Edits []reconcile.Edit `json:"edits"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	draft, err := s.service.EditDraft(r.PathValue("id"), req.Edits...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DiscardDraft(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReconcile validates a transaction without booking it
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var tx reconcile.Transaction
	if !decodeBody(w, r, &tx) {
		return
	}
	writeJSON(w, http.StatusOK, s.service.Reconcile(tx))
}

type parseRequest struct {
	Text string `json:"text"`
}

// handleParseText reconciles invoice text without an image
func (s *Server) handleParseText(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reconciled, err := s.service.ReconcileText(req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reconciled)
}

func (s *Server) handleGetImage(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, contentType, err := s.service.GetInvoiceImage(kind, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	}
}

func (s *Server) handleConfirmPurchase(w http.ResponseWriter, r *http.Request) {
	var in PurchaseInput
	if !decodeBody(w, r, &in) {
		return
	}
	purchase, err := s.service.ConfirmPurchase(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := s.service.ListPurchases(r.URL.Query().Get("vendorId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (s *Server) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	purchase, err := s.service.GetPurchase(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePurchase(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirmSale(w http.ResponseWriter, r *http.Request) {
	var in SaleInput
	if !decodeBody(w, r, &in) {
		return
	}
	sale, err := s.service.ConfirmSale(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := s.service.ListSales(r.URL.Query().Get("customerId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := s.service.GetSale(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (s *Server) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSale(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	var in PartyInput
	if !decodeBody(w, r, &in) {
		return
	}
	party, err := s.service.CreateParty(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, party)
}

func (s *Server) handleListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := s.service.ListParties(PartyType(r.URL.Query().Get("type")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parties)
}

// handleGetParty returns the party with its balance and statement
func (s *Server) handleGetParty(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	party, err := s.service.GetParty(id)
	if err != nil {
		writeError(w, err)
		return
	}
	transactions, err := s.service.PartyTransactions(id)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.service.PartyBalance(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"party":        party,
		"balance":      balance,
		"transactions": transactions,
	})
}

func (s *Server) handleDeleteParty(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteParty(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCustomerPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.service.CustomerPending(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var in PaymentInput
	if !decodeBody(w, r, &in) {
		return
	}
	payment, err := s.service.RecordPayment(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.service.ListPayments(r.URL.Query().Get("partyId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePayment(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListStock(w http.ResponseWriter, r *http.Request) {
	stock, err := s.service.ListStock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	stock, err := s.service.LowStockItems()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (s *Server) handleOutOfStock(w http.ResponseWriter, r *http.Request) {
	stock, err := s.service.OutOfStockItems()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (s *Server) handleStockMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := s.service.StockMovements(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

type stockRequest struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Reason   string  `json:"reason"`
}

func (s *Server) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.service.AdjustStock(req.Name, req.Quantity, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleOpeningStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.service.SetOpeningStock(req.Name, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.service.ListAlerts()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.service.SweepLowStock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.GetSettings()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings Settings
	if !decodeBody(w, r, &settings) {
		return
	}
	updated, err := s.service.UpdateSettings(settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
