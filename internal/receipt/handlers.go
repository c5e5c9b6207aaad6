package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/videlboga/ReceiptScan/internal/pattern"
	"github.com/videlboga/ReceiptScan/internal/report"
)

// maxUploadSize matches the Telegram bot API download limit
const maxUploadSize = int64(20 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes {"error": message} with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// serviceErrorStatus maps a service error to an HTTP status
func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoFile):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// detectContentType falls back to the file extension when the upload has
// no Content-Type
func detectContentType(header string, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleListChecks returns a list of all checks
func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := s.service.ListChecks()
	if err != nil {
		slog.Error("Error listing checks", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

// handleUploadCheck recognizes and checks an uploaded receipt file
func (s *Server) handleUploadCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "File is too large. Maximum size is 20MB."
		}
		jsonError(w, message, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file was provided in the \"file\" field", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		jsonError(w, "File is too large. Maximum size is 20MB.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)
	check, err := s.service.ProcessReceipt(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), serviceErrorStatus(err))
		return
	}

	writeJSON(w, http.StatusCreated, check)
}

type checkTextRequest struct {
	Text          string   `json:"text"`
	OCRConfidence *float64 `json:"ocr_confidence"`
}

// handleCheckText checks text recognized elsewhere
func (s *Server) handleCheckText(w http.ResponseWriter, r *http.Request) {
	var req checkTextRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OCRConfidence == nil {
		jsonError(w, "ocr_confidence is required", http.StatusBadRequest)
		return
	}

	check, err := s.service.CheckText(req.Text, *req.OCRConfidence)
	if err != nil {
		slog.Error("Error checking text", "error", err)
		jsonError(w, err.Error(), serviceErrorStatus(err))
		return
	}

	writeJSON(w, http.StatusCreated, check)
}

// handleGetCheck returns a single check
func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	check, err := s.service.GetCheck(r.PathValue("id"))
	if err != nil {
		if serviceErrorStatus(err) == http.StatusNotFound {
			corsError(w, "Check not found", http.StatusNotFound)
			return
		}
		slog.Error("Error getting check", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// handleGetCheckReport returns the rendered report of a check
func (s *Server) handleGetCheckReport(w http.ResponseWriter, r *http.Request) {
	check, err := s.service.GetCheck(r.PathValue("id"))
	if err != nil {
		if serviceErrorStatus(err) == http.StatusNotFound {
			corsError(w, "Check not found", http.StatusNotFound)
			return
		}
		slog.Error("Error getting check report", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, check.Report)
}

// handleGetCheckFile returns the uploaded file of a check
func (s *Server) handleGetCheckFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetCheckFile(r.PathValue("id"))
	if err != nil {
		if serviceErrorStatus(err) == http.StatusNotFound {
			corsError(w, "File not found", http.StatusNotFound)
			return
		}
		slog.Error("Error getting check file", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteCheck deletes a check
func (s *Server) handleDeleteCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteCheck(r.PathValue("id")); err != nil {
		code := serviceErrorStatus(err)
		if code == http.StatusNotFound {
			corsError(w, "Check not found", code)
			return
		}
		slog.Error("Error deleting check", "error", err)
		corsError(w, "Error deleting check", code)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetRules describes the rules in effect, as text with ?format=text
func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	summary := s.service.RulesSummary()
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, report.RenderSummary(summary))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleReloadRules reads the rules file again
func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.ReloadRules()
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type addRuleValueRequest struct {
	Kind  pattern.Kind `json:"kind"`
	Value string       `json:"value"`
}

// handleAddRuleValue adds a valid phone, amount, account or card
func (s *Server) handleAddRuleValue(w http.ResponseWriter, r *http.Request) {
	var req addRuleValueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	summary, err := s.service.AddValidValue(req.Kind, req.Value)
	if err != nil {
		jsonError(w, err.Error(), serviceErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
