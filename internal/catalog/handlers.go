package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/invoicer/internal/extraction"
	"github.com/zombor/invoicer/internal/invoice"
	"github.com/zombor/invoicer/internal/scanning"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes {"error": message} with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// lookupError maps a failed lookup to a response.
func (s *Server) lookupError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, ErrNotFound) {
		jsonError(w, what+" not found", http.StatusNotFound)
		return
	}
	s.logger.Error("Failed to load "+strings.ToLower(what), "error", err)
	jsonError(w, "Internal server error", http.StatusInternalServerError)
}

// contentTypeFor guesses a MIME type from the extension when the client sent none.
func contentTypeFor(filename, declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// readUpload reads the multipart "file" field. It writes the error response
// and returns ok=false when the request carries no usable file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (filename, contentType string, data []byte, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxSize)
	if err := r.ParseMultipartForm(s.maxSize); err != nil {
		s.logger.Error("Failed to parse multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("File is too large. Maximum size is %dMB.", s.maxSize>>20), http.StatusRequestEntityTooLarge)
			return "", "", nil, false
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return "", "", nil, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		s.logger.Error("Failed to read file from form", "error", err)
		msg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			msg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, msg, http.StatusBadRequest)
		return "", "", nil, false
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		s.logger.Error("Failed to read file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return "", "", nil, false
	}
	return header.Filename, contentTypeFor(header.Filename, header.Header.Get("Content-Type")), data, true
}

// processingError maps a failed pipeline run to a response.
func (s *Server) processingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedFile):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, scanning.ErrUnreadableFile):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, extraction.ErrExtractionFailed):
		jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleUploadInvoice accepts a multipart "file" and processes it
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	filename, contentType, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	var opts UploadOptions
	if v := r.URL.Query().Get("ai"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, fmt.Sprintf("invalid ai parameter %q", v), http.StatusBadRequest)
			return
		}
		opts.DisableAI = !enabled
	}

	record, err := s.service.ProcessUpload(r.Context(), filename, data, contentType, opts)
	if err != nil {
		s.logger.Error("Failed to process upload", "filename", filename, "error", err)
		s.processingError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, record)
}

// handleTestAI runs an upload with AI forced on next to a regular run,
// without storing either result
func (s *Server) handleTestAI(w http.ResponseWriter, r *http.Request) {
	filename, _, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	cmp, err := s.service.CompareExtraction(r.Context(), filename, data)
	if err != nil {
		s.logger.Error("Failed to compare extraction", "filename", filename, "error", err)
		s.processingError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cmp)
}

// handleListInvoices returns summaries of all invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.ListInvoices()
	if err != nil {
		s.logger.Error("Failed to list invoices", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

// handleGetInvoice returns a single record
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetInvoice(r.PathValue("id"))
	if err != nil {
		s.lookupError(w, err, "Invoice")
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// handleUpdateInvoice replaces a record's result with an edited one
func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	edited := invoice.New()
	if err := json.NewDecoder(r.Body).Decode(edited); err != nil {
		jsonError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	record, err := s.service.UpdateInvoice(r.PathValue("id"), edited)
	if err != nil {
		s.lookupError(w, err, "Invoice")
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// handleDeleteInvoice deletes a record and its file
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteInvoice(r.PathValue("id")); err != nil {
		s.lookupError(w, err, "Invoice")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetInvoiceFile returns the original upload
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetInvoiceFile(r.PathValue("id"))
	if err != nil {
		s.lookupError(w, err, "File")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDownloadInvoiceJSON returns the extracted result as a download
func (s *Server) handleDownloadInvoiceJSON(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.service.GetInvoice(id)
	if err != nil {
		s.lookupError(w, err, "Invoice")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice_%s.json", id))
	s.writeJSON(w, http.StatusOK, record.Result)
}

// handleExportLineItems returns the line items as an XLSX workbook
func (s *Server) handleExportLineItems(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.service.ExportLineItems(r.PathValue("id"))
	if err != nil {
		s.lookupError(w, err, "Invoice")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(data)
}

// handleAccounting returns the accounting entries of an invoice
func (s *Server) handleAccounting(w http.ResponseWriter, r *http.Request) {
	accounting, err := s.service.AccountingEntries(r.PathValue("id"))
	if err != nil {
		s.lookupError(w, err, "Invoice")
		return
	}
	s.writeJSON(w, http.StatusOK, accounting)
}

// handleStatus reports the extraction configuration
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
