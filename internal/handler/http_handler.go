package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Fullship/attendance-dashboard-sub008/internal/repository"
	"github.com/Fullship/attendance-dashboard-sub008/internal/service"
)

const maxUploadBytes = 32 << 20 // 32 MiB

// HTTPHandler handles HTTP requests for the attendance import API.
type HTTPHandler struct {
	service    *service.ImportService
	attendance *repository.AttendanceRepository
	log        zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc *service.ImportService, attendance *repository.AttendanceRepository, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		service:    svc,
		attendance: attendance,
		log:        log,
	}
}

// UploadAttendance handles bulk attendance uploads. Accepts either a
// multipart form with a CSV "file" part or a raw JSON array of row objects.
func (h *HTTPHandler) UploadAttendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rows, name, err := extractRows(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "No rows to import", http.StatusBadRequest)
		return
	}

	summary, err := h.service.RunImport(r.Context(), &service.ImportRequest{
		Rows:     rows,
		Source:   "upload",
		FileName: name,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Import failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// SyncDevice triggers a pull of the access-control device feed. Optional
// "since" query parameter (RFC 3339); defaults to the last 24 hours.
func (h *HTTPHandler) SyncDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	summary, err := h.service.SyncDevice(r.Context(), since)
	if err != nil {
		h.log.Error().Err(err).Msg("Device sync failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ListImports lists recent import jobs.
func (h *HTTPHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	jobs, total, err := h.attendance.ListImportJobs(r.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list import jobs")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"imports": jobs,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetImport fetches one import job by id.
func (h *HTTPHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Import job ID is required", http.StatusBadRequest)
		return
	}

	job, err := h.attendance.GetImportJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// extractRows pulls raw rows out of the request body: CSV from a multipart
// upload, otherwise a JSON array.
func extractRows(r *http.Request) ([]any, string, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, "", fmt.Errorf("parse upload: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("missing file part: %w", err)
		}
		defer file.Close()
		rows, err := csvRows(file)
		return rows, uploadName(header), err
	}

	var rows []any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&rows); err != nil {
		return nil, "", fmt.Errorf("decode rows: %w", err)
	}
	return rows, "", nil
}

// csvRows reads a headered CSV stream into raw row maps. Ragged rows are
// tolerated; short rows simply lack the trailing columns.
func csvRows(r io.Reader) ([]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", len(rows)+1, err)
		}

		row := make(map[string]any, len(header))
		for i, col := range header {
			if col == "" || i >= len(record) {
				continue
			}
			row[col] = record[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func uploadName(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Filename
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return defaultValue
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
