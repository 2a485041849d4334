package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/garagereg/dataport/internal/lock"
	"github.com/garagereg/dataport/internal/transfer"
)

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

type exportRequest struct {
	Format string   `json:"format"`
	OrgID  *int64   `json:"org_id"`
	Tables []string `json:"tables"`
}

type exportResponse struct {
	Metadata *transfer.Metadata `json:"metadata"`
	// Payload is base64 so binary formats (the CSV ZIP) survive JSON.
	Payload string `json:"payload_base64"`
}

type validateResponse struct {
	Valid      bool                       `json:"valid"`
	IssueCount int                        `json:"issue_count"`
	Issues     []transfer.ValidationIssue `json:"issues"`
}

type compareResponse struct {
	InSync     bool                       `json:"in_sync"`
	Comparison *transfer.ComparisonResult `json:"comparison"`
}

type roundTripRequest struct {
	OrgID        int64    `json:"org_id"`
	Tables       []string `json:"tables"`
	Format       string   `json:"format"`
	ActualDelete bool     `json:"actual_delete"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("database unreachable: %v", err), "")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.toolVersion,
	})
}

// handleExport returns the payload inline, base64-encoded, as long as
// it fits the configured inline limit.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	payload, meta, ok := s.runExport(w, r)
	if !ok {
		return
	}

	if limit := s.cfg.Transfer.MaxInlineExportBytes; limit > 0 && int64(len(payload)) > limit {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("export payload is %d bytes, inline limit is %d", len(payload), limit),
			"use POST /export/download to stream the payload")
		return
	}

	s.writeJSON(w, http.StatusOK, exportResponse{
		Metadata: meta,
		Payload:  base64.StdEncoding.EncodeToString(payload),
	})
}

// handleExportDownload streams the raw payload regardless of size.
func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	payload, meta, ok := s.runExport(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(meta.Format))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("garagereg_export_%s%s", meta.ExportID, extensionFor(meta.Format))))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Header().Set("X-Export-Id", meta.ExportID)
	w.Header().Set("X-Export-Checksum", meta.Checksum)
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// runExport decodes the shared export request shape and performs the
// export. It writes the error response itself and reports ok=false.
func (s *Server) runExport(w http.ResponseWriter, r *http.Request) ([]byte, *transfer.Metadata, bool) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), "")
		return nil, nil, false
	}

	format, err := s.resolveFormat(req.Format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return nil, nil, false
	}

	payload, meta, err := s.exporter.Export(r.Context(), transfer.ExportOptions{
		Format: format,
		OrgID:  req.OrgID,
		Tables: req.Tables,
		Actor:  actorFrom(r),
	})
	if err != nil {
		s.writeTransferError(w, err)
		return nil, nil, false
	}
	return payload, meta, true
}

// handleImport takes the raw payload as the request body. Format,
// strategy, tenant, and dry-run come from query parameters.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read request body: %v", err), "")
		return
	}

	format, err := s.resolveFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	strategy, err := s.resolveStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	orgID, err := optionalInt64(r.URL.Query().Get("org_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	dryRun := r.URL.Query().Get("dry_run") == "true"

	result, err := s.importer.Import(r.Context(), payload, transfer.ImportOptions{
		Format:   format,
		Strategy: strategy,
		OrgID:    orgID,
		DryRun:   dryRun,
	})
	if err != nil {
		s.writeTransferError(w, err)
		return
	}

	status := http.StatusOK
	if len(result.Issues) > 0 {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, result)
}

// handleValidate runs the structural validator without touching the
// database.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read request body: %v", err), "")
		return
	}
	format, err := s.resolveFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	issues, err := s.validator.Validate(payload, format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if issues == nil {
		issues = []transfer.ValidationIssue{}
	}
	s.writeJSON(w, http.StatusOK, validateResponse{
		Valid:      len(issues) == 0,
		IssueCount: len(issues),
		Issues:     issues,
	})
}

// handleCompare diffs the payload in the request body against the
// current database state: additions are records the payload carries
// that the database lacks.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read request body: %v", err), "")
		return
	}
	format, err := s.resolveFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	orgID, err := optionalInt64(r.URL.Query().Get("org_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	serializer, err := transfer.NewSerializer(format, s.reg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	_, incoming, err := serializer.Unmarshal(payload)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("parse payload: %v", err), "")
		return
	}

	current, err := s.exporter.ExportDataset(r.Context(), orgID, incoming.TableNames())
	if err != nil {
		s.writeTransferError(w, err)
		return
	}

	comparison := s.comparator.Compare(current, incoming)
	s.writeJSON(w, http.StatusOK, compareResponse{
		InSync:     comparison.InSync(),
		Comparison: comparison,
	})
}

// handleRoundTrip runs the verifier. The destructive path takes the
// tenant's advisory lock first so it cannot interleave with another
// write job.
func (s *Server) handleRoundTrip(w http.ResponseWriter, r *http.Request) {
	var req roundTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), "")
		return
	}
	format, err := s.resolveFormat(req.Format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	if req.ActualDelete && s.db != nil {
		jobLock := lock.NewTransferLock(s.db, "round-trip", req.OrgID)
		if err := jobLock.Acquire(r.Context()); err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				s.writeError(w, http.StatusConflict, err.Error(), "another transfer job is running for this organization")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error(), "")
			return
		}
		defer jobLock.Release(r.Context())
	}

	report, err := s.verifier.Verify(r.Context(), transfer.RoundTripOptions{
		OrgID:        req.OrgID,
		Tables:       req.Tables,
		Format:       format,
		Actor:        actorFrom(r),
		ActualDelete: req.ActualDelete,
	})
	if err != nil {
		s.writeTransferError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) resolveFormat(raw string) (transfer.Format, error) {
	if raw == "" {
		raw = s.cfg.Transfer.DefaultFormat
	}
	return transfer.ParseFormat(raw)
}

func (s *Server) resolveStrategy(raw string) (transfer.Strategy, error) {
	if raw == "" {
		raw = s.cfg.Transfer.DefaultStrategy
	}
	return transfer.ParseStrategy(raw)
}

// actorFrom reads the audit identity the caller supplies.
func actorFrom(r *http.Request) string {
	return r.Header.Get("X-Actor")
}

func optionalInt64(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid org_id %q", raw)
	}
	return &n, nil
}

// writeTransferError maps transfer errors to status codes: caller
// mistakes are 4xx, storage failures are 5xx.
func (s *Server) writeTransferError(w http.ResponseWriter, err error) {
	var unknownTable *transfer.UnknownTableError
	var dataAccess *transfer.DataAccessError

	switch {
	case errors.As(err, &unknownTable):
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, transfer.ErrUnsupportedFormat), errors.Is(err, transfer.ErrUnknownStrategy):
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.As(err, &dataAccess):
		s.log.Errorw("data access failure", "op", dataAccess.Op, "table", dataAccess.Table, "error", dataAccess.Err)
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
	default:
		s.log.Errorw("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, hint string) {
	s.writeJSON(w, status, errorResponse{Error: message, Hint: hint})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Errorw("failed to encode response", "error", err)
	}
}

func contentTypeFor(format transfer.Format) string {
	switch format {
	case transfer.FormatJSONL:
		return "application/x-ndjson"
	case transfer.FormatJSON:
		return "application/json"
	case transfer.FormatCSV:
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

func extensionFor(format transfer.Format) string {
	switch format {
	case transfer.FormatJSONL:
		return ".jsonl"
	case transfer.FormatJSON:
		return ".json"
	case transfer.FormatCSV:
		return ".zip"
	default:
		return ".bin"
	}
}
