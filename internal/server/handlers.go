package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/nvoss/logvigil/internal/download"
	"github.com/nvoss/logvigil/internal/loader"
	"github.com/nvoss/logvigil/internal/stats"
	"github.com/nvoss/logvigil/internal/store"
)

type uploadResponse struct {
	Filename     string           `json:"filename"`
	TotalEntries int              `json:"total_entries"`
	Statistics   stats.Statistics `json:"statistics"`
	Analysis     string           `json:"analysis,omitempty"`
}

type downloadResponse struct {
	Source       string           `json:"source"`
	Path         string           `json:"path"`
	Size         int64            `json:"size"`
	TotalEntries int              `json:"total_entries"`
	Statistics   stats.Statistics `json:"statistics"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.samples.Registry()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports, err := s.reports.List(limit)
	if err != nil {
		slog.Error("listing reports", "error", err)
		writeError(w, http.StatusInternalServerError, "listing reports failed")
		return
	}
	if reports == nil {
		reports = []store.Report{}
	}
	writeJSON(w, http.StatusOK, map[string][]store.Report{"reports": reports})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	path, size, err := s.samples.Download(r.Context(), name, s.cfg.UploadDir)
	if err != nil {
		if errors.Is(err, download.ErrUnknownSource) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("downloading sample", "source", name, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("downloading %s failed", name))
		return
	}

	entries, err := s.loader.Load(path)
	if err != nil {
		slog.Error("loading downloaded sample", "source", name, "error", err)
		writeError(w, http.StatusInternalServerError, "downloaded file could not be parsed")
		return
	}

	writeJSON(w, http.StatusOK, downloadResponse{
		Source:       name,
		Path:         path,
		Size:         size,
		TotalEntries: len(entries),
		Statistics:   stats.Compute(entries),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues("error").Inc()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %dMB limit", s.cfg.MaxUpload>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if !loader.Supported(header.Filename) {
		s.metrics.UploadsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadRequest,
			"unsupported file type (accepted: json, log, txt, csv)")
		return
	}

	dest, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues("error").Inc()
		slog.Error("saving upload", "filename", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "saving upload failed")
		return
	}

	entries, err := s.loader.Load(dest)
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := stats.Compute(entries)

	var analysis string
	if s.analyzer != nil {
		text, err := s.analyzer.Analyze(r.Context(), entries)
		if err != nil {
			slog.Error("analyzing upload", "filename", header.Filename, "error", err)
		} else {
			analysis = text
		}
	}

	if s.reports != nil {
		rep := store.Report{
			Filename:     header.Filename,
			TotalEntries: len(entries),
			Statistics:   st,
			Analysis:     analysis,
		}
		if err := s.reports.Save(&rep); err != nil {
			slog.Error("saving report", "filename", header.Filename, "error", err)
		}
	}

	s.metrics.UploadsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, uploadResponse{
		Filename:     header.Filename,
		TotalEntries: len(entries),
		Statistics:   st,
		Analysis:     analysis,
	})
}

// saveUpload writes the multipart part under the upload dir with a
// UUID-prefixed name so concurrent uploads of the same file never
// collide.
func (s *Server) saveUpload(file io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o750); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	name := uuid.NewString() + "_" + filepath.Base(filename)
	dest := filepath.Join(s.cfg.UploadDir, name)

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	return dest, out.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
