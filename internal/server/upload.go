package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/async"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/core"
	"github.com/kmrl/dochub/internal/jobs"
	"github.com/kmrl/dochub/internal/utils"
)

type uploadResponse struct {
	Message string   `json:"message"`
	TaskIDs []string `json:"taskIds"`
}

// upload stores every supported part of the "files" field and queues it for analysis.
// Unsupported parts are skipped; a request without any file part is rejected.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	logger := common.LoggerWith(r.Context(), s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("server.upload.invalid_multipart", "error", err)
		s.respondError(w, r, common.NewAppError("INVALID_UPLOAD", "invalid multipart upload", common.ErrInvalidInput))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, r, common.NewAppError("NO_FILES", "No files were sent.", common.ErrInvalidInput))
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		logger.Error("server.upload.mkdir_failed", "dir", s.uploadDir, "error", err)
		s.respondError(w, r, fmt.Errorf("prepare upload dir: %w", err))
		return
	}

	taskIDs := []string{}
	for _, fh := range headers {
		name := strings.TrimSpace(fh.Filename)
		if name == "" {
			continue
		}
		if !constants.AllowedUpload(filepath.Ext(name)) {
			logger.Warn("server.upload.unsupported", "file", name)
			continue
		}

		id, err := s.accept(r, fh)
		if err != nil {
			logger.Error("server.upload.failed", "file", name, "error", err)
			continue
		}
		taskIDs = append(taskIDs, id)
		logger.Info("server.upload.accepted", "job_id", id, "file", name, "bytes", fh.Size)
	}

	s.respondJSON(w, http.StatusOK, uploadResponse{
		Message: fmt.Sprintf("%d file(s) uploaded successfully, processing started.", len(taskIDs)),
		TaskIDs: taskIDs,
	})
}

func (s *Server) accept(r *http.Request, fh *multipart.FileHeader) (string, error) {
	id := s.newID()
	path := filepath.Join(s.uploadDir, id+"_"+utils.SafeFileName(fh.Filename))
	if err := saveUpload(fh, path); err != nil {
		return "", err
	}

	job := jobs.NewJob(id, fh.Filename, s.now())
	if err := s.store.Create(r.Context(), job); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("create job: %w", err)
	}

	task := async.Task{
		JobID:    id,
		Path:     path,
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
	}
	if err := s.queue.Enqueue(r.Context(), task); err != nil {
		summary := core.FailurePrefix + err.Error()
		job.Status = constants.JobStatusFailed
		job.Summary = &summary
		if uerr := s.store.Update(r.Context(), job); uerr != nil {
			err = errors.Join(err, uerr)
		}
		_ = os.Remove(path)
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open part: %w", err)
	}
	defer src.Close()
	return utils.WriteFile(path, src)
}
