package server

import (
	"errors"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/image_updater/gitops/git"
	"github.com/byte4ever/image_updater/updater"
)

type handler struct {
	updater Updater
	metrics *metrics
	log     *slog.Logger
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *handler) updateImage(w http.ResponseWriter, r *http.Request) {
	var req updater.Request

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusUnprocessableEntity, err.Error(), nil)

		return
	}

	if err := req.Validate(); err != nil {
		h.fail(w, http.StatusUnprocessableEntity, err.Error(), nil)

		return
	}

	res, err := h.updater.Update(r.Context(), req)
	if err != nil {
		code := statusFor(err)
		detail := err.Error()

		// Unexpected failures carry the platform's own
		// message; the full chain only goes to the log.
		if code == http.StatusInternalServerError {
			h.log.Error(
				"image update failed",
				"image", req.Image,
				"version", req.Version,
				"error", err,
			)

			detail = git.Cause(err).Error()
		}

		h.fail(w, code, detail, res)

		return
	}

	h.log.Info(
		"image updated",
		"image", req.Image,
		"version", req.Version,
		"paths", res.UpdatedPaths,
	)

	h.metrics.observe(http.StatusOK, res)
	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message()})
}

// validationFailed reports OpenAPI request validation
// errors. Bad request bodies are answered with 422.
func (h *handler) validationFailed(
	w http.ResponseWriter,
	message string,
	statusCode int,
) {
	if statusCode == http.StatusBadRequest {
		statusCode = http.StatusUnprocessableEntity
	}

	h.fail(w, statusCode, message, nil)
}

func (h *handler) rateLimited(w http.ResponseWriter, _ *http.Request) {
	h.fail(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
}

func (h *handler) fail(
	w http.ResponseWriter,
	code int,
	detail string,
	res *updater.Result,
) {
	h.metrics.observe(code, res)
	writeJSON(w, code, errorResponse{Detail: detail})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, updater.ErrNoManifests),
		errors.Is(err, updater.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, updater.ErrInvalidRequest):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("cannot write response", "error", err)
	}
}
