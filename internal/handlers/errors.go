package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
)

// writeServiceError maps a core service error to an HTTP response using
// apperrors.KindOf, logging unexpected (internal) errors at error level and
// expected ones (validation, not-found, conflict, ...) at warn level.
func writeServiceError(c *gin.Context, logger *slog.Logger, op string, err error) {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindState, apperrors.KindConcurrency:
		status = http.StatusConflict
	case apperrors.KindConflict:
		status = http.StatusConflict
	case apperrors.KindUnsupported:
		status = http.StatusUnprocessableEntity
	case apperrors.KindProvider:
		status = http.StatusBadGateway
	case apperrors.KindIntegrity:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", slog.String("error", err.Error()))
	} else {
		logger.Warn(op+" failed", slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
