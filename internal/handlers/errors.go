package handlers

import (
	"context"
	"errors"
	"net/http"

	"gift-backend/internal/dto"
	"gift-backend/internal/errs"

	"github.com/gin-gonic/gin"
)

// statusClientClosedRequest nginx convention for a caller that went away
const statusClientClosedRequest = 499

var codeStatus = map[errs.Code]int{
	errs.CodeInvalidRequest:          http.StatusBadRequest,
	errs.CodeMalformedProof:          http.StatusBadRequest,
	errs.CodeMalformedReference:      http.StatusBadRequest,
	errs.CodeUnrecognizedProofFormat: http.StatusBadRequest,
	errs.CodeCorruptToken:            http.StatusBadRequest,
	errs.CodeLedgerTransactionFailed: http.StatusUnprocessableEntity,
	errs.CodeLedgerUnconfirmed:       http.StatusUnprocessableEntity,
	errs.CodeNullifierReused:         http.StatusConflict,
	errs.CodeAlreadyClaimed:          http.StatusConflict,
	errs.CodeInvalidTransition:       http.StatusConflict,
	errs.CodeIssuerRejected:          http.StatusBadGateway,
	errs.CodeIssuerUnreachable:       http.StatusBadGateway,
}

// HTTPStatusFor maps a pipeline error to its HTTP status.
func HTTPStatusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	}
	if status, ok := codeStatus[errs.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondWithPipelineError writes the unified failure body.
// Internal errors are not echoed back to the caller.
func respondWithPipelineError(c *gin.Context, err error) {
	status := HTTPStatusFor(err)
	resp := dto.ErrorResponse{
		Success: false,
		Error:   "internal error",
		Code:    string(errs.CodeOf(err)),
	}

	var pe *errs.PhaseError
	switch {
	case errors.As(err, &pe):
		resp.Error = pe.Reason
		resp.Phase = string(pe.Phase)
	case status != http.StatusInternalServerError:
		resp.Error = err.Error()
	}
	c.JSON(status, resp)
}

// respondBadRequest request binding failures
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    string(errs.CodeInvalidRequest),
		Phase:   string(errs.PhaseRequest),
	})
}
