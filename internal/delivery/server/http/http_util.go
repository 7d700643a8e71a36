package http

import (
	"errors"
	"io"
	"net/http"

	domain "agentteam/internal/domain/agentteam"

	"github.com/gin-gonic/gin"
)

type failureBody struct {
	OK    bool            `json:"ok"`
	Code  domain.DenyCode `json:"code"`
	Error string          `json:"error"`
}

// statusForCode maps result codes onto HTTP statuses. Policy outcomes such as
// denials travel as 200 with ok=false; only malformed requests, unknown ids
// and internal faults change the status.
func statusForCode(code domain.DenyCode) int {
	switch code {
	case "":
		return http.StatusOK
	case domain.CodeInvalidRequest:
		return http.StatusBadRequest
	case domain.CodeInstanceNotFound, domain.CodeMissionNotFound, domain.CodeApprovalNotFound:
		return http.StatusNotFound
	case domain.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func writeResult(c *gin.Context, code domain.DenyCode, payload any) {
	c.JSON(statusForCode(code), payload)
}

func writeFailure(c *gin.Context, code domain.DenyCode, message string) {
	c.JSON(statusForCode(code), failureBody{Code: code, Error: message})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeFailure(c, domain.CodeInvalidRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(c, domain.CodeInvalidRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
