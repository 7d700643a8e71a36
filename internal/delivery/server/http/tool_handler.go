package http

import (
	"net/http"
	"sort"

	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/infra/tools/builtin/shared"

	"github.com/gin-gonic/gin"
)

type toolHandler struct {
	tools map[string]shared.Tool
}

func newToolHandler(tools []shared.Tool) *toolHandler {
	byName := make(map[string]shared.Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Definition().Name] = tool
	}
	return &toolHandler{tools: byName}
}

type toolResponse struct {
	OK       bool           `json:"ok"`
	CallID   string         `json:"callID"`
	Content  string         `json:"content"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (h *toolHandler) list(c *gin.Context) {
	defs := make([]shared.ToolDefinition, 0, len(h.tools))
	for _, tool := range h.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	c.JSON(http.StatusOK, defs)
}

// invoke runs a tool call forwarded by the engine. The call carries the
// calling instance and session.
func (h *toolHandler) invoke(c *gin.Context) {
	tool, ok := h.tools[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, failureBody{Code: domain.CodeInvalidRequest, Error: "unknown tool `" + c.Param("name") + "`"})
		return
	}
	var call shared.ToolCall
	if !bindJSON(c, &call) {
		return
	}
	call.Name = tool.Definition().Name
	result, err := tool.Execute(c.Request.Context(), call)
	if err != nil {
		c.JSON(http.StatusInternalServerError, failureBody{Code: domain.CodeInternal, Error: err.Error()})
		return
	}
	resp := toolResponse{OK: result.Error == nil, CallID: result.CallID, Content: result.Content, Metadata: result.Metadata}
	if result.Error != nil {
		resp.Error = result.Error.Error()
	}
	c.JSON(http.StatusOK, resp)
}
