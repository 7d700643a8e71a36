package http

import (
	"net/http"
	"strings"

	"agentteam/internal/app/agentteam"
	domain "agentteam/internal/domain/agentteam"

	"github.com/gin-gonic/gin"
)

type teamHandler struct {
	runtime Orchestrator
}

func newTeamHandler(runtime Orchestrator) *teamHandler {
	return &teamHandler{runtime: runtime}
}

type spawnBody struct {
	MissionID        string              `json:"missionID"`
	ParentInstanceID string              `json:"parentInstanceID"`
	TemplateID       string              `json:"templateID"`
	Role             string              `json:"role"`
	Source           string              `json:"source"`
	Justification    string              `json:"justification"`
	BudgetOverride   *domain.BudgetLimit `json:"budget_override"`
	SessionID        string              `json:"sessionID"`
	MessageID        string              `json:"messageID"`
}

type reasonBody struct {
	Reason  string `json:"reason"`
	Summary string `json:"summary"`
}

func (h *teamHandler) listTemplates(c *gin.Context) {
	templates := h.runtime.ListTemplates()
	if templates == nil {
		templates = []domain.Template{}
	}
	c.JSON(http.StatusOK, templates)
}

func (h *teamHandler) listInstances(c *gin.Context) {
	filter := agentteam.InstanceFilter{
		MissionID:        strings.TrimSpace(c.Query("missionID")),
		ParentInstanceID: strings.TrimSpace(c.Query("parentInstanceID")),
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, ok := parseStatus(raw)
		if !ok {
			writeFailure(c, domain.CodeInvalidRequest, "unknown status `"+raw+"`")
			return
		}
		filter.Status = status
	}
	instances := h.runtime.ListInstances(filter)
	if instances == nil {
		instances = []agentteam.InstanceView{}
	}
	c.JSON(http.StatusOK, instances)
}

func (h *teamHandler) getInstance(c *gin.Context) {
	view, ok := h.runtime.Instance(c.Param("id"))
	if !ok {
		writeFailure(c, domain.CodeInstanceNotFound, "instance `"+c.Param("id")+"` not found")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *teamHandler) listMissions(c *gin.Context) {
	missions := h.runtime.ListMissions()
	if missions == nil {
		missions = []agentteam.MissionSummary{}
	}
	c.JSON(http.StatusOK, missions)
}

func (h *teamHandler) listApprovals(c *gin.Context) {
	c.JSON(http.StatusOK, h.runtime.ListApprovals())
}

func (h *teamHandler) spawn(c *gin.Context) {
	var body spawnBody
	if !bindJSON(c, &body) {
		return
	}
	result := h.runtime.Spawn(c.Request.Context(), domain.SpawnRequest{
		MissionID:        body.MissionID,
		ParentInstanceID: body.ParentInstanceID,
		TemplateID:       body.TemplateID,
		Role:             domain.Role(body.Role),
		Source:           domain.Source(body.Source),
		Justification:    body.Justification,
		BudgetOverride:   body.BudgetOverride,
		SessionID:        body.SessionID,
		MessageID:        body.MessageID,
	})
	writeResult(c, result.Code, result)
}

func (h *teamHandler) cancelInstance(c *gin.Context) {
	var body reasonBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	result := h.runtime.CancelInstance(c.Request.Context(), c.Param("id"), body.Reason)
	writeResult(c, result.Code, result)
}

func (h *teamHandler) cancelMission(c *gin.Context) {
	var body reasonBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	result := h.runtime.CancelMission(c.Request.Context(), c.Param("id"), body.Reason)
	writeResult(c, result.Code, result)
}

func (h *teamHandler) reportUsage(c *gin.Context) {
	var report agentteam.UsageReport
	if !bindJSON(c, &report) {
		return
	}
	result := h.runtime.ReportUsage(c.Request.Context(), c.Param("id"), report)
	writeResult(c, result.Code, result)
}

func (h *teamHandler) complete(c *gin.Context) {
	var body reasonBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	result := h.runtime.Complete(c.Request.Context(), c.Param("id"), body.Summary)
	writeResult(c, result.Code, result)
}

func (h *teamHandler) fail(c *gin.Context) {
	var body reasonBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	result := h.runtime.Fail(c.Request.Context(), c.Param("id"), body.Reason)
	writeResult(c, result.Code, result)
}

func (h *teamHandler) checkTool(c *gin.Context) {
	var inv domain.ToolInvocation
	if !bindJSON(c, &inv) {
		return
	}
	if strings.TrimSpace(inv.Tool) == "" {
		writeFailure(c, domain.CodeInvalidRequest, "tool is required")
		return
	}
	result := h.runtime.CheckTool(c.Request.Context(), c.Param("id"), inv)
	writeResult(c, result.Code, result)
}

func (h *teamHandler) engineEvent(c *gin.Context) {
	var event agentteam.EngineEvent
	if !bindJSON(c, &event) {
		return
	}
	result := h.runtime.HandleEngineEvent(c.Request.Context(), event)
	writeResult(c, result.Code, result)
}

func (h *teamHandler) resolveSpawn(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body reasonBody
		if !bindOptionalJSON(c, &body) {
			return
		}
		result := h.runtime.ResolveSpawnApproval(c.Request.Context(), c.Param("id"), approve, body.Reason)
		writeResult(c, result.Code, result)
	}
}

func (h *teamHandler) resolveTool(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body reasonBody
		if !bindOptionalJSON(c, &body) {
			return
		}
		result := h.runtime.ResolveToolApproval(c.Request.Context(), c.Param("id"), approve, body.Reason)
		writeResult(c, result.Code, result)
	}
}

func parseStatus(raw string) (domain.Status, bool) {
	status := domain.Status(strings.ToLower(raw))
	switch status {
	case domain.StatusQueued, domain.StatusRunning, domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled:
		return status, true
	}
	return "", false
}
