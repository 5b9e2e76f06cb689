package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/fcamachol/chatflow/pkg/models"
)

var ruleValidator = validator.New()

// createRuleHandler handles POST /rules (spec §6's minimal admin surface):
// validated, conflict-checked rule creation.
func (s *Server) createRuleHandler(c *echo.Context) error {
	var req CreateRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := ruleValidator.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rule := models.ActionRule{
		RuleID:              uuid.NewString(),
		RuleName:            req.RuleName,
		RuleType:            req.RuleType,
		TriggerType:         req.TriggerType,
		TriggerValue:        req.TriggerValue,
		ActionType:          req.ActionType,
		Config:              req.Config,
		Conditions:          req.Conditions,
		Active:              req.Active,
		CooldownMinutes:     req.CooldownMinutes,
		MaxExecutionsPerDay: req.MaxExecutionsPerDay,
		Scope:               req.Scope,
	}

	created, err := s.rules.CreateRule(c.Request().Context(), rule)
	if err != nil {
		return mapGatewayError(err)
	}
	return c.JSON(http.StatusCreated, RuleResponse{RuleID: created.RuleID})
}

// updateRuleHandler handles PUT /rules/{id}.
func (s *Server) updateRuleHandler(c *echo.Context) error {
	ruleID := c.Param("id")
	if ruleID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "rule id required")
	}

	var req UpdateRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := ruleValidator.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rule := models.ActionRule{
		RuleID:              ruleID,
		RuleName:            req.RuleName,
		RuleType:            req.RuleType,
		TriggerType:         req.TriggerType,
		TriggerValue:        req.TriggerValue,
		ActionType:          req.ActionType,
		Config:              req.Config,
		Conditions:          req.Conditions,
		Active:              req.Active,
		CooldownMinutes:     req.CooldownMinutes,
		MaxExecutionsPerDay: req.MaxExecutionsPerDay,
		Scope:               req.Scope,
	}

	updated, err := s.rules.UpdateRule(c.Request().Context(), rule)
	if err != nil {
		return mapGatewayError(err)
	}
	return c.JSON(http.StatusOK, RuleResponse{RuleID: updated.RuleID})
}

// deleteRuleHandler handles DELETE /rules/{id} (soft-delete, spec §6).
func (s *Server) deleteRuleHandler(c *echo.Context) error {
	ruleID := c.Param("id")
	if ruleID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "rule id required")
	}
	if err := s.rules.DeleteRule(c.Request().Context(), ruleID); err != nil {
		return mapGatewayError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
