package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/rules"
)

type fakeRulesGateway struct {
	conflict   error
	created    []models.ActionRule
	updated    []models.ActionRule
	deletedIDs []string
}

func (f *fakeRulesGateway) FindRulesByTrigger(ctx context.Context, triggerType models.TriggerType, triggerValue string) ([]models.ActionRule, error) {
	return nil, nil
}
func (f *fakeRulesGateway) CreateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	f.created = append(f.created, r)
	return &r, nil
}
func (f *fakeRulesGateway) UpdateRule(ctx context.Context, r models.ActionRule) (*models.ActionRule, error) {
	f.updated = append(f.updated, r)
	return &r, nil
}
func (f *fakeRulesGateway) SoftDeleteRule(ctx context.Context, ruleID string) error {
	f.deletedIDs = append(f.deletedIDs, ruleID)
	return nil
}
func (f *fakeRulesGateway) CheckRuleConflict(ctx context.Context, triggerType models.TriggerType, triggerValue, scope, excludeRuleID string) error {
	return f.conflict
}
func (f *fakeRulesGateway) RecordRuleExecution(ctx context.Context, ruleID string) error { return nil }
func (f *fakeRulesGateway) CountRuleExecutionsToday(ctx context.Context, ruleID string) (int, error) {
	return 0, nil
}

func newRulesTestServer(conflict error) (*Server, *fakeRulesGateway) {
	gw := &fakeRulesGateway{conflict: conflict}
	engine := rules.NewEngine(gw, time.Minute, time.Minute)
	s := &Server{echo: echo.New(), rules: engine}
	s.echo.POST("/rules", s.createRuleHandler)
	s.echo.PUT("/rules/:id", s.updateRuleHandler)
	s.echo.DELETE("/rules/:id", s.deleteRuleHandler)
	return s, gw
}

const validRuleBody = `{
	"rule_name": "task on fire reaction",
	"rule_type": "simple_action",
	"trigger_type": "reaction",
	"trigger_value": "🔥",
	"action_type": "create_task",
	"active": true,
	"cooldown_minutes": 0,
	"max_executions_per_day": 0,
	"scope": "default"
}`

func TestCreateRuleHandler_ValidPayloadCreatesRule(t *testing.T) {
	s, gw := newRulesTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewReader([]byte(validRuleBody)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, gw.created, 1)
	assert.Equal(t, "task on fire reaction", gw.created[0].RuleName)
	assert.NotEmpty(t, gw.created[0].RuleID)

	var resp RuleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, gw.created[0].RuleID, resp.RuleID)
}

func TestCreateRuleHandler_MissingRequiredFieldReturns400(t *testing.T) {
	s, gw := newRulesTestServer(nil)

	body := []byte(`{"rule_type":"simple_action","trigger_type":"reaction","trigger_value":"x","action_type":"create_task"}`)
	req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, gw.created)
}

func TestCreateRuleHandler_ConflictReturns409(t *testing.T) {
	s, _ := newRulesTestServer(dberrors.Conflict("storage.CheckRuleConflict", nil))

	req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewReader([]byte(validRuleBody)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateRuleHandler_ValidPayloadUpdatesRule(t *testing.T) {
	s, gw := newRulesTestServer(nil)

	req := httptest.NewRequest(http.MethodPut, "/rules/rule-1", bytes.NewReader([]byte(validRuleBody)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gw.updated, 1)
	assert.Equal(t, "rule-1", gw.updated[0].RuleID)
}

func TestDeleteRuleHandler_SoftDeletesAndReturns204(t *testing.T) {
	s, gw := newRulesTestServer(nil)

	req := httptest.NewRequest(http.MethodDelete, "/rules/rule-1", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, gw.deletedIDs, 1)
	assert.Equal(t, "rule-1", gw.deletedIDs[0])
}
