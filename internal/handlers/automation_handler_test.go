package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"opsflow/internal/config"
	"opsflow/internal/models"
	"opsflow/internal/services"
)

func newTestDBForAutomations(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:automations_" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.User{}, &models.SOP{}, &models.SOPAssignment{}, &models.SOPProgress{},
		&models.SOPSchedule{}, &models.Notification{},
		&models.AutomationRule{}, &models.RuleExecution{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newAutomationRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg := config.AutomationConfig{ActionTimeout: 5 * time.Second, MaxRulesPerEvent: 50, DefaultDueDays: 3}
	notifier := services.NewNotificationService(db, logger)
	executor := services.NewActionExecutor(db,
		services.NewAssignmentService(db, logger),
		notifier,
		services.NewScheduleService(db, logger),
		services.NewUserService(db),
		cfg, logger)
	engine := services.NewRuleEngineService(db, executor, services.NewExecutionRecorder(db, logger), cfg, logger)
	ruleService := services.NewRuleService(db, logger)

	r := gin.New()
	api := r.Group("/api")
	RegisterAutomationRoutes(api, NewAutomationHandler(ruleService, engine))
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func validRuleBody() map[string]interface{} {
	return map[string]interface{}{
		"name":           "notify on completion",
		"trigger_events": []string{"sop_completed"},
		"conditions": []map[string]interface{}{
			{"field": "priority", "operator": "equals", "value": "high"},
		},
		"actions": []map[string]interface{}{
			{"type": "send_notification", "parameters": map[string]interface{}{
				"user_ids": []string{"u1"},
				"title":    "done",
			}},
		},
		"priority": 5,
	}
}

func TestAutomationHandler_CreateAndGet(t *testing.T) {
	db := newTestDBForAutomations(t)
	r := newAutomationRouter(t, db)

	w := postJSON(t, r, "/api/automations", validRuleBody())
	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.AutomationRule
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 5, created.Priority)
	assert.True(t, created.IsActive)

	w2 := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/automations/"+created.ID, nil)
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)

	var fetched models.AutomationRule
	assert.NoError(t, json.Unmarshal(w2.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
}

func TestAutomationHandler_CreateRejectsInvalid(t *testing.T) {
	db := newTestDBForAutomations(t)
	r := newAutomationRouter(t, db)

	// missing actions
	w := postJSON(t, r, "/api/automations", map[string]interface{}{
		"name":           "broken",
		"trigger_events": []string{"sop_completed"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// unknown action type
	body := validRuleBody()
	body["actions"] = []map[string]interface{}{{"type": "launch_rocket"}}
	w2 := postJSON(t, r, "/api/automations", body)
	assert.Equal(t, http.StatusBadRequest, w2.Code)
}

func TestAutomationHandler_List(t *testing.T) {
	db := newTestDBForAutomations(t)
	r := newAutomationRouter(t, db)

	postJSON(t, r, "/api/automations", validRuleBody())
	body := validRuleBody()
	body["name"] = "second"
	body["priority"] = 10
	postJSON(t, r, "/api/automations", body)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/automations", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var rules []models.AutomationRule
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	assert.Len(t, rules, 2)
	assert.Equal(t, "second", rules[0].Name) // priority DESC
}

func TestAutomationHandler_UpdateAndDelete(t *testing.T) {
	db := newTestDBForAutomations(t)
	r := newAutomationRouter(t, db)

	w := postJSON(t, r, "/api/automations", validRuleBody())
	var created models.AutomationRule
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	patch, _ := json.Marshal(map[string]interface{}{"name": "renamed", "is_active": false})
	w2 := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/api/automations/"+created.ID, bytes.NewReader(patch))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)

	var updated models.AutomationRule
	assert.NoError(t, json.Unmarshal(w2.Body.Bytes(), &updated))
	assert.Equal(t, "renamed", updated.Name)
	assert.False(t, updated.IsActive)

	w3 := httptest.NewRecorder()
	req3, _ := http.NewRequest(http.MethodDelete, "/api/automations/"+created.ID, nil)
	r.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusOK, w3.Code)

	w4 := httptest.NewRecorder()
	req4, _ := http.NewRequest(http.MethodGet, "/api/automations/"+created.ID, nil)
	r.ServeHTTP(w4, req4)
	assert.Equal(t, http.StatusNotFound, w4.Code)
}

func TestAutomationHandler_Execute(t *testing.T) {
	db := newTestDBForAutomations(t)
	r := newAutomationRouter(t, db)

	postJSON(t, r, "/api/automations", validRuleBody())

	w := postJSON(t, r, "/api/automations/execute", map[string]interface{}{
		"trigger_event": "sop_completed",
		"event_data":    map[string]interface{}{"priority": "high", "user_id": "u1"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Executions []models.RuleExecution `json:"executions"`
		Count      int                    `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Len(t, resp.Executions, 1)
	assert.Equal(t, models.ExecutionStatusCompleted, resp.Executions[0].Status)

	var notifications int64
	db.Model(&models.Notification{}).Where("user_id = ?", "u1").Count(&notifications)
	assert.EqualValues(t, 1, notifications)
}

func TestAutomationHandler_ExecuteNoMatch(t *testing.T) {
	db := newTestDBForAutomations(t)
	r := newAutomationRouter(t, db)

	postJSON(t, r, "/api/automations", validRuleBody())

	w := postJSON(t, r, "/api/automations/execute", map[string]interface{}{
		"trigger_event": "sop_completed",
		"event_data":    map[string]interface{}{"priority": "low"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Executions []models.RuleExecution `json:"executions"`
		Count      int                    `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Executions)
}

func TestAutomationHandler_ExecuteRequiresEvent(t *testing.T) {
	db := newTestDBForAutomations(t)
	r := newAutomationRouter(t, db)

	w := postJSON(t, r, "/api/automations/execute", map[string]interface{}{
		"event_data": map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAutomationHandler_ListExecutions(t *testing.T) {
	db := newTestDBForAutomations(t)
	r := newAutomationRouter(t, db)

	w := postJSON(t, r, "/api/automations", validRuleBody())
	var created models.AutomationRule
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	postJSON(t, r, "/api/automations/execute", map[string]interface{}{
		"trigger_event": "sop_completed",
		"event_data":    map[string]interface{}{"priority": "high", "user_id": "u1"},
	})

	w2 := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/automations/"+created.ID+"/executions", nil)
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)

	var executions []models.RuleExecution
	assert.NoError(t, json.Unmarshal(w2.Body.Bytes(), &executions))
	assert.Len(t, executions, 1)
	assert.Equal(t, created.ID, executions[0].RuleID)
}
