// Audit logging for the self-improvement pipeline. Every registry mutation,
// stage run, and LLM call is appended as a JSON line so a reviewer can
// reconstruct how the rule set evolved.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Rule lifecycle events
	AuditRuleProposed   AuditEventType = "rule_proposed"
	AuditRuleActivated  AuditEventType = "rule_activated"
	AuditRuleRetired    AuditEventType = "rule_retired"
	AuditRuleReinforced AuditEventType = "rule_reinforced"
	AuditRuleRejected   AuditEventType = "rule_rejected"

	// Skill candidate events
	AuditCandidateCreated  AuditEventType = "candidate_created"
	AuditCandidateApproved AuditEventType = "candidate_approved"
	AuditCandidateRejected AuditEventType = "candidate_rejected"
	AuditSkillPromoted     AuditEventType = "skill_promoted"

	// Stage events
	AuditStageStart    AuditEventType = "stage_start"
	AuditStageComplete AuditEventType = "stage_complete"
	AuditStageError    AuditEventType = "stage_error"

	// LLM API events
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"
)

// AuditEvent is one structured entry in the audit trail.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	SessionID  string                 `json:"session,omitempty"`
	Target     string                 `json:"target,omitempty"` // rule id, candidate name, stage name, model
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes structured audit events, optionally scoped to a session.
type AuditLogger struct {
	sessionID string
}

// InitAudit initializes the audit logging system
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithSession creates an audit logger scoped to a session
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" && a.sessionID != "" {
		event.SessionID = a.sessionID
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// RuleEvent logs a rule lifecycle transition
func (a *AuditLogger) RuleEvent(eventType AuditEventType, ruleID, source, reason string) {
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    ruleID,
		Success:   eventType != AuditRuleRejected,
		Fields:    map[string]interface{}{"source": source, "reason": reason},
		Message:   fmt.Sprintf("Rule %s: %s (%s)", eventType, ruleID, reason),
	})
}

// CandidateEvent logs a skill candidate transition
func (a *AuditLogger) CandidateEvent(eventType AuditEventType, name, sessionID string) {
	a.Log(AuditEvent{
		EventType: eventType,
		SessionID: sessionID,
		Target:    name,
		Success:   eventType != AuditCandidateRejected,
		Message:   fmt.Sprintf("Candidate %s: %s", eventType, name),
	})
}

// StageEvent logs a pipeline stage boundary
func (a *AuditLogger) StageEvent(stage string, durationMs int64, success bool, errMsg string) {
	eventType := AuditStageComplete
	if !success {
		eventType = AuditStageError
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     stage,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Stage %s (%dms, success=%v)", stage, durationMs, success),
	})
}

// LLMCall logs an LLM API call
func (a *AuditLogger) LLMCall(model string, durationMs int64, success bool, errMsg string) {
	eventType := AuditLLMResponse
	if !success {
		eventType = AuditLLMError
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     model,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("LLM call: %s (%dms, success=%v)", model, durationMs, success),
	})
}
