package domain

import "time"

// AuditEventType names an identity workflow outcome.
type AuditEventType string

const (
	AuditAccountRegistered   AuditEventType = "account.registered"
	AuditRegistrationFailed  AuditEventType = "registration.failed"
	AuditRoleAssigned        AuditEventType = "role.assigned"
	AuditLoginSucceeded      AuditEventType = "login.succeeded"
	AuditLoginFailed         AuditEventType = "login.failed"
	AuditPasswordChanged     AuditEventType = "password.changed"
	AuditPasswordChangeFail  AuditEventType = "password.change_failed"
	AuditLogout              AuditEventType = "logout"
	AuditAccountDeleted      AuditEventType = "account.deleted"
	AuditAccountDeleteFailed AuditEventType = "account.delete_failed"
)

// AuditEvent is an append-only record of something that happened to an account.
type AuditEvent struct {
	ID         string         `json:"id,omitempty"`
	Type       AuditEventType `json:"type"`
	Email      string         `json:"email"`
	AccountID  string         `json:"account_id,omitempty"`
	Success    bool           `json:"success"`
	Reason     string         `json:"reason,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
