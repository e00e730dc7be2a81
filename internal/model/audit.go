package model

import "time"

// Audit actions recorded in the admin audit log.
const (
	AuditCreateUser        = "CREATE_USER"
	AuditUpdateUser        = "UPDATE_USER"
	AuditDeleteUser        = "DELETE_USER"
	AuditResetPassword     = "RESET_PASSWORD"
	AuditProvisionLogin    = "PROVISION_LOGIN"
	AuditCreateContent     = "CREATE_CONTENT"
	AuditUpdateContent     = "UPDATE_CONTENT"
	AuditDeleteContent     = "DELETE_CONTENT"
	AuditCreateSubmission  = "CREATE_SUBMISSION"
	AuditReviewSubmission  = "REVIEW_SUBMISSION"
	AuditDeleteSubmission  = "DELETE_SUBMISSION"
	AuditClearRateLimit    = "CLEAR_RATE_LIMIT"
	AuditCreateFamilyEntry = "CREATE_FAMILY_MEMBER"
	AuditUpdateFamilyEntry = "UPDATE_FAMILY_MEMBER"
	AuditDeleteFamilyEntry = "DELETE_FAMILY_MEMBER"
)

// AuditEntry is one row of the admin audit log.
type AuditEntry struct {
	ID         string    `json:"id" db:"id"`
	AdminID    *string   `json:"admin_id" db:"admin_id"`
	Action     string    `json:"action" db:"action"`
	TargetType *string   `json:"target_type" db:"target_type"`
	TargetID   *string   `json:"target_id" db:"target_id"`
	Details    JSONDoc   `json:"details" db:"details"`
	IPAddress  *string   `json:"ip_address" db:"ip_address"`
	UserAgent  *string   `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	AdminEmail *string `json:"admin_email,omitempty" db:"admin_email"`
	AdminName  *string `json:"admin_name,omitempty" db:"admin_name"`
}
