package license

import (
	"time"

	"gorm.io/datatypes"
)

type LicenseStatus string

const (
	StatusActive    LicenseStatus = "ACTIVE"
	StatusSuspended LicenseStatus = "SUSPENDED"
	StatusExpired   LicenseStatus = "EXPIRED"
)

func (s LicenseStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusExpired:
		return true
	}
	return false
}

// License is the per-tenant entitlement record. One row per tenant; mutated
// only by out-of-band administrative action.
type License struct {
	ID                  string         `gorm:"column:id;primaryKey" json:"id"`
	TenantID            string         `gorm:"column:tenant_id;uniqueIndex" json:"tenant_id"`
	MaxApps             int64          `gorm:"column:max_apps" json:"max_apps"`
	MaxExecutionsPer24h int64          `gorm:"column:max_executions_per_24h" json:"max_executions_per_24h"`
	ValidFrom           time.Time      `gorm:"column:valid_from" json:"valid_from"`
	ValidTo             time.Time      `gorm:"column:valid_to" json:"valid_to"`
	Status              LicenseStatus  `gorm:"column:status;size:50" json:"status"`
	Metadata            datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt           time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (License) TableName() string { return "licenses" }

// Application is a client application registered under a license.
type Application struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	LicenseID string    `gorm:"column:license_id;index" json:"license_id"`
	AppName   string    `gorm:"column:app_name;size:255" json:"app_name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Application) TableName() string { return "applications" }

type CreateLicenseRequest struct {
	TenantID            string         `json:"tenant_id" binding:"required"`
	MaxApps             int64          `json:"max_apps" binding:"required,gte=1"`
	MaxExecutionsPer24h int64          `json:"max_executions_per_24h" binding:"required,gte=1"`
	ValidFrom           time.Time      `json:"valid_from" binding:"required"`
	ValidTo             time.Time      `json:"valid_to" binding:"required"`
	Status              LicenseStatus  `json:"status"`
	Metadata            datatypes.JSON `json:"metadata"`
}

type CreateLicenseResponse struct {
	License *License `json:"license"`
	Token   string   `json:"token"`
}

type RegisterApplicationRequest struct {
	AppName string `json:"app_name" binding:"required,min=1,max=255"`
}

type RegisterApplicationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	AppID   string `json:"app_id,omitempty"`
}

type StartJobRequest struct {
	AppName string `json:"app_name" binding:"required,min=1,max=255"`
}

type StartJobResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
