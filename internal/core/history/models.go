// Package history records every document processing call.
package history

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status of a processing record
type Status string

const (
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// Record is one document processing call
type Record struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`

	Filename string `json:"filename" gorm:"type:text;not null;index"`
	Type     string `json:"type" gorm:"type:text;not null"`
	Status   Status `json:"status" gorm:"type:text;not null;index"`

	Pages    int `json:"pages"`
	RowCount int `json:"row_count" gorm:"column:row_count"`

	// ErrorKind is marksheet.Kind.String() for failed calls
	ErrorKind string `json:"error_kind,omitempty" gorm:"type:text"`
	Error     string `json:"error,omitempty" gorm:"type:text"`

	Result     datatypes.JSON `json:"result,omitempty"`
	OutputPath string         `json:"output_path,omitempty" gorm:"type:text"`
	DurationMS int64          `json:"duration_ms" gorm:"column:duration_ms"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Record) TableName() string {
	return "marksheet_records"
}

// BeforeCreate assigns the primary key; the sqlite schema has no uuid default
func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Filter narrows List results
type Filter struct {
	Status    Status
	Type      string
	Filename  string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// ListResponse is a page of records
type ListResponse struct {
	Records    []Record `json:"records"`
	TotalCount int64    `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}
