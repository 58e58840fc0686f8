package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

var ErrNotFound = errors.New("history record not found")

// Repository persists processing records
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Start creates a processing record for filename
func (r *Repository) Start(ctx context.Context, filename string, docType marksheet.DocumentType) (*Record, error) {
	rec := &Record{
		Filename: filename,
		Type:     string(docType),
		Status:   StatusProcessing,
	}
	if err := r.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Repository) Create(ctx context.Context, rec *Record) error {
	if rec.Status == "" {
		rec.Status = StatusProcessing
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create history record: %w", err)
	}
	return nil
}

// MarkProcessed stores the extracted rows of a successful call
func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID, res *marksheet.Result, outputPath string, took time.Duration) error {
	payload, err := json.Marshal(res.Records())
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	return r.update(ctx, id, map[string]interface{}{
		"status":      StatusProcessed,
		"pages":       res.Pages,
		"row_count":   len(res.Rows),
		"result":      datatypes.JSON(payload),
		"output_path": outputPath,
		"duration_ms": took.Milliseconds(),
		"error_kind":  "",
		"error":       "",
	})
}

// MarkFailed stores the failure and its kind
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error, took time.Duration) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.update(ctx, id, map[string]interface{}{
		"status":      StatusFailed,
		"error_kind":  marksheet.KindOf(cause).String(),
		"error":       msg,
		"duration_ms": took.Milliseconds(),
	})
}

func (r *Repository) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	tx := r.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return fmt.Errorf("failed to update history record: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	return &rec, nil
}

// ExistsProcessed reports whether filename already has a successful record
func (r *Repository) ExistsProcessed(ctx context.Context, filename string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Record{}).
		Where("filename = ? AND status = ?", filename, StatusProcessed).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check history: %w", err)
	}
	return count > 0, nil
}

// List returns records newest first
func (r *Repository) List(ctx context.Context, filter Filter) (*ListResponse, error) {
	query := r.db.WithContext(ctx).Model(&Record{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Filename != "" {
		query = query.Where("filename = ?", filter.Filename)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	query = query.Session(&gorm.Session{})

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count history records: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	offset := (filter.Page - 1) * filter.PageSize

	var records []Record
	if err := query.
		Order("created_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list history records: %w", err)
	}

	totalPages := int(totalCount) / filter.PageSize
	if int(totalCount)%filter.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Records:    records,
		TotalCount: totalCount,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}
