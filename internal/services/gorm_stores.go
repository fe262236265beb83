package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

// GormSubmissionStore keeps finished batches in the submissions table
type GormSubmissionStore struct {
	db *gorm.DB
}

// NewGormSubmissionStore creates a submission store over db
func NewGormSubmissionStore(db *gorm.DB) *GormSubmissionStore {
	return &GormSubmissionStore{db: db}
}

// SaveSubmission writes result, replacing an earlier save of the same id
func (s *GormSubmissionStore) SaveSubmission(ctx context.Context, result *models.BatchResult) error {
	if result.SubmissionID == "" {
		return errors.New("submission id is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	row := models.Submission{
		ID:          result.SubmissionID,
		Mode:        result.Mode,
		State:       result.State,
		FinalPayout: result.FinalPayout.String(),
		Payload:     string(payload),
		CreatedAt:   result.CreatedAt,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "final_payout", "payload"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save submission %s: %w", result.SubmissionID, err)
	}
	return nil
}

// GetSubmission loads a saved batch
func (s *GormSubmissionStore) GetSubmission(ctx context.Context, id string) (*models.BatchResult, error) {
	var row models.Submission
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load submission %s: %w", id, err)
	}

	var result models.BatchResult
	if err := json.Unmarshal([]byte(row.Payload), &result); err != nil {
		return nil, fmt.Errorf("decode submission %s: %w", id, err)
	}
	return &result, nil
}

// GormCacheStore is the persistent tier of the resolution cache
type GormCacheStore struct {
	db *gorm.DB
}

// NewGormCacheStore creates a cache store over db
func NewGormCacheStore(db *gorm.DB) *GormCacheStore {
	return &GormCacheStore{db: db}
}

// Load returns the entry for key. An undecodable payload is deleted and
// reported as ErrCacheCorruption.
func (s *GormCacheStore) Load(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	var row models.ResolutionCacheRecord
	err := s.db.WithContext(ctx).Where(&models.ResolutionCacheRecord{Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("load cache entry: %w", err)
	}

	var result models.ResolutionResult
	if err := json.Unmarshal([]byte(row.Payload), &result); err != nil {
		if derr := s.db.WithContext(ctx).Delete(&models.ResolutionCacheRecord{Key: key}).Error; derr != nil {
			return models.CacheEntry{}, false, fmt.Errorf("%w: %q: %v (delete failed: %v)", ErrCacheCorruption, key, err, derr)
		}
		return models.CacheEntry{}, false, fmt.Errorf("%w: %q: %v", ErrCacheCorruption, key, err)
	}
	return models.CacheEntry{Key: row.Key, Result: result, InsertedAt: row.InsertedAt}, true, nil
}

// Save upserts an entry
func (s *GormCacheStore) Save(ctx context.Context, entry models.CacheEntry) error {
	payload, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	row := models.ResolutionCacheRecord{Key: entry.Key, Payload: string(payload), InsertedAt: entry.InsertedAt}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// DeleteBefore removes entries inserted before cutoff
func (s *GormCacheStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("inserted_at < ?", cutoff).Delete(&models.ResolutionCacheRecord{})
	return result.RowsAffected, result.Error
}
