package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/types"
)

// UserEventRepo is the durable side of the EventStore contract: append an
// enriched event, query a user's history within an optional time window.
type UserEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, records []*types.EventRecord) ([]*types.EventRecord, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int, startTime, endTime *int64) ([]*types.EventRecord, error)
	CountByUserID(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
}

type userEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserEventRepo(db *gorm.DB, baseLog *logger.Logger) UserEventRepo {
	repoLog := baseLog.With("repo", "UserEventRepo")
	return &userEventRepo{db: db, log: repoLog}
}

func (r *userEventRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.EventRecord) ([]*types.EventRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(records) == 0 {
		return []*types.EventRecord{}, nil
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *userEventRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int, startTime, endTime *int64) ([]*types.EventRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.EventRecord
	if userID == "" {
		return results, nil
	}

	query := transaction.WithContext(ctx).Where("user_id = ?", userID)
	if startTime != nil {
		query = query.Where("occurred_at >= ?", *startTime)
	}
	if endTime != nil {
		query = query.Where("occurred_at <= ?", *endTime)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Order("occurred_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userEventRepo) CountByUserID(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if userID == "" {
		return 0, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.EventRecord{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
