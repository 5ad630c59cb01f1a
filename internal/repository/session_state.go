package repository

import (
	"context"
	"errors"

	"github.com/theloomik/Bunker/internal/models"
	"gorm.io/gorm"
)

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = gorm.ErrRecordNotFound

// SessionStateRepository 会话状态仓储接口
type SessionStateRepository interface {
	Upsert(ctx context.Context, rec *models.GameStateRecord) error
	FindByKey(ctx context.Context, sessionKey string) (*models.GameStateRecord, error)
	FindAllActive(ctx context.Context) ([]*models.GameStateRecord, error)
	Quarantine(ctx context.Context, sessionKey string, reason string) error
	Delete(ctx context.Context, sessionKey string) error
}

// sessionStateRepo 会话状态仓储实现
type sessionStateRepo struct {
	db *gorm.DB
}

// NewSessionStateRepository 创建会话状态仓储
func NewSessionStateRepository(db *gorm.DB) SessionStateRepository {
	return &sessionStateRepo{db: db}
}

// Upsert 写入或更新会话记录（存在则更新，不存在则插入）
func (r *sessionStateRepo) Upsert(ctx context.Context, rec *models.GameStateRecord) error {
	var existing models.GameStateRecord
	err := r.db.WithContext(ctx).
		Where("session_key = ?", rec.SessionKey).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(rec).Error
	}
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&models.GameStateRecord{}).
		Where("session_key = ?", rec.SessionKey).
		Updates(map[string]interface{}{
			"channel_id": rec.ChannelID,
			"phase":      rec.Phase,
			"revision":   rec.Revision,
			"state":      rec.State,
		}).Error
}

// FindByKey 根据会话键查找
func (r *sessionStateRepo) FindByKey(ctx context.Context, sessionKey string) (*models.GameStateRecord, error) {
	var rec models.GameStateRecord
	err := r.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindAllActive 查找所有未隔离的会话记录（按创建顺序）
func (r *sessionStateRepo) FindAllActive(ctx context.Context) ([]*models.GameStateRecord, error) {
	var recs []*models.GameStateRecord
	err := r.db.WithContext(ctx).
		Where("quarantined = ?", false).
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Quarantine 隔离损坏的会话记录（保留不删除，供事后排查）
func (r *sessionStateRepo) Quarantine(ctx context.Context, sessionKey string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.GameStateRecord{}).
		Where("session_key = ?", sessionKey).
		Updates(map[string]interface{}{
			"quarantined":       true,
			"quarantine_reason": reason,
		}).Error
}

// Delete 删除会话记录
// 物理删除：session_key 带唯一索引，软删除会挡住同键重建
func (r *sessionStateRepo) Delete(ctx context.Context, sessionKey string) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Where("session_key = ?", sessionKey).
		Delete(&models.GameStateRecord{}).Error
}
