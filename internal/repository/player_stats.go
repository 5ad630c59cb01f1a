package repository

import (
	"context"
	"errors"

	"github.com/theloomik/Bunker/internal/models"
	"gorm.io/gorm"
)

// GameEndResult 单个玩家的终局结果
type GameEndResult struct {
	UserID string
	Won    bool
}

// PlayerStatsRepository 玩家战绩仓储接口
type PlayerStatsRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.PlayerStats, error)
	RecordGameEnd(ctx context.Context, results []GameEndResult) error
	SetCustomName(ctx context.Context, userID string, name string) error
	GetCustomName(ctx context.Context, userID string) (string, error)
	IncrementChannelGames(ctx context.Context, channelID string) error
}

// playerStatsRepo 玩家战绩仓储实现
type playerStatsRepo struct {
	db *gorm.DB
}

// NewPlayerStatsRepository 创建玩家战绩仓储
func NewPlayerStatsRepository(db *gorm.DB) PlayerStatsRepository {
	return &playerStatsRepo{db: db}
}

// FindByUserID 根据玩家ID查找战绩（不存在时返回零值记录）
func (r *playerStatsRepo) FindByUserID(ctx context.Context, userID string) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.PlayerStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// RecordGameEnd 记录终局战绩（事务内读改写，每位玩家恰好一次）
func (r *playerStatsRepo) RecordGameEnd(ctx context.Context, results []GameEndResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, res := range results {
			var stats models.PlayerStats
			err := tx.Where("user_id = ?", res.UserID).First(&stats).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				stats = models.PlayerStats{UserID: res.UserID}
			} else if err != nil {
				return err
			}

			stats.Games++
			if res.Won {
				stats.Wins++
			} else {
				stats.Deaths++
			}

			if err := tx.Save(&stats).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SetCustomName 设置玩家自定义昵称
func (r *playerStatsRepo) SetCustomName(ctx context.Context, userID string, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stats models.PlayerStats
		err := tx.Where("user_id = ?", userID).First(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats = models.PlayerStats{UserID: userID}
		} else if err != nil {
			return err
		}

		stats.CustomName = name
		return tx.Save(&stats).Error
	})
}

// GetCustomName 查询玩家自定义昵称（未设置时返回空串）
func (r *playerStatsRepo) GetCustomName(ctx context.Context, userID string) (string, error) {
	stats, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	return stats.CustomName, nil
}

// IncrementChannelGames 累加频道开局计数
func (r *playerStatsRepo) IncrementChannelGames(ctx context.Context, channelID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stats models.ChannelStats
		err := tx.Where("channel_id = ?", channelID).First(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats = models.ChannelStats{ChannelID: channelID}
		} else if err != nil {
			return err
		}

		stats.GamesPlayed++
		return tx.Save(&stats).Error
	})
}
