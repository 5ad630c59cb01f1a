package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 基础模型字段
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// GameStateRecord 游戏会话持久化记录表
// 每个会话键一条记录，State 存放完整会话状态的JSON序列化
type GameStateRecord struct {
	BaseModel
	SessionKey       string `gorm:"uniqueIndex;size:64;not null" json:"session_key"`
	ChannelID        string `gorm:"index;size:64" json:"channel_id"`
	Phase            string `gorm:"size:32;not null" json:"phase"`
	Revision         uint64 `gorm:"not null;default:0" json:"revision"`
	State            string `gorm:"type:text;not null" json:"state"`
	Quarantined      bool   `gorm:"default:false;index" json:"quarantined"`
	QuarantineReason string `gorm:"size:500" json:"quarantine_reason,omitempty"`
}

// PlayerStats 玩家累计战绩表
// 独立于单局游戏，仅在游戏正常结束时更新
type PlayerStats struct {
	BaseModel
	UserID     string `gorm:"uniqueIndex;size:64;not null" json:"user_id"`
	CustomName string `gorm:"size:100" json:"custom_name"`
	Games      int    `gorm:"default:0" json:"games"`
	Wins       int    `gorm:"default:0" json:"wins"`
	Deaths     int    `gorm:"default:0" json:"deaths"`
}

// ChannelStats 频道统计表
type ChannelStats struct {
	BaseModel
	ChannelID   string `gorm:"uniqueIndex;size:64;not null" json:"channel_id"`
	GamesPlayed int    `gorm:"default:0" json:"games_played"`
}
