package game

import (
	"context"

	"github.com/theloomik/Bunker/internal/config"
	"github.com/theloomik/Bunker/internal/errors"
	"go.uber.org/zap"
)

// RecoveryReport 启动恢复结果
type RecoveryReport struct {
	Recovered   int                // 恢复的会话数
	Dropped     int                // 已终态、直接清除的记录数
	Quarantined []QuarantineReport // 被隔离的损坏记录
}

// RecoveryManager 启动恢复
//
// 进程重启后从持久化存储加载全部活动会话并重新注册。
// 损坏的记录就地隔离，不阻断其余会话的恢复；终态会话直接清除。
type RecoveryManager struct {
	manager   *SessionManager
	persister SessionPersister
	cfg       *config.GameConfig
	catalog   *Catalog
	logger    *zap.Logger
}

// NewRecoveryManager 创建恢复管理器
func NewRecoveryManager(manager *SessionManager, persister SessionPersister,
	cfg *config.GameConfig, catalog *Catalog, logger *zap.Logger) *RecoveryManager {

	return &RecoveryManager{
		manager:   manager,
		persister: persister,
		cfg:       cfg,
		catalog:   catalog,
		logger:    logger,
	}
}

// Recover 加载并注册全部可恢复会话
func (r *RecoveryManager) Recover(ctx context.Context) (*RecoveryReport, error) {
	loaded, quarantined, err := r.persister.LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPersistenceFailure, "启动恢复失败")
	}

	report := &RecoveryReport{Quarantined: quarantined}

	for _, data := range loaded {
		if data.Phase.Terminal() {
			// 终态残留，清掉即可
			if err := r.persister.Delete(ctx, data.Key); err != nil {
				r.logger.Warn("终态会话记录清除失败",
					zap.String("session_key", data.Key),
					zap.Error(err))
			}
			report.Dropped++
			continue
		}

		sess := RestoreGameSession(data, r.cfg, r.catalog, r.logger, r.persister)

		// 停在角色生成阶段：生成结果从未落盘，续跑生成推进到公开阶段
		if data.Phase == PhaseCharGen {
			if err := sess.ResumeGeneration(ctx); err != nil {
				r.logger.Warn("角色生成续跑失败，等待主持人重新开始",
					zap.String("session_key", data.Key),
					zap.Error(err))
			}
		}

		r.manager.Adopt(sess)
		report.Recovered++

		r.logger.Info("会话恢复",
			zap.String("session_key", data.Key),
			zap.String("channel", data.ChannelID),
			zap.String("phase", string(data.Phase)),
			zap.Uint64("revision", data.Revision),
			zap.Int("players", len(data.Players)))
	}

	for _, q := range quarantined {
		r.logger.Error("会话记录已隔离",
			zap.String("session_key", q.Key),
			zap.String("reason", q.Reason))
	}

	r.logger.Info("启动恢复完成",
		zap.Int("recovered", report.Recovered),
		zap.Int("dropped", report.Dropped),
		zap.Int("quarantined", len(report.Quarantined)))

	return report, nil
}
