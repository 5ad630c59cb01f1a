package game

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/theloomik/Bunker/internal/config"
	"github.com/theloomik/Bunker/internal/errors"
	"github.com/theloomik/Bunker/internal/repository"
	"go.uber.org/zap"
)

// SessionManager 会话管理器
//
// 持有全部活动会话，并维护频道到会话的唯一映射（一个频道同一时间只有一局游戏）。
// 管理器自身的锁只保护注册表；会话内部状态由各会话的锁保护。
type SessionManager struct {
	mu        sync.RWMutex
	sessions  map[string]*GameSession // 会话键 -> 会话
	byChannel map[string]string       // 频道ID -> 会话键

	cfg       *config.GameConfig
	catalog   *Catalog
	logger    *zap.Logger
	persister SessionPersister
	statsRepo repository.PlayerStatsRepository
}

// NewSessionManager 创建会话管理器
func NewSessionManager(cfg *config.GameConfig, catalog *Catalog, persister SessionPersister,
	statsRepo repository.PlayerStatsRepository, logger *zap.Logger) *SessionManager {

	return &SessionManager{
		sessions:  make(map[string]*GameSession),
		byChannel: make(map[string]string),
		cfg:       cfg,
		catalog:   catalog,
		logger:    logger,
		persister: persister,
		statsRepo: statsRepo,
	}
}

// CreateSession 创建新会话（主持人自动入座）
// capacity 为0时推迟到开局按人数折算
func (m *SessionManager) CreateSession(ctx context.Context, channelID, hostID, hostName string, capacity int) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingKey, ok := m.byChannel[channelID]; ok {
		if existing := m.sessions[existingKey]; existing != nil && !existing.Phase().Terminal() {
			return nil, errors.Newf(errors.ErrSessionExists, "channel=%s", channelID)
		}
		// 残留的终态会话直接顶掉
		delete(m.sessions, m.byChannel[channelID])
		delete(m.byChannel, channelID)
	}

	key := uuid.NewString()
	name := m.resolveName(ctx, hostID, hostName)

	sess, err := NewGameSession(key, channelID, hostID, name, capacity, m.cfg, m.catalog, m.logger, m.persister)
	if err != nil {
		return nil, err
	}

	// 初始状态落盘，保证创建即可恢复
	if m.persister != nil {
		if err := m.persister.Save(ctx, sess.Data()); err != nil {
			return nil, errors.Wrap(err, errors.ErrPersistenceFailure, "会话初始状态落盘失败")
		}
	}

	m.sessions[key] = sess
	m.byChannel[channelID] = key

	m.logger.Info("会话创建",
		zap.String("session_key", key),
		zap.String("channel", channelID),
		zap.String("host", hostID),
		zap.Int("capacity", capacity))

	return sess.SnapshotFor(hostID), nil
}

// Adopt 注册已恢复的会话（启动恢复流程使用）
func (m *SessionManager) Adopt(sess *GameSession) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := sess.Data()
	m.sessions[data.Key] = sess
	if data.ChannelID != "" {
		m.byChannel[data.ChannelID] = data.Key
	}
}

// GetSession 按会话键查找
func (m *SessionManager) GetSession(key string) (*GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[key]
	if !ok {
		return nil, errors.Newf(errors.ErrSessionNotFound, "key=%s", key)
	}
	return sess, nil
}

// GetSessionByChannel 按频道查找
func (m *SessionManager) GetSessionByChannel(channelID string) (*GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.byChannel[channelID]
	if !ok {
		return nil, errors.Newf(errors.ErrSessionNotFound, "channel=%s", channelID)
	}
	sess, ok := m.sessions[key]
	if !ok {
		return nil, errors.Newf(errors.ErrSessionNotFound, "channel=%s", channelID)
	}
	return sess, nil
}

// SessionCount 活动会话数
func (m *SessionManager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// JoinSession 玩家加入会话
func (m *SessionManager) JoinSession(ctx context.Context, key, playerID, name string) (*Snapshot, error) {
	sess, err := m.GetSession(key)
	if err != nil {
		return nil, err
	}
	return sess.Join(ctx, playerID, m.resolveName(ctx, playerID, name))
}

// LeaveSession 玩家离开会话；大厅清空后会话随之销毁
func (m *SessionManager) LeaveSession(ctx context.Context, key, playerID string) (*Snapshot, error) {
	sess, err := m.GetSession(key)
	if err != nil {
		return nil, err
	}

	snap, err := sess.Leave(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if sess.Phase().Terminal() {
		m.cleanup(ctx, sess)
	}
	return snap, nil
}

// StartGame 主持人开始游戏
func (m *SessionManager) StartGame(ctx context.Context, key, callerID string) (*Snapshot, error) {
	sess, err := m.GetSession(key)
	if err != nil {
		return nil, err
	}

	snap, err := sess.Start(ctx, callerID)
	if err != nil {
		return nil, err
	}

	// 频道开局计数只做尽力记录，不影响游戏流程
	if m.statsRepo != nil {
		data := sess.Data()
		if err := m.statsRepo.IncrementChannelGames(ctx, data.ChannelID); err != nil {
			m.logger.Warn("频道开局计数更新失败",
				zap.String("channel", data.ChannelID),
				zap.Error(err))
		}
	}

	return snap, nil
}

// RevealSlot 公开角色卡槽位
func (m *SessionManager) RevealSlot(ctx context.Context, key, callerID, playerID string, slot CardSlot) (*Snapshot, error) {
	sess, err := m.GetSession(key)
	if err != nil {
		return nil, err
	}
	return sess.Reveal(ctx, callerID, playerID, slot)
}

// StartVote 主持人开启投票轮
func (m *SessionManager) StartVote(ctx context.Context, key, callerID string) (*Snapshot, error) {
	sess, err := m.GetSession(key)
	if err != nil {
		return nil, err
	}
	return sess.StartVote(ctx, callerID)
}

// CastBallot 玩家投票；自动结算触发终局时顺带记录战绩
func (m *SessionManager) CastBallot(ctx context.Context, key, voterID, targetID string) (*BallotAck, error) {
	sess, err := m.GetSession(key)
	if err != nil {
		return nil, err
	}

	ack, err := sess.CastBallot(ctx, voterID, targetID)
	if err != nil {
		return nil, err
	}

	if ack.AutoClosed && ack.Outcome != nil && ack.Outcome.GameOver {
		m.recordGameEnd(ctx, sess)
	}
	return ack, nil
}

// CloseVote 主持人结算投票轮；触发终局时记录战绩
func (m *SessionManager) CloseVote(ctx context.Context, key, callerID string) (*RoundOutcome, error) {
	sess, err := m.GetSession(key)
	if err != nil {
		return nil, err
	}

	outcome, err := sess.CloseVote(ctx, callerID)
	if err != nil {
		return nil, err
	}

	if outcome.GameOver {
		m.recordGameEnd(ctx, sess)
	}
	return outcome, nil
}

// AcknowledgeEnd 主持人确认终局，销毁会话
func (m *SessionManager) AcknowledgeEnd(ctx context.Context, key, callerID string) error {
	sess, err := m.GetSession(key)
	if err != nil {
		return err
	}

	if err := sess.AcknowledgeEnd(ctx, callerID); err != nil {
		return err
	}

	// 战绩兜底：结算与确认之间进程重启过的会话在这里补记
	m.recordGameEnd(ctx, sess)

	m.cleanup(ctx, sess)
	return nil
}

// CancelSession 主持人中止游戏并销毁会话（不记录战绩）
func (m *SessionManager) CancelSession(ctx context.Context, key, callerID string) error {
	sess, err := m.GetSession(key)
	if err != nil {
		return err
	}

	if err := sess.Cancel(ctx, callerID); err != nil {
		return err
	}

	m.cleanup(ctx, sess)
	return nil
}

// LastOutcome 查询最近一轮投票的结算结果
func (m *SessionManager) LastOutcome(key string) (*RoundOutcome, error) {
	sess, err := m.GetSession(key)
	if err != nil {
		return nil, err
	}

	outcome := sess.LastOutcome()
	if outcome == nil {
		return nil, errors.Newf(errors.ErrNotFound, "会话 %s 还没有结算过投票", key)
	}
	return outcome, nil
}

// GetSnapshot 构建按观察者裁剪的会话快照
func (m *SessionManager) GetSnapshot(key, viewerID string) (*Snapshot, error) {
	sess, err := m.GetSession(key)
	if err != nil {
		return nil, err
	}
	return sess.SnapshotFor(viewerID), nil
}

// SetCustomName 设置玩家自定义昵称
func (m *SessionManager) SetCustomName(ctx context.Context, userID, name string) error {
	if m.statsRepo == nil {
		return errors.New(errors.ErrInternal)
	}
	return m.statsRepo.SetCustomName(ctx, userID, name)
}

// GetPlayerStats 查询玩家战绩
func (m *SessionManager) GetPlayerStats(ctx context.Context, userID string) (*PlayerStatsView, error) {
	if m.statsRepo == nil {
		return nil, errors.New(errors.ErrInternal)
	}

	stats, err := m.statsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPersistenceFailure, "战绩查询失败")
	}

	return &PlayerStatsView{
		UserID:     stats.UserID,
		CustomName: stats.CustomName,
		Games:      stats.Games,
		Wins:       stats.Wins,
		Deaths:     stats.Deaths,
	}, nil
}

// PlayerStatsView 玩家战绩视图
type PlayerStatsView struct {
	UserID     string `json:"user_id"`
	CustomName string `json:"custom_name,omitempty"`
	Games      int    `json:"games"`
	Wins       int    `json:"wins"`
	Deaths     int    `json:"deaths"`
}

// resolveName 昵称解析：自定义昵称优先，未设置时用调用方提供的名字
func (m *SessionManager) resolveName(ctx context.Context, userID, fallback string) string {
	if m.statsRepo == nil {
		return fallback
	}
	custom, err := m.statsRepo.GetCustomName(ctx, userID)
	if err != nil {
		m.logger.Warn("昵称查询失败", zap.String("user", userID), zap.Error(err))
		return fallback
	}
	if custom != "" {
		return custom
	}
	return fallback
}

// recordGameEnd 终局战绩：幸存者记胜场，其余记阵亡，每位玩家恰好一次
// 写入后在会话状态里落下标记，重复调用是空操作
func (m *SessionManager) recordGameEnd(ctx context.Context, sess *GameSession) {
	if m.statsRepo == nil {
		return
	}

	data := sess.Data()
	if data.StatsRecorded {
		return
	}

	results := make([]repository.GameEndResult, 0, len(data.Players))
	for _, p := range data.Players {
		results = append(results, repository.GameEndResult{
			UserID: p.UserID,
			Won:    p.Alive,
		})
	}

	if err := m.statsRepo.RecordGameEnd(ctx, results); err != nil {
		m.logger.Error("终局战绩写入失败",
			zap.String("session_key", data.Key),
			zap.Error(err))
		return
	}

	if err := sess.MarkStatsRecorded(ctx); err != nil {
		m.logger.Warn("终局战绩标记落盘失败",
			zap.String("session_key", data.Key),
			zap.Error(err))
	}

	m.logger.Info("终局战绩已记录",
		zap.String("session_key", data.Key),
		zap.Int("players", len(results)),
		zap.Int("survivors", data.AliveCount()))
}

// cleanup 从注册表摘除会话并删除持久化记录
func (m *SessionManager) cleanup(ctx context.Context, sess *GameSession) {
	data := sess.Data()

	m.mu.Lock()
	delete(m.sessions, data.Key)
	if m.byChannel[data.ChannelID] == data.Key {
		delete(m.byChannel, data.ChannelID)
	}
	m.mu.Unlock()

	if m.persister != nil {
		if err := m.persister.Delete(ctx, data.Key); err != nil {
			m.logger.Warn("会话记录删除失败",
				zap.String("session_key", data.Key),
				zap.Error(err))
		}
	}

	m.logger.Info("会话销毁",
		zap.String("session_key", data.Key),
		zap.String("channel", data.ChannelID),
		zap.String("phase", string(data.Phase)))
}
