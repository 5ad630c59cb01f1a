package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/theloomik/Bunker/internal/config"
	"github.com/theloomik/Bunker/internal/errors"
	"go.uber.org/zap"
)

// GameSession 单局游戏的阶段状态机
//
// 所有写操作持有会话锁串行执行，持久化在锁内同步完成；
// 落盘失败时内存状态回滚到最近一次成功落盘的版本。
// 快照读取不取写锁，始终基于最近落盘版本。
type GameSession struct {
	mu      sync.RWMutex
	data    *SessionData
	durable *SessionData // 最近一次成功落盘的状态

	cfg       *config.GameConfig
	catalog   *Catalog
	logger    *zap.Logger
	voting    *VotingEngine
	persister SessionPersister
	rng       *rand.Rand

	lastOutcome *RoundOutcome
}

// NewGameSession 创建新会话（大厅阶段，主持人自动入座）
func NewGameSession(key, channelID, hostID, hostName string, capacity int,
	cfg *config.GameConfig, catalog *Catalog, logger *zap.Logger, persister SessionPersister) (*GameSession, error) {

	// 容量为0表示推迟到开局时按人数折算
	if capacity != 0 && (capacity < 2 || capacity >= cfg.MaxCapacity || capacity >= cfg.MaxPlayers) {
		return nil, errors.Newf(errors.ErrInvalidCapacity,
			"capacity=%d，允许范围 [2, %d)", capacity, minInt(cfg.MaxCapacity, cfg.MaxPlayers))
	}

	now := time.Now()
	data := &SessionData{
		Key:       key,
		ChannelID: channelID,
		HostID:    hostID,
		Capacity:  capacity,
		Phase:     PhaseLobby,
		Players: []*Player{
			{UserID: hostID, Name: hostName, Alive: true},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	return &GameSession{
		data:      data,
		durable:   data.Clone(),
		cfg:       cfg,
		catalog:   catalog,
		logger:    logger,
		voting:    NewVotingEngine(),
		persister: persister,
		rng:       rand.New(rand.NewSource(now.UnixNano())),
	}, nil
}

// RestoreGameSession 从持久化状态恢复会话
func RestoreGameSession(data *SessionData, cfg *config.GameConfig, catalog *Catalog,
	logger *zap.Logger, persister SessionPersister) *GameSession {

	return &GameSession{
		data:      data,
		durable:   data.Clone(),
		cfg:       cfg,
		catalog:   catalog,
		logger:    logger,
		voting:    NewVotingEngine(),
		persister: persister,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Key 会话键
func (s *GameSession) Key() string {
	return s.data.Key
}

// Phase 当前阶段（基于最近落盘版本）
func (s *GameSession) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durable.Phase
}

// Data 导出最近落盘状态的深拷贝
func (s *GameSession) Data() *SessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durable.Clone()
}

// LastOutcome 最近一轮投票的结算结果
func (s *GameSession) LastOutcome() *RoundOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOutcome
}

// commit 递增版本号并同步落盘；失败时回滚内存状态
func (s *GameSession) commit(ctx context.Context) error {
	s.data.Revision++
	s.data.UpdatedAt = time.Now()

	if s.persister != nil {
		if err := s.persister.Save(ctx, s.data); err != nil {
			s.logger.Error("会话落盘失败，回滚内存状态",
				zap.String("session_key", s.data.Key),
				zap.Uint64("revision", s.data.Revision),
				zap.Error(err))
			s.data = s.durable.Clone()
			return errors.Wrap(err, errors.ErrPersistenceFailure)
		}
	}

	s.durable = s.data.Clone()
	return nil
}

// requireHost 主持人权限检查
func (s *GameSession) requireHost(callerID string) error {
	if callerID != s.data.HostID {
		return errors.Newf(errors.ErrUnauthorized, "caller=%s", callerID)
	}
	return nil
}

// requirePhase 阶段合法性检查
func (s *GameSession) requirePhase(allowed ...Phase) error {
	for _, p := range allowed {
		if s.data.Phase == p {
			return nil
		}
	}
	return errors.Newf(errors.ErrPhaseViolation, "当前阶段: %s", s.data.Phase)
}

// Join 加入大厅
func (s *GameSession) Join(ctx context.Context, playerID, name string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(PhaseLobby); err != nil {
		return nil, err
	}
	if s.data.FindPlayer(playerID) != nil {
		return nil, errors.Newf(errors.ErrDuplicatePlayer, "player=%s", playerID)
	}
	if len(s.data.Players) >= s.cfg.MaxPlayers {
		return nil, errors.Newf(errors.ErrLobbyFull, "座位上限 %d", s.cfg.MaxPlayers)
	}

	s.data.Players = append(s.data.Players, &Player{
		UserID: playerID,
		Name:   name,
		Alive:  true,
	})

	if err := s.commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("玩家加入",
		zap.String("session_key", s.data.Key),
		zap.String("player", playerID),
		zap.Int("roster", len(s.data.Players)))

	return buildSnapshot(s.durable, playerID), nil
}

// Leave 离开大厅
// 主持人离开时席位顺延给下一位加入者；名单清空则会话直接结束
func (s *GameSession) Leave(ctx context.Context, playerID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(PhaseLobby); err != nil {
		return nil, err
	}
	if s.data.FindPlayer(playerID) == nil {
		return nil, errors.Newf(errors.ErrPlayerNotFound, "player=%s", playerID)
	}

	remaining := s.data.Players[:0]
	for _, p := range s.data.Players {
		if p.UserID != playerID {
			remaining = append(remaining, p)
		}
	}
	s.data.Players = remaining

	if len(s.data.Players) == 0 {
		// 人去楼空，会话作废
		s.data.Phase = PhaseEnded
	} else if playerID == s.data.HostID {
		s.data.HostID = s.data.Players[0].UserID
		s.logger.Info("主持人席位转移",
			zap.String("session_key", s.data.Key),
			zap.String("new_host", s.data.HostID))
	}

	if err := s.commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("玩家离开",
		zap.String("session_key", s.data.Key),
		zap.String("player", playerID),
		zap.Int("roster", len(s.data.Players)))

	return buildSnapshot(s.durable, playerID), nil
}

// Start 开始游戏：生成剧情与全部角色卡
// 经过角色生成阶段后立即进入公开阶段，两个阶段各自落盘一次。
// 停在角色生成阶段的会话（上次生成提交失败）可由主持人重新调用续跑生成。
func (s *GameSession) Start(ctx context.Context, callerID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(PhaseLobby, PhaseCharGen); err != nil {
		return nil, err
	}
	if err := s.requireHost(callerID); err != nil {
		return nil, err
	}

	if s.data.Phase == PhaseLobby {
		roster := len(s.data.Players)
		capacity := s.data.Capacity
		if capacity == 0 {
			capacity = DefaultCapacity(roster)
		}
		if roster < capacity+1 || roster < s.cfg.MinPlayers {
			return nil, errors.Newf(errors.ErrNotEnoughPlayers,
				"当前 %d 人，至少需要 %d 人", roster, maxInt(capacity+1, s.cfg.MinPlayers))
		}
		s.data.Capacity = capacity

		// 进入角色生成阶段（独立落盘，便于恢复时定位）
		s.data.Phase = PhaseCharGen
		if err := s.commit(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.finishGenerationLocked(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("游戏开始",
		zap.String("session_key", s.data.Key),
		zap.Int("players", len(s.data.Players)),
		zap.Int("capacity", s.data.Capacity))

	return buildSnapshot(s.durable, callerID), nil
}

// finishGenerationLocked 生成剧情与全部角色卡并推进到公开阶段
// 调用方必须持有写锁且阶段为角色生成
func (s *GameSession) finishGenerationLocked(ctx context.Context) error {
	charGen := NewCharacterGenerator(s.catalog, s.rng)
	loreGen := NewLoreGenerator(s.catalog, s.rng)

	s.data.Lore = loreGen.Generate()
	for _, p := range s.data.Players {
		p.Cards = charGen.Generate()
		p.Opened = NewLedger()
	}

	s.data.Phase = PhaseReveal
	return s.commit(ctx)
}

// ResumeGeneration 续跑停在角色生成阶段的会话
// 生成结果从未落盘过，重启后重新生成一份即可
func (s *GameSession) ResumeGeneration(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(PhaseCharGen); err != nil {
		return err
	}
	return s.finishGenerationLocked(ctx)
}

// Reveal 公开一个角色卡槽位（单向，不可撤销）
func (s *GameSession) Reveal(ctx context.Context, callerID, playerID string, slot CardSlot) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(PhaseReveal, PhaseVoting); err != nil {
		return nil, err
	}
	if callerID != playerID {
		return nil, errors.Newf(errors.ErrNotOwner, "caller=%s player=%s", callerID, playerID)
	}
	if !ValidSlot(slot) {
		return nil, errors.Newf(errors.ErrInvalidSlot, "slot=%s", slot)
	}

	p := s.data.FindPlayer(playerID)
	if p == nil {
		return nil, errors.Newf(errors.ErrPlayerNotFound, "player=%s", playerID)
	}
	if !p.Alive {
		return nil, errors.Newf(errors.ErrNotEligible, "玩家已被淘汰")
	}
	if p.Opened[slot] {
		// 重复公开按错误拒绝，让客户端能识别重复提交
		return nil, errors.Newf(errors.ErrAlreadyRevealed, "slot=%s", slot)
	}

	p.Opened[slot] = true

	if err := s.commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("属性公开",
		zap.String("session_key", s.data.Key),
		zap.String("player", playerID),
		zap.String("slot", string(slot)))

	return buildSnapshot(s.durable, callerID), nil
}

// StartVote 开启新一轮投票
// 上一轮流局时自动进入加赛模式
func (s *GameSession) StartVote(ctx context.Context, callerID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(PhaseReveal, PhaseVoting); err != nil {
		return nil, err
	}
	if err := s.requireHost(callerID); err != nil {
		return nil, err
	}
	if s.data.Round != nil {
		return nil, errors.Newf(errors.ErrVoteInProgress, "round=%d", s.data.Round.Number)
	}

	mode := ModeNormal
	if s.data.DoubleElimNext {
		mode = ModeDoubleElim
	}

	var eligible []string
	for _, p := range s.data.AlivePlayers() {
		eligible = append(eligible, p.UserID)
	}

	s.data.RoundsHeld++
	s.data.Round = &VoteRound{
		Number:   s.data.RoundsHeld,
		Mode:     mode,
		Eligible: eligible,
		Ballots:  make(map[string]string),
	}
	s.data.Phase = PhaseVoting

	if err := s.commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("投票开始",
		zap.String("session_key", s.data.Key),
		zap.Int("round", s.data.RoundsHeld),
		zap.String("mode", string(mode)),
		zap.Int("eligible", len(eligible)))

	return buildSnapshot(s.durable, callerID), nil
}

// CastBallot 投票（关轮前重复投票覆盖前一票）
// 配置允许时，最后一张票会自动触发结算
func (s *GameSession) CastBallot(ctx context.Context, voterID, targetID string) (*BallotAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(PhaseVoting); err != nil {
		return nil, err
	}
	if s.data.Round == nil {
		return nil, errors.New(errors.ErrNoActiveRound)
	}

	voter := s.data.FindPlayer(voterID)
	if voter == nil || !voter.Alive || !s.data.Round.IsEligible(voterID) {
		return nil, errors.Newf(errors.ErrNotEligible, "voter=%s", voterID)
	}
	if voterID == targetID {
		return nil, errors.New(errors.ErrSelfVote)
	}
	target := s.data.FindPlayer(targetID)
	if target == nil || !target.Alive {
		return nil, errors.Newf(errors.ErrInvalidTarget, "target=%s", targetID)
	}

	s.data.Round.Ballots[voterID] = targetID

	ack := &BallotAck{
		Cast:     len(s.data.Round.Ballots),
		Eligible: len(s.data.Round.Eligible),
	}

	// 全员投票后自动结算
	if s.cfg.AutoCloseVotes && s.data.Round.AllCast() {
		outcome, err := s.closeRoundLocked(ctx)
		if err != nil {
			return nil, err
		}
		ack.AutoClosed = true
		ack.Outcome = outcome
		return ack, nil
	}

	if err := s.commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Debug("收到选票",
		zap.String("session_key", s.data.Key),
		zap.String("voter", voterID),
		zap.Int("cast", ack.Cast),
		zap.Int("eligible", ack.Eligible))

	return ack, nil
}

// CloseVote 主持人结算当前投票轮
func (s *GameSession) CloseVote(ctx context.Context, callerID string) (*RoundOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHost(callerID); err != nil {
		return nil, err
	}
	if s.data.Phase != PhaseVoting || s.data.Round == nil {
		return nil, errors.New(errors.ErrNoActiveRound)
	}

	return s.closeRoundLocked(ctx)
}

// closeRoundLocked 结算当前轮并推进状态机（调用方必须持有写锁）
func (s *GameSession) closeRoundLocked(ctx context.Context) (*RoundOutcome, error) {
	round := s.data.Round

	var aliveIDs []string
	for _, p := range s.data.AlivePlayers() {
		aliveIDs = append(aliveIDs, p.UserID)
	}

	outcome := s.voting.Resolve(TallyInput{
		Round:    round.Number,
		Mode:     round.Mode,
		Eligible: round.Eligible,
		Ballots:  round.Ballots,
		Alive:    aliveIDs,
		Capacity: s.data.Capacity,
	})

	switch outcome.Kind {
	case OutcomeDecisive:
		for _, id := range outcome.Eliminated {
			p := s.data.FindPlayer(id)
			p.Alive = false
			p.EliminatedRound = round.Number
		}
		s.data.Round = nil
		s.data.DoubleElimNext = false
		if s.data.AliveCount() == s.data.Capacity {
			s.data.Phase = PhaseEnding
		}

	case OutcomeInconclusive:
		// 流局：无人淘汰，下一轮强制加赛
		s.data.Round = nil
		s.data.DoubleElimNext = true

	case OutcomeStalemate:
		// 僵局：保持加赛模式，等主持人重新开轮或裁决
		s.data.Round = nil
		s.data.DoubleElimNext = true
	}

	if err := s.commit(ctx); err != nil {
		return nil, err
	}

	s.lastOutcome = outcome

	s.logger.Info("投票结算",
		zap.String("session_key", s.data.Key),
		zap.Int("round", outcome.Round),
		zap.String("kind", string(outcome.Kind)),
		zap.Strings("eliminated", outcome.Eliminated),
		zap.Bool("truncated", outcome.Truncated),
		zap.Bool("game_over", outcome.GameOver))

	return outcome, nil
}

// MarkStatsRecorded 标记终局战绩已写入，防止确认终局时重复记账
func (s *GameSession) MarkStatsRecorded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.StatsRecorded {
		return nil
	}
	s.data.StatsRecorded = true
	return s.commit(ctx)
}

// AcknowledgeEnd 主持人确认终局，会话进入终态
func (s *GameSession) AcknowledgeEnd(ctx context.Context, callerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(PhaseEnding); err != nil {
		return err
	}
	if err := s.requireHost(callerID); err != nil {
		return err
	}

	s.data.Phase = PhaseEnded
	return s.commit(ctx)
}

// Cancel 主持人中止游戏：任何非终态阶段可用，废弃进行中的投票
func (s *GameSession) Cancel(ctx context.Context, callerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.Phase.Terminal() {
		return errors.Newf(errors.ErrPhaseViolation, "会话已结束")
	}
	if err := s.requireHost(callerID); err != nil {
		return err
	}

	s.data.Round = nil
	s.data.Phase = PhaseEnded

	if err := s.commit(ctx); err != nil {
		return err
	}

	s.logger.Info("游戏中止",
		zap.String("session_key", s.data.Key),
		zap.String("host", callerID))

	return nil
}

// SnapshotFor 构建按观察者裁剪的快照（无锁读最近落盘版本）
func (s *GameSession) SnapshotFor(viewerID string) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buildSnapshot(s.durable, viewerID)
}

// buildSnapshot 从会话状态构建快照
// 观察者只能看到自己的完整角色卡，他人仅含已公开槽位；未公开槽位不出现
func buildSnapshot(data *SessionData, viewerID string) *Snapshot {
	snap := &Snapshot{
		Key:        data.Key,
		ChannelID:  data.ChannelID,
		HostID:     data.HostID,
		Phase:      data.Phase,
		Capacity:   data.Capacity,
		AliveCount: data.AliveCount(),
		Revision:   data.Revision,
		Lore:       data.Lore,
	}

	for _, p := range data.Players {
		view := PlayerView{
			UserID:          p.UserID,
			Name:            p.Name,
			Alive:           p.Alive,
			EliminatedRound: p.EliminatedRound,
		}

		if len(p.Cards) > 0 {
			view.Cards = make(map[CardSlot]string)
			if p.UserID == viewerID {
				for slot, value := range p.Cards {
					view.Cards[slot] = value
				}
				view.Opened = make(map[CardSlot]bool, len(p.Opened))
				for slot, open := range p.Opened {
					view.Opened[slot] = open
				}
			} else {
				for slot, open := range p.Opened {
					if open {
						view.Cards[slot] = p.Cards[slot]
					}
				}
			}
		}

		snap.Players = append(snap.Players, view)
	}

	if data.Round != nil {
		_, hasVoted := data.Round.Ballots[viewerID]
		snap.Vote = &VoteStatus{
			Round:    data.Round.Number,
			Mode:     data.Round.Mode,
			Cast:     len(data.Round.Ballots),
			Eligible: len(data.Round.Eligible),
			HasVoted: hasVoted,
		}
	}

	return snap
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
