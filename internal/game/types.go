package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// Phase 游戏阶段枚举
type Phase string

const (
	PhaseLobby    Phase = "lobby"     // 大厅（等待加入）
	PhaseCharGen  Phase = "char_gen"  // 角色生成中
	PhaseReveal   Phase = "reveal"    // 公开与讨论
	PhaseVoting   Phase = "voting"    // 投票淘汰
	PhaseEnding   Phase = "ending"    // 终局（幸存者已确定）
	PhaseEnded    Phase = "ended"     // 已结束（终态）
)

// Terminal 判断是否为终态
func (p Phase) Terminal() bool {
	return p == PhaseEnded
}

// CardSlot 角色卡槽位枚举
type CardSlot string

const (
	SlotSex       CardSlot = "sex"       // 性别
	SlotAge       CardSlot = "age"       // 年龄
	SlotHeight    CardSlot = "height"    // 身高
	SlotBody      CardSlot = "body"      // 体型
	SlotJob       CardSlot = "job"       // 职业
	SlotHealth    CardSlot = "health"    // 健康状况
	SlotHobby     CardSlot = "hobby"     // 爱好
	SlotPhobia    CardSlot = "phobia"    // 恐惧症
	SlotInventory CardSlot = "inventory" // 随身物品
	SlotExtra     CardSlot = "extra"     // 附加信息
)

// AllSlots 固定槽位集合（顺序即展示顺序）
var AllSlots = []CardSlot{
	SlotSex, SlotAge, SlotHeight, SlotBody, SlotJob,
	SlotHealth, SlotHobby, SlotPhobia, SlotInventory, SlotExtra,
}

// ValidSlot 检查槽位是否合法
func ValidSlot(s CardSlot) bool {
	for _, slot := range AllSlots {
		if slot == s {
			return true
		}
	}
	return false
}

// CharacterSheet 角色卡：槽位到取值的固定映射，生成后不可变
type CharacterSheet map[CardSlot]string

// RevealLedger 公开记录：槽位到是否已公开，单向置位
type RevealLedger map[CardSlot]bool

// Player 玩家
type Player struct {
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	Alive           bool           `json:"alive"`
	EliminatedRound int            `json:"eliminated_round,omitempty"` // 0 表示存活
	Cards           CharacterSheet `json:"cards,omitempty"`
	Opened          RevealLedger   `json:"opened,omitempty"`
}

// LoreScenario 灾难剧情，开局生成一次后不可变
type LoreScenario struct {
	Catastrophe string `json:"catastrophe"` // 灾难类型
	BunkerType  string `json:"bunker_type"` // 避难所位置
	Supplies    string `json:"supplies"`    // 物资状况
	Duration    string `json:"duration"`    // 避难时长
}

// TieBreakMode 平局处理模式
type TieBreakMode string

const (
	ModeNormal     TieBreakMode = "normal"             // 普通轮：淘汰一人
	ModeDoubleElim TieBreakMode = "double_elimination" // 加赛轮：淘汰两人
)

// VoteRound 单轮投票，仅在投票阶段存在，结算后即清除
type VoteRound struct {
	Number   int               `json:"number"`
	Mode     TieBreakMode      `json:"mode"`
	Eligible []string          `json:"eligible"` // 开轮时的存活玩家（按加入顺序）
	Ballots  map[string]string `json:"ballots"`  // 投票人 -> 目标
}

// IsEligible 检查玩家是否有投票资格
func (r *VoteRound) IsEligible(userID string) bool {
	for _, id := range r.Eligible {
		if id == userID {
			return true
		}
	}
	return false
}

// AllCast 检查是否全部有资格的玩家都已投票
func (r *VoteRound) AllCast() bool {
	return len(r.Ballots) >= len(r.Eligible)
}

// OutcomeKind 投票结算结果类型
type OutcomeKind string

const (
	OutcomeDecisive     OutcomeKind = "decisive"     // 有人被淘汰
	OutcomeInconclusive OutcomeKind = "inconclusive" // 平局，无人淘汰，下一轮进入加赛
	OutcomeStalemate    OutcomeKind = "stalemate"    // 加赛轮三人以上并列，需主持人裁决
)

// RoundOutcome 投票结算结果
type RoundOutcome struct {
	Round      int            `json:"round"`
	Kind       OutcomeKind    `json:"kind"`
	Eliminated []string       `json:"eliminated,omitempty"`
	Tally      map[string]int `json:"tally"`
	Truncated  bool           `json:"truncated,omitempty"` // 为保住容量下限截断了淘汰名单
	NextMode   TieBreakMode   `json:"next_mode"`
	GameOver   bool           `json:"game_over"` // 存活人数已达容量，进入终局
}

// SessionData 会话完整状态（持久化单元）
type SessionData struct {
	Key            string        `json:"key"`
	ChannelID      string        `json:"channel_id"`
	HostID         string        `json:"host_id"`
	Capacity       int           `json:"capacity"`
	Phase          Phase         `json:"phase"`
	Players        []*Player     `json:"players"` // 加入顺序
	Lore           *LoreScenario `json:"lore,omitempty"`
	Round          *VoteRound    `json:"round,omitempty"`
	RoundsHeld     int           `json:"rounds_held"`      // 已开过的投票轮数
	DoubleElimNext bool          `json:"double_elim_next"` // 下一轮强制加赛
	StatsRecorded  bool          `json:"stats_recorded,omitempty"` // 终局战绩已写入
	Revision       uint64        `json:"revision"`         // 单调递增的变更版本号
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Clone 深拷贝会话状态（经JSON往返，用于回滚备份）
func (d *SessionData) Clone() *SessionData {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var cp SessionData
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil
	}
	return &cp
}

// FindPlayer 按ID查找玩家
func (d *SessionData) FindPlayer(userID string) *Player {
	for _, p := range d.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// AlivePlayers 返回存活玩家（按加入顺序）
func (d *SessionData) AlivePlayers() []*Player {
	var alive []*Player
	for _, p := range d.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

// AliveCount 存活玩家数
func (d *SessionData) AliveCount() int {
	count := 0
	for _, p := range d.Players {
		if p.Alive {
			count++
		}
	}
	return count
}

// Validate 校验会话状态的一致性（恢复加载时使用）
func (d *SessionData) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("缺少会话键")
	}
	// 大厅阶段允许容量为0（开局时按人数折算）
	if d.Capacity < 2 && !(d.Phase == PhaseLobby && d.Capacity == 0) {
		return fmt.Errorf("容量非法: %d", d.Capacity)
	}

	seen := make(map[string]bool, len(d.Players))
	for _, p := range d.Players {
		if p == nil || p.UserID == "" {
			return fmt.Errorf("玩家记录非法")
		}
		if seen[p.UserID] {
			return fmt.Errorf("玩家重复: %s", p.UserID)
		}
		seen[p.UserID] = true
	}

	if !seen[d.HostID] {
		return fmt.Errorf("主持人不在玩家名单中: %s", d.HostID)
	}

	if !d.Phase.Terminal() && d.Phase != PhaseLobby && d.AliveCount() < d.Capacity {
		return fmt.Errorf("存活人数低于容量: %d < %d", d.AliveCount(), d.Capacity)
	}

	if d.Round != nil {
		for _, id := range d.Round.Eligible {
			if !seen[id] {
				return fmt.Errorf("投票资格名单引用未知玩家: %s", id)
			}
		}
		for voter, target := range d.Round.Ballots {
			if !seen[voter] || !seen[target] {
				return fmt.Errorf("选票引用未知玩家: %s -> %s", voter, target)
			}
		}
	}

	return nil
}

// BallotAck 投票确认
type BallotAck struct {
	Cast       int           `json:"cast"`     // 已投票人数
	Eligible   int           `json:"eligible"` // 有资格人数
	AutoClosed bool          `json:"auto_closed"`
	Outcome    *RoundOutcome `json:"outcome,omitempty"` // 自动结算时附带结果
}

// PlayerView 快照中的玩家视图
// Cards 对本人包含全部槽位，对他人仅包含已公开槽位；未公开槽位不出现
type PlayerView struct {
	UserID          string              `json:"user_id"`
	Name            string              `json:"name"`
	Alive           bool                `json:"alive"`
	EliminatedRound int                 `json:"eliminated_round,omitempty"`
	Cards           map[CardSlot]string `json:"cards,omitempty"`
	Opened          map[CardSlot]bool   `json:"opened,omitempty"` // 仅对本人填充
}

// VoteStatus 快照中的投票状态（不泄露选票去向）
type VoteStatus struct {
	Round    int          `json:"round"`
	Mode     TieBreakMode `json:"mode"`
	Cast     int          `json:"cast"`
	Eligible int          `json:"eligible"`
	HasVoted bool         `json:"has_voted"` // 观察者本人是否已投票
}

// Snapshot 会话快照（按观察者裁剪的只读视图）
type Snapshot struct {
	Key        string        `json:"key"`
	ChannelID  string        `json:"channel_id"`
	HostID     string        `json:"host_id"`
	Phase      Phase         `json:"phase"`
	Capacity   int           `json:"capacity"`
	AliveCount int           `json:"alive_count"`
	Revision   uint64        `json:"revision"`
	Lore       *LoreScenario `json:"lore,omitempty"`
	Players    []PlayerView  `json:"players"`
	Vote       *VoteStatus   `json:"vote,omitempty"`
}
