package game

import (
	"sort"
)

// VotingEngine 投票结算引擎：纯算法，无状态
type VotingEngine struct{}

// NewVotingEngine 创建投票结算引擎
func NewVotingEngine() *VotingEngine {
	return &VotingEngine{}
}

// TallyInput 结算输入
type TallyInput struct {
	Round    int
	Mode     TieBreakMode
	Eligible []string          // 有投票资格的玩家
	Ballots  map[string]string // 投票人 -> 目标（允许不完整，弃权即不投）
	Alive    []string          // 当前存活玩家（按加入顺序），即合法目标集合
	Capacity int               // 目标幸存人数
}

// Resolve 结算一轮投票
//
// 计票规则：
//   - 最高票唯一且为普通轮：淘汰该人
//   - 最高票唯一且为加赛轮：淘汰该人与唯一的次高者；次高并列时退回单淘汰
//   - 最高票并列（普通轮）：流局，下一轮强制加赛
//   - 最高票并列两人（加赛轮）：两人同时淘汰
//   - 最高票并列三人以上（加赛轮）：僵局，交由主持人裁决
//   - 无人投票：视同流局
//
// 淘汰不得使存活人数跌破容量；超出时按得票从低到高截断，并在结果中标记。
func (e *VotingEngine) Resolve(in TallyInput) *RoundOutcome {
	outcome := &RoundOutcome{
		Round:    in.Round,
		Tally:    make(map[string]int),
		NextMode: ModeNormal,
	}

	aliveSet := make(map[string]bool, len(in.Alive))
	for _, id := range in.Alive {
		aliveSet[id] = false
	}

	eligibleSet := make(map[string]bool, len(in.Eligible))
	for _, id := range in.Eligible {
		eligibleSet[id] = true
	}

	// 计票：只统计有资格投票人投给存活目标的票
	counted := 0
	for voter, target := range in.Ballots {
		if !eligibleSet[voter] {
			continue
		}
		if _, ok := aliveSet[target]; !ok {
			continue
		}
		outcome.Tally[target]++
		counted++
	}

	// 无人投票：视同流局
	if counted == 0 {
		outcome.Kind = OutcomeInconclusive
		outcome.NextMode = ModeDoubleElim
		return outcome
	}

	// 按（得票降序，加入顺序）排列存活目标，含零票者
	ranked := make([]string, len(in.Alive))
	copy(ranked, in.Alive)
	sort.SliceStable(ranked, func(i, j int) bool {
		return outcome.Tally[ranked[i]] > outcome.Tally[ranked[j]]
	})

	maxVotes := outcome.Tally[ranked[0]]
	var top []string
	for _, id := range ranked {
		if outcome.Tally[id] == maxVotes {
			top = append(top, id)
		}
	}

	switch {
	case len(top) == 1 && in.Mode == ModeNormal:
		outcome.Kind = OutcomeDecisive
		outcome.Eliminated = top

	case len(top) == 1 && in.Mode == ModeDoubleElim:
		outcome.Kind = OutcomeDecisive
		outcome.Eliminated = top
		// 找唯一的次高者；次高档并列则退回单淘汰
		if runnerUp, ok := e.soleRunnerUp(ranked, outcome.Tally, maxVotes); ok {
			outcome.Eliminated = append(outcome.Eliminated, runnerUp)
		}

	case len(top) == 2 && in.Mode == ModeDoubleElim:
		outcome.Kind = OutcomeDecisive
		outcome.Eliminated = top

	case in.Mode == ModeDoubleElim:
		// 加赛轮三人以上并列：僵局，无人淘汰，保持加赛待主持人裁决
		outcome.Kind = OutcomeStalemate
		outcome.NextMode = ModeDoubleElim
		return outcome

	default:
		// 普通轮最高票并列：流局，下一轮强制加赛
		outcome.Kind = OutcomeInconclusive
		outcome.NextMode = ModeDoubleElim
		return outcome
	}

	// 截断：淘汰后的存活人数不得低于容量
	maxElim := len(in.Alive) - in.Capacity
	if maxElim < 0 {
		maxElim = 0
	}
	if len(outcome.Eliminated) > maxElim {
		// 名单已按得票降序排列，去掉票数最低的尾部
		outcome.Eliminated = outcome.Eliminated[:maxElim]
		outcome.Truncated = true
	}

	if len(in.Alive)-len(outcome.Eliminated) == in.Capacity {
		outcome.GameOver = true
	}

	return outcome
}

// soleRunnerUp 返回次高得票档的唯一玩家；次高档并列或不存在时返回false
func (e *VotingEngine) soleRunnerUp(ranked []string, tally map[string]int, maxVotes int) (string, bool) {
	second := -1
	for _, id := range ranked {
		if tally[id] < maxVotes {
			second = tally[id]
			break
		}
	}
	if second < 0 {
		return "", false
	}

	var tier []string
	for _, id := range ranked {
		if tally[id] == second {
			tier = append(tier, id)
		}
	}
	if len(tier) != 1 {
		return "", false
	}
	return tier[0], true
}
