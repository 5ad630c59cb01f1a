package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ballots(pairs ...string) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m
}

// TestResolveSingleWinner 普通轮最高票唯一：淘汰该人
func TestResolveSingleWinner(t *testing.T) {
	e := NewVotingEngine()

	out := e.Resolve(TallyInput{
		Round:    1,
		Mode:     ModeNormal,
		Eligible: []string{"a", "b", "c", "d", "e"},
		Ballots:  ballots("b", "a", "c", "a", "d", "a", "e", "b", "a", "c"),
		Alive:    []string{"a", "b", "c", "d", "e"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.Equal(t, []string{"a"}, out.Eliminated)
	assert.Equal(t, 3, out.Tally["a"])
	assert.False(t, out.GameOver)
	assert.False(t, out.Truncated)
}

// TestResolveNormalTie 普通轮最高票并列：流局，下一轮强制加赛
func TestResolveNormalTie(t *testing.T) {
	e := NewVotingEngine()

	out := e.Resolve(TallyInput{
		Round:    1,
		Mode:     ModeNormal,
		Eligible: []string{"a", "b", "c", "d"},
		Ballots:  ballots("a", "b", "b", "a", "c", "a", "d", "b"),
		Alive:    []string{"a", "b", "c", "d"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeInconclusive, out.Kind)
	assert.Empty(t, out.Eliminated)
	assert.Equal(t, ModeDoubleElim, out.NextMode)
}

// TestResolveTieTableBothModes 同一组选票在两种模式下的对照：
// 普通轮流局，加赛轮两人同时淘汰
func TestResolveTieTableBothModes(t *testing.T) {
	e := NewVotingEngine()

	// a 与 b 各得2票
	in := TallyInput{
		Round:    1,
		Mode:     ModeNormal,
		Eligible: []string{"a", "b", "c", "d"},
		Ballots:  ballots("b", "a", "c", "a", "a", "b", "d", "b"),
		Alive:    []string{"a", "b", "c", "d"},
		Capacity: 2,
	}

	out := e.Resolve(in)
	require.Equal(t, OutcomeInconclusive, out.Kind)
	assert.Empty(t, out.Eliminated)
	assert.Equal(t, ModeDoubleElim, out.NextMode)

	in.Mode = ModeDoubleElim
	out = e.Resolve(in)
	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.ElementsMatch(t, []string{"a", "b"}, out.Eliminated)
	assert.True(t, out.GameOver)
}

// TestResolveDoubleElimPairTie 加赛轮最高票并列两人：两人同时淘汰
func TestResolveDoubleElimPairTie(t *testing.T) {
	e := NewVotingEngine()

	out := e.Resolve(TallyInput{
		Round:    2,
		Mode:     ModeDoubleElim,
		Eligible: []string{"a", "b", "c", "d", "e"},
		Ballots:  ballots("a", "b", "b", "a", "c", "a", "d", "b", "e", "c"),
		Alive:    []string{"a", "b", "c", "d", "e"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.ElementsMatch(t, []string{"a", "b"}, out.Eliminated)
}

// TestResolveDoubleElimRunnerUp 加赛轮最高票唯一：带上唯一次高者
func TestResolveDoubleElimRunnerUp(t *testing.T) {
	e := NewVotingEngine()

	// a 得3票、b 得2票、c 得1票：淘汰 a 与 b
	out := e.Resolve(TallyInput{
		Round:    2,
		Mode:     ModeDoubleElim,
		Eligible: []string{"a", "b", "c", "d", "e", "f"},
		Ballots:  ballots("b", "a", "c", "a", "d", "a", "e", "b", "f", "b", "a", "c"),
		Alive:    []string{"a", "b", "c", "d", "e", "f"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.Equal(t, []string{"a", "b"}, out.Eliminated)
}

// TestResolveDoubleElimRunnerUpTied 加赛轮次高档并列：退回单淘汰
func TestResolveDoubleElimRunnerUpTied(t *testing.T) {
	e := NewVotingEngine()

	// a 得2票，b、c 各得1票：次高档并列，只淘汰 a
	out := e.Resolve(TallyInput{
		Round:    2,
		Mode:     ModeDoubleElim,
		Eligible: []string{"a", "b", "c", "d"},
		Ballots:  ballots("b", "a", "c", "a", "a", "b", "d", "c"),
		Alive:    []string{"a", "b", "c", "d"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.Equal(t, []string{"a"}, out.Eliminated)
}

// TestResolveDoubleElimStalemate 加赛轮三人以上并列：僵局，无人淘汰
func TestResolveDoubleElimStalemate(t *testing.T) {
	e := NewVotingEngine()

	out := e.Resolve(TallyInput{
		Round:    3,
		Mode:     ModeDoubleElim,
		Eligible: []string{"a", "b", "c", "d", "e", "f"},
		Ballots:  ballots("d", "a", "e", "b", "f", "c"),
		Alive:    []string{"a", "b", "c", "d", "e", "f"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeStalemate, out.Kind)
	assert.Empty(t, out.Eliminated)
	assert.Equal(t, ModeDoubleElim, out.NextMode)
}

// TestResolveNoBallots 无人投票：视同流局
func TestResolveNoBallots(t *testing.T) {
	e := NewVotingEngine()

	out := e.Resolve(TallyInput{
		Round:    1,
		Mode:     ModeNormal,
		Eligible: []string{"a", "b", "c"},
		Ballots:  map[string]string{},
		Alive:    []string{"a", "b", "c"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeInconclusive, out.Kind)
	assert.Empty(t, out.Eliminated)
	assert.Equal(t, ModeDoubleElim, out.NextMode)
}

// TestResolveTruncation 淘汰名单不得使存活人数跌破容量
func TestResolveTruncation(t *testing.T) {
	e := NewVotingEngine()

	// 存活3人、容量2：加赛轮本应淘汰最高票与次高者，但只剩1个淘汰名额
	out := e.Resolve(TallyInput{
		Round:    4,
		Mode:     ModeDoubleElim,
		Eligible: []string{"a", "b", "c"},
		Ballots:  ballots("a", "b", "b", "a", "c", "a"),
		Alive:    []string{"a", "b", "c"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.Len(t, out.Eliminated, 1)
	assert.Equal(t, "a", out.Eliminated[0]) // 票数高者优先淘汰
	assert.True(t, out.Truncated)
	assert.True(t, out.GameOver)
}

// TestResolveTruncationPairTie 加赛轮两人并列但名额只剩1个：按加入顺序截断
func TestResolveTruncationPairTie(t *testing.T) {
	e := NewVotingEngine()

	out := e.Resolve(TallyInput{
		Round:    4,
		Mode:     ModeDoubleElim,
		Eligible: []string{"a", "b", "c"},
		Ballots:  ballots("a", "b", "b", "a"),
		Alive:    []string{"a", "b", "c"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.Len(t, out.Eliminated, 1)
	assert.True(t, out.Truncated)
	assert.True(t, out.GameOver)
}

// TestResolveGameOver 淘汰后存活人数恰好等于容量：终局
func TestResolveGameOver(t *testing.T) {
	e := NewVotingEngine()

	out := e.Resolve(TallyInput{
		Round:    5,
		Mode:     ModeNormal,
		Eligible: []string{"a", "b", "c"},
		Ballots:  ballots("b", "a", "c", "a"),
		Alive:    []string{"a", "b", "c"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.Equal(t, []string{"a"}, out.Eliminated)
	assert.True(t, out.GameOver)
}

// TestResolveIgnoresIneligibleAndDeadTargets 无资格选票与指向非存活者的选票不计入
func TestResolveIgnoresIneligibleAndDeadTargets(t *testing.T) {
	e := NewVotingEngine()

	out := e.Resolve(TallyInput{
		Round:    2,
		Mode:     ModeNormal,
		Eligible: []string{"a", "b", "c"},
		Ballots: ballots(
			"a", "b",
			"ghost", "b", // 无资格投票人
			"b", "dead", // 目标已淘汰
			"c", "b",
		),
		Alive:    []string{"a", "b", "c"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.Equal(t, []string{"b"}, out.Eliminated)
	assert.Equal(t, 2, out.Tally["b"])
	assert.NotContains(t, out.Tally, "dead")
}

// TestResolveZeroVoteTargetsRankByJoinOrder 同票数按加入顺序排序（稳定）
func TestResolveZeroVoteTargetsRankByJoinOrder(t *testing.T) {
	e := NewVotingEngine()

	// b、c 零票并列，但最高票唯一，零票档不影响结果
	out := e.Resolve(TallyInput{
		Round:    1,
		Mode:     ModeNormal,
		Eligible: []string{"a", "b", "c", "d"},
		Ballots:  ballots("b", "a", "c", "a", "d", "a"),
		Alive:    []string{"a", "b", "c", "d"},
		Capacity: 2,
	})

	require.Equal(t, OutcomeDecisive, out.Kind)
	assert.Equal(t, []string{"a"}, out.Eliminated)
}

// TestDefaultCapacity 默认容量为人数一半向上取整
func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, 1, DefaultCapacity(1))
	assert.Equal(t, 1, DefaultCapacity(2))
	assert.Equal(t, 2, DefaultCapacity(3))
	assert.Equal(t, 2, DefaultCapacity(4))
	assert.Equal(t, 3, DefaultCapacity(5))
	assert.Equal(t, 5, DefaultCapacity(10))
	assert.Equal(t, 1, DefaultCapacity(0))
}
