package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theloomik/Bunker/internal/config"
	"github.com/theloomik/Bunker/internal/database"
	"github.com/theloomik/Bunker/internal/errors"
	"github.com/theloomik/Bunker/internal/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupManager(t *testing.T, cfg *config.GameConfig) (*SessionManager, repository.PlayerStatsRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	persister := NewStoreSessionPersister(repository.NewSessionStateRepository(db))
	statsRepo := repository.NewPlayerStatsRepository(db)

	return NewSessionManager(cfg, DefaultCatalog(), persister, statsRepo, zap.NewNop()), statsRepo
}

func TestCreateSessionPerChannel(t *testing.T) {
	ctx := context.Background()
	manager, _ := setupManager(t, testGameConfig())

	snap, err := manager.CreateSession(ctx, "chan1", "host", "Host", 2)
	require.NoError(t, err)
	assert.Equal(t, PhaseLobby, snap.Phase)
	assert.Equal(t, "host", snap.HostID)

	// 同频道不能同时开两局
	_, err = manager.CreateSession(ctx, "chan1", "other", "Other", 2)
	assert.True(t, errors.Is(err, errors.ErrSessionExists))

	// 其他频道不受影响
	_, err = manager.CreateSession(ctx, "chan2", "host", "Host", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, manager.SessionCount())
}

func TestCreateSessionInvalidCapacity(t *testing.T) {
	ctx := context.Background()
	manager, _ := setupManager(t, testGameConfig())

	_, err := manager.CreateSession(ctx, "chan1", "host", "Host", 1)
	assert.True(t, errors.Is(err, errors.ErrInvalidCapacity))

	// 创建失败不占用频道
	_, err = manager.CreateSession(ctx, "chan1", "host", "Host", 2)
	require.NoError(t, err)
}

func TestManagerUnknownSession(t *testing.T) {
	ctx := context.Background()
	manager, _ := setupManager(t, testGameConfig())

	_, err := manager.JoinSession(ctx, "missing", "p1", "Alice")
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
	_, err = manager.GetSnapshot("missing", "p1")
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

// TestFullGameRecordsStats 完整一局：终局战绩落库，确认后会话销毁
func TestFullGameRecordsStats(t *testing.T) {
	ctx := context.Background()
	cfg := testGameConfig()
	cfg.AutoCloseVotes = false
	manager, statsRepo := setupManager(t, cfg)

	snap, err := manager.CreateSession(ctx, "chan1", "host", "Host", 2)
	require.NoError(t, err)
	key := snap.Key

	_, err = manager.JoinSession(ctx, key, "p1", "Alice")
	require.NoError(t, err)
	_, err = manager.JoinSession(ctx, key, "p2", "Bob")
	require.NoError(t, err)

	_, err = manager.StartGame(ctx, key, "host")
	require.NoError(t, err)

	_, err = manager.RevealSlot(ctx, key, "p1", "p1", SlotJob)
	require.NoError(t, err)

	_, err = manager.StartVote(ctx, key, "host")
	require.NoError(t, err)

	// p1 两票被淘汰，存活达容量，终局
	for voter, target := range map[string]string{
		"host": "p1", "p2": "p1", "p1": "p2",
	} {
		_, err = manager.CastBallot(ctx, key, voter, target)
		require.NoError(t, err)
	}

	outcome, err := manager.CloseVote(ctx, key, "host")
	require.NoError(t, err)
	assert.True(t, outcome.GameOver)
	assert.Equal(t, []string{"p1"}, outcome.Eliminated)

	// 战绩：幸存者记胜场，淘汰者记阵亡
	hostStats, err := statsRepo.FindByUserID(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, 1, hostStats.Games)
	assert.Equal(t, 1, hostStats.Wins)
	assert.Equal(t, 0, hostStats.Deaths)

	p1Stats, err := statsRepo.FindByUserID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p1Stats.Games)
	assert.Equal(t, 0, p1Stats.Wins)
	assert.Equal(t, 1, p1Stats.Deaths)

	// 确认终局后会话销毁；战绩不重复记账
	require.NoError(t, manager.AcknowledgeEnd(ctx, key, "host"))
	_, err = manager.GetSession(key)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))

	hostStats, err = statsRepo.FindByUserID(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, 1, hostStats.Games)
	assert.Equal(t, 1, hostStats.Wins)

	// 频道释放，可以再开新局
	_, err = manager.CreateSession(ctx, "chan1", "host", "Host", 2)
	require.NoError(t, err)
}

// TestAutoCloseRecordsStats 自动结算触发终局时同样记录战绩
func TestAutoCloseRecordsStats(t *testing.T) {
	ctx := context.Background()
	manager, statsRepo := setupManager(t, testGameConfig())

	snap, err := manager.CreateSession(ctx, "chan1", "host", "Host", 2)
	require.NoError(t, err)
	key := snap.Key

	_, err = manager.JoinSession(ctx, key, "p1", "Alice")
	require.NoError(t, err)
	_, err = manager.JoinSession(ctx, key, "p2", "Bob")
	require.NoError(t, err)
	_, err = manager.StartGame(ctx, key, "host")
	require.NoError(t, err)
	_, err = manager.StartVote(ctx, key, "host")
	require.NoError(t, err)

	_, err = manager.CastBallot(ctx, key, "host", "p1")
	require.NoError(t, err)
	_, err = manager.CastBallot(ctx, key, "p2", "p1")
	require.NoError(t, err)

	ack, err := manager.CastBallot(ctx, key, "p1", "p2")
	require.NoError(t, err)
	require.True(t, ack.AutoClosed)
	require.NotNil(t, ack.Outcome)
	assert.True(t, ack.Outcome.GameOver)

	p1Stats, err := statsRepo.FindByUserID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p1Stats.Deaths)
}

// TestAckRecordsStatsForRecoveredEndingSession 结算后、确认前重启的会话，
// 确认终局时补记战绩
func TestAckRecordsStatsForRecoveredEndingSession(t *testing.T) {
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := testGameConfig()
	cat := DefaultCatalog()
	log := zap.NewNop()
	persister := NewStoreSessionPersister(repository.NewSessionStateRepository(db))
	statsRepo := repository.NewPlayerStatsRepository(db)

	// 上一个"进程"结算出终局后退出，战绩尚未写入
	ending := &SessionData{
		Key:       "s1",
		ChannelID: "chan1",
		HostID:    "host",
		Capacity:  2,
		Phase:     PhaseEnding,
		Players: []*Player{
			{UserID: "host", Name: "Host", Alive: true},
			{UserID: "p1", Name: "Alice", Alive: true},
			{UserID: "p2", Name: "Bob", Alive: false, EliminatedRound: 1},
		},
		RoundsHeld: 1,
		Revision:   7,
	}
	require.NoError(t, persister.Save(ctx, ending))

	manager := NewSessionManager(cfg, cat, persister, statsRepo, log)
	recovery := NewRecoveryManager(manager, persister, cfg, cat, log)
	report, err := recovery.Recover(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Recovered)

	require.NoError(t, manager.AcknowledgeEnd(ctx, "s1", "host"))

	hostStats, err := statsRepo.FindByUserID(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, 1, hostStats.Games)
	assert.Equal(t, 1, hostStats.Wins)

	p2Stats, err := statsRepo.FindByUserID(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 1, p2Stats.Games)
	assert.Equal(t, 1, p2Stats.Deaths)
}

// TestCancelSessionNoStats 中止的游戏不记录战绩
func TestCancelSessionNoStats(t *testing.T) {
	ctx := context.Background()
	manager, statsRepo := setupManager(t, testGameConfig())

	snap, err := manager.CreateSession(ctx, "chan1", "host", "Host", 2)
	require.NoError(t, err)
	key := snap.Key

	_, err = manager.JoinSession(ctx, key, "p1", "Alice")
	require.NoError(t, err)
	_, err = manager.JoinSession(ctx, key, "p2", "Bob")
	require.NoError(t, err)
	_, err = manager.StartGame(ctx, key, "host")
	require.NoError(t, err)

	require.NoError(t, manager.CancelSession(ctx, key, "host"))

	stats, err := statsRepo.FindByUserID(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Games)

	_, err = manager.GetSession(key)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

// TestCustomNameOverridesJoinName 自定义昵称优先于调用方提供的名字
func TestCustomNameOverridesJoinName(t *testing.T) {
	ctx := context.Background()
	manager, _ := setupManager(t, testGameConfig())

	require.NoError(t, manager.SetCustomName(ctx, "p1", "霰弹枪老爹"))

	snap, err := manager.CreateSession(ctx, "chan1", "host", "Host", 2)
	require.NoError(t, err)

	snap, err = manager.JoinSession(ctx, snap.Key, "p1", "Alice")
	require.NoError(t, err)

	var joined PlayerView
	for _, pv := range snap.Players {
		if pv.UserID == "p1" {
			joined = pv
		}
	}
	assert.Equal(t, "霰弹枪老爹", joined.Name)
}

// TestPlayerStatsView 战绩查询返回累计视图
func TestPlayerStatsView(t *testing.T) {
	ctx := context.Background()
	manager, statsRepo := setupManager(t, testGameConfig())

	require.NoError(t, statsRepo.RecordGameEnd(ctx, []repository.GameEndResult{
		{UserID: "p1", Won: true},
	}))
	require.NoError(t, statsRepo.RecordGameEnd(ctx, []repository.GameEndResult{
		{UserID: "p1", Won: false},
	}))

	view, err := manager.GetPlayerStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Games)
	assert.Equal(t, 1, view.Wins)
	assert.Equal(t, 1, view.Deaths)

	// 未知玩家返回零值
	view, err = manager.GetPlayerStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, view.Games)
}
