package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestRecoverResumesActiveSessions 进程重启后活动会话可恢复并继续推进
func TestRecoverResumesActiveSessions(t *testing.T) {
	ctx := context.Background()
	cfg := testGameConfig()
	cat := DefaultCatalog()
	log := zap.NewNop()
	persister := NewMemorySessionPersister()

	// 第一个"进程"：建会话并推进到公开阶段
	sess := newTestSession(t, persister, 2)
	fillLobby(t, sess, 2)
	_, err := sess.Start(ctx, "host")
	require.NoError(t, err)
	_, err = sess.Reveal(ctx, "p1", "p1", SlotJob)
	require.NoError(t, err)

	saved := sess.Data()

	// 第二个"进程"：从持久化状态恢复
	manager := NewSessionManager(cfg, cat, persister, nil, log)
	recovery := NewRecoveryManager(manager, persister, cfg, cat, log)

	report, err := recovery.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Recovered)
	assert.Equal(t, 0, report.Dropped)
	assert.Empty(t, report.Quarantined)

	restored, err := manager.GetSession("s1")
	require.NoError(t, err)

	// 恢复的状态与落盘前逐位一致
	got := restored.Data()
	assert.Equal(t, saved.Revision, got.Revision)
	assert.Equal(t, saved.Phase, got.Phase)
	assert.Equal(t, saved.Lore, got.Lore)
	require.Len(t, got.Players, 3)
	assert.Equal(t, saved.Players[1].Cards, got.Players[1].Cards)
	assert.True(t, got.FindPlayer("p1").Opened[SlotJob])

	// 恢复的会话可以继续推进
	_, err = restored.StartVote(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, PhaseVoting, restored.Phase())

	// 频道映射同样恢复
	byChan, err := manager.GetSessionByChannel("chan1")
	require.NoError(t, err)
	assert.Equal(t, "s1", byChan.Key())
}

// TestRecoverResumesCharGenSession 停在角色生成阶段的会话恢复后续跑生成
// （两次开局落盘之间进程退出的情形）
func TestRecoverResumesCharGenSession(t *testing.T) {
	ctx := context.Background()
	cfg := testGameConfig()
	cat := DefaultCatalog()
	log := zap.NewNop()
	persister := NewMemorySessionPersister()

	stuck := &SessionData{
		Key:       "s1",
		ChannelID: "chan1",
		HostID:    "host",
		Capacity:  2,
		Phase:     PhaseCharGen,
		Players: []*Player{
			{UserID: "host", Name: "Host", Alive: true},
			{UserID: "p1", Name: "Alice", Alive: true},
			{UserID: "p2", Name: "Bob", Alive: true},
		},
		Revision: 2,
	}
	require.NoError(t, persister.Save(ctx, stuck))

	manager := NewSessionManager(cfg, cat, persister, nil, log)
	recovery := NewRecoveryManager(manager, persister, cfg, cat, log)

	report, err := recovery.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Recovered)

	restored, err := manager.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, PhaseReveal, restored.Phase())

	// 生成已补齐并落盘
	got := restored.Data()
	require.NotNil(t, got.Lore)
	for _, p := range got.Players {
		assert.Len(t, p.Cards, len(AllSlots))
	}
	assert.Greater(t, got.Revision, stuck.Revision)

	persisted, err := persister.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, PhaseReveal, persisted.Phase)

	// 会话立即可用
	_, err = restored.StartVote(ctx, "host")
	require.NoError(t, err)
}

// TestRecoverDropsTerminalSessions 终态会话不恢复，记录直接清除
func TestRecoverDropsTerminalSessions(t *testing.T) {
	ctx := context.Background()
	cfg := testGameConfig()
	cat := DefaultCatalog()
	log := zap.NewNop()
	persister := NewMemorySessionPersister()

	active := sampleSessionData("active", 1)
	require.NoError(t, persister.Save(ctx, active))

	ended := sampleSessionData("ended", 5)
	ended.Phase = PhaseEnded
	require.NoError(t, persister.Save(ctx, ended))

	manager := NewSessionManager(cfg, cat, persister, nil, log)
	recovery := NewRecoveryManager(manager, persister, cfg, cat, log)

	report, err := recovery.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Recovered)
	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, 1, manager.SessionCount())

	_, err = manager.GetSession("ended")
	assert.Error(t, err)

	// 终态记录已从存储清除
	_, err = persister.Load(ctx, "ended")
	assert.Error(t, err)
}

// TestRecoverSkipsQuarantined 隔离记录只上报，不进入注册表
func TestRecoverSkipsQuarantined(t *testing.T) {
	ctx := context.Background()
	cfg := testGameConfig()
	cat := DefaultCatalog()
	log := zap.NewNop()

	persister, repo := setupStorePersister(t)
	require.NoError(t, persister.Save(ctx, sampleSessionData("good", 1)))
	require.NoError(t, repo.Quarantine(ctx, "good2", "预隔离"))

	// 直接写入一条损坏记录
	require.NoError(t, persister.Save(ctx, sampleSessionData("bad", 1)))
	corruptStoredState(t, repo, "bad")

	manager := NewSessionManager(cfg, cat, persister, nil, log)
	recovery := NewRecoveryManager(manager, persister, cfg, cat, log)

	report, err := recovery.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Recovered)
	require.Len(t, report.Quarantined, 1)
	assert.Equal(t, "bad", report.Quarantined[0].Key)
	assert.Equal(t, 1, manager.SessionCount())
}
