package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/theloomik/Bunker/internal/errors"
	"github.com/theloomik/Bunker/internal/models"
	"github.com/theloomik/Bunker/internal/repository"
)

// QuarantineReport 被隔离记录的报告
type QuarantineReport struct {
	Key    string
	Reason string
}

// SessionPersister 会话持久化接口
type SessionPersister interface {
	Save(ctx context.Context, data *SessionData) error
	Load(ctx context.Context, key string) (*SessionData, error)
	LoadAll(ctx context.Context) ([]*SessionData, []QuarantineReport, error)
	Delete(ctx context.Context, key string) error
}

// MemorySessionPersister 内存持久化（用于测试）
type MemorySessionPersister struct {
	mu       sync.RWMutex
	states   map[string]*SessionData
	failNext error
}

// NewMemorySessionPersister 创建内存持久化器
func NewMemorySessionPersister() *MemorySessionPersister {
	return &MemorySessionPersister{
		states: make(map[string]*SessionData),
	}
}

// FailWith 注入一次性的写入失败（测试回滚路径）
func (p *MemorySessionPersister) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// Save 保存会话状态
func (p *MemorySessionPersister) Save(ctx context.Context, data *SessionData) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return err
	}

	// 深拷贝，避免与活动状态共享
	p.states[data.Key] = data.Clone()
	return nil
}

// Load 加载会话状态
func (p *MemorySessionPersister) Load(ctx context.Context, key string) (*SessionData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, exists := p.states[key]
	if !exists {
		return nil, fmt.Errorf("状态不存在: %s", key)
	}

	return data.Clone(), nil
}

// LoadAll 加载全部会话状态
func (p *MemorySessionPersister) LoadAll(ctx context.Context) ([]*SessionData, []QuarantineReport, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var all []*SessionData
	for _, data := range p.states {
		all = append(all, data.Clone())
	}
	return all, nil, nil
}

// Delete 删除会话状态
func (p *MemorySessionPersister) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.states, key)
	return nil
}

// StoreSessionPersister 数据库持久化
// 每个会话键一把锁，保证同键写入按变更顺序串行落盘
type StoreSessionPersister struct {
	repo repository.SessionStateRepository

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewStoreSessionPersister 创建数据库持久化器
func NewStoreSessionPersister(repo repository.SessionStateRepository) *StoreSessionPersister {
	return &StoreSessionPersister{
		repo:     repo,
		keyLocks: make(map[string]*sync.Mutex),
	}
}

// lockFor 获取会话键对应的锁
func (p *StoreSessionPersister) lockFor(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, exists := p.keyLocks[key]
	if !exists {
		lock = &sync.Mutex{}
		p.keyLocks[key] = lock
	}
	return lock
}

// releaseKey 会话删除后回收锁
func (p *StoreSessionPersister) releaseKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keyLocks, key)
}

// Save 保存会话状态（同键串行，版本号必须严格递增）
func (p *StoreSessionPersister) Save(ctx context.Context, data *SessionData) error {
	lock := p.lockFor(data.Key)
	lock.Lock()
	defer lock.Unlock()

	// 乐观检查：落盘版本不得回退
	existing, err := p.repo.FindByKey(ctx, data.Key)
	if err == nil && existing.Revision >= data.Revision {
		return errors.Newf(errors.ErrRevisionConflict,
			"会话 %s: 落盘版本 %d >= 写入版本 %d", data.Key, existing.Revision, data.Revision)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, errors.ErrPersistenceFailure, "序列化会话状态失败")
	}

	rec := &models.GameStateRecord{
		SessionKey: data.Key,
		ChannelID:  data.ChannelID,
		Phase:      string(data.Phase),
		Revision:   data.Revision,
		State:      string(raw),
	}

	if err := p.repo.Upsert(ctx, rec); err != nil {
		return errors.Wrap(err, errors.ErrPersistenceFailure, "写入会话记录失败")
	}

	return nil
}

// Load 加载单个会话状态
func (p *StoreSessionPersister) Load(ctx context.Context, key string) (*SessionData, error) {
	rec, err := p.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrNotFound, "会话记录不存在")
	}

	var data SessionData
	if err := json.Unmarshal([]byte(rec.State), &data); err != nil {
		return nil, errors.Wrap(err, errors.ErrCorruptRecord)
	}

	return &data, nil
}

// LoadAll 加载全部会话状态
// 无法反序列化或校验失败的记录就地隔离（不加载、不删除），不阻断其余记录
func (p *StoreSessionPersister) LoadAll(ctx context.Context) ([]*SessionData, []QuarantineReport, error) {
	recs, err := p.repo.FindAllActive(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrPersistenceFailure, "加载会话记录失败")
	}

	var (
		loaded     []*SessionData
		quarantine []QuarantineReport
	)

	for _, rec := range recs {
		var data SessionData
		if err := json.Unmarshal([]byte(rec.State), &data); err != nil {
			reason := fmt.Sprintf("反序列化失败: %v", err)
			_ = p.repo.Quarantine(ctx, rec.SessionKey, reason)
			quarantine = append(quarantine, QuarantineReport{Key: rec.SessionKey, Reason: reason})
			continue
		}

		// 终态记录跳过校验：恢复流程只负责清除它们，
		// 而清空大厅等终态落盘本来就不再满足进行中会话的约束
		if !data.Phase.Terminal() {
			if err := data.Validate(); err != nil {
				reason := fmt.Sprintf("状态校验失败: %v", err)
				_ = p.repo.Quarantine(ctx, rec.SessionKey, reason)
				quarantine = append(quarantine, QuarantineReport{Key: rec.SessionKey, Reason: reason})
				continue
			}
		}

		loaded = append(loaded, &data)
	}

	return loaded, quarantine, nil
}

// Delete 删除会话状态
func (p *StoreSessionPersister) Delete(ctx context.Context, key string) error {
	lock := p.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if err := p.repo.Delete(ctx, key); err != nil {
		return errors.Wrap(err, errors.ErrPersistenceFailure, "删除会话记录失败")
	}

	p.releaseKey(key)
	return nil
}
