package game

import (
	"fmt"
	"math/rand"
)

// CharacterGenerator 角色卡生成器：随机源与内容目录的纯函数
type CharacterGenerator struct {
	catalog *Catalog
	rng     *rand.Rand
}

// NewCharacterGenerator 创建角色卡生成器
func NewCharacterGenerator(catalog *Catalog, rng *rand.Rand) *CharacterGenerator {
	return &CharacterGenerator{catalog: catalog, rng: rng}
}

// Generate 生成一张完整角色卡，覆盖全部固定槽位
func (g *CharacterGenerator) Generate() CharacterSheet {
	c := g.catalog
	return CharacterSheet{
		SlotSex:       g.pick(c.Sexes),
		SlotAge:       fmt.Sprintf("%d", g.between(c.AgeMin, c.AgeMax)),
		SlotHeight:    fmt.Sprintf("%d cm", g.between(c.HeightMin, c.HeightMax)),
		SlotBody:      g.pick(c.Bodies),
		SlotJob:       g.pick(c.Jobs),
		SlotHealth:    g.pick(c.Healths),
		SlotHobby:     g.pick(c.Hobbies),
		SlotPhobia:    g.pick(c.Phobias),
		SlotInventory: g.pick(c.Inventory),
		SlotExtra:     g.pick(c.Extras),
	}
}

// NewLedger 生成全隐藏的公开记录
func NewLedger() RevealLedger {
	ledger := make(RevealLedger, len(AllSlots))
	for _, slot := range AllSlots {
		ledger[slot] = false
	}
	return ledger
}

func (g *CharacterGenerator) pick(list []string) string {
	return list[g.rng.Intn(len(list))]
}

func (g *CharacterGenerator) between(min, max int) int {
	return min + g.rng.Intn(max-min+1)
}

// LoreGenerator 剧情生成器，与玩家无关
type LoreGenerator struct {
	catalog *Catalog
	rng     *rand.Rand
}

// NewLoreGenerator 创建剧情生成器
func NewLoreGenerator(catalog *Catalog, rng *rand.Rand) *LoreGenerator {
	return &LoreGenerator{catalog: catalog, rng: rng}
}

// Generate 生成一份灾难剧情
func (g *LoreGenerator) Generate() *LoreScenario {
	c := g.catalog
	return &LoreScenario{
		Catastrophe: c.Catastrophes[g.rng.Intn(len(c.Catastrophes))],
		BunkerType:  c.BunkerTypes[g.rng.Intn(len(c.BunkerTypes))],
		Supplies:    c.Supplies[g.rng.Intn(len(c.Supplies))],
		Duration:    c.Durations[g.rng.Intn(len(c.Durations))],
	}
}

// DefaultCapacity 按玩家数计算默认避难所容量（一半向上取整，至少1）
func DefaultCapacity(playerCount int) int {
	spots := (playerCount + 1) / 2
	if spots < 1 {
		spots = 1
	}
	return spots
}
