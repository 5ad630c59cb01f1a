package game

import (
	"github.com/theloomik/Bunker/internal/errors"
)

// Catalog 内容目录：每个角色卡槽位的封闭取值集合与剧情素材
type Catalog struct {
	Sexes     []string
	Bodies    []string
	Jobs      []string
	Healths   []string
	Hobbies   []string
	Phobias   []string
	Inventory []string
	Extras    []string

	// 数值槽位的取值范围
	AgeMin    int
	AgeMax    int
	HeightMin int
	HeightMax int

	// 剧情素材
	Catastrophes []string
	BunkerTypes  []string
	Supplies     []string
	Durations    []string
}

// Validate 校验目录完整性：每个槽位必须有可抽取内容
func (c *Catalog) Validate() error {
	lists := map[string][]string{
		"sexes":        c.Sexes,
		"bodies":       c.Bodies,
		"jobs":         c.Jobs,
		"healths":      c.Healths,
		"hobbies":      c.Hobbies,
		"phobias":      c.Phobias,
		"inventory":    c.Inventory,
		"extras":       c.Extras,
		"catastrophes": c.Catastrophes,
		"bunker_types": c.BunkerTypes,
		"supplies":     c.Supplies,
		"durations":    c.Durations,
	}
	for name, list := range lists {
		if len(list) == 0 {
			return errors.Newf(errors.ErrCatalogIncomplete, "条目为空: %s", name)
		}
	}

	if c.AgeMin <= 0 || c.AgeMax < c.AgeMin {
		return errors.Newf(errors.ErrCatalogIncomplete, "年龄范围非法: [%d, %d]", c.AgeMin, c.AgeMax)
	}
	if c.HeightMin <= 0 || c.HeightMax < c.HeightMin {
		return errors.Newf(errors.ErrCatalogIncomplete, "身高范围非法: [%d, %d]", c.HeightMin, c.HeightMax)
	}

	return nil
}

// DefaultCatalog 内置默认目录
func DefaultCatalog() *Catalog {
	return &Catalog{
		Sexes: []string{"Male", "Female"},
		Bodies: []string{
			"Slim", "Athletic", "Average", "Stocky", "Overweight", "Frail",
		},
		Jobs: []string{
			"Surgeon", "Electrician", "Teacher", "Soldier", "Farmer",
			"Chef", "Mechanic", "Biologist", "Firefighter", "Journalist",
			"Carpenter", "Nurse", "Programmer", "Hunter", "Psychologist",
		},
		Healths: []string{
			"Perfectly healthy", "Asthma", "Diabetes", "Poor eyesight",
			"Chronic back pain", "Heart condition", "Allergic to dust",
			"Insomnia", "Broken arm (healing)",
		},
		Hobbies: []string{
			"Gardening", "Chess", "First aid courses", "Amateur radio",
			"Brewing", "Knitting", "Marksmanship", "Cooking", "Yoga",
			"Board games", "Foraging",
		},
		Phobias: []string{
			"None", "Claustrophobia", "Fear of the dark", "Arachnophobia",
			"Fear of blood", "Agoraphobia", "Fear of loud noises",
			"Germophobia",
		},
		Inventory: []string{
			"First aid kit", "Box of canned food", "Toolbox", "Hunting rifle",
			"Water filter", "Solar charger", "Seed collection", "Gas mask",
			"Medical encyclopedia", "Deck of cards", "Bottle of whiskey",
		},
		Extras: []string{
			"Knows morse code", "Former scout leader", "Speaks three languages",
			"Has a photographic memory", "Snores loudly", "Vegetarian",
			"Can fix almost anything", "Terrible cook", "Natural leader",
			"Sleepwalks",
		},

		AgeMin:    18,
		AgeMax:    90,
		HeightMin: 150,
		HeightMax: 210,

		Catastrophes: []string{
			"A nuclear exchange has left the surface lethally irradiated.",
			"An engineered plague wiped out most of humanity in weeks.",
			"An asteroid impact threw the planet into a decade-long winter.",
			"A supervolcano eruption blotted out the sun.",
			"Runaway climate collapse turned the continent into a dust bowl.",
		},
		BunkerTypes: []string{
			"Decommissioned missile silo", "Abandoned metro station",
			"Private survivalist shelter", "Converted mine shaft",
			"Military command bunker",
		},
		Supplies: []string{
			"Food and water for a year, medicine is scarce",
			"Well stocked infirmary, half-empty pantry",
			"Working generator, rations for eight months",
			"Hydroponic garden, unreliable water recycler",
		},
		Durations: []string{
			"1 year underground", "3 years underground",
			"5 years underground", "10 years underground",
		},
	}
}
