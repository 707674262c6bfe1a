package catalog

import "github.com/empirewand/wandcore/internal/domain"

func spell(id string, cat domain.Category, typ domain.SpellType, cooldownMs int64, name string) domain.SpellDefinition {
	return domain.SpellDefinition{
		ID:             id,
		Category:       cat,
		Type:           typ,
		BaseCooldownMs: cooldownMs,
		Metadata:       domain.SpellMetadata{DisplayName: name},
	}
}

// Defaults is the spell set shipped with the server, used when no spells
// file is configured.
func Defaults() []domain.SpellDefinition {
	return []domain.SpellDefinition{
		spell("fireball", domain.CategoryFire, domain.TypeProjectile, 2000, "Fireball"),
		spell("comet", domain.CategoryFire, domain.TypeProjectile, 3000, "Comet"),
		spell("comet-shower", domain.CategoryFire, domain.TypeArea, 12000, "Comet Shower"),
		spell("flame-wave", domain.CategoryFire, domain.TypeArea, 6000, "Flame Wave"),
		spell("frost-nova", domain.CategoryIce, domain.TypeArea, 8000, "Frost Nova"),
		spell("freeze-ray", domain.CategoryIce, domain.TypeProjectile, 4000, "Freeze Ray"),
		spell("spark", domain.CategoryLightning, domain.TypeProjectile, 800, "Spark"),
		spell("chain-lightning", domain.CategoryLightning, domain.TypeInstant, 5000, "Chain Lightning"),
		spell("earthquake", domain.CategoryEarth, domain.TypeArea, 15000, "Earthquake"),
		spell("stone-fortress", domain.CategoryEarth, domain.TypeAura, 20000, "Stone Fortress"),
		spell("shadow-step", domain.CategoryDark, domain.TypeInstant, 4000, "Shadow Step"),
		spell("dark-circle", domain.CategoryDark, domain.TypeArea, 9000, "Dark Circle"),
		spell("life-steal", domain.CategoryLife, domain.TypeProjectile, 3500, "Life Steal"),
		spell("blood-barrier", domain.CategoryLife, domain.TypeAura, 10000, "Blood Barrier"),
		spell("heal", domain.CategoryHeal, domain.TypeInstant, 6000, "Heal"),
		spell("radiant-beacon", domain.CategoryHeal, domain.TypeAura, 14000, "Radiant Beacon"),
		spell("crimson-chains", domain.CategoryPoison, domain.TypeProjectile, 5000, "Crimson Chains"),
		spell("blizzard", domain.CategoryWeather, domain.TypeArea, 18000, "Blizzard"),
		spell("gust", domain.CategoryWeather, domain.TypeInstant, 2500, "Gust"),
		spell("leap", domain.CategoryMovement, domain.TypeInstant, 1500, "Leap"),
		spell("teleport", domain.CategoryMovement, domain.TypeInstant, 5000, "Teleport"),
		spell("kaj-cloud", domain.CategoryMovement, domain.TypeToggle, 0, "Kaj Cloud"),
		spell("confuse", domain.CategoryControl, domain.TypeProjectile, 7000, "Confuse"),
		spell("polymorph", domain.CategoryControl, domain.TypeInstant, 20000, "Polymorph"),
		spell("magic-torch", domain.CategoryMisc, domain.TypeToggle, 0, "Magic Torch"),
		spell("summon-wolves", domain.CategoryMisc, domain.TypeSummon, 30000, "Summon Wolves"),
	}
}
