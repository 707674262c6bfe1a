package service

import (
	"github.com/empirewand/wandcore/internal/cooldown"
	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/toggle"
	"github.com/google/uuid"
)

// CastResult is the outcome of a cast attempt.
type CastResult struct {
	cooldown.Outcome
	SpellID string `json:"spell_id"`
	Notify  bool   `json:"notify"`
}

// Cast consumes the cooldown of a spell bound to player's wand. A cast on
// cooldown is reported in the result, not as an error.
func (s *WandService) Cast(player domain.PlayerID, wandID uuid.UUID, spellID string) (CastResult, error) {
	release, err := s.engine.Admit()
	if err != nil {
		return CastResult{}, err
	}
	defer release()
	def, err := s.catalog.Resolve(spellID)
	if err != nil {
		return CastResult{}, err
	}
	if _, err := s.ownedWand(player, wandID); err != nil {
		return CastResult{}, err
	}
	if !s.isBound(wandID, def.ID) {
		return CastResult{}, domain.ErrSpellNotBound(def.ID)
	}

	now := s.nowMs()
	out, err := s.cooldowns.TryConsume(player, wandID, def.ID, now)
	if err != nil {
		return CastResult{}, err
	}
	notify, _ := s.toggles.Get(player, string(domain.ToggleCooldownNotify))
	res := CastResult{Outcome: out, SpellID: def.ID, Notify: notify}
	if !out.Ready {
		return res, nil
	}

	s.stats.RecordCast(player, def.ID, now)
	s.touch()
	s.events.Emit(domain.NewSpellCastEvent(player, wandID, def.ID, out.ReadyAtMs))
	return res, nil
}

func (s *WandService) isBound(wandID uuid.UUID, spellID string) bool {
	list, err := s.bindings.List(wandID)
	if err != nil {
		return false
	}
	for _, b := range list {
		if b.SpellID == spellID {
			return true
		}
	}
	return false
}

// CooldownStatus returns the remaining cooldown of one spell.
func (s *WandService) CooldownStatus(player domain.PlayerID, spellID string) (int64, error) {
	return s.cooldowns.Status(player, spellID, s.nowMs())
}

// ActiveCooldowns lists the player's running cooldowns.
func (s *WandService) ActiveCooldowns(player domain.PlayerID) []cooldown.Entry {
	return s.cooldowns.Active(player, s.nowMs())
}

// ClearCooldown resets one spell, or every spell when spellID is empty. It
// returns how many cooldowns were cleared for the bulk form.
func (s *WandService) ClearCooldown(player domain.PlayerID, spellID string) (int, error) {
	release, err := s.engine.Admit()
	if err != nil {
		return 0, err
	}
	defer release()
	if spellID == "" {
		n := s.cooldowns.ClearAll(player)
		s.events.Emit(domain.NewCooldownClearedEvent(player, ""))
		return n, nil
	}
	if err := s.cooldowns.Clear(player, spellID); err != nil {
		return 0, err
	}
	s.events.Emit(domain.NewCooldownClearedEvent(player, domain.NormalizeSpellID(spellID)))
	return 1, nil
}

// SetCooldownNotify stores whether player is told when a cast is blocked.
func (s *WandService) SetCooldownNotify(player domain.PlayerID, enabled bool) error {
	release, err := s.engine.Admit()
	if err != nil {
		return err
	}
	defer release()
	if err := s.cooldowns.ToggleNotify(player, enabled); err != nil {
		return err
	}
	s.touch()
	s.events.Emit(domain.NewToggleChangedEvent(player, domain.ToggleCooldownNotify, enabled))
	return nil
}

// SetCooldownBypass exempts one of player's wands from cooldowns.
func (s *WandService) SetCooldownBypass(player domain.PlayerID, wandID uuid.UUID, enabled bool) error {
	release, err := s.engine.Admit()
	if err != nil {
		return err
	}
	defer release()
	if _, err := s.ownedWand(player, wandID); err != nil {
		return err
	}
	s.cooldowns.SetBypass(player, wandID, enabled)
	s.logger.Info("cooldown bypass changed", "player_id", player, "wand_id", wandID, "enabled", enabled)
	return nil
}

// CooldownBypassed lists the wands of player that ignore cooldowns.
func (s *WandService) CooldownBypassed(player domain.PlayerID) []uuid.UUID {
	return s.cooldowns.BypassedWands(player)
}

// CooldownMetrics counts what the cooldown manager currently holds.
func (s *WandService) CooldownMetrics() cooldown.Metrics {
	return s.cooldowns.Metrics()
}

// Toggle returns one toggle value.
func (s *WandService) Toggle(player domain.PlayerID, key string) (bool, error) {
	return s.toggles.Get(player, key)
}

// Toggles lists every toggle with defaults applied.
func (s *WandService) Toggles(player domain.PlayerID) []toggle.Setting {
	return s.toggles.List(player)
}

// SetToggle stores a toggle and returns the previous value.
func (s *WandService) SetToggle(player domain.PlayerID, key string, value bool) (bool, error) {
	release, err := s.engine.Admit()
	if err != nil {
		return false, err
	}
	defer release()
	prev, err := s.toggles.Set(player, key, value)
	if err != nil {
		return false, err
	}
	k, _ := domain.ParseToggleKey(key)
	s.touch()
	s.events.Emit(domain.NewToggleChangedEvent(player, k, value))
	return prev, nil
}

// PlayerStats is a player's all-time and windowed usage.
type PlayerStats struct {
	PlayerID domain.PlayerID     `json:"player_id"`
	AllTime  []domain.StatRecord `json:"all_time"`
	Window   []domain.StatRecord `json:"window"`
}

// Stats returns usage counters for player.
func (s *WandService) Stats(player domain.PlayerID) PlayerStats {
	return PlayerStats{
		PlayerID: player,
		AllTime:  s.stats.Snapshot(player),
		Window:   s.stats.Window(player, s.nowMs()),
	}
}
