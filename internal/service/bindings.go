package service

import (
	"github.com/empirewand/wandcore/internal/domain"
	"github.com/google/uuid"
)

// IssueWand creates and registers a new wand for player.
func (s *WandService) IssueWand(player domain.PlayerID, ns domain.Namespace) (domain.Wand, error) {
	release, err := s.engine.Admit()
	if err != nil {
		return domain.Wand{}, err
	}
	defer release()
	w := domain.Wand{ID: uuid.New(), OwnerID: player, Namespace: ns}
	if err := s.bindings.RegisterWand(w); err != nil {
		return domain.Wand{}, err
	}
	s.touch()
	s.events.Emit(domain.NewWandIssuedEvent(w))
	s.logger.Info("wand issued", "wand_id", w.ID, "player_id", player, "namespace", ns)
	return w, nil
}

// Wands lists the wands owned by player.
func (s *WandService) Wands(player domain.PlayerID) []domain.Wand {
	return s.bindings.WandsOf(player)
}

// Bindings lists the bindings of one of player's wands.
func (s *WandService) Bindings(player domain.PlayerID, wandID uuid.UUID) ([]domain.Binding, error) {
	if _, err := s.ownedWand(player, wandID); err != nil {
		return nil, err
	}
	return s.bindings.List(wandID)
}

// GetBinding returns the spell bound at slotKey.
func (s *WandService) GetBinding(player domain.PlayerID, wandID uuid.UUID, slotKey string) (string, bool, error) {
	if _, err := s.ownedWand(player, wandID); err != nil {
		return "", false, err
	}
	return s.bindings.Get(wandID, slotKey)
}

// Bind binds spellID to slotKey and returns the spell it replaced.
func (s *WandService) Bind(player domain.PlayerID, wandID uuid.UUID, slotKey, spellID string) (string, error) {
	w, release, err := s.beginWandMutation(player, wandID)
	if err != nil {
		return "", err
	}
	defer release()
	prev, err := s.bindings.Bind(wandID, slotKey, spellID)
	if err != nil {
		return "", err
	}
	key, _, _ := domain.ParseSlotKey(slotKey)
	s.afterBind(w, "bind", []string{key}, domain.NormalizeSpellID(spellID))
	return prev, nil
}

// BindAll binds spellID to every category slot.
func (s *WandService) BindAll(player domain.PlayerID, wandID uuid.UUID, spellID string) ([]string, error) {
	w, release, err := s.beginWandMutation(player, wandID)
	if err != nil {
		return nil, err
	}
	defer release()
	slots, err := s.bindings.BindAll(wandID, spellID)
	if err != nil {
		return nil, err
	}
	s.afterBind(w, "bindall", slots, domain.NormalizeSpellID(spellID))
	return slots, nil
}

// BindByType binds spellID to the type slot and every slot holding a spell of
// that type.
func (s *WandService) BindByType(player domain.PlayerID, wandID uuid.UUID, t domain.SpellType, spellID string) ([]string, error) {
	w, release, err := s.beginWandMutation(player, wandID)
	if err != nil {
		return nil, err
	}
	defer release()
	slots, err := s.bindings.BindByType(wandID, t, spellID)
	if err != nil {
		return nil, err
	}
	s.afterBind(w, "bindtype", slots, domain.NormalizeSpellID(spellID))
	return slots, nil
}

// BindByCategory binds spellID to the category slot and every slot holding a
// spell of that category.
func (s *WandService) BindByCategory(player domain.PlayerID, wandID uuid.UUID, c domain.Category, spellID string) ([]string, error) {
	w, release, err := s.beginWandMutation(player, wandID)
	if err != nil {
		return nil, err
	}
	defer release()
	slots, err := s.bindings.BindByCategory(wandID, c, spellID)
	if err != nil {
		return nil, err
	}
	s.afterBind(w, "bindcat", slots, domain.NormalizeSpellID(spellID))
	return slots, nil
}

// Unbind clears slotKey and returns the spell it held.
func (s *WandService) Unbind(player domain.PlayerID, wandID uuid.UUID, slotKey string) (string, error) {
	w, release, err := s.beginWandMutation(player, wandID)
	if err != nil {
		return "", err
	}
	defer release()
	prev, err := s.bindings.Unbind(wandID, slotKey)
	if err != nil {
		return "", err
	}
	if prev != "" {
		key, _, _ := domain.ParseSlotKey(slotKey)
		s.touch()
		s.events.Emit(domain.NewBindingChangedEvent(w, "unbind", []string{key}, ""))
	}
	return prev, nil
}

// SetActive selects an already bound spell as the wand's active spell.
func (s *WandService) SetActive(player domain.PlayerID, wandID uuid.UUID, spellID string) (string, error) {
	w, release, err := s.beginWandMutation(player, wandID)
	if err != nil {
		return "", err
	}
	defer release()
	prev, err := s.bindings.SetActive(wandID, spellID)
	if err != nil {
		return "", err
	}
	s.touch()
	s.events.Emit(domain.NewBindingChangedEvent(w, "set-spell", []string{domain.ActiveSlot}, domain.NormalizeSpellID(spellID)))
	return prev, nil
}

// beginWandMutation admits a mutation on one of player's wands. The returned
// release must be called once the mutation is done.
func (s *WandService) beginWandMutation(player domain.PlayerID, wandID uuid.UUID) (domain.Wand, func(), error) {
	release, err := s.engine.Admit()
	if err != nil {
		return domain.Wand{}, nil, err
	}
	w, err := s.ownedWand(player, wandID)
	if err != nil {
		release()
		return domain.Wand{}, nil, err
	}
	return w, release, nil
}

func (s *WandService) afterBind(w domain.Wand, op string, slots []string, spellID string) {
	for range slots {
		s.stats.RecordBind(w.OwnerID, spellID)
	}
	s.touch()
	s.events.Emit(domain.NewBindingChangedEvent(w, op, slots, spellID))
	s.logger.Debug("binding changed", "wand_id", w.ID, "op", op, "slots", len(slots), "spell_id", spellID)
}
