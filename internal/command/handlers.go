package command

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/empirewand/wandcore/internal/domain"
)

func (d *Dispatcher) get(_ context.Context, c *call) (Result, error) {
	if err := c.arity(0, 2); err != nil {
		return Result{}, err
	}
	if len(c.args) == 0 {
		c.stale = false
		w, err := d.svc.IssueWand(c.player, c.ns)
		if err != nil {
			return Result{}, err
		}
		return success(c.intent, "wand issued", w), nil
	}
	if len(c.args) != 2 {
		return Result{}, c.usageError()
	}
	wandID, err := domain.ParseWandID(c.args[0])
	if err != nil {
		return Result{}, err
	}
	spell, bound, err := d.svc.GetBinding(c.player, wandID, c.args[1])
	if err != nil {
		return Result{}, err
	}
	key, _, _ := domain.ParseSlotKey(c.args[1])
	data := map[string]interface{}{"wand_id": wandID, "slot_key": key, "spell_id": spell, "bound": bound}
	if !bound {
		return success(c.intent, "slot is empty", data), nil
	}
	return success(c.intent, fmt.Sprintf("%s holds %s", key, spell), data), nil
}

func (d *Dispatcher) list(_ context.Context, c *call) (Result, error) {
	if err := c.arity(0, 1); err != nil {
		return Result{}, err
	}
	if len(c.args) == 0 {
		wands := d.svc.Wands(c.player)
		return success(c.intent, fmt.Sprintf("%d wand(s)", len(wands)), wands), nil
	}
	wandID, err := domain.ParseWandID(c.args[0])
	if err != nil {
		return Result{}, err
	}
	bindings, err := d.svc.Bindings(c.player, wandID)
	if err != nil {
		return Result{}, err
	}
	return success(c.intent, fmt.Sprintf("%d binding(s)", len(bindings)), bindings), nil
}

func (d *Dispatcher) bind(_ context.Context, c *call) (Result, error) {
	if err := c.arity(3, 3); err != nil {
		return Result{}, err
	}
	wandID, err := domain.ParseWandID(c.args[0])
	if err != nil {
		return Result{}, err
	}
	spell := domain.NormalizeSpellID(c.args[2])
	if err := d.require(c, c.node("spell", "bind", spell)); err != nil {
		return Result{}, err
	}
	prev, err := d.svc.Bind(c.player, wandID, c.args[1], spell)
	if err != nil {
		return Result{}, err
	}
	key, _, _ := domain.ParseSlotKey(c.args[1])
	return success(c.intent, fmt.Sprintf("bound %s to %s", spell, key),
		map[string]interface{}{"slot_key": key, "spell_id": spell, "previous": prev}), nil
}

func (d *Dispatcher) unbind(_ context.Context, c *call) (Result, error) {
	if err := c.arity(2, 2); err != nil {
		return Result{}, err
	}
	wandID, err := domain.ParseWandID(c.args[0])
	if err != nil {
		return Result{}, err
	}
	prev, err := d.svc.Unbind(c.player, wandID, c.args[1])
	if err != nil {
		return Result{}, err
	}
	if prev == "" {
		return success(c.intent, "slot was already empty", nil), nil
	}
	return success(c.intent, "unbound "+prev, map[string]string{"previous": prev}), nil
}

func (d *Dispatcher) bindAll(_ context.Context, c *call) (Result, error) {
	if err := c.arity(2, 2); err != nil {
		return Result{}, err
	}
	wandID, err := domain.ParseWandID(c.args[0])
	if err != nil {
		return Result{}, err
	}
	spell := domain.NormalizeSpellID(c.args[1])
	if err := d.require(c, c.node("spell", "bind", spell)); err != nil {
		return Result{}, err
	}
	slots, err := d.svc.BindAll(c.player, wandID, spell)
	if err != nil {
		return Result{}, err
	}
	return bulkResult(c, spell, slots), nil
}

func (d *Dispatcher) bindType(_ context.Context, c *call) (Result, error) {
	if err := c.arity(3, 3); err != nil {
		return Result{}, err
	}
	wandID, err := domain.ParseWandID(c.args[0])
	if err != nil {
		return Result{}, err
	}
	t, err := domain.ParseSpellType(c.args[1])
	if err != nil {
		return Result{}, err
	}
	spell := domain.NormalizeSpellID(c.args[2])
	if err := d.require(c, c.node("spell", "bind", spell)); err != nil {
		return Result{}, err
	}
	slots, err := d.svc.BindByType(c.player, wandID, t, spell)
	if err != nil {
		return Result{}, err
	}
	return bulkResult(c, spell, slots), nil
}

func (d *Dispatcher) bindCategory(_ context.Context, c *call) (Result, error) {
	if err := c.arity(3, 3); err != nil {
		return Result{}, err
	}
	wandID, err := domain.ParseWandID(c.args[0])
	if err != nil {
		return Result{}, err
	}
	cat, err := domain.ParseCategory(c.args[1])
	if err != nil {
		return Result{}, err
	}
	spell := domain.NormalizeSpellID(c.args[2])
	if err := d.require(c, c.node("spell", "bind", spell)); err != nil {
		return Result{}, err
	}
	slots, err := d.svc.BindByCategory(c.player, wandID, cat, spell)
	if err != nil {
		return Result{}, err
	}
	return bulkResult(c, spell, slots), nil
}

func bulkResult(c *call, spell string, slots []string) Result {
	return success(c.intent, fmt.Sprintf("bound %s to %d slot(s)", spell, len(slots)),
		map[string]interface{}{"spell_id": spell, "slots": slots})
}

func (d *Dispatcher) setSpell(_ context.Context, c *call) (Result, error) {
	if err := c.arity(2, 2); err != nil {
		return Result{}, err
	}
	wandID, err := domain.ParseWandID(c.args[0])
	if err != nil {
		return Result{}, err
	}
	spell := domain.NormalizeSpellID(c.args[1])
	if err := d.require(c, c.node("spell", "use", spell)); err != nil {
		return Result{}, err
	}
	prev, err := d.svc.SetActive(c.player, wandID, spell)
	if err != nil {
		return Result{}, err
	}
	return success(c.intent, "active spell set to "+spell,
		map[string]string{"spell_id": spell, "previous": prev}), nil
}

func (d *Dispatcher) spells(_ context.Context, c *call) (Result, error) {
	if err := c.arity(0, 1); err != nil {
		return Result{}, err
	}
	filter := ""
	if len(c.args) == 1 {
		filter = c.args[0]
	}
	defs, err := d.svc.Spells(filter)
	if err != nil {
		return Result{}, err
	}
	return success(c.intent, fmt.Sprintf("%d spell(s)", len(defs)), defs), nil
}

func (d *Dispatcher) cast(_ context.Context, c *call) (Result, error) {
	if err := c.arity(2, 2); err != nil {
		return Result{}, err
	}
	wandID, err := domain.ParseWandID(c.args[0])
	if err != nil {
		return Result{}, err
	}
	spell := domain.NormalizeSpellID(c.args[1])
	if err := d.require(c, c.node("spell", "use", spell)); err != nil {
		return Result{}, err
	}
	res, err := d.svc.Cast(c.player, wandID, spell)
	if err != nil {
		return Result{}, err
	}
	if !res.Ready {
		msg := ""
		if res.Notify {
			msg = fmt.Sprintf("%s is on cooldown for %.1fs", spell, float64(res.RemainingMs)/1000)
		}
		return Result{IntentID: c.intent.ID, PlayerID: string(c.player), Code: domain.CodeOnCooldown, Message: msg, Data: res, Status: http.StatusConflict}, nil
	}
	return success(c.intent, "cast "+spell, res), nil
}

func (d *Dispatcher) cooldown(_ context.Context, c *call) (Result, error) {
	action := "status"
	rest := c.args
	if len(rest) > 0 {
		action = strings.ToLower(rest[0])
		rest = rest[1:]
	}

	switch action {
	case "status":
		c.stale = true
		return d.cooldownStatus(c, c.player, rest)
	case "clear":
		if err := d.require(c, c.node("command", "cd", "clear")); err != nil {
			return Result{}, err
		}
		return d.cooldownClear(c, c.player, rest)
	case "toggle":
		if len(rest) != 1 {
			return Result{}, c.usageError()
		}
		on, err := domain.ParseOnOff(rest[0])
		if err != nil {
			return Result{}, err
		}
		if err := d.svc.SetCooldownNotify(c.player, on); err != nil {
			return Result{}, err
		}
		return success(c.intent, "cooldown notifications "+onOff(on), map[string]bool{"cooldown_notify": on}), nil
	case "admin":
		return d.cooldownAdmin(c, rest)
	}
	return Result{}, c.usageError()
}

func (d *Dispatcher) cooldownStatus(c *call, player domain.PlayerID, rest []string) (Result, error) {
	switch len(rest) {
	case 0:
		active := d.svc.ActiveCooldowns(player)
		return success(c.intent, fmt.Sprintf("%d active cooldown(s)", len(active)), active), nil
	case 1:
		remaining, err := d.svc.CooldownStatus(player, rest[0])
		if err != nil {
			return Result{}, err
		}
		spell := domain.NormalizeSpellID(rest[0])
		msg := spell + " is ready"
		if remaining > 0 {
			msg = fmt.Sprintf("%s ready in %.1fs", spell, float64(remaining)/1000)
		}
		return success(c.intent, msg, map[string]interface{}{"spell_id": spell, "remaining_ms": remaining}), nil
	}
	return Result{}, c.usageError()
}

func (d *Dispatcher) cooldownClear(c *call, player domain.PlayerID, rest []string) (Result, error) {
	if len(rest) > 1 {
		return Result{}, c.usageError()
	}
	spell := ""
	if len(rest) == 1 {
		spell = rest[0]
	}
	n, err := d.svc.ClearCooldown(player, spell)
	if err != nil {
		return Result{}, err
	}
	return success(c.intent, fmt.Sprintf("cleared %d cooldown(s)", n), map[string]int{"cleared": n}), nil
}

func (d *Dispatcher) cooldownAdmin(c *call, rest []string) (Result, error) {
	if err := d.require(c, c.node("command", "cd", "admin")); err != nil {
		return Result{}, err
	}
	if len(rest) == 1 && strings.EqualFold(rest[0], "metrics") {
		c.stale = true
		m := d.svc.CooldownMetrics()
		return success(c.intent, fmt.Sprintf("%d player(s), %d window(s), %d bypass(es)", m.Players, m.Windows, m.Bypassed), m), nil
	}
	if len(rest) < 2 {
		return Result{}, c.usageError()
	}
	action, target := strings.ToLower(rest[0]), domain.PlayerID(rest[1])
	if err := domain.ValidatePlayerID(target); err != nil {
		return Result{}, err
	}
	rest = rest[2:]

	switch action {
	case "clear":
		return d.cooldownClear(c, target, rest)
	case "status":
		c.stale = true
		res, err := d.cooldownStatus(c, target, rest)
		if err == nil && len(rest) == 0 {
			res.Data = map[string]interface{}{
				"cooldowns": res.Data,
				"bypass":    d.svc.CooldownBypassed(target),
			}
		}
		return res, err
	case "bypass":
		if len(rest) != 2 {
			return Result{}, c.usageError()
		}
		wandID, err := domain.ParseWandID(rest[0])
		if err != nil {
			return Result{}, err
		}
		on, err := domain.ParseOnOff(rest[1])
		if err != nil {
			return Result{}, err
		}
		if err := d.svc.SetCooldownBypass(target, wandID, on); err != nil {
			return Result{}, err
		}
		return success(c.intent, fmt.Sprintf("cooldown bypass %s for %s on wand %s", onOff(on), target, wandID),
			map[string]interface{}{"player_id": target, "wand_id": wandID, "bypass": on}), nil
	}
	return Result{}, c.usageError()
}

func (d *Dispatcher) toggle(_ context.Context, c *call) (Result, error) {
	if err := c.arity(0, 2); err != nil {
		return Result{}, err
	}
	switch len(c.args) {
	case 0:
		c.stale = true
		return success(c.intent, "toggles", d.svc.Toggles(c.player)), nil
	case 1:
		c.stale = true
		v, err := d.svc.Toggle(c.player, c.args[0])
		if err != nil {
			return Result{}, err
		}
		key := strings.ToLower(c.args[0])
		return success(c.intent, key+" is "+onOff(v), map[string]bool{key: v}), nil
	}
	return d.setToggle(c, c.args[0], c.args[1])
}

func (d *Dispatcher) switchEffect(_ context.Context, c *call) (Result, error) {
	if err := c.arity(0, 1); err != nil {
		return Result{}, err
	}
	key := string(domain.ToggleSwitchEffect)
	if len(c.args) == 0 {
		c.stale = true
		v, err := d.svc.Toggle(c.player, key)
		if err != nil {
			return Result{}, err
		}
		return success(c.intent, "switch effect is "+onOff(v), map[string]bool{key: v}), nil
	}
	return d.setToggle(c, key, c.args[0])
}

func (d *Dispatcher) setToggle(c *call, key, value string) (Result, error) {
	on, err := domain.ParseOnOff(value)
	if err != nil {
		return Result{}, err
	}
	if _, err := d.svc.SetToggle(c.player, key, on); err != nil {
		return Result{}, err
	}
	key = strings.ToLower(key)
	return success(c.intent, key+" "+onOff(on), map[string]bool{key: on}), nil
}

func (d *Dispatcher) stats(_ context.Context, c *call) (Result, error) {
	if err := c.arity(0, 1); err != nil {
		return Result{}, err
	}
	target := c.player
	if len(c.args) == 1 && domain.PlayerID(c.args[0]) != c.player {
		target = domain.PlayerID(c.args[0])
		if err := domain.ValidatePlayerID(target); err != nil {
			return Result{}, err
		}
		if err := d.require(c, c.node("command", "stats", "others")); err != nil {
			return Result{}, err
		}
	}
	st := d.svc.Stats(target)
	return success(c.intent, fmt.Sprintf("%d spell(s) used", len(st.AllTime)), st), nil
}

func (d *Dispatcher) reload(_ context.Context, c *call) (Result, error) {
	if err := c.arity(0, 0); err != nil {
		return Result{}, err
	}
	n, err := d.svc.ReloadCatalog()
	if err != nil {
		return Result{}, err
	}
	return success(c.intent, fmt.Sprintf("catalog reloaded with %d spell(s)", n), map[string]int{"spells": n}), nil
}

func (d *Dispatcher) migrate(ctx context.Context, c *call) (Result, error) {
	if err := c.arity(0, 0); err != nil {
		return Result{}, err
	}
	report, err := d.svc.Migrate(ctx)
	if err != nil {
		return Result{}, err
	}
	msg := fmt.Sprintf("state is at version %d", report.ToVersion)
	if len(report.Applied) > 0 {
		msg = fmt.Sprintf("migrated from version %d to %d with %d warning(s)", report.FromVersion, report.ToVersion, len(report.Warnings))
	}
	return success(c.intent, msg, report), nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
