package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/guard"
	"github.com/empirewand/wandcore/internal/service"
)

// PermissionChecker answers whether a player holds a permission node.
type PermissionChecker interface {
	HasPermission(player domain.PlayerID, node string) bool
}

type handlerFunc func(ctx context.Context, c *call) (Result, error)

type subcommand struct {
	usage string
	read  bool
	run   handlerFunc
}

// Dispatcher executes intents against the wand service.
type Dispatcher struct {
	svc    *service.WandService
	perms  PermissionChecker
	logger *slog.Logger
	subs   map[string]subcommand

	limiter *guard.RateLimiter
	seen    *guard.IdempotencyGuard
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRateLimit caps intents per player.
func WithRateLimit(rl *guard.RateLimiter) Option {
	return func(d *Dispatcher) { d.limiter = rl }
}

// WithIdempotency drops intents whose id was already processed.
func WithIdempotency(ig *guard.IdempotencyGuard) Option {
	return func(d *Dispatcher) { d.seen = ig }
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(svc *service.WandService, perms PermissionChecker, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{svc: svc, perms: perms, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	d.subs = map[string]subcommand{
		"get":          {usage: "get [<wand> <slot>]", read: true, run: d.get},
		"list":         {usage: "list [<wand>]", read: true, run: d.list},
		"bind":         {usage: "bind <wand> <slot> <spell>", run: d.bind},
		"unbind":       {usage: "unbind <wand> <slot>", run: d.unbind},
		"bindall":      {usage: "bindall <wand> <spell>", run: d.bindAll},
		"bindtype":     {usage: "bindtype <wand> <type> <spell>", run: d.bindType},
		"bindcat":      {usage: "bindcat <wand> <category> <spell>", run: d.bindCategory},
		"set-spell":    {usage: "set-spell <wand> <spell>", run: d.setSpell},
		"spells":       {usage: "spells [category:<c>|type:<t>]", read: true, run: d.spells},
		"cast":         {usage: "cast <wand> <spell>", run: d.cast},
		"cd":           {usage: "cd [status [spell]|clear [spell]|toggle on|off|admin metrics|admin clear|status <player> [spell]|admin bypass <player> <wand> on|off]", run: d.cooldown},
		"toggle":       {usage: "toggle [<key> [on|off]]", run: d.toggle},
		"switcheffect": {usage: "switcheffect [on|off]", run: d.switchEffect},
		"stats":        {usage: "stats [<player>]", read: true, run: d.stats},
		"reload":       {usage: "reload", run: d.reload},
		"migrate":      {usage: "migrate", run: d.migrate},
	}
	return d
}

// Subcommands returns the names of every supported subcommand.
func (d *Dispatcher) Subcommands() []string {
	out := make([]string, 0, len(d.subs))
	for name := range d.subs {
		out = append(out, name)
	}
	return out
}

// call carries one intent through its handler.
type call struct {
	intent Intent
	ns     domain.Namespace
	player domain.PlayerID
	args   []string
	usage  string
	stale  bool
}

func (c *call) node(parts ...string) string {
	return string(c.ns) + "." + strings.Join(parts, ".")
}

func (c *call) usageError() error {
	return domain.ErrValidation("usage: /" + string(c.ns) + " " + c.usage)
}

func (c *call) arity(lo, hi int) error {
	if len(c.args) < lo || len(c.args) > hi {
		return c.usageError()
	}
	return nil
}

// Dispatch runs one intent. Every failure is reported in the Result; the
// error return of handlers never escapes.
func (d *Dispatcher) Dispatch(ctx context.Context, in Intent) Result {
	ns, err := domain.ParseNamespace(strings.ToLower(in.Namespace))
	if err != nil {
		return Failure(in, err)
	}
	if err := domain.ValidatePlayerID(in.PlayerID); err != nil {
		return Failure(in, err)
	}
	name := strings.ToLower(strings.TrimSpace(in.Subcommand))
	sub, ok := d.subs[name]
	if !ok {
		return Failure(in, domain.ErrValidation(fmt.Sprintf("unknown subcommand %q", in.Subcommand)))
	}

	if err := d.admit(ctx, in); err != nil {
		return Failure(in, err)
	}

	c := &call{intent: in, ns: ns, player: in.PlayerID, args: in.Args, usage: sub.usage, stale: sub.read}
	if err := d.require(c, c.node("command", name)); err != nil {
		return Failure(in, err)
	}

	res, err := sub.run(ctx, c)
	if err != nil {
		var appErr *domain.AppError
		if !errors.As(err, &appErr) || appErr.Status >= 500 {
			d.logger.Error("command failed", "subcommand", name, "player_id", in.PlayerID, "error", err)
			// Let a redelivery retry after an internal failure.
			if d.seen != nil && in.ID != "" {
				d.seen.Remove(in.ID)
			}
		}
		return Failure(in, err)
	}
	if c.stale {
		res.Stale = d.svc.Stale()
	}
	return res
}

func (d *Dispatcher) admit(ctx context.Context, in Intent) error {
	if d.limiter != nil {
		if r := d.limiter.Check(ctx, string(in.PlayerID)); !r.Allowed {
			return domain.ErrRateLimited(r.Reason)
		}
	}
	if d.seen != nil {
		if r := d.seen.Check(ctx, in.ID); !r.Allowed {
			return domain.ErrDuplicate(in.ID)
		}
	}
	return nil
}

func (d *Dispatcher) require(c *call, node string) error {
	if !d.perms.HasPermission(c.player, node) {
		return domain.ErrPermissionDenied(node)
	}
	return nil
}
