package command

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/empirewand/wandcore/internal/catalog"
	"github.com/empirewand/wandcore/internal/cooldown"
	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/guard"
	"github.com/empirewand/wandcore/internal/policy"
	"github.com/empirewand/wandcore/internal/repository"
	"github.com/empirewand/wandcore/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testGrants() policy.Grants {
	g := policy.DefaultGrants()
	g.Groups = map[string][]string{"admin": {"ew.*", "mz.*"}}
	g.Players = map[string]policy.PlayerGrant{
		"op":     {Groups: []string{"admin"}},
		"newbie": {Deny: []string{"ew.spell.bind.comet"}},
	}
	return g
}

func newDispatcher(t *testing.T, start bool, opts ...Option) *Dispatcher {
	t.Helper()
	cat, err := catalog.New(catalog.Defaults())
	require.NoError(t, err)
	svc := service.NewWandService(cat, repository.NewMemoryStateRepository(nil), service.Options{StatsWindow: time.Hour}, testLogger)
	if start {
		require.NoError(t, svc.Start(context.Background()))
	}
	return NewDispatcher(svc, policy.NewChecker(testGrants()), testLogger, opts...)
}

func run(d *Dispatcher, player, sub string, args ...string) Result {
	return d.Dispatch(context.Background(), Intent{Namespace: "ew", PlayerID: domain.PlayerID(player), Subcommand: sub, Args: args})
}

func issue(t *testing.T, d *Dispatcher, player string) string {
	t.Helper()
	res := run(d, player, "get")
	require.True(t, res.OK, res.Message)
	return res.Data.(domain.Wand).ID.String()
}

func TestDispatch_RejectsMalformedIntents(t *testing.T) {
	d := newDispatcher(t, true)

	tests := []struct {
		name string
		in   Intent
	}{
		{"unknown namespace", Intent{Namespace: "xx", PlayerID: "steve", Subcommand: "list"}},
		{"bad player", Intent{Namespace: "ew", PlayerID: "has space", Subcommand: "list"}},
		{"unknown subcommand", Intent{Namespace: "ew", PlayerID: "steve", Subcommand: "explode"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Dispatch(context.Background(), tt.in)
			assert.False(t, res.OK)
			assert.Equal(t, domain.CodeValidation, res.Code)
		})
	}
}

func TestDispatch_UsageErrors(t *testing.T) {
	d := newDispatcher(t, true)

	res := run(d, "steve", "bind", "only-one-arg")
	assert.Equal(t, domain.CodeValidation, res.Code)
	assert.Contains(t, res.Message, "usage: /ew bind")

	res = run(d, "steve", "get", "just-a-wand")
	assert.Equal(t, domain.CodeValidation, res.Code)

	res = run(d, "steve", "cd", "sideways")
	assert.Equal(t, domain.CodeValidation, res.Code)
}

func TestDispatch_BindAndCast(t *testing.T) {
	d := newDispatcher(t, true)
	wand := issue(t, d, "steve")

	res := run(d, "steve", "bind", wand, "slot:0", "Leap")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "bound leap to slot:0", res.Message)

	res = run(d, "steve", "get", wand, "0")
	require.True(t, res.OK)
	assert.Equal(t, "slot:0 holds leap", res.Message)

	res = run(d, "steve", "cast", wand, "leap")
	require.True(t, res.OK, res.Message)

	res = run(d, "steve", "cast", wand, "leap")
	assert.False(t, res.OK)
	assert.Equal(t, domain.CodeOnCooldown, res.Code)
	assert.Contains(t, res.Message, "leap is on cooldown")

	res = run(d, "steve", "cast", wand, "comet")
	assert.Equal(t, domain.CodeSpellNotBound, res.Code)

	res = run(d, "steve", "list", wand)
	require.True(t, res.OK)
	assert.Len(t, res.Data, 1)
}

func TestDispatch_OtherPlayersWand(t *testing.T) {
	d := newDispatcher(t, true)
	wand := issue(t, d, "steve")

	res := run(d, "alex", "bind", wand, "slot:0", "leap")
	assert.Equal(t, domain.CodeUnknownWand, res.Code)
}

func TestDispatch_BulkBinds(t *testing.T) {
	d := newDispatcher(t, true)
	wand := issue(t, d, "steve")

	res := run(d, "steve", "bindall", wand, "leap")
	require.True(t, res.OK, res.Message)
	assert.Len(t, res.Data.(map[string]interface{})["slots"], len(domain.Categories))

	res = run(d, "steve", "bindcat", wand, "fire", "comet")
	require.True(t, res.OK, res.Message)

	res = run(d, "steve", "bindtype", wand, "beam", "comet")
	assert.Equal(t, domain.CodeValidation, res.Code)

	res = run(d, "steve", "set-spell", wand, "comet")
	require.True(t, res.OK, res.Message)
}

func TestDispatch_SpellPermissions(t *testing.T) {
	d := newDispatcher(t, true)
	wand := issue(t, d, "newbie")

	res := run(d, "newbie", "bind", wand, "slot:0", "comet")
	assert.Equal(t, domain.CodePermissionDenied, res.Code)
	assert.Contains(t, res.Message, "ew.spell.bind.comet")

	res = run(d, "newbie", "bindall", wand, "COMET")
	assert.Equal(t, domain.CodePermissionDenied, res.Code)

	res = run(d, "newbie", "bind", wand, "slot:0", "leap")
	assert.True(t, res.OK)
}

func TestDispatch_AdminCommands(t *testing.T) {
	d := newDispatcher(t, true)

	res := run(d, "steve", "reload")
	assert.Equal(t, domain.CodePermissionDenied, res.Code)

	res = run(d, "op", "reload")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, map[string]int{"spells": len(catalog.Defaults())}, res.Data)

	res = run(d, "op", "migrate")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "state is at version 3", res.Message)
}

func TestDispatch_CooldownCommands(t *testing.T) {
	d := newDispatcher(t, true)
	wand := issue(t, d, "steve")
	require.True(t, run(d, "steve", "bind", wand, "slot:0", "teleport").OK)
	require.True(t, run(d, "steve", "cast", wand, "teleport").OK)

	res := run(d, "steve", "cd")
	require.True(t, res.OK)
	assert.Equal(t, "1 active cooldown(s)", res.Message)

	res = run(d, "steve", "cd", "status", "teleport")
	require.True(t, res.OK)
	assert.Contains(t, res.Message, "teleport ready in")

	res = run(d, "steve", "cd", "toggle", "off")
	require.True(t, res.OK)
	res = run(d, "steve", "cast", wand, "teleport")
	assert.Equal(t, domain.CodeOnCooldown, res.Code)
	assert.Empty(t, res.Message)

	t.Run("self clear requires permission", func(t *testing.T) {
		res := run(d, "steve", "cd", "clear")
		assert.Equal(t, domain.CodePermissionDenied, res.Code)
		assert.Contains(t, res.Message, "ew.command.cd.clear")

		res = run(d, "steve", "cast", wand, "teleport")
		assert.Equal(t, domain.CodeOnCooldown, res.Code, "cooldown still running after a denied clear")
	})

	t.Run("admin clear", func(t *testing.T) {
		res := run(d, "op", "cd", "admin", "clear", "steve")
		require.True(t, res.OK, res.Message)
		assert.Equal(t, "cleared 1 cooldown(s)", res.Message)
		assert.True(t, run(d, "steve", "cast", wand, "teleport").OK)
	})

	t.Run("admin requires permission", func(t *testing.T) {
		res := run(d, "steve", "cd", "admin", "bypass", "steve", wand, "on")
		assert.Equal(t, domain.CodePermissionDenied, res.Code)
		res = run(d, "steve", "cd", "admin", "metrics")
		assert.Equal(t, domain.CodePermissionDenied, res.Code)
	})

	t.Run("admin bypass", func(t *testing.T) {
		res := run(d, "op", "cd", "admin", "bypass", "steve", wand, "on")
		require.True(t, res.OK, res.Message)

		for i := 0; i < 3; i++ {
			assert.True(t, run(d, "steve", "cast", wand, "teleport").OK)
		}

		res = run(d, "op", "cd", "admin", "status", "steve")
		require.True(t, res.OK)
		assert.Equal(t, []uuid.UUID{uuid.MustParse(wand)}, res.Data.(map[string]interface{})["bypass"])

		res = run(d, "op", "cd", "admin", "metrics")
		require.True(t, res.OK, res.Message)
		assert.Equal(t, 1, res.Data.(cooldown.Metrics).Bypassed)

		res = run(d, "op", "cd", "admin", "bypass", "steve", "not-a-wand", "on")
		assert.Equal(t, domain.CodeUnknownWand, res.Code)
	})
}

func TestDispatch_SelfClearGrantedByNode(t *testing.T) {
	cat, err := catalog.New(catalog.Defaults())
	require.NoError(t, err)
	svc := service.NewWandService(cat, repository.NewMemoryStateRepository(nil), service.Options{StatsWindow: time.Hour}, testLogger)
	require.NoError(t, svc.Start(context.Background()))

	g := testGrants()
	g.Players["trusted"] = policy.PlayerGrant{Nodes: []string{"ew.command.cd.clear"}}
	d := NewDispatcher(svc, policy.NewChecker(g), testLogger)

	wand := issue(t, d, "trusted")
	require.True(t, run(d, "trusted", "bind", wand, "slot:0", "teleport").OK)
	require.True(t, run(d, "trusted", "cast", wand, "teleport").OK)
	assert.Equal(t, domain.CodeOnCooldown, run(d, "trusted", "cast", wand, "teleport").Code)

	res := run(d, "trusted", "cd", "clear", "teleport")
	require.True(t, res.OK, res.Message)
	assert.True(t, run(d, "trusted", "cast", wand, "teleport").OK)
}

func TestDispatch_Toggles(t *testing.T) {
	d := newDispatcher(t, true)

	res := run(d, "steve", "toggle", "sounds", "off")
	require.True(t, res.OK, res.Message)

	res = run(d, "steve", "toggle", "sounds")
	require.True(t, res.OK)
	assert.Equal(t, "sounds is off", res.Message)

	res = run(d, "steve", "toggle", "glow", "on")
	assert.Equal(t, domain.CodeUnknownToggleKey, res.Code)

	res = run(d, "steve", "switcheffect", "off")
	require.True(t, res.OK)
	res = run(d, "steve", "switcheffect")
	assert.Equal(t, "switch effect is off", res.Message)
}

func TestDispatch_Stats(t *testing.T) {
	d := newDispatcher(t, true)
	wand := issue(t, d, "steve")
	require.True(t, run(d, "steve", "bind", wand, "slot:0", "leap").OK)
	require.True(t, run(d, "steve", "cast", wand, "leap").OK)

	res := run(d, "steve", "stats")
	require.True(t, res.OK)
	st := res.Data.(service.PlayerStats)
	require.Len(t, st.AllTime, 1)
	assert.Equal(t, int64(1), st.AllTime[0].CastCount)

	res = run(d, "alex", "stats", "steve")
	assert.Equal(t, domain.CodePermissionDenied, res.Code)

	res = run(d, "op", "stats", "steve")
	assert.True(t, res.OK)
}

func TestDispatch_StaleBeforeMigration(t *testing.T) {
	d := newDispatcher(t, false)

	res := run(d, "steve", "list")
	require.True(t, res.OK)
	assert.True(t, res.Stale)

	res = run(d, "steve", "get")
	assert.Equal(t, domain.CodeMigrationInProgress, res.Code)
}

func TestDispatch_Guards(t *testing.T) {
	t.Run("rate limit", func(t *testing.T) {
		d := newDispatcher(t, true, WithRateLimit(guard.NewRateLimiter(2, time.Minute)))
		assert.True(t, run(d, "steve", "spells").OK)
		assert.True(t, run(d, "steve", "spells").OK)
		assert.Equal(t, domain.CodeRateLimited, run(d, "steve", "spells").Code)
		assert.True(t, run(d, "alex", "spells").OK)
	})

	t.Run("duplicate intent", func(t *testing.T) {
		d := newDispatcher(t, true, WithIdempotency(guard.NewIdempotencyGuard(10)))
		in := Intent{ID: "i-1", Namespace: "ew", PlayerID: "steve", Subcommand: "get"}

		first := d.Dispatch(context.Background(), in)
		require.True(t, first.OK)
		assert.Equal(t, "i-1", first.IntentID)

		second := d.Dispatch(context.Background(), in)
		assert.Equal(t, domain.CodeDuplicate, second.Code)
		assert.Len(t, run(d, "steve", "list").Data, 1)
	})
}
