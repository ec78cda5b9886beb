// internal/bot/lua.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// DefaultScriptTimeout bounds a single choose() call.
const DefaultScriptTimeout = 100 * time.Millisecond

var errNoChoose = errors.New("script does not define choose(view)")

// LuaPolicy is an opponent policy whose decisions come from a Lua function
// choose(view). The view holds only what the seat may see:
//
//	seat, hand, legal, status, color, rank, top, pending, direction,
//	draw_pile, can_challenge, opponents = {{seat, hand_size, uno}, ...}
//
// choose returns {type = "play_card", card = "red_5", color = "red"} or any
// other command type. Script errors, timeouts and illegal answers fall back
// to engine.FirstLegal.
type LuaPolicy struct {
	mu       sync.Mutex
	state    *lua.LState
	choose   lua.LValue
	Timeout  time.Duration
	fallback engine.Policy
	log      *logrus.Entry
}

// NewLuaPolicy compiles src in a sandbox with the base, table, string and
// math libraries only.
func NewLuaPolicy(name, src string) (*LuaPolicy, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open lua library %s: %w", lib.name, err)
		}
	}
	for _, unsafe := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(unsafe, lua.LNil)
	}

	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("load bot script %s: %w", name, err)
	}
	fn := L.GetGlobal("choose")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("load bot script %s: %w", name, errNoChoose)
	}
	return &LuaPolicy{
		state:    L,
		choose:   fn,
		Timeout:  DefaultScriptTimeout,
		fallback: engine.FirstLegal{},
		log:      logrus.WithField("policy", name),
	}, nil
}

// Close releases the Lua state.
func (p *LuaPolicy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Close()
}

func (p *LuaPolicy) ChooseAction(view engine.PlayerView) engine.Command {
	cmd, err := p.call(view)
	if err == nil && acceptable(view, cmd) {
		return cmd
	}
	if err == nil {
		err = fmt.Errorf("illegal %s %s", cmd.Kind, cmd.Card)
	}
	p.log.WithError(err).WithField("seat", view.Seat).Warn("bot script failed, using first legal")
	return p.fallback.ChooseAction(view)
}

func (p *LuaPolicy) call(view engine.PlayerView) (engine.Command, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	L := p.state
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	if err := L.CallByParam(lua.P{Fn: p.choose, NRet: 1, Protect: true}, viewTable(L, view)); err != nil {
		return engine.Command{}, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return decodeCommand(view.Seat, ret)
}

func viewTable(L *lua.LState, v engine.PlayerView) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("seat", lua.LNumber(v.Seat))
	t.RawSetString("hand", cardList(L, v.Hand))
	t.RawSetString("legal", cardList(L, engine.LegalPlays(v.Hand, v.Table, v.Rules)))
	t.RawSetString("status", lua.LString(v.Status.String()))
	t.RawSetString("color", lua.LString(v.Table.Color.String()))
	t.RawSetString("rank", lua.LString(v.Table.Rank.String()))
	t.RawSetString("pending", lua.LNumber(v.Table.PendingDraw))
	t.RawSetString("direction", lua.LString(v.Table.Direction.String()))
	t.RawSetString("draw_pile", lua.LNumber(v.DrawPile))
	t.RawSetString("can_challenge", lua.LBool(v.CanChallenge))
	if v.TopCard != nil {
		t.RawSetString("top", lua.LString(v.TopCard.String()))
	}

	opponents := L.NewTable()
	for i, o := range v.Opponents {
		ot := L.NewTable()
		ot.RawSetString("seat", lua.LNumber(o.Seat))
		ot.RawSetString("hand_size", lua.LNumber(o.HandSize))
		ot.RawSetString("uno", lua.LBool(o.HasCalledUno))
		opponents.RawSetInt(i+1, ot)
	}
	t.RawSetString("opponents", opponents)
	return t
}

func cardList(L *lua.LState, cards []engine.Card) *lua.LTable {
	t := L.CreateTable(len(cards), 0)
	for i, c := range cards {
		t.RawSetInt(i+1, lua.LString(c.String()))
	}
	return t
}

func decodeCommand(seat int, ret lua.LValue) (engine.Command, error) {
	cmd := engine.Command{Seat: seat}
	switch v := ret.(type) {
	case lua.LString:
		cmd.Kind = engine.CommandKind(v)
		return cmd, nil
	case *lua.LTable:
		cmd.Kind = engine.CommandKind(lua.LVAsString(v.RawGetString("type")))
		if s := lua.LVAsString(v.RawGetString("card")); s != "" {
			card, err := engine.ParseCard(s)
			if err != nil {
				return cmd, err
			}
			cmd.Card = card
		}
		color, err := engine.ParseColor(lua.LVAsString(v.RawGetString("color")))
		if err != nil {
			return cmd, err
		}
		cmd.Color = color
		return cmd, nil
	}
	return cmd, fmt.Errorf("choose returned %s, want a table", ret.Type())
}

// acceptable reports whether the session would take cmd from this view.
func acceptable(v engine.PlayerView, cmd engine.Command) bool {
	switch cmd.Kind {
	case engine.CmdChooseColor:
		return v.Status == engine.StatusAwaitingColorChoice && cmd.Color.Concrete()
	case engine.CmdCallUno:
		return len(v.Hand) == 1 && !v.HasCalledUno
	}
	if v.Status != engine.StatusInProgress {
		return false
	}
	switch cmd.Kind {
	case engine.CmdDrawCard:
		return true
	case engine.CmdChallenge:
		return v.CanChallenge
	case engine.CmdPlayCard:
		if !slices.Contains(v.Hand, cmd.Card) || !engine.IsLegalPlay(cmd.Card, v.Table, v.Rules) {
			return false
		}
		if cmd.Card.IsWild() {
			return cmd.Color.Concrete()
		}
		return cmd.Color == engine.ColorWild
	}
	return false
}
