// Package games holds the per-game rules a round is played under. Each game
// builds its state from the round's seed pair at creation and settles a move
// against that state at resolution.
package games

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/bits"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/fairness"
	"fairplay-backend/internal/models"
)

// Outcome is the settled result of one move.
type Outcome struct {
	Won     bool
	Payout  int64
	Details any
}

type Rules interface {
	Kind() models.GameKind
	// NewState draws the round's state. It returns the number of nonces consumed.
	NewState(seeds models.SeedPair, config json.RawMessage) (models.GameState, uint64, error)
	// Config recovers the creation config from a state, for replay.
	Config(state models.GameState) json.RawMessage
	// Reveal is the part of the state the client may see before resolving.
	Reveal(state models.GameState) any
	Resolve(state models.GameState, wager int64, move json.RawMessage) (Outcome, error)
}

type Registry struct {
	rules map[models.GameKind]Rules
}

func NewRegistry(rules ...Rules) *Registry {
	r := &Registry{rules: make(map[models.GameKind]Rules, len(rules))}
	for _, rule := range rules {
		r.rules[rule.Kind()] = rule
	}
	return r
}

// Default registers every game the platform offers.
func Default() *Registry {
	return NewRegistry(Shell{}, Dice{}, Coinflip{})
}

func (r *Registry) Lookup(kind models.GameKind) (Rules, error) {
	rule, ok := r.rules[kind]
	if !ok {
		return nil, apperr.WithMetadata(apperr.CodeInvalidInput,
			fmt.Sprintf("unknown game kind %q", kind),
			map[string]any{"game_kind": kind})
	}
	return rule, nil
}

// drawer hands out consecutive nonces so no two draws in a round share one.
type drawer struct {
	seeds models.SeedPair
	next  uint64
}

func newDrawer(seeds models.SeedPair) *drawer {
	return &drawer{seeds: seeds}
}

func (d *drawer) intn(lo, hi int) int {
	v := fairness.DeriveInRange(d.seeds.SecretSeed, d.seeds.ClientSeed, d.next, lo, hi)
	d.next++
	return v
}

func (d *drawer) used() uint64 {
	return d.next
}

func invalidMove(format string, args ...any) error {
	return apperr.New(apperr.CodeInvalidInput, "invalid move: "+fmt.Sprintf(format, args...))
}

func invalidConfig(format string, args ...any) error {
	return apperr.New(apperr.CodeInvalidInput, "invalid game config: "+fmt.Sprintf(format, args...))
}

func corrupt(kind models.GameKind, format string, args ...any) error {
	return apperr.WithMetadata(apperr.CodeInternalInconsistency,
		fmt.Sprintf("%s state: ", kind)+fmt.Sprintf(format, args...),
		map[string]any{"game_kind": kind})
}

// decodeStrict decodes an optional config, rejecting fields v does not have.
func decodeStrict(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// noConfig rejects anything but an absent, null or empty config.
func noConfig(raw json.RawMessage) error {
	var empty struct{}
	if err := decodeStrict(raw, &empty); err != nil {
		return invalidConfig("%v", err)
	}
	return nil
}

// payout returns floor(wager*num/den) computed in 128 bits. A result that
// does not fit in int64 fails closed.
func payout(kind models.GameKind, wager, num, den int64) (int64, error) {
	hi, lo := bits.Mul64(uint64(wager), uint64(num))
	if wager <= 0 || hi >= uint64(den) {
		return 0, payoutOverflow(kind, wager)
	}
	q, _ := bits.Div64(hi, lo, uint64(den))
	if q > math.MaxInt64 {
		return 0, payoutOverflow(kind, wager)
	}
	return int64(q), nil
}

func payoutOverflow(kind models.GameKind, wager int64) error {
	return apperr.WithMetadata(apperr.CodeInternalInconsistency,
		fmt.Sprintf("%s payout for wager %d is out of range", kind, wager),
		map[string]any{"game_kind": kind, "wager": wager})
}
