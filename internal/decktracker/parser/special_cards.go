package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/firestone-hs/decktracker/internal/gamestate"
	"github.com/google/cel-go/cel"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Effect kinds a special card rule can apply.
const (
	EffectGlobal     = "global_effect"
	EffectAdjustCost = "adjust_cost"
	EffectSetCost    = "set_cost"
)

// Rule describes what playing a card does to its owner's tracked deck.
// When is an optional CEL condition over card, deck and turn.
type Rule struct {
	CardID  string   `yaml:"cardId" json:"cardId"`
	When    string   `yaml:"when,omitempty" json:"when,omitempty"`
	Effects []Effect `yaml:"effects" json:"effects"`
}

// Effect is one change applied by a rule. Cost effects only touch cards of
// CardType (any type when empty) in the listed zones (the library when empty).
type Effect struct {
	Kind     string   `yaml:"kind" json:"kind"`
	Value    int      `yaml:"value,omitempty" json:"value,omitempty"`
	CardType string   `yaml:"cardType,omitempty" json:"cardType,omitempty"`
	Zones    []string `yaml:"zones,omitempty" json:"zones,omitempty"`
}

type compiledRule struct {
	Rule
	program cel.Program
}

// SpecialCards applies data-driven card rules after a play.
type SpecialCards struct {
	rules  map[string][]compiledRule
	logger *zap.Logger
}

// NewSpecialCards compiles the rules' conditions.
func NewSpecialCards(rules []Rule, logger *zap.Logger) (*SpecialCards, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	env, err := cel.NewEnv(
		cel.Variable("card", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("deck", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("turn", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	s := &SpecialCards{rules: make(map[string][]compiledRule), logger: logger}
	for _, r := range rules {
		for _, e := range r.Effects {
			switch e.Kind {
			case EffectGlobal, EffectAdjustCost, EffectSetCost:
			default:
				return nil, fmt.Errorf("rule %s: unknown effect kind %q", r.CardID, e.Kind)
			}
		}
		cr := compiledRule{Rule: r}
		if strings.TrimSpace(r.When) != "" {
			ast, issues := env.Compile(r.When)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("rule %s: CEL compile error: %w", r.CardID, issues.Err())
			}
			if !ast.OutputType().IsExactType(cel.BoolType) {
				return nil, fmt.Errorf("rule %s: condition must be a bool, got %s", r.CardID, ast.OutputType())
			}
			if cr.program, err = env.Program(ast); err != nil {
				return nil, fmt.Errorf("rule %s: CEL program error: %w", r.CardID, err)
			}
		}
		s.rules[r.CardID] = append(s.rules[r.CardID], cr)
	}
	return s, nil
}

// LoadSpecialCards reads a YAML or JSON rule list.
func LoadSpecialCards(path string, logger *zap.Logger) (*SpecialCards, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read special card rules: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("decode special card rules %s: %w", path, err)
	}
	return NewSpecialCards(rules, logger)
}

// DefaultRules are the rules used when no rule file is configured.
var DefaultRules = []Rule{
	{
		// Embiggen: minions in the deck cost (1) more
		CardID: "DRG_315",
		Effects: []Effect{
			{Kind: EffectGlobal},
			{Kind: EffectAdjustCost, Value: 1, CardType: "Minion", Zones: []string{"deck"}},
		},
	},
}

// DefaultSpecialCards compiles DefaultRules.
func DefaultSpecialCards(logger *zap.Logger) *SpecialCards {
	s, err := NewSpecialCards(DefaultRules, logger)
	if err != nil {
		panic(err)
	}
	return s
}

// Apply runs the rules of the played card against its owner's deck and
// returns the updated deck. The input deck is not modified.
func (s *SpecialCards) Apply(ctx context.Context, played gamestate.DeckCard, deck *gamestate.DeckState, turn int) *gamestate.DeckState {
	if s == nil {
		return deck
	}
	rules := s.rules[played.CardID]
	if len(rules) == 0 {
		return deck
	}
	out := deck
	for _, r := range rules {
		if !s.matches(ctx, r, played, out, turn) {
			continue
		}
		if out == deck {
			out = deck.Clone()
		}
		for _, e := range r.Effects {
			switch e.Kind {
			case EffectGlobal:
				global := played
				global.EntityID = 0
				global.Zone = gamestate.ZoneNone
				out.GlobalEffects = appendCard(out.GlobalEffects, global)
			case EffectAdjustCost, EffectSetCost:
				applyCost(out, e)
			}
		}
	}
	return out
}

func (s *SpecialCards) matches(ctx context.Context, r compiledRule, played gamestate.DeckCard, deck *gamestate.DeckState, turn int) bool {
	if r.program == nil {
		return true
	}
	vars := map[string]any{
		"card": map[string]any{
			"id":   played.CardID,
			"name": played.CardName,
			"cost": played.ManaCost,
			"type": played.CardType,
		},
		"deck": map[string]any{
			"handSize":            len(deck.Hand),
			"deckSize":            len(deck.Deck),
			"boardSize":           len(deck.Board),
			"cardsPlayedThisTurn": len(deck.CardsPlayedThisTurn),
		},
		"turn": turn,
	}
	out, _, err := r.program.ContextEval(ctx, vars)
	if err != nil {
		s.logger.Warn("special card condition failed",
			zap.String("card_id", r.CardID),
			zap.String("when", r.When),
			zap.Error(err),
		)
		return false
	}
	ok, _ := out.Value().(bool)
	return ok
}

func applyCost(deck *gamestate.DeckState, e Effect) {
	zones := e.Zones
	if len(zones) == 0 {
		zones = []string{"deck"}
	}
	for _, name := range zones {
		var zone *[]gamestate.DeckCard
		switch name {
		case "deck":
			zone = &deck.Deck
		case "hand":
			zone = &deck.Hand
		case "board":
			zone = &deck.Board
		default:
			continue
		}
		updated := make([]gamestate.DeckCard, len(*zone))
		for i, c := range *zone {
			if e.CardType == "" || strings.EqualFold(c.CardType, e.CardType) {
				if e.Kind == EffectSetCost {
					c.ManaCost = e.Value
				} else {
					c.ManaCost = max(0, c.ManaCost+e.Value)
				}
			}
			updated[i] = c
		}
		*zone = updated
	}
}
