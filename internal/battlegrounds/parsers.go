package battlegrounds

import (
	"context"
	"math"

	"github.com/firestone-hs/decktracker/internal/diagnostics"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"go.uber.org/zap"
)

// ImprobablePercent is the predicted chance below which an observed outcome
// is reported as improbable.
const ImprobablePercent = 5.0

// Parser is one battlegrounds reducer.
type Parser interface {
	Applies(event gameevent.GameEvent, state *State) bool
	Parse(ctx context.Context, state *State, event gameevent.GameEvent) (*State, error)
	Name() string
}

// Parsers returns the battlegrounds catalogue in dispatch order.
func Parsers(reports diagnostics.Sink, logger *zap.Logger) []Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return []Parser{
		&GameStartParser{},
		&HeroSelectedParser{},
		&TurnStartParser{logger: logger},
		&SimulationParser{},
		&BattleResultParser{reports: reports, logger: logger},
		&GameEndParser{},
	}
}

// GameStartParser resets the state for a new lobby.
type GameStartParser struct{}

func (p *GameStartParser) Applies(event gameevent.GameEvent, state *State) bool {
	return event.Type == gameevent.GameStart
}

func (p *GameStartParser) Parse(ctx context.Context, state *State, event gameevent.GameEvent) (*State, error) {
	next := NewState()
	next.InGame = true
	return next, nil
}

func (p *GameStartParser) Name() string { return "BgsGameStartParser" }

// HeroSelectedParser records the local player's hero.
type HeroSelectedParser struct{}

func (p *HeroSelectedParser) Applies(event gameevent.GameEvent, state *State) bool {
	return state != nil && event.Type == gameevent.BattlegroundsHeroSelected
}

func (p *HeroSelectedParser) Parse(ctx context.Context, state *State, event gameevent.GameEvent) (*State, error) {
	hero := NormalizeHeroCardID(event.CardID)
	next := state.Clone()
	next.MainPlayerCardID = hero
	if _, ok := next.HpOverTurn[hero]; !ok {
		health, _ := event.AdditionalData.Int("health")
		armor, _ := event.AdditionalData.Int("armor")
		next.HpOverTurn[hero] = []HpTurn{{Turn: 0, Value: health, Armor: armor}}
	}
	return next, nil
}

func (p *HeroSelectedParser) Name() string { return "BgsHeroSelectedParser" }

// TurnStartParser converts the game's turn number into battlegrounds turns
// and records the health of every tracked hero.
type TurnStartParser struct {
	logger *zap.Logger
}

func (p *TurnStartParser) Applies(event gameevent.GameEvent, state *State) bool {
	return state != nil &&
		(event.Type == gameevent.BattlegroundsRecruitPhase || event.Type == gameevent.BattlegroundsCombatStart)
}

func (p *TurnStartParser) Parse(ctx context.Context, state *State, event gameevent.GameEvent) (*State, error) {
	turnNumber, ok := event.AdditionalData.Int("turnNumber")
	if !ok {
		return state, nil
	}
	next := state.Clone()
	next.CurrentTurn = int(math.Ceil(float64(turnNumber) / 2))

	heroes := event.AdditionalData.Maps("heroes")
	for hero, turns := range next.HpOverTurn {
		// opponents not revealed yet have no history
		if len(turns) == 0 {
			continue
		}
		var found gameevent.AdditionalData
		for _, h := range heroes {
			if NormalizeHeroCardID(h.String("CardId")) == hero {
				found = h
				break
			}
		}
		if found == nil {
			p.logger.Debug("hero missing from turn start", zap.String("hero", hero))
			continue
		}
		health, _ := found.Int("Health")
		armor, _ := found.Int("Armor")
		updated := make([]HpTurn, 0, len(turns)+1)
		for _, t := range turns {
			if t.Turn != next.CurrentTurn {
				updated = append(updated, t)
			}
		}
		next.HpOverTurn[hero] = append(updated, HpTurn{Turn: next.CurrentTurn, Value: health, Armor: armor})
	}
	return next, nil
}

func (p *TurnStartParser) Name() string { return "BgsTurnStartParser" }

// SimulationParser stores the prediction for the upcoming combat.
type SimulationParser struct{}

func (p *SimulationParser) Applies(event gameevent.GameEvent, state *State) bool {
	return state != nil && state.InGame && event.Type == gameevent.BattlegroundsBattleSimulated
}

func (p *SimulationParser) Parse(ctx context.Context, state *State, event gameevent.GameEvent) (*State, error) {
	data := event.AdditionalData
	result := &SimulationResult{
		WonPercent:  percent(data, "wonPercent"),
		TiedPercent: percent(data, "tiedPercent"),
		LostPercent: percent(data, "lostPercent"),
	}
	result.AverageDamageWon, _ = data.Float("averageDamageWon")
	result.AverageDamageLost, _ = data.Float("averageDamageLost")

	next := state.Clone()
	next.BattleResult = result
	next.BattleInfo = data.Map("battleInfo")
	return next, nil
}

func (p *SimulationParser) Name() string { return "BgsBattleSimulationParser" }

func percent(data gameevent.AdditionalData, key string) *float64 {
	v, ok := data.Float(key)
	if !ok {
		return nil
	}
	return &v
}

// BattleResultParser appends the face-off of the combat that just ended and
// keeps the win streaks. Outcomes the simulation deemed improbable are
// reported, without affecting the state.
type BattleResultParser struct {
	reports diagnostics.Sink
	logger  *zap.Logger
}

func (p *BattleResultParser) Applies(event gameevent.GameEvent, state *State) bool {
	return state != nil && state.InGame && event.Type == gameevent.BattlegroundsBattleResult
}

func (p *BattleResultParser) Parse(ctx context.Context, state *State, event gameevent.GameEvent) (*State, error) {
	result := event.AdditionalData.String("result")
	damage, _ := event.AdditionalData.Int("damage")
	faceOff := FaceOff{
		Turn:           state.CurrentTurn,
		PlayerCardID:   state.MainPlayerCardID,
		OpponentCardID: NormalizeHeroCardID(event.AdditionalData.String("opponent")),
		Result:         result,
		Damage:         damage,
	}
	p.checkImprobable(ctx, state, faceOff)

	next := state.Clone()
	next.FaceOffs = make([]FaceOff, 0, len(state.FaceOffs)+1)
	next.FaceOffs = append(append(next.FaceOffs, state.FaceOffs...), faceOff)
	if result == ResultWon {
		next.CurrentWinStreak = state.CurrentWinStreak + 1
	} else {
		next.CurrentWinStreak = 0
	}
	if next.CurrentWinStreak > next.HighestWinStreak {
		next.HighestWinStreak = next.CurrentWinStreak
	}
	return next, nil
}

func (p *BattleResultParser) checkImprobable(ctx context.Context, state *State, faceOff FaceOff) {
	sim := state.BattleResult
	if sim == nil || p.reports == nil {
		return
	}
	var message string
	var predicted *float64
	switch faceOff.Result {
	case ResultWon:
		message, predicted = "Unlikely battle victory", sim.WonPercent
	case ResultLost:
		message, predicted = "Unlikely battle loss", sim.LostPercent
	default:
		return
	}
	if predicted == nil || *predicted >= ImprobablePercent {
		return
	}
	p.logger.Info("improbable battle outcome",
		zap.String("result", faceOff.Result),
		zap.Float64("predicted_percent", *predicted),
		zap.Int("turn", faceOff.Turn),
	)
	p.reports.Capture(ctx, diagnostics.NewReport(diagnostics.KindImprobableBattleResult, message, map[string]any{
		"faceOff":      faceOff,
		"battleInput":  state.BattleInfo,
		"battleResult": sim,
	}))
}

func (p *BattleResultParser) Name() string { return "BgsBattleResultParser" }

// GameEndParser closes the lobby. The face-offs stay available for the
// post-match summary until the next game starts.
type GameEndParser struct{}

func (p *GameEndParser) Applies(event gameevent.GameEvent, state *State) bool {
	return state != nil && state.InGame && event.Type == gameevent.GameEnd
}

func (p *GameEndParser) Parse(ctx context.Context, state *State, event gameevent.GameEvent) (*State, error) {
	next := state.Clone()
	next.InGame = false
	return next, nil
}

func (p *GameEndParser) Name() string { return "BgsGameEndParser" }
