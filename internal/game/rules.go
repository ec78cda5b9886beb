// internal/game/rules.go
package game

import (
	"fmt"
	"math"

	"github.com/jason-s-yu/uno/internal/engine"
)

// HouseRules are the engine rules plus the table-service settings around them.
type HouseRules struct {
	engine.HouseRules
	TurnTimerSec int `json:"turnTimerSec"` // seconds a human seat has before a draw is forced; 0 disables
	BotDelayMs   int `json:"botDelayMs"`   // pause before a bot acts
}

// DefaultHouseRules returns the standard engine rules with a 15 second turn timer.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		HouseRules:   engine.DefaultHouseRules(),
		TurnTimerSec: 15,
		BotDelayMs:   500,
	}
}

// Update will update the house rules with the new rules provided.
// If a rule is not set or defined, it will be ignored, and the old value will persist.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	var ok bool
	var err error

	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			*field, ok = val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal int, validationMsg string) error {
		if val, exists := newRules[key]; exists && val != nil {
			// JSON numbers decode as float64
			var floatVal float64
			floatVal, ok = val.(float64)
			if !ok {
				var intVal int
				intVal, ok = val.(int)
				if !ok {
					return fmt.Errorf("invalid type for %s", key)
				}
				*field = intVal
			} else {
				if floatVal > math.MaxInt32 || floatVal < math.MinInt32 {
					return fmt.Errorf("%s is out of range", key)
				}
				*field = int(floatVal)
			}

			if *field < minVal {
				return fmt.Errorf("%s", validationMsg)
			}
		}
		return nil
	}

	if err = assignInt(&rules.HandSize, "handSize", 1, "handSize must be positive"); err != nil {
		return err
	}
	if err = assignInt(&rules.MinPlayers, "minPlayers", 2, "minPlayers must be at least 2"); err != nil {
		return err
	}
	if err = assignInt(&rules.MaxPlayers, "maxPlayers", 2, "maxPlayers must be at least 2"); err != nil {
		return err
	}
	if err = assignBool(&rules.StackDraws, "stackDraws"); err != nil {
		return err
	}
	if err = assignBool(&rules.ChallengeWildDrawFour, "challengeWildDrawFour"); err != nil {
		return err
	}
	if err = assignInt(&rules.TargetScore, "targetScore", 0, "targetScore must be non-negative"); err != nil {
		return err
	}
	if err = assignInt(&rules.TurnTimerSec, "turnTimerSec", 0, "turnTimerSec must be non-negative"); err != nil {
		return err
	}
	if err = assignInt(&rules.BotDelayMs, "botDelayMs", 0, "botDelayMs must be non-negative"); err != nil {
		return err
	}
	if val, exists := newRules["openingCard"]; exists && val != nil {
		s, isStr := val.(string)
		if !isStr {
			return fmt.Errorf("invalid type for openingCard")
		}
		rules.OpeningCard = engine.OpeningCardRule(s)
	}

	return rules.Validate()
}

// ParseRules converts a map of rules to a HouseRules struct. It will ensure the types are valid.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}
