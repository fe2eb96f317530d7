package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// MaxAmount caps a single game so player totals and stats stay finite.
const MaxAmount = 1e12

func GeneratePlayerID() string {
	return uuid.NewString()
}

// GenerateSessionID returns a time-ordered id, so ids created later in the
// same process always compare greater.
func GenerateSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate normalizes the request into a Game or reports the first invalid
// field.
func (r *GameRequest) Validate() (*Game, error) {
	name := strings.TrimSpace(r.PlayerName)
	if name == "" {
		return nil, &ValidationError{Field: "playerName", Message: "is required"}
	}

	result := r.Result
	switch result {
	case ResultWin, ResultLoss:
	case "":
		return nil, &ValidationError{Field: "result", Message: "is required"}
	default:
		return nil, &ValidationError{Field: "result", Message: fmt.Sprintf("must be %q or %q", ResultWin, ResultLoss)}
	}

	if r.Amount == nil {
		return nil, &ValidationError{Field: "amount", Message: "is required"}
	}
	amount := *r.Amount
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "must be a positive number"}
	}
	if amount > MaxAmount {
		return nil, &ValidationError{Field: "amount", Message: fmt.Sprintf("must not exceed %.0f", MaxAmount)}
	}

	gameType := strings.TrimSpace(r.GameType)
	if gameType == "" {
		return nil, &ValidationError{Field: "gameType", Message: "is required"}
	}

	return &Game{
		PlayerName: name,
		Result:     result,
		Amount:     amount,
		GameType:   gameType,
	}, nil
}
