package brackets

import (
	"context"

	"github.com/Dosada05/colosseum/models"
)

type GenerateBracketParams struct {
	Tournament     *models.Tournament
	ParticipantIDs []int
	Rounds         int
}

// BracketMatch is a pairing produced by a generator before it is stored.
type BracketMatch struct {
	Round     int
	Player1ID int
	Player2ID int
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}
