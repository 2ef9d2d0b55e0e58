package brackets

import (
	"context"
	"fmt"
	"sort"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket creates one match for every unordered pair of participants,
// repeated params.Rounds times. Fewer than two participants produce no matches.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	rounds := params.Rounds
	if rounds <= 0 {
		if params.Tournament == nil {
			return nil, fmt.Errorf("RoundRobinGenerator: rounds not set and no tournament given")
		}
		rounds = params.Tournament.Mode.Rounds()
	}
	return RoundRobinPairs(params.ParticipantIDs, rounds), nil
}

// RoundRobinPairs enumerates every unordered pair of distinct participants
// once per round. Participants are sorted and de-duplicated first so the
// smaller id is always player1.
func RoundRobinPairs(participantIDs []int, rounds int) []*BracketMatch {
	ids := uniqueSorted(participantIDs)
	n := len(ids)
	if n < 2 || rounds <= 0 {
		return []*BracketMatch{}
	}

	matches := make([]*BracketMatch, 0, rounds*n*(n-1)/2)
	for round := 1; round <= rounds; round++ {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				matches = append(matches, &BracketMatch{
					Round:     round,
					Player1ID: ids[i],
					Player2ID: ids[j],
				})
			}
		}
	}
	return matches
}

func uniqueSorted(ids []int) []int {
	out := make([]int, 0, len(ids))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
