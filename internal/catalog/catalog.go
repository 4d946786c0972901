// Package catalog loads the static puzzle dataset and selects puzzles for
// levels. The dataset is validated into strongly-typed records at startup;
// malformed records are logged and dropped, never trusted at point-of-use.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"github.com/knightmint/knightmint/internal/domain"
	"github.com/knightmint/knightmint/internal/rules"
)

//go:embed puzzles.json
var rawDataset []byte

// datasetRecord mirrors the dataset's wire shape.
type datasetRecord struct {
	ProblemID int    `json:"problemid"`
	First     string `json:"first"`
	Type      string `json:"type"`
	FEN       string `json:"fen"`
	Moves     string `json:"moves"`
}

type dataset struct {
	Problems []datasetRecord `json:"problems"`
}

// tierLabels maps the dataset's human-readable category labels onto tiers.
// Records with unrecognized labels are dropped silently.
var tierLabels = map[string]domain.Tier{
	"Mate in One":   domain.TierMateInOne,
	"Mate in Two":   domain.TierMateInTwo,
	"Mate in Three": domain.TierMateInThree,
}

// LevelSequence is the fixed repeating tier schedule indexed by level.
var LevelSequence = []domain.Tier{
	// 3 mate in one, 1 mate in two
	1, 1, 1, 2,
	// 3 mate in one, 1 mate in three
	1, 1, 1, 3,
	// more mate in ones and a mix of twos
	1, 2, 1, 2, 1, 1, 2,
	// mix mate in three occasionally
	1, 1, 3, 1, 1, 2, 1,
}

// TierForLevel maps a 1-based level to its tier via the repeating sequence.
func TierForLevel(level int) domain.Tier {
	if level < 1 {
		level = 1
	}
	return LevelSequence[(level-1)%len(LevelSequence)]
}

// Catalog is the process-wide read-only puzzle index.
type Catalog struct {
	byID   map[int]domain.Puzzle
	byTier map[domain.Tier][]domain.Puzzle

	// randIntn is swappable so selection is deterministic under test.
	randIntn func(n int) int
}

// Load parses and validates the embedded dataset.
func Load() (*Catalog, error) {
	return FromJSON(rawDataset)
}

// FromJSON builds a catalog from a raw dataset document.
func FromJSON(data []byte) (*Catalog, error) {
	var ds dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, domain.WrapAppError(domain.ErrDatasetInvalid.Code, domain.ErrDatasetInvalid.Message, err)
	}
	if len(ds.Problems) == 0 {
		return nil, domain.NewAppError(domain.ErrDatasetInvalid.Code, "dataset has no problems")
	}

	c := &Catalog{
		byID:     make(map[int]domain.Puzzle),
		byTier:   make(map[domain.Tier][]domain.Puzzle),
		randIntn: rand.Intn,
	}
	oracle := rules.NewEngine()

	for _, rec := range ds.Problems {
		tier, known := tierLabels[rec.Type]
		if !known {
			continue
		}
		if violations := validateRecord(oracle, rec); len(violations) > 0 {
			log.Printf("[catalog] dropping record %d: %s", rec.ProblemID, strings.Join(violations, "; "))
			continue
		}
		solution, _ := parseMoves(rec.Moves)
		p := domain.Puzzle{
			ID:       rec.ProblemID,
			Tier:     tier,
			FEN:      rec.FEN,
			Prompt:   rec.First,
			Solution: solution,
		}
		if _, dup := c.byID[p.ID]; dup {
			log.Printf("[catalog] dropping record %d: duplicate id", p.ID)
			continue
		}
		c.byID[p.ID] = p
		c.byTier[tier] = append(c.byTier[tier], p)
	}

	if len(c.byID) == 0 {
		return nil, domain.NewAppError(domain.ErrDatasetInvalid.Code, "no valid puzzles after validation")
	}
	return c, nil
}

// validateRecord collects every violation for a record rather than stopping
// at the first.
func validateRecord(oracle rules.Oracle, rec datasetRecord) []string {
	var violations []string

	if rec.ProblemID <= 0 {
		violations = append(violations, "problemid must be positive")
	}
	if rec.First == "" {
		violations = append(violations, "first (prompt) is empty")
	}
	if _, err := oracle.CurrentTurn(rec.FEN); err != nil {
		violations = append(violations, fmt.Sprintf("fen: %v", err))
	}
	if _, err := parseMoves(rec.Moves); err != nil {
		violations = append(violations, fmt.Sprintf("moves: %v", err))
	}
	return violations
}

// parseMoves parses the dataset's "e2-e4;d7-d5" half-move encoding.
func parseMoves(moves string) ([]domain.HalfMove, error) {
	if strings.TrimSpace(moves) == "" {
		return nil, fmt.Errorf("solution is empty")
	}
	var out []domain.HalfMove
	for _, part := range strings.Split(moves, ";") {
		fields := strings.Split(strings.TrimSpace(part), "-")
		if len(fields) != 2 {
			return nil, fmt.Errorf("half-move %q is not from-to", part)
		}
		hm := domain.HalfMove{From: domain.Square(fields[0]), To: domain.Square(fields[1])}
		for _, sq := range []domain.Square{hm.From, hm.To} {
			if len(sq) != 2 || sq[0] < 'a' || sq[0] > 'h' || sq[1] < '1' || sq[1] > '8' {
				return nil, fmt.Errorf("bad square %q", sq)
			}
		}
		out = append(out, hm)
	}
	return out, nil
}

// Get returns the puzzle with the given id.
func (c *Catalog) Get(id int) (domain.Puzzle, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Size is the number of valid puzzles in the catalog.
func (c *Catalog) Size() int { return len(c.byID) }

// TierCount is the number of puzzles in a tier's bucket.
func (c *Catalog) TierCount(tier domain.Tier) int { return len(c.byTier[tier]) }

// Select picks the puzzle for a level. A non-zero pinnedID resumes a failed
// puzzle by id so a reloaded session sees the same instance. Otherwise the
// level's tier bucket is filtered to unsolved puzzles, falling back to the
// full bucket once the tier is exhausted. The second return is false only
// when the tier has no puzzles at all: the caller must treat that as the
// successful end of the ladder, not an error.
func (c *Catalog) Select(level int, solvedIDs []int, pinnedID int) (domain.Puzzle, bool) {
	if pinnedID != 0 {
		if p, ok := c.byID[pinnedID]; ok {
			return p, true
		}
	}

	tier := TierForLevel(level)
	bucket := c.byTier[tier]
	if len(bucket) == 0 {
		return domain.Puzzle{}, false
	}

	solved := make(map[int]bool, len(solvedIDs))
	for _, id := range solvedIDs {
		solved[id] = true
	}

	available := make([]domain.Puzzle, 0, len(bucket))
	for _, p := range bucket {
		if !solved[p.ID] {
			available = append(available, p)
		}
	}
	if len(available) == 0 {
		// Tier exhausted: repetition is acceptable.
		available = bucket
	}

	return available[c.randIntn(len(available))], true
}
