package call

import (
	"github.com/intervue/backend/internal/models"
)

// Transcript is the ordered, append-only log of finalized turns.
type Transcript struct {
	turns  []models.TranscriptTurn
	frozen bool
}

// Append adds a turn at the end. It reports false once the transcript is frozen.
func (t *Transcript) Append(role models.Role, content string) bool {
	if t.frozen {
		return false
	}
	t.turns = append(t.turns, models.TranscriptTurn{Role: role, Content: content})
	return true
}

// Turns returns a copy of the turns in arrival order.
func (t *Transcript) Turns() []models.TranscriptTurn {
	out := make([]models.TranscriptTurn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len is the number of turns.
func (t *Transcript) Len() int { return len(t.turns) }

// Freeze makes later appends no-ops.
func (t *Transcript) Freeze() { t.frozen = true }

// Frozen reports whether Freeze was called.
func (t *Transcript) Frozen() bool { return t.frozen }
