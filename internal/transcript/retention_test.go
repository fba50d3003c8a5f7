package transcript

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

func makeTurns(n int) []domain.Turn {
	turns := make([]domain.Turn, 0, n)
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		turns = append(turns, domain.NewTurn(role, fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second)))
	}
	return turns
}

func TestRetentionShouldTrim(t *testing.T) {
	r := NewRetention(10)

	assert.False(t, r.ShouldTrim(8))
	assert.True(t, r.ShouldTrim(9))
	assert.Equal(t, 6, r.Keep())
}

func TestRetentionTrimKeepsSystemAndRecent(t *testing.T) {
	r := NewRetention(10)
	sys := domain.NewTurn(domain.RoleSystem, "ctx", time.Now())
	turns := append([]domain.Turn{sys}, makeTurns(12)...)

	out := r.Trim(turns)

	assert.Len(t, out, 7)
	assert.Equal(t, domain.RoleSystem, out[0].Role)
	assert.Equal(t, "m6", out[1].Content)
	assert.Equal(t, "m11", out[6].Content)
}

func TestRetentionTrimBelowBoundIsNoop(t *testing.T) {
	r := NewRetention(10)
	turns := makeTurns(10)

	out := r.Trim(turns)

	assert.Equal(t, turns, out)
}

func TestRetentionTrimTruncatesKeepToZero(t *testing.T) {
	r := NewRetention(1)
	sys := domain.NewTurn(domain.RoleSystem, "ctx", time.Now())

	out := r.Trim(append([]domain.Turn{sys}, makeTurns(2)...))

	assert.Equal(t, 0, r.Keep())
	assert.Len(t, out, 1)
	assert.True(t, out[0].IsSystem())
}

func TestRetentionTrimOddKeep(t *testing.T) {
	r := NewRetention(5)

	out := r.Trim(makeTurns(6))

	assert.Len(t, out, 3)
	assert.Equal(t, []string{"m3", "m4", "m5"}, []string{out[0].Content, out[1].Content, out[2].Content})
}
