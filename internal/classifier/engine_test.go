package classifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

func TestClassify(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	tests := []struct {
		message string
		want    domain.CommandKind
	}{
		{"clear", domain.CommandClear},
		{"  CLEAR  ", domain.CommandClear},
		{"/clear", domain.CommandClear},
		{"xóa", domain.CommandClear},
		{"Xoa", domain.CommandClear},
		{"clear history please", domain.CommandGenerate},
		{"Bây giờ là mấy giờ?", domain.CommandTimeQuery},
		{"mấy giờ rồi", domain.CommandTimeQuery},
		{"Hôm nay ngày bao nhiêu", domain.CommandTimeQuery},
		{"THỜI GIAN hiện tại", domain.CommandTimeQuery},
		{"xin chào", domain.CommandGenerate},
		{"kể chuyện cười đi", domain.CommandGenerate},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got, err := engine.Classify(ctx, tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEngineRejectsBadPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package chat_commands\n decision = {")
	assert.Error(t, err)
}

func TestClassifyUnknownDecision(t *testing.T) {
	engine, err := NewEngine(context.Background(), `
package chat_commands

decision = "launch_rockets"
`)
	require.NoError(t, err)

	_, err = engine.Classify(context.Background(), "anything")
	assert.Error(t, err)
}

func TestNewEngineFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.rego")
	require.NoError(t, os.WriteFile(path, []byte(`
package chat_commands

default decision = "generate"

decision = "clear" {
	lower(input.message) == "reset"
}
`), 0o644))

	engine, err := NewEngineFromFile(context.Background(), path)
	require.NoError(t, err)

	got, err := engine.Classify(context.Background(), "RESET")
	require.NoError(t, err)
	assert.Equal(t, domain.CommandClear, got)

	_, err = NewEngineFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)
}

func TestNewEngineFromFileDefault(t *testing.T) {
	engine, err := NewEngineFromFile(context.Background(), "")
	require.NoError(t, err)

	got, err := engine.Classify(context.Background(), "clear")
	require.NoError(t, err)
	assert.Equal(t, domain.CommandClear, got)
}
