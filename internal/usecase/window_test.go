package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"medical-assistant/internal/domain"
)

func turns(n int) domain.ConversationHistory {
	out := make(domain.ConversationHistory, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.UserTurn(fmt.Sprintf("t%d", i)))
	}
	return out
}

func TestBuildWindow_KeepsLastN(t *testing.T) {
	history := turns(12)
	next := domain.UserTurn("next")

	got := BuildWindow(history, next, 8)
	require.Len(t, got, 9)
	require.Equal(t, "t4", got[0].Content)
	require.Equal(t, "t11", got[7].Content)
	require.Equal(t, next, got[8])
}

func TestBuildWindow_ShortHistoryIsNotPadded(t *testing.T) {
	got := BuildWindow(turns(3), domain.UserTurn("next"), 8)
	require.Len(t, got, 4)
	require.Equal(t, "t0", got[0].Content)
}

func TestBuildWindow_NonPositiveWindow(t *testing.T) {
	next := domain.UserTurn("next")
	require.Equal(t, []domain.ConversationTurn{next}, BuildWindow(turns(5), next, 0))
	require.Equal(t, []domain.ConversationTurn{next}, BuildWindow(turns(5), next, -3))
	require.Equal(t, []domain.ConversationTurn{next}, BuildWindow(nil, next, 8))
}

func TestBuildWindow_DoesNotMutateHistory(t *testing.T) {
	history := turns(10)
	snapshot := append(domain.ConversationHistory(nil), history...)

	got := BuildWindow(history[:4], domain.UserTurn("next"), 8)
	got[0].Content = "changed"

	require.Equal(t, snapshot, history)
}
