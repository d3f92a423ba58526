package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range All {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("LOST")
	assert.Error(t, err)
}

func TestCategories_FourCoverAllStatuses(t *testing.T) {
	seen := map[Category]bool{}
	for _, s := range All {
		seen[s.Category()] = true
	}
	assert.Len(t, seen, 4)
	assert.Equal(t, CategoryTerminalSuccess, StatusCompleted.Category())
	assert.Equal(t, CategoryTerminalFailure, StatusCanceled.Category())
	assert.Equal(t, CategoryPending, StatusOnTheWay.Category())
	assert.Equal(t, CategoryActive, StatusSessionEnding.Category())
}

func TestLabel_FallsBackToDefaultLanguage(t *testing.T) {
	assert.Equal(t, "On the way", StatusOnTheWay.Label("en"))
	assert.Equal(t, "В пути", StatusOnTheWay.Label("ka"))
	assert.Equal(t, "WHATEVER", Status("WHATEVER").Label("en"))
}

func TestClientAllows_Cancel(t *testing.T) {
	allowed := map[Status]bool{StatusNew: true, StatusConfirmed: true, StatusOnTheWay: true}
	for _, s := range All {
		assert.Equal(t, allowed[s], ClientAllows(s, ActionCancel), "status %s", s)
	}
	assert.False(t, ClientAllows(StatusDelivered, ActionCancel))
}

func TestClientAllows_ReadyForPickup(t *testing.T) {
	allowed := map[Status]bool{StatusSessionActive: true, StatusSessionEnding: true}
	for _, s := range All {
		assert.Equal(t, allowed[s], ClientAllows(s, ActionReadyForPickup), "status %s", s)
	}
}

func TestClientActions(t *testing.T) {
	assert.Equal(t, []Action{ActionCancel}, ClientActions(StatusNew))
	assert.Equal(t, []Action{ActionReadyForPickup}, ClientActions(StatusSessionActive))
	assert.Empty(t, ClientActions(StatusDelivered))
	assert.Empty(t, ClientActions(StatusCompleted))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusNew, StatusConfirmed))
	assert.True(t, CanTransition(StatusDelivered, StatusSessionActive))
	assert.True(t, CanTransition(StatusSessionEnding, StatusSessionActive))
	assert.False(t, CanTransition(StatusNew, StatusDelivered))
	assert.False(t, CanTransition(StatusCompleted, StatusCanceled))
	assert.False(t, CanTransition(StatusCanceled, StatusNew))

	for _, s := range All {
		if !s.IsTerminal() {
			assert.True(t, CanTransition(s, StatusCanceled), "cancel from %s", s)
		}
	}
}

func TestTarget(t *testing.T) {
	s, ok := Target(ActionCancel)
	require.True(t, ok)
	assert.Equal(t, StatusCanceled, s)
	s, ok = Target(ActionReadyForPickup)
	require.True(t, ok)
	assert.Equal(t, StatusWaitingForPickup, s)
}

func TestTimedAndTerminal(t *testing.T) {
	assert.True(t, StatusSessionActive.IsTimed())
	assert.True(t, StatusSessionEnding.IsTimed())
	assert.False(t, StatusWaitingForPickup.IsTimed())
	assert.True(t, StatusCanceled.IsTerminal())
	assert.False(t, StatusCompleted.HoldsUnits())
	assert.True(t, StatusWaitingForPickup.HoldsUnits())

	holding := UnitHolding()
	assert.Len(t, holding, 7)
	assert.NotContains(t, holding, StatusCompleted)
	assert.NotContains(t, holding, StatusCanceled)
}

func TestRebowlTransitions(t *testing.T) {
	cases := []struct {
		from, to RebowlStatus
		want     bool
	}{
		{RebowlRequested, RebowlInProgress, true},
		{RebowlRequested, RebowlCanceled, true},
		{RebowlRequested, RebowlDone, false},
		{RebowlInProgress, RebowlDone, true},
		{RebowlInProgress, RebowlCanceled, true},
		{RebowlDone, RebowlCanceled, false},
		{RebowlCanceled, RebowlInProgress, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransitionRebowl(c.from, c.to), "%s -> %s", c.from, c.to)
	}

	assert.True(t, RebowlInProgress.IsOpen())
	assert.False(t, RebowlDone.IsOpen())

	_, err := ParseRebowlStatus("LOST")
	assert.Error(t, err)
	st, err := ParseRebowlStatus("DONE")
	require.NoError(t, err)
	assert.Equal(t, RebowlDone, st)

	assert.True(t, RebowlAllowed(StatusSessionEnding))
	assert.False(t, RebowlAllowed(StatusWaitingForPickup))
}
