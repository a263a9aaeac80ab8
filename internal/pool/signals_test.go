package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlagSetClearIsLevelTriggered(t *testing.T) {
	f := NewFlag()
	require.False(t, f.IsSet())

	f.Set()
	f.Set() // redundant set is a no-op
	require.True(t, f.IsSet())

	f.Clear()
	require.False(t, f.IsSet())
}

func TestFlagToggleReturnsNewValue(t *testing.T) {
	f := NewFlag()
	require.True(t, f.Toggle())
	require.False(t, f.Toggle())
	require.False(t, f.IsSet())
}

func TestFlagStateWakesWaiterOnTransition(t *testing.T) {
	f := NewFlag()
	set, ch := f.State()
	require.False(t, set)

	go f.Set()

	select {
	case <-ch:
		require.True(t, f.IsSet())
	case <-time.After(time.Second):
		t.Fatal("waiter never woke on transition")
	}
}

func TestFlagNoWakeupWithoutTransition(t *testing.T) {
	f := NewFlag()
	f.Set()
	_, ch := f.State()

	f.Set() // no transition, channel must stay open

	select {
	case <-ch:
		t.Fatal("channel closed without a transition")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFlagStalenessRaceIsSafe(t *testing.T) {
	// A waiter that reads the state just before a transition still
	// holds the pre-transition channel and is guaranteed a wakeup.
	f := NewFlag()
	set, ch := f.State()
	require.False(t, set)

	f.Set()

	select {
	case <-ch:
	default:
		t.Fatal("pre-transition channel was not closed")
	}
}

func TestSignalsAreIndependent(t *testing.T) {
	sig := NewSignals()
	sig.Pause.Set()
	sig.Stop.Set()

	require.True(t, sig.Pause.IsSet())
	require.True(t, sig.Stop.IsSet())

	sig.Pause.Clear()
	require.False(t, sig.Pause.IsSet())
	require.True(t, sig.Stop.IsSet(), "clearing pause must not touch stop")
}
