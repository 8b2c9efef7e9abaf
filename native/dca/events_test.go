package dca

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"dcaengine/core/events"
)

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	r.types = append(r.types, evt.EventType())
}

func TestEventsEmittedPerMutation(t *testing.T) {
	env := newTestEnv(t)
	rec := &recordingEmitter{}
	env.engine.SetEmitter(rec)
	ctx := context.Background()

	pos := env.create(env.alice, 1000, 5, daySecs)
	env.swapPair()

	_, err := env.engine.Modify(ctx, env.alice, pos.ID, big.NewInt(200), 4, true)
	require.NoError(t, err)

	require.NoError(t, env.engine.TransferOwnership(env.alice, pos.ID, env.bob))

	_, err = env.engine.Withdraw(ctx, env.bob, pos.ID, env.bob)
	require.NoError(t, err)

	_, _, err = env.engine.Terminate(ctx, env.bob, pos.ID, env.bob)
	require.NoError(t, err)

	require.Equal(t, []string{
		EventTypePositionCreated,
		EventTypeSwapped,
		EventTypePositionModified,
		EventTypeOwnerUpdated,
		EventTypePositionWithdrawn,
		EventTypePositionTerminate,
	}, rec.types)
}

func TestBlankSwapEvent(t *testing.T) {
	env := newTestEnv(t)
	rec := &recordingEmitter{}

	env.create(env.alice, 100, 1, hourSecs)
	env.swapPair()
	env.advance(hourSecs + 55*60)
	env.create(env.bob, 100, 1, hourSecs)

	env.engine.SetEmitter(rec)
	require.NoError(t, env.engine.BlankSwap(env.operator, env.tokenA, env.tokenB, env.maskFor(hourSecs)))
	require.Equal(t, []string{EventTypeBlankSwapped}, rec.types)
}
