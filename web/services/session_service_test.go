package services

import (
	"context"
	"testing"

	"fleetwise/orders"
	"fleetwise/web/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionServiceEvictsLeastRecentlyUsed(t *testing.T) {
	ss, err := NewSessionService(2, nil, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	ss.Get(ctx, a).Messages = append(ss.Get(ctx, a).Messages, types.AgentMessage{Role: types.RoleUser, Content: "hi"})
	ss.Get(ctx, b)
	ss.Get(ctx, a)
	ss.Get(ctx, c)

	assert.Equal(t, 2, ss.Len())
	assert.Len(t, ss.Get(ctx, a).Messages, 1)
	assert.Empty(t, ss.Get(ctx, b).Messages)
}

func TestSessionServiceReset(t *testing.T) {
	ss, err := NewSessionService(4, nil, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.New()

	sc := ss.Get(ctx, id)
	sc.Messages = append(sc.Messages, types.AgentMessage{Role: types.RoleUser, Content: "hi"})
	sc.Draft = orders.NewDraft(nil)

	require.NoError(t, ss.Reset(ctx, id))
	assert.Same(t, sc, ss.Get(ctx, id))
	assert.Empty(t, sc.Messages)
	assert.Nil(t, sc.Draft)

	ss.Forget(id)
	assert.NotSame(t, sc, ss.Get(ctx, id))
}
