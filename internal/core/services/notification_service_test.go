package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

func TestBatches(t *testing.T) {
	tokens := make([]string, 1201)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%d", i)
	}
	batches := Batches(tokens, ports.MaxPushBatch)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 500)
	assert.Len(t, batches[1], 500)
	assert.Len(t, batches[2], 201)

	assert.Empty(t, Batches(nil, 500))
	assert.Len(t, Batches(tokens[:10], 0), 1, "non-positive size falls back to the default")
}

func TestTokens_Dedupes(t *testing.T) {
	users := []*domain.User{
		{FCMTokens: []string{"a", "b"}},
		{FCMTokens: []string{"b", "", "c"}},
	}
	assert.Equal(t, []string{"a", "b", "c"}, Tokens(users))
}

func TestNotificationService_SendSumsBatches(t *testing.T) {
	env := newTestEnv(t)
	tokens := make([]string, 750)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%d", i)
	}

	res := env.notifier.Send(context.Background(), tokens, "Hi", "Body", nil)
	assert.Equal(t, 750, res.SuccessCount)
	assert.Len(t, env.push.Messages(), 2)

	env.push.Reset()
	env.push.SendError = errors.New("boom")
	res = env.notifier.Send(context.Background(), tokens, "Hi", "Body", nil)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 750, res.FailureCount)
}

func TestNotificationService_Audiences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	north := env.branch(t, "North", "LKG")
	south := env.branch(t, "South", "LKG")
	sn := env.student(t, north.ID, "LKG", "Asha")
	ss := env.student(t, south.ID, "LKG", "Bala")
	pn := env.parent(t, "n@home.test", []string{sn.ID}, "tn")
	env.parent(t, "s@home.test", []string{ss.ID}, "ts")
	inactive := env.parent(t, "x@home.test", []string{sn.ID}, "tx")
	_, err := env.registration.SetActive(ctx, inactive.ID, false)
	require.NoError(t, err)

	northParents, err := env.notifier.ParentsInBranches(ctx, []string{north.ID})
	require.NoError(t, err)
	require.Len(t, northParents, 1)
	assert.Equal(t, pn.ID, northParents[0].ID)

	everyone, err := env.notifier.ParentsInBranches(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, everyone, 2)

	ofStudent, err := env.notifier.ParentsOfStudent(ctx, sn.ID)
	require.NoError(t, err)
	require.Len(t, ofStudent, 1)
	assert.Equal(t, pn.ID, ofStudent[0].ID)
}
