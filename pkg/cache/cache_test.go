package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

func TestResponseCache_LookupMiss(t *testing.T) {
	c := NewResponseCache(time.Minute)
	_, ok := c.Lookup("fp1")
	assert.False(t, ok)
}

func TestResponseCache_PutOnlyCachesApprovedConsensus(t *testing.T) {
	c := NewResponseCache(time.Minute)
	c.Put("fp-fallback", models.FinalResponse{Consensus: models.ConsensusFallback})
	c.Put("fp-pending", models.FinalResponse{Consensus: models.ConsensusPendingValidation})
	c.Put("fp-failed", models.FinalResponse{Consensus: models.ConsensusFailed})
	c.Put("fp-approved", models.FinalResponse{Consensus: models.ConsensusApproved, Answer: "yes"})
	c.Put("fp-reformed", models.FinalResponse{Consensus: models.ConsensusReformedApproved, Answer: "yes2"})

	_, ok := c.Lookup("fp-fallback")
	assert.False(t, ok)
	_, ok = c.Lookup("fp-pending")
	assert.False(t, ok)
	_, ok = c.Lookup("fp-failed")
	assert.False(t, ok)

	resp, ok := c.Lookup("fp-approved")
	require.True(t, ok)
	assert.Equal(t, "yes", resp.Answer)

	resp, ok = c.Lookup("fp-reformed")
	require.True(t, ok)
	assert.Equal(t, "yes2", resp.Answer)
}

func TestResponseCache_ExpiredEntryEvictedOnLookup(t *testing.T) {
	c := NewResponseCache(time.Minute)
	fixedNow := time.Now()
	c.now = func() time.Time { return fixedNow }
	c.Put("fp", models.FinalResponse{Consensus: models.ConsensusApproved})

	c.now = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	_, ok := c.Lookup("fp")
	assert.False(t, ok)
}

func TestResponseCache_ComputeCachesOnFirstCall(t *testing.T) {
	c := NewResponseCache(time.Minute)
	var calls int32
	fn := func(ctx context.Context) (models.FinalResponse, error) {
		atomic.AddInt32(&calls, 1)
		return models.FinalResponse{Consensus: models.ConsensusApproved, Answer: "computed"}, nil
	}

	resp, err := c.Compute(context.Background(), "fp", fn)
	require.NoError(t, err)
	assert.Equal(t, "computed", resp.Answer)

	resp2, err := c.Compute(context.Background(), "fp", fn)
	require.NoError(t, err)
	assert.Equal(t, "computed", resp2.Answer)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResponseCache_ComputeCoalescesConcurrentCalls(t *testing.T) {
	c := NewResponseCache(time.Minute)
	var calls int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (models.FinalResponse, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return models.FinalResponse{Consensus: models.ConsensusApproved, Answer: "shared"}, nil
	}

	var wg sync.WaitGroup
	results := make([]models.FinalResponse, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Compute(context.Background(), "shared-fp", fn)
			require.NoError(t, err)
			results[i] = resp
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "shared", r.Answer)
	}
}

func TestResponseCache_ComputePropagatesFailureToAllWaiters(t *testing.T) {
	c := NewResponseCache(time.Minute)
	boom := assert.AnError
	fn := func(ctx context.Context) (models.FinalResponse, error) {
		return models.FinalResponse{}, boom
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Compute(context.Background(), "failing-fp", fn)
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, e := range errs {
		assert.ErrorIs(t, e, boom)
	}
	_, ok := c.Lookup("failing-fp")
	assert.False(t, ok)
}

func TestResponseCache_RunSweepReapsExpiredEntries(t *testing.T) {
	c := NewResponseCache(10 * time.Millisecond)
	c.Put("fp", models.FinalResponse{Consensus: models.ConsensusApproved})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	c.RunSweep(ctx, 15*time.Millisecond)

	_, ok := c.entries.Load("fp")
	assert.False(t, ok)
}
