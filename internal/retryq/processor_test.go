package retryq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/agentgw/internal/fault"
	"github.com/mattjoyce/agentgw/internal/retryq"
	"github.com/mattjoyce/agentgw/internal/retryq/mocks"
)

func TestRunEmptyQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	retrier := mocks.NewMockReattempter(ctrl)

	store.EXPECT().ListDue(gomock.Any(), retryq.DefaultBatchSize).Return(nil, nil)
	store.EXPECT().ApplyBatch(gomock.Any(), gomock.Len(0)).Return(nil)

	p := retryq.NewProcessor(store, retrier, retryq.Options{})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, retryq.Stats{}, stats)
}

func TestRunExhaustedRecordArchived(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	retrier := mocks.NewMockReattempter(ctrl)

	rec := &retryq.Record{
		ID:         "r1",
		Function:   "semanticSearch",
		ErrorKind:  fault.KindTimeout,
		RetryCount: 4,
	}
	store.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return([]*retryq.Record{rec}, nil)
	store.EXPECT().ApplyBatch(gomock.Any(), gomock.Len(1)).Return(nil)
	// No Reattempt expectation: an exhausted record must never run again.

	p := retryq.NewProcessor(store, retrier, retryq.Options{MaxAttempts: 4})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, retryq.Stats{Processed: 1, Skipped: 1}, stats)
	assert.True(t, rec.Resolved)
}

func TestRunNonRetryableKindArchived(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	retrier := mocks.NewMockReattempter(ctrl)

	for _, kind := range []fault.Kind{fault.KindRateLimit, fault.KindInvalidRequest, fault.KindQuotaExceeded, fault.KindUnknown} {
		rec := &retryq.Record{ID: "r-" + string(kind), Function: "draftReply", ErrorKind: kind}
		store.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return([]*retryq.Record{rec}, nil)
		store.EXPECT().ApplyBatch(gomock.Any(), gomock.Len(1)).Return(nil)

		p := retryq.NewProcessor(store, retrier, retryq.Options{})
		stats, err := p.Run(context.Background())
		require.NoError(t, err, "kind %s", kind)

		assert.Equal(t, retryq.Stats{Processed: 1, Skipped: 1}, stats, "kind %s", kind)
		assert.True(t, rec.Resolved, "kind %s must be archived", kind)
	}
}

func TestRunRetrySuccessResolves(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	retrier := mocks.NewMockReattempter(ctrl)

	rec := &retryq.Record{
		ID:         "r1",
		Function:   "semanticSearch",
		ErrorKind:  fault.KindTimeout,
		RetryCount: 1,
		QueryHash:  "abcd1234abcd1234",
	}
	store.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return([]*retryq.Record{rec}, nil)
	retrier.EXPECT().Reattempt(gomock.Any(), rec).Return(nil)
	store.EXPECT().ApplyBatch(gomock.Any(), gomock.Len(1)).Return(nil)

	p := retryq.NewProcessor(store, retrier, retryq.Options{})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, retryq.Stats{Processed: 1, Succeeded: 1}, stats)
	assert.True(t, rec.Resolved)
	assert.Equal(t, 1, rec.RetryCount, "a successful retry must not bump the count")
}

func TestRunRetryFailureReschedules(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	retrier := mocks.NewMockReattempter(ctrl)

	rec := &retryq.Record{
		ID:         "r1",
		Function:   "semanticSearch",
		ErrorKind:  fault.KindTimeout,
		RetryCount: 1,
	}
	store.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return([]*retryq.Record{rec}, nil)
	retrier.EXPECT().Reattempt(gomock.Any(), rec).
		Return(fault.Upstream("semantic search", "pinecone", 503, errors.New("upstream 503")))
	store.EXPECT().ApplyBatch(gomock.Any(), gomock.Len(1)).Return(nil)

	before := time.Now().UTC()
	p := retryq.NewProcessor(store, retrier, retryq.Options{})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, retryq.Stats{Processed: 1, Failed: 1}, stats)
	assert.False(t, rec.Resolved)
	assert.Equal(t, 2, rec.RetryCount)
	assert.Equal(t, fault.KindServiceUnavailable, rec.ErrorKind, "the record must carry the latest failure's kind")

	// service_unavailable base 2s doubled twice = 8s, within the cap.
	wantDelay := 8 * time.Second
	assert.WithinDuration(t, before.Add(wantDelay), rec.NextRetryAt, 2*time.Second)
}

func TestRunBackoffCapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	retrier := mocks.NewMockReattempter(ctrl)

	rec := &retryq.Record{
		ID:         "r1",
		Function:   "semanticSearch",
		ErrorKind:  fault.KindServiceUnavailable,
		RetryCount: 3,
	}
	store.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return([]*retryq.Record{rec}, nil)
	retrier.EXPECT().Reattempt(gomock.Any(), rec).
		Return(fault.Upstream("semantic search", "vector_db", 503, errors.New("still down")))
	store.EXPECT().ApplyBatch(gomock.Any(), gomock.Len(1)).Return(nil)

	before := time.Now().UTC()
	p := retryq.NewProcessor(store, retrier, retryq.Options{})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	// Uncapped this would be 2s·2^4 = 32s; the cap holds it at 8s.
	assert.WithinDuration(t, before.Add(8*time.Second), rec.NextRetryAt, 2*time.Second)
	assert.False(t, rec.NextRetryAt.After(before.Add(11*time.Second)), "backoff must be capped at 8s")
}

func TestRunBatchSizeForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	retrier := mocks.NewMockReattempter(ctrl)

	store.EXPECT().ListDue(gomock.Any(), 7).Return(nil, nil)
	store.EXPECT().ApplyBatch(gomock.Any(), gomock.Any()).Return(nil)

	p := retryq.NewProcessor(store, retrier, retryq.Options{BatchSize: 7})
	_, err := p.Run(context.Background())
	require.NoError(t, err)
}

func TestRunListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	retrier := mocks.NewMockReattempter(ctrl)

	store.EXPECT().ListDue(gomock.Any(), gomock.Any()).Return(nil, errors.New("db locked"))

	p := retryq.NewProcessor(store, retrier, retryq.Options{})
	_, err := p.Run(context.Background())
	require.Error(t, err)
}

func TestNextRetryAt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		base       time.Duration
		retryCount int
		want       time.Duration
	}{
		{time.Second, 0, time.Second},
		{time.Second, 1, 2 * time.Second},
		{time.Second, 2, 4 * time.Second},
		{time.Second, 3, 8 * time.Second},
		{time.Second, 4, 8 * time.Second},
		{2 * time.Second, 2, 8 * time.Second},
		{2 * time.Second, 3, 8 * time.Second},
		{30 * time.Second, 0, 8 * time.Second},
	}
	for _, c := range cases {
		got := retryq.NextRetryAt(now, c.base, 8*time.Second, c.retryCount)
		assert.Equal(t, now.Add(c.want), got, "base=%v count=%d", c.base, c.retryCount)
	}
}

func TestNewFailureRecord(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := fault.ClassificationFor(fault.KindTimeout)
	rec := retryq.NewFailureRecord("semanticSearch", "hash", c, "semantic search: timed out",
		map[string]any{"userId": "u1"}, now)

	assert.Equal(t, 0, rec.RetryCount)
	assert.False(t, rec.Resolved)
	assert.Equal(t, now.Add(time.Second), rec.NextRetryAt)
	assert.Equal(t, fault.KindTimeout, rec.ErrorKind)
}
