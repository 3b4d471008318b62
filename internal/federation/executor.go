package federation

import (
	"context"
	"sort"
	"time"

	"github.com/bombeindex/bombe/internal/store"
)

// DefaultShardTimeout bounds one shard's contribution to a federated
// query.
const DefaultShardTimeout = 5 * time.Second

// DefaultMergeCap is the maximum number of merged results a federated
// query returns, regardless of how many shards contributed hits.
const DefaultMergeCap = 500

// ShardStatus is one shard's outcome within a federated query.
type ShardStatus string

const (
	ShardOK      ShardStatus = "ok"
	ShardFailed  ShardStatus = "failed"
	ShardTimeout ShardStatus = "timeout"
)

// ShardReport records one shard's contribution to a federated query.
type ShardReport struct {
	ShardID   string
	Status    ShardStatus
	ElapsedMS int64
}

// Ranked is implemented by any per-shard result item the executor can
// merge and re-rank across shards.
type Ranked interface {
	RankScore() float64
	SortKey() (qualifiedName, filePath string)
}

// FederatedResult is the merged outcome of one federated query.
type FederatedResult[T Ranked] struct {
	Items         []T
	Reports       []ShardReport
	ShardsQueried int
	ShardsFailed  int
}

// FederatedQueryExecutor runs a ShardQueryPlan: invokes run once per
// shard (each bounded by ShardTimeout), collects a report per shard
// regardless of outcome, then merges and re-ranks every shard's items
// together. A shard failure or timeout is recorded but never fails the
// overall query.
type FederatedQueryExecutor[T Ranked] struct {
	Router       *ShardRouter
	ShardTimeout time.Duration
	MergeCap     int
}

// NewFederatedQueryExecutor builds an executor with default timeout and
// merge cap.
func NewFederatedQueryExecutor[T Ranked](router *ShardRouter) *FederatedQueryExecutor[T] {
	return &FederatedQueryExecutor[T]{Router: router, ShardTimeout: DefaultShardTimeout, MergeCap: DefaultMergeCap}
}

// Run executes plan, invoking fn once per planned shard with that
// shard's opened store handle.
func (e *FederatedQueryExecutor[T]) Run(ctx context.Context, plan ShardQueryPlan, fn func(ctx context.Context, shardID string, st *store.Store) ([]T, error)) FederatedResult[T] {
	timeout := e.ShardTimeout
	if timeout <= 0 {
		timeout = DefaultShardTimeout
	}

	var result FederatedResult[T]
	for _, shardID := range plan.ShardIDs {
		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, timeout)

		items, err := e.runOne(sctx, shardID, fn)
		cancel()
		elapsed := time.Since(start).Milliseconds()

		status := ShardOK
		switch {
		case sctx.Err() != nil:
			status = ShardTimeout
			result.ShardsFailed++
		case err != nil:
			status = ShardFailed
			result.ShardsFailed++
		default:
			result.ShardsQueried++
			result.Items = append(result.Items, items...)
		}
		result.Reports = append(result.Reports, ShardReport{ShardID: shardID, Status: status, ElapsedMS: elapsed})
	}

	sort.SliceStable(result.Items, func(i, j int) bool {
		si, sj := result.Items[i], result.Items[j]
		if si.RankScore() != sj.RankScore() {
			return si.RankScore() > sj.RankScore()
		}
		qi, fi := si.SortKey()
		qj, fj := sj.SortKey()
		if qi != qj {
			return qi < qj
		}
		return fi < fj
	})

	mergeCap := e.MergeCap
	if mergeCap <= 0 {
		mergeCap = DefaultMergeCap
	}
	if len(result.Items) > mergeCap {
		result.Items = result.Items[:mergeCap]
	}
	return result
}

func (e *FederatedQueryExecutor[T]) runOne(ctx context.Context, shardID string, fn func(ctx context.Context, shardID string, st *store.Store) ([]T, error)) ([]T, error) {
	st, err := e.Router.Open(ctx, shardID)
	if err != nil {
		return nil, err
	}

	type result struct {
		items []T
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		items, err := fn(ctx, shardID, st)
		resCh <- result{items, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resCh:
		return r.items, r.err
	}
}
