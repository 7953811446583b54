package pipeline

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"hometracker/server/internal/models"
)

// SnapshotPrices builds and applies a price snapshot for every active
// community. Communities are sharded by permanent id across the worker
// count, so a given permanent record is only ever written by one worker:
// the append+dedup+recompute cycle never interleaves for the same key.
func (p *Pipeline) SnapshotPrices(ctx context.Context, now time.Time) (int, int) {
	communities, err := p.listings.ActiveCommunities()
	if err != nil {
		p.logger.WithError(err).Error("Failed to load active communities for snapshots")
		return 0, 1
	}
	if len(communities) == 0 {
		return 0, 0
	}

	workers := p.cfg.Pricing.WorkerCount
	if workers < 1 {
		workers = 1
	}

	shards := make([][]models.Community, workers)
	for _, community := range communities {
		idx := shardFor(models.PermanentID(community.CommunityID), workers)
		shards[idx] = append(shards[idx], community)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	written := 0
	errors := 0

	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(shard []models.Community) {
			defer wg.Done()
			w, e := p.snapshotShard(ctx, shard, now)
			mu.Lock()
			written += w
			errors += e
			mu.Unlock()
		}(shard)
	}
	wg.Wait()

	return written, errors
}

func (p *Pipeline) snapshotShard(ctx context.Context, shard []models.Community, now time.Time) (int, int) {
	written := 0
	errors := 0
	for _, community := range shard {
		if ctx.Err() != nil {
			break
		}

		snap, err := p.builder.Build(community, now)
		if err != nil {
			p.logger.WithError(err).WithField("community_id", community.CommunityID).Error("Failed to build price snapshot")
			errors++
			continue
		}
		if snap == nil {
			continue
		}

		if err := p.engine.Apply(snap, now); err != nil {
			p.logger.WithError(err).WithField("permanent_id", snap.PermanentID).Error("Failed to apply price snapshot")
			errors++
			continue
		}
		written++
	}
	return written, errors
}

func shardFor(permanentID string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(permanentID))
	return int(h.Sum32() % uint32(workers))
}
