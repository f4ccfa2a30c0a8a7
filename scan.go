package epochcache

import (
	"github.com/unkn0wn-root/epochcache/quality"
)

// Scan walks cached epochs from start upward, visiting at most batch epochs,
// and returns every slice whose quality meets task.Quality.
//
// The returned cursor is the last epoch visited and ok is true whenever at
// least one epoch was visited, even if no slice qualified. ok is false when
// nothing at or above start is cached yet (fetch first, then retry), and
// also when batch <= 0, which visits nothing.
//
// batch bounds epochs, not candidates. Scan never mutates the index.
func (ix *Index) Scan(start uint64, batch int, task SampleTask) (candidates []LineCandidate, cursor uint64, ok bool) {
	top, has := ix.data.Max()
	if !has || top.epoch < start || batch <= 0 {
		return nil, 0, false
	}

	threshold := quality.ToBytes(task.Quality)
	visited := 0

	ix.data.AscendGreaterOrEqual(epochEntry{epoch: start}, func(e epochEntry) bool {
		for _, blob := range e.info {
			for _, idx := range blob.Indices {
				q := ix.quality(task.Hash, e.epoch, blob.QuorumID, blob.StorageRoot, uint64(idx))
				if !quality.Meets(q, threshold) {
					continue
				}
				candidates = append(candidates, LineCandidate{
					Slice: SliceIndex{
						Epoch:       e.epoch,
						QuorumID:    blob.QuorumID,
						StorageRoot: blob.StorageRoot,
						Index:       uint64(idx),
					},
					Task:    task,
					Quality: quality.FromBytes(q),
				})
			}
		}
		cursor = e.epoch
		visited++
		return visited < batch
	})

	ix.hooks.ScanCompleted(start, visited, len(candidates))
	return candidates, cursor, true
}
