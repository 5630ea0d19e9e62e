package loader

import (
	"context"
	"fmt"

	"github.com/pavandhadge/routingcache/internal/catalog"
	"github.com/pavandhadge/routingcache/internal/store"
)

// secondaryGetChunksSince asks the primary to refresh, waits for local
// replication to catch up to the reported operation time, then reads a
// coherent local view.
func (l *Loader) secondaryGetChunksSince(ctx context.Context, nss string, since catalog.ChunkVersion) (catalog.CollectionAndChangedChunks, error) {
	opTime, err := l.dispatch.ForceRoutingTableRefresh(ctx, nss)
	if err != nil {
		return catalog.CollectionAndChangedChunks{}, fmt.Errorf("loader: forceRoutingTableRefresh for %s: %w", nss, err)
	}

	if err := l.repl.WaitUntilOpTime(ctx, opTime); err != nil {
		return catalog.CollectionAndChangedChunks{}, fmt.Errorf("loader: wait until op time for %s: %w", nss, err)
	}

	return l.getCompletePersistedMetadataForSecondarySinceVersion(ctx, nss, since)
}

// getCompletePersistedMetadataForSecondarySinceVersion uses the refreshing
// flag plus last_refreshed_version two-phase marker to find a coherent
// read point; the notification bus avoids busy-waiting between retries.
func (l *Loader) getCompletePersistedMetadataForSecondarySinceVersion(ctx context.Context, nss string, since catalog.ChunkVersion) (catalog.CollectionAndChangedChunks, error) {
	for {
		sub := l.notify.Subscribe(nss)

		entry, err := l.store.ReadCollectionEntry(nss)
		if err != nil {
			if err == store.ErrNotFound {
				return catalog.CollectionAndChangedChunks{}, nil
			}
			return catalog.CollectionAndChangedChunks{}, fmt.Errorf("loader: read collection entry for %s: %w", nss, err)
		}

		if entry.Refreshing {
			if err := sub.Wait(ctx); err != nil {
				return catalog.CollectionAndChangedChunks{}, err
			}
			continue
		}

		capturedVersion := entry.LastRefreshedVersion

		result, err := catalog.GetPersistedMetadataSinceVersion(l.store, nss, since, true)
		if err != nil {
			return catalog.CollectionAndChangedChunks{}, fmt.Errorf("loader: read persisted metadata for %s: %w", nss, err)
		}

		after, err := l.store.ReadCollectionEntry(nss)
		if err != nil {
			return catalog.CollectionAndChangedChunks{}, fmt.Errorf("loader: re-read collection entry for %s: %w", nss, err)
		}

		unchanged := !after.Refreshing && sameVersion(after.LastRefreshedVersion, capturedVersion)
		if unchanged {
			return result, nil
		}
		// The refreshing flag flipped back on, or advanced, between our
		// two reads -- a concurrent apply raced us. Retry.
	}
}

func sameVersion(a, b *catalog.ChunkVersion) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
