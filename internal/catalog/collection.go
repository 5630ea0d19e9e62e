package catalog

import "github.com/google/uuid"

// CollectionEntry is the persisted row describing one sharded collection,
// equivalent to a row in a config server's collections table.
type CollectionEntry struct {
	NSS                  string
	UUID                 *uuid.UUID
	Epoch                uuid.UUID
	ShardKeyPattern      []byte
	DefaultCollation     []byte
	Unique               bool
	Refreshing           bool
	LastRefreshedVersion *ChunkVersion
}

// Clone returns a deep-enough copy safe for independent mutation.
func (e CollectionEntry) Clone() CollectionEntry {
	out := e
	if e.UUID != nil {
		u := *e.UUID
		out.UUID = &u
	}
	out.ShardKeyPattern = append([]byte(nil), e.ShardKeyPattern...)
	out.DefaultCollation = append([]byte(nil), e.DefaultCollation...)
	if e.LastRefreshedVersion != nil {
		v := *e.LastRefreshedVersion
		out.LastRefreshedVersion = &v
	}
	return out
}

// CollectionAndChangedChunks is the API payload returned by getChunksSince:
// collection-level metadata plus the ordered list of chunks that changed
// since the caller's version.
type CollectionAndChangedChunks struct {
	UUID             *uuid.UUID
	Epoch            uuid.UUID
	ShardKeyPattern  []byte
	DefaultCollation []byte
	Unique           bool
	ChangedChunks    []ChunkEntry
}

// Empty reports whether there are no changed chunks at all -- the
// zero-value sentinel used throughout the merger to mean "nothing found".
func (c CollectionAndChangedChunks) Empty() bool {
	return len(c.ChangedChunks) == 0
}

// MaxVersion returns the version of the last (highest) changed chunk. It
// panics if ChangedChunks is empty; callers must check Empty() first, since
// every non-empty payload is required to have a well-defined tail version
// whose epoch matches Epoch.
func (c CollectionAndChangedChunks) MaxVersion() ChunkVersion {
	return c.ChangedChunks[len(c.ChangedChunks)-1].Version
}

// MinVersion returns the version of the first changed chunk. It panics if
// ChangedChunks is empty.
func (c CollectionAndChangedChunks) MinVersion() ChunkVersion {
	return c.ChangedChunks[0].Version
}
