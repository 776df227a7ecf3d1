package kir

import (
	"fmt"
	"strings"
)

// StorageRank orders the memory hierarchy from widest to narrowest
// visibility. Lower rank means wider sharing.
type StorageRank int

const (
	RankGlobal StorageRank = iota // visible to every block
	RankShared                    // visible within one block
	RankWarp                      // visible within one warp
	RankLocal                     // private to one thread
)

func (r StorageRank) String() string {
	switch r {
	case RankGlobal:
		return "global"
	case RankShared:
		return "shared"
	case RankWarp:
		return "warp"
	case RankLocal:
		return "local"
	default:
		return "unknown"
	}
}

// StorageScope is the memory-hierarchy level a buffer lives at, with an
// optional backend-specific tag suffix (e.g. "shared.dyn").
type StorageScope struct {
	Rank StorageRank
	Tag  string
}

func (s StorageScope) String() string {
	return s.Rank.String() + s.Tag
}

// ParseStorageScope parses a scope string such as "global", "shared" or
// "shared.dyn" into its rank and tag.
func ParseStorageScope(str string) (StorageScope, error) {
	base, tag := str, ""
	if i := strings.IndexByte(str, '.'); i >= 0 {
		base, tag = str[:i], str[i:]
	}
	var r StorageRank
	switch base {
	case "global":
		r = RankGlobal
	case "shared":
		r = RankShared
	case "warp":
		r = RankWarp
	case "local":
		r = RankLocal
	default:
		return StorageScope{}, fmt.Errorf("kir: unknown storage scope %q", str)
	}
	return StorageScope{Rank: r, Tag: tag}, nil
}

// ThreadRank classifies a thread-hierarchy dimension tag.
type ThreadRank int

const (
	// ThreadRankBlock is a grid dimension counting blocks (blockIdx.*).
	ThreadRankBlock ThreadRank = iota
	// ThreadRankThread is a block dimension counting threads (threadIdx.*).
	ThreadRankThread
)

// ParseThreadTag classifies an IterVar tag such as "blockIdx.x" or
// "threadIdx.y" into its rank.
func ParseThreadTag(tag string) (ThreadRank, error) {
	base := tag
	if i := strings.IndexByte(tag, '.'); i >= 0 {
		base = tag[:i]
	}
	switch base {
	case "blockIdx":
		return ThreadRankBlock, nil
	case "threadIdx":
		return ThreadRankThread, nil
	default:
		return 0, fmt.Errorf("kir: unknown thread tag %q", tag)
	}
}
