package redis

import (
	"fmt"

	"github.com/mcoot/geoseek/internal/model"
)

// Key prefix for all coordinator data
const keyPrefix = "geoseek"

// summaryKey returns the Redis key for a SessionSummary
func summaryKey(id model.SessionID) string {
	return fmt.Sprintf("%s:summary:%s", keyPrefix, id)
}

// summariesByEndIndexKey returns the Redis key for the ZSET of summaries scored by end time
func summariesByEndIndexKey() string {
	return fmt.Sprintf("%s:idx:summaries_by_end", keyPrefix)
}
