package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AnswerKeyKey returns the cache key for a test's normalized answer key.
func (r *CacheKeyStruct) AnswerKeyKey(testID string) string {
	return fmt.Sprintf("test:%s:answer_key", testID)
}

// ViolationKey returns the cache key for an attempt's violation record.
func (r *CacheKeyStruct) ViolationKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:violations", attemptID)
}

// SessionChannel returns the Redis PubSub channel carrying live session
// state deltas. Every gateway process subscribes to this single channel.
func (r *CacheKeyStruct) SessionChannel() string {
	return "session:events"
}

var CacheKey = NewCacheKeyStruct()
