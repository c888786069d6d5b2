package jobstore

import "fmt"

// JobKey is the Redis hash key holding one job record.
func JobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// QueueKey is the Redis list key of pending job IDs for one job type.
func QueueKey(jobType string) string {
	return fmt.Sprintf("queue:%s", jobType)
}

// IndexKey is the Redis list of every job ID ever created, newest last.
// Backs the debug/inspection surface; queue membership tells only part of
// the story once jobs are dequeued.
func IndexKey() string {
	return "jobs:index"
}

// RateLimitKey scopes request counters per API key prefix.
func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
