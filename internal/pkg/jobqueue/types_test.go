package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   JobStatus
		expected string
	}{
		{"Pending", JobStatusPending, "pending"},
		{"Processing", JobStatusProcessing, "processing"},
		{"Completed", JobStatusCompleted, "completed"},
		{"Failed", JobStatusFailed, "failed"},
		{"Retrying", JobStatusRetrying, "retrying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
		})
	}
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{"Retries remaining", &Job{Status: JobStatusFailed, RetryCount: 1, MaxRetries: 3}, true},
		{"Budget exhausted", &Job{Status: JobStatusFailed, RetryCount: 3, MaxRetries: 3}, false},
		{"Fresh job", &Job{Status: JobStatusPending, RetryCount: 0, MaxRetries: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_MarkAsProcessing(t *testing.T) {
	job := &Job{Status: JobStatusPending}

	before := time.Now()
	job.MarkAsProcessing()

	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)
	assert.False(t, job.ProcessedAt.Before(before))
}

func TestJob_MarkAsCompleted(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, ErrorMsg: "previous failure"}

	job.MarkAsCompleted()

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)
}

func TestJob_MarkAsFailed(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, RetryCount: 1}

	job.MarkAsFailed("event lookup failed")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "event lookup failed", job.ErrorMsg)
	assert.Equal(t, 2, job.RetryCount)
}

func TestWebhookProcessJobPayload_RoundTrip(t *testing.T) {
	original := WebhookProcessJobPayload{EventID: 42}

	data := original.ToMap()
	assert.Equal(t, map[string]interface{}{"event_id": uint(42)}, data)

	result, err := WebhookProcessJobPayloadFromMap(data)
	require.NoError(t, err)
	assert.Equal(t, &original, result)
}

func TestWebhookProcessJobPayloadFromMap_JSONNumbers(t *testing.T) {
	// Payloads loaded from Redis arrive with float64 numbers.
	result, err := WebhookProcessJobPayloadFromMap(map[string]interface{}{"event_id": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, uint(42), result.EventID)
}

func TestWebhookProcessJobPayloadFromMap_InvalidData(t *testing.T) {
	_, err := WebhookProcessJobPayloadFromMap(map[string]interface{}{"event_id": make(chan int)})
	assert.Error(t, err)
}
