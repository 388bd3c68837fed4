package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesRecordedSeries(t *testing.T) {
	RecordTurn("completed", "question", 20*time.Millisecond)
	RecordCheckpoint("job_conclusion", true)
	RecordToolExecution("search-jobs", time.Second, false)
	RecordGeneration("openai", 300*time.Millisecond, true)
	RecordJobSearch("it", "no_match", 0)
	SetActiveStates(2)
	RecordQueueEnqueue("session-u1:1", 1)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `ikigai_turn_total{outcome="question",path="completed"}`)
	assert.Contains(t, body, `ikigai_checkpoint_total{fallback="true",kind="job_conclusion"}`)
	assert.Contains(t, body, `ikigai_tool_execution_total{status="error",tool="search-jobs"}`)
	assert.Contains(t, body, `ikigai_lane_queue_size{lane="session-u1:1"} 1`)
	assert.Contains(t, body, "ikigai_active_interview_states 2")
}

func TestRecordQueueCompletionDropsDrainedLane(t *testing.T) {
	RecordQueueEnqueue("session-drain:1", 1)
	RecordQueueCompletion("session-drain:1", time.Millisecond, true, 0)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.NotContains(t, rec.Body.String(), `lane="session-drain:1"`)
}
