package docker

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys used for labdesk resources
const (
	LabelProject   = "labdesk.project"
	LabelWorkspace = "labdesk.workspace"
	LabelRunID     = "labdesk.run_id"
	LabelComponent = "labdesk.component"
	LabelRedisPort = "labdesk.redis.port"
)

// ComponentRedis marks the workspace Redis container.
const ComponentRedis = "redis"

// BuildLabels creates the standard label set for labdesk resources.
// component may be empty.
func BuildLabels(workspace, runID, component string) map[string]string {
	labels := map[string]string{
		LabelProject:   "true",
		LabelWorkspace: workspace,
		LabelRunID:     runID,
	}

	if component != "" {
		labels[LabelComponent] = component
	}

	return labels
}

// GenerateRunID creates a new UUID for one `labdesk up`.
func GenerateRunID() string {
	return uuid.New().String()
}

// RedisContainerName returns the Redis container name for a workspace
func RedisContainerName(workspace string) string {
	return fmt.Sprintf("labdesk-redis-%s", workspace)
}
