package system

import (
	"fmt"
	"os"
	"time"

	"github.com/imposter-project/imposter-protocol/internal/jobfactory"
	"github.com/imposter-project/imposter-protocol/internal/schemes"
)

// GenerateInstanceID generates a unique instance ID for this process
func GenerateInstanceID() string {
	hostname, _ := os.Hostname()
	pid := os.Getpid()
	timestamp := time.Now().UnixNano()
	return fmt.Sprintf("%s-%d-%d", hostname, pid, timestamp)
}

// Status is the body of the status endpoint
type Status struct {
	Status     string   `json:"status"`
	InstanceID string   `json:"instanceId"`
	Ready      bool     `json:"ready"`
	Partitions []string `json:"partitions"`
}

// Schemes is the body of the schemes endpoint
type Schemes struct {
	StandardSchemes      []string                       `json:"standardSchemes"`
	ServiceWorkerSchemes []string                       `json:"serviceWorkerSchemes"`
	Privileged           []schemes.SchemeStatus         `json:"privileged"`
	Switches             []string                       `json:"switches"`
	Sessions             map[string]jobfactory.Snapshot `json:"sessions"`
}
