package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("hyphy:job:%s", jobID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("hyphy:ratelimit:%s", client)
}

// HealthKey caches the last Datamonkey health answer for baseURL.
func HealthKey(baseURL string) string {
	return fmt.Sprintf("hyphy:health:%s", baseURL)
}
