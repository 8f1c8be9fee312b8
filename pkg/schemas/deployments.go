package schemas

import (
	"hash/crc32"
	"strconv"
	"time"
)

const (
	// DeployStatusSucceeded indicates the platform completed the deployment.
	DeployStatusSucceeded DeployStatus = "succeeded"

	// DeployStatusFailed indicates the platform reported a deployment failure.
	DeployStatusFailed DeployStatus = "failed"

	// DeployStatusSkipped indicates no deployment was attempted, e.g. when the
	// targeted service does not exist on the platform.
	DeployStatusSkipped DeployStatus = "skipped"

	// DeployStatusPending indicates the deployment was triggered without
	// waiting for the platform to confirm completion.
	DeployStatusPending DeployStatus = "pending"
)

// DeployStatus is a custom type representing the state of a platform deployment.
type DeployStatus string

// DeploymentOutcome represents the result of triggering a deployment of one
// environment onto one platform. Outcomes are created per invocation and only
// retained in the journal for auditing purposes.
type DeploymentOutcome struct {
	Environment string       `json:"environment" yaml:"environment"`            // Name of the deployed environment
	Platform    PlatformName `json:"platform" yaml:"platform"`                  // Platform the deployment was triggered on
	Revision    string       `json:"revision" yaml:"revision"`                  // Revision identifier the environment branch pointed at
	Status      DeployStatus `json:"status" yaml:"status"`                      // Resulting deploy status
	DeployID    string       `json:"deploy_id,omitempty" yaml:"deploy_id"`      // Platform-side identifier of the deployment, if any
	URL         *string      `json:"url,omitempty" yaml:"url,omitempty"`        // Resolved environment URL, nil when unknown
	Detail      string       `json:"detail,omitempty" yaml:"detail,omitempty"`  // Human readable detail, mostly set on failures
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at"`              // When the outcome was produced
}

// DeploymentOutcomeKey is a custom type used as a key for identifying deployment outcomes.
type DeploymentOutcomeKey string

// Key generates a unique key for a DeploymentOutcome using a CRC32 checksum of
// the environment, platform, revision and creation timestamp.
func (o DeploymentOutcome) Key() DeploymentOutcomeKey {
	id := o.Environment + string(o.Platform) + o.Revision + strconv.FormatInt(o.CreatedAt.UnixNano(), 10)

	return DeploymentOutcomeKey(strconv.Itoa(int(crc32.ChecksumIEEE([]byte(id)))))
}

// DeploymentOutcomes is an ordered collection of deployment outcomes.
type DeploymentOutcomes []DeploymentOutcome

// Count returns the number of outcomes in the collection.
func (os DeploymentOutcomes) Count() int {
	return len(os)
}

// Succeeded returns whether the collection can be considered an overall
// success: no outcome failed. Skipped and pending outcomes do not count as
// failures.
func (os DeploymentOutcomes) Succeeded() bool {
	for _, o := range os {
		if o.Status == DeployStatusFailed {
			return false
		}
	}

	return true
}

// Failed returns the subset of outcomes which ended up in a failed status.
func (os DeploymentOutcomes) Failed() (failed DeploymentOutcomes) {
	for _, o := range os {
		if o.Status == DeployStatusFailed {
			failed = append(failed, o)
		}
	}

	return
}
