package aws

import (
	"github.com/aws/aws-sdk-go-v2/aws"

	"appboard/internal/source"
	"appboard/internal/source/compute"
	"appboard/internal/source/cost"
	"appboard/internal/source/storage"
	"appboard/internal/source/traffic"
)

// Connectors builds every AWS-backed metric connector from one shared
// config. The distribution connector is not AWS-backed and is wired
// separately.
func Connectors(cfg aws.Config) []source.Connector {
	return []source.Connector{
		compute.NewClient(cfg),
		traffic.NewClient(cfg),
		storage.NewClient(cfg),
		cost.NewClient(cfg),
	}
}
