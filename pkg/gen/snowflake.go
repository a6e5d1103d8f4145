package gen

import (
	"licensing-controlplane/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake",
	fx.Provide(NewNode),
)

// NewNode builds the process-wide snowflake node. The node ID must be unique
// per service instance when running more than one replica.
func NewNode(cfg *config.Config) (*snowflake.Node, error) {
	nodeID := cfg.SnowflakeNodeID
	if nodeID == 0 {
		nodeID = 1
	}
	return snowflake.NewNode(nodeID)
}
