// Package autoload initializes the global logger from the LOG_* environment
// on import. Import it for side effects from the composition root.
package autoload

import (
	configx "github.com/hirelane/interview-agent/pkg/config"
	logx "github.com/hirelane/interview-agent/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
