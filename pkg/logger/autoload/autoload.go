// Package autoload configures the global logger from the environment as a
// side effect of being imported.
package autoload

import (
	configx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/pkg/config"
	logx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
