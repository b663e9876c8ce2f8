package dice

import (
	"github.com/liuran001/GameLauncher-Go/launcher"
	"github.com/liuran001/GameLauncher-Go/launcher/builtin"
)

func init() {
	builtin.MustRegister(Name, func(deps builtin.Deps) (launcher.Game, error) {
		return New(deps.In, deps.Out), nil
	})
}
