//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"io"

	"github.com/google/wire"

	"github.com/zeusync/spotlight/internal/config"
	"github.com/zeusync/spotlight/internal/experiment/session"
	"github.com/zeusync/spotlight/internal/host/console"
	"github.com/zeusync/spotlight/internal/server"
)

func InitializeConsole(cfg *config.Config, in io.Reader, out io.Writer) (*ConsoleApp, func(), error) {
	wire.Build(
		CoreSet,
		ProvideConsoleHost,
		wire.Bind(new(session.Host), new(*console.Host)),
		wire.Struct(new(ConsoleApp), "*"),
	)
	return nil, nil, nil
}

func InitializeEngine(cfg *config.Config) (*EngineApp, func(), error) {
	wire.Build(
		CoreSet,
		ProvideEngineBridge,
		ProvideHTTPServer,
		wire.Bind(new(session.Host), new(*server.EngineBridge)),
		wire.Struct(new(EngineApp), "*"),
	)
	return nil, nil, nil
}
