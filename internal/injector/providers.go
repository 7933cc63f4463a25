package injector

import (
	"fmt"
	"io"
	"time"

	"github.com/google/wire"

	"github.com/zeusync/spotlight/internal/config"
	"github.com/zeusync/spotlight/internal/core/events/bus"
	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment/recorder"
	"github.com/zeusync/spotlight/internal/experiment/recorder/sqlite"
	"github.com/zeusync/spotlight/internal/experiment/session"
	"github.com/zeusync/spotlight/internal/host/console"
	"github.com/zeusync/spotlight/internal/server"
)

// ConsoleApp runs a session from the terminal.
type ConsoleApp struct {
	Logger  log.Log
	Bus     bus.EventBus
	Session *session.Session
	Host    *console.Host
}

// EngineApp runs a session for a rendering engine attached over websocket.
type EngineApp struct {
	Logger  log.Log
	Bus     bus.EventBus
	Session *session.Session
	Bridge  *server.EngineBridge
	Server  *server.HTTPServer
}

var CoreSet = wire.NewSet(
	ProvideLogger,
	ProvideBus,
	ProvideSessionConfig,
	ProvideRecorder,
	ProvideSinks,
	ProvideSession,
)

func ProvideLogger(cfg *config.Config) log.Log {
	return log.New(cfg.Level())
}

func ProvideBus(logger log.Log) bus.EventBus {
	b := bus.New()
	b.AddObserver(deliveryLogger{logger: logger.With(log.String("component", "bus"))})
	return b
}

// deliveryLogger traces every bus delivery at debug level.
type deliveryLogger struct {
	logger log.Log
}

func (d deliveryLogger) OnDelivered(e bus.Event, handlers int, err error, took time.Duration) {
	fields := []log.Field{
		log.String("type", e.Type()),
		log.String("source", e.Source()),
		log.Int("handlers", handlers),
		log.Duration("took", took),
	}
	if err != nil {
		fields = append(fields, log.Error(err))
	}
	d.logger.Debug("event delivered", fields...)
}

func ProvideSessionConfig(cfg *config.Config) (session.Config, error) {
	return cfg.Session()
}

func ProvideRecorder(cfg *config.Config, logger log.Log) *recorder.Recorder {
	return recorder.New(
		recorder.WithStrict(cfg.Experiment.Strict),
		recorder.WithLogger(logger),
	)
}

// ProvideSinks returns the per-subject file sink, followed by the SQLite
// archive when one is configured. The cleanup closes the archive.
func ProvideSinks(cfg *config.Config, logger log.Log) ([]recorder.Sink, func(), error) {
	sinks := []recorder.Sink{recorder.FileSink{Dir: cfg.Output.Dir}}
	if cfg.Output.Archive == "" {
		return sinks, func() {}, nil
	}

	archive, err := sqlite.Open(cfg.Output.Archive)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	cleanup := func() {
		if err := archive.Close(); err != nil {
			logger.Warn("closing archive failed", log.Error(err))
		}
	}
	return append(sinks, archive), cleanup, nil
}

func ProvideSession(
	cfg session.Config,
	host session.Host,
	rec *recorder.Recorder,
	logger log.Log,
	sinks []recorder.Sink,
) (*session.Session, error) {
	return session.New(cfg, host, rec, logger, sinks...)
}

func ProvideConsoleHost(in io.Reader, out io.Writer, b bus.EventBus, logger log.Log, sc session.Config) *console.Host {
	return console.New(in, out, b, logger, console.WithSeed(sc.Seed))
}

func ProvideEngineBridge(cfg *config.Config, b bus.EventBus, logger log.Log) *server.EngineBridge {
	return server.NewEngineBridge(b, server.TokenAuth{Token: cfg.Bridge.Token}, logger)
}

func ProvideHTTPServer(cfg *config.Config, bridge *server.EngineBridge, sess *session.Session, logger log.Log) *server.HTTPServer {
	return server.NewHTTPServer(cfg.Bridge.Addr, cfg.Bridge.Path, bridge, sess, logger)
}
