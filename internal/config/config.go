package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
	"github.com/zeusync/spotlight/internal/experiment/scheduler"
	"github.com/zeusync/spotlight/internal/experiment/session"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Seed policies.
const (
	SeedEntropy = "entropy"
	SeedSubject = "subject"
)

// Config is the runner configuration, usually read from spotlight.yaml.
type Config struct {
	Subject    SubjectConfig    `json:"subject" yaml:"subject"`
	Experiment ExperimentConfig `json:"experiment" yaml:"experiment"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Bridge     BridgeConfig     `json:"bridge" yaml:"bridge"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
}

type SubjectConfig struct {
	ID         int                   `json:"id" yaml:"id"`
	Handedness experiment.Handedness `json:"handedness" yaml:"handedness"`
}

type ExperimentConfig struct {
	TotalTrials   int `json:"total_trials" yaml:"total_trials"`
	TasksPerTrial int `json:"tasks_per_trial" yaml:"tasks_per_trial"`
	// Seed is "entropy", "subject", or a decimal integer.
	Seed         string            `json:"seed" yaml:"seed"`
	LightTargets []experiment.Vec3 `json:"light_targets,omitempty" yaml:"light_targets,omitempty"`
	// Strict reports double-recorded trials as errors.
	Strict bool `json:"strict" yaml:"strict"`
}

type OutputConfig struct {
	Dir string `json:"dir" yaml:"dir"`
	// Archive is an optional SQLite database collecting every subject.
	Archive string `json:"archive,omitempty" yaml:"archive,omitempty"`
}

type BridgeConfig struct {
	// Addr enables the engine websocket bridge when set, e.g. ":8700".
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Path string `json:"path" yaml:"path"`
	// Token is required from the engine as ?token= when set.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Default returns the study defaults: three scenes, four combinations each.
func Default() *Config {
	return &Config{
		Subject: SubjectConfig{Handedness: experiment.HandednessUnspecified},
		Experiment: ExperimentConfig{
			TotalTrials:   3,
			TasksPerTrial: 4,
			Seed:          SeedEntropy,
		},
		Output:   OutputConfig{Dir: "."},
		Bridge:   BridgeConfig{Path: "/engine"},
		LogLevel: "info",
	}
}

// LoadYAML decodes r over the defaults and validates the result.
func LoadYAML(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

func (c *Config) Validate() error {
	e := c.Experiment
	if e.TotalTrials <= 0 {
		return fmt.Errorf("%w: experiment.total_trials must be positive", ErrInvalidConfig)
	}
	if e.TasksPerTrial <= 0 || e.TasksPerTrial%2 != 0 {
		return fmt.Errorf("%w: experiment.tasks_per_trial must be a positive even number", ErrInvalidConfig)
	}
	if _, err := c.seed(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Bridge.Addr != "" && !strings.HasPrefix(c.Bridge.Path, "/") {
		return fmt.Errorf("%w: bridge.path must start with /", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) seed() (int64, error) {
	switch s := strings.TrimSpace(c.Experiment.Seed); s {
	case "", SeedEntropy:
		return scheduler.EntropySeed(), nil
	case SeedSubject:
		return scheduler.SeedForSubject(c.Subject.ID), nil
	default:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: experiment.seed %q", ErrInvalidConfig, s)
		}
		return v, nil
	}
}

// Session converts the config into the session parameters, resolving the
// seed policy.
func (c *Config) Session() (session.Config, error) {
	seed, err := c.seed()
	if err != nil {
		return session.Config{}, err
	}
	targets := c.Experiment.LightTargets
	if len(targets) == 0 {
		targets = session.DefaultLightTargets
	}
	return session.Config{
		SubjectID:     c.Subject.ID,
		Handedness:    c.Subject.Handedness,
		TotalTrials:   c.Experiment.TotalTrials,
		TasksPerTrial: c.Experiment.TasksPerTrial,
		Seed:          seed,
		LightTargets:  targets,
	}, nil
}

func (c *Config) Level() log.Level {
	l, _ := log.ParseLevel(c.LogLevel)
	return l
}
