package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	FailureTimeout     = "TIMEOUT"
	FailureServerError = "SERVER_ERROR"
)

// MockBehavior controls simulated latency and failure injection on the HTTP surface.
type MockBehavior struct {
	Latency LatencyBehavior `mapstructure:"latency" json:"latency"`
	Failure FailureBehavior `mapstructure:"failure" json:"failure"`
}

type LatencyBehavior struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	MinMs   int  `mapstructure:"minMs" json:"minMs"`
	MaxMs   int  `mapstructure:"maxMs" json:"maxMs"`
}

type FailureBehavior struct {
	Rate  float64  `mapstructure:"rate" json:"rate"`
	Types []string `mapstructure:"types" json:"types"`
}

func DefaultMockBehavior() MockBehavior {
	return MockBehavior{
		Latency: LatencyBehavior{Enabled: false, MinMs: 50, MaxMs: 200},
		Failure: FailureBehavior{Rate: 0, Types: []string{FailureTimeout, FailureServerError}},
	}
}

type BehaviorHolder struct {
	current atomic.Value // holds MockBehavior
}

// NewStaticBehaviorHolder returns a holder that never reloads.
func NewStaticBehaviorHolder(b MockBehavior) *BehaviorHolder {
	holder := &BehaviorHolder{}
	holder.current.Store(b)
	return holder
}

func NewBehaviorHolder(cfg Config) (*BehaviorHolder, error) {
	v := viper.New()

	if path := strings.TrimSpace(cfg.BehaviorConfigPath); path != "" {
		v.SetConfigFile(filepath.Clean(path))
	} else {
		v.SetConfigName("behavior")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/esimmock")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ESIMMOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMockBehavior()
	v.SetDefault("mock.latency.enabled", defaults.Latency.Enabled)
	v.SetDefault("mock.latency.minMs", defaults.Latency.MinMs)
	v.SetDefault("mock.latency.maxMs", defaults.Latency.MaxMs)
	v.SetDefault("mock.failure.rate", defaults.Failure.Rate)
	v.SetDefault("mock.failure.types", defaults.Failure.Types)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	var current MockBehavior
	if err := v.UnmarshalKey("mock", &current); err != nil {
		return nil, err
	}
	if err := ValidateMockBehavior(current); err != nil {
		return nil, err
	}

	holder := NewStaticBehaviorHolder(current)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		// zap.L is resolved per event; the process logger is installed after config.
		log := zap.L().With(zap.String("component", "behavior"), zap.String("file", e.Name))
		var updated MockBehavior
		if err := v.UnmarshalKey("mock", &updated); err != nil {
			log.Warn("behavior reload failed", zap.Error(err))
			return
		}
		if err := ValidateMockBehavior(updated); err != nil {
			log.Warn("behavior change rejected", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("behavior reloaded",
			zap.Bool("latency", updated.Latency.Enabled),
			zap.Float64("failure_rate", updated.Failure.Rate),
		)
	})

	return holder, nil
}

func (h *BehaviorHolder) Get() MockBehavior {
	if h == nil {
		return DefaultMockBehavior()
	}
	b, ok := h.current.Load().(MockBehavior)
	if !ok {
		return DefaultMockBehavior()
	}
	return b
}

func ValidateMockBehavior(b MockBehavior) error {
	if b.Latency.MinMs < 0 || b.Latency.MaxMs < 0 {
		return errors.New("mock.latency bounds cannot be negative")
	}
	if b.Latency.MaxMs < b.Latency.MinMs {
		return errors.New("mock.latency.maxMs must be >= minMs")
	}
	if b.Failure.Rate < 0 || b.Failure.Rate > 1 {
		return errors.New("mock.failure.rate must be within [0,1]")
	}
	for _, t := range b.Failure.Types {
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case FailureTimeout, FailureServerError:
		default:
			return fmt.Errorf("mock.failure.types: unsupported type %q", t)
		}
	}
	return nil
}
