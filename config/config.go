package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. AFFECT_FUSION_VISUAL_WEIGHT.
const EnvPrefix = "AFFECT"

type Service struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Timeout int    `yaml:"timeout" mapstructure:"timeout"` // sec
}

type BiosignalService struct {
	Service `yaml:",inline" mapstructure:",squash"`
	Weights string `yaml:"weights" mapstructure:"weights"`
}

type Services struct {
	Biosignal BiosignalService `yaml:"biosignal" mapstructure:"biosignal"`
	Detector  Service          `yaml:"detector" mapstructure:"detector"`
	Dashboard Service          `yaml:"dashboard" mapstructure:"dashboard"`
}

type Signal struct {
	OriginalRate  float64 `yaml:"original_rate" mapstructure:"original_rate"` // Hz
	TargetRate    float64 `yaml:"target_rate" mapstructure:"target_rate"`     // Hz
	SegmentLength int     `yaml:"segment_length" mapstructure:"segment_length"`
	Scale         float64 `yaml:"scale" mapstructure:"scale"`
}

type Video struct {
	FFmpeg        string  `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	FFprobe       string  `yaml:"ffprobe" mapstructure:"ffprobe"`
	SampleSeconds float64 `yaml:"sample_seconds" mapstructure:"sample_seconds"`
	ProgressEvery int     `yaml:"progress_every" mapstructure:"progress_every"` // sampled frames
}

type Fusion struct {
	Strategy         string  `yaml:"strategy" mapstructure:"strategy"`
	BiosignalWeight  float64 `yaml:"biosignal_weight" mapstructure:"biosignal_weight"`
	VisualWeight     float64 `yaml:"visual_weight" mapstructure:"visual_weight"`
	SegmentSeconds   float64 `yaml:"segment_seconds" mapstructure:"segment_seconds"`
	BiosignalClasses int     `yaml:"biosignal_classes" mapstructure:"biosignal_classes"`
}

type Root struct {
	Pipeline struct {
		Name      string `yaml:"name" mapstructure:"name"`
		Version   string `yaml:"version" mapstructure:"version"`
		LogLvl    string `yaml:"log_level" mapstructure:"log_level"`
		LogFormat string `yaml:"log_format" mapstructure:"log_format"`
	} `yaml:"pipeline" mapstructure:"pipeline"`
	Inputs struct {
		CSV   string `yaml:"csv" mapstructure:"csv"`
		Video string `yaml:"video" mapstructure:"video"`
	} `yaml:"inputs" mapstructure:"inputs"`
	Signal   Signal   `yaml:"signal" mapstructure:"signal"`
	Video    Video    `yaml:"video" mapstructure:"video"`
	Fusion   Fusion   `yaml:"fusion" mapstructure:"fusion"`
	Services Services `yaml:"services" mapstructure:"services"`
	Paths    struct {
		Outputs string `yaml:"outputs" mapstructure:"outputs"`
		History string `yaml:"history" mapstructure:"history"`
	} `yaml:"paths" mapstructure:"paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "affect-demo")
	v.SetDefault("pipeline.version", "0.1.0")
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("pipeline.log_format", "text")

	v.SetDefault("inputs.csv", "passive/model/network/input-folder/tester.csv")
	v.SetDefault("inputs.video", "visual_data_test.mp4")

	v.SetDefault("signal.original_rate", 25.0)
	v.SetDefault("signal.target_rate", 64.0)
	v.SetDefault("signal.segment_length", 140)
	v.SetDefault("signal.scale", 1000.0)

	v.SetDefault("video.ffmpeg", "ffmpeg")
	v.SetDefault("video.ffprobe", "ffprobe")
	v.SetDefault("video.sample_seconds", 2.0)
	v.SetDefault("video.progress_every", 5)

	v.SetDefault("fusion.strategy", "weighted_average")
	v.SetDefault("fusion.biosignal_weight", 0.4)
	v.SetDefault("fusion.visual_weight", 0.6)
	v.SetDefault("fusion.segment_seconds", 2.2)
	v.SetDefault("fusion.biosignal_classes", 2)

	v.SetDefault("services.biosignal.url", "http://localhost:8101")
	v.SetDefault("services.biosignal.timeout", 60)
	v.SetDefault("services.biosignal.weights", "passive/model/network/emotion_cnn.pth")
	v.SetDefault("services.detector.url", "http://localhost:8102")
	v.SetDefault("services.detector.timeout", 60)
	v.SetDefault("services.dashboard.url", "")
	v.SetDefault("services.dashboard.timeout", 30)

	v.SetDefault("paths.outputs", "demo_outputs")
	v.SetDefault("paths.history", "")
}

// New returns a viper instance with defaults, env overrides and, when found,
// a config file. path wins over the guessed locations.
func New(path string) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return v, nil
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join("config", env))
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals and validates the effective configuration held by v.
func Decode(v *viper.Viper) (*Root, error) {
	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Load(path string) (*Root, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

func (c *Root) Validate() error {
	var errs []error
	if c.Signal.OriginalRate <= 0 || c.Signal.TargetRate <= 0 {
		errs = append(errs, errors.New("signal rates must be positive"))
	}
	if c.Signal.SegmentLength <= 0 {
		errs = append(errs, errors.New("signal.segment_length must be positive"))
	}
	if c.Signal.Scale <= 0 {
		errs = append(errs, errors.New("signal.scale must be positive"))
	}
	if c.Video.SampleSeconds <= 0 {
		errs = append(errs, errors.New("video.sample_seconds must be positive"))
	}
	if c.Fusion.BiosignalWeight < 0 || c.Fusion.VisualWeight < 0 {
		errs = append(errs, errors.New("fusion weights must be non-negative"))
	} else if c.Fusion.BiosignalWeight+c.Fusion.VisualWeight <= 0 {
		errs = append(errs, errors.New("fusion weights must not both be zero"))
	}
	if c.Fusion.SegmentSeconds <= 0 {
		errs = append(errs, errors.New("fusion.segment_seconds must be positive"))
	}
	if c.Fusion.BiosignalClasses < 2 {
		errs = append(errs, errors.New("fusion.biosignal_classes must be at least 2"))
	}
	if c.Paths.Outputs == "" {
		errs = append(errs, errors.New("paths.outputs is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Dump renders the configuration as YAML.
func Dump(c *Root) ([]byte, error) {
	return yaml.Marshal(c)
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
