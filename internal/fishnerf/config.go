package fishnerf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type CameraConfig struct {
	FOVDegree Real `json:"fovDegree" yaml:"fovDegree"`
	Width     int  `json:"width" yaml:"width"`
	Height    int  `json:"height" yaml:"height"`
}

type SamplerConfig struct {
	Type           string `json:"type" yaml:"type"`
	Near           Real   `json:"near" yaml:"near"`
	Far            Real   `json:"far" yaml:"far"`
	NumSamples     int    `json:"numSamples" yaml:"numSamples"`
	NumFineSamples int    `json:"numFineSamples,omitempty" yaml:"numFineSamples"`
}

type VolumeConfig struct {
	Type       string  `json:"type" yaml:"type"`
	Resolution int     `json:"resolution,omitempty" yaml:"resolution"`
	Extent     Real    `json:"extent,omitempty" yaml:"extent"`
	Center     [3]Real `json:"center,omitempty" yaml:"center"`
	// Density and Color seed the homogeneous variant only.
	Density Real    `json:"density,omitempty" yaml:"density"`
	Color   [3]Real `json:"color,omitempty" yaml:"color"`
}

type RendererConfig struct {
	Type       string   `json:"type" yaml:"type"`
	Background *[3]Real `json:"background,omitempty" yaml:"background"`
}

type TrainingConfig struct {
	Epochs             int    `json:"epochs" yaml:"epochs"`
	BatchSize          int    `json:"batchSize" yaml:"batchSize"`
	LearningRate       Real   `json:"learningRate" yaml:"learningRate"`
	LRDecayGamma       Real   `json:"lrDecayGamma" yaml:"lrDecayGamma"`
	LRDecayStep        int    `json:"lrDecayStep" yaml:"lrDecayStep"`
	Workers            int    `json:"workers,omitempty" yaml:"workers"`
	Seed               int64  `json:"seed,omitempty" yaml:"seed"`
	CheckpointPath     string `json:"checkpointPath,omitempty" yaml:"checkpointPath"`
	CheckpointInterval int    `json:"checkpointInterval,omitempty" yaml:"checkpointInterval"`
	RenderInterval     int    `json:"renderInterval,omitempty" yaml:"renderInterval"`
	Resume             bool   `json:"resume,omitempty" yaml:"resume"`
}

type DataConfig struct {
	Root string `json:"root" yaml:"root"`
}

type RenderConfig struct {
	NumPoses int     `json:"numPoses" yaml:"numPoses"`
	Out      string  `json:"out" yaml:"out"`
	Delay    int     `json:"delay,omitempty" yaml:"delay"`
	Pose     [7]Real `json:"pose,omitempty" yaml:"pose"` // tx ty tz qx qy qz qw
}

type Config struct {
	Camera   CameraConfig   `json:"camera" yaml:"camera"`
	Sampler  SamplerConfig  `json:"sampler" yaml:"sampler"`
	Volume   VolumeConfig   `json:"volume" yaml:"volume"`
	Renderer RendererConfig `json:"renderer" yaml:"renderer"`
	Training TrainingConfig `json:"training" yaml:"training"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Render   RenderConfig   `json:"render" yaml:"render"`
}

// LoadConfig reads a YAML or JSON configuration (selected by extension),
// applies defaults and validates the bounds that are fatal at construction
// time.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unknown config extension %q (want .yaml, .yml or .json)", ext)
	}
	// Defaults / validation
	if cfg.Camera.FOVDegree == 0 {
		cfg.Camera.FOVDegree = FOVDegree
	}
	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = SensorWidth
	}
	if cfg.Camera.Height == 0 {
		cfg.Camera.Height = SensorHeight
	}
	if cfg.Sampler.Type == "" {
		cfg.Sampler.Type = "stratified"
	}
	if cfg.Sampler.Near == 0 {
		cfg.Sampler.Near = NearBound
	}
	if cfg.Sampler.Far == 0 {
		cfg.Sampler.Far = FarBound
	}
	if cfg.Sampler.NumSamples == 0 {
		cfg.Sampler.NumSamples = NumSamples
	}
	if cfg.Sampler.Near <= 0 || cfg.Sampler.Near >= cfg.Sampler.Far {
		return nil, fmt.Errorf("need 0 < near < far, got near=%g far=%g", cfg.Sampler.Near, cfg.Sampler.Far)
	}
	if cfg.Sampler.NumSamples < 1 {
		return nil, fmt.Errorf("sample count must be positive, got %d", cfg.Sampler.NumSamples)
	}
	if cfg.Volume.Type == "" {
		cfg.Volume.Type = "grid"
	}
	if cfg.Volume.Resolution == 0 {
		cfg.Volume.Resolution = GridRes
	}
	if cfg.Volume.Extent == 0 {
		cfg.Volume.Extent = GridExtent
	}
	if cfg.Volume.Density == 0 {
		cfg.Volume.Density = 1
	}
	if cfg.Volume.Color == ([3]Real{}) {
		cfg.Volume.Color = [3]Real{0.5, 0.5, 0.5}
	}
	if cfg.Renderer.Type == "" {
		cfg.Renderer.Type = "emission_absorption"
	}
	if cfg.Training.Epochs == 0 {
		cfg.Training.Epochs = Epochs
	}
	if cfg.Training.BatchSize == 0 {
		cfg.Training.BatchSize = BatchSize
	}
	if cfg.Training.LearningRate == 0 {
		cfg.Training.LearningRate = LearningRate
	}
	if cfg.Training.LRDecayGamma == 0 {
		cfg.Training.LRDecayGamma = LRDecayGamma
	}
	if cfg.Training.LRDecayStep == 0 {
		cfg.Training.LRDecayStep = LRDecayStep
	}
	if cfg.Training.CheckpointInterval == 0 {
		cfg.Training.CheckpointInterval = 10
	}
	if cfg.Training.RenderInterval == 0 {
		cfg.Training.RenderInterval = 25
	}
	if cfg.Render.NumPoses == 0 {
		cfg.Render.NumPoses = SurroundPoses
	}
	if cfg.Render.Out == "" {
		cfg.Render.Out = GIFOut
	}
	if cfg.Render.Delay == 0 {
		cfg.Render.Delay = GIFDelay
	}
	if cfg.Render.Pose == ([7]Real{}) {
		cfg.Render.Pose = [7]Real{0, 0, 0, 0, 0, 0, 1}
	}
	log.Debug().Str("path", path).
		Int("width", cfg.Camera.Width).Int("height", cfg.Camera.Height).
		Float64("near", cfg.Sampler.Near).Float64("far", cfg.Sampler.Far).
		Int("numSamples", cfg.Sampler.NumSamples).
		Str("volume", cfg.Volume.Type).Msg("loaded config")
	return &cfg, nil
}
