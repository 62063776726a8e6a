package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file-loaded server configuration. Zero values are
// filled with defaults so an empty file is a valid config.
type Config struct {
	ListenAddr   string        `yaml:"listen_addr"`
	SpillDir     string        `yaml:"spill_dir"`
	PoolSize     int           `yaml:"pool_size"`
	DrainWorkers int           `yaml:"drain_workers"`
	DrainBatch   int           `yaml:"drain_batch"`
	EpochTick    time.Duration `yaml:"epoch_tick"`
	ReplayTick   time.Duration `yaml:"replay_tick"`

	Queue struct {
		SegmentSize int `yaml:"segment_size"`
		MaxSegments int `yaml:"max_segments"`
	} `yaml:"queue"`

	Kafka struct {
		Brokers    []string `yaml:"brokers"`
		FrameTopic string   `yaml:"frame_topic"`
		StatsTopic string   `yaml:"stats_topic"`
	} `yaml:"kafka"`
}

// LoadConfig reads path when it exists and fills in defaults. An
// empty path yields the default config.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":50051"
	}
	if cfg.SpillDir == "" {
		cfg.SpillDir = "./spill"
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 1024
	}
	if cfg.DrainWorkers == 0 {
		cfg.DrainWorkers = 2
	}
	if cfg.DrainBatch == 0 {
		cfg.DrainBatch = 256
	}
	if cfg.EpochTick == 0 {
		cfg.EpochTick = 2 * time.Second
	}
	if cfg.ReplayTick == 0 {
		cfg.ReplayTick = 5 * time.Second
	}
	if cfg.Queue.SegmentSize == 0 {
		cfg.Queue.SegmentSize = 64
	}
	if cfg.Queue.MaxSegments == 0 {
		cfg.Queue.MaxSegments = 1024
	}
	if cfg.Kafka.FrameTopic == "" {
		cfg.Kafka.FrameTopic = "chute.frames"
	}
	if cfg.Kafka.StatsTopic == "" {
		cfg.Kafka.StatsTopic = "chute.stats"
	}
	return cfg, nil
}
