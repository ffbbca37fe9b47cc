package config

import (
	"time"
)

// DefaultTimeUnit is the length of one logical tick when periods are given as schedules
const DefaultTimeUnit = time.Second

// Config represents the entire configuration for the scheduling simulator
type Config struct {
	// TimeUnit converts schedule descriptors into logical ticks
	TimeUnit time.Duration `yaml:"timeUnit,omitempty"`
	Tasks    []TaskDef     `yaml:"tasks"`
}

// TaskDef represents a single periodic task definition
type TaskDef struct {
	Name           string `yaml:"name"`
	ProcessingTime int    `yaml:"processingTime"`
	Instances      int    `yaml:"instances"`

	// Exactly one of Period or Schedule must be set
	Period   int    `yaml:"period,omitempty"`
	Schedule string `yaml:"schedule,omitempty"`
}
