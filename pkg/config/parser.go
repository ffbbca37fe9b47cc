package config

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sherine-k/rmsim/pkg/simulation"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads and parses the configuration file. Files ending in .yaml
// or .yml are YAML; anything else is read as a plain parameter file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config *Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		config, err = ParseYAML(data)
	default:
		config, err = ParseParams(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return config, nil
}

// ParseYAML decodes a YAML task list
func ParseYAML(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// ParseParams reads the plain parameter format: a task count followed by one
// "name processing_time period instances" record per task, whitespace separated.
func ParseParams(r io.Reader) (*Config, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	next := func(what string) (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", errors.Errorf("unexpected end of input reading %s", what)
		}
		return scanner.Text(), nil
	}
	nextInt := func(what string) (int, error) {
		tok, err := next(what)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid %s %q", what, tok)
		}
		return v, nil
	}

	n, err := nextInt("task count")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("task count must not be negative, got %d", n)
	}

	config := &Config{Tasks: make([]TaskDef, 0, n)}
	for i := 0; i < n; i++ {
		var def TaskDef
		if def.Name, err = next("task name"); err != nil {
			return nil, errors.Wrapf(err, "task %d", i)
		}
		if def.ProcessingTime, err = nextInt("processing time"); err != nil {
			return nil, errors.Wrapf(err, "task %s", def.Name)
		}
		if def.Period, err = nextInt("period"); err != nil {
			return nil, errors.Wrapf(err, "task %s", def.Name)
		}
		if def.Instances, err = nextInt("instance count"); err != nil {
			return nil, errors.Wrapf(err, "task %s", def.Name)
		}
		config.Tasks = append(config.Tasks, def)
	}

	return config, nil
}

// validateConfig validates the configuration. Numeric task parameters are
// checked when the catalog is built.
func validateConfig(config *Config) error {
	if config.TimeUnit < 0 {
		return errors.New("timeUnit must not be negative")
	}

	if len(config.Tasks) == 0 {
		return errors.New("at least one task must be defined")
	}

	for i, task := range config.Tasks {
		if task.Name == "" {
			return errors.Errorf("task %d: name is required", i)
		}

		if task.Period != 0 && task.Schedule != "" {
			return errors.Errorf("task %s: period and schedule are mutually exclusive", task.Name)
		}
	}

	return nil
}

// Catalog resolves the task definitions into a simulation catalog
func (c *Config) Catalog() (*simulation.Catalog, error) {
	unit := c.TimeUnit
	if unit == 0 {
		unit = DefaultTimeUnit
	}

	tasks := make([]simulation.Task, 0, len(c.Tasks))
	for _, def := range c.Tasks {
		period := def.Period
		if def.Schedule != "" {
			p, err := schedulePeriod(def.Schedule, unit)
			if err != nil {
				return nil, &simulation.ConfigurationError{Task: def.Name, Reason: err.Error()}
			}
			period = p
		}

		tasks = append(tasks, simulation.Task{
			Name:           def.Name,
			Period:         period,
			ProcessingTime: def.ProcessingTime,
			Instances:      def.Instances,
		})
	}

	return simulation.NewCatalog(tasks)
}

// schedulePeriod converts a constant-delay cron descriptor ("@every 10s")
// into a period measured in ticks of unit.
func schedulePeriod(spec string, unit time.Duration) (int, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse schedule %q", spec)
	}

	every, ok := schedule.(cron.ConstantDelaySchedule)
	if !ok {
		return 0, errors.Errorf("schedule %q is not periodic, use an @every descriptor", spec)
	}

	if every.Delay%unit != 0 {
		return 0, errors.Errorf("schedule %q is not a whole number of %s ticks", spec, unit)
	}
	return int(every.Delay / unit), nil
}
