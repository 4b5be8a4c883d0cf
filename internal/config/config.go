package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/openbci/internal/acquisition"
	"github.com/banshee-data/openbci/internal/boards"
	"github.com/banshee-data/openbci/internal/openbci"
)

// NodeConfig is the JSON configuration file of the node. Every field is
// optional; the Get* methods supply defaults for omitted ones and command-line
// flags override whatever the file sets.
type NodeConfig struct {
	// Acquisition
	Board      *string             `json:"board,omitempty"`
	Channels   []string            `json:"channels,omitempty"`
	Gain       *int                `json:"gain,omitempty"`
	Disable    []int               `json:"disable,omitempty"`
	Debug      *bool               `json:"debug,omitempty"`
	Params     *acquisition.Params `json:"params,omitempty"`
	Timestamps *string             `json:"timestamps,omitempty"` // "relative" or "absolute"

	// Host
	PollInterval *string `json:"poll_interval,omitempty"` // duration string like "100ms"

	// Recording
	DBPath *string `json:"db_path,omitempty"`
	Record *bool   `json:"record,omitempty"`

	// HTTP
	Listen *string `json:"listen,omitempty"`
}

const (
	defaultBoard        = "synthetic"
	defaultPollInterval = 100 * time.Millisecond
	defaultDBPath       = "openbci.db"
	defaultListen       = ":8080"
)

// EmptyNodeConfig returns a NodeConfig with all fields unset.
func EmptyNodeConfig() *NodeConfig {
	return &NodeConfig{}
}

// LoadNodeConfig loads a NodeConfig from a JSON file.
// The file must have a .json extension and be under the max file size.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyNodeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that can be checked without opening a board.
// An unsupported gain is not an error here: the node warns and skips the
// channel settings command instead. Unknown disable channels are ignored.
func (c *NodeConfig) Validate() error {
	board, err := boards.Lookup(c.GetBoard())
	if err != nil {
		return err
	}

	if c.Params != nil {
		if err := c.Params.Validate(board); err != nil {
			return err
		}
	}

	if _, err := openbci.ParseTimestampPolicy(c.getTimestamps()); err != nil {
		return err
	}

	if c.PollInterval != nil && *c.PollInterval != "" {
		d, err := time.ParseDuration(*c.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval '%s': %w", *c.PollInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("poll_interval must be positive, got %s", d)
		}
	}

	return nil
}

// GetBoard returns the board name or the default.
func (c *NodeConfig) GetBoard() string {
	if c.Board == nil || *c.Board == "" {
		return defaultBoard
	}
	return *c.Board
}

func (c *NodeConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

func (c *NodeConfig) GetParams() acquisition.Params {
	if c.Params == nil {
		return acquisition.Params{}
	}
	return *c.Params
}

func (c *NodeConfig) getTimestamps() string {
	if c.Timestamps == nil {
		return ""
	}
	return *c.Timestamps
}

// GetTimestamps returns the timestamp policy, relative offset by default.
func (c *NodeConfig) GetTimestamps() openbci.TimestampPolicy {
	p, err := openbci.ParseTimestampPolicy(c.getTimestamps())
	if err != nil {
		return openbci.RelativeOffset // default on parse error
	}
	return p
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *NodeConfig) GetPollInterval() time.Duration {
	if c.PollInterval == nil || *c.PollInterval == "" {
		return defaultPollInterval
	}
	d, err := time.ParseDuration(*c.PollInterval)
	if err != nil || d <= 0 {
		return defaultPollInterval // default on parse error
	}
	return d
}

func (c *NodeConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return defaultDBPath
	}
	return *c.DBPath
}

// GetRecord reports whether frames are recorded; on by default.
func (c *NodeConfig) GetRecord() bool {
	if c.Record == nil {
		return true
	}
	return *c.Record
}

func (c *NodeConfig) GetListen() string {
	if c.Listen == nil {
		return defaultListen
	}
	return *c.Listen
}

// NodeOptions converts the file into the construction parameters of a node.
func (c *NodeConfig) NodeOptions() openbci.Config {
	return openbci.Config{
		Board:      c.GetBoard(),
		Channels:   c.Channels,
		Gain:       c.Gain,
		Disable:    c.Disable,
		Debug:      c.GetDebug(),
		Params:     c.GetParams(),
		Timestamps: c.GetTimestamps(),
	}
}
