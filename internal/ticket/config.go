package ticket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// DirName is the project marker directory. Its parent is the project root.
const DirName = ".vibe-ticket"

// ConfigFileName is the project config file inside DirName.
const ConfigFileName = "config.json"

// DefaultLockTimeout bounds every storage lock wait.
const DefaultLockTimeout = 2 * time.Second

// Config holds all configuration options.
type Config struct {
	Editor          string       `json:"editor,omitempty"`
	DefaultPriority string       `json:"default_priority,omitempty"`
	DefaultAssignee string       `json:"default_assignee,omitempty"`
	LockTimeout     string       `json:"lock_timeout,omitempty"`
	Git             GitConfig    `json:"git"`
	Output          OutputConfig `json:"output"`

	// Resolved values (not serialized).
	EffectiveCwd string        `json:"-"`
	ProjectRoot  string        `json:"-"` // empty when no .vibe-ticket was found
	StorageDir   string        `json:"-"` // ProjectRoot/.vibe-ticket
	LockWait     time.Duration `json:"-"`
	Sources      ConfigSources `json:"-"`
}

// GitConfig controls branch and worktree handling for start/close.
type GitConfig struct {
	BranchPrefix    string `json:"branch_prefix,omitempty"`
	WorktreeEnabled *bool  `json:"worktree_enabled,omitempty"`
	WorktreePrefix  string `json:"worktree_prefix,omitempty"`
	WorktreeBase    string `json:"worktree_base,omitempty"`
}

// OutputConfig controls presentation.
type OutputConfig struct {
	Color      string `json:"color,omitempty"` // auto|always|never
	DateFormat string `json:"date_format,omitempty"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string
	Project string
}

// WorktreesEnabled reports the effective worktree_enabled value.
func (c Config) WorktreesEnabled() bool {
	return c.Git.WorktreeEnabled != nil && *c.Git.WorktreeEnabled
}

// Initialized reports whether a project root was found.
func (c Config) Initialized() bool { return c.ProjectRoot != "" }

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DefaultPriority: DefaultPriority.String(),
		LockTimeout:     DefaultLockTimeout.String(),
		Git: GitConfig{
			BranchPrefix:   "ticket/",
			WorktreePrefix: "vt-",
			WorktreeBase:   "..",
		},
		Output: OutputConfig{
			Color:      "auto",
			DateFormat: "2006-01-02 15:04",
		},
	}
}

// GlobalConfigPath returns $XDG_CONFIG_HOME/vt/config.json, falling back to
// ~/.config/vt/config.json, or "" without a home directory.
func GlobalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "vt", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "vt", "config.json")
	}

	return ""
}

// FindProjectRoot walks upward from start until it finds a directory that
// contains DirName.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	for {
		info, statErr := os.Stat(filepath.Join(dir, DirName))
		if statErr == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %s directory in %s or any parent", ErrNotInitialized, DirName, start)
		}

		dir = parent
	}
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride string            // -C/--cwd; os.Getwd() when empty
	ConfigPath      string            // -c/--config
	Env             map[string]string // process environment
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/vt/config.json)
// 3. Project config (.vibe-ticket/config.json under the discovered root)
// 4. Explicit config file via ConfigPath
//
// A missing project is not an error here; Config.ProjectRoot stays empty and
// commands that need storage report ErrNotInitialized.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg := DefaultConfig()
	cfg.EffectiveCwd = workDir

	if path := GlobalConfigPath(input.Env); path != "" {
		globalCfg, loaded, loadErr := loadConfigFile(path, false)
		if loadErr != nil {
			return Config{}, loadErr
		}

		if loaded {
			cfg = mergeConfig(cfg, globalCfg)
			cfg.Sources.Global = path
		}
	}

	if root, findErr := FindProjectRoot(workDir); findErr == nil {
		cfg.ProjectRoot = root
		cfg.StorageDir = filepath.Join(root, DirName)

		path := filepath.Join(cfg.StorageDir, ConfigFileName)

		projectCfg, loaded, loadErr := loadConfigFile(path, false)
		if loadErr != nil {
			return Config{}, loadErr
		}

		if loaded {
			cfg = mergeConfig(cfg, projectCfg)
			cfg.Sources.Project = path
		}
	}

	if input.ConfigPath != "" {
		path := input.ConfigPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		if _, statErr := os.Stat(path); statErr != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.ConfigPath)
		}

		explicitCfg, _, loadErr := loadConfigFile(path, true)
		if loadErr != nil {
			return Config{}, loadErr
		}

		cfg = mergeConfig(cfg, explicitCfg)
		cfg.Sources.Project = path
	}

	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadConfigFile reads and parses one JSONC file. With mustExist false a
// missing file yields (zero, false, nil).
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.Editor != "" {
		base.Editor = overlay.Editor
	}

	if overlay.DefaultPriority != "" {
		base.DefaultPriority = overlay.DefaultPriority
	}

	if overlay.DefaultAssignee != "" {
		base.DefaultAssignee = overlay.DefaultAssignee
	}

	if overlay.LockTimeout != "" {
		base.LockTimeout = overlay.LockTimeout
	}

	if overlay.Git.BranchPrefix != "" {
		base.Git.BranchPrefix = overlay.Git.BranchPrefix
	}

	if overlay.Git.WorktreeEnabled != nil {
		base.Git.WorktreeEnabled = overlay.Git.WorktreeEnabled
	}

	if overlay.Git.WorktreePrefix != "" {
		base.Git.WorktreePrefix = overlay.Git.WorktreePrefix
	}

	if overlay.Git.WorktreeBase != "" {
		base.Git.WorktreeBase = overlay.Git.WorktreeBase
	}

	if overlay.Output.Color != "" {
		base.Output.Color = overlay.Output.Color
	}

	if overlay.Output.DateFormat != "" {
		base.Output.DateFormat = overlay.Output.DateFormat
	}

	return base
}

func validateConfig(cfg *Config) error {
	if _, err := ParsePriority(cfg.DefaultPriority); err != nil {
		return fmt.Errorf("%w: default_priority: %w", ErrConfigInvalid, err)
	}

	wait, err := time.ParseDuration(cfg.LockTimeout)
	if err != nil || wait <= 0 {
		return fmt.Errorf("%w: lock_timeout %q must be a positive duration", ErrConfigInvalid, cfg.LockTimeout)
	}

	cfg.LockWait = wait

	switch cfg.Output.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%w: output.color %q (want auto|always|never)", ErrConfigInvalid, cfg.Output.Color)
	}

	return nil
}

// ConfigKeys lists the keys accepted by GetConfigValue and SetConfigValue.
var ConfigKeys = []string{
	"editor", "default_priority", "default_assignee", "lock_timeout",
	"git.branch_prefix", "git.worktree_enabled", "git.worktree_prefix", "git.worktree_base",
	"output.color", "output.date_format",
}

var errUnknownConfigKey = errors.New("unknown config key")

// GetConfigValue returns the effective value for a dotted key.
func GetConfigValue(cfg Config, key string) (string, error) {
	switch key {
	case "editor":
		return cfg.Editor, nil
	case "default_priority":
		return cfg.DefaultPriority, nil
	case "default_assignee":
		return cfg.DefaultAssignee, nil
	case "lock_timeout":
		return cfg.LockTimeout, nil
	case "git.branch_prefix":
		return cfg.Git.BranchPrefix, nil
	case "git.worktree_enabled":
		return strconv.FormatBool(cfg.WorktreesEnabled()), nil
	case "git.worktree_prefix":
		return cfg.Git.WorktreePrefix, nil
	case "git.worktree_base":
		return cfg.Git.WorktreeBase, nil
	case "output.color":
		return cfg.Output.Color, nil
	case "output.date_format":
		return cfg.Output.DateFormat, nil
	default:
		return "", fmt.Errorf("%w: %w %q", ErrInvalidInput, errUnknownConfigKey, key)
	}
}

// SetConfigValue writes key=value into the JSONC file at path, keeping
// comments and formatting of untouched members. The file is created when
// missing. The result must still parse and validate.
func SetConfigValue(path, key, value string) error {
	if _, err := GetConfigValue(DefaultConfig(), key); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
		}

		data = []byte("{}\n")
	}

	doc, err := hujson.Parse(data)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	var jsonValue any = value
	if key == "git.worktree_enabled" {
		b, parseErr := strconv.ParseBool(value)
		if parseErr != nil {
			return fmt.Errorf("%w: %s expects true or false", ErrInvalidInput, key)
		}

		jsonValue = b
	}

	var ops []map[string]any

	parent, _, nested := strings.Cut(key, ".")
	if nested && !hasMember(doc, parent) {
		ops = append(ops, map[string]any{"op": "add", "path": "/" + parent, "value": map[string]any{}})
	}

	ops = append(ops, map[string]any{"op": "add", "path": "/" + strings.ReplaceAll(key, ".", "/"), "value": jsonValue})

	patch, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}

	if err := doc.Patch(patch); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrConfigInvalid, key, err)
	}

	doc.Format()
	out := doc.Pack()

	cfg, err := parseConfig(out)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	merged := mergeConfig(DefaultConfig(), cfg)
	if err := validateConfig(&merged); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorageIO, path, err)
	}

	return nil
}

func hasMember(doc hujson.Value, name string) bool {
	std := doc.Clone()
	std.Standardize()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(std.Pack(), &raw); err != nil {
		return false
	}

	_, ok := raw[name]

	return ok
}
