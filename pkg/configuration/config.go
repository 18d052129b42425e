// Package configuration loads the INI-style settings file shared by the
// interpreter, the CLI and the terminal server.
package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds the parsed settings, grouped by section.
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// localConfigPath holds per-machine overrides that are never generated.
const localConfigPath = "settings.local.cfg"

// sectionOrder is the order sections are written in when the default file is generated.
var sectionOrder = []string{"Interpreter", "Files", "Console", "Graphics", "Sound", "Terminal", "JWT", "Debug"}

// Initialize loads the global configuration. A missing file is created with defaults.
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		if _, statErr := os.Stat(localConfigPath); statErr == nil {
			// overrides are optional, a broken local file keeps the base config
			_ = globalConfig.loadFile(localConfigPath)
		}
	})
	return err
}

// loadConfig reads filePath, or writes the defaults there if it does not exist.
func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	config.createDefaultConfig()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %v", err)
		}
		return config, nil
	}

	if err := config.loadFile(filePath); err != nil {
		return nil, err
	}
	return config, nil
}

// loadFile merges the settings in filePath over the current ones.
func (c *Config) loadFile(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()
	return c.parse(file)
}

// parse reads "[Section]" headers and "key = value" pairs. Lines starting with
// ';' or '#' are comments.
func (c *Config) parse(r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			if c.settings[currentSection] == nil {
				c.settings[currentSection] = make(map[string]string)
			}
			continue
		}

		if strings.Contains(line, "=") && currentSection != "" {
			parts := strings.SplitN(line, "=", 2)
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			c.settings[currentSection][key] = value
		}
	}
	return scanner.Err()
}

// createDefaultConfig fills in every key the code reads.
func (c *Config) createDefaultConfig() {
	c.settings["Interpreter"] = map[string]string{
		"max_gosub_depth": "1000",
		"max_call_depth":  "100",
		"random_seed":     "0",
		"dump_ir":         "false",
		"duplicate_lines": "error",
	}

	c.settings["Files"] = map[string]string{
		"storage":  "os",
		"base_dir": ".",
		"database": "retrobasic.db",
	}

	c.settings["Console"] = map[string]string{
		"codepage":     "utf8",
		"line_editing": "true",
	}

	c.settings["Graphics"] = map[string]string{
		"backend":    "none",
		"svg_output": "screen.svg",
		"width":      "640",
		"height":     "200",
	}

	c.settings["Sound"] = map[string]string{
		"enabled": "true",
	}

	c.settings["Terminal"] = map[string]string{
		"listen":              ":8080",
		"require_token":       "false",
		"max_program_kb":      "64",
		"input_timeout":       "0s",
		"autocert_domain":     "",
		"autocert_email":      "",
		"cert_cache_dir":      "./certs",
		"cert_file":           "",
		"key_file":            "",
		"allowed_origins":     "",
		"pong_timeout":        "60s",
		"write_timeout":       "10s",
		"max_run_time":        "0s",
		"max_concurrent_runs": "0",
		"max_runs_per_user":   "0",
		"max_heap_mb":         "0",
	}

	c.settings["JWT"] = map[string]string{
		"secret_key":             "",
		"token_expiration_hours": "24",
	}

	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "retrobasic.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		"log_lowering":         "false",
		"log_runtime":          "false",
		"log_files":            "false",
		"log_graphics":         "false",
		"log_sound":            "false",
		"log_terminal":         "true",
		"log_database":         "false",
		"log_config":           "true",
		"log_general":          "true",
	}
}

// saveToFile writes the current settings to c.filePath.
func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintln(w, "; retrobasic configuration file")
	fmt.Fprintln(w, "; Generated automatically - modify with care")
	fmt.Fprintln(w, ";")
	fmt.Fprintln(w)

	for _, section := range sectionOrder {
		settings, exists := c.settings[section]
		if !exists {
			continue
		}
		fmt.Fprintf(w, "[%s]\n", section)

		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "%s = %s\n", key, settings[key])
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

// LoadString replaces the global configuration with the settings parsed from
// text on top of the defaults. It is meant for tests and embedded use.
func LoadString(text string) error {
	config := &Config{settings: make(map[string]map[string]string)}
	config.createDefaultConfig()
	if err := config.parse(strings.NewReader(text)); err != nil {
		return err
	}
	globalConfig = config
	return nil
}

// GetString returns the value for key in section, or defaultValue.
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	if sectionMap, exists := globalConfig.settings[section]; exists {
		if value, exists := sectionMap[key]; exists {
			return value
		}
	}

	return defaultValue
}

// GetInt returns an integer setting, or defaultValue if missing or malformed.
func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(str); err == nil {
		return value
	}

	return defaultValue
}

// GetInt64 is GetInt for 64-bit values such as random seeds.
func GetInt64(section, key string, defaultValue int64) int64 {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseInt(str, 10, 64); err == nil {
		return value
	}

	return defaultValue
}

// GetFloat returns a float setting, or defaultValue.
func GetFloat(section, key string, defaultValue float64) float64 {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseFloat(str, 64); err == nil {
		return value
	}

	return defaultValue
}

// GetBool returns a boolean setting, or defaultValue.
func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}

	return defaultValue
}

// GetDuration returns a duration setting ("30s", "5m"), or defaultValue.
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := time.ParseDuration(str); err == nil {
		return value
	}

	return defaultValue
}

// GetSection returns a copy of all key-value pairs of a section.
func GetSection(sectionName string) map[string]string {
	result := make(map[string]string)
	if globalConfig == nil {
		return result
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	for key, value := range globalConfig.settings[sectionName] {
		result[key] = value
	}
	return result
}

// SetString sets a value in memory; Save persists it.
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}

	globalConfig.mu.Lock()
	defer globalConfig.mu.Unlock()

	if globalConfig.settings[section] == nil {
		globalConfig.settings[section] = make(map[string]string)
	}

	globalConfig.settings[section][key] = value
}

// Save writes the configuration back to the file it was loaded from.
func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}
	if globalConfig.filePath == "" {
		return fmt.Errorf("configuration has no backing file")
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	return globalConfig.saveToFile()
}
