package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/timekeeping"
)

// Config is the merged analysis configuration. Options are addressed by
// (section, option); names are case-insensitive.
type Config struct {
	v     *viper.Viper
	files []string
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the plot gallery server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// PlotConfig sizes rendered figures.
type PlotConfig struct {
	DisplayToScreen bool    `mapstructure:"displaytoscreen"`
	Width           float64 `mapstructure:"width"`
	Height          float64 `mapstructure:"height"`
	TitleFontSize   float64 `mapstructure:"title_font_size"`
	AxisFontSize    float64 `mapstructure:"axis_font_size"`
}

// Load reads ini files in order; options in later files override earlier
// ones. Python-style continuation lines and %(name)s interpolation are
// supported. Environment variables MPAS_DIAG_<SECTION>_<OPTION> override
// file values.
func Load(files ...string) (*Config, error) {
	v := viper.New()

	// Environment
	v.SetEnvPrefix("MPAS_DIAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("execute.continue_on_error", "False")
	v.SetDefault("plot.displaytoscreen", "False")
	v.SetDefault("plot.width", 15)
	v.SetDefault("plot.height", 6)
	v.SetDefault("plot.title_font_size", 14)
	v.SetDefault("plot.axis_font_size", 12)
	v.SetDefault("output.generate", "['all']")
	v.SetDefault("output.run_log", "")
	v.SetDefault("output.plots_subdir", "plots")
	v.SetDefault("time.yr_offset", 0)
	v.SetDefault("case.ref_casename_v0", "None")

	if len(files) > 0 {
		tree, err := readINI(files)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(tree); err != nil {
			return nil, eris.Wrap(err, "config: merge ini")
		}
	}

	return &Config{v: v, files: files}, nil
}

func readINI(files []string) (map[string]any, error) {
	sources := make([]any, len(files))
	for i, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, diagerr.Config(eris.Wrapf(err, "config: config file %s", f))
		}
		sources[i] = f
	}

	f, err := ini.LoadSources(ini.LoadOptions{AllowPythonMultilineValues: true, IgnoreInlineComment: true}, sources[0], sources[1:]...)
	if err != nil {
		return nil, diagerr.Config(eris.Wrap(err, "config: parse ini"))
	}

	defaults := f.Section(ini.DefaultSection)
	tree := make(map[string]any)
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		opts := make(map[string]any)
		for _, k := range defaults.Keys() {
			opts[strings.ToLower(k.Name())] = k.String()
		}
		for _, k := range sec.Keys() {
			opts[strings.ToLower(k.Name())] = k.String()
		}
		tree[strings.ToLower(sec.Name())] = opts
	}
	return tree, nil
}

// Files returns the config files in load order.
func (c *Config) Files() []string {
	return append([]string(nil), c.files...)
}

func key(section, option string) string {
	return strings.ToLower(section + "." + option)
}

// Has reports whether option is set in section.
func (c *Config) Has(section, option string) bool {
	return c.v.IsSet(key(section, option))
}

// Get returns the raw string value of an option.
func (c *Config) Get(section, option string) (string, error) {
	if !c.Has(section, option) {
		return "", diagerr.Configf("config: option %q not set in section [%s]", option, section)
	}
	return strings.TrimSpace(c.v.GetString(key(section, option))), nil
}

// GetInt parses an option as a decimal integer. Leading zeros, as in year
// numbers, are kept decimal.
func (c *Config) GetInt(section, option string) (int, error) {
	s, err := c.Get(section, option)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, diagerr.Configf("config: [%s] %s = %q is not an integer", section, option, s)
	}
	return n, nil
}

// GetFloat parses an option as a float.
func (c *Config) GetFloat(section, option string) (float64, error) {
	s, err := c.Get(section, option)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, diagerr.Configf("config: [%s] %s = %q is not a number", section, option, s)
	}
	return f, nil
}

// GetBool accepts 1/yes/true/on and 0/no/false/off in any case.
func (c *Config) GetBool(section, option string) (bool, error) {
	s, err := c.Get(section, option)
	if err != nil {
		return false, err
	}
	return ParseBool(s)
}

// ParseBool reads an ini boolean.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off":
		return false, nil
	}
	return false, diagerr.Configf("config: %q is not a boolean", s)
}

// GetExpression decodes a literal list, mapping or scalar such as
// ['global', 'atlantic'] or [0, 1, 2].
func (c *Config) GetExpression(section, option string) (any, error) {
	s, err := c.Get(section, option)
	if err != nil {
		return nil, err
	}
	var out any
	if err := yaml.Unmarshal([]byte(s), &out); err != nil {
		return nil, diagerr.Config(eris.Wrapf(err, "config: [%s] %s is not a literal expression", section, option))
	}
	return out, nil
}

// GetStrings decodes a literal list of strings.
func (c *Config) GetStrings(section, option string) ([]string, error) {
	expr, err := c.GetExpression(section, option)
	if err != nil {
		return nil, err
	}
	if _, ok := expr.([]any); !ok {
		return nil, diagerr.Configf("config: [%s] %s is not a list", section, option)
	}
	out, err := cast.ToStringSliceE(expr)
	if err != nil {
		return nil, diagerr.Config(eris.Wrapf(err, "config: [%s] %s", section, option))
	}
	return out, nil
}

// GetInts decodes a literal list of integers.
func (c *Config) GetInts(section, option string) ([]int, error) {
	expr, err := c.GetExpression(section, option)
	if err != nil {
		return nil, err
	}
	list, ok := expr.([]any)
	if !ok {
		return nil, diagerr.Configf("config: [%s] %s is not a list", section, option)
	}
	for _, item := range list {
		if _, isInt := item.(int); !isInt {
			return nil, diagerr.Configf("config: [%s] %s has non-integer element %v", section, option, item)
		}
	}
	out, err := cast.ToIntSliceE(list)
	if err != nil {
		return nil, diagerr.Config(eris.Wrapf(err, "config: [%s] %s", section, option))
	}
	return out, nil
}

// GetWithDefault returns the option, setting it to def first when absent.
func (c *Config) GetWithDefault(section, option, def string) string {
	if s, err := c.Get(section, option); err == nil {
		return s
	}
	c.Set(section, option, def)
	return def
}

// Set overrides an option.
func (c *Config) Set(section, option, value string) {
	c.v.Set(key(section, option), value)
}

// SetGenerate replaces [output] generate with a list literal of tokens.
func (c *Config) SetGenerate(tokens []string) {
	quoted := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, "'"+t+"'")
		}
	}
	c.Set("output", "generate", "["+strings.Join(quoted, ", ")+"]")
}

// ApplyTimeDefaults fills the climatology and time-series date windows from
// the [time] year options without replacing explicit dates.
func (c *Config) ApplyTimeDefaults() error {
	for _, prefix := range []string{"climo", "timeseries"} {
		if !c.Has("time", prefix+"_yr1") || !c.Has("time", prefix+"_yr2") {
			continue
		}
		yr1, err := c.GetInt("time", prefix+"_yr1")
		if err != nil {
			return err
		}
		yr2, err := c.GetInt("time", prefix+"_yr2")
		if err != nil {
			return err
		}
		c.GetWithDefault("time", prefix+"_start_date", timekeeping.YearStart(yr1))
		c.GetWithDefault("time", prefix+"_end_date", timekeeping.YearEnd(yr2))
	}
	return nil
}


// PathExistence returns the path named by an option when it exists. A
// value equal to ignore (e.g. "none") marks an optional input: it returns
// false with no error. Any other missing path is a configuration error.
func (c *Config) PathExistence(section, option, ignore string) (string, bool, error) {
	p, err := c.Get(section, option)
	if err != nil {
		return "", false, err
	}
	if _, statErr := os.Stat(p); statErr == nil {
		return p, true, nil
	}
	if ignore != "" && p == ignore {
		return "", false, nil
	}
	return "", false, diagerr.Configf("config: path %s ([%s] %s) not found", p, section, option)
}

// MakeDirs creates path and its parents.
func MakeDirs(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return diagerr.Config(eris.Wrapf(err, "config: create %s", path))
	}
	return nil
}

// PlotsDir is [paths] plots_dir when set, else [output] basedir joined with
// plots_subdir.
func (c *Config) PlotsDir() (string, error) {
	if c.Has("paths", "plots_dir") {
		return c.Get("paths", "plots_dir")
	}
	base, err := c.Get("output", "basedir")
	if err != nil {
		return "", err
	}
	sub, err := c.Get("output", "plots_subdir")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, sub), nil
}

// RunLogPath is the run history database. Empty means "mpas-diag.db" under
// [output] basedir; "none" disables the history and returns "".
func (c *Config) RunLogPath() (string, error) {
	p, _ := c.Get("output", "run_log")
	switch {
	case strings.EqualFold(p, "none"):
		return "", nil
	case p != "":
		return p, nil
	}
	base, err := c.Get("output", "basedir")
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "mpas-diag.db"), nil
}

// Log returns the [log] section.
func (c *Config) Log() LogConfig {
	var lc LogConfig
	_ = c.v.UnmarshalKey("log", &lc)
	if lc.Level == "" {
		lc.Level = c.v.GetString("log.level")
	}
	if lc.Format == "" {
		lc.Format = c.v.GetString("log.format")
	}
	return lc
}

// Server returns the [server] section.
func (c *Config) Server() ServerConfig {
	return ServerConfig{Port: c.v.GetInt("server.port")}
}

// Plot returns the [plot] section.
func (c *Config) Plot() (PlotConfig, error) {
	var pc PlotConfig
	var err error
	if pc.DisplayToScreen, err = c.GetBool("plot", "displayToScreen"); err != nil {
		return pc, err
	}
	for _, f := range []struct {
		option string
		dst    *float64
	}{
		{"width", &pc.Width},
		{"height", &pc.Height},
		{"title_font_size", &pc.TitleFontSize},
		{"axis_font_size", &pc.AxisFontSize},
	} {
		if *f.dst, err = c.GetFloat("plot", f.option); err != nil {
			return pc, err
		}
	}
	return pc, nil
}

// Validate checks the options a command needs before it starts.
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(section, option string) {
		if !c.Has(section, option) {
			errs = append(errs, "["+section+"] "+option+" is required")
		}
	}

	switch mode {
	case "run":
		require("case", "casename")
		require("input", "basedir")
		if !c.Has("paths", "plots_dir") {
			require("output", "basedir")
		}
		if _, err := c.GetBool("execute", "continue_on_error"); err != nil {
			errs = append(errs, "[execute] continue_on_error must be a boolean")
		}
	case "runs":
		if _, err := c.RunLogPath(); err != nil {
			errs = append(errs, "[output] basedir or run_log is required")
		}
	case "serve":
		if c.Server().Port <= 0 {
			errs = append(errs, "[server] port must be > 0")
		}
		if _, err := c.PlotsDir(); err != nil {
			errs = append(errs, "[output] basedir or [paths] plots_dir is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return diagerr.Configf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LogSummary logs the loaded files, and every effective option at debug
// level.
func (c *Config) LogSummary() {
	keys := c.v.AllKeys()
	sort.Strings(keys)
	zap.L().Info("loaded configuration",
		zap.String("component", "config"),
		zap.Strings("files", c.files),
		zap.Int("options", len(keys)),
	)
	for _, k := range keys {
		zap.L().Debug("config option", zap.String("component", "config"), zap.String("key", k), zap.String("value", c.v.GetString(k)))
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
