package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional configuration file. Flags
// win over file settings, which win over defaults. The result is not validated.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument %q", rest[0])
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(cfg.Tracing.Protocol))
	return &cfg, nil
}

func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"runs"}, &cfg.Runs},
		{[]string{"time", "report_interval", "report-interval"}, &cfg.ReportInterval},
		{[]string{"num_producer", "num-producer", "producers"}, &cfg.Producers},
		{[]string{"tuple_size", "tuple-size", "message_size"}, &cfg.MessageSize},
		{[]string{"queue_size", "queue-size", "queue_exponent"}, &cfg.QueueExponent},
		{[]string{"rate"}, &cfg.Rate},
	}
	for _, f := range ints {
		raw, ok := lookupSetting(settings, f.keys...)
		if !ok {
			continue
		}
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.keys[0], err)
		}
		*f.dst = val
	}

	if raw, ok := lookupSetting(settings, "mode"); ok {
		val, err := asMode(raw)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		cfg.Mode = val
	}

	if raw, ok := lookupSetting(settings, "join_timeout", "join-timeout", "jointimeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("join_timeout: %w", err)
		}
		cfg.JoinTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"compact"}, &cfg.Compact},
		{[]string{"json_output", "json-output", "jsonoutput"}, &cfg.JSONOutput},
		{[]string{"yaml_output", "yaml-output", "yamloutput"}, &cfg.YAMLOutput},
		{[]string{"dashboard"}, &cfg.Dashboard},
	}
	for _, f := range bools {
		raw, ok := lookupSetting(settings, f.keys...)
		if !ok {
			continue
		}
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.keys[0], err)
		}
		*f.dst = val
	}

	if raw, ok := lookupSetting(settings, "html_output", "html-output", "htmloutput"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("html_output: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "log_level", "log-level", "loglevel"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		cfg.LogLevel = val
	}
	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, raw interface{}) error {
	settings, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}

	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"endpoint"}, &t.Endpoint},
		{[]string{"protocol"}, &t.Protocol},
		{[]string{"service_name", "service-name", "servicename"}, &t.ServiceName},
	}
	for _, f := range strs {
		v, ok := lookupSetting(settings, f.keys...)
		if !ok {
			continue
		}
		val, err := asString(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.keys[0], err)
		}
		*f.dst = strings.TrimSpace(val)
	}

	if v, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(v)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if v, ok := lookupSetting(settings, "sample_rate", "sample-rate", "samplerate"); ok {
		val, err := asFloat64(v)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	return nil
}
