package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Heating.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Hass      HassConfig      `yaml:"hass"`
	Notify    NotifyConfig    `yaml:"notify"`
	Heating   HeatingConfig   `yaml:"heating"`
	Modbus    ModbusConfig    `yaml:"modbus"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	History   HistoryConfig   `yaml:"history"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HassConfig describes how the home automation host is reached over MQTT.
type HassConfig struct {
	// StatestreamPrefix is the base topic of the host's state stream
	// (domain/object_id/state and domain/object_id/<attribute>).
	StatestreamPrefix string `yaml:"statestream_prefix"`

	// CommandPrefix is the base topic for commands, events and requests
	// exchanged with the host.
	CommandPrefix string `yaml:"command_prefix"`

	// RequestTimeout bounds schedule rule requests, in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// NotifyConfig contains push notification settings.
type NotifyConfig struct {
	Target        string `yaml:"target"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	Burst         int    `yaml:"burst"`
}

// HeatingConfig contains zone definitions and supply arbitration settings.
type HeatingConfig struct {
	Zones          []ZoneConfig `yaml:"zones"`
	OutdoorSensors []string     `yaml:"outdoor_sensors"`

	Defaults HeatingDefaults `yaml:"defaults"`

	// FlowRoundingStep is the granularity of the flow setpoint (0.5 or 1.0).
	FlowRoundingStep float64 `yaml:"flow_rounding_step"`

	// PartyValveThreshold is the valve opening (percent) below which party
	// mode ends automatically.
	PartyValveThreshold float64 `yaml:"party_valve_threshold"`

	Debounce DebounceConfig `yaml:"debounce"`

	// StartupRetryInterval is the health-check retry interval in seconds.
	StartupRetryInterval int `yaml:"startup_retry_interval"`

	// FirstEvaluationDelay postpones the first zone evaluation, in seconds.
	FirstEvaluationDelay int `yaml:"first_evaluation_delay"`
}

// ZoneConfig defines a single heated room.
type ZoneConfig struct {
	Location    string       `yaml:"location"`
	TempSensor  string       `yaml:"temp_sensor"`
	ValveSensor string       `yaml:"valve_sensor"`
	Solar       *SolarConfig `yaml:"solar,omitempty"`
}

// SolarConfig enables sun compensation for a zone.
type SolarConfig struct {
	Sensor         string  `yaml:"sensor"`
	ActivationTemp float64 `yaml:"activation_temp"`
	PeakTemp       float64 `yaml:"peak_temp"`
}

// HeatingDefaults are used whenever a tunable helper entity is missing or invalid.
type HeatingDefaults struct {
	BaseTemp        float64 `yaml:"base_temp"`
	HeatTemp        float64 `yaml:"heat_temp"`
	OffTemp         float64 `yaml:"off_temp"`
	Delta           float64 `yaml:"delta"`
	Margin          float64 `yaml:"margin"`
	BoostFactor     float64 `yaml:"boost_factor"`
	BoostThreshold  float64 `yaml:"boost_threshold"`
	BaselineZeroDeg float64 `yaml:"baseline_0_deg"`
	BaselineAdjust  float64 `yaml:"baseline_adjustment"`
	MaxFlowTemp     float64 `yaml:"max_flow_temp"`
	ClaimDuration   float64 `yaml:"claim_duration"`
	MultiRoomOffset float64 `yaml:"multi_room_offset"`
}

// DebounceConfig contains debounce windows in milliseconds.
type DebounceConfig struct {
	Supply    int `yaml:"supply"`
	Schedule  int `yaml:"schedule"`
	Attribute int `yaml:"attribute"`
}

// ModbusConfig contains the hardware bridge entities used by the keep-alive.
type ModbusConfig struct {
	Enabled             bool   `yaml:"enabled"`
	FlowEntity          string `yaml:"flow_entity"`
	PumpEnableEntity    string `yaml:"pump_enable_entity"`
	PumpEnableOption    string `yaml:"pump_enable_option"`
	OperatingModeEntity string `yaml:"operating_mode_entity"`
	AutomaticOption     string `yaml:"automatic_option"`
	KeepAliveInterval   int    `yaml:"keepalive_interval"`
	IdleGrace           int    `yaml:"idle_grace"`
	LinkStatusSensor    string `yaml:"link_status_sensor"`
}

// HeartbeatConfig contains the liveness pulse settings.
type HeartbeatConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Entity   string `yaml:"entity"`
	Interval int    `yaml:"interval"`
}

// HistoryConfig contains supply history retention settings.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HEATING_SECTION_KEY
// For example: HEATING_DATABASE_PATH, HEATING_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic Heating",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/heating.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-heating",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Hass: HassConfig{
			StatestreamPrefix: "homeassistant/statestream",
			CommandPrefix:     "graylogic/heating",
			RequestTimeout:    10,
		},
		Notify: NotifyConfig{
			Target:        "telegram",
			RatePerMinute: 6,
			Burst:         3,
		},
		Heating: HeatingConfig{
			OutdoorSensors: []string{
				"sensor.dallas_outdoor_temp",
				"sensor.outdoor_temp",
				"sensor.froeling_outside_temperature",
			},
			Defaults: HeatingDefaults{
				BaseTemp:        5.0,
				HeatTemp:        21.0,
				OffTemp:         5.0,
				Delta:           2.0,
				Margin:          0.5,
				BoostFactor:     1.0,
				BoostThreshold:  4.0,
				BaselineZeroDeg: 36.0,
				BaselineAdjust:  0.4,
				MaxFlowTemp:     45.0,
				ClaimDuration:   10.0,
				MultiRoomOffset: 0.0,
			},
			FlowRoundingStep:    0.5,
			PartyValveThreshold: 20.0,
			Debounce: DebounceConfig{
				Supply:    3000,
				Schedule:  3000,
				Attribute: 1000,
			},
			StartupRetryInterval: 30,
			FirstEvaluationDelay: 5,
		},
		Modbus: ModbusConfig{
			FlowEntity:          "number.froeling_hk2_flow_temp",
			PumpEnableEntity:    "select.froeling_hk2_pump_enable",
			PumpEnableOption:    "ein",
			OperatingModeEntity: "select.froeling_main_mode",
			AutomaticOption:     "automatik",
			KeepAliveInterval:   110,
			IdleGrace:           130,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Entity:   "input_boolean.graylogic_heating_running",
			Interval: 60,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HEATING_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("HEATING_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HEATING_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HEATING_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HEATING_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HEATING_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HEATING_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HEATING_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Site
	if v := os.Getenv("HEATING_SITE_TIMEZONE"); v != "" {
		cfg.Site.Timezone = v
	}

	// Notifications
	if v := os.Getenv("HEATING_NOTIFY_TARGET"); v != "" {
		cfg.Notify.Target = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}

	if c.History.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when history is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Hass.StatestreamPrefix == "" {
		errs = append(errs, "hass.statestream_prefix is required")
	}
	if c.Hass.CommandPrefix == "" {
		errs = append(errs, "hass.command_prefix is required")
	}

	errs = append(errs, c.Heating.validate()...)

	if c.Modbus.Enabled {
		if c.Modbus.FlowEntity == "" || c.Modbus.PumpEnableEntity == "" || c.Modbus.OperatingModeEntity == "" {
			errs = append(errs, "modbus.flow_entity, pump_enable_entity and operating_mode_entity are required when modbus is enabled")
		}
		if c.Modbus.KeepAliveInterval <= 0 {
			errs = append(errs, "modbus.keepalive_interval must be positive")
		}
	}

	if c.Heartbeat.Enabled && c.Heartbeat.Entity == "" {
		errs = append(errs, "heartbeat.entity is required when heartbeat is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (h *HeatingConfig) validate() []string {
	var errs []string

	if len(h.Zones) == 0 {
		errs = append(errs, "heating.zones must define at least one zone")
	}
	seen := make(map[string]bool, len(h.Zones))
	for i, z := range h.Zones {
		if z.Location == "" {
			errs = append(errs, fmt.Sprintf("heating.zones[%d].location is required", i))
			continue
		}
		if seen[z.Location] {
			errs = append(errs, fmt.Sprintf("heating.zones[%d].location %q is duplicated", i, z.Location))
		}
		seen[z.Location] = true
		if z.TempSensor == "" {
			errs = append(errs, fmt.Sprintf("heating.zones[%d].temp_sensor is required", i))
		}
		if z.Solar != nil && z.Solar.Sensor == "" {
			errs = append(errs, fmt.Sprintf("heating.zones[%d].solar.sensor is required when solar is set", i))
		}
	}

	if len(h.OutdoorSensors) == 0 {
		errs = append(errs, "heating.outdoor_sensors must list at least one sensor")
	}
	if h.FlowRoundingStep <= 0 {
		errs = append(errs, "heating.flow_rounding_step must be positive")
	}
	if h.Defaults.MaxFlowTemp <= 0 {
		errs = append(errs, "heating.defaults.max_flow_temp must be positive")
	}
	if h.StartupRetryInterval <= 0 {
		errs = append(errs, "heating.startup_retry_interval must be positive")
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Location returns the site timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetRequestTimeout returns the host request timeout as a Duration.
func (h HassConfig) GetRequestTimeout() time.Duration {
	return time.Duration(h.RequestTimeout) * time.Second
}

// GetStartupRetryInterval returns the health-check retry interval.
func (h HeatingConfig) GetStartupRetryInterval() time.Duration {
	return time.Duration(h.StartupRetryInterval) * time.Second
}

// GetFirstEvaluationDelay returns the delay before zones first evaluate.
func (h HeatingConfig) GetFirstEvaluationDelay() time.Duration {
	return time.Duration(h.FirstEvaluationDelay) * time.Second
}

// GetKeepAliveInterval returns the keep-alive heartbeat interval.
func (m ModbusConfig) GetKeepAliveInterval() time.Duration {
	return time.Duration(m.KeepAliveInterval) * time.Second
}

// GetIdleGrace returns how long after a write the operating mode is left alone.
func (m ModbusConfig) GetIdleGrace() time.Duration {
	return time.Duration(m.IdleGrace) * time.Second
}

// GetInterval returns the heartbeat pulse interval.
func (h HeartbeatConfig) GetInterval() time.Duration {
	return time.Duration(h.Interval) * time.Second
}

// Millis converts a debounce window to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
