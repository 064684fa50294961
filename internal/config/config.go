package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Hardware backends.
const (
	BackendPeriph = "periph"
	BackendSim    = "sim"
)

// Network stations.
const (
	StationNMCLI  = "nmcli"
	StationStatic = "static"
)

// Light sensor variants.
const (
	LightNone    = "none"
	LightLDR     = "ldr"
	LightDigital = "digital"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	DeviceID string

	HWBackend     string
	CycleInterval time.Duration

	// GPIO pin names as understood by periph's gpioreg (e.g. "GPIO17").
	PumpPin  string
	LEDPin   string
	WaterPin string
	LightPin string

	I2CBus         string
	ADS1115Address uint16
	BME280Address  uint16
	SoilChannel    int
	LightChannel   int
	LightSensor    string

	DryThreshold  int
	DarkThreshold int
	NightStart    int
	NightEnd      int

	PumpHold        time.Duration
	AlarmBlinks     int
	AlarmInterval   time.Duration
	WarningBlinks   int
	WarningInterval time.Duration

	Station         string
	WiFiInterface   string
	NetworksFile    string
	Networks        []Network
	NetPollInterval time.Duration
	NetMaxPolls     int
	NTPServer       string
	UTCOffset       time.Duration

	TelemetryURL     string
	TelemetryAPIKey  string
	TelemetryTimeout time.Duration

	HTTPAddr         string
	SQLitePath       string
	SQLiteDSN        string
	JournalRetention time.Duration

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:   appEnv,
		LogLevel: level,
		DeviceID: stringEnv("DEVICE_ID", "garden"),

		HWBackend: stringEnv("HW_BACKEND", BackendPeriph),

		PumpPin:  stringEnv("PUMP_PIN", "GPIO17"),
		LEDPin:   stringEnv("LED_PIN", "GPIO27"),
		WaterPin: stringEnv("WATER_PIN", "GPIO22"),
		LightPin: stringEnv("LIGHT_PIN", "GPIO23"),
		I2CBus:   stringEnv("I2C_BUS", ""),

		LightSensor: strings.ToLower(stringEnv("LIGHT_SENSOR", LightNone)),

		Station:       strings.ToLower(stringEnv("NET_STATION", "")),
		WiFiInterface: stringEnv("WIFI_INTERFACE", ""),
		NetworksFile:  stringEnv("NETWORKS_FILE", ""),
		NTPServer:     stringEnv("NTP_SERVER", "pool.ntp.org"),

		TelemetryURL:    stringEnv("TELEMETRY_URL", "http://api.thingspeak.com/update"),
		TelemetryAPIKey: stringEnv("TELEMETRY_API_KEY", ""),

		HTTPAddr:   stringEnv("HTTP_ADDR", ":8080"),
		SQLitePath: stringEnv("SQLITE_PATH", "data/irrigation.db"),
		SQLiteDSN:  stringEnv("SQLITE_DSN", ""),

		MQTTBroker:   stringEnv("MQTT_BROKER", ""),
		MQTTClientID: stringEnv("MQTT_CLIENT_ID", "irrigation-node"),
		MQTTTopic:    stringEnv("MQTT_TOPIC", ""),

		InfluxURL:    stringEnv("INFLUX_URL", ""),
		InfluxToken:  stringEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    stringEnv("INFLUX_ORG", ""),
		InfluxBucket: stringEnv("INFLUX_BUCKET", "irrigation"),
	}

	switch cfg.HWBackend {
	case BackendPeriph, BackendSim:
	default:
		return Config{}, fmt.Errorf("invalid HW_BACKEND %q (allowed: periph, sim)", cfg.HWBackend)
	}
	switch cfg.LightSensor {
	case LightNone, LightLDR, LightDigital:
	default:
		return Config{}, fmt.Errorf("invalid LIGHT_SENSOR %q (allowed: none, ldr, digital)", cfg.LightSensor)
	}
	if cfg.Station == "" {
		// The simulator has no radio to associate.
		cfg.Station = StationNMCLI
		if cfg.HWBackend == BackendSim {
			cfg.Station = StationStatic
		}
	}
	switch cfg.Station {
	case StationNMCLI, StationStatic:
	default:
		return Config{}, fmt.Errorf("invalid NET_STATION %q (allowed: nmcli, static)", cfg.Station)
	}
	if cfg.MQTTTopic == "" {
		cfg.MQTTTopic = fmt.Sprintf("irrigation/%s/cycles", cfg.DeviceID)
	}

	if cfg.ADS1115Address, err = addressEnv("ADS1115_ADDRESS", "0x48"); err != nil {
		return Config{}, err
	}
	if cfg.BME280Address, err = addressEnv("BME280_ADDRESS", "0x76"); err != nil {
		return Config{}, err
	}

	ints := []struct {
		key      string
		def      int
		min, max int
		dst      *int
	}{
		{"SOIL_CHANNEL", 0, 0, 3, &cfg.SoilChannel},
		{"LIGHT_CHANNEL", 1, 0, 3, &cfg.LightChannel},
		{"DRY_THRESHOLD", 1200, 0, 1 << 16, &cfg.DryThreshold},
		{"DARK_THRESHOLD", 2800, 0, 1 << 16, &cfg.DarkThreshold},
		{"NIGHT_START", 18, 0, 23, &cfg.NightStart},
		{"NIGHT_END", 12, 0, 23, &cfg.NightEnd},
		{"ALARM_BLINKS", 10, 0, 1000, &cfg.AlarmBlinks},
		{"WARNING_BLINKS", 3, 0, 1000, &cfg.WarningBlinks},
		{"NET_MAX_POLLS", 20, 1, 10000, &cfg.NetMaxPolls},
		{"MQTT_PORT", 1883, 1, 65535, &cfg.MQTTPort},
	}
	for _, v := range ints {
		n, err := intEnv(v.key, v.def)
		if err != nil {
			return Config{}, err
		}
		if n < v.min || n > v.max {
			return Config{}, fmt.Errorf("%s must be between %d and %d, got %d", v.key, v.min, v.max, n)
		}
		*v.dst = n
	}

	durations := []struct {
		key      string
		def      string
		positive bool
		dst      *time.Duration
	}{
		{"CYCLE_INTERVAL", "15s", true, &cfg.CycleInterval},
		{"PUMP_HOLD", "10s", true, &cfg.PumpHold},
		{"ALARM_INTERVAL", "200ms", true, &cfg.AlarmInterval},
		{"WARNING_INTERVAL", "1s", true, &cfg.WarningInterval},
		{"NET_POLL_INTERVAL", "500ms", true, &cfg.NetPollInterval},
		{"UTC_OFFSET", "1h", false, &cfg.UTCOffset},
		{"TELEMETRY_TIMEOUT", "10s", true, &cfg.TelemetryTimeout},
		{"JOURNAL_RETENTION", "168h", true, &cfg.JournalRetention},
	}
	for _, v := range durations {
		d, err := durationEnv(v.key, v.def)
		if err != nil {
			return Config{}, err
		}
		if v.positive && d <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %v", v.key, d)
		}
		*v.dst = d
	}
	if cfg.UTCOffset < -14*time.Hour || cfg.UTCOffset > 14*time.Hour {
		return Config{}, fmt.Errorf("UTC_OFFSET out of range: %v", cfg.UTCOffset)
	}

	cfg.Networks, err = loadNetworks(cfg.NetworksFile)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Warnings lists settings that load fine but leave a feature degraded.
func (c Config) Warnings() []string {
	var w []string
	if c.TelemetryAPIKey == "" {
		w = append(w, "TELEMETRY_API_KEY is empty; dashboard uploads will be rejected")
	}
	return w
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func stringEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func durationEnv(key, def string) (time.Duration, error) {
	s := stringEnv(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func addressEnv(key, def string) (uint16, error) {
	s := stringEnv(key, def)
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return uint16(v), nil
}
