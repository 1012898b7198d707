package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // LOCATION_TIMEZONE must resolve on minimal images.

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Oracle kinds accepted by ORACLE_KIND.
const (
	OracleGBT    = "gbt"
	OracleLinear = "linear"
)

// Sensor fallback modes accepted by SENSOR_FALLBACK.
const (
	SensorFallbackSimulated = "simulated"
	SensorFallbackNone      = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Record publisher batching.
	BatchSize          int
	BatchFlushInterval time.Duration

	// Training.
	WeatherCSV      string
	OracleKind      string
	GBTTrees        int
	GBTMaxDepth     int
	GBTLearningRate float64
	TrainSeed       uint64
	// TrainOnStart fits the model at startup instead of on the first
	// prediction, so readiness does not wait for traffic.
	TrainOnStart    bool

	// Location of the streetlight.
	Location  string
	Latitude  float64
	Longitude float64
	Timezone  *time.Location

	// Upstream gateways.
	GatewayTimeout        time.Duration
	VisualCrossingKey     string
	VisualCrossingBaseURL string
	WeatherCacheTTL       time.Duration
	WeatherCacheSize      int
	OpenWeatherKey        string
	OpenWeatherBaseURL    string

	// ThingSpeak IoT channel.
	ThingSpeakChannelID string
	ThingSpeakReadKey   string
	ThingSpeakWriteKey  string
	ThingSpeakBaseURL   string
	SensorFallback      string

	// Prediction record sinks. Empty values disable the sink.
	PredictionDB         string
	KafkaBrokers         []string
	KafkaPredictionTopic string

	// MQTT override mirror. Empty broker disables it.
	MQTTBroker        string
	MQTTClientID      string
	MQTTUsername      string
	MQTTPassword      string
	MQTTOverrideTopic string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is read first; variables already
// set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	gatewayTimeout, err := parsePositiveDuration("GATEWAY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parsePositiveDuration("WEATHER_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}

	trees, err := parsePositiveInt("GBT_TREES", 100)
	if err != nil {
		return nil, err
	}

	depth, err := parsePositiveInt("GBT_MAX_DEPTH", 6)
	if err != nil {
		return nil, err
	}

	learningRate, err := parseFloat("GBT_LEARNING_RATE", 0.1)
	if err != nil {
		return nil, err
	}
	if learningRate <= 0 || learningRate > 1 {
		return nil, errors.New("invalid GBT_LEARNING_RATE: must be in (0, 1]")
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("TRAIN_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid TRAIN_SEED")
	}

	trainOnStart, err := strconv.ParseBool(sharedcfg.EnvOrDefault("TRAIN_ON_START", "true"))
	if err != nil {
		return nil, errors.New("invalid TRAIN_ON_START")
	}

	lat, err := parseFloat("LOCATION_LAT", -17.8252)
	if err != nil {
		return nil, err
	}

	lon, err := parseFloat("LOCATION_LON", 31.0335)
	if err != nil {
		return nil, err
	}

	tz, err := time.LoadLocation(sharedcfg.EnvOrDefault("LOCATION_TIMEZONE", "Africa/Harare"))
	if err != nil {
		return nil, errors.New("invalid LOCATION_TIMEZONE")
	}

	channelID := os.Getenv("THINGSPEAK_CHANNEL_ID")

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		WeatherCSV:      sharedcfg.EnvOrDefault("WEATHER_CSV", "./harareweather2.csv"),
		OracleKind:      strings.ToLower(sharedcfg.EnvOrDefault("ORACLE_KIND", OracleGBT)),
		GBTTrees:        trees,
		GBTMaxDepth:     depth,
		GBTLearningRate: learningRate,
		TrainSeed:       seed,
		TrainOnStart:    trainOnStart,

		Location:  sharedcfg.EnvOrDefault("LOCATION", "Harare,Zimbabwe"),
		Latitude:  lat,
		Longitude: lon,
		Timezone:  tz,

		GatewayTimeout:        gatewayTimeout,
		VisualCrossingKey:     os.Getenv("VISUAL_CROSSING_API_KEY"),
		VisualCrossingBaseURL: sharedcfg.EnvOrDefault("VISUAL_CROSSING_BASE_URL", "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"),
		WeatherCacheTTL:       cacheTTL,
		WeatherCacheSize:      parseCacheSize(),
		OpenWeatherKey:        os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL:    sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),

		ThingSpeakChannelID: channelID,
		ThingSpeakReadKey:   os.Getenv("THINGSPEAK_READ_API_KEY"),
		ThingSpeakWriteKey:  os.Getenv("THINGSPEAK_WRITE_API_KEY"),
		ThingSpeakBaseURL:   sharedcfg.EnvOrDefault("THINGSPEAK_BASE_URL", "https://api.thingspeak.com"),
		SensorFallback:      strings.ToLower(sharedcfg.EnvOrDefault("SENSOR_FALLBACK", SensorFallbackSimulated)),

		PredictionDB:         os.Getenv("PREDICTION_DB"),
		KafkaBrokers:         sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaPredictionTopic: sharedcfg.EnvOrDefault("KAFKA_PREDICTION_TOPIC", "streetlight-predictions"),

		MQTTBroker:        os.Getenv("MQTT_BROKER"),
		MQTTClientID:      sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "streetlight-predictor"),
		MQTTUsername:      os.Getenv("MQTT_USERNAME"),
		MQTTPassword:      os.Getenv("MQTT_PASSWORD"),
		MQTTOverrideTopic: sharedcfg.EnvOrDefault("MQTT_OVERRIDE_TOPIC", "streetlight/"+orDefault(channelID, "default")+"/override"),
	}

	if cfg.OracleKind != OracleGBT && cfg.OracleKind != OracleLinear {
		return nil, errors.New("invalid ORACLE_KIND: must be gbt or linear")
	}
	if cfg.SensorFallback != SensorFallbackSimulated && cfg.SensorFallback != SensorFallbackNone {
		return nil, errors.New("invalid SENSOR_FALLBACK: must be simulated or none")
	}
	if cfg.WeatherCSV == "" {
		return nil, errors.New("WEATHER_CSV is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaPredictionTopic == "" {
		return nil, errors.New("KAFKA_PREDICTION_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether prediction records are streamed to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ThingSpeakEnabled reports whether a ThingSpeak channel is configured.
func (c *Config) ThingSpeakEnabled() bool { return c.ThingSpeakChannelID != "" }

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("invalid " + key + ": must be a positive integer")
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return f, nil
}

func parseCacheSize() int {
	if s := os.Getenv("WEATHER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
