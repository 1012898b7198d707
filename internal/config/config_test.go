package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChannelID = "2891234"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)

	assert.Equal(t, "./harareweather2.csv", cfg.WeatherCSV)
	assert.Equal(t, OracleGBT, cfg.OracleKind)
	assert.Equal(t, 100, cfg.GBTTrees)
	assert.Equal(t, 6, cfg.GBTMaxDepth)
	assert.InDelta(t, 0.1, cfg.GBTLearningRate, 1e-12)
	assert.Equal(t, uint64(42), cfg.TrainSeed)
	assert.True(t, cfg.TrainOnStart)

	assert.Equal(t, "Harare,Zimbabwe", cfg.Location)
	assert.InDelta(t, -17.8252, cfg.Latitude, 1e-9)
	assert.InDelta(t, 31.0335, cfg.Longitude, 1e-9)
	assert.Equal(t, "Africa/Harare", cfg.Timezone.String())

	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Empty(t, cfg.VisualCrossingKey)
	assert.Equal(t, 5*time.Minute, cfg.WeatherCacheTTL)
	assert.Equal(t, 64, cfg.WeatherCacheSize)
	assert.Equal(t, "https://api.thingspeak.com", cfg.ThingSpeakBaseURL)
	assert.Equal(t, SensorFallbackSimulated, cfg.SensorFallback)

	assert.Empty(t, cfg.PredictionDB)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.ThingSpeakEnabled())
	assert.Equal(t, "streetlight-predictions", cfg.KafkaPredictionTopic)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, "streetlight/default/override", cfg.MQTTOverrideTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "10")
	t.Setenv("BATCH_FLUSH_INTERVAL", "2s")
	t.Setenv("WEATHER_CSV", "/data/weather.csv")
	t.Setenv("ORACLE_KIND", "Linear")
	t.Setenv("GBT_TREES", "20")
	t.Setenv("GBT_MAX_DEPTH", "3")
	t.Setenv("GBT_LEARNING_RATE", "0.3")
	t.Setenv("TRAIN_SEED", "7")
	t.Setenv("LOCATION", "Bulawayo,Zimbabwe")
	t.Setenv("LOCATION_LAT", "-20.15")
	t.Setenv("LOCATION_LON", "28.58")
	t.Setenv("LOCATION_TIMEZONE", "UTC")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("VISUAL_CROSSING_API_KEY", "vc-key")
	t.Setenv("WEATHER_CACHE_TTL", "1m")
	t.Setenv("WEATHER_CACHE_SIZE", "8")
	t.Setenv("OPENWEATHER_API_KEY", "ow-key")
	t.Setenv("THINGSPEAK_CHANNEL_ID", testChannelID)
	t.Setenv("THINGSPEAK_READ_API_KEY", "read")
	t.Setenv("THINGSPEAK_WRITE_API_KEY", "write")
	t.Setenv("SENSOR_FALLBACK", "none")
	t.Setenv("PREDICTION_DB", "/tmp/predictions.db")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_PREDICTION_TOPIC", "custom-predictions")
	t.Setenv("MQTT_BROKER", "tcp://mqtt:1883")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "/data/weather.csv", cfg.WeatherCSV)
	assert.Equal(t, OracleLinear, cfg.OracleKind)
	assert.Equal(t, 20, cfg.GBTTrees)
	assert.Equal(t, 3, cfg.GBTMaxDepth)
	assert.InDelta(t, 0.3, cfg.GBTLearningRate, 1e-12)
	assert.Equal(t, uint64(7), cfg.TrainSeed)
	assert.Equal(t, "Bulawayo,Zimbabwe", cfg.Location)
	assert.InDelta(t, -20.15, cfg.Latitude, 1e-9)
	assert.InDelta(t, 28.58, cfg.Longitude, 1e-9)
	assert.Equal(t, time.UTC.String(), cfg.Timezone.String())
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "vc-key", cfg.VisualCrossingKey)
	assert.Equal(t, time.Minute, cfg.WeatherCacheTTL)
	assert.Equal(t, 8, cfg.WeatherCacheSize)
	assert.Equal(t, "ow-key", cfg.OpenWeatherKey)
	assert.Equal(t, testChannelID, cfg.ThingSpeakChannelID)
	assert.True(t, cfg.ThingSpeakEnabled())
	assert.Equal(t, "read", cfg.ThingSpeakReadKey)
	assert.Equal(t, "write", cfg.ThingSpeakWriteKey)
	assert.Equal(t, SensorFallbackNone, cfg.SensorFallback)
	assert.Equal(t, "/tmp/predictions.db", cfg.PredictionDB)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "custom-predictions", cfg.KafkaPredictionTopic)
	assert.Equal(t, "tcp://mqtt:1883", cfg.MQTTBroker)
	assert.Equal(t, "streetlight/"+testChannelID+"/override", cfg.MQTTOverrideTopic)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"BATCH_SIZE", "0"},
		{"BATCH_SIZE", "9999"},
		{"BATCH_FLUSH_INTERVAL", "soon"},
		{"GATEWAY_TIMEOUT", "bad"},
		{"GATEWAY_TIMEOUT", "0s"},
		{"WEATHER_CACHE_TTL", "-5m"},
		{"GBT_TREES", "0"},
		{"GBT_MAX_DEPTH", "deep"},
		{"GBT_LEARNING_RATE", "0"},
		{"GBT_LEARNING_RATE", "1.5"},
		{"TRAIN_SEED", "-1"},
		{"TRAIN_ON_START", "sometimes"},
		{"LOCATION_LAT", "north"},
		{"LOCATION_LON", "east"},
		{"LOCATION_TIMEZONE", "Mars/Olympus"},
		{"ORACLE_KIND", "forest"},
		{"SENSOR_FALLBACK", "random"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	t.Setenv("WEATHER_CACHE_SIZE", "-3")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.WeatherCacheSize)
}

func TestLoad_ExplicitOverrideTopic(t *testing.T) {
	t.Setenv("THINGSPEAK_CHANNEL_ID", testChannelID)
	t.Setenv("MQTT_OVERRIDE_TOPIC", "lamps/override")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "lamps/override", cfg.MQTTOverrideTopic)
}

func TestLoad_TrainOnFirstRequest(t *testing.T) {
	t.Setenv("TRAIN_ON_START", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.TrainOnStart)
}
