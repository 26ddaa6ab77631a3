package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	JWT       JWTConfig
	Zitadel   ZitadelConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	Billing   BillingConfig
	TTS       TTSConfig
	Audio     AudioConfig
	Retention RetentionConfig
	Worker    WorkerConfig
	Voice     VoiceUploadConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig selects the durable store. An empty URL falls back to the in-memory store.
type DatabaseConfig struct {
	URL      string
	MaxConns int32
	Migrate  bool
}

type StorageConfig struct {
	Backend         string // s3 | nats
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	UsePathStyle    bool
	NatsURL         string
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	JobsPerHour   int
	UploadPerHour int
}

type BillingConfig struct {
	Provider       string
	DemoDuration   int // seconds
	MaxTextChars   int
	PaidDurations  []int
	PackagePrices  map[int]int
	CurrencySymbol string
}

type TTSConfig struct {
	Provider string
	Timeout  time.Duration

	YandexAPIKey string
	YandexURL    string
	YandexVoice  string
	YandexLang   string
	YandexFormat string

	SaluteAPIKey string
	SaluteURL    string
	SaluteVoice  string
	SaluteLang   string

	EdgePath   string
	EspeakPath string
}

type AudioConfig struct {
	FFmpegPath     string
	FFprobePath    string
	Timeout        time.Duration
	SampleRate     int
	Bitrate        string
	LoudnessI      float64
	LoudnessLRA    float64
	TruePeak       float64
	MusicOffsetDB  float64
	MusicSource    string // generated | library
	WorkDir        string
	SilenceSeconds int
	MinDurationSec int
}

type RetentionConfig struct {
	Days     int
	Schedule string
}

type WorkerConfig struct {
	Concurrency int
	// Embedded runs the asynq server inside the API process.
	Embedded bool
}

type VoiceUploadConfig struct {
	MaxBytes       int64
	RequireConsent bool
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("DATABASE_URL")
	readSecret("S3_ACCESS_KEY")
	readSecret("S3_SECRET_KEY")
	readSecret("JWT_SECRET")
	readSecret("YANDEX_API_KEY")
	readSecret("SALUTE_API_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "APP_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.api_domain", "API_DOMAIN")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("database.max_conns", "DATABASE_MAX_CONNS")
	_ = v.BindEnv("database.migrate", "DATABASE_MIGRATE")
	_ = v.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("storage.region", "S3_REGION")
	_ = v.BindEnv("storage.access_key_id", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_access_key", "S3_SECRET_KEY")
	_ = v.BindEnv("storage.bucket_name", "S3_BUCKET")
	_ = v.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	_ = v.BindEnv("storage.use_path_style", "S3_USE_PATH_STYLE")
	_ = v.BindEnv("storage.nats_url", "NATS_URL")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = v.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = v.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = v.BindEnv("ratelimit.jobs_per_hour", "RATE_LIMIT_JOBS_PER_HOUR")
	_ = v.BindEnv("ratelimit.upload_per_hour", "RATE_LIMIT_UPLOAD_PER_HOUR")
	_ = v.BindEnv("billing.provider", "BILLING_PROVIDER")
	_ = v.BindEnv("billing.demo_duration", "BILLING_DEMO_DURATION")
	_ = v.BindEnv("billing.max_text_chars", "BILLING_MAX_TEXT_CHARS")
	_ = v.BindEnv("billing.packages", "BILLING_PACKAGES")
	_ = v.BindEnv("tts.provider", "TTS_PROVIDER")
	_ = v.BindEnv("tts.timeout", "TTS_TIMEOUT")
	_ = v.BindEnv("tts.yandex.api_key", "YANDEX_API_KEY")
	_ = v.BindEnv("tts.yandex.url", "YANDEX_TTS_URL")
	_ = v.BindEnv("tts.yandex.voice", "YANDEX_VOICE")
	_ = v.BindEnv("tts.yandex.lang", "YANDEX_LANG")
	_ = v.BindEnv("tts.yandex.format", "YANDEX_FORMAT")
	_ = v.BindEnv("tts.salute.api_key", "SALUTE_API_KEY")
	_ = v.BindEnv("tts.salute.url", "SALUTE_TTS_URL")
	_ = v.BindEnv("tts.salute.voice", "SALUTE_VOICE")
	_ = v.BindEnv("tts.salute.lang", "SALUTE_LANG")
	_ = v.BindEnv("tts.edge_path", "EDGE_TTS_PATH")
	_ = v.BindEnv("tts.espeak_path", "ESPEAK_PATH")
	_ = v.BindEnv("audio.ffmpeg_path", "FFMPEG_PATH")
	_ = v.BindEnv("audio.ffprobe_path", "FFPROBE_PATH")
	_ = v.BindEnv("audio.timeout", "AUDIO_TIMEOUT")
	_ = v.BindEnv("audio.music_source", "AUDIO_MUSIC_SOURCE")
	_ = v.BindEnv("audio.work_dir", "AUDIO_WORK_DIR")
	_ = v.BindEnv("retention.days", "VOICE_RETENTION_DAYS")
	_ = v.BindEnv("retention.schedule", "RETENTION_SCHEDULE")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = v.BindEnv("worker.embedded", "WORKER_EMBEDDED")
	_ = v.BindEnv("voice.require_consent", "REQUIRE_CONSENT")
	_ = v.BindEnv("voice.max_bytes", "VOICE_MAX_BYTES")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrate", true)
	v.SetDefault("storage.backend", "s3")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket_name", "affirmations")
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("storage.nats_url", "nats://localhost:4222")
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("gateway.enabled", false)
	v.SetDefault("ratelimit.jobs_per_hour", 20)
	v.SetDefault("ratelimit.upload_per_hour", 30)

	// Billing defaults
	v.SetDefault("billing.provider", "local")
	v.SetDefault("billing.demo_duration", 30)
	v.SetDefault("billing.max_text_chars", 24000)
	v.SetDefault("billing.packages", "120:190,180:290,240:390,300:450")

	// TTS defaults
	v.SetDefault("tts.provider", "edge")
	v.SetDefault("tts.timeout", "40s")
	v.SetDefault("tts.yandex.url", "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize")
	v.SetDefault("tts.yandex.voice", "filipp")
	v.SetDefault("tts.yandex.lang", "ru-RU")
	v.SetDefault("tts.yandex.format", "mp3")
	v.SetDefault("tts.salute.url", "https://smartspeech.sber.ru/rest/v1/text:synthesize")
	v.SetDefault("tts.salute.voice", "Nec_24000")
	v.SetDefault("tts.salute.lang", "ru-RU")
	v.SetDefault("tts.edge_path", "edge-tts")
	v.SetDefault("tts.espeak_path", "espeak-ng")

	// Audio defaults
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.ffprobe_path", "ffprobe")
	v.SetDefault("audio.timeout", "5m")
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.bitrate", "192k")
	v.SetDefault("audio.loudness_i", -16.0)
	v.SetDefault("audio.loudness_lra", 11.0)
	v.SetDefault("audio.true_peak", -1.5)
	v.SetDefault("audio.music_offset_db", -14.0)
	v.SetDefault("audio.music_source", "generated")
	v.SetDefault("audio.work_dir", "")
	v.SetDefault("audio.silence_seconds", 8)
	v.SetDefault("audio.min_duration_sec", 30)

	v.SetDefault("retention.days", 14)
	v.SetDefault("retention.schedule", "@daily")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.embedded", true)
	v.SetDefault("voice.require_consent", true)
	v.SetDefault("voice.max_bytes", 15*1024*1024)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	durations, prices := parsePackages(v.GetString("billing.packages"))

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			ApiDomain: v.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("database.url"),
			MaxConns: v.GetInt32("database.max_conns"),
			Migrate:  v.GetBool("database.migrate"),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(v.GetString("storage.backend")),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			BucketName:      v.GetString("storage.bucket_name"),
			PublicURL:       v.GetString("storage.public_url"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			NatsURL:         v.GetString("storage.nats_url"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour:   v.GetInt("ratelimit.jobs_per_hour"),
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
		},
		Billing: BillingConfig{
			Provider:      strings.ToLower(v.GetString("billing.provider")),
			DemoDuration:  v.GetInt("billing.demo_duration"),
			MaxTextChars:  v.GetInt("billing.max_text_chars"),
			PaidDurations: durations,
			PackagePrices: prices,
		},
		TTS: TTSConfig{
			Provider:     strings.ToLower(v.GetString("tts.provider")),
			Timeout:      v.GetDuration("tts.timeout"),
			YandexAPIKey: v.GetString("tts.yandex.api_key"),
			YandexURL:    v.GetString("tts.yandex.url"),
			YandexVoice:  v.GetString("tts.yandex.voice"),
			YandexLang:   v.GetString("tts.yandex.lang"),
			YandexFormat: v.GetString("tts.yandex.format"),
			SaluteAPIKey: v.GetString("tts.salute.api_key"),
			SaluteURL:    v.GetString("tts.salute.url"),
			SaluteVoice:  v.GetString("tts.salute.voice"),
			SaluteLang:   v.GetString("tts.salute.lang"),
			EdgePath:     v.GetString("tts.edge_path"),
			EspeakPath:   v.GetString("tts.espeak_path"),
		},
		Audio: AudioConfig{
			FFmpegPath:     v.GetString("audio.ffmpeg_path"),
			FFprobePath:    v.GetString("audio.ffprobe_path"),
			Timeout:        v.GetDuration("audio.timeout"),
			SampleRate:     v.GetInt("audio.sample_rate"),
			Bitrate:        v.GetString("audio.bitrate"),
			LoudnessI:      v.GetFloat64("audio.loudness_i"),
			LoudnessLRA:    v.GetFloat64("audio.loudness_lra"),
			TruePeak:       v.GetFloat64("audio.true_peak"),
			MusicOffsetDB:  v.GetFloat64("audio.music_offset_db"),
			MusicSource:    strings.ToLower(v.GetString("audio.music_source")),
			WorkDir:        v.GetString("audio.work_dir"),
			SilenceSeconds: v.GetInt("audio.silence_seconds"),
			MinDurationSec: v.GetInt("audio.min_duration_sec"),
		},
		Retention: RetentionConfig{
			Days:     max(1, v.GetInt("retention.days")),
			Schedule: v.GetString("retention.schedule"),
		},
		Worker: WorkerConfig{
			Concurrency: max(1, v.GetInt("worker.concurrency")),
			Embedded:    v.GetBool("worker.embedded"),
		},
		Voice: VoiceUploadConfig{
			MaxBytes:       v.GetInt64("voice.max_bytes"),
			RequireConsent: v.GetBool("voice.require_consent"),
		},
	}

	return cfg, nil
}

// parsePackages parses "120:190,180:290" into the ordered durations and their prices.
// Malformed entries are skipped.
func parsePackages(raw string) ([]int, map[int]int) {
	var durations []int
	prices := make(map[int]int)
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 {
			continue
		}
		duration, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || duration <= 0 {
			continue
		}
		price, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || price < 0 {
			continue
		}
		if _, seen := prices[duration]; !seen {
			durations = append(durations, duration)
		}
		prices[duration] = price
	}
	return durations, prices
}

// IsDevelopment reports whether the service runs in a local development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Env, "development") || strings.EqualFold(c.Server.Env, "local")
}
