package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type WorkerConfig struct {
	Host    string `mapstructure:"host"`
	TTSPort int    `mapstructure:"tts_port"`
	STTPort int    `mapstructure:"stt_port"`
	LLMPort int    `mapstructure:"llm_port"`
	// Worker launch commands, run from the working directory.
	TTSCommand string `mapstructure:"tts_command"`
	STTCommand string `mapstructure:"stt_command"`
	LLMCommand string `mapstructure:"llm_command"`
	// Embedding worker used by the --index subtool only.
	EmbedURL string `mapstructure:"embed_url"`
}

func (w WorkerConfig) TTSURL() string { return fmt.Sprintf("http://%s:%d", w.Host, w.TTSPort) }
func (w WorkerConfig) STTURL() string { return fmt.Sprintf("http://%s:%d", w.Host, w.STTPort) }
func (w WorkerConfig) LLMURL() string { return fmt.Sprintf("http://%s:%d", w.Host, w.LLMPort) }

type AudioConfig struct {
	// Rolling noise-floor window in frames and its threshold multiplier.
	NoiseWindow     int     `mapstructure:"noise_window"`
	NoiseMultiplier float64 `mapstructure:"noise_multiplier"`
	// Trailing-silence windows in milliseconds.
	CaptureSilenceMs  int `mapstructure:"capture_silence_ms"`
	FollowupSilenceMs int `mapstructure:"followup_silence_ms"`
}

func (a AudioConfig) CaptureSilence() time.Duration {
	return time.Duration(a.CaptureSilenceMs) * time.Millisecond
}

func (a AudioConfig) FollowupSilence() time.Duration {
	return time.Duration(a.FollowupSilenceMs) * time.Millisecond
}

type WakeConfig struct {
	ModelPaths []string `mapstructure:"model_paths"`
	// Optional override for the onnxruntime shared library location.
	OnnxLibrary string `mapstructure:"onnx_library"`
}

type BridgeConfig struct {
	MinChunkSize     int  `mapstructure:"min_chunk_size"`
	SentenceBoundary bool `mapstructure:"sentence_boundary"`
}

type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type Settings struct {
	Workers   WorkerConfig    `mapstructure:"workers"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Wake      WakeConfig      `mapstructure:"wake"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Env       string          `mapstructure:"env"`
	Debug     bool            `mapstructure:"debug"`
	LogDir    string          `mapstructure:"log_dir"`
	ConfigDir string          `mapstructure:"config_dir"`
}

// Load reads config_<env>.yaml from the working directory. Every key has a
// hard default, so a missing config file yields a fully usable Settings.
func Load() (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config_" + genEnv())
	v.AddConfigPath(".")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workers.host", "127.0.0.1")
	v.SetDefault("workers.tts_port", 8001)
	v.SetDefault("workers.stt_port", 8002)
	v.SetDefault("workers.llm_port", 8003)
	v.SetDefault("workers.tts_command", "python3 -m workers.tts_server --port 8001")
	v.SetDefault("workers.stt_command", "python3 -m workers.stt_server --port 8002")
	v.SetDefault("workers.llm_command", "python3 -m workers.llm_server --port 8003")
	v.SetDefault("workers.embed_url", "http://127.0.0.1:8080")

	v.SetDefault("audio.noise_window", 100)
	v.SetDefault("audio.noise_multiplier", 2.0)
	v.SetDefault("audio.capture_silence_ms", 3000)
	v.SetDefault("audio.followup_silence_ms", 4000)

	v.SetDefault("wake.model_paths", []string{"models/alexa_v0.1.onnx"})

	v.SetDefault("bridge.min_chunk_size", 80)
	v.SetDefault("bridge.sentence_boundary", true)

	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.addr", "127.0.0.1:8765")

	v.SetDefault("debug", false)
	v.SetDefault("log_dir", "logs")
	v.SetDefault("config_dir", "config")
}

func genEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
