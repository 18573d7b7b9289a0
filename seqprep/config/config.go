package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/bilingual-seqprep/seqprep"

	"github.com/spf13/viper"
)

// Config stores all configuration of the preparer.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Corpus     CorpusConfig     `mapstructure:"corpus"`
	Tokenizers TokenizersConfig `mapstructure:"tokenizers"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Store      StoreConfig      `mapstructure:"store"`
}

// DatasetConfig selects the language pair and the fixed sample length.
type DatasetConfig struct {
	SrcLang string `mapstructure:"srcLang"`
	TgtLang string `mapstructure:"tgtLang"`
	SeqLen  int    `mapstructure:"seqLen"`
}

// CorpusConfig locates the parallel corpus. Kind is "jsonl" or "libsql";
// for libsql Path is a DSN.
type CorpusConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
}

// TokenizerConfig locates one tokenizer; see tokenizer.Open for kinds.
type TokenizerConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
}

type TokenizersConfig struct {
	Source TokenizerConfig `mapstructure:"source"`
	Target TokenizerConfig `mapstructure:"target"`
}

// ScanConfig tunes the corpus length scan.
type ScanConfig struct {
	Workers int  `mapstructure:"workers"`
	Reuse   bool `mapstructure:"reuse"`
}

// StoreConfig locates the scan report database.
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

var (
	ErrInvalidSeqLen   = errors.New("dataset.seqLen must be positive")
	ErrInvalidLanguage = errors.New("dataset languages must be set and distinct")
)

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("dataset.srcLang", internal.DefaultSourceLanguage)
	v.SetDefault("dataset.tgtLang", internal.DefaultTargetLanguage)
	v.SetDefault("dataset.seqLen", internal.DefaultSeqLen)
	v.SetDefault("corpus.kind", internal.DefaultCorpusKind)
	v.SetDefault("corpus.path", "")
	v.SetDefault("tokenizers.source.kind", internal.DefaultTokenizerKind)
	v.SetDefault("tokenizers.source.path", "")
	v.SetDefault("tokenizers.target.kind", internal.DefaultTokenizerKind)
	v.SetDefault("tokenizers.target.path", "")
	v.SetDefault("scan.workers", 0)
	v.SetDefault("scan.reuse", true)
	v.SetDefault("store.dsn", internal.DefaultReportDBDSN)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.AutomaticEnv()                                   // e.g. SEQPREP_DATASET_SEQLEN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // dataset.seqLen -> DATASET_SEQLEN

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	AppConfig = cfg
	return &cfg, nil
}

// Validate checks the settings the dataset cannot work without.
func (c *Config) Validate() error {
	if c.Dataset.SeqLen <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSeqLen, c.Dataset.SeqLen)
	}
	src, tgt := strings.TrimSpace(c.Dataset.SrcLang), strings.TrimSpace(c.Dataset.TgtLang)
	if src == "" || tgt == "" || src == tgt {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidLanguage, c.Dataset.SrcLang, c.Dataset.TgtLang)
	}
	return nil
}
