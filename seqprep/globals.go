package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName names the config directory and env prefix
	DefaultAppName        = "seqprep"
	DefaultEnvPrefix      = "SEQPREP"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultReportDBPath   = filepath.Join(DefaultConfigPath, "reports.db")
	DefaultReportDBDSN    = "file:" + DefaultReportDBPath
	DefaultCorpusKind     = "jsonl"
	DefaultTokenizerKind  = "wordpiece"
	DefaultSourceLanguage = "en"
	DefaultTargetLanguage = "it"

	// DefaultSeqLen is the fixed sample length used when none is configured
	DefaultSeqLen = 350
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
