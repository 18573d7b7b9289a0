package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/config"
)

// inputFingerprint identifies everything a scan report depends on apart from
// the sequence length: the language pair, both tokenizers and the corpus.
// Files are hashed by content. An empty result means the corpus cannot be
// identified (a remote or in-memory database) and reports must not be reused.
func inputFingerprint(cfg *config.Config) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "langs %s %s\n", cfg.Dataset.SrcLang, cfg.Dataset.TgtLang)

	for _, side := range []struct {
		name string
		tc   config.TokenizerConfig
	}{{"source", cfg.Tokenizers.Source}, {"target", cfg.Tokenizers.Target}} {
		fmt.Fprintf(h, "tokenizer %s %s\n", side.name, strings.ToLower(side.tc.Kind))
		if err := hashPath(h, side.tc.Path); err != nil {
			return "", fmt.Errorf("failed to fingerprint %s tokenizer: %w", side.name, err)
		}
	}

	kind := strings.ToLower(cfg.Corpus.Kind)
	fmt.Fprintf(h, "corpus %s\n", kind)
	switch kind {
	case "libsql":
		path, ok := localDBPath(cfg.Corpus.Path)
		if !ok {
			return "", nil
		}
		if err := hashPath(h, path); err != nil {
			return "", fmt.Errorf("failed to fingerprint corpus: %w", err)
		}
		// uncheckpointed writes live in the WAL
		if _, err := os.Stat(path + "-wal"); err == nil {
			if err := hashPath(h, path+"-wal"); err != nil {
				return "", fmt.Errorf("failed to fingerprint corpus: %w", err)
			}
		}
	default:
		if err := hashPath(h, cfg.Corpus.Path); err != nil {
			return "", fmt.Errorf("failed to fingerprint corpus: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashPath writes a file's size and content to h. Directories contribute
// their path, size and modification time.
func hashPath(h hash.Hash, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		fmt.Fprintf(h, "dir %s %d %d\n", path, info.Size(), info.ModTime().UnixNano())
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Fprintf(h, "file %d\n", info.Size())
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return nil
}

// localDBPath returns the file behind a libsql dsn, if it names one.
func localDBPath(dsn string) (string, bool) {
	path, isFile := strings.CutPrefix(dsn, "file:")
	if !isFile && strings.Contains(dsn, ":") {
		return "", false
	}
	path, _, _ = strings.Cut(path, "?")
	if path == "" || strings.Contains(path, ":memory:") || strings.HasPrefix(path, "//") {
		return "", false
	}
	return path, true
}
