package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store は設定ファイルの唯一の読み書き窓口です。書き込みは常にオブジェクト全体を上書きします。
type Store struct {
	filename string
	mutex    sync.Mutex
}

func NewStore(filename string) *Store {
	return &Store{filename: filename}
}

// Path は設定ファイルのパスです。
func (s *Store) Path() string { return s.filename }

// Load は設定を読み込みます。ファイルがなければ既定の設定を返します。
func (s *Store) Load() (*Config, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.filename)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("設定ファイルがないため既定値を使用します", "file", s.filename)
		return NewConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました (%s): %w", s.filename, err)
	}

	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのJSONが不正です (%s): %w", s.filename, err)
	}
	cfg.EnsureDefault()
	return cfg, nil
}

// Save は設定全体を一時ファイルに書き込み、既存のファイルと置き換えます。
func (s *Store) Save(cfg *Config) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("設定のシリアライズに失敗しました: %w", err)
	}

	dir := filepath.Dir(s.filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("設定ディレクトリの作成に失敗しました (%s): %w", dir, err)
	}

	tmp := s.filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("設定ファイルの書き込みに失敗しました (%s): %w", tmp, err)
	}
	if err := os.Rename(tmp, s.filename); err != nil {
		return fmt.Errorf("設定ファイルの置き換えに失敗しました (%s): %w", s.filename, err)
	}
	return nil
}
