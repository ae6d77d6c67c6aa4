// Package preset は名前付きの設定 (プリセット) の保存・名前変更・削除・読み込みを行います。
package preset

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Toocanzs/anki-voicevox/pkg/config"
)

// NoSelectionLabel は一覧の先頭に置かれる選択不可の項目です。名前は空文字です。
const NoSelectionLabel = "---"

var (
	ErrReservedName = errors.New("'Default' プリセットは上書き・名前変更・削除できません")
	ErrEmptyName    = errors.New("プリセット名が空です")
	ErrNoSelection  = errors.New("プリセットが選択されていません")
	ErrCancelled    = errors.New("操作はキャンセルされました")
	ErrUnchanged    = errors.New("プリセット名は変更されていません")
)

// ErrExists は同名のプリセットが既にあることを示します。
type ErrExists struct{ Name string }

func (e *ErrExists) Error() string {
	return fmt.Sprintf("'%s' という名前のプリセットは既に存在します", e.Name)
}

// ErrNotFound はプリセットが見つからないことを示します。
type ErrNotFound struct{ Name string }

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("プリセット '%s' が見つかりません", e.Name)
}

// Confirmer はユーザーに確認を求め、承認されたら true を返します。
type Confirmer func(prompt string) bool

// Entry は一覧の1項目です。
type Entry struct {
	Label      string
	Name       string
	Selectable bool
}

// Manager はメモリ上の設定に対してプリセットを操作します。永続化は呼び出し側が config.Store.Save で行います。
type Manager struct {
	cfg     *config.Config
	confirm Confirmer
}

// NewManager は Manager を生成します。confirm が nil なら確認は常に拒否されます。
func NewManager(cfg *config.Config, confirm Confirmer) *Manager {
	if confirm == nil {
		confirm = func(string) bool { return false }
	}
	cfg.EnsureDefault()
	return &Manager{cfg: cfg, confirm: confirm}
}

// List は "---"、Default、その他の名前 (大文字小文字を無視した昇順) の順に返します。
func (m *Manager) List() []Entry {
	names := make([]string, 0, len(m.cfg.Presets))
	for name := range m.cfg.Presets {
		if name != config.DefaultPresetName {
			names = append(names, name)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li == lj {
			return names[i] < names[j]
		}
		return li < lj
	})

	entries := make([]Entry, 0, len(names)+2)
	entries = append(entries, Entry{Label: NoSelectionLabel})
	entries = append(entries, Entry{Label: config.DefaultPresetName, Name: config.DefaultPresetName, Selectable: true})
	for _, name := range names {
		entries = append(entries, Entry{Label: name, Name: name, Selectable: true})
	}
	return entries
}

// Save は現在の設定を name で保存します。既存の名前は確認の上で上書きします。
func (m *Manager) Save(name string, settings config.Settings) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if name == config.DefaultPresetName {
		return ErrReservedName
	}
	if _, exists := m.cfg.Presets[name]; exists {
		if !m.confirm(fmt.Sprintf("'%s' という名前のプリセットは既に存在します。上書きしますか？", name)) {
			return ErrCancelled
		}
	}

	m.cfg.Presets[name] = settings.Bundle()
	m.cfg.LastPreset = name
	return nil
}

// Rename はプリセットの名前を変更し、値はそのまま保持します。
func (m *Manager) Rename(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	switch {
	case oldName == "":
		return ErrNoSelection
	case oldName == config.DefaultPresetName, newName == config.DefaultPresetName:
		return ErrReservedName
	case newName == "":
		return ErrEmptyName
	case newName == oldName:
		return ErrUnchanged
	}

	bundle, ok := m.cfg.Presets[oldName]
	if !ok {
		return &ErrNotFound{Name: oldName}
	}
	if _, exists := m.cfg.Presets[newName]; exists {
		return &ErrExists{Name: newName}
	}

	delete(m.cfg.Presets, oldName)
	m.cfg.Presets[newName] = bundle
	if m.cfg.LastPreset == oldName {
		m.cfg.LastPreset = newName
	}
	return nil
}

// Delete は確認の上でプリセットを削除します。
func (m *Manager) Delete(name string) error {
	if name == "" {
		return ErrNoSelection
	}
	if name == config.DefaultPresetName {
		return ErrReservedName
	}
	if _, ok := m.cfg.Presets[name]; !ok {
		return &ErrNotFound{Name: name}
	}
	if !m.confirm(fmt.Sprintf("プリセット '%s' を削除しますか？", name)) {
		return ErrCancelled
	}

	delete(m.cfg.Presets, name)
	if m.cfg.LastPreset == name {
		m.cfg.LastPreset = ""
	}
	return nil
}

// Load はプリセットを settings に適用し、最後に使ったプリセットとして記録します。
func (m *Manager) Load(name string, settings *config.Settings) error {
	if name == "" {
		return ErrNoSelection
	}
	bundle, ok := m.cfg.Presets[name]
	if !ok {
		return &ErrNotFound{Name: name}
	}
	if err := settings.Apply(bundle); err != nil {
		return fmt.Errorf("プリセット '%s' の適用に失敗しました: %w", name, err)
	}
	m.cfg.LastPreset = name
	return nil
}
