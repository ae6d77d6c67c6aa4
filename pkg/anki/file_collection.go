package anki

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoteNotFound は指定したIDのノートが存在しないことを示します。
type ErrNoteNotFound struct {
	ID NoteID
}

func (e *ErrNoteNotFound) Error() string {
	return fmt.Sprintf("ID %d のノートが見つかりません", e.ID)
}

// collectionFile はJSONファイルの形式です。
type collectionFile struct {
	Notes []*Note `json:"notes"`
}

// FileCollection はJSONファイルに保存されたノートとメディアディレクトリによる Collection の実装です。
// ホストアプリケーションなしでCLIから生成を行うために使います。
type FileCollection struct {
	filename string
	mediaDir string

	mutex sync.RWMutex
	notes []*Note
	index map[NoteID]int
}

// OpenFileCollection はファイルを読み込みます。mediaDir が空ならファイルと同じ階層の collection.media を使います。
func OpenFileCollection(filename, mediaDir string) (*FileCollection, error) {
	if mediaDir == "" {
		mediaDir = filepath.Join(filepath.Dir(filename), "collection.media")
	}
	c := &FileCollection{filename: filename, mediaDir: mediaDir}
	if err := c.load(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("メディアディレクトリの作成に失敗しました (%s): %w", mediaDir, err)
	}
	return c, nil
}

func (c *FileCollection) load() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	data, err := os.ReadFile(c.filename)
	if err != nil {
		return fmt.Errorf("コレクションの読み込みに失敗しました (%s): %w", c.filename, err)
	}

	var file collectionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("コレクションのJSONが不正です (%s): %w", c.filename, err)
	}

	c.notes = file.Notes
	c.index = make(map[NoteID]int, len(file.Notes))
	for i, n := range file.Notes {
		c.index[n.ID] = i
	}
	return nil
}

// flush はコレクション全体をファイルに書き込みます。呼び出し側でロックを保持していること。
func (c *FileCollection) flush() error {
	data, err := json.MarshalIndent(collectionFile{Notes: c.notes}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.filename, data, 0644)
}

// NoteIDs は全ノートのIDをファイル内の順序で返します。
func (c *FileCollection) NoteIDs() []NoteID {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	ids := make([]NoteID, len(c.notes))
	for i, n := range c.notes {
		ids[i] = n.ID
	}
	return ids
}

func (c *FileCollection) GetNote(ctx context.Context, id NoteID) (*Note, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return nil, &ErrNoteNotFound{ID: id}
	}
	return c.notes[i].clone(), nil
}

func (c *FileCollection) UpdateNote(ctx context.Context, note *Note) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	i, ok := c.index[note.ID]
	if !ok {
		return &ErrNoteNotFound{ID: note.ID}
	}
	c.notes[i] = note.clone()
	return c.flush()
}

func (c *FileCollection) MediaDir() string {
	return c.mediaDir
}

// Refresh はファイルを読み直し、他のプロセスからの変更も含めた最新の状態にします。
func (c *FileCollection) Refresh(ctx context.Context) error {
	if err := c.load(); err != nil {
		return err
	}
	slog.DebugContext(ctx, "コレクションを再読み込みしました", "file", c.filename, "notes", len(c.NoteIDs()))
	return nil
}
