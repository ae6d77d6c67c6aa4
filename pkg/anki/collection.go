package anki

import "context"

// Collection はホストアプリケーションのノートとメディアの保存先です。
type Collection interface {
	GetNote(ctx context.Context, id NoteID) (*Note, error)
	// UpdateNote はノートを即座に永続化します。
	UpdateNote(ctx context.Context, note *Note) error
	// MediaDir は音声ファイルを書き込むディレクトリです。
	MediaDir() string
	// Refresh は変更後にキャッシュされた表示を更新させます。
	Refresh(ctx context.Context) error
}
