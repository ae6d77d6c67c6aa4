package audio

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// SplitArchive は /multi_synthesis が返すZIPアーカイブを展開し、
// エントリ名の序数 (0001.wav → 0) の順にWAVデータを並べて返します。
// エントリの並び順には依存しません。件数が expected と一致しない場合はエラーです。
func SplitArchive(zipBytes []byte, expected int) ([][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("アーカイブの読み込みに失敗しました: %w", err)
	}

	if len(reader.File) != expected {
		return nil, &ErrArchiveMismatch{Expected: expected, Actual: len(reader.File), Details: "エントリ数が異なります"}
	}

	clips := make([][]byte, expected)
	for _, f := range reader.File {
		ordinal, err := parseOrdinal(f.Name)
		if err != nil {
			return nil, &ErrArchiveMismatch{Expected: expected, Actual: len(reader.File), Details: err.Error()}
		}
		if ordinal < 1 || ordinal > expected {
			return nil, &ErrArchiveMismatch{Expected: expected, Actual: len(reader.File), Details: fmt.Sprintf("序数 %d は範囲外です", ordinal)}
		}
		if clips[ordinal-1] != nil {
			return nil, &ErrArchiveMismatch{Expected: expected, Actual: len(reader.File), Details: fmt.Sprintf("%s が重複しています", ClipName(ordinal))}
		}

		data, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("エントリ %s の読み込みに失敗しました: %w", f.Name, err)
		}
		if err := ValidateWAV(data, ordinal); err != nil {
			return nil, err
		}
		clips[ordinal-1] = data
	}

	return clips, nil
}

// ClipName は序数 (1始まり) からエントリ名を生成します。
func ClipName(ordinal int) string {
	return fmt.Sprintf(ClipNameFormat, ordinal)
}

func parseOrdinal(name string) (int, error) {
	base := path.Base(name)
	if !strings.HasSuffix(base, ClipExtension) {
		return 0, fmt.Errorf("想定外のエントリ名です: %s", name)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(base, ClipExtension))
	if err != nil {
		return 0, fmt.Errorf("エントリ名から序数を取得できません: %s", name)
	}
	return n, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ValidateWAV はデータが RIFF/WAVE ヘッダーを持つことを確認します。
func ValidateWAV(data []byte, index int) error {
	if len(data) < WavRiffHeaderSize {
		return &ErrInvalidWAVHeader{
			Index:   index,
			Details: fmt.Sprintf("WAVファイルサイズが短すぎます (RIFFヘッダー不足: %dバイト)", len(data)),
		}
	}
	if string(data[:RiffChunkIDSize]) != "RIFF" {
		return &ErrInvalidWAVHeader{Index: index, Details: "'RIFF' 識別子がありません"}
	}
	waveStart := RiffChunkIDSize + RiffChunkSizeSize
	if string(data[waveStart:waveStart+WaveIDSize]) != "WAVE" {
		return &ErrInvalidWAVHeader{Index: index, Details: "'WAVE' 識別子がありません"}
	}
	return nil
}
