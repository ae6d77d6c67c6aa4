package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Toocanzs/anki-voicevox/pkg/anki"
	"github.com/Toocanzs/anki-voicevox/pkg/config"
	"github.com/Toocanzs/anki-voicevox/pkg/filename"
	"github.com/Toocanzs/anki-voicevox/pkg/preset"
	"github.com/Toocanzs/anki-voicevox/pkg/transcode"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox"
	"github.com/Toocanzs/anki-voicevox/pkg/voicevox/speaker"
)

// ----------------------------------------------------------------------
// 共通ヘルパー
// ----------------------------------------------------------------------

func (a *app) sessionConfig() voicevox.SessionConfig {
	return voicevox.SessionConfig{
		APIURL:           a.env.APIURL,
		RequestTimeout:   a.env.RequestTimeout,
		SynthesisTimeout: a.env.SynthesisTimeout,
	}
}

// selectSpeaker は明示的に指定された話者・スタイルを厳密に探し、指定がなければ前回の選択を復元します。
func selectSpeaker(data *speaker.SpeakerData, s config.Settings, explicit bool) (speaker.Selection, error) {
	if explicit {
		sel, err := data.Find(s.SpeakerName, s.StyleName)
		var notFound *speaker.ErrNotFound
		if errors.As(err, &notFound) && notFound.Style == "" {
			return sel, fmt.Errorf("%w (利用可能な話者: %s)", err, strings.Join(data.Names(), ", "))
		}
		return sel, err
	}
	return data.Select(s.SpeakerName, s.StyleName)
}

// stdinConfirmer は標準入力で y/N の確認を行います。assumeYes なら常に承認します。
func stdinConfirmer(assumeYes bool) preset.Confirmer {
	return func(prompt string) bool {
		if assumeYes {
			return true
		}
		fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func parseIDs(list string) ([]anki.NoteID, error) {
	var ids []anki.NoteID
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ノートIDを解釈できません: %q", part)
		}
		ids = append(ids, anki.NoteID(n))
	}
	return ids, nil
}

func formatIDs(ids []anki.NoteID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, ",")
}

// voiceFlags は preview と generate で共通の話者・パラメータ指定です。
type voiceFlags struct {
	presetName string
	speaker    string
	style      string
	speed      int
	pitch      int
	volume     int
	intonation int
	preSilence int
	postSilent int
}

func (v *voiceFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&v.presetName, "preset", "", "読み込むプリセット名")
	fs.StringVar(&v.speaker, "speaker", "", "話者名")
	fs.StringVar(&v.style, "style", "", "スタイル名")
	fs.IntVar(&v.speed, "speed", 0, "話速 (100 = 1.0)")
	fs.IntVar(&v.pitch, "pitch", 0, "音高 (-15〜15)")
	fs.IntVar(&v.volume, "volume", 0, "音量 (100 = 1.0)")
	fs.IntVar(&v.intonation, "intonation", 0, "抑揚 (100 = 1.0)")
	fs.IntVar(&v.preSilence, "pre-silence", 0, "開始無音 (10 = 0.1秒)")
	fs.IntVar(&v.postSilent, "post-silence", 0, "終了無音 (10 = 0.1秒)")
}

// apply は前回の値にプリセットと明示されたフラグを重ねた設定を返します。
// 2つ目の戻り値は話者・スタイルが明示的に指定されたかどうかです。
func (v *voiceFlags) apply(a *app, fs *flag.FlagSet, s *config.Settings) (bool, error) {
	if v.presetName != "" {
		if err := preset.NewManager(a.cfg, nil).Load(v.presetName, s); err != nil {
			return false, err
		}
	}

	overrides := make(map[string]any)
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "speaker":
			overrides[config.KeySpeakerName] = v.speaker
			explicit = true
		case "style":
			overrides[config.KeyStyleName] = v.style
			explicit = true
		case "speed":
			overrides[config.KeySpeedSlider] = v.speed
		case "pitch":
			overrides[config.KeyPitchSlider] = v.pitch
		case "volume":
			overrides[config.KeyVolumeSlider] = v.volume
		case "intonation":
			overrides[config.KeyIntonationSlider] = v.intonation
		case "pre-silence":
			overrides[config.KeyInitialSilenceSlider] = v.preSilence
		case "post-silence":
			overrides[config.KeyFinalSilenceSlider] = v.postSilent
		}
	})
	return explicit, s.Apply(overrides)
}

// ----------------------------------------------------------------------
// speakers
// ----------------------------------------------------------------------

func runSpeakers(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("speakers", flag.ContinueOnError)
	info := fs.Bool("info", false, "話者ごとの利用規約の冒頭も表示します")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := voicevox.NewSession(ctx, a.sessionConfig())
	if err != nil {
		return err
	}

	for _, spk := range session.Speakers.Speakers {
		fmt.Println(spk.Name)
		for _, style := range spk.Styles {
			fmt.Printf("  %-12s id=%d\n", style.Name, style.ID)
		}
		if !*info {
			continue
		}
		detail, err := session.Client.GetSpeakerInfo(ctx, spk.SpeakerUUID)
		if err != nil {
			slog.WarnContext(ctx, "話者情報の取得に失敗しました", "speaker", spk.Name, "error", err)
			continue
		}
		policy, _, _ := strings.Cut(strings.TrimSpace(detail.Policy), "\n")
		fmt.Printf("  規約: %s\n", policy)
	}
	return nil
}

// ----------------------------------------------------------------------
// preview
// ----------------------------------------------------------------------

func runPreview(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	var vf voiceFlags
	vf.register(fs)
	out := fs.String("out", "", "保存先 (既定: 設定ディレクトリの "+voicevox.PreviewFilename+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := a.cfg.Current()
	if err != nil {
		return err
	}
	explicit, err := vf.apply(a, fs, &settings)
	if err != nil {
		return err
	}

	session, err := voicevox.NewSession(ctx, a.sessionConfig())
	if err != nil {
		return err
	}
	sel, err := selectSpeaker(session.Speakers, settings, explicit)
	if err != nil {
		return err
	}

	text, wav, err := session.Engine.Preview(ctx, sel.StyleID(), settings.VoiceParams())
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = filepath.Join(a.dataDir(), voicevox.PreviewFilename)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}
	if err := os.WriteFile(path, wav, 0644); err != nil {
		return fmt.Errorf("プレビュー音声の書き込みに失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "プレビュー音声を保存しました",
		"speaker", sel.Speaker.Name, "style", sel.Style.Name, "text", text, "file", path)
	return nil
}

// ----------------------------------------------------------------------
// generate
// ----------------------------------------------------------------------

func runGenerate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	var vf voiceFlags
	vf.register(fs)
	notesPath := fs.String("notes", "", "ノートのJSONファイル (必須)")
	mediaDir := fs.String("media", "", "メディアフォルダ (既定: ノートと同じ階層の collection.media)")
	idList := fs.String("ids", "", "対象のノートID (カンマ区切り、既定: 全て)")
	source := fs.String("source", "", "読み上げ元フィールド")
	dest := fs.String("dest", "", "書き込み先フィールド")
	appendAudio := fs.Bool("append", false, "既存の値の後ろに音声を追加します")
	useOpus := fs.Bool("opus", false, "MP3の代わりにOpusで保存します")
	template := fs.String("template", "", "ファイル名テンプレート")
	brackets := fs.Bool("brackets", true, "[...] の中身を読み上げません")
	parallel := fs.Int("parallel", voicevox.DefaultMaxParallelQueries, "オーディオクエリの同時生成数")
	dryRun := fs.Bool("dry-run", false, "音声を生成せず、処理内容だけを表示します")
	yes := fs.Bool("yes", false, "確認を省略します")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *notesPath == "" {
		fs.Usage()
		return errors.New("-notes を指定してください")
	}

	// 1. 設定の組み立て (前回の値 → プリセット → フラグ)
	settings, err := a.cfg.Current()
	if err != nil {
		return err
	}
	explicit, err := vf.apply(a, fs, &settings)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "append":
			settings.AppendAudio = *appendAudio
		case "opus":
			settings.UseOpus = *useOpus
		case "template":
			settings.FilenameTemplate = *template
		case "brackets":
			settings.IgnoreBrackets = *brackets
		}
	})

	// 2. コレクションと対象ノート
	coll, err := anki.OpenFileCollection(*notesPath, *mediaDir)
	if err != nil {
		return err
	}
	ids, err := parseIDs(*idList)
	if err != nil {
		return err
	}
	if *idList == "" {
		ids = coll.NoteIDs()
	}

	common, err := anki.CommonFields(ctx, coll, ids)
	if err != nil {
		return err
	}
	if err := anki.CheckCommonFields(common); err != nil {
		return err
	}
	settings.SourceField, settings.DestinationField = anki.DefaultFields(common, settings.SourceField, settings.DestinationField)
	if *source != "" {
		settings.SourceField = *source
	}
	if *dest != "" {
		settings.DestinationField = *dest
	}

	for _, warning := range filename.Validate(settings.FilenameTemplate) {
		slog.WarnContext(ctx, "ファイル名テンプレート", "template", settings.FilenameTemplate, "warning", warning)
	}

	// 3. エンジンへの接続と話者の選択
	sessionCfg := a.sessionConfig()
	sessionCfg.Collection = coll
	sessionCfg.Transcoder = transcode.NewFFmpeg(transcode.Config{
		BinaryPath:  a.env.FFmpegPath,
		InstallDir:  a.env.FFmpegDir,
		AutoInstall: a.env.AutoInstall,
	})
	sessionCfg.Engine = voicevox.EngineConfig{MaxParallelQueries: *parallel}
	sessionCfg.DryRun = *dryRun

	session, err := voicevox.NewSession(ctx, sessionCfg)
	if err != nil {
		return err
	}
	sel, err := selectSpeaker(session.Speakers, settings, explicit)
	if err != nil {
		return err
	}
	settings.SpeakerName, settings.StyleName = sel.Speaker.Name, sel.Style.Name

	req := voicevox.NewRequest(ids, settings, sel)
	if err := voicevox.ValidateRequest(ctx, coll, req); err != nil {
		return err
	}

	if !*dryRun && !stdinConfirmer(*yes)(fmt.Sprintf("%d 件のノートの '%s' に '%s' の音声を書き込みます。よろしいですか？",
		len(ids), settings.DestinationField, settings.SourceField)) {
		return preset.ErrCancelled
	}

	// 4. 実行 (選択した値は結果にかかわらず前回の値として保存)
	a.cfg.Remember(settings)
	defer func() {
		if err := a.save(); err != nil {
			slog.ErrorContext(ctx, "設定の保存に失敗しました", "error", err)
		}
	}()

	lastDone := -1
	result, err := session.Executor.Execute(ctx, req, voicevox.WithProgress(func(done, total int, status string) {
		if done != lastDone {
			slog.InfoContext(ctx, "音声を生成中", "done", done, "total", total)
			lastDone = done
		}
		if status != "" {
			slog.DebugContext(ctx, status, "done", done, "total", total)
		}
	}))

	var aborted *voicevox.ErrBatchAborted
	if errors.As(err, &aborted) {
		slog.ErrorContext(ctx, "音声生成を中断しました。未処理のノートは -ids で再実行できます",
			"completed", len(aborted.Completed), "remaining_ids", formatIDs(aborted.Remaining))
		return aborted.Cause
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "音声生成が完了しました", "notes", len(result.Notes), "total", result.Total, "dry_run", result.DryRun)
	return nil
}

// ----------------------------------------------------------------------
// preset
// ----------------------------------------------------------------------

func runPreset(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("preset", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "確認を省略します")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("preset のサブコマンドを指定してください (list|save|rename|delete|load)")
	}

	m := preset.NewManager(a.cfg, stdinConfirmer(*yes))
	arg := func(i int) string {
		if i < len(rest) {
			return rest[i]
		}
		return ""
	}

	switch rest[0] {
	case "list":
		for _, e := range m.List() {
			marker := " "
			if e.Selectable && e.Name == a.cfg.LastPreset {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, e.Label)
		}
		return nil

	case "save":
		settings, err := a.cfg.Current()
		if err != nil {
			return err
		}
		if err := m.Save(arg(1), settings); err != nil {
			return err
		}

	case "rename":
		if err := m.Rename(arg(1), arg(2)); err != nil {
			return err
		}

	case "delete":
		if err := m.Delete(arg(1)); err != nil {
			return err
		}

	case "load":
		settings, err := a.cfg.Current()
		if err != nil {
			return err
		}
		if err := m.Load(arg(1), &settings); err != nil {
			return err
		}
		a.cfg.Remember(settings)

	default:
		return fmt.Errorf("不明なサブコマンドです: %s", rest[0])
	}

	if err := a.save(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "プリセットを更新しました", "action", rest[0], "last_preset", a.cfg.LastPreset)
	return nil
}
