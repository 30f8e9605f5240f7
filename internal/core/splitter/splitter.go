package splitter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Chunk はマニュアル本文の連続した区間を表す
// オフセットはルーン単位で、元テキスト全体をチャンク列が隙間なく覆う
type Chunk struct {
	Ordinal     int    // ドキュメント内の並び順（0始まり）
	Text        string // チャンク本文
	StartOffset int    // 元テキスト内の開始オフセット（ルーン）
	EndOffset   int    // 元テキスト内の終了オフセット（ルーン、排他的）
	Page        int    // 取得元のページ番号（マーカーが無い場合は0）
	Section     string // 取得元のセクション見出し（推定）
}

// Config はドキュメント分割の設定
type Config struct {
	ChunkSize    int // 目標チャンクサイズ（文字数）
	Overlap      int // チャンク間のオーバーラップ（文字数）
	MinChunkSize int // 最小チャンクサイズ（これ未満の末尾チャンクは前へマージ）
}

// DefaultConfig はデフォルトの分割設定を返す
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		Overlap:      200,
		MinChunkSize: 100,
	}
}

// Validate は設定の整合性を検証する
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("overlap (%d) must be strictly less than chunk size (%d)", c.Overlap, c.ChunkSize)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize >= c.ChunkSize {
		return fmt.Errorf("min chunk size (%d) must be in [0, chunk size)", c.MinChunkSize)
	}
	return nil
}

// pageMarkerRe はテキスト抽出時に挿入されるページマーカーにマッチする
// 形式: --- Page N ---
var pageMarkerRe = regexp.MustCompile(`--- Page (\d+) ---`)

// Splitter はマニュアル本文をオーバーラップ付きのチャンク列に分割する
// 段落境界での分割を優先し、境界が見つからない場合のみ文字数で強制分割する
type Splitter struct {
	config Config
}

// New は新しい Splitter を作成する
func New(config Config) (*Splitter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid splitter config: %w", err)
	}
	return &Splitter{config: config}, nil
}

// span は元テキスト内のルーン区間
type span struct {
	start int
	end   int
}

// Split はテキストをチャンク列に分割する
// 空テキスト（空白のみを含む）の場合はゼロ件を返す
func (s *Splitter) Split(text string) []*Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var spans []span
	cursor := 0
	for cursor < n {
		end := cursor + s.config.ChunkSize
		if end >= n {
			spans = append(spans, span{start: cursor, end: n})
			break
		}

		boundary := s.findBoundary(runes, cursor, end)
		spans = append(spans, span{start: cursor, end: boundary})

		next := boundary - s.config.Overlap
		if next <= cursor {
			// オーバーラップを適用すると前進しない場合は境界から再開する
			next = boundary
		}
		cursor = next
	}

	// 最小サイズ未満の末尾チャンクは単独で出さず前のチャンクへマージする
	if len(spans) >= 2 {
		last := spans[len(spans)-1]
		if last.end-last.start < s.config.MinChunkSize {
			spans[len(spans)-2].end = last.end
			spans = spans[:len(spans)-1]
		}
	}

	pages := parsePageMarkers(text)

	chunks := make([]*Chunk, 0, len(spans))
	for i, sp := range spans {
		chunkText := string(runes[sp.start:sp.end])
		chunks = append(chunks, &Chunk{
			Ordinal:     i,
			Text:        chunkText,
			StartOffset: sp.start,
			EndOffset:   sp.end,
			Page:        pages.pageAt(sp.start),
			Section:     extractSection(chunkText),
		})
	}
	return chunks
}

// findBoundary は [cursor+min, end] の範囲で自然な分割点を探す
// 段落境界 > 文末 > 改行 の順で優先し、見つからなければ end で強制分割する
func (s *Splitter) findBoundary(runes []rune, cursor, end int) int {
	searchStart := cursor + s.config.MinChunkSize
	if searchStart <= cursor {
		searchStart = cursor + 1
	}

	// 段落境界（空行）を探す
	for i := end; i > searchStart; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}

	// 文末（終端記号の直後に空白か改行）を探す
	for i := end; i > searchStart; i-- {
		r := runes[i-1]
		if r != ' ' && r != '\n' {
			continue
		}
		if i < 2 {
			continue
		}
		if prev := runes[i-2]; prev == '.' || prev == '!' || prev == '?' {
			return i
		}
	}

	// 改行を探す
	for i := end; i > searchStart; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}

	// 自然な境界が無い場合は文字数で強制分割
	return end
}

// pageIndex はページマーカー位置からページ番号を引くための索引
type pageIndex struct {
	offsets []int // マーカーのルーンオフセット（昇順）
	numbers []int // 対応するページ番号
}

// pageAt は指定オフセットが属するページ番号を返す（マーカーが無ければ0）
func (p pageIndex) pageAt(offset int) int {
	page := 0
	for i, markerOffset := range p.offsets {
		if markerOffset > offset {
			break
		}
		page = p.numbers[i]
	}
	return page
}

// parsePageMarkers はテキスト中のページマーカーを索引化する
func parsePageMarkers(text string) pageIndex {
	var index pageIndex
	matches := pageMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return index
	}

	// バイトオフセットをルーンオフセットへ変換するための前計算
	byteToRune := make(map[int]int, len(matches))
	for _, m := range matches {
		byteToRune[m[0]] = -1
	}
	runeOffset := 0
	for byteOffset := range text {
		if _, ok := byteToRune[byteOffset]; ok {
			byteToRune[byteOffset] = runeOffset
		}
		runeOffset++
	}

	for _, m := range matches {
		page, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		index.offsets = append(index.offsets, byteToRune[m[0]])
		index.numbers = append(index.numbers, page)
	}
	return index
}

const maxSectionLength = 80

// extractSection はチャンク先頭付近から見出しらしい行を推定する
func extractSection(chunkText string) string {
	lines := strings.Split(chunkText, "\n")
	limit := 3
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "---") {
			continue
		}
		runes := []rune(trimmed)
		if len(runes) > maxSectionLength {
			trimmed = string(runes[:maxSectionLength])
		}
		return trimmed
	}
	return ""
}

// PageCount はテキスト中のページマーカーから総ページ数を求める
func PageCount(text string) int {
	maxPage := 0
	for _, m := range pageMarkerRe.FindAllStringSubmatch(text, -1) {
		page, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if page > maxPage {
			maxPage = page
		}
	}
	return maxPage
}
