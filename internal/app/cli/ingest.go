package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/jinford/manual-assist/internal/core/ingestion"
)

// IngestAction はマニュアル取り込みコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	tenantID := cmd.String("tenant")
	name := cmd.String("name")
	filePath := cmd.String("file")
	envFile := cmd.String("env")

	if filePath == "" {
		return fmt.Errorf("--file は必須です")
	}

	text, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}

	// 名前の指定がなければファイル名を使う
	if name == "" {
		name = filepath.Base(filePath)
	}

	slog.Info("マニュアル取り込みを開始",
		"tenantID", tenantID,
		"name", name,
		"file", filePath,
	)

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.IngestService.Ingest(ctx, ingestion.IngestParams{
		TenantID: tenantID,
		Name:     name,
		Text:     string(text),
	})
	if err != nil {
		slog.Error("取り込みに失敗しました", "error", err)
		return err
	}

	fmt.Printf("ドキュメントID: %s\n", result.DocumentID)
	fmt.Printf("状態: %s\n", result.Status)
	fmt.Printf("チャンク数: %d\n", result.ChunkCount)
	if result.PageCount > 0 {
		fmt.Printf("ページ数: %d\n", result.PageCount)
	}
	fmt.Printf("所要時間: %s\n", result.Duration)

	if len(result.FailedChunks) > 0 {
		fmt.Printf("失敗チャンク: %v\n", result.FailedChunks)
		return fmt.Errorf("一部のチャンクの取り込みに失敗しました（%d件）", len(result.FailedChunks))
	}

	slog.Info("取り込みが完了しました", "documentID", result.DocumentID)
	return nil
}
