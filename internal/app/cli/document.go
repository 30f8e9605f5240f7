package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/manual-assist/internal/core/ingestion"
)

// DocumentListAction はドキュメント一覧コマンドのアクション
func DocumentListAction(ctx context.Context, cmd *cli.Command) error {
	tenantID := cmd.String("tenant")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	docs, err := appCtx.IngestService.ListDocuments(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("ドキュメント一覧の取得に失敗: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("ドキュメントはありません")
		return nil
	}

	renderDocumentsTable(docs)
	return nil
}

// DocumentInvalidateAction はドキュメント無効化コマンドのアクション
func DocumentInvalidateAction(ctx context.Context, cmd *cli.Command) error {
	tenantID := cmd.String("tenant")
	name := cmd.String("name")
	envFile := cmd.String("env")

	if name == "" {
		return fmt.Errorf("--name は必須です")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.IngestService.InvalidateDocument(ctx, tenantID, name); err != nil {
		slog.Error("ドキュメントの無効化に失敗しました", "error", err)
		return err
	}

	fmt.Printf("ドキュメント %q を削除し、関連するキャッシュを無効化しました\n", name)
	return nil
}

// renderDocumentsTable はテーブル形式でドキュメント一覧を表示します
func renderDocumentsTable(docs []*ingestion.Document) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Status", "Pages", "Chunks", "Uploaded At")

	for _, doc := range docs {
		table.Append(
			doc.ID.String(),
			doc.Name,
			string(doc.Status),
			fmt.Sprintf("%d", doc.PageCount),
			fmt.Sprintf("%d", doc.ChunkCount),
			doc.UploadedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}
