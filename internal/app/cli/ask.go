package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/jinford/manual-assist/internal/core/answer"
)

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	tenantID := cmd.String("tenant")
	conversationID := cmd.String("conversation")
	showSources := cmd.Bool("show-sources")
	envFile := cmd.String("env")

	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	slog.Info("質問応答を開始",
		"tenantID", tenantID,
		"conversationID", conversationID,
		"question", question,
	)

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	params := answer.Params{
		TenantID: tenantID,
		Question: question,
	}
	if conversationID != "" {
		params.ConversationID = mo.Some(conversationID)
	}

	result, err := appCtx.AnswerService.Answer(ctx, params)
	if err != nil {
		slog.Error("質問応答に失敗しました", "error", err)
		return err
	}

	fmt.Println(result.AnswerText)

	if showSources && len(result.Sources) > 0 {
		fmt.Println("\n--- 参照マニュアル ---")
		for i, source := range result.Sources {
			ref := source.DocumentName
			if source.Page > 0 {
				ref = fmt.Sprintf("%s p.%d", ref, source.Page)
			}
			if source.Section != "" {
				ref = fmt.Sprintf("%s (%s)", ref, source.Section)
			}
			fmt.Printf("[%d] %s スコア: %.4f\n", i+1, ref, source.Score)
		}
	}

	slog.Info("質問応答が完了しました",
		"grounded", result.Grounded,
		"fromCache", result.FromCache,
		"confidence", result.Confidence,
	)
	return nil
}
