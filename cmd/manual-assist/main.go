package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/manual-assist/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "manual-assist",
		Usage: "電話サポート向けマニュアル検索QAシステム",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "マニュアルを取り込んで検索インデックスへ登録",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "tenant",
						Usage:    "テナントID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Usage:    "マニュアルのテキストファイルパス",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "ドキュメント名（省略時はファイル名）",
					},
				},
				Action: appcli.IngestAction,
			},
			{
				Name:      "ask",
				Usage:     "マニュアルに基づいて質問に回答",
				ArgsUsage: "<質問文>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "tenant",
						Usage:    "テナントID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "会話ID（継続会話のコンテキストを使う場合）",
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照したマニュアルの出典を表示",
					},
				},
				Action: appcli.AskAction,
			},
			{
				Name:  "document",
				Usage: "ドキュメント管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "ドキュメント一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "tenant",
								Usage:    "テナントID",
								Required: true,
							},
						},
						Action: appcli.DocumentListAction,
					},
					{
						Name:  "invalidate",
						Usage: "ドキュメントを削除しキャッシュを無効化",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "tenant",
								Usage:    "テナントID",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "name",
								Usage:    "ドキュメント名",
								Required: true,
							},
						},
						Action: appcli.DocumentInvalidateAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
