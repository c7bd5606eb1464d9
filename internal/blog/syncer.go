// Package blog は外部ブログのRSS/Atomフィードをミラーする同期処理を提供する。
// フィードを定期的に取得し、記事のメタデータをローカルにUPSERTする。
package blog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/repository"
	"github.com/hitoshi/folio/internal/security"
)

// FeedParser はフィード解析のインターフェース。
// gofeed.Parserが満たす。テスト時にモックに差し替え可能。
type FeedParser interface {
	ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error)
}

// Syncer はブログフィードの同期処理を提供する。
type Syncer struct {
	parser    FeedParser
	postRepo  repository.PostRepository
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
	feedURL   string
}

// NewSyncer はSyncerの新しいインスタンスを生成する。
func NewSyncer(
	parser FeedParser,
	postRepo repository.PostRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	feedURL string,
) *Syncer {
	return &Syncer{
		parser:    parser,
		postRepo:  postRepo,
		sanitizer: sanitizer,
		logger:    logger,
		feedURL:   feedURL,
	}
}

// Start はティッカーで同期を定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Syncer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ブログ同期ジョブを開始しました",
		slog.String("feed_url", s.feedURL),
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.SyncOnce(ctx); err != nil {
		s.logger.Error("ブログ同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ブログ同期ジョブを停止しました")
			return
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.logger.Error("ブログ同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// SyncOnce はフィードを1回取得し、記事をUPSERTする。
// 個々の記事の保存失敗はサイクル全体を失敗させない。
func (s *Syncer) SyncOnce(ctx context.Context) error {
	start := time.Now()

	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	var upserted int
	for _, item := range feed.Items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		post := s.postFromItem(item)
		if post == nil {
			continue
		}

		if err := s.postRepo.Upsert(ctx, post); err != nil {
			s.logger.Error("記事の保存に失敗しました",
				slog.String("guid", post.GUID),
				slog.String("error", err.Error()),
			)
			continue
		}
		upserted++
	}

	duration := time.Since(start)
	s.logger.Info("ブログ同期サイクルが完了しました",
		slog.Int("feed_items", len(feed.Items)),
		slog.Int("upserted", upserted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// postFromItem はフィード記事をドメインモデルへ変換する。
// GUIDがない場合はリンクで代用し、どちらもない記事はスキップする。
// 要約HTMLは保存前にサニタイズする。
func (s *Syncer) postFromItem(item *gofeed.Item) *model.Post {
	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}
	if guid == "" {
		s.logger.Warn("GUIDとリンクのない記事をスキップします", slog.String("title", item.Title))
		return nil
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	publishedAt := time.Now()
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		publishedAt = *item.UpdatedParsed
	}

	return &model.Post{
		ID:          uuid.New().String(),
		GUID:        guid,
		Title:       item.Title,
		Link:        item.Link,
		SummaryHTML: s.sanitizer.Sanitize(summary),
		PublishedAt: publishedAt,
		CreatedAt:   time.Now(),
	}
}
