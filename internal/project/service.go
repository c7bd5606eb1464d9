// Package project はポートフォリオ掲載プロジェクトのドメインロジックを提供する。
package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/folio/internal/imaging"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/repository"
	"github.com/hitoshi/folio/internal/security"
	"github.com/hitoshi/folio/internal/upload"
)

// maxTitleLength はタイトルの最大文字数。
const maxTitleLength = 200

// PreviewFetcher はプレビュー画像取得のインターフェース。
// テスト時にモックに差し替え可能。
type PreviewFetcher interface {
	FetchPreviewImage(ctx context.Context, pageURL string) (data []byte, mimeType string, err error)
}

// ImageUploader は画像アップロードパイプラインのインターフェース。
type ImageUploader interface {
	UploadImage(ctx context.Context, folder string, file imaging.SourceFile) (*upload.Result, error)
}

// Input はプロジェクトの作成・更新の入力を表す。
type Input struct {
	Title           string
	Summary         string
	DescriptionHTML string
	RepoURL         string
	LiveURL         string
	DisplayOrder    int
	Published       bool
}

// Service はプロジェクトに関するビジネスロジックを提供する。
type Service struct {
	projectRepo repository.ProjectRepository
	sanitizer   security.ContentSanitizerService
	preview     PreviewFetcher
	uploader    ImageUploader
}

// NewService はServiceを生成する。
func NewService(
	projectRepo repository.ProjectRepository,
	sanitizer security.ContentSanitizerService,
	preview PreviewFetcher,
	uploader ImageUploader,
) *Service {
	return &Service{
		projectRepo: projectRepo,
		sanitizer:   sanitizer,
		preview:     preview,
		uploader:    uploader,
	}
}

// ListPublished は公開済みプロジェクトを表示順で返す。
func (s *Service) ListPublished(ctx context.Context) ([]*model.Project, error) {
	projects, err := s.projectRepo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list published projects: %w", err)
	}
	return projects, nil
}

// ListAll は非公開を含む全プロジェクトを表示順で返す。管理画面用。
func (s *Service) ListAll(ctx context.Context) ([]*model.Project, error) {
	projects, err := s.projectRepo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Get は指定IDのプロジェクトを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(id)
	}
	return project, nil
}

// Create はプロジェクトを新規作成する。
// 説明文のHTMLは保存前にサニタイズされる。
func (s *Service) Create(ctx context.Context, input Input) (*model.Project, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	project := &model.Project{
		ID:              uuid.New().String(),
		Title:           strings.TrimSpace(input.Title),
		Summary:         strings.TrimSpace(input.Summary),
		DescriptionHTML: s.sanitizer.Sanitize(input.DescriptionHTML),
		RepoURL:         strings.TrimSpace(input.RepoURL),
		LiveURL:         strings.TrimSpace(input.LiveURL),
		DisplayOrder:    input.DisplayOrder,
		Published:       input.Published,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	slog.Info("project created",
		slog.String("project_id", project.ID),
		slog.String("title", project.Title),
	)
	return project, nil
}

// Update は既存プロジェクトを上書き更新する。
func (s *Service) Update(ctx context.Context, id string, input Input) (*model.Project, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(id)
	}

	project.Title = strings.TrimSpace(input.Title)
	project.Summary = strings.TrimSpace(input.Summary)
	project.DescriptionHTML = s.sanitizer.Sanitize(input.DescriptionHTML)
	project.RepoURL = strings.TrimSpace(input.RepoURL)
	project.LiveURL = strings.TrimSpace(input.LiveURL)
	project.DisplayOrder = input.DisplayOrder
	project.Published = input.Published
	project.UpdatedAt = time.Now()

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	slog.Info("project updated", slog.String("project_id", project.ID))
	return project, nil
}

// Delete は指定IDのプロジェクトを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find project: %w", err)
	}
	if project == nil {
		return model.NewProjectNotFoundError(id)
	}

	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	slog.Info("project deleted", slog.String("project_id", id))
	return nil
}

// RefreshPreviewImage はプロジェクトのLiveURLからプレビュー画像を取得し、
// 圧縮してストレージに保存した上で画像URLを更新する。
// 画像が検出できなかった場合は何も変更せず空文字列を返す。
func (s *Service) RefreshPreviewImage(ctx context.Context, id string) (string, error) {
	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to find project: %w", err)
	}
	if project == nil {
		return "", model.NewProjectNotFoundError(id)
	}
	if project.LiveURL == "" {
		return "", model.NewInvalidRequestError("プロジェクトにサイトURLが設定されていません")
	}

	data, mimeType, err := s.preview.FetchPreviewImage(ctx, project.LiveURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch preview image: %w", err)
	}
	if data == nil {
		slog.Info("no preview image detected", slog.String("project_id", id), slog.String("url", project.LiveURL))
		return "", nil
	}

	result, err := s.uploader.UploadImage(ctx, "previews", imaging.SourceFile{
		Name: "preview" + extensionForMIME(mimeType),
		MIME: mimeType,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload preview image: %w", err)
	}

	if err := s.projectRepo.UpdateImageURL(ctx, id, result.URL); err != nil {
		return "", fmt.Errorf("failed to update image URL: %w", err)
	}

	slog.Info("preview image refreshed",
		slog.String("project_id", id),
		slog.String("image_url", result.URL),
	)
	return result.URL, nil
}

// validateInput は作成・更新の入力を検証する。
func validateInput(input Input) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.NewInvalidRequestError("タイトルは必須です")
	}
	if len([]rune(title)) > maxTitleLength {
		return model.NewInvalidRequestError(fmt.Sprintf("タイトルは%d文字以内で入力してください", maxTitleLength))
	}
	return nil
}

// extensionForMIME はMIMEタイプに対応するファイル拡張子を返す。
func extensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
