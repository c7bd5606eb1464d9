// Package contact は問い合わせフォームのドメインロジックを提供する。
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/repository"
)

const (
	// maxNameLength は送信者名の最大文字数。
	maxNameLength = 100
	// maxBodyLength は本文の最大文字数。
	maxBodyLength = 5000
	// defaultListLimit は管理画面の一覧表示の既定件数。
	defaultListLimit = 100
)

// Service は問い合わせメッセージに関するビジネスロジックを提供する。
type Service struct {
	contactRepo repository.ContactRepository
	mailer      Mailer // nilの場合は通知メールを送信しない
	// 問い合わせ本文はプレーンテキストとして扱うため、全タグを除去する
	stripPolicy *bluemonday.Policy
}

// NewService はServiceを生成する。
func NewService(contactRepo repository.ContactRepository, mailer Mailer) *Service {
	return &Service{
		contactRepo: contactRepo,
		mailer:      mailer,
		stripPolicy: bluemonday.StrictPolicy(),
	}
}

// Submit は問い合わせメッセージを検証・保存し、通知メールをベストエフォートで送信する。
// メール送信の失敗は保存結果に影響させない。
func (s *Service) Submit(ctx context.Context, name, email, body string) (*model.ContactMessage, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	body = strings.TrimSpace(s.stripPolicy.Sanitize(body))

	if err := validateSubmission(name, email, body); err != nil {
		return nil, err
	}

	message := &model.ContactMessage{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Body:      body,
		CreatedAt: time.Now(),
	}

	if err := s.contactRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to save contact message: %w", err)
	}

	slog.Info("contact message received",
		slog.String("message_id", message.ID),
		slog.String("from", email),
	)

	if s.mailer != nil {
		subject := fmt.Sprintf("お問い合わせ: %s", name)
		mailBody := fmt.Sprintf("差出人: %s <%s>\n\n%s", name, email, body)
		if err := s.mailer.Send(subject, mailBody); err != nil {
			slog.Warn("failed to send contact notification",
				slog.String("message_id", message.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return message, nil
}

// ListRecent は受信日時の降順でメッセージを返す。管理画面用。
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*model.ContactMessage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	messages, err := s.contactRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	return messages, nil
}

// Delete は指定IDのメッセージを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.contactRepo.DeleteByID(ctx, id); err != nil {
		return model.NewMessageNotFoundError(id)
	}
	slog.Info("contact message deleted", slog.String("message_id", id))
	return nil
}

// validateSubmission は問い合わせ入力を検証する。
func validateSubmission(name, email, body string) error {
	if name == "" {
		return model.NewInvalidRequestError("お名前は必須です")
	}
	if len([]rune(name)) > maxNameLength {
		return model.NewInvalidRequestError(fmt.Sprintf("お名前は%d文字以内で入力してください", maxNameLength))
	}
	if email == "" {
		return model.NewInvalidRequestError("メールアドレスは必須です")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.NewInvalidRequestError("メールアドレスの形式が正しくありません")
	}
	if body == "" {
		return model.NewInvalidRequestError("本文は必須です")
	}
	if len([]rune(body)) > maxBodyLength {
		return model.NewInvalidRequestError(fmt.Sprintf("本文は%d文字以内で入力してください", maxBodyLength))
	}
	return nil
}
