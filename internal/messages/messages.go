// Package messages handles the public contact form.
package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/events"
	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/notify"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

var (
	ErrNotFound = errors.New("message not found")
	// ErrNotify means the message was stored but the owner was not told.
	ErrNotify = errors.New("failed to send email")
)

type Input struct {
	Name     string  `json:"name"     validate:"required,max=120"`
	Email    string  `json:"email"    validate:"required,max=254,email"`
	Message  string  `json:"message"  validate:"required,max=5000"`
	ImageURL *string `json:"imageUrl" validate:"omitempty,max=200000"`
}

// InvalidError carries a message fit to show the sender.
type InvalidError struct {
	Field string
	Msg   string
}

func (e *InvalidError) Error() string { return e.Msg }

var fieldLabels = map[string]string{
	"Name":     "Name",
	"Email":    "Email",
	"Message":  "Message",
	"ImageURL": "Image",
}

// Normalize trims text fields and drops an empty image.
func (in Input) Normalize() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Message = strings.TrimSpace(in.Message)
	if in.ImageURL != nil && strings.TrimSpace(*in.ImageURL) == "" {
		in.ImageURL = nil
	}
	return in
}

// Validate turns validator failures into the first human-readable problem.
func Validate(v *validator.Validate, in Input) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	label := fieldLabels[fe.StructField()]
	switch fe.Tag() {
	case "required":
		return &InvalidError{Field: fe.Field(), Msg: "Name, email, and message are required."}
	case "max":
		if fe.StructField() == "ImageURL" {
			return &InvalidError{Field: fe.Field(), Msg: "Image is too large. Please upload a smaller file."}
		}
		return &InvalidError{Field: fe.Field(), Msg: fmt.Sprintf("%s is too long (max %s characters).", label, fe.Param())}
	case "email":
		return &InvalidError{Field: fe.Field(), Msg: "Email address is not valid."}
	default:
		return &InvalidError{Field: fe.Field(), Msg: label + " is invalid."}
	}
}

type Service struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Notifier *notify.Notifier
	Events   events.Publisher
	Now      func() time.Time
}

func NewService(db *gorm.DB, v *validator.Validate, n *notify.Notifier, pub events.Publisher) *Service {
	return &Service{DB: db, Validate: v, Notifier: n, Events: pub, Now: time.Now}
}

func (s *Service) ensureSchema(ctx context.Context) error {
	m := s.DB.WithContext(ctx).Migrator()
	if m.HasTable(models.TableMessages) {
		return nil
	}
	if err := m.CreateTable(&models.Message{}); err != nil {
		return fmt.Errorf("create %s: %w", models.TableMessages, err)
	}
	return nil
}

// Submit stores a contact-form message and queues the owner's copy. The
// message is kept even when notifying fails; that case returns the stored
// message together with ErrNotify.
func (s *Service) Submit(ctx context.Context, in Input) (models.Message, error) {
	l := logging.FromContext(ctx)
	in = in.Normalize()
	if err := Validate(s.Validate, in); err != nil {
		return models.Message{}, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Message:   in.Message,
		ImageURL:  in.ImageURL,
		CreatedAt: s.now().UTC().Format(models.TimeLayout),
	}
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		return models.Message{}, fmt.Errorf("save message: %w", err)
	}

	if s.Events != nil {
		if err := s.Events.PublishEvent(ctx, events.TopicMessages, msg.ID, events.New(events.MessageReceived, map[string]any{
			"message_id": msg.ID,
			"has_image":  msg.ImageURL != nil,
		})); err != nil {
			l.Warn("publish_failed", "event", events.MessageReceived, "error", err)
		}
	}

	if s.Notifier == nil {
		return msg, fmt.Errorf("%w: %v", ErrNotify, notify.ErrNoOwnerAddress)
	}
	if err := s.Notifier.Inquiry(ctx, msg.ID, msg.Name, msg.Email, msg.Message, msg.ImageURL != nil); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrNotify, err)
	}
	return msg, nil
}

// List returns every message, newest first.
func (s *Service) List(ctx context.Context) ([]models.Message, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var out []models.Message
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Message{})
	if res.Error != nil {
		return fmt.Errorf("delete message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
