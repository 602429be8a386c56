// Package gallery stores the ordered image wall. Saves replace the whole
// set; there is no partial update.
package gallery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/events"
	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

type Image struct {
	ID        string  `json:"id"`
	ImageURL  string  `json:"imageUrl"`
	Alt       *string `json:"alt,omitempty"`
	Title     *string `json:"title,omitempty"`
	Hidden    bool    `json:"hidden"`
	Position  int     `json:"position"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// Input is one entry of a save request. Entries without an image URL are
// dropped.
type Input struct {
	ID        string  `json:"id"`
	ImageURL  string  `json:"imageUrl"`
	Alt       *string `json:"alt"`
	Title     *string `json:"title"`
	Hidden    bool    `json:"hidden"`
	Position  *int    `json:"position"`
	CreatedAt string  `json:"createdAt"`
}

type Service struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time
}

func NewService(db *gorm.DB, pub events.Publisher) *Service {
	return &Service{DB: db, Events: pub, Now: time.Now}
}

func (s *Service) ensureSchema(ctx context.Context) error {
	m := s.DB.WithContext(ctx).Migrator()
	if m.HasTable(models.TableGalleryImages) {
		return nil
	}
	if err := m.CreateTable(&models.GalleryImage{}); err != nil {
		return fmt.Errorf("create %s: %w", models.TableGalleryImages, err)
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]Image, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s.list(s.DB.WithContext(ctx))
}

func (s *Service) list(db *gorm.DB) ([]Image, error) {
	var rows []models.GalleryImage
	if err := db.Order("position ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	out := make([]Image, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" || r.ImageURL == "" {
			continue
		}
		out = append(out, toImage(r))
	}
	return out, nil
}

func toImage(r models.GalleryImage) Image {
	img := Image{
		ID:        r.ID,
		ImageURL:  r.ImageURL,
		Hidden:    r.IsActive == 0,
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
	}
	if r.AltText != nil && *r.AltText != "" {
		img.Alt, img.Title = r.AltText, r.AltText
	}
	return img
}

// Save deletes every image and inserts inputs in one transaction, then
// returns the stored set.
func (s *Service) Save(ctx context.Context, inputs []Input) ([]Image, error) {
	l := logging.FromContext(ctx)
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	now := s.now().UTC().Format(models.TimeLayout)
	rows := make([]models.GalleryImage, 0, len(inputs))
	for i, in := range inputs {
		if in.ImageURL == "" {
			continue
		}
		row := models.GalleryImage{
			ID:        in.ID,
			ImageURL:  in.ImageURL,
			AltText:   firstText(in.Alt, in.Title),
			IsActive:  1,
			Position:  i,
			CreatedAt: in.CreatedAt,
		}
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if in.Hidden {
			row.IsActive = 0
		}
		if in.Position != nil {
			row.Position = *in.Position
		}
		if row.CreatedAt == "" {
			row.CreatedAt = now
		}
		rows = append(rows, row)
	}

	var saved []Image
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM " + models.TableGalleryImages).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			// IsActive=0 must be written, not replaced by the column default
			if err := tx.Select("*").Create(&rows).Error; err != nil {
				return err
			}
		}
		var err error
		saved, err = s.list(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save gallery: %w", err)
	}

	l.Info("gallery_saved", "received", len(inputs), "stored", len(saved))
	if s.Events != nil {
		if err := s.Events.PublishEvent(ctx, events.TopicGallery, "", events.New(events.GallerySaved, map[string]any{"count": len(saved)})); err != nil {
			l.Warn("publish_failed", "event", events.GallerySaved, "error", err)
		}
	}
	return saved, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func firstText(vals ...*string) *string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}
