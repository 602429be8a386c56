package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/handmade_shop/internal/models"
)

var ErrSearchUnavailable = errors.New("search unavailable")

// Document is the indexed shape of a product.
type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	ImageURL    string `json:"image_url,omitempty"`
}

func DocumentFrom(p models.Product) Document {
	d := Document{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		d.ImageURL = *p.ImageURL
	} else if p.ImageURLsJSON != nil {
		d.ImageURL = firstImage(*p.ImageURLsJSON)
	}
	return d
}

type Search struct {
	ES    *elasticsearch.Client
	Index string
}

func NewESClient(url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	return client, nil
}

// Calculate turns 1-based page/size into an offset; size defaults to 10 and
// is capped at 100.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	return (page - 1) * size, size
}

func (s *Search) Query(ctx context.Context, query string, from, size int) (int64, []Document, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search: %w", err)
	}

	res, err := s.ES.Search(
		s.ES.Search.WithContext(ctx),
		s.ES.Search.WithIndex(s.Index),
		s.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("%w: %s %s", ErrSearchUnavailable, res.Status(), bytes.TrimSpace(msg))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search: %w", err)
	}

	docs := make([]Document, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}

// IndexProducts writes every product as a document keyed by its id. It stops
// at the first failure and reports how many were indexed.
func (s *Search) IndexProducts(ctx context.Context, products []models.Product) (int, error) {
	for i, p := range products {
		data, err := json.Marshal(DocumentFrom(p))
		if err != nil {
			return i, fmt.Errorf("encode product %s: %w", p.ID, err)
		}
		res, err := s.ES.Index(
			s.Index,
			bytes.NewReader(data),
			s.ES.Index.WithContext(ctx),
			s.ES.Index.WithDocumentID(p.ID),
		)
		if err != nil {
			return i, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
		}
		failed := res.IsError()
		status := res.Status()
		res.Body.Close()
		if failed {
			return i, fmt.Errorf("%w: index %s: %s", ErrSearchUnavailable, p.ID, status)
		}
	}
	return len(products), nil
}
