package collector

import (
	"context"
	"fmt"
	"strconv"

	"pricetrack/tracker-service/internal/app/tracker/entity"
)

const mercadonaSourceID = "mercadona"

// MercadonaCollector walks the public categories API: one call for the
// category tree, then one call per leaf category for its products.
type MercadonaCollector struct {
	client  *Client
	baseURL string
}

// NewMercadonaCollector builds the collector. baseURL without trailing
// slash, e.g. "https://tienda.mercadona.es".
func NewMercadonaCollector(client *Client, baseURL string) *MercadonaCollector {
	return &MercadonaCollector{client: client, baseURL: baseURL}
}

func (c *MercadonaCollector) SourceID() string {
	return mercadonaSourceID
}

type mercadonaCategoryTree struct {
	Results []struct {
		Categories []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"categories"`
	} `json:"results"`
}

type mercadonaCategoryDetail struct {
	Categories []struct {
		Name     string             `json:"name"`
		Products []mercadonaProduct `json:"products"`
	} `json:"categories"`
}

type mercadonaProduct struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	ShareURL          string `json:"share_url"`
	Thumbnail         string `json:"thumbnail"`
	PriceInstructions struct {
		UnitPrice  string `json:"unit_price"`
		BulkPrice  string `json:"bulk_price"`
		SizeFormat string `json:"size_format"`
		ApproxSize bool   `json:"approx_size"`
	} `json:"price_instructions"`
}

func (c *MercadonaCollector) Collect(ctx context.Context, emit func(entity.NormalizedRecord) error) error {
	var tree mercadonaCategoryTree
	if err := c.client.GetJSON(ctx, c.baseURL+"/api/categories/", &tree); err != nil {
		return err
	}

	for _, top := range tree.Results {
		for _, cat := range top.Categories {
			if err := c.collectCategory(ctx, cat.ID, emit); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *MercadonaCollector) collectCategory(ctx context.Context, categoryID int, emit func(entity.NormalizedRecord) error) error {
	var detail mercadonaCategoryDetail
	url := fmt.Sprintf("%s/api/categories/%d/", c.baseURL, categoryID)
	if err := c.client.GetJSON(ctx, url, &detail); err != nil {
		return err
	}

	for _, sub := range detail.Categories {
		for _, p := range sub.Products {
			record, err := c.normalize(p, sub.Name)
			if err != nil {
				// Malformed entries from the source feed into the run
				// report via a validation failure, not a source failure.
				record = entity.NormalizedRecord{
					SourceID:   mercadonaSourceID,
					ExternalID: p.ID,
					Name:       p.DisplayName,
					Price:      -1,
				}
			}
			if err := emit(record); err != nil {
				return err
			}
		}
	}
	return nil
}

// normalize maps the source payload onto the common record. Products
// sold by approximate weight carry their real price in bulk_price, so
// that one wins when approx_size is set.
func (c *MercadonaCollector) normalize(p mercadonaProduct, category string) (entity.NormalizedRecord, error) {
	price, err := strconv.ParseFloat(p.PriceInstructions.UnitPrice, 64)
	if err != nil {
		return entity.NormalizedRecord{}, fmt.Errorf("parse unit_price %q: %w", p.PriceInstructions.UnitPrice, err)
	}

	var pricePerUnit *float64
	if p.PriceInstructions.BulkPrice != "" {
		bulk, err := strconv.ParseFloat(p.PriceInstructions.BulkPrice, 64)
		if err == nil {
			pricePerUnit = &bulk
			if p.PriceInstructions.ApproxSize {
				price = bulk
			}
		}
	}

	return entity.NormalizedRecord{
		SourceID:     mercadonaSourceID,
		ExternalID:   p.ID,
		Name:         p.DisplayName,
		Price:        price,
		PricePerUnit: pricePerUnit,
		Category:     category,
		Format:       p.PriceInstructions.SizeFormat,
		URL:          optionalString(p.ShareURL),
		ImageURL:     optionalString(p.Thumbnail),
	}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
