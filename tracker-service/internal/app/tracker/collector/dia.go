package collector

import (
	"context"
	"fmt"

	"pricetrack/tracker-service/internal/app/tracker/entity"
)

const diaSourceID = "dia"

// DiaCollector pages through the session-backed search API. The session
// cookie is provisioned manually and lives on the underlying client; an
// expired one surfaces as ErrAuthenticationExpired on the first page.
type DiaCollector struct {
	client   *Client
	baseURL  string
	pageSize int
}

// NewDiaCollector builds the collector. baseURL without trailing slash,
// e.g. "https://www.dia.es".
func NewDiaCollector(client *Client, baseURL string, pageSize int) *DiaCollector {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &DiaCollector{client: client, baseURL: baseURL, pageSize: pageSize}
}

func (c *DiaCollector) SourceID() string {
	return diaSourceID
}

type diaPage struct {
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
	Products    []diaProduct `json:"products"`
}

type diaProduct struct {
	ObjectID     string   `json:"object_id"`
	DisplayName  string   `json:"display_name"`
	Price        float64  `json:"price"`
	PricePerUnit *float64 `json:"price_per_unit"`
	SizeFormat   string   `json:"size_format"`
	CategoryName string   `json:"category_name"`
	ProductURL   string   `json:"url"`
	ImageURL     string   `json:"image"`
}

func (c *DiaCollector) Collect(ctx context.Context, emit func(entity.NormalizedRecord) error) error {
	for pageNum := 0; ; pageNum++ {
		var page diaPage
		url := fmt.Sprintf("%s/api/v1/plp-insignias?currentPage=%d&pageSize=%d", c.baseURL, pageNum, c.pageSize)
		if err := c.client.GetJSON(ctx, url, &page); err != nil {
			return err
		}

		for _, p := range page.Products {
			if err := emit(c.normalize(p)); err != nil {
				return err
			}
		}

		if len(page.Products) == 0 || pageNum >= page.TotalPages-1 {
			return nil
		}
	}
}

func (c *DiaCollector) normalize(p diaProduct) entity.NormalizedRecord {
	return entity.NormalizedRecord{
		SourceID:     diaSourceID,
		ExternalID:   p.ObjectID,
		Name:         p.DisplayName,
		Price:        p.Price,
		PricePerUnit: p.PricePerUnit,
		Category:     p.CategoryName,
		Format:       p.SizeFormat,
		URL:          optionalString(p.ProductURL),
		ImageURL:     optionalString(p.ImageURL),
	}
}
