package catalog

import (
	"context"       // Request scoped operations
	"encoding/json" // Response decoding
	"fmt"           // Error wrapping
	"net/http"      // HTTP client
	"net/url"       // Path escaping
	"strings"       // Ingredient splitting
	"time"          // Client timeout

	"retail_pos/internal/apperr" // Error taxonomy
)

// SourceProduct is the descriptive data the external catalog knows about a scan code
type SourceProduct struct {
	Name        string
	Description string
	Category    string
	Ingredients []string
	ImageURL    string
}

// Source looks products up in the external catalog. A nil product with a nil
// error means the source has no match for the scan code.
type Source interface {
	Lookup(ctx context.Context, scanCode string) (*SourceProduct, error)
}

// OpenFoodFacts is a Source backed by the Open Food Facts v0 product API
type OpenFoodFacts struct {
	baseURL string
	client  *http.Client
}

// NewOpenFoodFacts builds a client for baseURL
func NewOpenFoodFacts(baseURL string, timeout time.Duration) *OpenFoodFacts {
	return &OpenFoodFacts{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type offResponse struct {
	Status  int `json:"status"`
	Product struct {
		ProductName       string `json:"product_name"`
		GenericName       string `json:"generic_name"`
		Categories        string `json:"categories"`
		IngredientsTextFr string `json:"ingredients_text_fr"`
		IngredientsText   string `json:"ingredients_text"`
		ImageURL          string `json:"image_url"`
	} `json:"product"`
}

// Lookup fetches one product by scan code
func (o *OpenFoodFacts) Lookup(ctx context.Context, scanCode string) (*SourceProduct, error) {
	endpoint := fmt.Sprintf("%s/api/v0/product/%s.json", o.baseURL, url.PathEscape(scanCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.Upstream("Failed to query catalog source", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream("Failed to query catalog source", err)
	}
	defer resp.Body.Close()

	// The v0 API answers 404 with a status 0 body for unknown codes
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, apperr.Upstream("Failed to query catalog source", fmt.Errorf("status %d", resp.StatusCode))
	}
	var body offResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.Upstream("Malformed catalog source response", err)
	}
	if body.Status != 1 {
		return nil, nil
	}
	ingredients := body.Product.IngredientsTextFr
	if ingredients == "" {
		ingredients = body.Product.IngredientsText
	}
	return &SourceProduct{
		Name:        body.Product.ProductName,
		Description: body.Product.GenericName,
		Category:    body.Product.Categories,
		Ingredients: splitIngredients(ingredients),
		ImageURL:    body.Product.ImageURL,
	}, nil
}

// splitIngredients turns the free-text ingredient list into entries
func splitIngredients(text string) []string {
	out := []string{}
	for _, part := range strings.Split(text, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
