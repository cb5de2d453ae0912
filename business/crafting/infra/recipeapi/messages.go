package recipeapi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/craftcalc/business/crafting/domain"
)

// RecipeResponse is the body of GET /recipes/{id}. Prices are decimal
// strings or null when the market has no listing.
type RecipeResponse struct {
	ID                   string              `json:"id"`
	Server               string              `json:"server"`
	Result               ItemMessage         `json:"result"`
	SellPrice            *decimal.Decimal    `json:"sell_price"`
	SellPriceUpdatedAt   *time.Time          `json:"sell_price_updated_at"`
	Ingredients          []IngredientMessage `json:"ingredients"`
	TotalIngredientCount int                 `json:"total_ingredient_count"`
	KnownPriceCount      int                 `json:"known_price_count"`
	CascadeEstimate      *decimal.Decimal    `json:"cascade_estimate"`
}

// ItemMessage identifies an item.
type ItemMessage struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// IngredientMessage is one ingredient line.
type IngredientMessage struct {
	ItemID         int              `json:"item_id"`
	Name           string           `json:"name"`
	Icon           string           `json:"icon"`
	Quantity       int              `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	PriceUpdatedAt *time.Time       `json:"price_updated_at"`
	SubRecipeID    string           `json:"sub_recipe_id"`
}

// ErrorResponse is the API error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (r *RecipeResponse) validate() error {
	if r.Result.ID <= 0 {
		return fmt.Errorf("recipe %q has no result item", r.ID)
	}
	for i, ing := range r.Ingredients {
		if ing.ItemID <= 0 {
			return fmt.Errorf("ingredient %d of recipe %q has no item id", i, r.ID)
		}
		if ing.UnitPrice != nil && ing.UnitPrice.IsNegative() {
			return fmt.Errorf("ingredient %d of recipe %q has a negative price", ing.ItemID, r.ID)
		}
	}
	return nil
}

// toDomain maps the wire record. Missing prices become unknown, never zero.
func (r *RecipeResponse) toDomain(server string) *domain.Recipe {
	out := &domain.Recipe{
		ID:                   r.ID,
		Server:               server,
		Result:               domain.ItemRef{ID: r.Result.ID, Name: r.Result.Name, IconRef: r.Result.Icon},
		SellPrice:            price(r.SellPrice),
		SellPriceUpdatedAt:   timeOrZero(r.SellPriceUpdatedAt),
		Ingredients:          make([]domain.IngredientRecord, 0, len(r.Ingredients)),
		TotalIngredientCount: r.TotalIngredientCount,
		KnownPriceCount:      r.KnownPriceCount,
		CascadeEstimate:      price(r.CascadeEstimate),
	}
	if r.Server != "" {
		out.Server = r.Server
	}
	for _, ing := range r.Ingredients {
		out.Ingredients = append(out.Ingredients, domain.IngredientRecord{
			ItemID:         ing.ItemID,
			Name:           ing.Name,
			IconRef:        ing.Icon,
			Quantity:       ing.Quantity,
			UnitPrice:      price(ing.UnitPrice),
			PriceUpdatedAt: timeOrZero(ing.PriceUpdatedAt),
			SubRecipeRef:   ing.SubRecipeID,
		})
	}
	return out
}

func price(d *decimal.Decimal) domain.Price {
	if d == nil {
		return domain.UnknownPrice()
	}
	return domain.KnownPrice(*d)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
