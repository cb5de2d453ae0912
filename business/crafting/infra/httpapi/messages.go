package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/craftcalc/business/crafting/app"
	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
)

type openSessionRequest struct {
	RecipeID  string `json:"recipe_id" binding:"required"`
	Server    string `json:"server"`
	ProfileID string `json:"profile_id"`
}

type toggleRequest struct {
	Path string `json:"path" binding:"required"`
}

type stockRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type treeResponse struct {
	SessionID      string          `json:"session_id,omitempty"`
	RecipeID       string          `json:"recipe_id"`
	Server         string          `json:"server,omitempty"`
	Result         itemResponse    `json:"result"`
	Variant        string          `json:"variant"`
	ProfileID      string          `json:"profile_id,omitempty"`
	CanExpandAll   bool            `json:"can_expand_all"`
	CanCollapseAll bool            `json:"can_collapse_all"`
	Summary        summaryResponse `json:"summary"`
	Rows           []rowResponse   `json:"rows"`
	Roots          []nodeResponse  `json:"roots"`
}

type itemResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type nodeResponse struct {
	ItemID         int                   `json:"item_id"`
	Name           string                `json:"name"`
	Icon           string                `json:"icon,omitempty"`
	Quantity       int                   `json:"quantity"`
	UnitPrice      domain.Price          `json:"unit_price"`
	PriceUpdatedAt *time.Time            `json:"price_updated_at"`
	SubRecipeID    string                `json:"sub_recipe_id,omitempty"`
	OwnedQuantity  *int                  `json:"owned_quantity,omitempty"`
	State          domain.ExpansionState `json:"state"`
	Children       []nodeResponse        `json:"children,omitempty"`
}

type rowResponse struct {
	Path     string                `json:"path"`
	Depth    int                   `json:"depth"`
	ItemID   int                   `json:"item_id"`
	Name     string                `json:"name"`
	State    domain.ExpansionState `json:"state"`
	Cost     decimal.Decimal       `json:"cost"`
	Complete bool                  `json:"complete"`
	Share    decimal.Decimal       `json:"share"`
	Stock    *stockLineResponse    `json:"stock,omitempty"`
}

type stockLineResponse struct {
	Owned             int             `json:"owned"`
	Missing           int             `json:"missing"`
	OwnedValue        decimal.Decimal `json:"owned_value"`
	MissingCost       decimal.Decimal `json:"missing_cost"`
	MarketMissingCost decimal.Decimal `json:"market_missing_cost"`
	Savings           decimal.Decimal `json:"savings"`
	Complete          bool            `json:"complete"`
}

type summaryResponse struct {
	SellPrice            domain.Price     `json:"sell_price"`
	SellPriceKnown       bool             `json:"sell_price_known"`
	TotalCost            decimal.Decimal  `json:"total_cost"`
	Margin               decimal.Decimal  `json:"margin"`
	ROI                  decimal.Decimal  `json:"roi"`
	Complete             bool             `json:"complete"`
	OwnedValue           *decimal.Decimal `json:"owned_value,omitempty"`
	CostToComplete       *decimal.Decimal `json:"cost_to_complete,omitempty"`
	MarginToComplete     *decimal.Decimal `json:"margin_to_complete,omitempty"`
	ROIToComplete        *decimal.Decimal `json:"roi_to_complete,omitempty"`
	QuickEstimate        domain.Price     `json:"quick_estimate"`
	SellPriceFreshness   domain.Freshness `json:"sell_price_freshness"`
	IngredientFreshness  domain.Freshness `json:"ingredient_freshness"`
	KnownPriceCount      int              `json:"known_price_count"`
	TotalIngredientCount int              `json:"total_ingredient_count"`
}

type expandResponse struct {
	Tree   treeResponse   `json:"tree"`
	Report reportResponse `json:"report"`
}

type reportResponse struct {
	Levels   int               `json:"levels"`
	Fetched  int               `json:"fetched"`
	Reused   int               `json:"reused"`
	Expanded int               `json:"expanded"`
	Canceled bool              `json:"canceled"`
	Failures []failureResponse `json:"failures"`
}

type failureResponse struct {
	Path        string `json:"path"`
	SubRecipeID string `json:"sub_recipe_id"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

func newTreeResponse(sessionID string, tree *domain.RecipeTree, s domain.Summary) treeResponse {
	out := treeResponse{
		SessionID:      sessionID,
		RecipeID:       tree.RecipeID,
		Server:         tree.Server,
		Result:         itemResponse{ID: tree.ResultItemID, Name: tree.ResultName},
		Variant:        tree.Variant.String(),
		ProfileID:      tree.ProfileID,
		CanExpandAll:   app.CanExpandAll(tree),
		CanCollapseAll: app.CanCollapseAll(tree),
		Summary:        newSummaryResponse(s),
		Rows:           []rowResponse{},
		Roots:          newNodes(tree.Roots, tree.Variant),
	}
	for _, r := range domain.Rows(tree) {
		row := rowResponse{
			Path:     r.Path.String(),
			Depth:    r.Depth,
			ItemID:   r.Node.ItemID,
			Name:     r.Node.Name,
			State:    r.Node.State,
			Cost:     r.Cost,
			Complete: r.IsComplete,
			Share:    r.Share,
		}
		if r.Stock != nil {
			row.Stock = &stockLineResponse{
				Owned:             r.Stock.OwnedQuantity,
				Missing:           r.Stock.MissingQuantity,
				OwnedValue:        r.Stock.OwnedValue,
				MissingCost:       r.Stock.MissingCost,
				MarketMissingCost: r.Stock.MarketMissingCost,
				Savings:           r.Stock.Savings(),
				Complete:          r.Stock.IsComplete,
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func newNodes(nodes []*domain.IngredientNode, variant domain.Variant) []nodeResponse {
	out := make([]nodeResponse, 0, len(nodes))
	for _, n := range nodes {
		nr := nodeResponse{
			ItemID:      n.ItemID,
			Name:        n.Name,
			Icon:        n.IconRef,
			Quantity:    n.RequiredQuantity,
			UnitPrice:   n.UnitPrice,
			SubRecipeID: n.SubRecipeRef,
			State:       n.State,
		}
		if !n.PriceUpdatedAt.IsZero() {
			at := n.PriceUpdatedAt
			nr.PriceUpdatedAt = &at
		}
		if variant == domain.VariantStock {
			owned := n.OwnedQuantity
			nr.OwnedQuantity = &owned
		}
		if len(n.Children) > 0 {
			nr.Children = newNodes(n.Children, variant)
		}
		out = append(out, nr)
	}
	return out
}

func newSummaryResponse(s domain.Summary) summaryResponse {
	out := summaryResponse{
		SellPrice:            s.SellPrice,
		SellPriceKnown:       s.SellPriceKnown,
		TotalCost:            s.TotalCost,
		Margin:               s.Margin,
		ROI:                  s.ROI,
		Complete:             s.IsComplete,
		QuickEstimate:        s.QuickEstimate,
		SellPriceFreshness:   s.SellPriceFreshness,
		IngredientFreshness:  s.IngredientFreshness,
		KnownPriceCount:      s.KnownPriceCount,
		TotalIngredientCount: s.TotalIngredientCount,
	}
	if s.Variant == domain.VariantStock {
		out.OwnedValue = &s.OwnedValue
		out.CostToComplete = &s.CostToComplete
		out.MarginToComplete = &s.MarginToComplete
		out.ROIToComplete = &s.ROIToComplete
	}
	return out
}

func newReportResponse(r *app.ExpandReport) reportResponse {
	out := reportResponse{
		Levels:   r.Levels,
		Fetched:  r.Fetched,
		Reused:   r.Reused,
		Expanded: r.Expanded,
		Canceled: r.Canceled,
		Failures: []failureResponse{},
	}
	for _, f := range r.Failures {
		fr := failureResponse{
			Path:        f.Path.String(),
			SubRecipeID: f.SubRecipeRef,
			Code:        string(apperror.GetCode(f.Err)),
		}
		if f.Err != nil {
			fr.Message = f.Err.Error()
		}
		out.Failures = append(out.Failures, fr)
	}
	return out
}
