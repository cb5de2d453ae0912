package pricefeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
)

// Frame types sent by the price service.
const (
	frameTick      = "tick"
	frameBatch     = "batch"
	frameHeartbeat = "heartbeat"
	frameError     = "error"
)

type subscribeRequest struct {
	Op     string `json:"op"`
	Server string `json:"server,omitempty"`
}

type frame struct {
	Type    string        `json:"type"`
	Ticks   []tickMessage `json:"ticks,omitempty"`
	Message string        `json:"message,omitempty"`
	tickMessage
}

type tickMessage struct {
	ItemID int              `json:"item_id"`
	Server string           `json:"server"`
	Price  *decimal.Decimal `json:"price"`
	At     *time.Time       `json:"at"`
}

func (m tickMessage) toDomain(received time.Time) (domain.PriceTick, error) {
	switch {
	case m.ItemID <= 0:
		return domain.PriceTick{}, invalidTick(fmt.Sprintf("item id %d", m.ItemID))
	case m.Price == nil:
		return domain.PriceTick{}, invalidTick(fmt.Sprintf("item %d has no price", m.ItemID))
	case m.Price.IsNegative():
		return domain.PriceTick{}, invalidTick(fmt.Sprintf("item %d has a negative price", m.ItemID))
	}
	at := received
	if m.At != nil {
		at = *m.At
	}
	return domain.PriceTick{ItemID: m.ItemID, Server: m.Server, Price: *m.Price, At: at}, nil
}

// decodeFrame returns the valid ticks of one frame and the errors for the
// rejected ones. Unknown frame types yield nothing.
func decodeFrame(raw []byte, received time.Time) ([]domain.PriceTick, []error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, []error{apperror.New(apperror.CodeInvalidPriceTick, apperror.WithCause(err))}
	}

	var msgs []tickMessage
	switch f.Type {
	case frameTick:
		msgs = []tickMessage{f.tickMessage}
	case frameBatch:
		msgs = f.Ticks
	case frameError:
		return nil, []error{apperror.New(apperror.CodeExternalServiceError, apperror.WithContext(f.Message))}
	default:
		return nil, nil
	}

	ticks := make([]domain.PriceTick, 0, len(msgs))
	var errs []error
	for _, m := range msgs {
		t, err := m.toDomain(received)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ticks = append(ticks, t)
	}
	return ticks, errs
}

func invalidTick(detail string) error {
	return apperror.New(apperror.CodeInvalidPriceTick, apperror.WithContext(detail))
}
