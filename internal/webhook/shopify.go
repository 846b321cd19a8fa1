package webhook

import (
	"encoding/json"
	"strconv"

	"github.com/pixeltracker/capi-relay/internal/domain"
)

// Shopify webhook topics with built-in mappings.
const (
	TopicProductsView    = "products/view"
	TopicProductsCreate  = "products/create"
	TopicProductsUpdate  = "products/update"
	TopicCartAdd         = "cart/add"
	TopicCartUpdate      = "cart/update"
	TopicCheckoutsCreate = "checkouts/create"
	TopicCheckoutsUpdate = "checkouts/update"
	TopicOrdersCreate    = "orders/create"
	TopicOrdersPaid      = "orders/paid"
)

const defaultCurrency = "BRL"

func (r *Registry) registerShopifyMappers() {
	r.RegisterMapper(TopicProductsView, mapProductView)
	r.RegisterMapper(TopicProductsCreate, mapNothing)
	r.RegisterMapper(TopicProductsUpdate, mapNothing)
	r.RegisterMapper(TopicCartAdd, mapAddToCart)
	r.RegisterMapper(TopicCartUpdate, mapNothing)
	r.RegisterMapper(TopicCheckoutsCreate, mapInitiateCheckout)
	r.RegisterMapper(TopicCheckoutsUpdate, mapNothing)
	// orders/create and orders/paid share one mapper so the paid gate can't
	// drift between the two topics
	r.RegisterMapper(TopicOrdersCreate, mapOrderPlaced)
	r.RegisterMapper(TopicOrdersPaid, mapOrderPlaced)
}

type shopifyVariant struct {
	Price string `json:"price"`
}

type shopifyProduct struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	ProductType string           `json:"product_type"`
	Variants    []shopifyVariant `json:"variants"`
}

type shopifyCartItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

type shopifyLineItem struct {
	ProductID int64  `json:"product_id"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

type shopifyCheckout struct {
	ID         int64             `json:"id"`
	TotalPrice string            `json:"total_price"`
	LineItems  []shopifyLineItem `json:"line_items"`
}

type shopifyOrder struct {
	ID              int64             `json:"id"`
	FinancialStatus string            `json:"financial_status"`
	TotalPrice      string            `json:"total_price"`
	Currency        string            `json:"currency"`
	LineItems       []shopifyLineItem `json:"line_items"`
}

// mapNothing covers administrative topics (product create/update, generic
// cart and checkout updates) that are not user actions worth tracking.
func mapNothing(domain.WebhookEvent) *domain.TrackingEvent {
	return nil
}

func mapProductView(ev domain.WebhookEvent) *domain.TrackingEvent {
	var product shopifyProduct
	if err := json.Unmarshal(ev.Payload, &product); err != nil || product.ID == 0 {
		return nil
	}

	price := 0.0
	if len(product.Variants) > 0 {
		price = parsePrice(product.Variants[0].Price)
	}

	return &domain.TrackingEvent{
		EventName:    domain.EventViewContent,
		EventTime:    ev.Timestamp,
		ActionSource: domain.ActionSourceWebsite,
		CustomData: map[string]any{
			"content_type":     "product",
			"content_ids":      []string{strconv.FormatInt(product.ID, 10)},
			"content_name":     product.Title,
			"content_category": product.ProductType,
			"value":            price,
			"currency":         defaultCurrency,
		},
	}
}

func mapAddToCart(ev domain.WebhookEvent) *domain.TrackingEvent {
	var item shopifyCartItem
	if err := json.Unmarshal(ev.Payload, &item); err != nil || item.ID == 0 {
		return nil
	}

	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	price := parsePrice(item.Price)
	productID := strconv.FormatInt(item.ProductID, 10)

	return &domain.TrackingEvent{
		EventName:    domain.EventAddToCart,
		EventTime:    ev.Timestamp,
		ActionSource: domain.ActionSourceWebsite,
		CustomData: map[string]any{
			"content_type": "product",
			"content_ids":  []string{productID},
			"content_name": item.Title,
			"value":        price * float64(quantity),
			"currency":     defaultCurrency,
			"contents": []domain.Content{
				{ID: productID, Quantity: quantity, ItemPrice: price},
			},
		},
	}
}

func mapInitiateCheckout(ev domain.WebhookEvent) *domain.TrackingEvent {
	var checkout shopifyCheckout
	if err := json.Unmarshal(ev.Payload, &checkout); err != nil || checkout.ID == 0 {
		return nil
	}

	contents, numItems := lineItemContents(checkout.LineItems)

	return &domain.TrackingEvent{
		EventName:    domain.EventInitiateCheckout,
		EventID:      "checkout_" + strconv.FormatInt(checkout.ID, 10),
		EventTime:    ev.Timestamp,
		ActionSource: domain.ActionSourceWebsite,
		CustomData: map[string]any{
			"content_type": "product",
			"contents":     contents,
			"value":        parsePrice(checkout.TotalPrice),
			"currency":     defaultCurrency,
			"num_items":    numItems,
		},
	}
}

// mapOrderPlaced handles both orders/create and orders/paid. An order only
// becomes a Purchase once its payment status is paid or partially_paid; an
// unpaid order yields no event and the later orders/paid webhook covers it.
func mapOrderPlaced(ev domain.WebhookEvent) *domain.TrackingEvent {
	var order shopifyOrder
	if err := json.Unmarshal(ev.Payload, &order); err != nil || order.ID == 0 {
		return nil
	}

	if order.FinancialStatus != "paid" && order.FinancialStatus != "partially_paid" {
		return nil
	}

	contents, numItems := lineItemContents(order.LineItems)

	currency := order.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	// Keyed to the order so Shopify redeliveries and the create/paid pair
	// dedupe to one Purchase on the remote side
	return &domain.TrackingEvent{
		EventName:    domain.EventPurchase,
		EventID:      "purchase_" + strconv.FormatInt(order.ID, 10),
		EventTime:    ev.Timestamp,
		ActionSource: domain.ActionSourceWebsite,
		CustomData: map[string]any{
			"content_type": "product",
			"contents":     contents,
			"value":        parsePrice(order.TotalPrice),
			"currency":     currency,
			"num_items":    numItems,
			"order_id":     strconv.FormatInt(order.ID, 10),
		},
	}
}

func lineItemContents(items []shopifyLineItem) ([]domain.Content, int) {
	contents := make([]domain.Content, 0, len(items))
	total := 0
	for _, item := range items {
		contents = append(contents, domain.Content{
			ID:        strconv.FormatInt(item.ProductID, 10),
			Quantity:  item.Quantity,
			ItemPrice: parsePrice(item.Price),
		})
		total += item.Quantity
	}
	return contents, total
}

func parsePrice(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
