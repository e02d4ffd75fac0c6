package push

import (
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/render"
)

// Compose renders cfg's template for product into a message for cfg's group
func Compose(cfg *model.BroadcastConfig, product *model.Product) Message {
	if cfg == nil || product == nil {
		return Message{}
	}
	return Message{
		Target:   cfg.TargetGroup,
		Text:     render.Render(cfg.Template, render.FieldsFromProduct(product)),
		ImageURL: product.ImageURL,
	}
}
