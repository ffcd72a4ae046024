package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/catalog"
	"fabrics-catalog-service/internal/domain"
)

const subtitleDescriptionRunes = 60

// CatalogReader provides the current catalog view.
type CatalogReader interface {
	Hierarchy(ctx context.Context) (*catalog.Hierarchy, domain.Snapshot, error)
}

// FAQResponder answers free text. An empty answer means "nothing to say".
type FAQResponder interface {
	Answer(ctx context.Context, question string) string
}

// Engine decides the reply to an inbound event. It holds no per-customer state, so
// processing a duplicate delivery just produces the same reply again.
type Engine struct {
	catalog CatalogReader
	faq     FAQResponder
	msgs    Messages
}

// NewEngine creates an Engine. faq may be nil.
func NewEngine(reader CatalogReader, faq FAQResponder, msgs Messages) *Engine {
	return &Engine{catalog: reader, faq: faq, msgs: msgs}
}

// Respond computes the replies to ev. It never fails: every problem is turned into
// a message for the customer.
func (e *Engine) Respond(ctx context.Context, ev Event) []Response {
	logger := log.WithFields(log.Fields{"channel": ev.Channel, "sender": ev.SenderID, "kind": ev.Kind.String()})

	var prefix []Response
	token := Token{Action: ActionShowMain}

	switch ev.Kind {
	case KindPostback:
		t, err := ParseToken(ev.Payload)
		if err != nil {
			logger.WithError(err).Debug("conversation: unrecognized postback, showing main categories")
		} else {
			token = t
		}
	case KindText:
		if answer := e.answer(ctx, ev.Text); answer != "" {
			prefix = append(prefix, TextMessage{Text: answer})
		}
	}

	h, snap, err := e.catalog.Hierarchy(ctx)
	if err != nil {
		logger.WithError(err).Error("conversation: catalog unavailable")
		return append(prefix, TextMessage{Text: e.msgs.Unavailable})
	}

	v := view{h: h, snap: snap, msgs: e.msgs}
	logger.WithField("action", token.Action.String()).Debug("conversation: handling event")

	switch token.Action {
	case ActionMainCategory:
		return append(prefix, v.mainCategory(token.MainID)...)
	case ActionSubCategory:
		return append(prefix, v.subCategory(token.SubID)...)
	case ActionProduct:
		return append(prefix, v.product(token.ProductID)...)
	default:
		return append(prefix, v.mainCategories()...)
	}
}

// answer consults the FAQ with at most half of the remaining handling budget, so the
// catalog reply can still be sent when the answer times out.
func (e *Engine) answer(ctx context.Context, text string) string {
	if e.faq == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Until(deadline)/2)
		defer cancel()
	}
	return e.faq.Answer(ctx, text)
}

// view renders one catalog snapshot.
type view struct {
	h    *catalog.Hierarchy
	snap domain.Snapshot
	msgs Messages
}

func (v view) mainCategories() []Response {
	mains := v.h.MainCategories()
	if len(mains) == 0 {
		return []Response{TextMessage{Text: v.msgs.NoCategories}}
	}
	options := make([]Option, 0, len(mains))
	for _, c := range mains {
		options = append(options, Option{Title: v.name(c.Name), Payload: MainCategoryToken(c.ID)})
	}
	return []Response{CategoryList{Prompt: v.msgs.ChooseMainCategory, Options: options}}
}

// notFound is the reply for a selection that no longer resolves.
func (v view) notFound() []Response {
	return append([]Response{TextMessage{Text: v.msgs.NoItems}}, v.mainCategories()...)
}

func (v view) mainCategory(mainID string) []Response {
	main, ok := v.h.Category(mainID)
	if !ok {
		return v.notFound()
	}
	subs := v.h.SubCategories(mainID)
	if len(subs) == 0 {
		return v.products(main, true)
	}
	options := make([]Option, 0, len(subs)+1)
	for _, sub := range subs {
		options = append(options, Option{Title: v.name(sub.Name), Payload: SubCategoryToken(mainID, sub.ID)})
	}
	options = append(options, Option{Title: v.msgs.BackTitle, Payload: BackToMain})
	return []Response{CategoryList{
		Prompt:  fmt.Sprintf(v.msgs.ChooseSubCategory, v.name(main.Name)),
		Options: options,
	}}
}

func (v view) subCategory(subID string) []Response {
	sub, ok := v.h.Category(subID)
	if !ok {
		return v.notFound()
	}
	return v.products(sub, false)
}

func (v view) products(c domain.Category, includeChildren bool) []Response {
	products := v.h.ProductsOf(v.snap.Products, c.ID, includeChildren)
	if len(products) == 0 {
		return append([]Response{TextMessage{Text: v.msgs.NoProducts}}, v.mainCategories()...)
	}
	cards := make([]ProductCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, ProductCard{
			ID:       p.ID,
			Title:    v.name(p.Name),
			Subtitle: v.subtitle(p),
			ImageURL: p.Image,
			Buttons: []Option{
				{Title: v.msgs.OrderTitle, Payload: ProductToken(p.ID)},
				{Title: v.msgs.BackTitle, Payload: BackToMain},
			},
		})
	}
	return []Response{ProductList{Title: fmt.Sprintf(v.msgs.ProductsOf, v.name(c.Name)), Products: cards}}
}

func (v view) product(productID string) []Response {
	p, ok := catalog.FindProduct(v.snap.Products, productID)
	if !ok {
		return v.notFound()
	}

	var b strings.Builder
	b.WriteString(v.name(p.Name))
	if p.Description != "" {
		b.WriteString("\n" + p.Description)
	}
	fmt.Fprintf(&b, "\n💰 %s %s", p.PricePerMeter.StringFixedBank(2), v.msgs.Currency)
	if path := v.categoryPath(p); path != "" {
		b.WriteString("\n📂 " + path)
	}
	if v.msgs.DetailFooter != "" {
		b.WriteString("\n\n" + v.msgs.DetailFooter)
	}

	buttons := make([]Option, 0, 2)
	if main, ok := v.h.Category(p.MainCategoryID); ok {
		buttons = append(buttons, Option{Title: "📂 " + v.name(main.Name), Payload: MainCategoryToken(main.ID)})
	}
	buttons = append(buttons, Option{Title: v.msgs.BackTitle, Payload: BackToMain})

	return []Response{Detail{Title: v.name(p.Name), Text: b.String(), ImageURL: p.Image, Buttons: buttons}}
}

func (v view) categoryPath(p domain.Product) string {
	parts := make([]string, 0, 2)
	for _, id := range []string{p.MainCategoryID, p.SubCategoryID} {
		if c, ok := v.h.Category(id); ok {
			parts = append(parts, v.name(c.Name))
		}
	}
	return strings.Join(parts, " / ")
}

func (v view) subtitle(p domain.Product) string {
	s := fmt.Sprintf("💰 %s %s", p.PricePerMeter.StringFixedBank(2), v.msgs.Currency)
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		return s
	}
	if utf8.RuneCountInString(desc) > subtitleDescriptionRunes {
		desc = string([]rune(desc)[:subtitleDescriptionRunes]) + "…"
	}
	return s + " | " + desc
}

func (v view) name(name string) string {
	if name == "" || name == domain.UnknownName {
		return v.msgs.Unnamed
	}
	return name
}
