package compose_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/compose"
	"github.com/Veraticus/shopassist/internal/mocks"
	"github.com/Veraticus/shopassist/internal/resolver"
)

func hoodie() *catalog.Product {
	return &catalog.Product{
		ID:             "7",
		Title:          "Blue Hoodie",
		Vendor:         "Acme",
		Price:          40,
		CompareAtPrice: 50,
		Inventory:      3,
		Images: []catalog.Image{
			{Src: "https://cdn.example.com/1.jpg"},
			{Src: "https://cdn.example.com/2.jpg"},
			{Src: "https://cdn.example.com/3.jpg"},
			{Src: "https://cdn.example.com/4.jpg"},
			{Src: "https://cdn.example.com/5.jpg"},
		},
		Options: []catalog.Option{
			{Name: "Color", Position: 1, Values: []string{"Navy", "Blue"}},
			{Name: "Size", Position: 2, Values: []string{"M", "L"}},
		},
		Variants: []catalog.Variant{
			{Title: "Blue / M", Price: 40, Inventory: 2, Option1: "Blue", Option2: "M"},
			{Title: "Navy / L", Price: 40, Inventory: 1, Option1: "Navy", Option2: "L"},
		},
	}
}

func newComposer(t *testing.T, model *mocks.ScriptedLLM) *compose.Composer {
	t.Helper()
	c, err := compose.New(model)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresLLM(t *testing.T) {
	_, err := compose.New(nil)
	assert.Error(t, err)
}

func TestProductAnswer_UsesModel(t *testing.T) {
	model := mocks.NewScriptedLLM(mocks.WithStrictMode())
	model.AddPatternScript("Blue Hoodie", "It comes in Navy and Blue.")
	c := newComposer(t, model)

	got := c.ProductAnswer(context.Background(), hoodie(), "what colors are available?", resolver.TypeColor)
	assert.Equal(t, "It comes in Navy and Blue.", got)

	require.Equal(t, 1, model.CallCount())
	req := model.Calls()[0].Request
	assert.Contains(t, req.System, "color options")
	assert.Contains(t, req.System, "- Color: Blue, Navy")
	assert.Contains(t, req.System, "20% OFF! Save $10.00 (was $50.00)")
}

func TestWithPersona(t *testing.T) {
	model := mocks.NewScriptedLLM(mocks.WithFallback("Happy to help."))
	c, err := compose.New(model, compose.WithPersona("  You are the assistant for Acme Outfitters.\n"))
	require.NoError(t, err)

	assert.Equal(t, "Happy to help.", c.GeneralAnswer(context.Background(), "tell me a joke"))
	require.Equal(t, 1, model.CallCount())
	assert.True(t, strings.HasPrefix(model.Calls()[0].Request.System, "You are the assistant for Acme Outfitters.\n\n"))
}

func TestProductAnswer_ImagesSkipModel(t *testing.T) {
	model := mocks.NewScriptedLLM(mocks.WithStrictMode())
	c := newComposer(t, model)

	got := c.ProductAnswer(context.Background(), hoodie(), "show me pictures", resolver.TypeImages)
	assert.Zero(t, model.CallCount())
	assert.Contains(t, got, "**Image 1:** https://cdn.example.com/1.jpg")
	assert.Contains(t, got, "**Image 3:** https://cdn.example.com/3.jpg")
	assert.NotContains(t, got, "**Image 4:**")
	assert.Contains(t, got, "*And 2 more images available.*")

	bare := &catalog.Product{Title: "Plain Tee"}
	assert.Equal(t, "I don't have any images available for **Plain Tee** in our current database.", compose.ImagesAnswer(bare))
}

func TestProductAnswer_FallbackPerType(t *testing.T) {
	model := mocks.NewScriptedLLM(mocks.WithFallbackError(errors.New("quota exceeded")))
	c := newComposer(t, model)
	ctx := context.Background()
	p := hoodie()

	tests := []struct {
		qtype resolver.QuestionType
		want  string
	}{
		{resolver.TypeColor, "The **Blue Hoodie** is available in these color options: Blue, Navy."},
		{resolver.TypeSize, "The **Blue Hoodie** is available in these size options: L, M."},
		{resolver.TypeMaterial, "The **Blue Hoodie** comes in its standard material. Let me know if you'd like more details!"},
		{resolver.TypePrice, "The **Blue Hoodie** is priced at $40.00. 20% OFF! Save $10.00 (was $50.00)."},
		{resolver.TypeDiscount, "Good news! The **Blue Hoodie** is 20% off. You save $10.00 (was $50.00)."},
		{resolver.TypeAvailability, "Yes, the **Blue Hoodie** is in stock (3 units available)."},
	}
	for _, tt := range tests {
		t.Run(string(tt.qtype), func(t *testing.T) {
			assert.Equal(t, tt.want, c.ProductAnswer(ctx, p, "question", tt.qtype))
		})
	}

	opts := c.ProductAnswer(ctx, p, "what options", resolver.TypeOptions)
	assert.Equal(t, "The **Blue Hoodie** comes with these options:\n- Color: Blue, Navy\n- Size: L, M", opts)

	plain := &catalog.Product{Title: "Mug", Price: 8}
	assert.Equal(t, "The **Mug** doesn't have a discount right now. It's priced at $8.00.",
		compose.ProductFallback(plain, resolver.TypeDiscount))
	assert.Equal(t, "Sorry, the **Mug** is currently out of stock.",
		compose.ProductFallback(plain, resolver.TypeAvailability))
	assert.Equal(t, "Here's information about the **Mug**: $8.00. No current discount. Let me know what specific details you'd like to know!",
		compose.ProductFallback(plain, resolver.TypeGeneral))
}

func TestProductAnswer_EmptyModelReplyFallsBack(t *testing.T) {
	model := mocks.NewScriptedLLM()
	model.AddSimpleScript("   ")
	c := newComposer(t, model)

	got := c.ProductAnswer(context.Background(), &catalog.Product{Title: "Mug", Price: 8}, "price?", resolver.TypePrice)
	assert.Equal(t, "The **Mug** is priced at $8.00. No current discount.", got)
}

func TestProductAnswer_NilProduct(t *testing.T) {
	c := newComposer(t, mocks.NewScriptedLLM())
	assert.Equal(t, compose.NoProductReply, c.ProductAnswer(context.Background(), nil, "price?", resolver.TypePrice))
}

func sampleOrder() *catalog.Order {
	return &catalog.Order{
		OrderNumber:     1234,
		Email:           "a@b.com",
		FinancialStatus: "paid",
		TotalPrice:      42.5,
		Currency:        "USD",
		CreatedAt:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		LineItems: []catalog.LineItem{
			{Name: "Blue Hoodie", Quantity: 1, Price: 40},
			{Name: "Sticker", Quantity: 2, Price: 1.25},
		},
		ShippingAddress: &catalog.Address{Name: "Ada", Address1: "1 Main St", City: "Springfield", Province: "IL", Zip: "62701", Country: "US"},
	}
}

func TestOrderAnswer_Deterministic(t *testing.T) {
	model := mocks.NewScriptedLLM(mocks.WithStrictMode())
	c := newComposer(t, model)
	ctx := context.Background()
	o := sampleOrder()

	status := c.OrderAnswer(ctx, o, "what's the status of my order?", "")
	assert.Contains(t, status, "**Payment Status:** Paid\nYour payment has been processed successfully.")
	assert.Contains(t, status, "**Shipping Status:** Unfulfilled\nYour order hasn't been shipped yet.")
	assert.Contains(t, status, "You'll receive a tracking number once it's dispatched.")

	items := c.OrderAnswer(ctx, o, "what items did I get", "")
	assert.Contains(t, items, "• 1x Blue Hoodie - $40.00 each")
	assert.Contains(t, items, "• 2x Sticker - $1.25 each")
	assert.Contains(t, items, "**Total:** 3 items - $42.50 USD")

	addr := c.OrderAnswer(ctx, o, "what's the shipping address?", "")
	assert.Contains(t, addr, "**Shipping Address:**\nName: Ada\nAddress: 1 Main St\nLocation: Springfield, IL, 62701\nCountry: US")

	billing := c.OrderAnswer(ctx, o, "show me the address", "billing")
	assert.Contains(t, billing, "No billing address found for this order.")

	assert.Zero(t, model.CallCount())
}

func TestOrderAnswer_ModelAndFallback(t *testing.T) {
	model := mocks.NewScriptedLLM()
	model.AddSimpleScript("Your order was placed on March 1.")
	model.AddErrorScript(errors.New("timeout"))
	c := newComposer(t, model)
	o := sampleOrder()

	assert.Equal(t, "Your order was placed on March 1.", c.OrderAnswer(context.Background(), o, "when did I buy this?", ""))
	assert.True(t, strings.Contains(model.Calls()[0].Request.System, "Order #1234"))

	assert.Equal(t,
		"I found your order #1234. Status: paid (Payment), unfulfilled (Shipping). Total: $42.50 USD. Please let me know if you have specific questions!",
		c.OrderAnswer(context.Background(), o, "when did I buy this?", ""))
}

func TestGeneralAnswer(t *testing.T) {
	model := mocks.NewScriptedLLM()
	model.AddPatternScript("weather", "I can't check the weather, but I can help you shop!")
	c := newComposer(t, model)
	ctx := context.Background()

	assert.Equal(t, compose.GreetingReply, c.GeneralAnswer(ctx, "hey there"))
	assert.Equal(t, compose.HelpReply, c.GeneralAnswer(ctx, "can you help me?"))
	assert.Equal(t, compose.ThanksReply, c.GeneralAnswer(ctx, "thanks a lot"))
	// "this" and "shirt" must not read as a greeting.
	assert.NotEqual(t, compose.GreetingReply, c.GeneralAnswer(ctx, "this shirt weather"))
	assert.Equal(t, "I can't check the weather, but I can help you shop!", c.GeneralAnswer(ctx, "how's the weather"))

	failing := newComposer(t, mocks.NewScriptedLLM(mocks.WithFallbackError(errors.New("down"))))
	assert.Equal(t, compose.GeneralReply, failing.GeneralAnswer(ctx, "tell me a joke"))
}

func TestFollowUps(t *testing.T) {
	got := compose.FollowUps(resolver.TypeColor)
	assert.Len(t, got, compose.MaxFollowUps)
	for _, q := range got {
		assert.NotContains(t, strings.ToLower(q), "color")
	}
	assert.Equal(t, "What sizes are available?", got[0])

	price := compose.FollowUps(resolver.TypePrice)
	for _, q := range price {
		assert.NotContains(t, q, "cost")
	}

	assert.Equal(t, []string{
		"Is this available in other colors?",
		"What sizes are available?",
		"Tell me about the material",
		"Is there any discount on this?",
	}, compose.FollowUps(resolver.TypeGeneral))
}

func TestClarify(t *testing.T) {
	assert.Equal(t,
		"I only showed 2 products in the last results, so I'm not sure which one you mean by #5. Could you pick a number between 1 and 2?",
		compose.Clarify(resolver.Resolution{Position: 5}, 2))
	assert.Contains(t, compose.Clarify(resolver.Resolution{Position: 1}, 0), "recent search results")
	assert.Equal(t, compose.NoProductReply, compose.Clarify(resolver.Resolution{}, 3))
}
