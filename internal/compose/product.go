package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/llm"
	"github.com/Veraticus/shopassist/internal/resolver"
)

// MaxListedImages is how many image links an images answer lists.
const MaxListedImages = 3

// NoProductReply answers a product question with nothing to answer about.
const NoProductReply = "I don't have information about a specific product right now. Could you tell me which product you're asking about?"

var questionFocus = map[resolver.QuestionType]string{
	resolver.TypePrice:        "The user is asking about pricing. Focus on the current price, any discounts, and value information.",
	resolver.TypeDiscount:     "The user is asking about discounts or sales. Check if there are any current discounts and highlight savings.",
	resolver.TypeAvailability: "The user is asking about stock/availability. Focus on inventory levels and availability status.",
	resolver.TypeMaterial:     "The user is asking about materials or fabric. Focus on what the product is made of and material properties.",
	resolver.TypeOptions:      "The user is asking about product options or features. Provide comprehensive option information.",
}

const productInstructions = `Answer specifically about THIS product only.
Be direct and focused on the exact question.
Use only the product information provided above.
If asked about options, list what is actually available.
If asked about price or discount, use the exact pricing provided.
If asked about availability, use the inventory information provided.
If the information asked for isn't available, say so clearly.`

// ProductAnswer answers question about p. Image questions are answered from
// the record directly.
func (c *Composer) ProductAnswer(ctx context.Context, p *catalog.Product, question string, qtype resolver.QuestionType) string {
	if p == nil {
		return NoProductReply
	}
	if qtype == resolver.TypeImages {
		return ImagesAnswer(p)
	}

	opts := catalog.ExtractOptions(p)
	system := fmt.Sprintf("You are a helpful e-commerce assistant. %s\n\nThe user is asking about THIS SPECIFIC PRODUCT:\n%s\n%s",
		focusFor(qtype, opts), productContext(p, opts), productInstructions)
	out, ok := c.generate(ctx, "product", llm.Request{
		System:      system,
		User:        fmt.Sprintf("Please answer my question about %s: %s", p.Title, question),
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if ok {
		return out
	}
	return ProductFallback(p, qtype)
}

// ImagesAnswer lists the first image links of p.
func ImagesAnswer(p *catalog.Product) string {
	if len(p.Images) == 0 {
		return fmt.Sprintf("I don't have any images available for **%s** in our current database.", p.Title)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the available images for **%s**:\n", p.Title)
	for i, img := range p.Images {
		if i == MaxListedImages {
			break
		}
		fmt.Fprintf(&b, "\n**Image %d:** %s", i+1, img.Src)
	}
	if extra := len(p.Images) - MaxListedImages; extra > 0 {
		fmt.Fprintf(&b, "\n\n*And %d more images available.*", extra)
	}
	return b.String()
}

// ProductFallback answers without the model.
func ProductFallback(p *catalog.Product, qtype resolver.QuestionType) string {
	opts := catalog.ExtractOptions(p)
	switch qtype {
	case resolver.TypeImages:
		return ImagesAnswer(p)
	case resolver.TypeColor, resolver.TypeSize, resolver.TypeMaterial:
		name, ok := opts.Has(string(qtype))
		if !ok || len(opts.Values[name]) == 0 {
			return fmt.Sprintf("The **%s** comes in its standard %s. Let me know if you'd like more details!", p.Title, qtype)
		}
		return fmt.Sprintf("The **%s** is available in these %s options: %s.",
			p.Title, strings.ToLower(name), strings.Join(opts.Values[name], ", "))
	case resolver.TypePrice:
		return fmt.Sprintf("The **%s** is priced at %s. %s.", p.Title, priceText(p), discountText(p))
	case resolver.TypeDiscount:
		if percent, savings, ok := p.Discount(); ok {
			return fmt.Sprintf("Good news! The **%s** is %d%% off. You save %s (was %s).",
				p.Title, percent, catalog.FormatPrice(savings), catalog.FormatPrice(p.CompareAtPrice.Float()))
		}
		return fmt.Sprintf("The **%s** doesn't have a discount right now. It's priced at %s.", p.Title, priceText(p))
	case resolver.TypeAvailability:
		if p.InStock() {
			return fmt.Sprintf("Yes, the **%s** is in stock (%d units available).", p.Title, p.Inventory)
		}
		return fmt.Sprintf("Sorry, the **%s** is currently out of stock.", p.Title)
	case resolver.TypeOptions:
		if len(opts.Names) == 0 {
			return fmt.Sprintf("The **%s** comes in a single standard version.", p.Title)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "The **%s** comes with these options:", p.Title)
		for _, name := range opts.Names {
			fmt.Fprintf(&b, "\n- %s: %s", name, strings.Join(opts.Values[name], ", "))
		}
		return b.String()
	default:
		return fmt.Sprintf("Here's information about the **%s**: %s. %s. Let me know what specific details you'd like to know!",
			p.Title, priceText(p), discountText(p))
	}
}

func focusFor(qtype resolver.QuestionType, opts catalog.OptionSet) string {
	if name, ok := opts.Has(string(qtype)); ok && qtype != resolver.TypeNone {
		lower := strings.ToLower(name)
		return fmt.Sprintf("The user is asking about %s options. Focus on available %s values and their availability.", lower, lower)
	}
	if f, ok := questionFocus[qtype]; ok {
		return f
	}
	return "Provide helpful product information based on the user's question."
}

func productContext(p *catalog.Product, opts catalog.OptionSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", p.Title)
	fmt.Fprintf(&b, "- Price: %s\n", priceText(p))
	fmt.Fprintf(&b, "- Discount: %s\n", discountText(p))
	fmt.Fprintf(&b, "- Vendor: %s\n", orNA(p.Vendor))
	fmt.Fprintf(&b, "- Type: %s\n", orNA(p.ProductType))
	fmt.Fprintf(&b, "- In Stock: %d units\n", p.Inventory)
	fmt.Fprintf(&b, "- Images Available: %d images\n", len(p.Images))
	if d := strings.TrimSpace(p.Description); d != "" {
		fmt.Fprintf(&b, "- Description: %s\n", d)
	}
	if len(opts.Names) > 0 {
		b.WriteString("\nAvailable Options:\n")
		for _, name := range opts.Names {
			if vals := opts.Values[name]; len(vals) > 0 {
				fmt.Fprintf(&b, "- %s: %s\n", name, strings.Join(vals, ", "))
			}
		}
	}
	if len(opts.Variants) > 0 {
		b.WriteString("\nVariant Details:\n")
		for i, v := range opts.Variants {
			if i == 3 {
				break
			}
			stock := "Out of Stock"
			if v.InStock {
				stock = fmt.Sprintf("In Stock: %d units", v.Inventory)
			}
			fmt.Fprintf(&b, "- %s: %s (%s)\n", v.Title, catalog.FormatPrice(v.Price), stock)
		}
	}
	return b.String()
}

func priceText(p *catalog.Product) string {
	if p.Price.Float() <= 0 {
		return "Price not available"
	}
	return catalog.FormatPrice(p.Price.Float())
}

func discountText(p *catalog.Product) string {
	percent, savings, ok := p.Discount()
	if !ok {
		return "No current discount"
	}
	return fmt.Sprintf("%d%% OFF! Save %s (was %s)", percent, catalog.FormatPrice(savings), catalog.FormatPrice(p.CompareAtPrice.Float()))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
