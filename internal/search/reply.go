package search

import "fmt"

// Follow-up prompts offered with search replies.
var (
	SingleMatchFollowUps = []string{
		"What colors are available?",
		"What sizes does this come in?",
		"What's the price?",
		"Is there any discount?",
	}
	NoResultFollowUps = []string{
		"Show me shirts",
		"Find me a dress",
		"Show me shoes",
		"What's on sale?",
		"Show me new arrivals",
	}
)

// Reply renders the shopper-facing text for a search result.
func Reply(r *Result) string {
	text := body(r)
	if r.SimilarNotFound {
		text = fmt.Sprintf("I couldn't find product #%d from our recent results. ", r.SimilarTo) + text
	}
	return text
}

func body(r *Result) string {
	n := len(r.Products)
	filterText, inline := "", ""
	if d := r.Filters.Describe(); d != "" {
		filterText = " (" + d + ")"
		inline = " " + d
	}

	if r.Exhausted {
		return "That's all the products I found for your search" + filterText + "."
	}
	if r.Page > 1 {
		if n == 0 {
			return "That's all the products I found for your search" + filterText + "."
		}
		first := (r.Page-1)*PageSize + 1
		return fmt.Sprintf("Here are more results%s (showing %d-%d of %d).", inline, first, first+n-1, r.Total)
	}

	switch {
	case n == 0 && len(r.Suggestions) > 0 && r.Requested == 1:
		return "I couldn't find exactly what you're looking for" + filterText + ". Here are some related suggestions:"
	case n == 0 && len(r.Suggestions) > 0:
		return "I couldn't find exact matches for your search" + filterText + ". Here are some related suggestions:"
	case n == 0:
		return "I couldn't find any products" + filterText + " matching your search. Could you try different keywords or be more specific?"
	case r.Requested == 1:
		return "Here's the product" + filterText + " that matches your search: **" + r.Products[0].Title + "**"
	case r.Total == 1:
		return "I found 1 product" + filterText + " that matches your search: **" + r.Products[0].Title + "**"
	case r.Total > n:
		return fmt.Sprintf("I found %d products%s! Here are the first %d matches.", r.Total, filterText, n)
	default:
		return fmt.Sprintf("I found %d products%s that match your search.", r.Total, filterText)
	}
}

func followUps(r *Result) []string {
	switch {
	case len(r.Products) == 0 && len(r.Suggestions) == 0 && r.Page == 1:
		return append([]string(nil), NoResultFollowUps...)
	case len(r.Products) == 1 && r.Page == 1:
		return append([]string(nil), SingleMatchFollowUps...)
	case r.HasMore:
		return []string{"Show me more results", "Tell me about the first one"}
	default:
		return nil
	}
}
