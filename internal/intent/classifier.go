package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/llm"
	"github.com/Veraticus/shopassist/internal/session"
)

// Intent is the coarse category of a shopper message.
type Intent string

// Supported intents.
const (
	ProductSearch Intent = "PRODUCT_SEARCH"
	OrderInquiry  Intent = "ORDER_INQUIRY"
	GeneralChat   Intent = "GENERAL_CHAT"
	Help          Intent = "HELP"
)

// FallbackConfidence is reported when classification could not be trusted.
const FallbackConfidence = 0.5

// historyTurns is how many recent turns are shown to the classifier.
const historyTurns = 10

// Info holds the slots the classifier extracted.
type Info struct {
	Keywords      []string `json:"keywords"`
	OrderNumber   string   `json:"order_number,omitempty"`
	CustomerEmail string   `json:"customer_email,omitempty"`
	AddressType   string   `json:"address_type,omitempty"`
	SpecificQuery string   `json:"specific_query,omitempty"`
	PriceMax      *float64 `json:"price_max,omitempty"`
	IsFollowup    bool     `json:"is_followup,omitempty"`
	QuestionType  string   `json:"question_type,omitempty"`
}

// Query returns the keywords joined as a search string.
func (i Info) Query() string {
	return strings.TrimSpace(strings.Join(i.Keywords, " "))
}

// Result is a classification outcome.
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Info       Info    `json:"info"`
	// Fallback is set when the result was synthesized after a failure.
	Fallback bool `json:"fallback,omitempty"`
}

// Input is what the classifier sees for one turn.
type Input struct {
	Message        string
	History        []session.Turn
	ContextProduct *catalog.Product
}

// Classifier assigns an intent to a message. Implementations never fail:
// on any internal error they return a low-confidence product search.
type Classifier interface {
	Classify(ctx context.Context, in Input) Result
}

// Fallback is the result used when classification fails.
func Fallback(message string) Result {
	return Result{
		Intent:     ProductSearch,
		Confidence: FallbackConfidence,
		Info:       Info{Keywords: []string{message}},
		Fallback:   true,
	}
}

const classificationSchema = `{
	"type": "object",
	"required": ["intent"],
	"properties": {
		"intent": {"type": "string", "enum": ["PRODUCT_SEARCH", "ORDER_INQUIRY", "GENERAL_CHAT", "HELP"]},
		"confidence": {"type": "number"},
		"extracted_info": {
			"type": "object",
			"properties": {
				"keywords": {"type": ["array", "string", "null"]},
				"order_number": {"type": ["string", "number", "null"]},
				"customer_email": {"type": ["string", "null"]},
				"address_type": {"type": ["string", "null"]},
				"specific_query": {"type": ["string", "null"]},
				"price_filter": {"type": ["object", "null"]}
			}
		},
		"is_followup_question": {"type": ["boolean", "null"]},
		"question_type": {"type": ["string", "null"]}
	}
}`

const classifierSystemPrompt = `You classify messages sent to an online store's shopping assistant.

Return ONLY a JSON object of this shape:
{
  "intent": "PRODUCT_SEARCH" | "ORDER_INQUIRY" | "GENERAL_CHAT" | "HELP",
  "confidence": number between 0 and 1,
  "extracted_info": {
    "keywords": [search keywords, without filler words],
    "order_number": "order number if mentioned",
    "customer_email": "email if mentioned",
    "address_type": "shipping" | "billing" | "both" if the user asks about an address,
    "specific_query": "what exactly the user wants to know",
    "price_filter": {"max": number if a price ceiling is mentioned}
  },
  "is_followup_question": true if the message asks about a product already discussed,
  "question_type": "color" | "size" | "material" | "discount" | "price" | "availability" | "options" | "images" | "general"
}

PRODUCT_SEARCH: finding or asking about products.
ORDER_INQUIRY: order status, tracking, delivery, addresses or items of an order.
GENERAL_CHAT: greetings, thanks, small talk.
HELP: questions about what the assistant can do.`

// LLMClassifier classifies with a language model and validates the reply
// against a JSON schema.
type LLMClassifier struct {
	llm    llm.LLM
	schema *gojsonschema.Schema
	logger *zap.Logger
}

// NewLLMClassifier creates a classifier backed by model.
func NewLLMClassifier(model llm.LLM, logger *zap.Logger) (*LLMClassifier, error) {
	if model == nil {
		return nil, fmt.Errorf("classifier creation failed: llm is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(classificationSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile classification schema: %w", err)
	}
	return &LLMClassifier{llm: model, schema: schema, logger: logger.Named("intent")}, nil
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, in Input) Result {
	raw, err := c.llm.Generate(ctx, llm.Request{
		System:      classifierSystemPrompt,
		User:        buildClassifierPrompt(in),
		Temperature: 0.1,
		MaxTokens:   400,
		JSON:        true,
	})
	if err != nil {
		c.logger.Warn("classification call failed, using fallback", zap.Error(err))
		return Fallback(in.Message)
	}

	res, err := c.parse(raw, in.Message)
	if err != nil {
		c.logger.Warn("classification output rejected, using fallback",
			zap.Error(err),
			zap.String("output", truncate(raw, 200)),
		)
		return Fallback(in.Message)
	}
	return res
}

type rawClassification struct {
	Intent        string   `json:"intent"`
	Confidence    *float64 `json:"confidence"`
	ExtractedInfo rawInfo  `json:"extracted_info"`
	IsFollowup    *bool    `json:"is_followup_question"`
	QuestionType  *string  `json:"question_type"`
}

type rawInfo struct {
	Keywords      json.RawMessage `json:"keywords"`
	OrderNumber   json.RawMessage `json:"order_number"`
	CustomerEmail *string         `json:"customer_email"`
	AddressType   *string         `json:"address_type"`
	SpecificQuery *string         `json:"specific_query"`
	PriceFilter   *struct {
		Max json.RawMessage `json:"max"`
	} `json:"price_filter"`
}

func (c *LLMClassifier) parse(output, message string) (Result, error) {
	obj, err := llm.ExtractJSON(output)
	if err != nil {
		return Result{}, err
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return Result{}, fmt.Errorf("invalid classification JSON: %w", err)
	}
	if s, ok := doc["intent"].(string); ok {
		doc["intent"] = strings.ToUpper(strings.TrimSpace(s))
	}

	validation, err := c.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Result{}, fmt.Errorf("schema validation failed: %w", err)
	}
	if !validation.Valid() {
		return Result{}, fmt.Errorf("classification does not match schema: %v", validation.Errors())
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return Result{}, err
	}
	var rc rawClassification
	if err := json.Unmarshal(normalized, &rc); err != nil {
		return Result{}, fmt.Errorf("failed to decode classification: %w", err)
	}

	res := Result{
		Intent:     Intent(rc.Intent),
		Confidence: FallbackConfidence,
	}
	if rc.Confidence != nil {
		res.Confidence = clamp(*rc.Confidence)
	}
	if rc.IsFollowup != nil {
		res.Info.IsFollowup = *rc.IsFollowup
	}
	if rc.QuestionType != nil {
		res.Info.QuestionType = strings.ToLower(strings.TrimSpace(*rc.QuestionType))
	}

	info := rc.ExtractedInfo
	res.Info.Keywords = decodeKeywords(info.Keywords)
	if len(res.Info.Keywords) == 0 {
		res.Info.Keywords = []string{message}
	}
	res.Info.OrderNumber = decodeScalar(info.OrderNumber)
	res.Info.CustomerEmail = strings.ToLower(strings.TrimSpace(deref(info.CustomerEmail)))
	res.Info.AddressType = strings.ToLower(strings.TrimSpace(deref(info.AddressType)))
	res.Info.SpecificQuery = strings.TrimSpace(deref(info.SpecificQuery))
	if info.PriceFilter != nil {
		if v := catalog.CoercePrice(decodeScalar(info.PriceFilter.Max)); v > 0 {
			res.Info.PriceMax = &v
		}
	}
	return res, nil
}

// decodeKeywords accepts either a list of strings or a single string.
func decodeKeywords(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := list[:0]
		for _, k := range list {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
		return out
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			return []string{single}
		}
	}
	return nil
}

// decodeScalar renders a JSON string or number as a string.
func decodeScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func buildClassifierPrompt(in Input) string {
	var b strings.Builder
	if p := in.ContextProduct; p != nil {
		fmt.Fprintf(&b, "Product currently being discussed: %s (id %s)\n", p.Title, p.ID)
		if opts := catalog.ExtractOptions(p); len(opts.Names) > 0 {
			parts := make([]string, 0, len(opts.Names))
			for _, name := range opts.Names {
				if values := opts.Values[name]; len(values) > 0 {
					parts = append(parts, name+" ("+strings.Join(values, ", ")+")")
				} else {
					parts = append(parts, name)
				}
			}
			fmt.Fprintf(&b, "Its options: %s\n", strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}
	if turns := recent(in.History, historyTurns); len(turns) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, truncate(t.Text, 300))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Message to classify: %s", in.Message)
	return b.String()
}

func recent(turns []session.Turn, n int) []session.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
