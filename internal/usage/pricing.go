package usage

// DefaultPriceKey prices any model missing from the tables.
const DefaultPriceKey = "default"

// Prices are dollars per million tokens.
var (
	defaultInputPrices = map[string]float64{
		"gpt-4o":                   5.0,
		"gpt-4o-mini":              0.15,
		"gpt-4-turbo":              10.0,
		"gpt-4":                    30.0,
		"gpt-3.5-turbo":            0.5,
		"claude-3-5-sonnet-latest": 3.0,
		"claude-3-opus-latest":     15.0,
		"claude-3-haiku-20240307":  0.25,
		"gemini-1.5-flash":         0.35,
		"gemini-1.5-pro":           3.5,
		DefaultPriceKey:            1.0,
	}
	defaultOutputPrices = map[string]float64{
		"gpt-4o":                   15.0,
		"gpt-4o-mini":              0.60,
		"gpt-4-turbo":              30.0,
		"gpt-4":                    60.0,
		"gpt-3.5-turbo":            1.5,
		"claude-3-5-sonnet-latest": 15.0,
		"claude-3-opus-latest":     75.0,
		"claude-3-haiku-20240307":  1.25,
		"gemini-1.5-flash":         1.05,
		"gemini-1.5-pro":           10.5,
		DefaultPriceKey:            1.0,
	}
)

// Pricing resolves per-token prices. User overrides win over the built-in
// table, which falls back to its default entry.
type Pricing struct {
	input  map[string]float64
	output map[string]float64
}

// NewPricing builds a Pricing with optional per-million overrides.
func NewPricing(inputOverrides, outputOverrides map[string]float64) *Pricing {
	return &Pricing{input: copyPrices(inputOverrides), output: copyPrices(outputOverrides)}
}

func copyPrices(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func lookup(overrides, defaults map[string]float64, model string) float64 {
	if v, ok := overrides[model]; ok {
		return v
	}
	if v, ok := defaults[model]; ok {
		return v
	}
	return defaults[DefaultPriceKey]
}

// InputPerMillion returns the input price for model in dollars per million tokens.
func (p *Pricing) InputPerMillion(model string) float64 {
	return lookup(p.input, defaultInputPrices, model)
}

// OutputPerMillion returns the output price for model in dollars per million tokens.
func (p *Pricing) OutputPerMillion(model string) float64 {
	return lookup(p.output, defaultOutputPrices, model)
}

// SetInput overrides the input price for model.
func (p *Pricing) SetInput(model string, perMillion float64) {
	p.input[model] = perMillion
}

// SetOutput overrides the output price for model.
func (p *Pricing) SetOutput(model string, perMillion float64) {
	p.output[model] = perMillion
}

// Cost returns the dollar cost of a request.
func (p *Pricing) Cost(model string, inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*p.InputPerMillion(model) + float64(outputTokens)*p.OutputPerMillion(model)) / 1_000_000
}

// EstimateTokens approximates a token count at four characters per token,
// rounding up.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
