package llmclient

// modelPrice is a model's cost in USD per million tokens.
type modelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// pricing is the static per-model cost table, ported verbatim from the
// reference runtime's MODEL_PRICING.
var pricing = map[string]modelPrice{
	"gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-2.5-flash": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gemini-2.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gpt-4o":           {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":      {InputPerMillion: 0.15, OutputPerMillion: 0.60},
}

// EstimateCost computes the USD cost of a call to model for the given
// token counts. Unknown models price at zero rather than erroring —
// the reference does the same, since cost estimation is advisory.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	price, ok := pricing[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*price.InputPerMillion +
		float64(outputTokens)/1_000_000*price.OutputPerMillion
}
