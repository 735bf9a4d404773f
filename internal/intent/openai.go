package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const classifyInstructions = `You classify messages for a car financing assistant in Egypt.
Reply with one JSON object and nothing else. Keys:
  intent: one of search, confirm, reject, select_vehicle, provide_profile, provide_contact,
          status_check, reset, closing, greeting, unclear
  confidence: number between 0 and 1
  make, model: strings or null
  year_min, year_max: integers or null (a single year is year_min)
  price_cap: number in EGP or null ("1 million" is 1000000)
  selection: 1-based listing number or null
  monthly_income, existing_debt: numbers in EGP or null
  employment_category: salaried, self_employed, corporate, other, or null
  full_name, email, phone, national_id, application_id: strings or null`

// OpenAIClassifier classifies messages with the OpenAI Responses API.
type OpenAIClassifier struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAIClassifier returns a classifier for model. Extra request options
// (base URL, retries) are passed through to the client.
func NewOpenAIClassifier(apiKey, model string, opts ...option.RequestOption) *OpenAIClassifier {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClassifier{
		client:    openai.NewClient(all...),
		model:     model,
		maxTokens: 400,
	}
}

// Classify implements Classifier. Transport failures are returned as errors;
// unparsable output is reported as Unclear.
func (o *OpenAIClassifier) Classify(ctx context.Context, sc SessionContext, raw string) (Classification, error) {
	input := fmt.Sprintf("%s\n\nConversation phase: %s\nPending question: %s\nListings shown: %d\n\nMessage:\n%s",
		classifyInstructions, sc.Phase, sc.Pending, sc.ListingCount, raw)

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(o.maxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return Classification{}, fmt.Errorf("openai classify: %w", err)
	}
	return parseModelOutput(resp.OutputText()), nil
}

// parseModelOutput tolerates code fences and prose around the JSON object.
func parseModelOutput(text string) Classification {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Classification{Intent: Unclear}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &m); err != nil {
		return Classification{Intent: Unclear}
	}
	return fromWire(m)
}
