// Package provider constructs the chat model used for answers, summaries and
// LLM reranking. The backend is selected at runtime from configuration.
// Supported backends: Cohere, Ollama, OpenAI, Azure OpenAI, AWS Bedrock (via
// Ark), Google Gemini.
package provider

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendCohere selects Cohere through its OpenAI-compatible endpoint.
	BackendCohere Backend = "cohere"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// DefaultTemperature is the sampling temperature used for answers and
// summaries unless MODEL_TEMPERATURE overrides it.
const DefaultTemperature float32 = 0.5

// ProviderCohere holds Cohere chat settings.
type ProviderCohere struct {
	// APIKey is the Cohere API key.
	APIKey string
	// BaseURL is the OpenAI-compatible endpoint root.
	BaseURL string
	// Model is the chat model (e.g. "command-r").
	Model string
}

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama server base URL.
	Host string
	// Model is the local model name (e.g. "llama3").
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the chat model (e.g. "gpt-4o").
	Model string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI key.
	APIKey string
	// Endpoint is the resource endpoint (e.g. "https://x.openai.azure.com").
	Endpoint string
	// Deployment is the model deployment name.
	Deployment string
	// APIVersion is the REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderBedrock holds AWS Bedrock settings.
type ProviderBedrock struct {
	// AWSRegion is the Bedrock region.
	AWSRegion string
	// ModelID is the Bedrock model identifier.
	ModelID string
	// APIKey is an optional runtime key; the SDK credential chain is used otherwise.
	APIKey string
	// BaseURL overrides the runtime endpoint.
	BaseURL string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the Google AI Studio key.
	APIKey string
	// Model is the Gemini model (e.g. "gemini-1.5-pro").
	Model string
}

// SharedTuning holds generation parameters common to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0-1.0).
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the block matching
// Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Cohere is read when Backend is BackendCohere.
	Cohere ProviderCohere
	// Ollama is read when Backend is BackendOllama.
	Ollama ProviderOllama
	// OpenAI is read when Backend is BackendOpenAI.
	OpenAI ProviderOpenAI
	// AzureOpenAI is read when Backend is BackendAzure.
	AzureOpenAI ProviderAzureOpenAI
	// Bedrock is read when Backend is BackendBedrock.
	Bedrock ProviderBedrock
	// Gemini is read when Backend is BackendGemini.
	Gemini ProviderGemini

	// Tuning applies to every backend.
	Tuning SharedTuning
}
