package config

const (
	defaultStorageProvider = "sqlite"
	defaultSQLitePath      = "memories.db"

	defaultVectorProvider   = "sqlitevec"
	defaultVectorSQLitePath = "vectors.db"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3.2"
	defaultLLMTarget   = "http://localhost:11434"

	defaultSubQueryTimeoutMS = 2000
	defaultTopK              = 5

	defaultEventStreamProvider = "nop"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:   defaultStorageProvider,
			SQLitePath: defaultSQLitePath,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			SQLitePath: defaultVectorSQLitePath,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
			Target:   defaultLLMTarget,
		},
		Retrieval: RetrievalConfig{
			SubQueryTimeoutMS: defaultSubQueryTimeoutMS,
			TopK:              defaultTopK,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
		},
	}
}
