package driven

// ConfigStore is the persisted key/value layer beneath settings. Keys are
// dotted paths such as "retrieval.final_k". Typed getters return the zero
// value when a key is missing or holds another type; GetFloat also
// accepts integers.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set updates a value and persists the store.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path is the backing file, or ":memory:" for in-memory stores.
	Path() string
}
