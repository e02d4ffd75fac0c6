package store

// Key layout of the record store
const (
	ProductsPrefix   = "products_"
	ConfigsPrefix    = "message_configs_"
	LogsPrefix       = "message_logs_"
	SessionPrefix    = "session_"
	OnboardingPrefix = "onboarding_"

	// VideosKey holds the global video catalog
	VideosKey = "videos"
	// UsersKey holds every registered account
	UsersKey = "users"
)

// ProductsKey returns the key of a user's product list
func ProductsKey(userID string) string { return ProductsPrefix + userID }

// ConfigsKey returns the key of a user's broadcast configurations
func ConfigsKey(userID string) string { return ConfigsPrefix + userID }

// LogsKey returns the key of a user's send log
func LogsKey(userID string) string { return LogsPrefix + userID }

// SessionKey returns the key of a session record
func SessionKey(token string) string { return SessionPrefix + token }

// OnboardingKey returns the key of a user's first-login wizard state
func OnboardingKey(userID string) string { return OnboardingPrefix + userID }
