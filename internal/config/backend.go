package config

// ConfigBackend is the persistent store behind `interviewd config set`.
// ok is false when the key was never set.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
