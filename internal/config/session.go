package config

import "time"

// StoreConfig selects the durable store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite (modernc), sqlite3 (cgo)
	Path   string `yaml:"path"`
}

// RemindersConfig configures the reminder poll loop.
type RemindersConfig struct {
	PollInterval string `yaml:"poll_interval"`
	BatchSize    int    `yaml:"batch_size"`
}

// SessionConfig configures session bootstrap.
type SessionConfig struct {
	// Token identifies a returning user. Empty means anonymous provisioning.
	Token string `yaml:"token"`

	// HandshakeStep is the delay between handshake announcements.
	HandshakeStep string `yaml:"handshake_step"`

	// Admins may run /admin.
	Admins []string `yaml:"admins"`
}

// GetPollInterval returns the reminder poll interval as a duration.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Reminders.PollInterval)
	if err != nil || d <= 0 {
		return 12 * time.Second
	}
	return d
}

// GetHandshakeStep returns the announcement delay as a duration.
// Zero is allowed and skips the pauses.
func (c *Config) GetHandshakeStep() time.Duration {
	d, err := time.ParseDuration(c.Session.HandshakeStep)
	if err != nil || d < 0 {
		return 400 * time.Millisecond
	}
	return d
}

// IsAdmin reports whether id is listed in session.admins.
func (c *Config) IsAdmin(id string) bool {
	return contains(c.Session.Admins, id)
}
