package notification

// SMTPConfig holds connection parameters for the SMTP provider.
type SMTPConfig struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	Username   string `yaml:"username" json:"username"`
	Password   string `yaml:"password" json:"password"`
	FromAddr   string `yaml:"from_address" json:"from_address"`
	ToAddrs    string `yaml:"to_addresses" json:"to_addresses"`
	Encryption string `yaml:"encryption" json:"encryption"` // "none", "starttls", "ssl_tls"
}

// Settings is the notification section of flow.yaml.
type Settings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// EventTypes lists the event types that trigger a notification. When
	// empty, the default error-class set is used (agent.error, mcp.error,
	// claude.error).
	EventTypes []string `yaml:"event_types" json:"event_types"`

	SMTP SMTPConfig `yaml:"smtp" json:"smtp"`
}
