package config

type ServerConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ReconcileConfig controls the scheduled reconciliation run.
type ReconcileConfig struct {
	// CronSpec is a robfig/cron expression; empty disables the schedule.
	CronSpec string `yaml:"cron_spec"`
	// Workers bounds how many subscriptions are reconciled concurrently.
	Workers int `yaml:"workers"`
	// BatchSize caps how many rows one run loads.
	BatchSize int `yaml:"batch_size"`
}
