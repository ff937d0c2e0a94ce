package metrics

type Settings struct {
	MetricsAddr string `toml:"metricsAddr"`
	MetricsPath string `toml:"metricsPath"`
	HealthPath  string `toml:"healthPath"`
}

var defaultSettings = Settings{
	MetricsAddr: ":9626",
	MetricsPath: "/metrics",
	HealthPath:  "/health",
}

func DefaultSettings() *Settings {
	return &defaultSettings
}
