package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name" validate:"required"`
	Host       string            `yaml:"host" validate:"required"`
	Port       int               `yaml:"port" validate:"gt=1024,lte=65535"`
	LogLevel   string            `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARNING ERROR"`
	GrpcHost   string            `yaml:"grpc_host"`
	GrpcPort   int               `yaml:"grpc_port" validate:"omitempty,gt=1024,lte=65535"`
	Storage    MStorageConfig    `yaml:"storage"`
	Network    MNetworkConfig    `yaml:"network"`
	DataSource MDataSourceConfig `yaml:"data_source"`
	Export     MExportConfig     `yaml:"export"`
	Redis      MRedisConfig      `yaml:"redis"`
}

// GetLogLevel lets the logger read the level without importing config.
func (c *MConfig) GetLogLevel() string {
	if c == nil {
		return ""
	}
	return c.LogLevel
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DBType             string `yaml:"db_type" validate:"omitempty,oneof=sqlite postgres"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days" validate:"gte=0"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"` // proxy rotation
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout" validate:"gt=0"`
	MaxRetries     int      `yaml:"retries" validate:"gte=0"`
	UserAgent      string   `yaml:"user_agent"`
	BaseURL        string   `yaml:"base_url" validate:"required,url"`
	BootstrapPath  string   `yaml:"bootstrap_path"`
	APIPath        string   `yaml:"api_path" validate:"required"`
	RefererPath    string   `yaml:"referer_path"`
}

type MDataSourceConfig struct {
	UpdateIntervalSeconds int             `yaml:"update_interval_seconds" validate:"gt=0"`
	MarketHoursOnly       bool            `yaml:"market_hours_only"`
	CalendarMIC           string          `yaml:"calendar_mic"`
	ProcessEmptyOnFailure bool            `yaml:"process_empty_on_failure"`
	Sources               []MSourceConfig `yaml:"sources" validate:"required,min=1,dive"`
}

type MSourceConfig struct {
	Name    string   `yaml:"name" validate:"required"`
	Index   string   `yaml:"index" validate:"required"`
	Columns []string `yaml:"columns"` // Optional, defaults to DefaultColumns
}

type MExportConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dir         string `yaml:"dir"`
	FilePattern string `yaml:"file_pattern"`
}

type MRedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}
