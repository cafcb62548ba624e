package conf

import (
	"fmt"
)

type Bootstrap struct {
	Server *Server `yaml:"server" json:"server"`
	Data   *Data   `yaml:"data" json:"data"`
	Client *Client `yaml:"client" json:"client"`
	Renew  *Renew  `yaml:"renew" json:"renew"`
	Log    *Log    `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	} `yaml:"redis" json:"redis"`
}

type Client struct {
	PassportService *PassportService `yaml:"passport_service" json:"passport_service"`
	Midtrans        *Midtrans        `yaml:"midtrans" json:"midtrans"`
	Smtp            *Smtp            `yaml:"smtp" json:"smtp"`
}

type PassportService struct {
	Addr    string `yaml:"addr" json:"addr"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

type Midtrans struct {
	ServerKey  string `yaml:"server_key" json:"server_key"`
	Production bool   `yaml:"production" json:"production"`
}

type Smtp struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Sender   string `yaml:"sender" json:"sender"`
}

type Renew struct {
	// DaysBefore 自动续费提前天数，空值时使用 constants.AutoRenewDaysBefore
	DaysBefore int `yaml:"days_before" json:"days_before"`
	// WindowDays 续费扫描宽限天数，会员过期超过该天数后不再自动续费
	WindowDays int `yaml:"window_days" json:"window_days"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Client == nil {
		return fmt.Errorf("client configuration is required")
	}
	if b.Client.PassportService == nil || b.Client.PassportService.Addr == "" {
		return fmt.Errorf("client.passport_service.addr is required")
	}
	if b.Client.Midtrans == nil || b.Client.Midtrans.ServerKey == "" {
		return fmt.Errorf("client.midtrans.server_key is required")
	}
	if b.Client.Smtp == nil || b.Client.Smtp.Host == "" {
		return fmt.Errorf("client.smtp.host is required")
	}
	if b.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	return nil
}
