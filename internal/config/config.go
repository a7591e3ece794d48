package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const rawBase = "https://raw.githubusercontent.com/larissa-ms/vendas-dashboard2/main/"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Columns   ColumnsConfig   `mapstructure:"columns"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

type ServerConfig struct {
	Port      int     `mapstructure:"port"`
	Debug     bool    `mapstructure:"debug"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second per client, 0 disables
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SourcesConfig lists where the four source tables live. Each location is an
// http(s) URL or a filesystem path ending in .xlsx or .csv.
type SourcesConfig struct {
	Sales       []string      `mapstructure:"sales"`
	Customers   string        `mapstructure:"customers"`
	Stores      string        `mapstructure:"stores"`
	Products    string        `mapstructure:"products"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CSVEncoding string        `mapstructure:"csv_encoding"`
}

// ColumnsConfig maps logical fields to the header names of the source sheets.
type ColumnsConfig struct {
	SaleDate    string `mapstructure:"sale_date"`
	Quantity    string `mapstructure:"quantity"`
	CustomerID  string `mapstructure:"customer_id"`
	StoreID     string `mapstructure:"store_id"`
	SKU         string `mapstructure:"sku"`
	FirstName   string `mapstructure:"first_name"`
	LastName    string `mapstructure:"last_name"`
	StoreName   string `mapstructure:"store_name"`
	ProductName string `mapstructure:"product_name"`
	Brand       string `mapstructure:"brand"`
	ProductType string `mapstructure:"product_type"`
}

type DashboardConfig struct {
	Title string `mapstructure:"title"`
	TopN  int    `mapstructure:"top_n"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8050)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.rate_limit", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sources.sales", []string{
		rawBase + "Base%20Vendas%20-%202020.xlsx",
		rawBase + "Base%20Vendas%20-%202021.xlsx",
		rawBase + "Base%20Vendas%20-%202022.xlsx",
	})
	v.SetDefault("sources.customers", rawBase+"Cadastro%20Clientes.xlsx")
	v.SetDefault("sources.stores", rawBase+"Cadastro%20Lojas.xlsx")
	v.SetDefault("sources.products", rawBase+"Cadastro%20Produtos.xlsx")
	v.SetDefault("sources.timeout", 30*time.Second)
	v.SetDefault("sources.csv_encoding", "utf-8")

	v.SetDefault("columns.sale_date", "Data da Venda")
	v.SetDefault("columns.quantity", "Qtd Vendida")
	v.SetDefault("columns.customer_id", "ID Cliente")
	v.SetDefault("columns.store_id", "ID Loja")
	v.SetDefault("columns.sku", "SKU")
	v.SetDefault("columns.first_name", "Primeiro Nome")
	v.SetDefault("columns.last_name", "Sobrenome")
	v.SetDefault("columns.store_name", "Nome da Loja")
	v.SetDefault("columns.product_name", "Produto")
	v.SetDefault("columns.brand", "Marca")
	v.SetDefault("columns.product_type", "Tipo do Produto")

	v.SetDefault("dashboard.title", "Sales Dashboard (2020-2022)")
	v.SetDefault("dashboard.top_n", 10)
}

// New returns a viper instance with defaults and DASHBOARD_* environment
// binding. When file is non-empty it is read as well.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("dashboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if len(c.Sources.Sales) == 0 {
		errs = append(errs, errors.New("sources.sales: at least one sales extract is required"))
	}
	if c.Sources.Customers == "" || c.Sources.Stores == "" || c.Sources.Products == "" {
		errs = append(errs, errors.New("sources: customers, stores and products are required"))
	}
	if c.Dashboard.TopN <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.top_n must be positive: %d", c.Dashboard.TopN))
	}
	return errors.Join(errs...)
}
