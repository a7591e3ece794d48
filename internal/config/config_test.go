package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 8050, cfg.Server.Port)
	assert.Len(t, cfg.Sources.Sales, 3)
	assert.Contains(t, cfg.Sources.Customers, "Cadastro%20Clientes.xlsx")
	assert.Equal(t, 30*time.Second, cfg.Sources.Timeout)
	assert.Equal(t, "Qtd Vendida", cfg.Columns.Quantity)
	assert.Equal(t, "Tipo do Produto", cfg.Columns.ProductType)
	assert.Equal(t, 10, cfg.Dashboard.TopN)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DASHBOARD_SERVER_PORT", "9000")
	t.Setenv("DASHBOARD_DASHBOARD_TOP_N", "5")
	t.Setenv("DASHBOARD_SOURCES_SALES", "a.csv,b.csv")

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Dashboard.TopN)
	assert.Equal(t, []string{"a.csv", "b.csv"}, cfg.Sources.Sales)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	data := `
server:
  port: 8080
  rate_limit: 20
sources:
  sales: [data/2020.csv, data/2021.csv]
  customers: data/customers.csv
  stores: data/stores.csv
  products: data/products.csv
  csv_encoding: latin1
columns:
  quantity: Qty
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20.0, cfg.Server.RateLimit)
	assert.Equal(t, []string{"data/2020.csv", "data/2021.csv"}, cfg.Sources.Sales)
	assert.Equal(t, "latin1", cfg.Sources.CSVEncoding)
	assert.Equal(t, "Qty", cfg.Columns.Quantity)
	assert.Equal(t, "Data da Venda", cfg.Columns.SaleDate, "unset columns keep defaults")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Server:    ServerConfig{Port: 0},
		Dashboard: DashboardConfig{TopN: 0},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "sources.sales")
	assert.Contains(t, err.Error(), "customers, stores and products")
	assert.Contains(t, err.Error(), "dashboard.top_n")
}
