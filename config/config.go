// Package config loads the deployment configuration from the environment.
// A .env file is honored when present (development convenience); real
// deployments set the variables directly.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Addr   string
	DBPath string

	PrimaryCurrency   string
	SecondaryCurrency string

	// Statutory rates. ARI is per contract, not global.
	SSORate             decimal.Decimal
	FAOVRate            decimal.Decimal
	PARORate            decimal.Decimal
	PrestacionesRate    decimal.Decimal // effective annual, on full balance
	SSOCeilingSecondary decimal.Decimal

	FiscalYearStartMonth time.Month
}

// Load reads the environment, applying statutory defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using process environment")
	}

	return Config{
		Addr:                 getEnv("PAYROLL_ADDR", ":8080"),
		DBPath:               getEnv("PAYROLL_DB", "payroll.db"),
		PrimaryCurrency:      getEnv("PRIMARY_CURRENCY", "USD"),
		SecondaryCurrency:    getEnv("SECONDARY_CURRENCY", "VEB"),
		SSORate:              getEnvDecimal("SSO_RATE", "0.045"),
		FAOVRate:             getEnvDecimal("FAOV_RATE", "0.01"),
		PARORate:             getEnvDecimal("PARO_RATE", "0.005"),
		PrestacionesRate:     getEnvDecimal("PRESTACIONES_INTEREST_RATE", "0.065"),
		SSOCeilingSecondary:  getEnvDecimal("SSO_CEILING_SECONDARY", "1300"),
		FiscalYearStartMonth: time.Month(getEnvInt("FISCAL_YEAR_START_MONTH", 9)),
	}
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logrus.Warnf("invalid integer for %s: %q, using default %d", key, v, defaultVal)
	}
	return defaultVal
}

func getEnvDecimal(key, defaultVal string) decimal.Decimal {
	raw := getEnv(key, defaultVal)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		logrus.Warnf("invalid decimal for %s: %q, using default %s", key, raw, defaultVal)
		d, _ = decimal.NewFromString(defaultVal)
	}
	return d
}
