package config

import (
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the settings read at start-up.
type AppConfig struct {
	Port          string
	StoreDriver   string // postgres or memory
	Currency      string
	SettingsTTL   time.Duration
	Payout        PayoutConfig
	Maturity      MaturityConfig
	Paystack      PaystackConfig
	JWTSecret     string
	ReconcileDays int
}

type PayoutConfig struct {
	MinimumAmount int64
	Method        string
}

type MaturityConfig struct {
	Policy        string
	BufferHours   int
	UserPolicy    string
	SweepInterval time.Duration
}

type PaystackConfig struct {
	SecretKey string
	BaseURL   string
	Mode      string // test or live
	Timeout   time.Duration
}

// BindEnv maps every config key onto its environment variable.
func BindEnv() {
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("store.driver", "STORE_DRIVER")
	viper.BindEnv("ledger.currency", "LEDGER_CURRENCY")
	viper.BindEnv("settings.ttl", "SETTINGS_TTL")

	viper.BindEnv("payout.minimum_amount", "PAYOUT_MINIMUM_AMOUNT")
	viper.BindEnv("payout.method", "PAYOUT_METHOD")

	viper.BindEnv("maturity.policy", "VENDOR_RELEASE_POLICY")
	viper.BindEnv("maturity.buffer_hours", "VENDOR_RELEASE_BUFFER_HOURS")
	viper.BindEnv("maturity.user_policy", "USER_RELEASE_POLICY")
	viper.BindEnv("maturity.sweep_interval", "MATURITY_SWEEP_INTERVAL")

	viper.BindEnv("paystack.secret_key", "PAYSTACK_SECRET_KEY")
	viper.BindEnv("paystack.base_url", "PAYSTACK_BASE_URL")
	viper.BindEnv("paystack.mode", "PAYSTACK_MODE")
	viper.BindEnv("paystack.timeout", "PAYSTACK_TIMEOUT")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("reconcile.lookback_days", "RECONCILE_LOOKBACK_DAYS")
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("ledger.currency", "NGN")
	viper.SetDefault("settings.ttl", time.Minute)

	viper.SetDefault("payout.minimum_amount", 100000) // 1,000.00 NGN in kobo
	viper.SetDefault("payout.method", "bank_transfer")

	viper.SetDefault("maturity.policy", "checkout")
	viper.SetDefault("maturity.buffer_hours", DefaultBufferHours)
	viper.SetDefault("maturity.user_policy", "checkout")
	viper.SetDefault("maturity.sweep_interval", 15*time.Minute)

	viper.SetDefault("paystack.base_url", "https://api.paystack.co")
	viper.SetDefault("paystack.mode", "test")
	viper.SetDefault("paystack.timeout", 20*time.Second)

	viper.SetDefault("reconcile.lookback_days", 30)
}

// Load reads the current viper state into an AppConfig.
func Load() *AppConfig {
	setDefaults()

	return &AppConfig{
		Port:          viper.GetString("server.port"),
		StoreDriver:   viper.GetString("store.driver"),
		Currency:      viper.GetString("ledger.currency"),
		SettingsTTL:   viper.GetDuration("settings.ttl"),
		JWTSecret:     viper.GetString("jwt.secret_key"),
		ReconcileDays: viper.GetInt("reconcile.lookback_days"),
		Payout: PayoutConfig{
			MinimumAmount: viper.GetInt64("payout.minimum_amount"),
			Method:        viper.GetString("payout.method"),
		},
		Maturity: MaturityConfig{
			Policy:        viper.GetString("maturity.policy"),
			BufferHours:   viper.GetInt("maturity.buffer_hours"),
			UserPolicy:    viper.GetString("maturity.user_policy"),
			SweepInterval: viper.GetDuration("maturity.sweep_interval"),
		},
		Paystack: PaystackConfig{
			SecretKey: viper.GetString("paystack.secret_key"),
			BaseURL:   viper.GetString("paystack.base_url"),
			Mode:      viper.GetString("paystack.mode"),
			Timeout:   viper.GetDuration("paystack.timeout"),
		},
	}
}

const DefaultBufferHours = 48
