package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	SumUp     SumUp     `envPrefix:"SUMUP_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Polling   Polling   `envPrefix:"POLLING_"`
	Alerting  Alerting  `envPrefix:"ALERT_"`
	Auth      Auth      `envPrefix:"AUTH_"`
}

type SumUp struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api.sumup.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	MerchantCode string `env:"MERCHANT_CODE"` // platform-wide merchant, used when a payee is not connected
	RedirectURL  string `env:"REDIRECT_URL"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Polling struct {
	Provider           string `env:"PROVIDER" envDefault:"sumup"` // sumup or braintree
	IntervalSeconds    int    `env:"INTERVAL_SECONDS" envDefault:"300"`
	BatchSize          int    `env:"BATCH_SIZE" envDefault:"20"`
	Workers            int    `env:"WORKERS" envDefault:"4"`
	RequestTimeoutSecs int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"20"`
	MaxPollMinutes     int    `env:"MAX_POLL_MINUTES" envDefault:"120"`
	TokenMarginSecs    int    `env:"TOKEN_MARGIN_SECONDS" envDefault:"300"`
	PlatformFallback   bool   `env:"PLATFORM_FALLBACK" envDefault:"true"`
}

type Alerting struct {
	WebhookURL         string `env:"WEBHOOK_URL"`
	StuckThresholdMins int    `env:"STUCK_THRESHOLD_MINUTES" envDefault:"30"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
