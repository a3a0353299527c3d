package config

import "time"

// Static is a fixed configuration, independent of the environment. Used by
// tests and by applications that embed the client with their own settings.
type Static struct {
	AppName        string
	Env            string
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	TokenFilePath  string
	TokenStoreKey  []byte
}

var _ Config = Static{}

func (s Static) GetAppName() string {
	if s.AppName == "" {
		return "Cartomap"
	}
	return s.AppName
}

func (s Static) GetEnv() string {
	if s.Env == "" {
		return "DEV"
	}
	return s.Env
}

func (s Static) GetBaseURL() string { return s.BaseURL }

func (s Static) GetRequestTimeout() time.Duration {
	if s.RequestTimeout == 0 {
		return 30 * time.Second
	}
	return s.RequestTimeout
}

func (s Static) GetMaxRetries() int { return s.MaxRetries }

func (s Static) GetRetryBaseDelay() time.Duration {
	if s.RetryBaseDelay == 0 {
		return 500 * time.Millisecond
	}
	return s.RetryBaseDelay
}

func (s Static) GetRetryMaxDelay() time.Duration {
	if s.RetryMaxDelay == 0 {
		return 5 * time.Second
	}
	return s.RetryMaxDelay
}

func (s Static) GetTokenFilePath() string { return s.TokenFilePath }

func (s Static) GetTokenStoreKey() []byte { return s.TokenStoreKey }
