package shared

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type envValue interface {
	string | bool | int
}

// LoadDotEnv loads variables from the given .env files (".env" when none are given).
//
// Variables already present in the process environment win. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("%w: failed to load %v: %v", ErrConfiguration, present, err)
	}
	return nil
}

// lookupEnv reads and converts the named variable. ok is false when the variable is unset or empty.
func lookupEnv[T envValue](name string) (out T, ok bool, err error) {
	v, found := os.LookupEnv(name)
	if !found || v == "" {
		return out, false, nil
	}

	var tmp any
	switch any(out).(type) {
	case bool:
		tmp, err = strconv.ParseBool(v)
	case int:
		tmp, err = strconv.Atoi(v)
	default:
		tmp = v
	}
	if err != nil {
		return out, false, fmt.Errorf("%w: %s=%q: %v", ErrConfiguration, name, v, err)
	}

	return tmp.(T), true, nil
}

func applyEnv[T envValue](c *Config, name, source string, dst *T) error {
	v, ok, err := lookupEnv[T](name)
	if err != nil {
		return err
	}
	if ok {
		*dst = v
		if source != "" {
			c.setSource(source, "env")
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto c.
func ApplyEnv(c *Config) error {
	steps := []func() error{
		func() error { return applyEnv(c, "DISCOGS_TOKEN", "discogs_token", &c.Credentials.Discogs.Token) },
		func() error { return applyEnv(c, "DISCOGS_USER_AGENT", "", &c.Credentials.Discogs.UserAgent) },
		func() error { return applyEnv(c, "TIDAL_CLIENT_ID", "tidal_client_id", &c.Credentials.Tidal.ClientID) },
		func() error { return applyEnv(c, "TIDAL_CLIENT_SECRET", "", &c.Credentials.Tidal.ClientSecret) },
		func() error { return applyEnv(c, "TIDAL_COUNTRY_CODE", "", &c.Credentials.Tidal.CountryCode) },
		func() error { return applyEnv(c, "LOG_LEVEL", "", &c.App.LogLevel) },
		func() error { return applyEnv(c, "DEV_MODE", "", &c.App.DevMode) },
		func() error { return applyEnv(c, "MAX_TRACKS", "", &c.Sync.MaxTracks) },
		func() error { return applyEnv(c, "SEARCH_TIMEOUT", "", &c.Sync.SearchTimeout) },
		func() error { return applyEnv(c, "SEARCH_RETRY_COUNT", "", &c.Sync.SearchRetryCount) },
		func() error { return applyEnv(c, "SYNC_WORKERS", "", &c.Sync.Workers) },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
