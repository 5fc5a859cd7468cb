package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap/zapcore"

	"github.com/jdholdren/karmabot/internal/core/db"
	"github.com/jdholdren/karmabot/internal/strawpoll"
)

type config struct {
	// IRC
	Server      string        `env:"KARMABOT_SERVER"`
	Port        int           `env:"KARMABOT_PORT,default=6667"`
	Nick        string        `env:"KARMABOT_NICK,default=KarmaBot"`
	SettleDelay time.Duration `env:"KARMABOT_SETTLE_DELAY,default=3s"`

	// Database
	DBPath string `env:"KARMABOT_DB_PATH,default=karma.db"`

	// Polls
	Proxy         string        `env:"KARMABOT_PROXY"`
	PollEndpoint  string        `env:"KARMABOT_POLL_ENDPOINT"`
	PollShareBase string        `env:"KARMABOT_POLL_SHARE_BASE"`
	PollTimeout   time.Duration `env:"KARMABOT_POLL_TIMEOUT"`

	Debug bool `env:"DEBUG"`
}

func (c config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("server", c.Server)
	enc.AddInt("port", c.Port)
	enc.AddString("nick", c.Nick)
	enc.AddDuration("settle_delay", c.SettleDelay)
	enc.AddString("db_path", c.DBPath)
	enc.AddBool("proxied", c.Proxy != "")
	enc.AddString("poll_endpoint", c.pollConfig().Endpoint)
	enc.AddDuration("poll_timeout", c.PollTimeout)
	enc.AddBool("debug", c.Debug)

	return nil
}

func (c config) pollConfig() strawpoll.Config {
	pc := strawpoll.Config{
		Endpoint:  c.PollEndpoint,
		ShareBase: c.PollShareBase,
		Proxy:     c.Proxy,
		Timeout:   c.PollTimeout,
	}
	if pc.Endpoint == "" {
		pc.Endpoint = strawpoll.DefaultEndpoint
	}

	return pc
}

// Opens the sqlite file at the configured path. The path is passed through
// as-is; modernc splits the DSN on the first '?' and does not unescape the name.
func setupDB(c config) (*sqlx.DB, error) {
	path, rawQuery, _ := strings.Cut(c.DBPath, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("error parsing db path options: %s", err)
	}
	q.Add("_pragma", "journal_mode(WAL)")

	return db.Open("sqlite", path+"?"+q.Encode())
}
