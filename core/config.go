package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName       string
		Env           string // DEV (default), TEST, QA, PROD
		Build         string
		Debug         bool
		TestMode      bool
		SecretKey     string
		AdminPassword string // legacy shared password granting full data reads
		RollbarToken  string
		WorkDir       string

		Server   ServerConfig
		Database DatabaseConfig
		Data     DataConfig
		Users    UsersConfig
		Email    EmailConfig
	}

	ServerConfig struct {
		Addr                      string
		DebugAddr                 string
		Host                      string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine     string // sqlite | postgres | jsonfile
		Path       string // sqlite file or users.json
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	DataConfig struct {
		Root      string
		Debounce  time.Duration
		Policy    string // coalesce | drop
		RulesFile string
		Watch     bool
	}

	UsersConfig struct {
		DefaultStudentPassword string
	}

	EmailConfig struct {
		SendgridKey      string
		DefaultFromEmail mail.Address
		AdminEmails      []string
	}
)

// Address returns the database "host:port".
func (dc DatabaseConfig) Address() string {
	if dc.Port == "" {
		return dc.Host
	}
	return dc.Host + ":" + dc.Port
}

// NewConfig loads the app Config from defaults, the optional config/.env.<env> file and the environment.
// Environment variables are prefixed with the uppercased env name, e.g. DEV_DATA_ROOT.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Insights")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k3v!9p2#q7-ab$+x1=mz&uo4h(f!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("adminPassword", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.debugAddr", "localhost:4000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.path", filepath.Join("var", "insights.db"))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "insights")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("data.root", "data")
	v.SetDefault("data.debounce", time.Second)
	v.SetDefault("data.policy", "coalesce")
	v.SetDefault("data.rulesFile", "")
	v.SetDefault("data.watch", true)

	v.SetDefault("users.defaultStudentPassword", "1234")

	v.SetDefault("email.sendgridKey", "")
	v.SetDefault("email.defaultFromEmail", "noreply@localhost")
	v.SetDefault("email.adminEmails", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:       v.GetString("appName"),
		Env:           env,
		Build:         v.GetString("build"),
		Debug:         v.GetBool("debug"),
		TestMode:      v.GetBool("testMode"),
		SecretKey:     v.GetString("secretKey"),
		AdminPassword: v.GetString("adminPassword"),
		RollbarToken:  v.GetString("rollbarToken"),
		WorkDir:       wd,
		Server: ServerConfig{
			Addr:                      v.GetString("server.addr"),
			DebugAddr:                 v.GetString("server.debugAddr"),
			Host:                      v.GetString("server.host"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:     strings.ToLower(v.GetString("database.engine")),
			Path:       v.GetString("database.path"),
			Host:       v.GetString("database.host"),
			Port:       v.GetString("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
		Data: DataConfig{
			Root:      v.GetString("data.root"),
			Debounce:  v.GetDuration("data.debounce"),
			Policy:    strings.ToLower(v.GetString("data.policy")),
			RulesFile: v.GetString("data.rulesFile"),
			Watch:     v.GetBool("data.watch"),
		},
		Users: UsersConfig{
			DefaultStudentPassword: v.GetString("users.defaultStudentPassword"),
		},
		Email: EmailConfig{
			SendgridKey:      v.GetString("email.sendgridKey"),
			DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("email.defaultFromEmail")},
			AdminEmails:      splitList(v.GetString("email.adminEmails")),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = CleanString(part, true /* lower */); part != "" {
			out = append(out, part)
		}
	}
	return out
}
