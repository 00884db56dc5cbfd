package config

import "github.com/spf13/viper"

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Planning struct {
		// Precisión de redondeo para presentación (decimales).
		DisplayPrecision int32 `mapstructure:"display_precision"`
	} `mapstructure:"planning"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	// Se puede sobreescribir por ENV (APP_*) si hace falta
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if c.Planning.DisplayPrecision == 0 {
		c.Planning.DisplayPrecision = 2
	}
	return c, nil
}
