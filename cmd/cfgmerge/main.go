package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"gopkg.in/yaml.v2"

	"github.com/spf13/viper"
)

// cfgmerge накладывает окруженческий оверлей на базовый конфиг движка
// и пишет итоговый values_<env>.yaml в configs/.
//
//	cfgmerge <env>            # configs/base.yaml + configs/overlays/<env>.yaml
//
// Секреты (api key/secret, dsn, телеграм-токен) в итоговый файл не
// попадают, они приходят только через окружение.

var secretKeys = []string{
	"bybit.api_key",
	"bybit.api_secret",
	"db_dsn",
	"telegram.token",
}

func mergedSettings(env string) (map[string]interface{}, error) {
	base := viper.New()
	base.SetConfigFile(filepath.Join("configs", "base.yaml"))
	base.SetConfigType("yaml")
	if err := base.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read base config")
	}

	overlayPath := filepath.Join("configs", "overlays", env+".yaml")
	overlay := viper.New()
	overlay.SetConfigFile(overlayPath)
	overlay.SetConfigType("yaml")
	if err := overlay.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read overlay %s", overlayPath)
	}

	if err := base.MergeConfigMap(overlay.AllSettings()); err != nil {
		return nil, errors.Wrap(err, "merge overlay")
	}

	for _, key := range secretKeys {
		if base.IsSet(key) {
			return nil, errors.Errorf("secret key %q must not live in config files", key)
		}
	}
	return base.AllSettings(), nil
}

func writeResult(env string, settings map[string]interface{}) (string, error) {
	bs, err := yaml.Marshal(settings)
	if err != nil {
		return "", errors.Wrap(err, "marshal config to yaml")
	}
	out := filepath.Join("configs", "values_"+env+".yaml")
	if err := os.WriteFile(out, bs, 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", out)
	}
	return out, nil
}

func main() {
	if len(os.Args) != 2 || strings.TrimSpace(os.Args[1]) == "" {
		fmt.Fprintln(os.Stderr, "usage: cfgmerge <env>")
		os.Exit(2)
	}
	env := os.Args[1]

	settings, err := mergedSettings(env)
	if err != nil {
		panic(fmt.Errorf("merge configs: %w", err))
	}
	out, err := writeResult(env, settings)
	if err != nil {
		panic(fmt.Errorf("write result: %w", err))
	}
	fmt.Printf("%s file complete\n", out)
	fmt.Println("done")
}
