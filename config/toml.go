package config

import (
	"bytes"
	_ "embed"
	"text/template"

	cmtcfg "github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/libs/os"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0o700

var appConfigTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("appConfigFileTemplate")
	if appConfigTemplate, err = tmpl.Parse(defaultAppConfigTemplate); err != nil {
		panic(err)
	}
}

// WriteConfigFile writes config.toml through cometbft's own template and
// app.toml through ours.
func WriteConfigFile(config *Config) {
	cmtcfg.WriteConfigFile(config.CometConfigFile(), config.Config)
	WriteAppConfigFile(config.AppConfigFile(), config.App)
}

// WriteAppConfigFile renders the [app] section using the template and writes it to configFilePath.
func WriteAppConfigFile(configFilePath string, config *AppConfig) {
	var buffer bytes.Buffer

	if err := appConfigTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}

	os.MustWriteFile(configFilePath, buffer.Bytes(), 0o644)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in AppConfig in config/config.go.
//
//go:embed app.toml.tpl
var defaultAppConfigTemplate string
