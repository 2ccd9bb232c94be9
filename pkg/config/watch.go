package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/papercomputeco/rapport/pkg/persona"
)

// WatchPersonas reloads the persona catalog whenever the config file
// backing v changes. A reload that fails validation leaves the previous
// catalog in place.
func WatchPersonas(v *viper.Viper, catalog *persona.Catalog, logger *slog.Logger) {
	if v.ConfigFileUsed() == "" {
		logger.Debug("no config file in use, persona reload disabled")
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		ReloadPersonas(v, catalog, logger)
	})
	v.WatchConfig()
}

// ReloadPersonas decodes the personas currently held by v into catalog.
func ReloadPersonas(v *viper.Viper, catalog *persona.Catalog, logger *slog.Logger) {
	var personas []persona.Persona
	if err := v.UnmarshalKey("personas", &personas); err != nil {
		logger.Error("decoding personas", "error", err)
		return
	}

	if err := catalog.Replace(personas); err != nil {
		logger.Error("persona reload rejected", "error", err)
		return
	}

	logger.Info("personas reloaded", "count", len(personas))
}
