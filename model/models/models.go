// Package models - Registriert alle Modell-Architekturen per Import
package models

import (
	_ "github.com/7blacky7/stylegan/model/models/stylegan"
)
