// Package model - Model-Interface und Initialisierung
//
// Dieses Paket definiert die Model-Interfaces und stellt Funktionen
// zum Laden, Initialisieren und Speichern von Checkpoints bereit.
//
// Hauptkomponenten:
// - Model: Interface fuer alle Modell-Architekturen
// - Generator, Discriminator: Optionale Faehigkeiten eines Models
// - New: Laedt ein Model aus einer GGUF-Datei
// - Init: Erstellt ein Model mit zufaelligen Gewichten
// - Register: Registriert Modell-Konstruktoren
package model

import (
	"errors"
	"fmt"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/7blacky7/stylegan/fs"
	fsggml "github.com/7blacky7/stylegan/fs/ggml"
	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/ml/nn"
)

// Fehler-Definitionen
var (
	ErrUnsupportedModel = errors.New("model not supported")
	ErrNoGenerator      = errors.New("this model has no generator")
	ErrNoDiscriminator  = errors.New("this model has no discriminator")
)

// Model definiert das Interface fuer spezifische Modell-Architekturen
type Model interface {
	// KV gibt die Hyperparameter als vollstaendige GGUF-Keys zurueck,
	// inklusive general.architecture
	KV() fsggml.KV
}

// Validator ist ein optionales Interface fuer Post-Load-Validierung
type Validator interface {
	Validate() error
}

// GenerateOptions steuert einen Generator-Durchlauf
type GenerateOptions struct {
	// Batch ist die Anzahl der Bilder, falls keine Latents vorgegeben sind
	Batch int

	// Seed bestimmt Latents und Rauschen
	Seed uint64

	// Latents ersetzt die gezogenen Latents: (B, dim) oder (B, n_latent, dim)
	Latents       *ml.Tensor
	InputIsLatent bool

	// Truncation < 1 zieht die Styles Richtung W-Mittelwert
	Truncation        float32
	TruncationSamples int

	// FixedNoise nutzt die gespeicherten Rausch-Buffer statt frischem Rauschen
	FixedNoise    bool
	ReturnLatents bool
}

// GenerateResult enthaelt Bilder (B, 3, R, R) in [-1, 1] und optional die Styles
type GenerateResult struct {
	Images  *ml.Tensor
	Latents *ml.Tensor
}

// Generator wird von Models implementiert, die Bilder erzeugen koennen
type Generator interface {
	Model
	Generate(GenerateOptions) (*GenerateResult, error)
}

// DiscriminateResult enthaelt die Scores je Bild. CondLogits ist nil,
// wenn keine Konditionierung uebergeben wurde.
type DiscriminateResult struct {
	Scores     *ml.Tensor
	CondLogits *ml.Tensor
}

// Discriminator wird von Models implementiert, die Bilder bewerten koennen
type Discriminator interface {
	Model
	Discriminate(images, cond *ml.Tensor) (*DiscriminateResult, error)

	// ImageSize ist die erwartete Kantenlaenge der Eingabebilder
	ImageSize() int
}

// models speichert registrierte Modell-Konstruktoren
var models = make(map[string]func(fs.Config) (Model, error))

// Register registriert einen Modell-Konstruktor fuer eine Architektur
func Register(name string, f func(fs.Config) (Model, error)) {
	if _, ok := models[name]; ok {
		panic("model: model already registered")
	}

	models[name] = f
}

// Architectures gibt die Namen aller registrierten Architekturen zurueck
func Architectures() []string {
	return slices.Sorted(maps.Keys(models))
}

// New laedt ein Model aus einer GGUF-Datei
func New(modelPath string) (Model, error) {
	start := time.Now()

	g, f, err := fsggml.Open(modelPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := modelForArch(g.KV())
	if err != nil {
		return nil, err
	}

	store, err := loadTensors(g, f)
	if err != nil {
		return nil, err
	}

	if err := populateFields(store, reflect.ValueOf(m)); err != nil {
		return nil, fmt.Errorf("%s: %w", modelPath, err)
	}

	for _, name := range store.unused() {
		slog.Warn("unused tensor", "name", name)
	}

	if err := nn.CheckAll(m); err != nil {
		return nil, fmt.Errorf("%s: %w", modelPath, err)
	}

	if validator, ok := m.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, err
		}
	}

	slog.Info("model loaded", "path", modelPath, "arch", g.KV().Architecture(), "tensors", len(store.tensors), "duration", time.Since(start))
	return m, nil
}

// Init erstellt ein Model mit zufaelligen Gewichten. Gleicher Seed ergibt
// gleiche Gewichte.
func Init(c fs.Config, seed uint64) (Model, error) {
	m, err := modelForArch(c)
	if err != nil {
		return nil, err
	}

	nn.InitAll(m, ml.NewRNG(seed))

	if validator, ok := m.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// modelForArch erstellt ein Model basierend auf der Architektur
func modelForArch(c fs.Config) (Model, error) {
	f, ok := models[c.Architecture()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, c.Architecture())
	}

	return f(c)
}
