// Modul: logits.go
// Beschreibung: Logit-Kopf auf 4x4-Features, optional konditioniert
// Hauptstrukturen:
//   - CondLogits: [SN-Conv3x3 + LeakyReLU auf Features ++ Embedding] -> Conv4x4/4 -> Sigmoid

package stylegan

import (
	"github.com/7blacky7/stylegan/ml"
	"github.com/7blacky7/stylegan/ml/nn"
)

// CondLogits bewertet (B, ndf, 4, 4)-Features. Konditional wird das Embedding
// raeumlich wiederholt und vor der Ausgabe-Faltung mit den Features verrechnet.
type CondLogits struct {
	JointConv *nn.SpectralNormConv2d `gguf:"joint_conv"`
	Out       *nn.Conv2d             `gguf:"out"`

	nef int
}

// NewCondLogits erstellt den Kopf. Ohne conditional gibt es keine JointConv.
func NewCondLogits(ndf, nef int, conditional bool) *CondLogits {
	l := &CondLogits{
		Out: nn.NewConv2d(ndf, 1, 4, nn.ConvOptions{Stride: 4}),
		nef: nef,
	}
	if conditional {
		l.JointConv = nn.NewSpectralNormConv2d(ndf+nef, ndf, 3, nn.ConvOptions{Stride: 1, Padding: 1})
	}
	return l
}

// Conditional meldet, ob der Kopf ein Embedding verarbeitet
func (l *CondLogits) Conditional() bool {
	return l.JointConv != nil
}

// Forward gibt Wahrscheinlichkeiten (B) zurueck. cCode (B, nef) wird nur
// vom konditionalen Kopf genutzt.
func (l *CondLogits) Forward(h, cCode *ml.Tensor) *ml.Tensor {
	if l.Conditional() && cCode != nil {
		if cCode.Len() != h.Dim(0)*l.nef {
			ml.Errorf("cond_logits", "conditioning must be (%d, %d), got %v", h.Dim(0), l.nef, cCode.Shape())
		}

		c := ml.Repeat(cCode.Reshape(-1, l.nef, 1, 1), 1, 1, h.Dim(2), h.Dim(3))
		h = ml.LeakyReLU(l.JointConv.Forward(ml.Concat(1, h, c)), 0.2)
	}

	return ml.Sigmoid(l.Out.Forward(h)).Reshape(-1)
}
