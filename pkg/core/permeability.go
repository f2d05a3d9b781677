package core

// Permeability classifies a geological unit's propensity to host karst
// conduits. The values match the vendor export vocabulary.
type Permeability string

const (
	Karstified         Permeability = "Karstified"
	NonKarstified      Permeability = "NonKarstified"
	PorousPermeability Permeability = "PorousPermeability"
	Undefined          Permeability = "Undefined"
)

// PotentialFor maps a permeability class to its karstification
// potential. Only karstified units contribute; everything else in the
// known vocabulary scores zero. The second return is false for classes
// outside the vocabulary.
func PotentialFor(p Permeability) (float64, bool) {
	switch p {
	case Karstified:
		return 0.5, true
	case NonKarstified, PorousPermeability, Undefined:
		return 0, true
	default:
		return 0, false
	}
}
