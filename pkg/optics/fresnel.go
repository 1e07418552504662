// Package optics implements the boundary and scattering physics for photon
// transport: Snell refraction, unpolarized Fresnel reflectance, and the
// Henyey-Greenstein phase function.
package optics

import (
	"math"

	"github.com/tissueoptics/nirmc/pkg/core"
)

const (
	// cosZero marks direction cosines close enough to 1 to treat as
	// normal incidence
	cosZero = 1.0 - 1e-12
	// cosNinety marks direction cosines close enough to 0 to treat as
	// grazing incidence
	cosNinety = 1e-6
)

// CriticalCosine returns the cosine of the critical angle for light passing
// from index n1 into n2. Below this incidence cosine the photon is totally
// internally reflected. Returns 0 when n1 <= n2 (no critical angle).
func CriticalCosine(n1, n2 float64) float64 {
	if n1 <= n2 {
		return 0
	}
	ratio := n2 / n1
	return math.Sqrt(1 - ratio*ratio)
}

// Reflectance computes the unpolarized Fresnel reflectance for a photon
// hitting a planar boundary between indices n1 and n2 with incidence cosine
// cosI (measured from the boundary normal, cosI in [0,1]).
// Returns the reflectance and the transmitted-angle cosine. cosT is 0 when
// the photon is totally internally reflected.
func Reflectance(cosI, n1, n2 float64) (r, cosT float64) {
	if n1 == n2 {
		return 0, cosI
	}
	cosI = math.Min(cosI, 1.0)

	if cosI > cosZero {
		// Normal incidence: R = ((n2-n1)/(n2+n1))^2
		ratio := (n2 - n1) / (n2 + n1)
		return ratio * ratio, cosI
	}
	if cosI < cosNinety {
		// Grazing incidence reflects everything
		return 1, 0
	}

	sinI := math.Sqrt(1 - cosI*cosI)
	sinT := n1 / n2 * sinI
	if sinT >= 1 {
		// Total internal reflection
		return 1, 0
	}
	cosT = math.Sqrt(1 - sinT*sinT)

	// Average of the s and p polarizations:
	// R = 1/2 [sin^2(ai-at)/sin^2(ai+at) + tan^2(ai-at)/tan^2(ai+at)]
	cosSum := cosI*cosT - sinI*sinT
	cosDiff := cosI*cosT + sinI*sinT
	sinSum := sinI*cosT + cosI*sinT
	sinDiff := sinI*cosT - cosI*sinT

	r = 0.5 * sinDiff * sinDiff * (cosDiff*cosDiff + cosSum*cosSum) /
		(sinSum * sinSum * cosDiff * cosDiff)
	return r, cosT
}

// ReflectZ mirrors a direction off a horizontal boundary (z-normal)
func ReflectZ(d core.Vec3) core.Vec3 {
	return core.NewVec3(d.X, d.Y, -d.Z)
}

// RefractZ bends a direction across a horizontal boundary from index n1
// into n2, given the transmitted-angle cosine from Reflectance. The
// transverse components scale by n1/n2 per Snell's law; z keeps its sign.
func RefractZ(d core.Vec3, n1, n2, cosT float64) core.Vec3 {
	ratio := n1 / n2
	uz := cosT
	if d.Z < 0 {
		uz = -cosT
	}
	return core.NewVec3(d.X*ratio, d.Y*ratio, uz)
}
