// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coffee

// Molar mass of water in g/mol.
const waterMolarMass = 18.0152

// WaterDensity returns the density of liquid water in g/cm³ at tempC °C,
// using the closed-form fit of Tanaka et al. (2001) to the IAPWS-95 data
// for 0 ≤ tempC ≤ 40 (usable up to 100 with reduced accuracy):
//
//	ρ(t) = a₅ [ 1 - (t + a₁)²(t + a₂) / (a₃(t + a₄)) ]
func WaterDensity(tempC float64) float64 {
	const (
		a1 = -3.983035
		a2 = 301.797
		a3 = 522528.9
		a4 = 69.34881
		a5 = 0.99997495
	)
	t := tempC
	return a5 * (1 - (t+a1)*(t+a1)*(t+a2)/a3/(t+a4))
}

// WaterMolarity returns the molar concentration of pure water in mol/L at
// tempC °C. Concentrations are divided by it when scaling is enabled.
func WaterMolarity(tempC float64) float64 {
	return WaterDensity(tempC) * 1000 / waterMolarMass
}
