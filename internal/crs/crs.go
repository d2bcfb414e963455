// Package crs converts PRG point coordinates between EPSG:2180 (PUWG 1992)
// and EPSG:4326 (WGS 84).
package crs

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// EPSG is a supported coordinate reference system code.
type EPSG int

const (
	// EPSG2180 is ETRF2000-PL / CS92, the native CRS of every PRG distribution.
	EPSG2180 EPSG = 2180
	// EPSG4326 is WGS 84 geographic coordinates. Points are stored as (lon, lat).
	EPSG4326 EPSG = 4326
)

// Native is the CRS the source documents are published in.
const Native = EPSG2180

func (e EPSG) String() string {
	return "EPSG:" + strconv.Itoa(int(e))
}

// Valid reports whether e is one of the supported codes.
func (e EPSG) Valid() bool {
	return e == EPSG2180 || e == EPSG4326
}

// ParseEPSG accepts "2180", "4326" and the "EPSG:" prefixed forms.
func ParseEPSG(s string) (EPSG, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.TrimPrefix(s, "EPSG:")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Errorf("crs: invalid EPSG code %q", s)
	}
	e := EPSG(n)
	if !e.Valid() {
		return 0, eris.Errorf("crs: unsupported EPSG code %d, expected one of: 2180, 4326", n)
	}
	return e, nil
}

// Transform converts (x, y) from one CRS to another. EPSG:2180 coordinates are
// (easting, northing) in metres, EPSG:4326 coordinates are (lon, lat) in degrees.
// Identical CRS pass through unchanged.
func Transform(x, y float64, from, to EPSG) (float64, float64, error) {
	if !from.Valid() {
		return 0, 0, eris.Errorf("crs: unsupported source %s", from)
	}
	if !to.Valid() {
		return 0, 0, eris.Errorf("crs: unsupported target %s", to)
	}
	if from == to {
		return x, y, nil
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, eris.Errorf("crs: cannot transform non-finite point (%v, %v)", x, y)
	}
	if from == EPSG2180 {
		lon, lat := puwg1992.inverse(x, y)
		return lon, lat, nil
	}
	if lat := y; lat <= -90 || lat >= 90 {
		return 0, 0, eris.Errorf("crs: latitude %v out of range", lat)
	}
	e, n := puwg1992.forward(x, y)
	return e, n, nil
}

// transverseMercator implements the Krüger series (6th order in n) on an
// ellipsoid. Accuracy is well below a millimetre within the EPSG:2180 area.
type transverseMercator struct {
	lon0   float64 // radians
	k0     float64
	fe, fn float64
	e      float64 // first eccentricity
	a      float64 // rectifying radius
	alpha  [6]float64
	beta   [6]float64
}

// puwg1992 is EPSG:2180 on GRS 80. ETRF2000-PL is treated as identical to WGS 84.
var puwg1992 = newTransverseMercator(6378137, 1/298.257222101, 19, 0.9993, 500000, -5300000)

func newTransverseMercator(a, f, lon0Deg, k0, fe, fn float64) transverseMercator {
	n := f / (2 - f)
	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	n5 := n4 * n
	n6 := n5 * n

	tm := transverseMercator{
		lon0: lon0Deg * math.Pi / 180,
		k0:   k0,
		fe:   fe,
		fn:   fn,
		e:    math.Sqrt(f * (2 - f)),
		a:    a / (1 + n) * (1 + n2/4 + n4/64 + n6/256),
	}
	tm.alpha = [6]float64{
		n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180 - 127*n5/288 + 7891*n6/37800,
		13*n2/48 - 3*n3/5 + 557*n4/1440 + 281*n5/630 - 1983433*n6/1935360,
		61*n3/240 - 103*n4/140 + 15061*n5/26880 + 167603*n6/181440,
		49561*n4/161280 - 179*n5/168 + 6601661*n6/7257600,
		34729*n5/80640 - 3418889*n6/1995840,
		212378941 * n6 / 319334400,
	}
	tm.beta = [6]float64{
		n/2 - 2*n2/3 + 37*n3/96 - n4/360 - 81*n5/512 + 96199*n6/604800,
		n2/48 + n3/15 - 437*n4/1440 + 46*n5/105 - 1118711*n6/3870720,
		17*n3/480 - 37*n4/840 - 209*n5/4480 + 5569*n6/90720,
		4397*n4/161280 - 11*n5/504 - 830251*n6/7257600,
		4583*n5/161280 - 108847*n6/3991680,
		20648693 * n6 / 638668800,
	}
	return tm
}

// forward maps (lon, lat) degrees to (easting, northing) metres.
func (tm transverseMercator) forward(lonDeg, latDeg float64) (float64, float64) {
	phi := latDeg * math.Pi / 180
	dl := lonDeg*math.Pi/180 - tm.lon0

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - tm.e*math.Atanh(tm.e*sinPhi))
	xiP := math.Atan2(t, math.Cos(dl))
	etaP := math.Atanh(math.Sin(dl) / math.Sqrt(1+t*t))

	xi, eta := xiP, etaP
	for j := 1; j <= 6; j++ {
		a := tm.alpha[j-1]
		k := 2 * float64(j)
		xi += a * math.Sin(k*xiP) * math.Cosh(k*etaP)
		eta += a * math.Cos(k*xiP) * math.Sinh(k*etaP)
	}

	return tm.fe + tm.k0*tm.a*eta, tm.fn + tm.k0*tm.a*xi
}

// inverse maps (easting, northing) metres to (lon, lat) degrees.
func (tm transverseMercator) inverse(easting, northing float64) (float64, float64) {
	xi := (northing - tm.fn) / (tm.k0 * tm.a)
	eta := (easting - tm.fe) / (tm.k0 * tm.a)

	xiP, etaP := xi, eta
	for j := 1; j <= 6; j++ {
		b := tm.beta[j-1]
		k := 2 * float64(j)
		xiP -= b * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= b * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	sinhEta := math.Sinh(etaP)
	cosXi := math.Cos(xiP)
	tauP := math.Sin(xiP) / math.Sqrt(sinhEta*sinhEta+cosXi*cosXi)
	lon := tm.lon0 + math.Atan2(sinhEta, cosXi)
	lat := math.Atan(tm.tauFromConformal(tauP))

	return lon * 180 / math.Pi, lat * 180 / math.Pi
}

// tauFromConformal solves tan(phi) from the conformal tan(phi') by Newton iteration.
func (tm transverseMercator) tauFromConformal(tauP float64) float64 {
	e2 := tm.e * tm.e
	tau := tauP
	for range 10 {
		sqrt1t := math.Sqrt(1 + tau*tau)
		sigma := math.Sinh(tm.e * math.Atanh(tm.e*tau/sqrt1t))
		tauI := tau*math.Sqrt(1+sigma*sigma) - sigma*sqrt1t
		d := (tauP - tauI) / math.Sqrt(1+tauI*tauI) *
			(1 + (1-e2)*tau*tau) / ((1 - e2) * sqrt1t)
		tau += d
		if math.Abs(d) < 1e-14*math.Max(1, math.Abs(tau)) {
			break
		}
	}
	return tau
}
