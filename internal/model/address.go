// Package model defines the canonical address record shared by every output format.
package model

import "time"

// Address is one normalized PRG address point. Nil pointers are nulls.
//
// Geometry is in the target CRS of the run; Lon and Lat are always WGS 84
// degrees and are nil exactly when Geometry is nil.
type Address struct {
	Namespace      *string
	LocalID        string
	VersionID      *time.Time
	LifecycleStart *time.Time
	ValidFrom      *time.Time // wazny_od_lub_data_nadania
	ValidTo        *time.Time

	VoivodeshipTeryt  *string
	Voivodeship       string
	CountyTeryt       *string
	County            *string
	MunicipalityTeryt *string
	Municipality      *string

	CityTeryt   *string
	City        string
	CityPart    *string
	StreetTeryt *string
	Street      *string

	HouseNumber string
	PostalCode  *string
	Status      *string

	Lon      *float64
	Lat      *float64
	Geometry *Point
}

// Point is a coordinate pair in the CRS recorded with the batch (x = easting or lon).
type Point struct {
	X, Y float64
}

// StringOrNil returns nil for an empty (after trimming by the caller) string.
func StringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
