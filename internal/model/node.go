package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Node is one market settlement point as returned by the data provider.
// Coordinates are WGS84 degrees.
type Node struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Market    string  `json:"market"`
	Zone      *string `json:"zone"`
}

// Validate checks the fields the grid generator relies on.
func (n Node) Validate() error {
	if strings.TrimSpace(n.Code) == "" {
		return errors.New("code must be non-empty")
	}
	if !finite(n.Latitude) || n.Latitude < -90 || n.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", n.Latitude)
	}
	if !finite(n.Longitude) || n.Longitude < -180 || n.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", n.Longitude)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
