// Package simulate produces stand-in readings where no live source exists:
// time-of-day traffic around the lamp and random sensor telemetry.
package simulate

import (
	"math/rand/v2"
	"sync"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

// Simulator is safe for concurrent use. A fixed seed makes its output
// reproducible.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Simulator seeded with seed.
func New(seed uint64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewPCG(seed, seed^0x5bd1e995))}
}

type band struct {
	pedestrians int
	vehicles    int
}

// trafficBand returns base counts for the local hour.
func trafficBand(hour int) band {
	switch {
	case (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19):
		return band{pedestrians: 40, vehicles: 25}
	case hour >= 10 && hour <= 16:
		return band{pedestrians: 25, vehicles: 15}
	case hour >= 20 && hour <= 23:
		return band{pedestrians: 30, vehicles: 20}
	default:
		return band{pedestrians: 5, vehicles: 3}
	}
}

// Traffic returns pedestrian and vehicle counts for the prediction context:
// the hour's base counts plus jitter of -10..10 pedestrians and -5..8
// vehicles, floored at zero.
func (s *Simulator) Traffic(hour int) domain.TrafficData {
	b := trafficBand(hour)

	s.mu.Lock()
	pedJitter := s.rng.IntN(21) - 10
	vehJitter := s.rng.IntN(14) - 5
	s.mu.Unlock()

	return domain.TrafficData{
		PedestrianCount: max(0, b.pedestrians+pedJitter),
		VehicleCount:    max(0, b.vehicles+vehJitter),
	}
}

// RoadActivity returns the coarser counts shown on the weather summary:
// vehicles peak at 7-9 and 16-18, pedestrians during 8-20.
func (s *Simulator) RoadActivity(hour int) domain.TrafficData {
	s.mu.Lock()
	defer s.mu.Unlock()

	var vehicles int
	if (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 18) {
		vehicles = int(s.uniform(0.8, 1.2) * 50)
	} else {
		vehicles = int(s.uniform(0.7, 1.3) * 10)
	}

	var pedestrians int
	if hour >= 8 && hour <= 20 {
		pedestrians = int(s.uniform(0.85, 1.15) * 30)
	} else {
		pedestrians = int(s.uniform(0.5, 1.5) * 3)
	}

	return domain.TrafficData{PedestrianCount: pedestrians, VehicleCount: vehicles}
}

// Sensor returns random telemetry: ambient light 0-100, motion 0 or 1,
// temperature 10-25C, power 50-150W, health 0.8-1.0.
func (s *Simulator) Sensor() domain.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.SensorReading{
		AmbientLight:      domain.Float(s.uniform(0, 100)),
		Motion:            domain.Int(s.rng.IntN(2)),
		TemperatureSensor: s.uniform(10, 25),
		PowerConsumption:  s.uniform(50, 150),
		DeviceHealth:      s.uniform(0.8, 1.0),
	}
}

// Extras fills the telemetry fields the IoT channel does not carry.
func (s *Simulator) Extras(r *domain.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.TemperatureSensor = s.uniform(10, 25)
	r.PowerConsumption = s.uniform(50, 150)
	r.DeviceHealth = s.uniform(0.8, 1.0)
}

// uniform must be called with mu held.
func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
