package demo

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/replica-dev/replica/pkg/replica"
)

var kinds = []string{"scout", "hauler", "drone", "probe", "relay"}

// Config holds world settings.
type Config struct {
	// Entities is the steady-state population. Default: 32.
	Entities int

	// Bounds is the world extent along each axis. Default: 1000.
	Bounds float64

	// Speed is how far a unit moves per step. Default: 4.
	Speed float64

	// ChurnEvery destroys the oldest unit and spawns a replacement every
	// N steps. 0 disables churn. DefaultConfig uses 120.
	ChurnEvery int

	// Seed fixes the random sequence. 0 picks a random seed.
	Seed uint64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Entities:   32,
		Bounds:     1000,
		Speed:      4,
		ChurnEvery: 120,
	}
}

func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	defaults := DefaultConfig()
	out := *c
	if out.Entities == 0 {
		out.Entities = defaults.Entities
	}
	if out.Bounds == 0 {
		out.Bounds = defaults.Bounds
	}
	if out.Speed == 0 {
		out.Speed = defaults.Speed
	}
	return &out
}

// World is a bouncing-entities simulation bound to one authority. It is not
// safe for concurrent use; call Populate and Step on the authority goroutine.
type World struct {
	config  *Config
	rng     *rand.Rand
	step    uint64
	spawned int
	units   []*unit
}

type unit struct {
	obj    *replica.Object
	x, y   float64
	vx, vy float64
}

// NewWorld creates a world. A nil config uses defaults.
func NewWorld(config *Config) *World {
	config = config.withDefaults()
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &World{
		config: config,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Populate spawns the initial population.
func (w *World) Populate(a *replica.Authority) {
	for len(w.units) < w.config.Entities {
		w.spawn(a)
	}
}

// Adopt binds the authority's existing objects to the world, giving each a
// fresh velocity, then spawns units until the population is at strength.
// Used after a snapshot restore, where objects outlive the process that
// spawned them. Objects whose sync payload is not an EntityState are left
// alone.
func (w *World) Adopt(a *replica.Authority) {
	for _, obj := range a.Objects() {
		st, err := DecodeEntityState(obj.SyncData())
		if err != nil {
			continue
		}
		angle := w.rng.Float64() * 2 * math.Pi
		w.units = append(w.units, &unit{
			obj: obj,
			x:   st.X,
			y:   st.Y,
			vx:  math.Cos(angle) * w.config.Speed,
			vy:  math.Sin(angle) * w.config.Speed,
		})
	}
	w.spawned = len(w.units)
	w.Populate(a)
}

func (w *World) spawn(a *replica.Authority) {
	w.spawned++
	kind := kinds[w.rng.IntN(len(kinds))]
	angle := w.rng.Float64() * 2 * math.Pi

	u := &unit{
		obj: a.Create(),
		x:   w.rng.Float64() * w.config.Bounds,
		y:   w.rng.Float64() * w.config.Bounds,
		vx:  math.Cos(angle) * w.config.Speed,
		vy:  math.Sin(angle) * w.config.Speed,
	}
	u.obj.SetInitData(EntityInit{Kind: kind, Name: fmt.Sprintf("%s-%d", kind, w.spawned)}.Encode())
	u.obj.SetSyncData(EntityState{X: u.x, Y: u.y}.Encode())
	w.units = append(w.units, u)
}

// Step advances the simulation: every unit moves and rewrites its sync
// payload, edge bounces queue a message, and the churn schedule replaces the
// oldest unit.
func (w *World) Step(a *replica.Authority) {
	w.step++

	for _, u := range w.units {
		u.x += u.vx
		u.y += u.vy

		bounced := false
		if u.x < 0 {
			u.x, u.vx, bounced = -u.x, -u.vx, true
		} else if u.x > w.config.Bounds {
			u.x, u.vx, bounced = 2*w.config.Bounds-u.x, -u.vx, true
		}
		if u.y < 0 {
			u.y, u.vy, bounced = -u.y, -u.vy, true
		} else if u.y > w.config.Bounds {
			u.y, u.vy, bounced = 2*w.config.Bounds-u.y, -u.vy, true
		}

		u.obj.SetSyncData(EntityState{X: u.x, Y: u.y}.Encode())
		if bounced {
			u.obj.SendMessage([]byte(fmt.Sprintf("bounce %d", w.step)))
		}
	}

	if w.config.ChurnEvery > 0 && w.step%uint64(w.config.ChurnEvery) == 0 && len(w.units) > 0 {
		a.Destroy(w.units[0].obj)
		w.units = w.units[1:]
		w.spawn(a)
	}
}

// Steps returns how many times Step has run.
func (w *World) Steps() uint64 {
	return w.step
}

// NumUnits returns the current population.
func (w *World) NumUnits() int {
	return len(w.units)
}
