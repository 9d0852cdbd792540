package session

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/osa030/crowdbox/internal/app/playback"
)

// Option configures a Manager.
type Option func(*Manager)

// WithRandom overrides the selector used for random cache picks.
// fn must return a value in [0, n).
func WithRandom(fn func(n int) int) Option {
	return func(m *Manager) {
		m.random = fn
	}
}

// WithMixer sets the volume mixer. By default the driver is used if it implements playback.Mixer.
func WithMixer(mixer playback.Mixer) Option {
	return func(m *Manager) {
		m.mixer = mixer
	}
}

// newRandom returns a goroutine-safe selector seeded from crypto/rand.
func newRandom() func(n int) int {
	// Use crypto/rand for better randomness combined with time-based seed
	var cryptoSeed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		cryptoSeed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		cryptoSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(cryptoSeed))

	var mu sync.Mutex
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return rng.Intn(n)
	}
}
