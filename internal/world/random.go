package world

import (
	"hash/fnv"
	"math/rand"

	"vigor/server/internal/actor"
)

// DeterministicSeedValue derives a stable RNG seed from the world seed and a
// subsystem label.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// spawnPoint picks a position in the central half of the world.
func spawnPoint(rng *rand.Rand, width, height float64) actor.Vec2 {
	return actor.Vec2{
		X: width/4 + rng.Float64()*width/2,
		Y: height/4 + rng.Float64()*height/2,
	}
}
