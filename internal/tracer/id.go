package tracer

import "crypto/rand"

func fillRandom(b []byte) {
	if _, err := rand.Read(b); err != nil {
		panic("tracer: read random span id: " + err.Error())
	}
}
