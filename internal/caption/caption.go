// Package caption assembles post text for the bot: a randomly chosen opener,
// fixed attribution, and a hashtag set drawn from fixed pools. The random
// source is injectable so sampling is deterministic under test.
package caption

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Fallback is the fixed text published when no imagery is available.
const Fallback = "Meteosat Europe update: no new SEVIRI imagery available today. " +
	"We will be back with fresh data soon. #Meteosat #EUMETSAT"

const attribution = "Data (c) EUMETSAT"

// openers are caption first lines; %s receives the observation date.
var openers = []string{
	"Meteosat SEVIRI view over Europe, %s",
	"Yesterday over Europe (%s), as seen from geostationary orbit",
	"A full day above Europe: %s from Meteosat",
	"Europe on %s, one frame every scan",
	"Clouds on the move over Europe, %s",
}

// coreTags always appear, followed by one science tag and two public tags.
var (
	coreTags    = []string{"#Meteosat", "#EUMETSAT"}
	scienceTags = []string{"#EarthObservation", "#RemoteSensing", "#SEVIRI", "#AtmosphericScience", "#Geostationary"}
	publicTags  = []string{"#weather", "#Europe", "#satellite", "#clouds", "#FromSpace", "#skywatching"}
)

// Generator builds captions from an injectable random source.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator builds a caption generator. A nil rng falls back to a
// time-seeded source.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rng: rng}
}

// Imagery composes the caption for a successful run over the given
// observation day: opener, attribution, then the hashtag line with the core
// tags, one science tag, and two public tags, sampled without replacement.
func (g *Generator) Imagery(day time.Time) string {
	opener := fmt.Sprintf(openers[g.rng.Intn(len(openers))], day.Format("2 January 2006"))

	tags := make([]string, 0, len(coreTags)+3)
	tags = append(tags, coreTags...)
	tags = append(tags, g.sample(scienceTags, 1)...)
	tags = append(tags, g.sample(publicTags, 2)...)

	return opener + "\n" + attribution + "\n" + strings.Join(tags, " ")
}

// sample draws n distinct elements from pool, order randomized.
func (g *Generator) sample(pool []string, n int) []string {
	idx := g.rng.Perm(len(pool))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = pool[idx[i]]
	}
	return out
}
