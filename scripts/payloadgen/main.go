// payloadgen emits synthetic relationship payloads for smoke and load
// testing.
// Run: go run scripts/payloadgen/main.go --entities 500 --clusters 12 > payload.json
//
// With --cooccurrences the payload ships raw pair sightings instead of
// precomputed clusters, which exercises the import-time cluster engine.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/inkwise/storyweb/internal/relation"
)

var givenNames = []string{
	"María", "Juan", "Pedro", "Ana", "Luis", "Carmen", "José", "Isabel",
	"Miguel", "Elena", "Rosa", "Diego", "Clara", "Pablo", "Lucía",
	"Andrés", "Sofía", "Javier", "Marta", "Tomás",
}

var surnames = []string{
	"García", "Pérez", "López", "Ruiz", "Gómez", "Fernández", "Torres",
	"Vargas", "Morales", "Ortega", "Castro", "Delgado", "Ramos",
	"Flores", "Navarro", "Medina",
}

var relationTypes = []string{"friend", "family", "rival", "ally", "mentor", ""}

var valences = []string{"positive", "positive", "neutral", "neutral", "negative"}

func main() {
	entities := flag.Int("entities", 200, "Number of entities to generate")
	clusters := flag.Int("clusters", 8, "Number of clusters to generate")
	seed := flag.Int64("seed", 42, "Random seed")
	cooccurrences := flag.Bool("cooccurrences", false, "Emit raw pair sightings instead of precomputed clusters")
	outFile := flag.String("out", "", "Output file (default: stdout)")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	p := generate(rng, *entities, *clusters, *cooccurrences)

	data, err := relation.EncodePayload(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding payload: %v\n", err)
		os.Exit(1)
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outFile, err)
			os.Exit(1)
		}
	} else {
		os.Stdout.Write(data)
		fmt.Println()
	}

	fmt.Fprintf(os.Stderr, "Generated %d entities, %d relations, %d clusters, %d cooccurrences (%.1f KB)\n",
		len(p.Entities), len(p.Relations), len(p.Clusters), len(p.Cooccurrences), float64(len(data))/1024)
}

func generate(rng *rand.Rand, nEntities, nClusters int, rawSightings bool) relation.Payload {
	var p relation.Payload

	for i := 0; i < nEntities; i++ {
		mentions := 1 + rng.Intn(6)
		if i < nEntities/20+1 {
			mentions = 20 + rng.Intn(60)
		}
		p.Entities = append(p.Entities, relation.RawEntity{
			ID:           int64(i + 1),
			Name:         fmt.Sprintf("%s %s", givenNames[rng.Intn(len(givenNames))], surnames[rng.Intn(len(surnames))]),
			Type:         "character",
			MentionCount: mentions,
		})
	}

	next := int64(1)
	for k := 0; k < nClusters && next <= int64(nEntities); k++ {
		size := 4 + rng.Intn(18)
		var members []int64
		for len(members) < size && next <= int64(nEntities) {
			members = append(members, next)
			next++
		}
		if len(members) < 2 {
			break
		}

		if rawSightings {
			// Sightings dense enough for the import-time engine to
			// recover the group.
			chapter := k + 1
			for i := 1; i < len(members); i++ {
				n := 3 + rng.Intn(6)
				for j := 0; j < n; j++ {
					p.Cooccurrences = append(p.Cooccurrences, relation.RawCooccurrence{
						Entity1ID:     members[i-1],
						Entity2ID:     members[i],
						Chapter:       chapter,
						DistanceChars: 50 + rng.Intn(350),
					})
				}
			}
			continue
		}

		p.Clusters = append(p.Clusters, relation.RawCluster{
			ID:               int64(k + 1),
			Name:             fmt.Sprintf("Grupo %d", k+1),
			EntityIDs:        members,
			CentroidEntityID: members[0],
			CohesionScore:    0.4 + 0.6*rng.Float64(),
		})
		for i := 1; i < len(members); i++ {
			p.Relations = append(p.Relations, randomRelation(rng, members[i-1], members[i], 0.5+0.5*rng.Float64()))
		}
		for i := 0; i < len(members)/2; i++ {
			a := members[rng.Intn(len(members))]
			b := members[rng.Intn(len(members))]
			if a == b {
				continue
			}
			p.Relations = append(p.Relations, randomRelation(rng, a, b, 0.3+0.7*rng.Float64()))
		}
	}

	if !rawSightings {
		for i := 0; i < nEntities/10; i++ {
			a := int64(1 + rng.Intn(nEntities))
			b := int64(1 + rng.Intn(nEntities))
			if a == b {
				continue
			}
			p.Relations = append(p.Relations, randomRelation(rng, a, b, 0.1+0.4*rng.Float64()))
		}
	}

	return p
}

func randomRelation(rng *rand.Rand, a, b int64, strength float64) relation.RawRelation {
	evidence := 1 + rng.Intn(12)
	r := relation.RawRelation{
		SourceID:      &a,
		TargetID:      &b,
		Strength:      strength,
		Valence:       valences[rng.Intn(len(valences))],
		RelationType:  relationTypes[rng.Intn(len(relationTypes))],
		EvidenceCount: &evidence,
	}
	if rng.Intn(10) == 0 {
		confirmed := true
		r.UserConfirmed = &confirmed
	}
	return r
}
