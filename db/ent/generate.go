// Command generate renders the ent client for the catalog schema:
//
//	go run ./db/ent
//
// The repository queries through ent's SQL builder, so the generated
// client under gen/ent is optional tooling output.
package main

import (
	"log"

	"entgo.io/ent/entc"
	"entgo.io/ent/entc/gen"
)

func main() {
	err := entc.Generate(
		"./db/ent/schema",
		&gen.Config{
			Target:   "gen/ent",
			Package:  "github.com/joseph-ayodele/tariff-catalog/gen/ent",
			Schema:   "github.com/joseph-ayodele/tariff-catalog/db/ent/schema",
			Features: []gen.Feature{gen.FeatureUpsert},
		},
	)
	if err != nil {
		log.Fatal(err)
	}
}
