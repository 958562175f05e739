package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/mattsolo1/grove-planshare/cmd"
	"github.com/mattsolo1/grove-planshare/pkg/plan"
)

func main() {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	schema := r.Reflect(&cmd.PlanshareConfig{})
	schema.Title = "Grove Planshare Configuration"
	schema.Description = "Schema for the 'planshare' extension in grove.yml."

	// Make all fields optional - Grove configs should not require any fields
	schema.Required = nil

	writeSchema(schema, "planshare.schema.json")

	// Plans are exchanged as JSON, so reflect on the json tags.
	planReflector := &jsonschema.Reflector{ExpandedStruct: true}
	planSchema := planReflector.Reflect(&plan.Plan{})
	planSchema.Title = "Grove Planshare Plan"
	planSchema.Description = "Schema for plan JSON accepted by 'planshare share' and 'planshare format'."

	writeSchema(planSchema, "planshare-plan.schema.json")
}

func writeSchema(schema *jsonschema.Schema, path string) {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("Error marshaling schema: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}
	log.Printf("Successfully generated schema at %s", path)
}
