package config

import "github.com/invopop/jsonschema"

// TuningSchema describes the tuning file for editor tooling and CI checks.
func TuningSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Tuning))
	schema.Title = "Vigor Tuning"
	schema.Description = "Stamina bands, slide and pain parameters loaded from VIGOR_TUNING_FILE"
	return schema
}
