package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/joseph-ayodele/tariff-catalog/constants"
	"github.com/joseph-ayodele/tariff-catalog/db/ent/schema/utils"
)

type ExtractionRun struct{ ent.Schema }

func (ExtractionRun) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extraction_runs"},
	}
}

func (ExtractionRun) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").MaxLen(36).NotEmpty().Immutable(),
		field.String("provider_id").MaxLen(64),
		field.String("status").
			Validate(utils.EnumValidator(constants.JobStatuses...)),
		field.String("run_status").Optional().Nillable().
			Validate(utils.EnumValidator(constants.RunStatuses...)),
		field.String("source_path").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("content_hash").Optional().Nillable(),
		field.Int("total_pages").Default(0).NonNegative(),
		field.Int("contributing_pages").Default(0).NonNegative(),
		field.Int("procedures").Default(0).NonNegative(),
		field.Int("conflicts").Default(0).NonNegative(),
		field.JSON("report", json.RawMessage{}).Optional(),
		field.String("error_message").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("started_at").Default(time.Now),
		field.Time("finished_at").Optional().Nillable(),
	}
}

func (ExtractionRun) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("provider", Provider.Type).
			Ref("runs").
			Field("provider_id").
			Unique().
			Required(),
		edge.To("procedures", Procedure.Type),
	}
}

func (ExtractionRun) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("provider_id", "started_at"),
	}
}
